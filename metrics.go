package ice

// MetricsRecorder receives counters/observations from an Agent's internals.
// internal/metrics.Prometheus is the concrete implementation grounded on the
// examples' Prometheus usage (SPEC_FULL.md §11); tests can supply their own
// double instead of scraping a registry.
type MetricsRecorder interface {
	// CandidateGathered is called once per local candidate produced, spec §4.2.
	CandidateGathered(streamID, componentID int, typ CandidateType, transport Transport)

	// PairStateChanged is called when a check-list pair goes to InProgress
	// (a check is sent) and when a response makes it Succeeded or Failed
	// (spec §4.6 "check list and variable state transitions"). Unfreezing,
	// cancellation, the role-conflict return to Waiting and the timeout to
	// Failed are not reported.
	PairStateChanged(streamID, componentID int, from, to PairState)

	// ComponentStateChanged is called on Component.State transitions (spec
	// §3).
	ComponentStateChanged(streamID, componentID int, from, to ComponentState)

	// StunRoundTrip records the latency of a successful connectivity check.
	StunRoundTrip(streamID, componentID int, rtt float64)

	// BytesSent/BytesReceived record data-plane traffic on a selected pair.
	BytesSent(streamID, componentID int, n int)
	BytesReceived(streamID, componentID int, n int)
}

// noopMetrics is the default MetricsRecorder: every method is a no-op so
// Options need not special-case "no metrics configured".
type noopMetrics struct{}

func (noopMetrics) CandidateGathered(int, int, CandidateType, Transport)     {}
func (noopMetrics) PairStateChanged(int, int, PairState, PairState)         {}
func (noopMetrics) ComponentStateChanged(int, int, ComponentState, ComponentState) {}
func (noopMetrics) StunRoundTrip(int, int, float64)                         {}
func (noopMetrics) BytesSent(int, int, int)                                 {}
func (noopMetrics) BytesReceived(int, int, int)                             {}
