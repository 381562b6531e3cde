// Package metrics implements ice.MetricsRecorder on top of
// github.com/prometheus/client_golang, grounded on the sockstats/tcp-info
// style of per-connection gauges and counters seen across the example
// corpus's network tooling.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lanikai/ice"
)

// Prometheus records Agent activity into a prometheus.Registerer. Construct
// once per process (or per Agent, with a dedicated Registerer) and pass to
// ice.WithMetrics.
type Prometheus struct {
	candidatesGathered *prometheus.CounterVec
	pairStateTotal     *prometheus.CounterVec
	componentState     *prometheus.GaugeVec
	stunRTT            *prometheus.HistogramVec
	bytesSent          *prometheus.CounterVec
	bytesReceived      *prometheus.CounterVec
}

// NewPrometheus creates and registers the collector set on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		candidatesGathered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ice", Name: "candidates_gathered_total",
			Help: "Local candidates gathered, by type and transport.",
		}, []string{"type", "transport"}),
		pairStateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ice", Name: "pair_state_transitions_total",
			Help: "Candidate pair state transitions.",
		}, []string{"from", "to"}),
		componentState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ice", Name: "component_state",
			Help: "Current component state (enum value) by stream/component.",
		}, []string{"stream", "component"}),
		stunRTT: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ice", Name: "stun_round_trip_seconds",
			Help:    "Successful connectivity check round-trip latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stream", "component"}),
		bytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ice", Name: "bytes_sent_total",
			Help: "Bytes sent over a selected pair.",
		}, []string{"stream", "component"}),
		bytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ice", Name: "bytes_received_total",
			Help: "Bytes received over a selected pair.",
		}, []string{"stream", "component"}),
	}

	reg.MustRegister(p.candidatesGathered, p.pairStateTotal, p.componentState,
		p.stunRTT, p.bytesSent, p.bytesReceived)
	return p
}

func (p *Prometheus) CandidateGathered(streamID, componentID int, typ ice.CandidateType, transport ice.Transport) {
	p.candidatesGathered.WithLabelValues(typ.String(), transport.String()).Inc()
}

func (p *Prometheus) PairStateChanged(streamID, componentID int, from, to ice.PairState) {
	p.pairStateTotal.WithLabelValues(from.String(), to.String()).Inc()
}

func (p *Prometheus) ComponentStateChanged(streamID, componentID int, from, to ice.ComponentState) {
	p.componentState.WithLabelValues(strconv.Itoa(streamID), strconv.Itoa(componentID)).Set(float64(to))
}

func (p *Prometheus) StunRoundTrip(streamID, componentID int, rtt float64) {
	p.stunRTT.WithLabelValues(strconv.Itoa(streamID), strconv.Itoa(componentID)).Observe(rtt)
}

func (p *Prometheus) BytesSent(streamID, componentID int, n int) {
	p.bytesSent.WithLabelValues(strconv.Itoa(streamID), strconv.Itoa(componentID)).Add(float64(n))
}

func (p *Prometheus) BytesReceived(streamID, componentID int, n int) {
	p.bytesReceived.WithLabelValues(strconv.Itoa(streamID), strconv.Itoa(componentID)).Add(float64(n))
}
