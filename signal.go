package ice

// signalKind tags the variant carried by a signal, matching the teacher's
// deferred-notification pattern in internal/ice/agent.go: mutations happen
// with the agent lock held, then signals queued during that critical
// section are drained and delivered to the caller's callbacks after the
// lock is released, so a callback can safely re-enter the Agent.
type signalKind int

const (
	signalNewCandidate signalKind = iota
	signalCandidateGatheringDone
	signalComponentState
	signalSelectedPairChanged
)

// signal is one deferred notification. Only the fields relevant to Kind are
// populated.
type signal struct {
	kind signalKind

	streamID    int
	componentID int

	candidate *Candidate

	componentState ComponentState

	pair *CandidatePair
}

// queueSignal appends a signal to the agent's pending queue. Called while
// a.mu may or may not be held by the caller; the queue has its own lock so
// this is always safe to call from within a locked mutation.
func (a *Agent) queueSignal(s signal) {
	a.sigMu.Lock()
	a.pendingSignals = append(a.pendingSignals, s)
	a.sigMu.Unlock()
	a.wakeSignalDrain()
}

// wakeSignalDrain schedules asynchronous delivery of any pending signals.
// Delivery never happens synchronously inside a locked mutation, so
// callbacks are free to call back into the Agent (e.g. AddStream from
// inside OnNewCandidate) without deadlocking.
func (a *Agent) wakeSignalDrain() {
	select {
	case a.signalWake <- struct{}{}:
	default:
	}
}

// drainSignals delivers every pending signal to the Agent's registered
// callbacks, in order. Run on the agent's event-loop goroutine only.
func (a *Agent) drainSignals() {
	a.sigMu.Lock()
	pending := a.pendingSignals
	a.pendingSignals = nil
	a.sigMu.Unlock()

	for _, s := range pending {
		a.dispatchSignal(s)
	}
}

func (a *Agent) dispatchSignal(s signal) {
	a.cbMu.Lock()
	onCandidate := a.onNewCandidate
	onGatheringDone := a.onCandidateGatheringDone
	onComponentState := a.onComponentStateChange
	onSelectedPair := a.onSelectedPairChange
	a.cbMu.Unlock()

	switch s.kind {
	case signalNewCandidate:
		if onCandidate != nil {
			onCandidate(s.streamID, s.componentID, s.candidate)
		}
	case signalCandidateGatheringDone:
		if onGatheringDone != nil {
			onGatheringDone(s.streamID)
		}
	case signalComponentState:
		if onComponentState != nil {
			onComponentState(s.streamID, s.componentID, s.componentState)
		}
	case signalSelectedPairChanged:
		if onSelectedPair != nil {
			onSelectedPair(s.streamID, s.componentID, s.pair)
		}
	}
}
