package ice

import (
	"sync"
)

// ComponentState mirrors spec §3's component state machine. States only
// move forward except Connected <-> Failed is impossible; once Completed or
// Failed, a component only leaves that state via Stream.Restart.
type ComponentState int

const (
	ComponentGathering ComponentState = iota
	ComponentConnecting
	ComponentConnected
	ComponentCompleted
	ComponentFailed
)

func (s ComponentState) String() string {
	switch s {
	case ComponentGathering:
		return "Gathering"
	case ComponentConnecting:
		return "Connecting"
	case ComponentConnected:
		return "Connected"
	case ComponentCompleted:
		return "Completed"
	case ComponentFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Component is one component of a Stream (spec §3): RTP is component 1, RTCP
// (when not muxed) is component 2, and a data-only stream has exactly one
// component. It owns the local sockets gathered for it and the selected pair
// once connectivity succeeds.
type Component struct {
	ID       int
	StreamID int

	stream *Stream

	mu sync.Mutex

	state ComponentState

	localCandidates []*Candidate
	sockets         map[string]Socket // keyed by Candidate.base identity via socketKey

	selected *CandidatePair

	// selectedPairPriority floors acceptance of a new selected pair once one
	// has nominated (spec open question, resolved in DESIGN.md: nil means
	// any nominated pair may still replace the current selection, matching
	// RFC 5245's "a higher-priority nominated pair always wins").
	selectedPairPriority *uint64

	recvQueue [][]byte

	closed bool
}

func newComponent(stream *Stream, id int) *Component {
	return &Component{
		ID:       id,
		StreamID: stream.ID,
		stream:   stream,
		state:    ComponentGathering,
		sockets:  make(map[string]Socket),
	}
}

// State returns the component's current connectivity state.
func (c *Component) State() ComponentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Component) setState(s ComponentState) {
	c.mu.Lock()
	old := c.state
	if old == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	agent := c.stream.agent
	c.mu.Unlock()

	agent.opts.Metrics.ComponentStateChanged(c.StreamID, c.ID, old, s)
	agent.queueSignal(signal{kind: signalComponentState, streamID: c.StreamID, componentID: c.ID, componentState: s})
}

// LocalCandidates returns a snapshot of candidates gathered for this
// component so far.
func (c *Component) LocalCandidates() []*Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Candidate, len(c.localCandidates))
	copy(out, c.localCandidates)
	return out
}

func (c *Component) addLocalCandidate(cand *Candidate, base Socket) {
	c.mu.Lock()
	cand.base = base
	c.localCandidates = append(c.localCandidates, cand)
	key := socketKey(base)
	if _, ok := c.sockets[key]; !ok {
		c.sockets[key] = base
	}
	c.mu.Unlock()

	c.stream.agent.opts.Metrics.CandidateGathered(c.StreamID, c.ID, cand.Type, cand.Transport)
	c.stream.agent.queueSignal(signal{kind: signalNewCandidate, streamID: c.StreamID, componentID: c.ID, candidate: cand})
}

// SelectedPair returns the pair currently used for sending data, or nil if
// none has been selected yet.
func (c *Component) SelectedPair() *CandidatePair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// maybePromote considers promoting pair to the selected pair for this
// component, per spec §4.6 "Updating states" / nomination rules: the first
// nominated pair is always selected; afterward a higher-priority nominated
// pair replaces it.
func (c *Component) maybePromote(pair *CandidatePair) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !pair.Nominated {
		return false
	}
	if c.selectedPairPriority == nil || pair.Priority > *c.selectedPairPriority {
		c.selected = pair
		pri := pair.Priority
		c.selectedPairPriority = &pri
		return true
	}
	return false
}

func socketKey(s Socket) string {
	return s.LocalAddr().String()
}

func (c *Component) closeSockets() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sockets := make([]Socket, 0, len(c.sockets))
	for _, s := range c.sockets {
		sockets = append(sockets, s)
	}
	c.mu.Unlock()

	for _, s := range sockets {
		_ = s.Close()
	}
}
