// Package ice implements an RFC 5245 Interactive Connectivity Establishment
// endpoint: candidate gathering, connectivity checking, and data relay over
// the winning candidate pair, with a pluggable socket layer and a handful of
// legacy-client compatibility modes. Grounded throughout on the structure of
// a small, from-scratch ICE implementation this module's authors had
// already written for a WebRTC stack, generalized here to the full RFC
// state machine and broadened transport/compatibility surface.
package ice

import (
	"context"
	"sync"
	"time"

	"github.com/pion/randutil"
	"github.com/rs/xid"

	"github.com/lanikai/ice/iceerr"
	istun "github.com/lanikai/ice/internal/stun"
)

// Agent coordinates one or more Streams sharing a single role (controlling
// or controlled) and tie-breaker (spec §4.5). Its lifetime spans from
// construction through Close; Stream.Restart re-keys a stream's credentials
// in place without discarding the Agent itself (spec §4.4 "ICE restart").
type Agent struct {
	opts *Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.RWMutex
	streams       map[int]*Stream
	nextStreamID  int
	controllingM  bool
	tieBreaker    uint64
	closed        bool

	stunTable *istun.Table

	sigMu          sync.Mutex
	pendingSignals []signal
	signalWake     chan struct{}

	cbMu                     sync.Mutex
	onNewCandidate           func(streamID, componentID int, c *Candidate)
	onCandidateGatheringDone func(streamID int)
	onComponentStateChange   func(streamID, componentID int, s ComponentState)
	onSelectedPairChange     func(streamID, componentID int, p *CandidatePair)

	turnRefs    map[string]*TurnServer         // keyed by TurnServer.Address, ref-counted (spec §12 forget_relays)
	allocations map[string]*turnAllocationInfo // keyed by relayed candidate address, refreshed on a timer
}

// NewAgent creates an Agent ready to have Streams added. The background
// event loop (pacing, keepalives, signal dispatch) starts immediately and
// runs until Close.
func NewAgent(opts *Options) (*Agent, error) {
	if opts == nil {
		var err error
		opts, err = NewOptions()
		if err != nil {
			return nil, err
		}
	}

	tieBreaker := randutil.NewMathRandomGenerator().Uint64()

	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		opts:         opts,
		ctx:          ctx,
		cancel:       cancel,
		streams:      make(map[int]*Stream),
		nextStreamID: 1,
		controllingM: opts.Controlling,
		tieBreaker:   tieBreaker,
		stunTable:    istun.NewTable(),
		signalWake:   make(chan struct{}, 1),
		turnRefs:     make(map[string]*TurnServer),
		allocations:  make(map[string]*turnAllocationInfo),
	}

	a.wg.Add(1)
	go a.runLoop()

	return a, nil
}

// controlling reports the agent's current ICE role. May flip once via
// handleRoleConflict (spec §4.5).
func (a *Agent) controlling() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.controllingM
}

// AddStream creates a new Stream with numComponents components and fresh
// short-term credentials (spec §3/§4.4), returning it ready for candidate
// gathering.
func (a *Agent) AddStream(numComponents int) (*Stream, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, iceerr.New("Agent.AddStream", iceerr.Closed)
	}

	id := a.nextStreamID
	a.nextStreamID++

	ufrag, password := generateCredentials()
	s, err := newStream(a, id, numComponents, ufrag, password)
	if err != nil {
		return nil, err
	}
	a.streams[id] = s
	return s, nil
}

// RemoveStream tears down a stream by closing its components' sockets (spec
// §12 "add/remove-stream counter invariant"). TURN server ref-counts and
// allocation entries held by the agent are left as they are.
func (a *Agent) RemoveStream(id int) error {
	a.mu.Lock()
	s, ok := a.streams[id]
	if !ok {
		a.mu.Unlock()
		return iceerr.New("Agent.RemoveStream", iceerr.NotFound)
	}
	delete(a.streams, id)
	a.mu.Unlock()

	for _, c := range s.Components() {
		c.closeSockets()
	}
	return nil
}

// Stream returns a stream by id, or nil.
func (a *Agent) Stream(id int) *Stream {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.streams[id]
}

// Streams returns all streams currently on the agent.
func (a *Agent) Streams() []*Stream {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Stream, 0, len(a.streams))
	for _, s := range a.streams {
		out = append(out, s)
	}
	return out
}

// OnNewCandidate registers a callback invoked once per local candidate
// gathered, off the critical section per the deferred-signal pattern.
func (a *Agent) OnNewCandidate(cb func(streamID, componentID int, c *Candidate)) {
	a.cbMu.Lock()
	a.onNewCandidate = cb
	a.cbMu.Unlock()
}

// OnCandidateGatheringDone registers a callback invoked once a stream's
// gathering phase completes (spec §4.2 "end-of-candidates").
func (a *Agent) OnCandidateGatheringDone(cb func(streamID int)) {
	a.cbMu.Lock()
	a.onCandidateGatheringDone = cb
	a.cbMu.Unlock()
}

// OnComponentStateChange registers a callback invoked on every Component
// state transition (spec §3).
func (a *Agent) OnComponentStateChange(cb func(streamID, componentID int, s ComponentState)) {
	a.cbMu.Lock()
	a.onComponentStateChange = cb
	a.cbMu.Unlock()
}

// OnSelectedPairChange registers a callback invoked whenever a component
// selects (or replaces) its active candidate pair.
func (a *Agent) OnSelectedPairChange(cb func(streamID, componentID int, p *CandidatePair)) {
	a.cbMu.Lock()
	a.onSelectedPairChange = cb
	a.cbMu.Unlock()
}

// Close stops the event loop and releases every stream's sockets.
func (a *Agent) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	streams := make([]*Stream, 0, len(a.streams))
	for _, s := range a.streams {
		streams = append(streams, s)
	}
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()

	for _, s := range streams {
		for _, c := range s.Components() {
			c.closeSockets()
		}
	}
	return nil
}

// runLoop drives pacing (Ta), keepalives (Tr), and deferred signal delivery
// for every stream on this agent. Grounded on the teacher's per-checklist
// goroutine, generalized to fan out across all of an agent's streams from
// one loop instead of one goroutine per stream.
func (a *Agent) runLoop() {
	defer a.wg.Done()

	ta := time.NewTicker(a.opts.Ta)
	defer ta.Stop()
	tr := time.NewTicker(a.opts.KeepaliveInterval)
	defer tr.Stop()
	turnRefresh := time.NewTicker(turnRefreshInterval)
	defer turnRefresh.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return

		case <-ta.C:
			for _, s := range a.Streams() {
				if p := s.checklist.nextPair(); p != nil {
					if err := s.checklist.sendCheck(p); err != nil {
						log.Warn("connectivity check send failed: %s", err)
					}
				}
			}

		case <-tr.C:
			a.sendKeepalives()

		case <-turnRefresh.C:
			a.refreshAllocations()

		case <-a.signalWake:
			a.drainSignals()
		}
	}
}

// onPairSelected is called once a component promotes a newly nominated pair
// to selected; it queues the notification signal (spec §4.6 "Updating
// states").
func (a *Agent) onPairSelected(p *CandidatePair) {
	a.queueSignal(signal{kind: signalSelectedPairChanged, streamID: p.StreamID, componentID: p.ComponentID, pair: p})
	s := a.Stream(p.StreamID)
	if s == nil {
		return
	}
	if c := s.Component(p.ComponentID); c != nil {
		c.setState(ComponentCompleted)
	}
}

// handleRoleConflict implements spec §4.5's tie-break: a 487 error response
// means the peer won, so this agent switches role; for an incoming request
// whose ICE-CONTROLLING/CONTROLLED attribute contradicts this agent's role,
// the side with the lower tie-breaker switches role.
func (a *Agent) handleRoleConflict(msg *istun.Message) {
	if code, ok := istun.ErrorCode(msg); ok && code == 487 {
		a.mu.Lock()
		a.controllingM = !a.controllingM
		log.Info("role conflict resolved: now controlling=%v", a.controllingM)
		a.mu.Unlock()
		return
	}

	var peerTieBreaker uint64
	var peerWantsControlling bool
	if tb, ok := istun.ControllingTieBreaker(msg); ok {
		peerTieBreaker = tb
		peerWantsControlling = true
	} else if tb, ok := istun.ControlledTieBreaker(msg); ok {
		peerTieBreaker = tb
		peerWantsControlling = false
	} else {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if peerWantsControlling == a.controllingM {
		if a.controllingM && a.tieBreaker >= peerTieBreaker {
			return // we win, peer must switch
		}
		if !a.controllingM && a.tieBreaker < peerTieBreaker {
			return
		}
		a.controllingM = !a.controllingM
		log.Info("role conflict resolved: now controlling=%v", a.controllingM)
	}
}

// generateCredentials produces a fresh ICE ufrag/password pair (spec §4.4),
// using the counter-bearing tail of an rs/xid for a compact, collision-
// resistant ufrag and a longer random password.
func generateCredentials() (ufrag, password string) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	ufrag = xid.New().String()[12:]
	pw, err := randutil.GenerateCryptoRandomString(24, charset)
	if err != nil {
		pw = xid.New().String() + xid.New().String()
	}
	return ufrag, pw
}
