package ice

import (
	"sort"
	"sync"
	"time"

	istun "github.com/lanikai/ice/internal/stun"
)

// checklistState is the stream-wide completion state (spec §4.6): Running
// until every component either has a nominated pair or has exhausted its
// candidates, then Completed or Failed.
type checklistState int

const (
	checklistRunning checklistState = iota
	checklistCompleted
	checklistFailed
)

// Checklist implements the RFC 5245 §4.6 connectivity-check state machine
// for one Stream: pair formation, pruning, foundation-based unfreezing,
// pacing, triggered checks, peer-reflexive adoption, and nomination.
// Grounded on the teacher's internal/ice/checklist.go, generalized from a
// single hardcoded Ta/Tr pair to the Stream/Component/Agent model and from
// "first valid pair wins" to full nominate + prune + nominated-priority
// promotion.
type Checklist struct {
	stream *Stream

	mu sync.Mutex

	state checklistState

	pairs          []*CandidatePair
	triggeredQueue []*CandidatePair
	nextToCheck    int

	localCands  []*Candidate
	remoteCands []*Candidate
}

func newChecklist(s *Stream) *Checklist {
	return &Checklist{stream: s, state: checklistRunning}
}

// addLocalCandidate pairs a newly gathered local candidate against every
// remote candidate already known for its component (spec §4.6).
func (cl *Checklist) addLocalCandidate(local *Candidate) {
	cl.mu.Lock()
	cl.localCands = append(cl.localCands, local)
	var remotes []*Candidate
	for _, r := range cl.remoteCands {
		if r.ComponentID == local.ComponentID {
			remotes = append(remotes, r)
		}
	}
	cl.mu.Unlock()

	for _, r := range remotes {
		cl.addPair(local, r)
	}
	cl.afterPairsChanged()
}

// addRemoteCandidate pairs a newly learned remote candidate against every
// local candidate already gathered for its component.
func (cl *Checklist) addRemoteCandidate(remote *Candidate) error {
	cl.mu.Lock()
	cl.remoteCands = append(cl.remoteCands, remote)
	var locals []*Candidate
	for _, l := range cl.localCands {
		if l.ComponentID == remote.ComponentID {
			locals = append(locals, l)
		}
	}
	cl.mu.Unlock()

	for _, l := range locals {
		cl.addPair(l, remote)
	}
	cl.afterPairsChanged()
	return nil
}

func (cl *Checklist) addPair(local, remote *Candidate) {
	if !canBePaired(local, remote) {
		return
	}
	p := NewCandidatePair(local, remote, cl.stream.agent.controlling())

	cl.mu.Lock()
	cl.pairs = append(cl.pairs, p)
	cl.mu.Unlock()
}

// canBePaired implements spec §4.1.2's pairing eligibility: same component,
// same address family, same transport, and matching link-local-ness
// (candidates with link-local scope only pair with other link-local
// candidates, per RFC 5245 §4.1.1.1's avoidance of ambiguous scoped
// addresses).
func canBePaired(local, remote *Candidate) bool {
	return local.ComponentID == remote.ComponentID &&
		local.Transport == remote.Transport &&
		local.Addr.Family == remote.Addr.Family &&
		local.Addr.IsLinkLocal() == remote.Addr.IsLinkLocal()
}

// afterPairsChanged re-sorts, prunes redundant pairs, and unfreezes the
// highest-priority pair of each not-yet-represented foundation (spec §4.6:
// "for each foundation, unfreeze the pair with the lowest component ID and
// highest priority").
func (cl *Checklist) afterPairsChanged() {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	sort.Slice(cl.pairs, func(i, j int) bool {
		return cl.pairs[i].Priority > cl.pairs[j].Priority
	})

	pruned := cl.pairs[:0]
	for i, p := range cl.pairs {
		switch p.State {
		case PairInProgress, PairSucceeded, PairFailed:
			pruned = append(pruned, p)
			continue
		}
		redundant := false
		for _, kept := range pruned {
			if p.IsRedundantWith(kept) {
				redundant = true
				break
			}
		}
		if !redundant {
			pruned = append(pruned, p)
		}
		_ = i
	}
	cl.pairs = pruned

	seenFoundation := make(map[string]bool)
	for _, p := range cl.pairs {
		if p.State != PairFrozen {
			seenFoundation[p.Foundation()] = true
		}
	}
	for _, p := range cl.pairs {
		if p.State == PairFrozen && !seenFoundation[p.Foundation()] {
			p.State = PairWaiting
			seenFoundation[p.Foundation()] = true
		}
	}
}

// nextPair returns the next pair to check: the triggered-check queue first
// (spec §4.6 "triggered check queue takes priority"), then a round-robin
// scan of Waiting pairs.
func (cl *Checklist) nextPair() *CandidatePair {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	for len(cl.triggeredQueue) > 0 {
		p := cl.triggeredQueue[0]
		cl.triggeredQueue = cl.triggeredQueue[1:]
		if p.State == PairWaiting || p.State == PairFrozen {
			if p.State == PairFrozen {
				p.State = PairWaiting
			}
			return p
		}
	}

	n := len(cl.pairs)
	for i := 0; i < n; i++ {
		k := (cl.nextToCheck + i) % n
		p := cl.pairs[k]
		if p.State == PairWaiting {
			cl.nextToCheck = (k + 1) % n
			return p
		}
	}
	return nil
}

// triggerCheck schedules an immediate check of p, per spec §4.6 "triggered
// checks": fired when a Binding request arrives for a pair not yet
// Succeeded.
func (cl *Checklist) triggerCheck(p *CandidatePair) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if p.State == PairSucceeded || p.State == PairInProgress {
		return
	}
	cl.triggeredQueue = append(cl.triggeredQueue, p)
}

// rto computes the STUN retransmission timeout per spec §4.3/RFC8445 §14.3:
// Ta times the number of Waiting+InProgress pairs, floored at the agent's
// configured StunTimeout.
func (cl *Checklist) rto() time.Duration {
	cl.mu.Lock()
	n := 0
	for _, p := range cl.pairs {
		if p.State == PairWaiting || p.State == PairInProgress {
			n++
		}
	}
	cl.mu.Unlock()

	d := cl.stream.agent.opts.Ta * time.Duration(n)
	if d < cl.stream.agent.opts.StunTimeout {
		return cl.stream.agent.opts.StunTimeout
	}
	return d
}

// sendCheck sends a Binding request for p and arms its retransmission/RTO
// handling, per spec §4.6/RFC8445 §7.2.
func (cl *Checklist) sendCheck(p *CandidatePair) error {
	a := cl.stream.agent
	ufrag, _, _ := cl.stream.RemoteCredentials()
	_, remotePassword, _ := cl.stream.RemoteCredentials()
	localUfrag, _ := cl.stream.LocalCredentials()

	useCandidate := a.useCandidateFor(p)

	msg, err := istun.BuildBindingRequest(
		ufrag+":"+localUfrag,
		a.tieBreaker,
		a.controlling(),
		useCandidate,
		p.Local.peerPriority(a.opts.Compatibility, false),
		remotePassword,
	)
	if err != nil {
		return err
	}

	a.opts.Metrics.PairStateChanged(p.StreamID, p.ComponentID, p.State, PairInProgress)
	p.State = PairInProgress

	txID := msg.TransactionID
	a.stunTable.Put(txID, func(resp *istun.Message) {
		cl.processResponse(p, resp)
	}, cl.rto(), 7, func(attempt int) {
		// Resend the same request so the response still matches txID.
		_, _ = p.Local.base.SendMessages(p.Remote.Addr, [][]byte{msg.Raw})
	}, func() {
		if p.State == PairInProgress {
			p.State = PairFailed
			cl.updateState()
		}
	})

	_, err = p.Local.base.SendMessages(p.Remote.Addr, [][]byte{msg.Raw})
	return err
}

// useCandidateFor decides whether this check should carry USE-CANDIDATE,
// per spec §4.5: aggressive nomination sets it on every check once
// controlling; regular nomination sets it only on the one pair explicitly
// nominated by the application/controlling logic.
func (a *Agent) useCandidateFor(p *CandidatePair) bool {
	if !a.controlling() {
		return false
	}
	if a.opts.AggressiveNominate {
		return true
	}
	return p.Nominated
}

// processResponse applies spec §4.6/§7.3's response handling: success marks
// the pair Succeeded and, if nominated, promotes it to the component's
// selected pair; a role-conflict 487 resolves the role and puts the pair
// back to Waiting so it is checked again; any other failure marks it Failed
// and the check list's pacing loop picks up the next pair.
func (cl *Checklist) processResponse(p *CandidatePair, resp *istun.Message) {
	if p.State != PairInProgress {
		return
	}

	a := cl.stream.agent
	switch {
	case istun.IsSuccess(resp):
		a.opts.Metrics.PairStateChanged(p.StreamID, p.ComponentID, p.State, PairSucceeded)
		p.State = PairSucceeded
		if comp := cl.stream.Component(p.ComponentID); comp != nil && p.Nominated {
			if comp.maybePromote(p) {
				cl.stream.agent.onPairSelected(p)
			}
		}
		cl.pruneLowerPriority(p)
	default:
		if code, ok := istun.ErrorCode(resp); ok && code == 487 {
			cl.stream.agent.handleRoleConflict(resp)
			p.State = PairWaiting
			return
		}
		a.opts.Metrics.PairStateChanged(p.StreamID, p.ComponentID, p.State, PairFailed)
		p.State = PairFailed
	}

	cl.updateState()
}

// pruneLowerPriority cancels Waiting/Frozen pairs on the same component
// once a pair on that component has succeeded and nominated, per spec §4.6
// "once the state machine has selected a pair, remaining in-progress
// pairs... may be cancelled".
func (cl *Checklist) pruneLowerPriority(winner *CandidatePair) {
	if !winner.Nominated {
		return
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for _, p := range cl.pairs {
		if p == winner || p.ComponentID != winner.ComponentID {
			continue
		}
		if p.State == PairWaiting || p.State == PairFrozen {
			p.State = PairCancelled
		}
	}
}

// nominate marks p as the nominated pair for its component (spec §4.5),
// unfreezing it first if necessary.
func (cl *Checklist) nominate(p *CandidatePair) {
	cl.mu.Lock()
	if p.State == PairFrozen {
		p.State = PairWaiting
	}
	p.Nominated = true
	cl.mu.Unlock()
	cl.triggerCheck(p)
}

// updateState recomputes stream completion: Completed once every component
// has a nominated+succeeded pair, Failed once every pair on some component
// is Failed or Cancelled and no component has a pair still to be checked.
func (cl *Checklist) updateState() {
	cl.mu.Lock()
	if cl.state != checklistRunning {
		cl.mu.Unlock()
		return
	}

	byComponent := make(map[int][]*CandidatePair)
	for _, p := range cl.pairs {
		byComponent[p.ComponentID] = append(byComponent[p.ComponentID], p)
	}

	allDone := len(byComponent) > 0
	anyFailed := false
	for _, pairs := range byComponent {
		done := false
		failedAll := true
		for _, p := range pairs {
			if p.State == PairSucceeded && p.Nominated {
				done = true
			}
			if p.State != PairFailed && p.State != PairCancelled {
				failedAll = false
			}
		}
		if !done {
			allDone = false
		}
		if failedAll {
			anyFailed = true
		}
	}

	if allDone {
		cl.state = checklistCompleted
	} else if anyFailed && allComponentsTerminal(byComponent) {
		cl.state = checklistFailed
	}
	cl.mu.Unlock()
}

func allComponentsTerminal(byComponent map[int][]*CandidatePair) bool {
	for _, pairs := range byComponent {
		live := false
		for _, p := range pairs {
			if p.State == PairWaiting || p.State == PairFrozen || p.State == PairInProgress {
				live = true
			}
		}
		if live {
			return false
		}
	}
	return true
}

// findPair returns the pair matching a given local base and remote address,
// used when an incoming Binding request must be matched to (or create) a
// pair (spec §4.6/§7.3).
func (cl *Checklist) findPair(base Socket, remote Address) *CandidatePair {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for _, p := range cl.pairs {
		if p.Local.base == base && p.Remote.Addr.Equal(remote) {
			return p
		}
	}
	return nil
}

// adoptPeerReflexiveCandidate implements spec §4.2 peer-reflexive discovery
// on the checking side: an incoming Binding request from an address with no
// matching pair produces a new peer-reflexive remote candidate, paired with
// the local base it arrived on.
func (cl *Checklist) adoptPeerReflexiveCandidate(base Socket, remote Address, priority uint32, streamID, componentID int) *CandidatePair {
	local := &Candidate{
		Type:        Host,
		Transport:   UDP,
		Addr:        base.LocalAddr(),
		BaseAddr:    base.LocalAddr(),
		StreamID:    streamID,
		ComponentID: componentID,
		base:        base,
	}
	remoteCand := &Candidate{
		Type:        PeerReflexive,
		Transport:   UDP,
		Addr:        remote,
		BaseAddr:    remote,
		Priority:    priority,
		StreamID:    streamID,
		ComponentID: componentID,
		Foundation:  foundationString(int(priority)),
	}

	p := NewCandidatePair(local, remoteCand, cl.stream.agent.controlling())
	p.State = PairWaiting

	cl.mu.Lock()
	cl.pairs = append(cl.pairs, p)
	cl.mu.Unlock()
	cl.afterPairsChanged()
	return p
}

