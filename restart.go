package ice

import "github.com/lanikai/ice/iceerr"

// Restart performs an ICE restart on stream (spec §4.4): fresh local
// credentials are generated, every remote candidate and check-list pair
// learned under the old credentials is discarded, and the component states
// revert to Gathering so the caller can gather and exchange candidates
// again. The stream's sockets are not closed; a new gathering binds new
// sockets and the old ones stay open.
func (s *Stream) Restart() error {
	s.mu.Lock()
	if s.agent == nil {
		s.mu.Unlock()
		return iceerr.New("Stream.Restart", iceerr.Closed)
	}
	ufrag, password := generateCredentials()
	s.localUfrag, s.localPassword = ufrag, password
	s.remoteUfrag, s.remotePassword = "", ""
	s.gatheringDone = false
	s.checklist = newChecklist(s)
	s.mu.Unlock()

	for _, c := range s.Components() {
		c.mu.Lock()
		c.selected = nil
		c.selectedPairPriority = nil
		c.localCandidates = nil
		c.state = ComponentGathering
		c.mu.Unlock()
	}

	return nil
}

// SetPortRange overrides the host-candidate port range for future gathering
// on this agent (spec §8).
func (a *Agent) SetPortRange(min, max int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if min == 0 && max == 0 {
		a.opts.PortMin, a.opts.PortMax = 0, 0
		return nil
	}
	if min > max {
		return iceerr.New("Agent.SetPortRange", iceerr.InvalidArgument)
	}
	a.opts.PortMin, a.opts.PortMax = min, max
	return nil
}
