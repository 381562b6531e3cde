package ice

import (
	"sync"

	"github.com/lanikai/ice/iceerr"
)

// Stream groups one or more Components that share a single check-list and a
// single set of ICE credentials (spec §3: "a Stream is a media-independent
// pairing of candidate sets, e.g. audio or a data channel").
type Stream struct {
	ID    int
	agent *Agent

	mu sync.RWMutex

	components map[int]*Component

	localUfrag, localPassword   string
	remoteUfrag, remotePassword string

	checklist *Checklist

	gatheringDone bool
}

func newStream(agent *Agent, id int, numComponents int, ufrag, password string) (*Stream, error) {
	if numComponents < 1 || numComponents > agent.opts.MaxComponents {
		return nil, iceerr.New("newStream", iceerr.InvalidArgument)
	}
	s := &Stream{
		ID:             id,
		agent:          agent,
		components:     make(map[int]*Component, numComponents),
		localUfrag:     ufrag,
		localPassword:  password,
	}
	for i := 1; i <= numComponents; i++ {
		s.components[i] = newComponent(s, i)
	}
	s.checklist = newChecklist(s)
	return s, nil
}

// Component returns the component with the given id, or nil if it doesn't
// exist on this stream.
func (s *Stream) Component(id int) *Component {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.components[id]
}

// Components returns every component of this stream, ordered by id.
func (s *Stream) Components() []*Component {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Component, 0, len(s.components))
	for i := 1; i <= len(s.components); i++ {
		if c, ok := s.components[i]; ok {
			out = append(out, c)
		}
	}
	return out
}

// LocalCredentials returns the ICE ufrag/password this stream advertises to
// the peer (spec §4.4).
func (s *Stream) LocalCredentials() (ufrag, password string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localUfrag, s.localPassword
}

// SetRemoteCredentials records the peer's ufrag/password for this stream
// (spec §4.4); required before any remote candidate is added.
func (s *Stream) SetRemoteCredentials(ufrag, password string) {
	s.mu.Lock()
	s.remoteUfrag, s.remotePassword = ufrag, password
	s.mu.Unlock()
}

// RemoteCredentials returns the peer's ufrag/password, if set.
func (s *Stream) RemoteCredentials() (ufrag, password string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remoteUfrag, s.remotePassword, s.remoteUfrag != ""
}

// AddRemoteCandidate adds one remote candidate to the named component,
// forming new pairs against every local candidate already gathered on that
// component and scheduling them into the check-list (spec §4.6 "forming
// check lists").
func (s *Stream) AddRemoteCandidate(componentID int, cand *Candidate) error {
	s.mu.Lock()
	c, ok := s.components[componentID]
	s.mu.Unlock()
	if !ok {
		return iceerr.New("Stream.AddRemoteCandidate", iceerr.InvalidArgument)
	}
	cand.StreamID = s.ID
	cand.ComponentID = componentID
	_ = c
	return s.checklist.addRemoteCandidate(cand)
}

func (s *Stream) localCandidateCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.components {
		n += len(c.LocalCandidates())
	}
	return n
}
