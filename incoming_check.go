package ice

import (
	istun "github.com/lanikai/ice/internal/stun"
)

// handleIncomingPacket demultiplexes one datagram/frame read from a local
// socket: STUN-shaped data goes through the transaction table (matching a
// response) or the incoming-request path (spec §4.3/§7.3); everything else
// is data-plane traffic delivered to the component's receive queue.
func (a *Agent) handleIncomingPacket(s *Stream, c *Component, base Socket, from Address, data []byte) {
	if !istun.IsStunShaped(data) {
		c.deliverData(data)
		return
	}

	localUfrag, localPassword := s.LocalCredentials()
	remoteUfrag, _, haveRemote := s.RemoteCredentials()

	msg, outcome := istun.Validate(data, func(username string) (string, bool) {
		// Requests arrive addressed to "localUfrag:remoteUfrag" (spec §4.4);
		// responses carry no USERNAME and are matched by transaction id
		// instead, so this lookup only needs to handle the request path.
		if !haveRemote {
			return "", false
		}
		want := localUfrag + ":" + remoteUfrag
		if username != want {
			return "", false
		}
		return localPassword, true
	})

	switch outcome {
	case istun.Success:
		a.dispatchValidStun(s, c, base, from, msg)
	case istun.UnmatchedResponse:
		// Response with no outstanding transaction: offered to nothing
		// further, matching spec §4.3 "does not error the session".
	default:
		log.Debug("dropping STUN message from %s: outcome=%d", from, outcome)
	}
}

func (a *Agent) dispatchValidStun(s *Stream, c *Component, base Socket, from Address, msg *istun.Message) {
	if istun.IsSuccess(msg) || istun.IsError(msg) {
		if handler, ok := a.stunTable.Match(msg.TransactionID); ok {
			handler(msg)
		}
		return
	}

	// Binding request: find or adopt the pair, honor USE-CANDIDATE, and
	// reply (spec §7.3).
	p := s.checklist.findPair(base, from)
	if p == nil {
		priority, _ := istun.GetPriority(msg)
		p = s.checklist.adoptPeerReflexiveCandidate(base, from, priority, s.ID, c.ID)
	}

	if istun.HasUseCandidate(msg) && !p.Nominated {
		s.checklist.nominate(p)
	}

	_, localPassword := s.LocalCredentials()
	resp, err := istun.BuildBindingResponse(msg.TransactionID, from.UDPAddr(), localPassword, a.opts.Software)
	if err == nil {
		_, _ = base.SendMessages(from, [][]byte{resp.Raw})
	}

	s.checklist.triggerCheck(p)
}

// deliverData appends a data-plane payload to the component's receive
// queue for Component.Recv to pick up.
func (c *Component) deliverData(data []byte) {
	c.mu.Lock()
	cp := append([]byte(nil), data...)
	c.recvQueue = append(c.recvQueue, cp)
	c.mu.Unlock()
}
