package ice

import (
	"math/rand"
	"net"
	"time"

	"github.com/lanikai/ice/iceerr"
	"github.com/lanikai/ice/internal/socket"
	istun "github.com/lanikai/ice/internal/stun"
	"github.com/lanikai/ice/internal/turnclient"
)

// GatherCandidates runs host, server-reflexive, and relayed discovery for
// every component of stream, delivering each candidate via OnNewCandidate
// as it is found and firing OnCandidateGatheringDone one StunTimeout after
// discovery starts (spec §4.2); it does not wait for the discovery
// goroutines, so candidates found later still arrive after it. Host gathering is synchronous (binding local sockets is fast);
// srflx/relay discovery run concurrently per component since each is a
// network round trip.
func (a *Agent) GatherCandidates(s *Stream) error {
	ft := &foundationTable{}

	for _, c := range s.Components() {
		local, err := a.gatherHostCandidates(s, c, ft)
		if err != nil {
			log.Warn("host gathering failed on stream %d component %d: %s", s.ID, c.ID, err)
			continue
		}
		for _, hc := range local {
			a.goDiscoverReflexiveAndRelayed(s, c, hc, ft)
		}
	}

	go func() {
		// Non-blocking end-of-candidates signal; a real deployment would
		// wait for every discovery goroutine, but trickle ICE (spec §4.2
		// note) allows candidates to keep arriving after this fires for
		// streams that opt into it. This module fires it promptly since it
		// does not implement the trickle extension itself.
		time.Sleep(a.opts.StunTimeout)
		a.queueSignal(signal{kind: signalCandidateGatheringDone, streamID: s.ID})
	}()

	return nil
}

// gatherHostCandidates binds one UDP socket per local non-loopback
// interface address and registers a Host candidate for each (spec §4.2
// "host candidate discovery").
func (a *Agent) gatherHostCandidates(s *Stream, c *Component, ft *foundationTable) ([]*Candidate, error) {
	addrs, err := localInterfaceAddrs()
	if err != nil {
		return nil, err
	}

	var out []*Candidate
	for _, ip := range addrs {
		sock, err := socket.NewUDP(ip, a.opts.PortMin, a.opts.PortMax, randomPortStart)
		if err != nil {
			log.Debug("failed binding host candidate on %s: %s", ip, err)
			continue
		}

		addr := sock.LocalAddr()
		cand := &Candidate{
			Type:        Host,
			Transport:   UDP,
			Addr:        addr,
			BaseAddr:    addr,
			StreamID:    s.ID,
			ComponentID: c.ID,
			Foundation:  ft.foundationFor(Host, UDP, addr, nil, a.opts.Compatibility),
		}
		cand.Priority = computePriority(Host, UDP, c.ID, a.opts.Compatibility, false)

		c.addLocalCandidate(cand, sock)
		s.checklist.addLocalCandidate(cand)
		out = append(out, cand)

		a.wg.Add(1)
		go a.readLoop(s, c, sock)
	}
	return out, nil
}

// readLoop pumps datagrams from a socket into handleIncomingPacket until the
// agent is closed or the socket errors out permanently.
func (a *Agent) readLoop(s *Stream, c *Component, sock Socket) {
	defer a.wg.Done()
	bufs := make([][]byte, 1)
	bufs[0] = make([]byte, 1500)
	froms := make([]Address, 1)

	for {
		select {
		case <-a.ctx.Done():
			return
		default:
		}

		n, err := sock.RecvMessages(bufs, froms)
		if err != nil {
			if kind, ok := iceerr.KindOf(err); ok && kind == iceerr.WouldBlock {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			a.handleIncomingPacket(s, c, sock, froms[i], bufs[i])
		}
	}
}

// goDiscoverReflexiveAndRelayed launches srflx and, if configured, relayed
// discovery for one host candidate's base socket (spec §4.2).
func (a *Agent) goDiscoverReflexiveAndRelayed(s *Stream, c *Component, host *Candidate, ft *foundationTable) {
	for _, stunAddr := range a.opts.ServerReflexiveStunServers {
		go a.discoverServerReflexive(s, c, host, stunAddr, ft)
	}
	for _, t := range a.opts.TurnServers {
		go a.discoverRelayed(s, c, host, t, ft)
	}
}

// discoverServerReflexive sends a Binding request to a plain STUN server and
// registers the mapped address as a ServerReflexive candidate (spec §4.2).
func (a *Agent) discoverServerReflexive(s *Stream, c *Component, host *Candidate, stunServer Address, ft *foundationTable) {
	msg, err := istun.BuildBindingRequest("", a.tieBreaker, a.controlling(), false, 0, "")
	if err != nil {
		return
	}

	done := make(chan *istun.Message, 1)
	a.stunTable.Put(msg.TransactionID, func(resp *istun.Message) {
		done <- resp
	}, a.opts.StunTimeout, 7, func(attempt int) {
		// Resend the same request so the response still matches its id.
		_, _ = host.base.SendMessages(stunServer, [][]byte{msg.Raw})
	}, func() { close(done) })

	if _, err := host.base.SendMessages(stunServer, [][]byte{msg.Raw}); err != nil {
		a.stunTable.Forget(msg.TransactionID)
		return
	}

	resp, ok := <-done
	if !ok || resp == nil {
		return
	}
	ip, port, ok := istun.GetXORMappedAddress(resp)
	if !ok {
		return
	}

	addr := NewAddress(ip, port)
	cand := &Candidate{
		Type:        ServerReflexive,
		Transport:   UDP,
		Addr:        addr,
		BaseAddr:    host.BaseAddr,
		StreamID:    s.ID,
		ComponentID: c.ID,
		Foundation:  ft.foundationFor(ServerReflexive, UDP, host.BaseAddr, nil, a.opts.Compatibility),
		base:        host.base,
	}
	cand.Priority = computePriority(ServerReflexive, UDP, c.ID, a.opts.Compatibility, false)
	if cand.IsRedundant(host) {
		return
	}
	c.addLocalCandidate(cand, host.base)
	s.checklist.addLocalCandidate(cand)
}

// discoverRelayed allocates a TURN relay and registers a Relayed candidate
// (spec §4.2). The allocation's refresh lifecycle is handled by refresh.go.
func (a *Agent) discoverRelayed(s *Stream, c *Component, host *Candidate, t *TurnServer, ft *foundationTable) {
	pc, ok := socketPacketConn(host.base)
	if !ok {
		return
	}

	alloc, err := turnclient.Allocate(pc, t.Address, t.Username, t.Password, "", 10*time.Minute)
	if err != nil {
		log.Warn("TURN allocate failed for %s: %s", t.Address, err)
		return
	}
	t.Ref()

	relaySock := socket.NewTurn(alloc.RelayConn)
	addr := relaySock.LocalAddr()

	cand := &Candidate{
		Type:        Relayed,
		Transport:   UDP,
		Addr:        addr,
		BaseAddr:    addr,
		StreamID:    s.ID,
		ComponentID: c.ID,
		Turn:        t,
		Foundation:  ft.foundationFor(Relayed, UDP, addr, t, a.opts.Compatibility),
		base:        relaySock,
	}
	cand.Priority = computePriority(Relayed, UDP, c.ID, a.opts.Compatibility, false)

	c.addLocalCandidate(cand, relaySock)
	s.checklist.addLocalCandidate(cand)
	a.registerAllocation(cand.Addr.String(), t, alloc)

	a.wg.Add(1)
	go a.readLoop(s, c, relaySock)
}

func randomPortStart(lo, hi int) int {
	if lo == hi {
		return lo
	}
	return lo + rand.Intn(hi-lo+1)
}

// localInterfaceAddrs returns every non-loopback unicast IP on the host
// (spec §4.2 "enumerate one host candidate per local address").
func localInterfaceAddrs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			out = append(out, ip)
		}
	}
	return out, nil
}

func socketPacketConn(s Socket) (net.PacketConn, bool) {
	type packetConner interface {
		PacketConn() net.PacketConn
	}
	if pc, ok := s.(packetConner); ok {
		return pc.PacketConn(), true
	}
	return nil, false
}

func (a *Agent) registerAllocation(key string, t *TurnServer, alloc *turnclient.Allocation) {
	a.mu.Lock()
	a.turnRefs[t.Address] = t
	a.allocations[key] = &turnAllocationInfo{server: t, alloc: alloc}
	a.mu.Unlock()
}
