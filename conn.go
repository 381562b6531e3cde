package ice

import (
	"github.com/lanikai/ice/iceerr"
)

// Send writes data to the peer over this component's currently selected
// candidate pair (spec §5 "send/recv once connected"). It returns
// iceerr.BrokenPipe if no pair has been selected yet.
func (c *Component) Send(data []byte) (int, error) {
	p := c.SelectedPair()
	if p == nil {
		return 0, iceerr.New("Component.Send", iceerr.BrokenPipe)
	}

	var n int
	var err error
	if p.Local.base.IsReliable() {
		n, err = p.Local.base.SendMessagesReliable(p.Remote.Addr, data)
	} else {
		n, err = p.Local.base.SendMessages(p.Remote.Addr, [][]byte{data})
	}
	if err != nil {
		return 0, iceerr.Wrap("Component.Send", iceerr.SocketIO, err)
	}
	c.stream.agent.opts.Metrics.BytesSent(c.StreamID, c.ID, len(data))
	return n, nil
}

// Recv returns the next queued data-plane payload, or (nil, iceerr.WouldBlock)
// if none is available. Incoming STUN traffic never appears here; it is
// consumed entirely by the Agent's check/keepalive machinery.
func (c *Component) Recv() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.recvQueue) == 0 {
		return nil, iceerr.New("Component.Recv", iceerr.WouldBlock)
	}
	data := c.recvQueue[0]
	c.recvQueue = c.recvQueue[1:]
	c.stream.agent.opts.Metrics.BytesReceived(c.StreamID, c.ID, len(data))
	return data, nil
}
