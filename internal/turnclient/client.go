// Package turnclient wraps github.com/pion/turn/v4's client for the one
// thing this module needs from it: a relayed transport address plus a
// conn that can be driven by the same read-loop machinery as any other
// socket (spec §4.2 "Relayed candidate discovery", §12 "forget_relays").
package turnclient

import (
	"net"
	"time"

	"github.com/pion/turn/v4"

	"github.com/lanikai/ice/iceerr"
)

// Allocation holds a live TURN allocation: the client that owns it (needed
// to Close and to CreatePermission/Refresh) and the relay conn data is
// actually sent/received through.
type Allocation struct {
	Client    *turn.Client
	RelayConn net.PacketConn
	RelayAddr net.Addr
}

// Allocate performs a TURN Allocate against serverAddr using conn as the
// client-to-server transport, returning the relayed transport address and
// the client handle used for refresh/permission/channel-bind operations.
func Allocate(conn net.PacketConn, serverAddr, username, password, realm string, lifetime time.Duration) (*Allocation, error) {
	cfg := &turn.ClientConfig{
		STUNServerAddr: serverAddr,
		TURNServerAddr: serverAddr,
		Conn:           conn,
		Username:       username,
		Password:       password,
		Realm:          realm,
	}

	client, err := turn.NewClient(cfg)
	if err != nil {
		return nil, iceerr.Wrap("turnclient.Allocate", iceerr.SocketIO, err)
	}
	if err := client.Listen(); err != nil {
		client.Close()
		return nil, iceerr.Wrap("turnclient.Allocate", iceerr.SocketIO, err)
	}

	relayConn, err := client.Allocate()
	if err != nil {
		client.Close()
		return nil, iceerr.Wrap("turnclient.Allocate", iceerr.SocketIO, err)
	}

	return &Allocation{
		Client:    client,
		RelayConn: relayConn,
		RelayAddr: relayConn.LocalAddr(),
	}, nil
}

// Refresh extends the allocation's lifetime (spec §4.2/§12).
func (a *Allocation) Refresh(lifetime time.Duration) error {
	if err := a.Client.Refresh(lifetime); err != nil {
		return iceerr.Wrap("Allocation.Refresh", iceerr.SocketIO, err)
	}
	return nil
}

// CreatePermission installs a permission for peer, required before relaying
// data to/from it (RFC 5766 §9).
func (a *Allocation) CreatePermission(peer net.Addr) error {
	udpAddr, ok := peer.(*net.UDPAddr)
	if !ok {
		return iceerr.New("Allocation.CreatePermission", iceerr.InvalidArgument)
	}
	if err := a.Client.CreatePermission(udpAddr); err != nil {
		return iceerr.Wrap("Allocation.CreatePermission", iceerr.SocketIO, err)
	}
	return nil
}

// Close tears down the allocation and its underlying client.
func (a *Allocation) Close() error {
	_ = a.RelayConn.Close()
	a.Client.Close()
	return nil
}
