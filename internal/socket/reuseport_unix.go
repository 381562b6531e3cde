//go:build !windows

package socket

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// reusePortListenConfig returns a net.ListenConfig that sets SO_REUSEPORT on
// the socket before bind, so the port-range retry loop (spec §4.2) can rebind
// a port this process just released (e.g. after RemoveStream) without
// waiting out the kernel's TIME_WAIT-style hold.
func reusePortListenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
}
