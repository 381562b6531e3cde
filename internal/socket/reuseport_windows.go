//go:build windows

package socket

import "net"

// reusePortListenConfig has no SO_REUSEPORT equivalent wired up for Windows;
// the port-range retry loop still works, it just cannot rebind a just-closed
// port ahead of the OS's own TIME_WAIT-equivalent handling.
func reusePortListenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
