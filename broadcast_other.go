//go:build !unix

package lufo

import "net"

// enableBroadcast is covered by the platform default here.
func enableBroadcast(conn *net.UDPConn) error { return nil }
