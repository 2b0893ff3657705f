//go:build unix

package lufo

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// enableBroadcast permits sends to the limited broadcast address.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return errors.Wrap(err, "lufo: discovery socket")
	}
	var optErr error
	err = raw.Control(func(fd uintptr) {
		optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err == nil {
		err = optErr
	}
	return errors.Wrap(err, "lufo: discovery broadcast option")
}
