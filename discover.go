package lufo

import (
	"bytes"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/rjenkinsjr/lufo/session"
	"github.com/rjenkinsjr/lufo/wire"
)

// DefaultDiscoverTimeout bounds a discovery round.
// Discovery is the only operation with a timeout of its own.
const DefaultDiscoverTimeout = 3 * time.Second

// Identity names a controller on the LAN, as established by the
// discovery hello exchange.
type Identity struct {
	IP    string `json:"ip"`
	MAC   string `json:"mac"` // lowercase, colon-separated
	Model string `json:"model"`
}

// DiscoverOptions parameterize a discovery round.
// The default is applied for each unspecified value.
type DiscoverOptions struct {
	// Password is the hello credential, session.DefaultPassword
	// unless set; must be 1 to 20 ASCII characters.
	Password string

	// Port is the remote management port, session.DefaultUDPPort
	// unless set.
	Port int

	// Broadcast overrides the limited broadcast address, e.g. with a
	// directed subnet broadcast like 192.168.1.255.
	Broadcast string

	// Timeout bounds the collection of replies. Unset, zero or
	// negative selects DefaultDiscoverTimeout.
	Timeout time.Duration

	// LocalAddr selects the interface to broadcast from.
	LocalAddr string
}

// Discover finds controllers with a single broadcast hello and returns
// every device responding within the timeout. The list may be empty.
// No session is involved; the socket lives for this round only.
func Discover(o DiscoverOptions) ([]Identity, error) {
	hello := o.Password
	if hello == "" {
		hello = session.DefaultPassword
	}
	if err := CheckPassword(hello); err != nil {
		return nil, err
	}
	port := o.Port
	if port == 0 {
		port = session.DefaultUDPPort
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultDiscoverTimeout
	}

	laddr := &net.UDPAddr{}
	if o.LocalAddr != "" {
		laddr.IP = net.ParseIP(o.LocalAddr)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, errors.Wrap(err, "lufo: discovery bind")
	}
	defer conn.Close()

	if err := enableBroadcast(conn); err != nil {
		return nil, err
	}

	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: port}
	if o.Broadcast != "" {
		dst.IP = net.ParseIP(o.Broadcast)
		if dst.IP == nil {
			return nil, inputErrorf("broadcast address %q not an IP", o.Broadcast)
		}
	}
	if _, err := conn.WriteToUDP([]byte(hello), dst); err != nil {
		return nil, errors.Wrap(err, "lufo: discovery hello")
	}

	conn.SetReadDeadline(time.Now().Add(timeout))

	var found []Identity
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				return found, nil // collection complete
			}
			return found, errors.Wrap(err, "lufo: discovery receive")
		}

		if bytes.Equal(buf[:n], []byte(hello)) {
			continue // own broadcast echo
		}
		fields := wire.SplitList(string(buf[:n]))
		if len(fields) != 3 {
			continue // not a hello reply
		}
		found = append(found, Identity{
			IP:    fields[0],
			MAC:   NormalizeMAC(fields[1]),
			Model: fields[2],
		})
	}
}

// NormalizeMAC rewrites a hardware address to lowercase colon-separated
// hex. Devices report the address bare, dash-separated or
// colon-separated depending on firmware. Input with other than twelve
// hex digits comes back lowercased but otherwise untouched.
func NormalizeMAC(s string) string {
	var hex []byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
			hex = append(hex, c)
		case c >= 'A' && c <= 'F':
			hex = append(hex, c+('a'-'A'))
		case c == ':' || c == '-' || c == '.' || c == ' ':
			continue
		default:
			return strings.ToLower(s)
		}
	}
	if len(hex) != 12 {
		return strings.ToLower(s)
	}

	out := make([]byte, 0, 17)
	for i, c := range hex {
		if i > 0 && i%2 == 0 {
			out = append(out, ':')
		}
		out = append(out, c)
	}
	return string(out)
}
