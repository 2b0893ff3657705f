package session

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/rjenkinsjr/lufo/wire"
)

// udpState tracks the command-mode handshake.
type udpState uint

const (
	idle udpState = iota // bound, no command session
	helloSent            // password on the wire, hello reply pending
	commandMode          // hello acknowledged, command accepted
	closing              // endpoint going down
)

// String returns a name.
func (s udpState) String() string {
	switch s {
	case idle:
		return "idle"
	case helloSent:
		return "hello-sent"
	case commandMode:
		return "command-mode"
	case closing:
		return "closing"
	default:
		return fmt.Sprintf("state%d", uint(s))
	}
}

// UDP is the management engine: one datagram endpoint driving AT-command
// sessions against a single device. At most one exchange is in flight at a
// time. The engine applies no timeout of its own; cancellation is session
// death, which completes the pending exchange with ErrConnLost.
type UDP struct {
	config Config
	id     xid.ID
	fatal  Fatal

	conn   *net.UDPConn
	remote *net.UDPAddr

	mu       sync.Mutex // serializes exchanges, guards password and state
	password string
	state    udpState

	closed chan struct{}
	once   sync.Once

	// Counters accumulate exchange totals for this engine.
	Counters Counters
}

// DialUDP binds the management endpoint. The fatal handle is applied on the
// first transport or protocol fault, after which the engine is unusable.
func DialUDP(config Config, id xid.ID, fatal Fatal) (*UDP, error) {
	config.check()

	laddr := &net.UDPAddr{Port: config.LocalUDPPort}
	if config.LocalAddr != "" {
		laddr.IP = net.ParseIP(config.LocalAddr)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, errors.Wrap(err, "lufo: management bind")
	}

	remote, err := net.ResolveUDPAddr("udp4",
		net.JoinHostPort(config.Host, strconv.Itoa(config.RemoteUDPPort)))
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "lufo: management address")
	}

	return &UDP{
		config:   config,
		id:       id,
		fatal:    fatal,
		conn:     conn,
		remote:   remote,
		password: config.Password,
		closed:   make(chan struct{}),
	}, nil
}

// Close releases the endpoint. A pending exchange completes with
// ErrConnLost. Close is idempotent and never applies the fatal handle.
func (u *UDP) Close() error {
	var err error
	u.once.Do(func() {
		close(u.closed)
		err = u.conn.Close()
	})
	return err
}

// Dead tells whether the endpoint is down.
func (u *UDP) Dead() bool {
	select {
	case <-u.closed:
		return true
	default:
		return false
	}
}

// SetPassword replaces the hello credential for subsequent exchanges.
// To be applied after a successful password change on the device.
func (u *UDP) SetPassword(p string) {
	u.mu.Lock()
	u.password = p
	u.mu.Unlock()
}

// die classifies err after a failed substep. Faults on a closed endpoint
// are session death, not new fatalities.
func (u *UDP) die(err error) error {
	if u.Dead() || errors.Is(err, net.ErrClosed) {
		return ErrConnLost
	}
	u.Close()
	u.fatal(err)
	return err
}

func (u *UDP) setState(s udpState) {
	tracef(u.id, "udp", "%s to %s", u.state, s)
	u.state = s
}

func (u *UDP) write(p []byte) error {
	tracef(u.id, "udp", "send %q", p)
	_, err := u.conn.WriteToUDP(p, u.remote)
	return errors.Wrap(err, "lufo: management send")
}

func (u *UDP) read() ([]byte, error) {
	buf := make([]byte, 2048)
	n, _, err := u.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, errors.Wrap(err, "lufo: management receive")
	}
	tracef(u.id, "udp", "received %q", buf[:n])
	return buf[:n], nil
}

// commandMode drives the handshake from idle into command mode: the
// password as a literal datagram, an ip,mac,model hello reply, and the
// literal acknowledgement. A hello reply of 0.0.0.0 is the device's own
// access point talking about itself and matches any configured host.
func (u *UDP) commandMode() error {
	u.setState(helloSent)
	if err := u.write([]byte(u.password)); err != nil {
		return err
	}

	reply, err := u.read()
	if err != nil {
		return err
	}
	fields := wire.SplitList(string(reply))
	if len(fields) != 3 {
		return errors.Errorf("lufo: hello reply %q not an ip,mac,model triple", reply)
	}
	if ip := fields[0]; ip != u.config.Host && ip != "0.0.0.0" && ip != u.remote.IP.String() {
		return errors.Errorf("lufo: hello from unexpected host %q", ip)
	}

	if err := u.write([]byte(wire.HelloAck)); err != nil {
		return err
	}
	u.setState(commandMode)
	return nil
}

// endCommand terminates the command session, back to idle.
func (u *UDP) endCommand() error {
	if err := u.write(wire.EncodeAT(wire.EndCmd)); err != nil {
		return err
	}
	u.setState(idle)
	return nil
}

// Probe proves device reachability with an empty command cycle: command
// mode entered and terminated, nothing in between.
func (u *UDP) Probe() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Dead() {
		return ErrNoConn
	}

	if err := u.commandMode(); err != nil {
		return u.die(err)
	}
	if err := u.endCommand(); err != nil {
		return u.die(err)
	}
	return nil
}

// Exchange performs one complete command cycle: command mode, request,
// response, termination. The response collapses per the command's class:
// a single element for Scalar, the comma-separated values for List, nil
// for Void. A device denial surfaces as *wire.ATError without killing the
// session; everything else fatal is.
func (u *UDP) Exchange(cmd wire.Cmd, args ...string) ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Dead() {
		return nil, ErrNoConn
	}

	if err := u.commandMode(); err != nil {
		return nil, u.die(err)
	}
	if err := u.write(wire.EncodeAT(cmd, args...)); err != nil {
		return nil, u.die(err)
	}

	var values []string
	var denial *wire.ATError
	switch cmd.Resp {
	case wire.Void:
		break // no payload follows

	default:
		resp, err := u.read()
		if err != nil {
			return nil, u.die(err)
		}
		payload, err := wire.DecodeAT(resp)
		if err != nil {
			var atErr *wire.ATError
			if !errors.As(err, &atErr) {
				return nil, u.die(err)
			}
			u.Counters.ATErrors.Add(1)
			denial = atErr
		} else if cmd.Resp == wire.List {
			values = wire.SplitList(payload)
		} else {
			values = []string{payload}
		}
	}

	if err := u.endCommand(); err != nil {
		return nil, u.die(err)
	}
	u.Counters.Exchanges.Add(1)
	if denial != nil {
		return nil, denial
	}
	return values, nil
}

// ExchangeLines performs one command cycle for a Lines command: the device
// streams newline-separated comma lists terminated by the blank response
// trailer. The column-name header line is dropped; each remaining line
// splits into its values.
func (u *UDP) ExchangeLines(cmd wire.Cmd, args ...string) ([][]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Dead() {
		return nil, ErrNoConn
	}

	if err := u.commandMode(); err != nil {
		return nil, u.die(err)
	}
	if err := u.write(wire.EncodeAT(cmd, args...)); err != nil {
		return nil, u.die(err)
	}

	var accum bytes.Buffer
	for !bytes.HasSuffix(accum.Bytes(), []byte("\r\n\r\n")) {
		chunk, err := u.read()
		if err != nil {
			return nil, u.die(err)
		}
		accum.Write(chunk)
	}

	text := strings.TrimSuffix(accum.String(), "\r\n\r\n")
	if strings.HasPrefix(text, "+ERR") {
		_, err := wire.DecodeAT([]byte(text))
		var atErr *wire.ATError
		if !errors.As(err, &atErr) {
			return nil, u.die(err)
		}
		u.Counters.ATErrors.Add(1)
		if err := u.endCommand(); err != nil {
			return nil, u.die(err)
		}
		return nil, atErr
	}

	lines := strings.Split(text, "\n")
	var rows [][]string
	header := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "+ok"):
			continue // envelope prefix on its own line
		case !header:
			header = true // column names
		default:
			rows = append(rows, wire.SplitList(line))
		}
	}

	if err := u.endCommand(); err != nil {
		return nil, u.die(err)
	}
	u.Counters.Exchanges.Add(1)
	return rows, nil
}

// ExchangeFinal performs the cycle of a session-terminating command:
// command mode and request, no termination marker. With expect set the
// device reply must match it after envelope stripping; any other reply is
// a protocol fault. The caller tears the session down on return.
func (u *UDP) ExchangeFinal(cmd wire.Cmd, expect string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Dead() {
		return ErrNoConn
	}

	if err := u.commandMode(); err != nil {
		return u.die(err)
	}
	if err := u.write(wire.EncodeAT(cmd)); err != nil {
		return u.die(err)
	}

	if expect != "" {
		resp, err := u.read()
		if err != nil {
			return u.die(err)
		}
		got := strings.TrimSpace(strings.TrimSuffix(string(resp), "\r\n\r\n"))
		got = strings.TrimPrefix(strings.TrimPrefix(got, "+ok"), "=")
		got = strings.TrimSpace(got)
		if got != expect {
			return u.die(errors.Errorf("lufo: reply %q to %s, want %q", got, cmd.Word, expect))
		}
	}

	u.Counters.Exchanges.Add(1)
	u.setState(closing)
	return nil
}
