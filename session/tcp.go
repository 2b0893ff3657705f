package session

import (
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/rjenkinsjr/lufo/wire"
)

// TCP is the output engine: one long-lived stream connection carrying
// command frames out and status frames back. Writes are fire-and-forget;
// only Status awaits octets from the device, into a fixed reassembly
// buffer whose index resets between requests so stale octets cannot leak
// across exchanges. At most one status request is in flight.
type TCP struct {
	config Config
	id     xid.ID
	fatal  Fatal

	mu   sync.Mutex // serializes writes and the status exchange
	conn net.Conn

	// reassembly buffer for the pending status response
	buf  [wire.StatusSize]byte
	fill int

	closed chan struct{}
	once   sync.Once

	// Counters accumulate transfer totals for this engine.
	Counters Counters
}

// DialTCP connects the output engine. The fatal handle is applied on the
// first unrecoverable transport or protocol fault.
func DialTCP(config Config, id xid.ID, fatal Fatal) (*TCP, error) {
	config.check()

	t := &TCP{
		config: config,
		id:     id,
		fatal:  fatal,
		closed: make(chan struct{}),
	}
	conn, err := t.dial()
	if err != nil {
		return nil, err
	}
	t.conn = conn
	return t, nil
}

func (t *TCP) dial() (net.Conn, error) {
	var d net.Dialer
	if t.config.LocalTCPPort != 0 || t.config.LocalAddr != "" {
		laddr := &net.TCPAddr{Port: t.config.LocalTCPPort}
		if t.config.LocalAddr != "" {
			laddr.IP = net.ParseIP(t.config.LocalAddr)
		}
		d.LocalAddr = laddr
	}

	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.RemoteTCPPort))
	conn, err := d.Dial("tcp4", addr)
	if err != nil {
		return nil, errors.Wrap(err, "lufo: output connect")
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(!t.config.Coalesce)
	}
	return conn, nil
}

// Close releases the connection. A pending status exchange completes with
// ErrConnLost. Close is idempotent and never applies the fatal handle.
func (t *TCP) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		err = t.conn.Close()
	})
	return err
}

// Dead tells whether the engine is down.
func (t *TCP) Dead() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// idleClose tells whether err is a close initiated by the peer with no
// socket error on record. The device drops idle connections this way;
// such a close warrants a silent reconnect. An error-accompanied close,
// connection reset first of all, is fatal.
func idleClose(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.EPIPE)
}

func (t *TCP) die(err error) error {
	if t.Dead() || errors.Is(err, net.ErrClosed) {
		return ErrConnLost
	}
	t.Close()
	t.fatal(err)
	return err
}

// reconnect replaces the connection after an idle close.
func (t *TCP) reconnect() error {
	tracef(t.id, "tcp", "idle close, reconnecting")
	t.conn.Close()

	conn, err := t.dial()
	if err != nil {
		return err
	}
	t.conn = conn
	t.Counters.Reconnects.Add(1)
	return nil
}

// write puts one frame on the wire whole, recovering once from an idle
// close with a silent reconnect.
func (t *TCP) write(frame []byte) error {
	tracef(t.id, "tcp", "send %#x", frame)

	_, err := t.conn.Write(frame)
	if err != nil && idleClose(err) && !t.Dead() {
		if err = t.reconnect(); err == nil {
			_, err = t.conn.Write(frame)
		}
	}
	if err != nil {
		return errors.Wrap(err, "lufo: output send")
	}
	t.Counters.FramesOut.Add(1)
	return nil
}

// Send writes a sealed command frame. Frames reach the device in call
// order; there is no acknowledgement to await.
func (t *TCP) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Dead() {
		return ErrNoConn
	}
	if err := t.write(frame); err != nil {
		return t.die(err)
	}
	return nil
}

// Status performs one status exchange: the request constant out, fourteen
// octets back, decoded and verified. A decode fault is fatal. An idle
// close during the exchange restarts it once on a fresh connection.
func (t *TCP) Status() (*wire.Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Dead() {
		return nil, ErrNoConn
	}

	retried := false
	for {
		s, err := t.statusExchange()
		if err == nil {
			t.Counters.StatusReqs.Add(1)
			return s, nil
		}
		if !retried && idleClose(errors.Cause(err)) && !t.Dead() {
			retried = true
			if err := t.reconnect(); err != nil {
				return nil, t.die(err)
			}
			continue
		}
		return nil, t.die(err)
	}
}

func (t *TCP) statusExchange() (*wire.Status, error) {
	t.fill = 0
	if err := t.write(wire.StatusRequest); err != nil {
		return nil, err
	}

	for t.fill < wire.StatusSize {
		n, err := t.conn.Read(t.buf[t.fill:])
		t.fill += n
		if err != nil {
			return nil, errors.Wrap(err, "lufo: status receive")
		}
	}
	tracef(t.id, "tcp", "received %#x", t.buf[:])

	s, err := wire.DecodeStatus(t.buf[:])
	if err != nil {
		return nil, err
	}
	return s, nil
}
