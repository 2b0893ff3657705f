// Package lufo drives LEDENET "UFO" WiFi RGBW lighting controllers, as
// sold under that brand and its rebrands. Every device exposes two
// coexisting services: a broadcast-capable UDP channel speaking textual AT
// commands for management, and a binary TCP channel for real-time light
// output. A Device runs both as one logical session; Discover finds
// controllers on the LAN without a session.
//
// # Session lifecycle
//
// A Device is either alive, with both channels usable, or dead. Transport
// and protocol faults on either channel cascade: the failing engine tears
// itself down, the sibling follows, and the disconnect callback fires
// exactly once with an aggregate of whatever went wrong, or nil after an
// ordered Close. Device denials (AT errors) and input validation failures
// concern single calls only and never kill the session.
package lufo

import (
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/rjenkinsjr/lufo/session"
)

// DisconnectError aggregates what killed a session. Either side may be
// nil; a session dying of a UDP protocol fault usually takes a healthy
// TCP engine down with it, and vice versa.
type DisconnectError struct {
	UDP error // management channel failure, if any
	TCP error // output channel failure, if any
}

// Error implements the builtin.error interface.
func (e *DisconnectError) Error() string {
	switch {
	case e.UDP != nil && e.TCP != nil:
		return fmt.Sprintf("lufo: session lost; management: %s; output: %s", e.UDP, e.TCP)
	case e.UDP != nil:
		return "lufo: session lost; management: " + e.UDP.Error()
	case e.TCP != nil:
		return "lufo: session lost; output: " + e.TCP.Error()
	default:
		return "lufo: session lost"
	}
}

// Device is a single-controller session over both channels.
// Methods are safe for concurrent use; each channel serializes to at most
// one outstanding operation.
type Device struct {
	config session.Config
	id     xid.ID
	udp    *session.UDP
	tcp    *session.TCP

	mu           sync.Mutex
	dead         bool
	udpErr       error
	tcpErr       error
	onDisconnect func(*DisconnectError)
	notify       sync.Once
}

// Dial establishes a session: the management endpoint is bound and probed
// with a command-mode round trip, then the output channel connects. Any
// failure leaves nothing behind.
func Dial(config session.Config) (*Device, error) {
	if config.Password != "" {
		if err := CheckPassword(config.Password); err != nil {
			return nil, err
		}
	}

	d := &Device{config: config, id: xid.New()}

	udp, err := session.DialUDP(config, d.id, d.udpFatal)
	if err != nil {
		return nil, err
	}
	d.udp = udp

	if err := udp.Probe(); err != nil {
		udp.Close()
		d.mu.Lock()
		d.dead = true
		d.mu.Unlock()
		return nil, err
	}

	tcp, err := session.DialTCP(config, d.id, d.tcpFatal)
	if err != nil {
		udp.Close()
		d.mu.Lock()
		d.dead = true
		d.mu.Unlock()
		return nil, err
	}
	d.tcp = tcp

	return d, nil
}

// ID is the session identifier used in traces and metric labels.
func (d *Device) ID() string { return d.id.String() }

// Host is the configured device address.
func (d *Device) Host() string { return d.config.Host }

// Dead tells whether the session is down.
func (d *Device) Dead() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dead
}

// Counters snapshots the transfer totals of both engines.
func (d *Device) Counters() session.CounterValues {
	return d.udp.Counters.Load().Add(d.tcp.Counters.Load())
}

// OnDisconnect registers the death notification. The callback receives
// nil after an ordered Close and a *DisconnectError otherwise, exactly
// once either way.
func (d *Device) OnDisconnect(f func(*DisconnectError)) {
	d.mu.Lock()
	d.onDisconnect = f
	d.mu.Unlock()
}

// Close tears the session down in order. Pending operations complete
// with session.ErrConnLost.
func (d *Device) Close() error {
	d.teardown(nil, nil)
	return nil
}

func (d *Device) udpFatal(err error) { d.teardown(err, nil) }
func (d *Device) tcpFatal(err error) { d.teardown(nil, err) }

// teardown makes both sides dead and fires the disconnect notification
// once both are. Late errors after death are dropped; the notification
// carries the first ones recorded.
func (d *Device) teardown(udpErr, tcpErr error) {
	d.mu.Lock()
	if !d.dead {
		d.dead = true
		d.udpErr = udpErr
		d.tcpErr = tcpErr
	}
	aggr := (*DisconnectError)(nil)
	if d.udpErr != nil || d.tcpErr != nil {
		aggr = &DisconnectError{UDP: d.udpErr, TCP: d.tcpErr}
	}
	callback := d.onDisconnect
	d.mu.Unlock()

	// engines may be absent when a fault hits mid-Dial
	if d.udp != nil {
		d.udp.Close()
	}
	if d.tcp != nil {
		d.tcp.Close()
	}

	d.notify.Do(func() {
		if callback != nil {
			callback(aggr)
		}
	})
}
