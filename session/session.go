// Package session provides the two transport engines of a UFO session: the
// UDP command-mode engine for management and the TCP stream engine for
// real-time output. A lufo.Device owns one of each and coordinates their
// teardown; the engines themselves never outlive a fatal error.
package session

import (
	"errors"
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrConnLost signals cancellation of a pending operation by
	// session death.
	ErrConnLost = errors.New("lufo: connection lost")

	// ErrNoConn signals unable to perform.
	ErrNoConn = errors.New("lufo: no connection")
)

// Trace activates wire logging.
var Trace = false

// Log receives wire traces and engine diagnostics.
var Log = logrus.StandardLogger()

func tracef(id xid.ID, side, format string, args ...interface{}) {
	if !Trace {
		return
	}
	Log.WithFields(logrus.Fields{"session": id, "side": side}).Debugf(format, args...)
}

// Fatal is a teardown handle. Each engine gets one and applies it at most
// once, on the transport or protocol fault that killed it. The handle owner
// is expected to close the sibling engine too; see the lufo.Device
// documentation on disconnect aggregation.
type Fatal func(err error)

// Counters accumulate transfer totals of one engine.
// All updates are atomic; Load for a consistent-enough snapshot.
type Counters struct {
	FramesOut  atomic.Uint64 // TCP frames written
	StatusReqs atomic.Uint64 // TCP status exchanges completed
	Reconnects atomic.Uint64 // TCP transparent reconnects
	Exchanges  atomic.Uint64 // UDP command exchanges completed
	ATErrors   atomic.Uint64 // UDP exchanges denied by the device
}

// CounterValues is a point-in-time copy of Counters.
type CounterValues struct {
	FramesOut  uint64
	StatusReqs uint64
	Reconnects uint64
	Exchanges  uint64
	ATErrors   uint64
}

// Load snapshots the totals.
func (c *Counters) Load() CounterValues {
	return CounterValues{
		FramesOut:  c.FramesOut.Load(),
		StatusReqs: c.StatusReqs.Load(),
		Reconnects: c.Reconnects.Load(),
		Exchanges:  c.Exchanges.Load(),
		ATErrors:   c.ATErrors.Load(),
	}
}

// Add merges another snapshot in.
func (v CounterValues) Add(o CounterValues) CounterValues {
	v.FramesOut += o.FramesOut
	v.StatusReqs += o.StatusReqs
	v.Reconnects += o.Reconnects
	v.Exchanges += o.Exchanges
	v.ATErrors += o.ATErrors
	return v
}
