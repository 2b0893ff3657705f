package exporter

import (
	"net"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rjenkinsjr/lufo"
	"github.com/rjenkinsjr/lufo/session"
)

// dialMockDevice runs the minimum of both device services for a live
// session: hello handling on the management side, a silent output side.
func dialMockDevice(t *testing.T) *lufo.Device {
	t.Helper()

	udp, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal("mock management bind:", err)
	}
	t.Cleanup(func() { udp.Close() })
	go func() {
		buf := make([]byte, 2048)
		for {
			n, addr, err := udp.ReadFrom(buf)
			if err != nil {
				return
			}
			if string(buf[:n]) == session.DefaultPassword {
				udp.WriteTo([]byte("127.0.0.1,ACCF23A1B2C3,HF-LPB100"), addr)
			}
		}
	}()

	tcpLn, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal("mock output listen:", err)
	}
	t.Cleanup(func() { tcpLn.Close() })
	go func() {
		var held []net.Conn
		defer func() {
			for _, conn := range held {
				conn.Close()
			}
		}()
		for {
			conn, err := tcpLn.Accept()
			if err != nil {
				return
			}
			held = append(held, conn) // stay silent; the session only dials
		}
	}()

	d, err := lufo.Dial(session.Config{
		Host:          "127.0.0.1",
		RemoteUDPPort: udp.LocalAddr().(*net.UDPAddr).Port,
		RemoteTCPPort: tcpLn.Addr().(*net.TCPAddr).Port,
	})
	if err != nil {
		t.Fatal("dial:", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestCollect(t *testing.T) {
	d := dialMockDevice(t)

	var mu sync.Mutex
	var notes []error
	c := NewCollector("lufo_", nil, nil, func(err error) {
		mu.Lock()
		notes = append(notes, err)
		mu.Unlock()
	})

	c.Add(d, nil)
	if got := testutil.CollectAndCount(c); got != 5 {
		t.Errorf("got %d metrics for one live session, want 5", got)
	}
	mu.Lock()
	if len(notes) != 0 {
		t.Error("error callback applied for a live session:", notes)
	}
	mu.Unlock()

	// a dead session drops out of collection, with a note
	d.Close()
	if got := testutil.CollectAndCount(c); got != 0 {
		t.Errorf("got %d metrics after session death, want 0", got)
	}
	mu.Lock()
	if len(notes) != 1 {
		t.Errorf("got %d notes after session death, want 1", len(notes))
	}
	mu.Unlock()

	// dropped means dropped; no second note
	if got := testutil.CollectAndCount(c); got != 0 {
		t.Errorf("got %d metrics after the drop, want 0", got)
	}
	mu.Lock()
	if len(notes) != 1 {
		t.Errorf("got %d notes after the drop, want 1", len(notes))
	}
	mu.Unlock()
}

func TestRemove(t *testing.T) {
	d := dialMockDevice(t)

	c := NewCollector("lufo_", []string{"room"}, nil, func(error) {})
	c.Add(d, []string{"kitchen"})
	c.Remove(d)

	if got := testutil.CollectAndCount(c); got != 0 {
		t.Errorf("got %d metrics after removal, want 0", got)
	}
}
