package lufo

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rjenkinsjr/lufo/session"
	"github.com/rjenkinsjr/lufo/wire"
)

// mockUFO scripts both services of a device.
type mockUFO struct {
	t *testing.T

	udp   net.PacketConn
	tcpLn net.Listener

	script map[string]string // management request to response
	status []byte            // output status response frame

	mu        sync.Mutex
	passwords []string // hello credentials accepted
	hello     string   // hello reply
	datagrams []string // management datagrams in order of appearance
	frames    []byte   // output octets in order of appearance
}

func newMockUFO(t *testing.T) *mockUFO {
	t.Helper()

	udp, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal("mock management bind:", err)
	}
	t.Cleanup(func() { udp.Close() })

	tcpLn, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal("mock output listen:", err)
	}
	t.Cleanup(func() { tcpLn.Close() })

	m := &mockUFO{
		t:         t,
		udp:       udp,
		tcpLn:     tcpLn,
		script:    make(map[string]string),
		status:    []byte{0x81, 0x04, 0x23, 0x61, 0x21, 0x00, 0xff, 0xff, 0xff, 0xff, 0x03, 0x00, 0x00, 0x29},
		passwords: []string{session.DefaultPassword},
		hello:     "127.0.0.1,ACCF23A1B2C3,HF-LPB100",
	}
	go m.serveUDP()
	go m.serveTCP()
	return m
}

func (m *mockUFO) config() session.Config {
	return session.Config{
		Host:          "127.0.0.1",
		RemoteUDPPort: m.udp.LocalAddr().(*net.UDPAddr).Port,
		RemoteTCPPort: m.tcpLn.Addr().(*net.TCPAddr).Port,
	}
}

func (m *mockUFO) serveUDP() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := m.udp.ReadFrom(buf)
		if err != nil {
			return
		}
		req := string(buf[:n])

		m.mu.Lock()
		m.datagrams = append(m.datagrams, req)
		hello := ""
		for _, p := range m.passwords {
			if req == p {
				hello = m.hello
			}
		}
		resp, scripted := m.script[req]
		m.mu.Unlock()

		switch {
		case hello != "":
			m.udp.WriteTo([]byte(hello), addr)
		case req == "+ok" || req == "AT+Q\r":
			break
		case scripted:
			if resp != "" {
				m.udp.WriteTo([]byte(resp), addr)
			}
		}
	}
}

func (m *mockUFO) serveTCP() {
	for {
		conn, err := m.tcpLn.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			buf := make([]byte, 512)
			var window []byte
			for {
				n, err := conn.Read(buf)
				if err != nil {
					return
				}

				m.mu.Lock()
				m.frames = append(m.frames, buf[:n]...)
				m.mu.Unlock()

				window = append(window, buf[:n]...)
				for {
					i := bytes.Index(window, wire.StatusRequest)
					if i < 0 {
						break
					}
					window = window[i+len(wire.StatusRequest):]
					conn.Write(m.status)
				}
			}
		}()
	}
}

func (m *mockUFO) wire() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.datagrams...)
}

// awaitWire blocks until the mock recorded count management datagrams;
// reads on the mock run behind the engine's writes.
func (m *mockUFO) awaitWire(count int) []string {
	deadline := time.Now().Add(time.Second)
	for {
		got := m.wire()
		if len(got) >= count || time.Now().After(deadline) {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (m *mockUFO) output() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.frames...)
}

// awaitOutput spins until the output channel saw want.
func (m *mockUFO) awaitOutput(want []byte) bool {
	deadline := time.Now().Add(time.Second)
	for !bytes.Equal(m.output(), want) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return true
}

// notified records disconnect notifications.
type notified struct {
	mu    sync.Mutex
	calls []*DisconnectError
}

func (n *notified) callback(e *DisconnectError) {
	n.mu.Lock()
	n.calls = append(n.calls, e)
	n.mu.Unlock()
}

func (n *notified) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *notified) last() *DisconnectError {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		return nil
	}
	return n.calls[len(n.calls)-1]
}

func dialTest(t *testing.T, m *mockUFO) (*Device, *notified) {
	t.Helper()
	d, err := Dial(m.config())
	if err != nil {
		t.Fatal("dial:", err)
	}
	t.Cleanup(func() { d.Close() })

	n := new(notified)
	d.OnDisconnect(n.callback)
	return d, n
}

// TestDialProbesAndCloses verifies the startup handshake and the ordered
// shutdown: the notification fires exactly once, without an error.
func TestDialProbesAndCloses(t *testing.T) {
	m := newMockUFO(t)
	d, n := dialTest(t, m)

	want := []string{session.DefaultPassword, "+ok", "AT+Q\r"}
	if diff := cmp.Diff(want, m.awaitWire(len(want))); diff != "" {
		t.Error("probe wire order mismatch (-want +got):\n", diff)
	}

	d.Close()
	d.Close() // second close may not notify again

	if n.count() != 1 {
		t.Fatalf("notified %d times, want 1", n.count())
	}
	if e := n.last(); e != nil {
		t.Errorf("got disconnect error %v, want nil for an ordered close", e)
	}
	if !d.Dead() {
		t.Error("session alive after close")
	}
}

// TestSetNTPServerWireOrder covers the complete setter cycle after the
// dial probe.
func TestSetNTPServerWireOrder(t *testing.T) {
	m := newMockUFO(t)
	m.script["AT+NTPSER=1.2.3.4\r"] = "+ok\r\n\r\n"
	d, _ := dialTest(t, m)

	if err := d.SetNTPServer("1.2.3.4"); err != nil {
		t.Fatal("set error:", err)
	}

	want := []string{
		session.DefaultPassword, "+ok", "AT+Q\r", // dial probe
		session.DefaultPassword, "+ok", "AT+NTPSER=1.2.3.4\r", "AT+Q\r",
	}
	if diff := cmp.Diff(want, m.awaitWire(len(want))); diff != "" {
		t.Error("wire order mismatch (-want +got):\n", diff)
	}
}

// TestValidationSendsNothing covers the synchronous rejection: no
// datagram beyond the dial probe may reach the device.
func TestValidationSendsNothing(t *testing.T) {
	m := newMockUFO(t)
	d, _ := dialTest(t, m)
	m.awaitWire(3) // let the dial probe settle
	time.Sleep(50 * time.Millisecond)
	before := len(m.wire())

	err := d.SetNTPServer("not-an-ip")
	time.Sleep(50 * time.Millisecond)
	if _, ok := err.(InputError); !ok {
		t.Fatalf("got error %v, want InputError", err)
	}
	if got := m.wire(); len(got) != before {
		t.Errorf("got %d datagrams after rejection, want %d", len(got), before)
	}
	if d.Dead() {
		t.Error("session dead after input rejection")
	}
}

func TestPowerAndToggle(t *testing.T) {
	m := newMockUFO(t)
	d, _ := dialTest(t, m)

	if err := d.TurnOn(); err != nil {
		t.Fatal("power error:", err)
	}
	// status reports power up, so toggle must power down
	if err := d.Toggle(); err != nil {
		t.Fatal("toggle error:", err)
	}

	want := append(append(append([]byte(nil), wire.PowerOn...), wire.StatusRequest...), wire.PowerOff...)
	if !m.awaitOutput(want) {
		t.Errorf("got output %#x, want %#x", m.output(), want)
	}
}

// TestSetChannelPreserves covers the non-solo single-channel set: a
// status read supplies the other channels.
func TestSetChannelPreserves(t *testing.T) {
	m := newMockUFO(t)
	m.status = statusWith(t, 10, 20, 30, 40)
	d, _ := dialTest(t, m)

	if err := d.SetRed(99, false); err != nil {
		t.Fatal("set error:", err)
	}
	want := append(append([]byte(nil), wire.StatusRequest...), wire.Color(99, 20, 30, 40)...)
	if !m.awaitOutput(want) {
		t.Errorf("got output %#x, want %#x", m.output(), want)
	}
}

func TestSetChannelSolo(t *testing.T) {
	m := newMockUFO(t)
	d, _ := dialTest(t, m)

	if err := d.SetGreen(77, true); err != nil {
		t.Fatal("set error:", err)
	}
	if !m.awaitOutput(wire.Color(0, 77, 0, 0)) {
		t.Errorf("got output %#x, want %#x", m.output(), wire.Color(0, 77, 0, 0))
	}
}

func TestBuiltinGuards(t *testing.T) {
	m := newMockUFO(t)
	d, _ := dialTest(t, m)

	if err := d.SetBuiltin("noFunction", 0); err == nil {
		t.Error("reserved function accepted")
	}
	if err := d.SetBuiltin("discoInferno", 0); err == nil {
		t.Error("unknown function accepted")
	}

	// freezing uses the reserved entry internally
	if err := d.FreezeOutput(); err != nil {
		t.Fatal("freeze error:", err)
	}
	if !m.awaitOutput(wire.Builtin(wire.NoFunction, 0)) {
		t.Errorf("got output %#x, want the freeze frame", m.output())
	}
}

// TestFatalCascades kills the management channel with a protocol fault
// and verifies the whole session follows: one notification, carrying the
// fault, and both channels refusing further work.
func TestFatalCascades(t *testing.T) {
	m := newMockUFO(t)
	d, n := dialTest(t, m)

	m.mu.Lock()
	m.hello = "9.9.9.9,ACCF23A1B2C3,HF-LPB100"
	m.mu.Unlock()

	if _, err := d.ModuleVersion(); err == nil {
		t.Fatal("hello from unexpected host accepted")
	}

	if n.count() != 1 {
		t.Fatalf("notified %d times, want 1", n.count())
	}
	e := n.last()
	if e == nil || e.UDP == nil {
		t.Fatalf("got disconnect error %v, want a management fault", e)
	}
	if e.TCP != nil {
		t.Errorf("got output error %v, want nil for the dragged-down side", e.TCP)
	}

	if err := d.TurnOn(); err != session.ErrNoConn {
		t.Errorf("got %v from the output channel, want ErrNoConn", err)
	}
	if _, err := d.ModuleVersion(); err != session.ErrNoConn {
		t.Errorf("got %v from the management channel, want ErrNoConn", err)
	}
}

// TestReboot covers the session-terminating command: no termination
// marker, ordered death.
func TestReboot(t *testing.T) {
	m := newMockUFO(t)
	d, n := dialTest(t, m)

	if err := d.Reboot(); err != nil {
		t.Fatal("reboot error:", err)
	}

	got := m.awaitWire(6)
	if got[len(got)-1] != "AT+Z\r" {
		t.Errorf("got final datagram %q, want AT+Z", got[len(got)-1])
	}
	if n.count() != 1 {
		t.Fatalf("notified %d times, want 1", n.count())
	}
	if e := n.last(); e != nil {
		t.Errorf("got disconnect error %v, want nil for an ordered death", e)
	}
}

func TestFactoryReset(t *testing.T) {
	m := newMockUFO(t)
	m.script["AT+RELD\r"] = "+ok=rebooting...\r\n\r\n"
	d, n := dialTest(t, m)

	if err := d.FactoryReset(); err != nil {
		t.Fatal("factory reset error:", err)
	}
	if n.count() != 1 || n.last() != nil {
		t.Errorf("got %d notifications, last %v; want one ordered death", n.count(), n.last())
	}
	if got := m.output(); len(got) != 0 {
		t.Errorf("got output %#x without bug compatibility, want none", got)
	}
}

// TestFactoryResetClock covers bug compatibility: the date-time frame
// precedes the reset when configured.
func TestFactoryResetClock(t *testing.T) {
	m := newMockUFO(t)
	m.script["AT+RELD\r"] = "+ok=rebooting...\r\n\r\n"

	config := m.config()
	config.SendClock = true
	d, err := Dial(config)
	if err != nil {
		t.Fatal("dial:", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.FactoryReset(); err != nil {
		t.Fatal("factory reset error:", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(m.output()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no date-time frame on the output channel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	got := m.output()
	if len(got) != 12 || got[0] != 0x10 {
		t.Errorf("got output %#x, want one 12-octet date-time frame", got)
	}
}

// TestPasswordChange verifies the credential switch: exchanges after a
// password set hello with the new value.
func TestPasswordChange(t *testing.T) {
	m := newMockUFO(t)
	m.script["AT+ASWD=opensesame\r"] = "+ok\r\n\r\n"
	m.script["AT+VER\r"] = "+ok=V1.1.9\r\n\r\n"
	m.mu.Lock()
	m.passwords = append(m.passwords, "opensesame")
	m.mu.Unlock()

	d, _ := dialTest(t, m)
	if err := d.SetPassword("opensesame"); err != nil {
		t.Fatal("password set error:", err)
	}
	if _, err := d.ModuleVersion(); err != nil {
		t.Fatal("follow-up exchange error:", err)
	}

	got := m.awaitWire(11)
	if got[len(got)-4] != "opensesame" {
		t.Errorf("got hello %q after the password change, want opensesame", got[len(got)-4])
	}
}

func TestCounters(t *testing.T) {
	m := newMockUFO(t)
	d, _ := dialTest(t, m)

	if err := d.TurnOn(); err != nil {
		t.Fatal("power error:", err)
	}
	if _, err := d.Status(); err != nil {
		t.Fatal("status error:", err)
	}

	c := d.Counters()
	if c.FramesOut != 2 || c.StatusReqs != 1 {
		t.Errorf("got %d frames and %d status exchanges, want 2 and 1", c.FramesOut, c.StatusReqs)
	}
}

// statusWith builds a static-mode status response with the channels.
func statusWith(t *testing.T, r, g, b, w byte) []byte {
	t.Helper()
	f := []byte{0x81, 0x04, 0x23, 0x61, 0x21, 0x00, r, g, b, w, 0x03, 0x00, 0x00, 0x00}
	var sum byte
	for _, c := range f[:13] {
		sum += c
	}
	f[13] = sum
	return f
}
