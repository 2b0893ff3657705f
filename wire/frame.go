// Package wire implements the two LEDENET UFO wire formats: the binary
// command and status frames on the TCP output channel, and the textual
// AT envelope on the UDP management channel.
package wire

import "time"

// LocalFlag marks a frame for direct delivery. The counterpart 0xF0 would
// route the command through the vendor cloud and is never used here.
const LocalFlag = 0x0F

// Frames with device-mandated trailing bytes. They bypass Frame because
// they already carry their local flag and checksum (or, for StatusRequest,
// carry neither).
var (
	PowerOn       = []byte{0x71, 0x23, 0x0f, 0xa3}
	PowerOff      = []byte{0x71, 0x24, 0x0f, 0xa4}
	StatusRequest = []byte{0x81, 0x8a, 0x8b, 0x96}
)

// Frame seals a command payload for the TCP channel. The local flag is
// appended, followed by a checksum octet: the sum of all preceding octets
// modulo 256. The payload is not modified; a new buffer is returned.
func Frame(payload []byte) []byte {
	buf := make([]byte, len(payload)+2)
	copy(buf, payload)
	buf[len(payload)] = LocalFlag

	var sum byte
	for _, c := range buf[:len(payload)+1] {
		sum += c
	}
	buf[len(payload)+1] = sum
	return buf
}

// ClampByte forces v into the octet range.
// Out-of-range color and step input is clamped, never rejected.
func ClampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Color returns the framed static-color frame, 8 octets.
// Each channel is clamped into [0, 255].
func Color(r, g, b, w int) []byte {
	return Frame([]byte{0x31, ClampByte(r), ClampByte(g), ClampByte(b), ClampByte(w), 0x00})
}

// BuiltinSpeedMax is the fastest builtin playback speed accepted by the API.
// The device stores the inverted value; see Builtin.
const BuiltinSpeedMax = 100

// Builtin returns the framed builtin-function selection frame, 5 octets.
// Speed is clamped into [0, 100] with 0 slow and 100 fast; the octet on the
// wire is the inverted value.
func Builtin(fn Function, speed int) []byte {
	return Frame([]byte{0x61, byte(fn), byte(BuiltinSpeedMax - clampInt(speed, 0, BuiltinSpeedMax))})
}

// Clock returns the framed date-time frame, 11 octets. The device-side
// effect is undocumented and the frame appears inessential; it is emitted
// only in bug-compatibility mode. See session.Config.SendClock.
func Clock(t time.Time) []byte {
	year, month, day := t.Date()
	return Frame([]byte{
		0x10,
		byte(year / 100), byte(year % 100),
		byte(month), byte(day),
		byte(t.Hour()), byte(t.Minute()), byte(t.Second()),
		0x07, 0x00,
	})
}
