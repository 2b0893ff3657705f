package wire

import "fmt"

// CustomMode selects the transition style of a custom program.
type CustomMode byte

const (
	Gradual CustomMode = 0x3a
	Jumping CustomMode = 0x3b
	Strobe  CustomMode = 0x3c
)

// CustomModeByName resolves a transition style from its symbolic name.
func CustomModeByName(name string) (CustomMode, bool) {
	switch name {
	case "gradual":
		return Gradual, true
	case "jumping":
		return Jumping, true
	case "strobe":
		return Strobe, true
	}
	return 0, false
}

// String returns the symbolic name.
func (m CustomMode) String() string {
	switch m {
	case Gradual:
		return "gradual"
	case Jumping:
		return "jumping"
	case Strobe:
		return "strobe"
	default:
		return fmt.Sprintf("<illegal %#02x>", byte(m))
	}
}

// Step is one RGB entry of a custom program.
type Step struct {
	R, G, B int
}

// NullStep is the padding sentinel. The device stops playback at the first
// null step, so Custom never places one between real steps.
var NullStep = Step{1, 2, 3}

// StepCount is the fixed number of step records in a custom-program frame.
const StepCount = 16

// CustomSpeedMax is the fastest custom playback speed accepted by the API.
const CustomSpeedMax = 30

// Custom returns the framed custom-program frame, 70 octets: 0x51, sixteen
// 4-octet step records, a speed octet, the mode octet and the 0xFF sentinel.
//
// Null-step sentinels are removed from the input first, remaining channels
// are clamped into [0, 255], the list is cut at sixteen steps and then
// right-padded with null steps. Speed is clamped into [0, 30] with 0 slow;
// the octet on the wire is the inverted value plus one, matching what the
// device reports back.
func Custom(mode CustomMode, speed int, steps []Step) []byte {
	payload := make([]byte, 0, 1+4*StepCount+3)
	payload = append(payload, 0x51)

	n := 0
	for _, s := range steps {
		if s == NullStep {
			continue
		}
		if n == StepCount {
			break
		}
		payload = append(payload, ClampByte(s.R), ClampByte(s.G), ClampByte(s.B), 0x00)
		n++
	}
	for ; n < StepCount; n++ {
		payload = append(payload, byte(NullStep.R), byte(NullStep.G), byte(NullStep.B), 0x00)
	}

	payload = append(payload,
		byte(CustomSpeedMax-clampInt(speed, 0, CustomSpeedMax))+1,
		byte(mode),
		0xff)
	return Frame(payload)
}
