package lufo

import "github.com/rjenkinsjr/lufo/wire"

// TurnOn powers the light output up.
func (d *Device) TurnOn() error { return d.tcp.Send(wire.PowerOn) }

// TurnOff powers the light output down.
func (d *Device) TurnOff() error { return d.tcp.Send(wire.PowerOff) }

// SetPower applies the power state.
func (d *Device) SetPower(on bool) error {
	if on {
		return d.TurnOn()
	}
	return d.TurnOff()
}

// Toggle reads the power state and applies its inverse.
func (d *Device) Toggle() error {
	s, err := d.Status()
	if err != nil {
		return err
	}
	return d.SetPower(!s.On)
}

// Status reads the current output snapshot.
func (d *Device) Status() (*wire.Status, error) {
	return d.tcp.Status()
}

// SetColor applies a static color. Channels are clamped into [0, 255].
// The write is fire-and-forget; the device sends no acknowledgement.
func (d *Device) SetColor(r, g, b, w int) error {
	return d.tcp.Send(wire.Color(r, g, b, w))
}

// channel indices for the solo setters
const (
	chanRed = iota
	chanGreen
	chanBlue
	chanWhite
)

// setChannel applies one channel. Solo zeroes the other three; otherwise
// a status read supplies their current values first.
func (d *Device) setChannel(ch, v int, solo bool) error {
	var c [4]int
	if !solo {
		s, err := d.Status()
		if err != nil {
			return err
		}
		c = [4]int{int(s.Red), int(s.Green), int(s.Blue), int(s.White)}
	}
	c[ch] = v
	return d.SetColor(c[0], c[1], c[2], c[3])
}

// SetRed applies the red channel, clamped into [0, 255].
// Solo zeroes green, blue and white.
func (d *Device) SetRed(v int, solo bool) error { return d.setChannel(chanRed, v, solo) }

// SetGreen applies the green channel, clamped into [0, 255].
// Solo zeroes red, blue and white.
func (d *Device) SetGreen(v int, solo bool) error { return d.setChannel(chanGreen, v, solo) }

// SetBlue applies the blue channel, clamped into [0, 255].
// Solo zeroes red, green and white.
func (d *Device) SetBlue(v int, solo bool) error { return d.setChannel(chanBlue, v, solo) }

// SetWhite applies the white channel, clamped into [0, 255].
// Solo zeroes red, green and blue.
func (d *Device) SetWhite(v int, solo bool) error { return d.setChannel(chanWhite, v, solo) }

// SetBuiltin plays a catalog function by its symbolic name, with the speed
// clamped into [0, 100]. The reserved catalog entries are denied.
func (d *Device) SetBuiltin(name string, speed int) error {
	fn, ok := wire.FunctionByName(name)
	if !ok {
		return inputErrorf("function %q not in the catalog", name)
	}
	if fn.Reserved() {
		return inputErrorf("function %q reserved", name)
	}
	return d.tcp.Send(wire.Builtin(fn, speed))
}

// SetCustom plays a custom program: up to sixteen RGB steps in the given
// transition mode, speed clamped into [0, 30]. Extra steps are dropped,
// channels clamped; see wire.Custom for the sentinel handling.
func (d *Device) SetCustom(mode wire.CustomMode, speed int, steps []wire.Step) error {
	switch mode {
	case wire.Gradual, wire.Jumping, wire.Strobe:
		break
	default:
		return inputErrorf("custom mode %#02x unknown", byte(mode))
	}
	return d.tcp.Send(wire.Custom(mode, speed, steps))
}

// FreezeOutput halts playback, leaving the current color up.
func (d *Device) FreezeOutput() error {
	return d.tcp.Send(wire.Builtin(wire.NoFunction, 0))
}

// ZeroOutput blacks the output without powering it down.
func (d *Device) ZeroOutput() error {
	return d.SetColor(0, 0, 0, 0)
}
