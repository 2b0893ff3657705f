// Command lufo operates LEDENET UFO WiFi RGBW controllers: discovery,
// light output and device configuration from the shell. Structured
// results print as JSON on standard output, scalars as plain text.
// The exit code is 0 on success and 1 on any failure.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/rjenkinsjr/lufo"
	"github.com/rjenkinsjr/lufo/session"
	"github.com/rjenkinsjr/lufo/wire"
)

var CmdLog = logrus.New()

var (
	ufoFlag      = flag.String("ufo", "", "Device IP `address`; falls back to $LUFO_ADDRESS.")
	passwordFlag = flag.String("password", "", "Management password, factory default unless set.")
	timeoutFlag  = flag.Duration("timeout", lufo.DefaultDiscoverTimeout, "Discovery collection `window`.")
	soloFlag     = flag.Bool("solo", false, "Zero the other channels on a single-channel set.")
	promptFlag   = flag.Bool("prompt", false, "Read the passphrase or password interactively.")
	clockFlag    = flag.Bool("send-clock", false, "Emit the legacy date-time frame before reconfiguration.")
	traceFlag    = flag.Bool("trace", false, "Log wire traffic to standard error.")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [options] <command> [arguments]

Commands:
  discover
  status | on | off | toggle | zero | freeze
  rgbw <r> <g> <b> <w>
  red|green|blue|white <value> [--solo]
  function <name> <speed>
  custom <gradual|jumping|strobe> <speed> <r,g,b>...
  version | ntp [server] | password [pwd] | port [port]
  wifi-scan | wifi-auto-switch [off|on|auto|minutes] | wifi-mode [AP|STA|APSTA]
  wifi-ap-ip [ip mask] | wifi-ap-broadcast [mode ssid channel]
  wifi-ap-auth [passphrase] | wifi-ap-led [on|off] | wifi-ap-dhcp [start end | off]
  wifi-client-ap-info | wifi-client-ap-signal
  wifi-client-ip [dhcp | ip mask gateway] | wifi-client-ssid [ssid]
  wifi-client-auth [auth encryption [passphrase]]
  reboot | factory-reset

Options:
`, filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func main() {
	CmdLog.SetOutput(os.Stderr)
	flag.Usage = usage
	flag.Parse()

	if *traceFlag {
		session.Trace = true
		session.Log.SetLevel(logrus.DebugLevel)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	if err := run(args[0], args[1:]); err != nil {
		CmdLog.Error(strings.TrimPrefix(err.Error(), "lufo: "))
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	if command == "discover" {
		found, err := lufo.Discover(lufo.DiscoverOptions{
			Password: *passwordFlag,
			Timeout:  *timeoutFlag,
		})
		if err != nil {
			return err
		}
		return emitJSON(found)
	}

	d, err := dial()
	if err != nil {
		return err
	}
	defer d.Close()

	switch command {
	case "status":
		s, err := d.Status()
		if err != nil {
			return err
		}
		return emitJSON(statusView(s))
	case "on":
		return d.TurnOn()
	case "off":
		return d.TurnOff()
	case "toggle":
		return d.Toggle()
	case "zero":
		return d.ZeroOutput()
	case "freeze":
		return d.FreezeOutput()

	case "rgbw":
		v, err := intArgs(args, 4, "rgbw takes r g b w")
		if err != nil {
			return err
		}
		return d.SetColor(v[0], v[1], v[2], v[3])
	case "red", "green", "blue", "white":
		v, err := intArgs(args, 1, command+" takes a value")
		if err != nil {
			return err
		}
		switch command {
		case "red":
			return d.SetRed(v[0], *soloFlag)
		case "green":
			return d.SetGreen(v[0], *soloFlag)
		case "blue":
			return d.SetBlue(v[0], *soloFlag)
		default:
			return d.SetWhite(v[0], *soloFlag)
		}

	case "function":
		if len(args) != 2 {
			return fmt.Errorf("function takes a name and a speed")
		}
		speed, err := intArg(args[1])
		if err != nil {
			return err
		}
		return d.SetBuiltin(args[0], speed)

	case "custom":
		if len(args) < 2 {
			return fmt.Errorf("custom takes a mode, a speed and steps")
		}
		mode, ok := wire.CustomModeByName(args[0])
		if !ok {
			return fmt.Errorf("custom mode %q not gradual, jumping or strobe", args[0])
		}
		speed, err := intArg(args[1])
		if err != nil {
			return err
		}
		steps, err := parseSteps(args[2:])
		if err != nil {
			return err
		}
		return d.SetCustom(mode, speed, steps)

	case "version":
		return scalarOut(d.ModuleVersion())

	case "ntp":
		if len(args) == 0 {
			return scalarOut(d.NTPServer())
		}
		return d.SetNTPServer(args[0])

	case "password":
		if *promptFlag {
			pwd, err := promptSecret("new password")
			if err != nil {
				return err
			}
			return d.SetPassword(pwd)
		}
		if len(args) == 0 {
			return scalarOut(d.Password())
		}
		return d.SetPassword(args[0])

	case "port":
		if len(args) == 0 {
			cfg, err := d.TCPServer()
			if err != nil {
				return err
			}
			return emitJSON(cfg)
		}
		port, err := intArg(args[0])
		if err != nil {
			return err
		}
		return d.SetTCPPort(port)

	case "wifi-scan":
		found, err := d.WifiScan()
		if err != nil {
			return err
		}
		return emitJSON(found)

	case "wifi-auto-switch":
		if len(args) == 0 {
			return scalarOut(d.WifiAutoSwitch())
		}
		return d.SetWifiAutoSwitch(args[0])

	case "wifi-mode":
		if len(args) == 0 {
			return scalarOut(d.WifiMode())
		}
		return d.SetWifiMode(args[0])

	case "wifi-ap-ip":
		if len(args) == 0 {
			cfg, err := d.WifiAPIP()
			if err != nil {
				return err
			}
			return emitJSON(cfg)
		}
		if len(args) != 2 {
			return fmt.Errorf("wifi-ap-ip takes an ip and a mask")
		}
		return d.SetWifiAPIP(args[0], args[1])

	case "wifi-ap-broadcast":
		if len(args) == 0 {
			cfg, err := d.WifiAPBroadcast()
			if err != nil {
				return err
			}
			return emitJSON(cfg)
		}
		if len(args) != 3 {
			return fmt.Errorf("wifi-ap-broadcast takes a mode, an SSID and a channel")
		}
		channel, err := intArg(args[2])
		if err != nil {
			return err
		}
		return d.SetWifiAPBroadcast(args[0], args[1], channel)

	case "wifi-ap-auth":
		if *promptFlag {
			passphrase, err := promptSecret("AP passphrase (empty for open)")
			if err != nil {
				return err
			}
			return d.SetWifiAPAuth(passphrase)
		}
		if len(args) == 0 {
			cfg, err := d.WifiAPAuth()
			if err != nil {
				return err
			}
			return emitJSON(cfg)
		}
		return d.SetWifiAPAuth(args[0])

	case "wifi-ap-led":
		if len(args) == 0 {
			on, err := d.WifiAPLED()
			if err != nil {
				return err
			}
			return textOut(onOff(on))
		}
		switch args[0] {
		case "on", "off":
			return d.SetWifiAPLED(args[0] == "on")
		default:
			return fmt.Errorf("wifi-ap-led takes on or off")
		}

	case "wifi-ap-dhcp":
		if len(args) == 0 {
			cfg, err := d.WifiAPDHCP()
			if err != nil {
				return err
			}
			return emitJSON(cfg)
		}
		if args[0] == "off" {
			return d.SetWifiAPDHCPOff()
		}
		v, err := intArgs(args, 2, "wifi-ap-dhcp takes a start and end octet, or off")
		if err != nil {
			return err
		}
		return d.SetWifiAPDHCP(v[0], v[1])

	case "wifi-client-ap-info":
		cfg, err := d.WifiClientAPInfo()
		if err != nil {
			return err
		}
		return emitJSON(cfg)

	case "wifi-client-ap-signal":
		return scalarOut(d.WifiClientAPSignal())

	case "wifi-client-ip":
		if len(args) == 0 {
			cfg, err := d.WifiClientIP()
			if err != nil {
				return err
			}
			return emitJSON(cfg)
		}
		if args[0] == "dhcp" {
			return d.SetWifiClientIPDHCP()
		}
		if len(args) != 3 {
			return fmt.Errorf("wifi-client-ip takes dhcp, or an ip, mask and gateway")
		}
		return d.SetWifiClientIPStatic(args[0], args[1], args[2])

	case "wifi-client-ssid":
		if len(args) == 0 {
			return scalarOut(d.WifiClientSSID())
		}
		return d.SetWifiClientSSID(args[0])

	case "wifi-client-auth":
		if len(args) == 0 {
			cfg, err := d.WifiClientAuth()
			if err != nil {
				return err
			}
			return emitJSON(cfg)
		}
		if len(args) < 2 {
			return fmt.Errorf("wifi-client-auth takes an auth mode and encryption")
		}
		passphrase := ""
		if len(args) > 2 {
			passphrase = args[2]
		} else if *promptFlag {
			var err error
			passphrase, err = promptSecret("passphrase")
			if err != nil {
				return err
			}
		}
		return d.SetWifiClientAuth(args[0], args[1], passphrase)

	case "reboot":
		return d.Reboot()
	case "factory-reset":
		return d.FactoryReset()

	default:
		return fmt.Errorf("command %q unknown; see --help", command)
	}
}

func dial() (*lufo.Device, error) {
	host := *ufoFlag
	if host == "" {
		host = os.Getenv("LUFO_ADDRESS")
	}
	if host == "" {
		return nil, fmt.Errorf("no device address; set --ufo or LUFO_ADDRESS")
	}
	return lufo.Dial(session.Config{
		Host:      host,
		Password:  *passwordFlag,
		SendClock: *clockFlag,
	})
}

// statusView shapes a snapshot for JSON output.
func statusView(s *wire.Status) interface{} {
	view := struct {
		Power string `json:"power"`
		Mode  string `json:"mode"`
		Speed *int   `json:"speed,omitempty"`
		Red   byte   `json:"red"`
		Green byte   `json:"green"`
		Blue  byte   `json:"blue"`
		White byte   `json:"white"`
	}{
		Power: onOff(s.On),
		Mode:  s.ModeString(),
		Red:   s.Red, Green: s.Green, Blue: s.Blue, White: s.White,
	}
	if s.HasSpeed {
		speed := s.Speed
		view.Speed = &speed
	}
	return view
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func emitJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func textOut(s string) error {
	fmt.Println(s)
	return nil
}

func scalarOut(s string, err error) error {
	if err != nil {
		return err
	}
	return textOut(s)
}

func intArg(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("argument %q not a number", s)
	}
	return v, nil
}

func intArgs(args []string, n int, hint string) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s", hint)
	}
	values := make([]int, n)
	for i, a := range args {
		v, err := intArg(a)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// parseSteps reads r,g,b triples.
func parseSteps(args []string) ([]wire.Step, error) {
	steps := make([]wire.Step, 0, len(args))
	for _, a := range args {
		parts := strings.Split(a, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("step %q not an r,g,b triple", a)
		}
		var s wire.Step
		for i, p := range parts {
			v, err := intArg(strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			switch i {
			case 0:
				s.R = v
			case 1:
				s.G = v
			default:
				s.B = v
			}
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// promptSecret reads a line from the terminal without arguments echoed
// into the process list.
func promptSecret(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no input")
	}
	return strings.TrimSpace(scanner.Text()), nil
}
