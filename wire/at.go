package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AT envelope constants. Requests are wrapped as "AT+<cmd>\r" for getters
// and "AT+<cmd>=a1,a2,...\r" for setters. The hello exchange bypasses the
// envelope; see session.UDP.
const (
	atPrefix   = "AT+"
	atSuffix   = "\r"
	okPrefix   = "+ok"
	errPrefix  = "+ERR"
	atTrailer  = "\r\n\r\n"
	atListSep  = ","
	atArgAssig = "="
)

// HelloAck is the literal acknowledgement of a hello reply.
const HelloAck = "+ok"

// RespClass tells how to collapse a command's response payload.
type RespClass uint

const (
	// Void commands have no response payload.
	Void RespClass = iota
	// Scalar commands respond with a single value.
	Scalar
	// List commands respond with a comma-separated tuple.
	List
	// Lines commands stream multiple newline-separated comma lists
	// behind a header line.
	Lines
)

// Cmd is a management command word with its response shape.
type Cmd struct {
	Word string
	Resp RespClass
}

// The management command catalog. The set is fixed by the WiFi module
// firmware (an HF-A11 derivate); argument semantics live with the session
// API which validates before anything goes on the wire.
var (
	// Reboot restarts the device. No response; the session dies.
	Reboot = Cmd{"Z", Void}
	// FactoryReset restores factory configuration. The device answers
	// "rebooting..." outside the +ok envelope and the session dies.
	FactoryReset = Cmd{"RELD", Scalar}
	// ModuleVersion reads the WiFi module version string.
	ModuleVersion = Cmd{"VER", Scalar}
	// NTPServer reads or sets the NTP server IPv4 address.
	NTPServer = Cmd{"NTPSER", Scalar}
	// UDPPassword reads or sets the management password.
	UDPPassword = Cmd{"ASWD", Scalar}
	// TCPServer reads or sets the (TCP|UDP, Client|Server, port, ip)
	// tuple of the output channel.
	TCPServer = Cmd{"NETP", List}
	// WifiAutoSwitch reads or sets the AP fallback behavior:
	// off, on, auto or a timeout in minutes [3, 120].
	WifiAutoSwitch = Cmd{"MDCH", Scalar}
	// WifiMode reads or sets the radio mode: AP, STA or APSTA.
	WifiMode = Cmd{"WMODE", Scalar}
	// WifiScan surveys the networks in range.
	WifiScan = Cmd{"WSCAN", Lines}
	// EndCmd terminates a command-mode session.
	EndCmd = Cmd{"Q", Void}
	// WifiAPIP reads or sets the access-point IP and netmask.
	WifiAPIP = Cmd{"LANN", List}
	// WifiAPBroadcast reads or sets the access-point beacon:
	// 11B|11BG|11BGN, SSID and channel CH1..CH11.
	WifiAPBroadcast = Cmd{"WAP", List}
	// WifiAPAuth reads or sets access-point authentication:
	// OPEN,NONE or WPA2PSK,AES,<passphrase>.
	WifiAPAuth = Cmd{"WAKEY", List}
	// WifiAPLED reads or sets the WiFi status LED: on or off.
	WifiAPLED = Cmd{"WALKIND", Scalar}
	// WifiAPDHCP reads or sets the access-point DHCP server:
	// on,start,end or off.
	WifiAPDHCP = Cmd{"WADHCP", List}
	// WifiClientAPInfo reads the associated AP as "SSID(MAC)",
	// or the literal Disconnected.
	WifiClientAPInfo = Cmd{"WSLK", Scalar}
	// WifiClientAPSignal reads the association signal strength,
	// or the literal Disconnected.
	WifiClientAPSignal = Cmd{"WSLQ", Scalar}
	// WifiClientIP reads or sets client addressing: DHCP or
	// static,ip,mask,gateway.
	WifiClientIP = Cmd{"WANN", List}
	// WifiClientSSID reads or sets the SSID to associate with.
	WifiClientSSID = Cmd{"WSSSID", Scalar}
	// WifiClientAuth reads or sets client authentication:
	// auth,encryption,passphrase.
	WifiClientAuth = Cmd{"WSKEY", List}
)

// EncodeAT wraps a command for the wire. Without args the request is a
// getter, with args a setter.
func EncodeAT(cmd Cmd, args ...string) []byte {
	var b strings.Builder
	b.WriteString(atPrefix)
	b.WriteString(cmd.Word)
	if len(args) > 0 {
		b.WriteString(atArgAssig)
		b.WriteString(strings.Join(args, atListSep))
	}
	b.WriteString(atSuffix)
	return []byte(b.String())
}

// ATError is a device-reported command failure. It concerns the single
// operation that produced it; the session stays alive.
type ATError struct {
	Code int // device error code, -1..-5
}

// Error implements the builtin.error interface.
func (e *ATError) Error() string {
	var kind string
	switch e.Code {
	case -1:
		kind = "invalid command format"
	case -2:
		kind = "invalid command"
	case -3:
		kind = "invalid operation symbol"
	case -4:
		kind = "invalid parameter"
	case -5:
		kind = "operation not permitted"
	default:
		kind = "unknown failure"
	}
	return fmt.Sprintf("lufo: AT error %d: %s", e.Code, kind)
}

// DecodeAT unwraps a response payload. The "+ok" prefix with its optional
// "=" and the trailer are stripped; "+ERR" responses surface as *ATError.
func DecodeAT(resp []byte) (string, error) {
	s := strings.TrimSuffix(string(resp), atTrailer)

	if strings.HasPrefix(s, errPrefix) {
		code := -2 // invalid command unless the device says more
		if i := strings.Index(s, atArgAssig); i >= 0 {
			n, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
			if err == nil {
				code = n
			}
		}
		return "", &ATError{Code: code}
	}

	if !strings.HasPrefix(s, okPrefix) {
		return "", errors.Errorf("lufo: response %q outside +ok envelope", resp)
	}
	s = strings.TrimPrefix(s[len(okPrefix):], atArgAssig)
	return strings.TrimSpace(s), nil
}

// SplitList cuts a List response into its comma-separated values.
func SplitList(s string) []string {
	parts := strings.Split(s, atListSep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
