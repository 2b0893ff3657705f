package lufo

import (
	"fmt"
	"net"
	"strings"

	"github.com/rjenkinsjr/lufo/session"
)

// InputError rejects caller input before anything reaches the wire.
// Numeric ranges never produce one; out-of-range numbers are clamped.
type InputError string

// Error implements the builtin.error interface.
func (e InputError) Error() string { return "lufo: " + string(e) }

func inputErrorf(format string, args ...interface{}) error {
	return InputError(fmt.Sprintf(format, args...))
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func hexOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
		case s[i] >= 'a' && s[i] <= 'f':
		case s[i] >= 'A' && s[i] <= 'F':
		default:
			return false
		}
	}
	return true
}

// CheckPassword validates a management password: 1 to 20 ASCII characters.
func CheckPassword(s string) error {
	if len(s) < 1 || len(s) > session.PasswordMax {
		return inputErrorf("password of %d characters not in [1, 20]", len(s))
	}
	if !printableASCII(s) {
		return inputErrorf("password %q not ASCII", s)
	}
	return nil
}

func checkIPv4(field, s string) error {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return inputErrorf("%s %q not an IPv4 address", field, s)
	}
	return nil
}

func checkSSID(s string) error {
	if len(s) < 1 || len(s) > 32 {
		return inputErrorf("SSID of %d characters not in [1, 32]", len(s))
	}
	return nil
}

// checkAPPassphrase validates a WPA2 access-point passphrase.
func checkAPPassphrase(s string) error {
	if len(s) < 8 || len(s) > 63 {
		return inputErrorf("AP passphrase of %d characters not in [8, 63]", len(s))
	}
	if !printableASCII(s) {
		return inputErrorf("AP passphrase not ASCII")
	}
	return nil
}

// clientEncryptions permits encryption per client authentication mode.
var clientEncryptions = map[string][]string{
	"OPEN":    {"NONE", "WEP-H", "WEP-A"},
	"SHARED":  {"WEP-H", "WEP-A"},
	"WPAPSK":  {"TKIP", "AES"},
	"WPA2PSK": {"TKIP", "AES"},
}

// checkClientAuth validates an authentication, encryption and passphrase
// combination for station mode. Passphrase constraints follow the
// encryption: WEP-H takes 10 or 26 hexadecimal characters, WEP-A 5 or 13
// ASCII characters, TKIP and AES 8 to 63 ASCII characters, NONE takes no
// passphrase at all.
func checkClientAuth(auth, encryption, passphrase string) error {
	permitted, ok := clientEncryptions[auth]
	if !ok {
		return inputErrorf("client auth %q not one of OPEN, SHARED, WPAPSK, WPA2PSK", auth)
	}

	found := false
	for _, e := range permitted {
		if e == encryption {
			found = true
			break
		}
	}
	if !found {
		return inputErrorf("encryption %q not permitted with %s; pick one of %s",
			encryption, auth, strings.Join(permitted, ", "))
	}

	switch encryption {
	case "NONE":
		if passphrase != "" {
			return inputErrorf("passphrase with open encryption")
		}
	case "WEP-H":
		if l := len(passphrase); l != 10 && l != 26 {
			return inputErrorf("WEP-H passphrase of %d characters, want 10 or 26", l)
		}
		if !hexOnly(passphrase) {
			return inputErrorf("WEP-H passphrase not hexadecimal")
		}
	case "WEP-A":
		if l := len(passphrase); l != 5 && l != 13 {
			return inputErrorf("WEP-A passphrase of %d characters, want 5 or 13", l)
		}
		if !printableASCII(passphrase) {
			return inputErrorf("WEP-A passphrase not ASCII")
		}
	default: // TKIP, AES
		if l := len(passphrase); l < 8 || l > 63 {
			return inputErrorf("%s passphrase of %d characters not in [8, 63]", encryption, l)
		}
		if !printableASCII(passphrase) {
			return inputErrorf("%s passphrase not ASCII", encryption)
		}
	}
	return nil
}
