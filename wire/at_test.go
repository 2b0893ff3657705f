package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeAT(t *testing.T) {
	var golden = []struct {
		cmd  Cmd
		args []string
		want string
	}{
		{NTPServer, nil, "AT+NTPSER\r"},
		{NTPServer, []string{"1.2.3.4"}, "AT+NTPSER=1.2.3.4\r"},
		{EndCmd, nil, "AT+Q\r"},
		{Reboot, nil, "AT+Z\r"},
		{WifiAPDHCP, []string{"on", "100", "150"}, "AT+WADHCP=on,100,150\r"},
		{WifiClientAuth, []string{"WPA2PSK", "AES", "hunter22"}, "AT+WSKEY=WPA2PSK,AES,hunter22\r"},
	}
	for _, gold := range golden {
		got := EncodeAT(gold.cmd, gold.args...)
		if string(got) != gold.want {
			t.Errorf("got %q for %s %v, want %q", got, gold.cmd.Word, gold.args, gold.want)
		}
	}
}

func TestDecodeAT(t *testing.T) {
	var golden = []struct {
		in   string
		want string
	}{
		{"+ok\r\n\r\n", ""},
		{"+ok=V1.1.9\r\n\r\n", "V1.1.9"},
		{"+ok=10.0.0.1,255.255.255.0\r\n\r\n", "10.0.0.1,255.255.255.0"},
		{"+ok= padded \r\n\r\n", "padded"},
		{"+ok=Disconnected", "Disconnected"},
	}
	for _, gold := range golden {
		got, err := DecodeAT([]byte(gold.in))
		if err != nil {
			t.Errorf("%q: decode error: %s", gold.in, err)
			continue
		}
		if got != gold.want {
			t.Errorf("%q: got %q, want %q", gold.in, got, gold.want)
		}
	}
}

func TestDecodeATError(t *testing.T) {
	var golden = []struct {
		in       string
		wantCode int
	}{
		{"+ERR=-1\r\n\r\n", -1},
		{"+ERR=-2\r\n\r\n", -2},
		{"+ERR=-3\r\n\r\n", -3},
		{"+ERR=-4\r\n\r\n", -4},
		{"+ERR=-5\r\n\r\n", -5},
		{"+ERR\r\n\r\n", -2},
	}
	for _, gold := range golden {
		_, err := DecodeAT([]byte(gold.in))
		e, ok := err.(*ATError)
		if !ok {
			t.Errorf("%q: got error %v, want *ATError", gold.in, err)
			continue
		}
		if e.Code != gold.wantCode {
			t.Errorf("%q: got code %d, want %d", gold.in, e.Code, gold.wantCode)
		}
		if e.Error() == "" {
			t.Errorf("%q: empty error message", gold.in)
		}
	}

	if _, err := DecodeAT([]byte("rubbish\r\n\r\n")); err == nil {
		t.Error("response outside the envelope accepted")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList("TCP, Server, 5577 ,192.168.0.30")
	want := []string{"TCP", "Server", "5577", "192.168.0.30"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Error("list mismatch (-want +got):\n", diff)
	}
}

// TestATErrorKinds pins the five documented failure kinds.
func TestATErrorKinds(t *testing.T) {
	var golden = map[int]string{
		-1: "lufo: AT error -1: invalid command format",
		-2: "lufo: AT error -2: invalid command",
		-3: "lufo: AT error -3: invalid operation symbol",
		-4: "lufo: AT error -4: invalid parameter",
		-5: "lufo: AT error -5: operation not permitted",
		-9: "lufo: AT error -9: unknown failure",
	}
	for code, want := range golden {
		e := ATError{Code: code}
		if got := e.Error(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}
