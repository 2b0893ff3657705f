package lufo

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/rjenkinsjr/lufo/wire"
)

// scalar runs a command cycle and collapses the response to one value.
func (d *Device) scalar(cmd wire.Cmd, args ...string) (string, error) {
	values, err := d.udp.Exchange(cmd, args...)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", nil
	}
	return values[0], nil
}

// maybeClock emits the date-time frame when bug compatibility asks for it.
// See session.Config.SendClock.
func (d *Device) maybeClock() error {
	if !d.config.SendClock {
		return nil
	}
	return d.tcp.Send(wire.Clock(time.Now()))
}

// ModuleVersion reads the WiFi module version string.
func (d *Device) ModuleVersion() (string, error) {
	return d.scalar(wire.ModuleVersion)
}

// NTPServer reads the NTP server address.
func (d *Device) NTPServer() (string, error) {
	return d.scalar(wire.NTPServer)
}

// SetNTPServer applies the NTP server address.
func (d *Device) SetNTPServer(ip string) error {
	if err := checkIPv4("NTP server", ip); err != nil {
		return err
	}
	_, err := d.udp.Exchange(wire.NTPServer, ip)
	return err
}

// Password reads the management password.
func (d *Device) Password() (string, error) {
	return d.scalar(wire.UDPPassword)
}

// SetPassword applies a new management password, 1 to 20 ASCII
// characters, and uses it for subsequent exchanges on this session.
func (d *Device) SetPassword(password string) error {
	if err := CheckPassword(password); err != nil {
		return err
	}
	if _, err := d.udp.Exchange(wire.UDPPassword, password); err != nil {
		return err
	}
	d.udp.SetPassword(password)
	return nil
}

// TCPServer is the output-service endpoint configuration.
type TCPServer struct {
	Protocol string `json:"protocol"` // TCP or UDP
	Mode     string `json:"mode"`     // Client or Server
	Port     int    `json:"port"`
	IP       string `json:"ip"`
}

// TCPServer reads the output-service endpoint.
func (d *Device) TCPServer() (*TCPServer, error) {
	values, err := d.udp.Exchange(wire.TCPServer)
	if err != nil {
		return nil, err
	}
	if len(values) != 4 {
		return nil, errors.Errorf("lufo: NETP reply %q not a 4-tuple", strings.Join(values, ","))
	}
	port, err := strconv.Atoi(values[2])
	if err != nil {
		return nil, errors.Wrap(err, "lufo: NETP port")
	}
	return &TCPServer{Protocol: values[0], Mode: values[1], Port: port, IP: values[3]}, nil
}

// SetTCPPort moves the output service to another port, clamped into
// [0, 65535]. The device requires the full 4-tuple resent for a port
// change, and restarts its network stack afterwards: the session dies,
// with the disconnect notification reporting an ordered close.
func (d *Device) SetTCPPort(port int) error {
	current, err := d.TCPServer()
	if err != nil {
		return err
	}
	port = clamp(port, 0, 65535)
	_, err = d.udp.Exchange(wire.TCPServer,
		current.Protocol, current.Mode, strconv.Itoa(port), current.IP)
	if err != nil {
		return err
	}
	return d.Close()
}

// WifiAutoSwitch reads the AP fallback behavior.
func (d *Device) WifiAutoSwitch() (string, error) {
	return d.scalar(wire.WifiAutoSwitch)
}

// SetWifiAutoSwitch applies the AP fallback behavior: off, on, auto, or
// a timeout in minutes clamped into [3, 120].
func (d *Device) SetWifiAutoSwitch(value string) error {
	switch value {
	case "off", "on", "auto":
		break
	default:
		minutes, err := strconv.Atoi(value)
		if err != nil {
			return inputErrorf("auto-switch value %q not off, on, auto or minutes", value)
		}
		value = strconv.Itoa(clamp(minutes, 3, 120))
	}
	_, err := d.udp.Exchange(wire.WifiAutoSwitch, value)
	return err
}

// WifiMode reads the radio mode.
func (d *Device) WifiMode() (string, error) {
	return d.scalar(wire.WifiMode)
}

// SetWifiMode applies the radio mode: AP, STA or APSTA.
func (d *Device) SetWifiMode(mode string) error {
	switch mode {
	case "AP", "STA", "APSTA":
		break
	default:
		return inputErrorf("radio mode %q not AP, STA or APSTA", mode)
	}
	_, err := d.udp.Exchange(wire.WifiMode, mode)
	return err
}

// ScanResult is one network from a survey.
type ScanResult struct {
	Channel  int     `json:"channel"`
	SSID     *string `json:"ssid"` // nil for a hidden network
	MAC      string  `json:"mac"`
	Security string  `json:"security"`
	Strength int     `json:"strength"` // 0..100
}

// WifiScan surveys the networks in range.
func (d *Device) WifiScan() ([]ScanResult, error) {
	rows, err := d.udp.ExchangeLines(wire.WifiScan)
	if err != nil {
		return nil, err
	}

	results := make([]ScanResult, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue // malformed survey line
		}
		channel, _ := strconv.Atoi(row[0])
		strength, _ := strconv.Atoi(row[4])
		r := ScanResult{
			Channel:  clamp(channel, 1, 11),
			MAC:      NormalizeMAC(row[2]),
			Security: row[3],
			Strength: clamp(strength, 0, 100),
		}
		if row[1] != "" {
			ssid := row[1]
			r.SSID = &ssid
		}
		results = append(results, r)
	}
	return results, nil
}

// APNet is the access-point addressing.
type APNet struct {
	IP   string `json:"ip"`
	Mask string `json:"mask"`
}

// WifiAPIP reads the access-point addressing.
func (d *Device) WifiAPIP() (*APNet, error) {
	values, err := d.udp.Exchange(wire.WifiAPIP)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, errors.Errorf("lufo: LANN reply %q not an ip,mask pair", strings.Join(values, ","))
	}
	return &APNet{IP: values[0], Mask: values[1]}, nil
}

// SetWifiAPIP applies the access-point addressing.
func (d *Device) SetWifiAPIP(ip, mask string) error {
	if err := checkIPv4("AP IP", ip); err != nil {
		return err
	}
	if err := checkIPv4("AP mask", mask); err != nil {
		return err
	}
	_, err := d.udp.Exchange(wire.WifiAPIP, ip, mask)
	return err
}

// APBroadcast is the access-point beacon configuration.
type APBroadcast struct {
	Mode    string `json:"mode"` // 11B, 11BG or 11BGN
	SSID    string `json:"ssid"`
	Channel int    `json:"channel"` // 1..11
}

// WifiAPBroadcast reads the access-point beacon configuration.
func (d *Device) WifiAPBroadcast() (*APBroadcast, error) {
	values, err := d.udp.Exchange(wire.WifiAPBroadcast)
	if err != nil {
		return nil, err
	}
	if len(values) != 3 {
		return nil, errors.Errorf("lufo: WAP reply %q not a mode,ssid,channel triple", strings.Join(values, ","))
	}
	channel, _ := strconv.Atoi(strings.TrimPrefix(values[2], "CH"))
	return &APBroadcast{Mode: values[0], SSID: values[1], Channel: clamp(channel, 1, 11)}, nil
}

// SetWifiAPBroadcast applies the access-point beacon: mode 11B, 11BG or
// 11BGN, an SSID of up to 32 characters and a channel clamped into
// [1, 11].
func (d *Device) SetWifiAPBroadcast(mode, ssid string, channel int) error {
	switch mode {
	case "11B", "11BG", "11BGN":
		break
	default:
		return inputErrorf("AP mode %q not 11B, 11BG or 11BGN", mode)
	}
	if err := checkSSID(ssid); err != nil {
		return err
	}
	ch := "CH" + strconv.Itoa(clamp(channel, 1, 11))
	_, err := d.udp.Exchange(wire.WifiAPBroadcast, mode, ssid, ch)
	return err
}

// APAuth is the access-point authentication configuration.
type APAuth struct {
	Auth       string `json:"auth"`       // OPEN or WPA2PSK
	Encryption string `json:"encryption"` // NONE or AES
	Passphrase string `json:"passphrase,omitempty"`
}

// WifiAPAuth reads the access-point authentication configuration.
func (d *Device) WifiAPAuth() (*APAuth, error) {
	values, err := d.udp.Exchange(wire.WifiAPAuth)
	if err != nil {
		return nil, err
	}
	if len(values) < 2 {
		return nil, errors.Errorf("lufo: WAKEY reply %q too short", strings.Join(values, ","))
	}
	a := &APAuth{Auth: values[0], Encryption: values[1]}
	if len(values) > 2 {
		a.Passphrase = values[2]
	}
	return a, nil
}

// SetWifiAPAuth applies access-point authentication. An empty passphrase
// opens the network; otherwise WPA2PSK/AES with a passphrase of 8 to 63
// ASCII characters.
func (d *Device) SetWifiAPAuth(passphrase string) error {
	if passphrase == "" {
		_, err := d.udp.Exchange(wire.WifiAPAuth, "OPEN", "NONE")
		return err
	}
	if err := checkAPPassphrase(passphrase); err != nil {
		return err
	}
	_, err := d.udp.Exchange(wire.WifiAPAuth, "WPA2PSK", "AES", passphrase)
	return err
}

// WifiAPLED reads the WiFi status LED setting.
func (d *Device) WifiAPLED() (bool, error) {
	value, err := d.scalar(wire.WifiAPLED)
	if err != nil {
		return false, err
	}
	return value == "on", nil
}

// SetWifiAPLED applies the WiFi status LED setting.
func (d *Device) SetWifiAPLED(on bool) error {
	value := "off"
	if on {
		value = "on"
	}
	_, err := d.udp.Exchange(wire.WifiAPLED, value)
	return err
}

// APDHCP is the access-point DHCP server configuration.
type APDHCP struct {
	On    bool `json:"on"`
	Start int  `json:"start,omitempty"` // final address octet, 0..254
	End   int  `json:"end,omitempty"`   // final address octet, 0..254
}

// WifiAPDHCP reads the access-point DHCP server configuration.
func (d *Device) WifiAPDHCP() (*APDHCP, error) {
	values, err := d.udp.Exchange(wire.WifiAPDHCP)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.New("lufo: WADHCP reply empty")
	}
	if values[0] != "on" {
		return &APDHCP{}, nil
	}
	if len(values) != 3 {
		return nil, errors.Errorf("lufo: WADHCP reply %q not an on,start,end triple", strings.Join(values, ","))
	}
	start, _ := strconv.Atoi(values[1])
	end, _ := strconv.Atoi(values[2])
	return &APDHCP{On: true, Start: start, End: end}, nil
}

// SetWifiAPDHCP turns the access-point DHCP server on with a lease range
// given as final address octets, each clamped into [0, 254].
func (d *Device) SetWifiAPDHCP(start, end int) error {
	_, err := d.udp.Exchange(wire.WifiAPDHCP, "on",
		strconv.Itoa(clamp(start, 0, 254)), strconv.Itoa(clamp(end, 0, 254)))
	return err
}

// SetWifiAPDHCPOff turns the access-point DHCP server off.
func (d *Device) SetWifiAPDHCPOff() error {
	_, err := d.udp.Exchange(wire.WifiAPDHCP, "off")
	return err
}

// ClientAPInfo is the access point a station-mode device associates with.
type ClientAPInfo struct {
	Connected bool   `json:"connected"`
	SSID      string `json:"ssid,omitempty"`
	MAC       string `json:"mac,omitempty"`
}

// WifiClientAPInfo reads the associated access point.
func (d *Device) WifiClientAPInfo() (*ClientAPInfo, error) {
	value, err := d.scalar(wire.WifiClientAPInfo)
	if err != nil {
		return nil, err
	}
	if value == "Disconnected" {
		return &ClientAPInfo{}, nil
	}
	// the reply reads SSID(MAC)
	open := strings.LastIndexByte(value, '(')
	if open < 0 || !strings.HasSuffix(value, ")") {
		return nil, errors.Errorf("lufo: WSLK reply %q not SSID(MAC)", value)
	}
	return &ClientAPInfo{
		Connected: true,
		SSID:      value[:open],
		MAC:       NormalizeMAC(value[open+1 : len(value)-1]),
	}, nil
}

// WifiClientAPSignal reads the association signal report, or the literal
// Disconnected.
func (d *Device) WifiClientAPSignal() (string, error) {
	return d.scalar(wire.WifiClientAPSignal)
}

// ClientIP is the station-mode addressing.
type ClientIP struct {
	DHCP    bool   `json:"dhcp"`
	IP      string `json:"ip,omitempty"`
	Mask    string `json:"mask,omitempty"`
	Gateway string `json:"gateway,omitempty"`
}

// WifiClientIP reads the station-mode addressing.
func (d *Device) WifiClientIP() (*ClientIP, error) {
	values, err := d.udp.Exchange(wire.WifiClientIP)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.New("lufo: WANN reply empty")
	}
	if strings.EqualFold(values[0], "DHCP") {
		return &ClientIP{DHCP: true}, nil
	}
	if len(values) != 4 {
		return nil, errors.Errorf("lufo: WANN reply %q not static,ip,mask,gateway", strings.Join(values, ","))
	}
	return &ClientIP{IP: values[1], Mask: values[2], Gateway: values[3]}, nil
}

// SetWifiClientIPDHCP puts station-mode addressing under DHCP.
func (d *Device) SetWifiClientIPDHCP() error {
	if err := d.maybeClock(); err != nil {
		return err
	}
	_, err := d.udp.Exchange(wire.WifiClientIP, "DHCP")
	return err
}

// SetWifiClientIPStatic applies static station-mode addressing.
func (d *Device) SetWifiClientIPStatic(ip, mask, gateway string) error {
	if err := checkIPv4("client IP", ip); err != nil {
		return err
	}
	if err := checkIPv4("client mask", mask); err != nil {
		return err
	}
	if err := checkIPv4("client gateway", gateway); err != nil {
		return err
	}
	if err := d.maybeClock(); err != nil {
		return err
	}
	_, err := d.udp.Exchange(wire.WifiClientIP, "static", ip, mask, gateway)
	return err
}

// WifiClientSSID reads the SSID a station-mode device associates with.
func (d *Device) WifiClientSSID() (string, error) {
	return d.scalar(wire.WifiClientSSID)
}

// SetWifiClientSSID applies the SSID to associate with, up to 32
// characters.
func (d *Device) SetWifiClientSSID(ssid string) error {
	if err := checkSSID(ssid); err != nil {
		return err
	}
	if err := d.maybeClock(); err != nil {
		return err
	}
	_, err := d.udp.Exchange(wire.WifiClientSSID, ssid)
	return err
}

// ClientAuth is the station-mode authentication configuration.
type ClientAuth struct {
	Auth       string `json:"auth"`
	Encryption string `json:"encryption"`
	Passphrase string `json:"passphrase,omitempty"`
}

// WifiClientAuth reads the station-mode authentication configuration.
func (d *Device) WifiClientAuth() (*ClientAuth, error) {
	values, err := d.udp.Exchange(wire.WifiClientAuth)
	if err != nil {
		return nil, err
	}
	if len(values) < 2 {
		return nil, errors.Errorf("lufo: WSKEY reply %q too short", strings.Join(values, ","))
	}
	a := &ClientAuth{Auth: values[0], Encryption: values[1]}
	if len(values) > 2 {
		a.Passphrase = values[2]
	}
	return a, nil
}

// SetWifiClientAuth applies station-mode authentication. See the package
// documentation of the permitted authentication and encryption
// combinations; the passphrase constraints follow the encryption.
func (d *Device) SetWifiClientAuth(auth, encryption, passphrase string) error {
	if err := checkClientAuth(auth, encryption, passphrase); err != nil {
		return err
	}
	if err := d.maybeClock(); err != nil {
		return err
	}
	args := []string{auth, encryption}
	if passphrase != "" {
		args = append(args, passphrase)
	}
	_, err := d.udp.Exchange(wire.WifiClientAuth, args...)
	return err
}

// Reboot restarts the device. The session dies on success; the
// disconnect notification reports an ordered close.
func (d *Device) Reboot() error {
	if err := d.udp.ExchangeFinal(wire.Reboot, ""); err != nil {
		return err
	}
	return d.Close()
}

// FactoryReset restores factory configuration. Any reply other than the
// documented acknowledgement is a protocol fault and kills the session
// the hard way; on success the session dies in order.
func (d *Device) FactoryReset() error {
	if err := d.maybeClock(); err != nil {
		return err
	}
	if err := d.udp.ExchangeFinal(wire.FactoryReset, "rebooting..."); err != nil {
		return err
	}
	return d.Close()
}
