package session

// Defaults for the two device services. Every UFO ships with this
// management password; it doubles as the discovery hello.
const (
	DefaultPassword = "HF-A11ASSISTHREAD"

	// DefaultUDPPort is the management service port.
	DefaultUDPPort = 48899

	// DefaultTCPPort is the output service port.
	DefaultTCPPort = 5577
)

// PasswordMax is the management password capacity in octets.
const PasswordMax = 20

// Config defines a single-device session setup.
// The default is applied for each unspecified value.
// A Config is immutable once handed to an engine.
type Config struct {
	// Host is the device IP address or name. Mandatory.
	Host string

	// Password authenticates the management channel.
	// Default DefaultPassword; must be 1 to 20 ASCII characters.
	Password string

	// Remote service ports, DefaultUDPPort and DefaultTCPPort unless set.
	RemoteUDPPort int
	RemoteTCPPort int

	// Local endpoint selection, zero for ephemeral ports and the
	// unspecified address.
	LocalUDPPort int
	LocalTCPPort int
	LocalAddr    string

	// Coalesce permits the kernel to merge small output frames. Off by
	// default: color writes go out immediately.
	Coalesce bool

	// SendClock emits the date-time frame before factory reset and WiFi
	// client reconfiguration. The frame's device-side effect is unknown
	// and it appears inessential; the flag exists for bug compatibility
	// with other drivers.
	SendClock bool
}

// Check applies the default for each unspecified value.
// A panic is raised for a Config without Host; password validation is the
// caller's duty before the Config reaches an engine.
func (c *Config) check() *Config {
	if c.Host == "" {
		panic("lufo: session config without host")
	}
	if c.Password == "" {
		c.Password = DefaultPassword
	}
	if c.RemoteUDPPort == 0 {
		c.RemoteUDPPort = DefaultUDPPort
	}
	if c.RemoteTCPPort == 0 {
		c.RemoteTCPPort = DefaultTCPPort
	}
	return c
}
