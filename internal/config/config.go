// Package config holds the settings of one chat session.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/omochice/peer-chat/internal/chat"
	"github.com/omochice/peer-chat/internal/credentials"
	"github.com/omochice/peer-chat/internal/peer"
	"github.com/omochice/peer-chat/pkg/protocol"
)

// Port range accepted for hosting and connecting.
const (
	MinPort     = 8000
	MaxPort     = 9000
	DefaultPort = 8080
)

// DefaultIP is the address used for both hosting and connecting.
const DefaultIP = "127.0.0.1"

// DefaultCertDir is where credentials are read from and generated into.
const DefaultCertDir = "certs"

// Transport kinds.
const (
	TransportTCP = "tcp"
	TransportWS  = "ws"
)

// Output kinds.
const (
	OutputConsole = "console"
	OutputJSON    = "json"
)

// Environment variables read by ApplyEnv.
const (
	EnvName       = "PEERCHAT_NAME"
	EnvColour     = "PEERCHAT_COLOUR"
	EnvAddr       = "PEERCHAT_ADDR"
	EnvPort       = "PEERCHAT_PORT"
	EnvCert       = "PEERCHAT_CERT"
	EnvKey        = "PEERCHAT_KEY"
	EnvCA         = "PEERCHAT_CA"
	EnvServerName = "PEERCHAT_SERVER_NAME"
	EnvTransport  = "PEERCHAT_TRANSPORT"
	EnvOutput     = "PEERCHAT_OUTPUT"
	EnvLogLevel   = "PEERCHAT_LOG_LEVEL"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full set of session settings.
type Config struct {
	Name   string
	Colour protocol.Colour
	Role   chat.Role

	IP   string
	Port int

	Credentials credentials.Paths
	// ServerName overrides the host name checked against the remote
	// certificate. Empty means the dialled host.
	ServerName string

	Transport string
	Output    string
	LogLevel  zerolog.Level
	QueueSize int
}

// Default returns the settings used when nothing is overridden.
func Default() Config {
	return Config{
		Colour:      protocol.ColourDefault,
		Role:        chat.Initiator,
		IP:          DefaultIP,
		Port:        DefaultPort,
		Credentials: credentials.DefaultPaths(DefaultCertDir),
		Transport:   TransportTCP,
		Output:      OutputConsole,
		LogLevel:    zerolog.WarnLevel,
		QueueSize:   peer.DefaultQueueSize,
	}
}

// Address returns IP and Port joined for net.Dial and net.Listen.
func (c Config) Address() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// ApplyEnv overrides fields from environment variables looked up with
// lookup. Unset and empty variables are ignored. It fails on values that
// cannot be parsed.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get(EnvName); ok {
		c.Name = v
	}
	if v, ok := get(EnvColour); ok {
		c.Colour = protocol.ParseColour(v)
	}
	if v, ok := get(EnvAddr); ok {
		c.IP = v
	}
	if v, ok := get(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, EnvPort, v)
		}
		c.Port = port
	}
	if v, ok := get(EnvCert); ok {
		c.Credentials.Certificate = v
	}
	if v, ok := get(EnvKey); ok {
		c.Credentials.PrivateKey = v
	}
	if v, ok := get(EnvCA); ok {
		c.Credentials.CA = v
	}
	if v, ok := get(EnvServerName); ok {
		c.ServerName = v
	}
	if v, ok := get(EnvTransport); ok {
		c.Transport = v
	}
	if v, ok := get(EnvOutput); ok {
		c.Output = v
	}
	if v, ok := get(EnvLogLevel); ok {
		level, err := zerolog.ParseLevel(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, EnvLogLevel, err)
		}
		c.LogLevel = level
	}
	return nil
}

// FromEnv returns Default with the process environment applied.
func FromEnv() (Config, error) {
	c := Default()
	err := c.ApplyEnv(os.LookupEnv)
	return c, err
}

// Validate reports the first invalid field. The display name is only
// checked when set, since interactive sessions ask for it later.
func (c Config) Validate() error {
	if c.Name != "" {
		if err := protocol.ValidateName(c.Name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	if net.ParseIP(c.IP) == nil {
		return fmt.Errorf("%w: %q is not an IP address", ErrInvalid, c.IP)
	}
	if c.Port < MinPort || c.Port > MaxPort {
		return fmt.Errorf("%w: port %d is outside %d-%d", ErrInvalid, c.Port, MinPort, MaxPort)
	}
	switch c.Transport {
	case TransportTCP, TransportWS:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Transport)
	}
	switch c.Output {
	case OutputConsole, OutputJSON:
	default:
		return fmt.Errorf("%w: unknown output %q", ErrInvalid, c.Output)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive", ErrInvalid)
	}
	for _, p := range []string{c.Credentials.Certificate, c.Credentials.PrivateKey, c.Credentials.CA} {
		if p == "" {
			return fmt.Errorf("%w: credential paths must be set", ErrInvalid)
		}
	}
	return nil
}

// CertDir returns the directory holding the certificate file.
func (c Config) CertDir() string {
	return filepath.Dir(c.Credentials.Certificate)
}
