package config_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/omochice/peer-chat/internal/config"
	"github.com/omochice/peer-chat/pkg/protocol"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	c := config.Default()

	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if got, want := c.Address(), "127.0.0.1:8080"; got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}
	if got, want := c.Credentials.Certificate, "certs/peer.crt"; got != want {
		t.Errorf("Certificate = %q, want %q", got, want)
	}
	if got, want := c.CertDir(), "certs"; got != want {
		t.Errorf("CertDir() = %q, want %q", got, want)
	}
	if c.LogLevel != zerolog.WarnLevel {
		t.Errorf("LogLevel = %v, want warn", c.LogLevel)
	}
	if c.QueueSize != 64 {
		t.Errorf("QueueSize = %d, want 64", c.QueueSize)
	}
}

func TestApplyEnv(t *testing.T) {
	c := config.Default()
	err := c.ApplyEnv(env(map[string]string{
		config.EnvName:       "alice",
		config.EnvColour:     "Red",
		config.EnvAddr:       "10.0.0.2",
		config.EnvPort:       "8123",
		config.EnvCert:       "/etc/chat/me.crt",
		config.EnvKey:        "/etc/chat/me.key",
		config.EnvCA:         "/etc/chat/ca.crt",
		config.EnvServerName: "chat.local",
		config.EnvTransport:  "ws",
		config.EnvOutput:     "json",
		config.EnvLogLevel:   "debug",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if c.Name != "alice" || c.Colour != protocol.ColourRed {
		t.Errorf("identity = %q/%v, want alice/red", c.Name, c.Colour)
	}
	if got, want := c.Address(), "10.0.0.2:8123"; got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}
	if c.Credentials.PrivateKey != "/etc/chat/me.key" || c.Credentials.CA != "/etc/chat/ca.crt" {
		t.Errorf("Credentials = %+v", c.Credentials)
	}
	if c.ServerName != "chat.local" || c.Transport != "ws" || c.Output != "json" {
		t.Errorf("ServerName/Transport/Output = %q/%q/%q", c.ServerName, c.Transport, c.Output)
	}
	if c.LogLevel != zerolog.DebugLevel {
		t.Errorf("LogLevel = %v, want debug", c.LogLevel)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if got, want := c.CertDir(), "/etc/chat"; got != want {
		t.Errorf("CertDir() = %q, want %q", got, want)
	}
}

func TestApplyEnv_EmptyIgnored(t *testing.T) {
	c := config.Default()
	if err := c.ApplyEnv(env(map[string]string{config.EnvPort: "", config.EnvAddr: ""})); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if c.Address() != "127.0.0.1:8080" {
		t.Errorf("empty variables changed the address to %q", c.Address())
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{name: "port", vars: map[string]string{config.EnvPort: "eighty"}},
		{name: "log level", vars: map[string]string{config.EnvLogLevel: "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.Default()
			if err := c.ApplyEnv(env(tt.vars)); !errors.Is(err, config.ErrInvalid) {
				t.Errorf("ApplyEnv() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{name: "name with separator", modify: func(c *config.Config) { c.Name = "a|b" }},
		{name: "bad ip", modify: func(c *config.Config) { c.IP = "localhost" }},
		{name: "port too low", modify: func(c *config.Config) { c.Port = 7999 }},
		{name: "port too high", modify: func(c *config.Config) { c.Port = 9001 }},
		{name: "transport", modify: func(c *config.Config) { c.Transport = "udp" }},
		{name: "output", modify: func(c *config.Config) { c.Output = "xml" }},
		{name: "queue", modify: func(c *config.Config) { c.QueueSize = 0 }},
		{name: "missing ca", modify: func(c *config.Config) { c.Credentials.CA = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.Default()
			tt.modify(&c)
			if err := c.Validate(); !errors.Is(err, config.ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidate_PortBounds(t *testing.T) {
	for _, port := range []int{config.MinPort, config.MaxPort} {
		c := config.Default()
		c.Port = port
		if err := c.Validate(); err != nil {
			t.Errorf("Validate() with port %d error = %v", port, err)
		}
	}
}
