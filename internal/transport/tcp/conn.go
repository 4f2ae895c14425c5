// Package tcp provides the TLS-over-TCP transport for a peer.
package tcp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/omochice/peer-chat/internal/chat"
)

const readSize = 4096

var errNoHandshake = errors.New("tls handshake has not completed")

type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// Conn adapts a TCP connection to chat.Conn. Encryption starts with
// Handshake; until then Read and Write fail.
type Conn struct {
	raw    net.Conn
	config *tls.Config

	mu  sync.Mutex
	tls *tls.Conn
	ok  bool // handshake completed
}

// NewConn wraps a connected socket. config is used for whichever role the
// later Handshake selects.
func NewConn(raw net.Conn, config *tls.Config) *Conn {
	return &Conn{raw: raw, config: config}
}

// Handshake implements chat.Conn. An initiator with no ServerName in its
// config verifies the peer against the remote host it dialled.
func (c *Conn) Handshake(ctx context.Context, role chat.Role) error {
	cfg := c.config.Clone()

	c.mu.Lock()
	if c.tls != nil {
		c.mu.Unlock()
		return chat.ErrHandshakeStarted
	}
	switch role {
	case chat.Initiator:
		if cfg.ServerName == "" {
			cfg.ServerName = remoteHost(c.raw)
		}
		c.tls = tls.Client(c.raw, cfg)
	case chat.Responder:
		c.tls = tls.Server(c.raw, cfg)
	default:
		c.mu.Unlock()
		return fmt.Errorf("unknown role %v", role)
	}
	tc := c.tls
	c.mu.Unlock()

	if err := tc.HandshakeContext(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.ok = true
	c.mu.Unlock()
	return nil
}

// State returns the negotiated TLS parameters. It is only meaningful after a
// successful Handshake.
func (c *Conn) State() tls.ConnectionState {
	tc := c.stream()
	if tc == nil {
		return tls.ConnectionState{}
	}
	return tc.ConnectionState()
}

// Stream returns the encrypted stream once the handshake completed, or nil.
func (c *Conn) Stream() net.Conn {
	if tc := c.stream(); tc != nil {
		return tc
	}
	return nil
}

func (c *Conn) stream() *tls.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok {
		return nil
	}
	return c.tls
}

// Read implements chat.Conn.
// Reads available bytes from the TLS stream.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	tc := c.stream()
	if tc == nil {
		return nil, errNoHandshake
	}
	buf := make([]byte, readSize)
	n, err := tc.Read(buf)
	return buf[:n], err
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	tc := c.stream()
	if tc == nil {
		return errNoHandshake
	}
	_, err := tc.Write(data)
	return err
}

// Shutdown implements chat.Conn. It sends a TLS close_notify when the
// handshake completed and then shuts the TCP socket down in both
// directions, which also unblocks a pending Read.
func (c *Conn) Shutdown() error {
	var errs []error
	if tc := c.stream(); tc != nil {
		if err := tc.CloseWrite(); err != nil {
			errs = append(errs, err)
		}
	}
	if hc, ok := c.raw.(halfCloser); ok {
		if err := hc.CloseWrite(); err != nil {
			errs = append(errs, err)
		}
		if err := hc.CloseRead(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}

func remoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
