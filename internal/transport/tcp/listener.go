package tcp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Listener waits for exactly one peer.
type Listener struct {
	listener net.Listener
	config   *tls.Config
	log      zerolog.Logger
	once     sync.Once
}

// Listen binds address and returns a Listener that hands out TLS conns
// configured with config.
func Listen(address string, config *tls.Config, log zerolog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return NewListener(ln, config, log), nil
}

// NewListener wraps an existing listener.
func NewListener(ln net.Listener, config *tls.Config, log zerolog.Logger) *Listener {
	return &Listener{listener: ln, config: config, log: log}
}

// Accept waits for one incoming connection and then stops listening. The
// handshake is left to the caller. Cancelling ctx closes the listener.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	raw, err := l.listener.Accept()
	l.Close()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("error in accepting connection: %w", err)
	}

	l.log.Debug().Str("remote", raw.RemoteAddr().String()).Msg("accepted tcp connection")
	return NewConn(raw, l.config), nil
}

// Addr returns the listening address.
func (l *Listener) Addr() string {
	return l.listener.Addr().String()
}

// Close stops listening. It is safe to call more than once.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		err = l.listener.Close()
	})
	return err
}

// Dial connects to address. The handshake is left to the caller.
func Dial(ctx context.Context, address string, config *tls.Config) (*Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return NewConn(raw, config), nil
}
