package ws

import (
	"context"
	"crypto/tls"

	"github.com/rs/zerolog"

	"github.com/omochice/peer-chat/internal/transport/tcp"
)

// Listener waits for exactly one peer and hands it out as a WebSocket Conn.
type Listener struct {
	*tcp.Listener
}

// Listen binds address.
func Listen(address string, config *tls.Config, log zerolog.Logger) (*Listener, error) {
	l, err := tcp.Listen(address, config, log)
	if err != nil {
		return nil, err
	}
	return &Listener{Listener: l}, nil
}

// Accept waits for one incoming connection. The TLS handshake and the
// upgrade both happen in Conn.Handshake.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	c, err := l.Listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}

// Dial connects to address.
func Dial(ctx context.Context, address string, config *tls.Config) (*Conn, error) {
	c, err := tcp.Dial(ctx, address, config)
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}
