// Package ws tunnels the chat stream through WebSocket messages inside the
// TLS channel. The TLS handshake runs first; the initiator then performs the
// WebSocket client upgrade over the encrypted stream.
package ws

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/peer-chat/internal/chat"
	"github.com/omochice/peer-chat/internal/transport/tcp"
)

// Path is the request path used for the upgrade.
const Path = "/chat"

var errNoUpgrade = errors.New("websocket upgrade has not completed")

// Conn adapts a WebSocket session over a tcp.Conn to chat.Conn.
type Conn struct {
	inner *tcp.Conn

	mu     sync.Mutex // guards everything below and serializes writes
	role   chat.Role
	rw     io.ReadWriter
	closed bool
}

// NewConn wraps a tcp.Conn whose handshake has not run yet.
func NewConn(inner *tcp.Conn) *Conn {
	return &Conn{inner: inner}
}

// Handshake implements chat.Conn.
func (c *Conn) Handshake(ctx context.Context, role chat.Role) error {
	if err := c.inner.Handshake(ctx, role); err != nil {
		return err
	}
	stream := c.inner.Stream()

	var reader io.Reader = stream
	switch role {
	case chat.Initiator:
		u := &url.URL{Scheme: "wss", Host: c.inner.RemoteAddr(), Path: Path}
		br, _, err := ws.Dialer{}.Upgrade(stream, u)
		if err != nil {
			return err
		}
		if br != nil {
			reader = br
		}
	case chat.Responder:
		if _, err := ws.Upgrade(stream); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.role = role
	c.rw = &lockedWriter{Reader: reader, w: stream, mu: &c.mu}
	c.mu.Unlock()
	return nil
}

func (c *Conn) session() (io.ReadWriter, chat.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rw, c.role
}

// Read implements chat.Conn.
// Returns the payload of the next text or binary message. A close frame
// from the peer ends the stream with io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	rw, role := c.session()
	if rw == nil {
		return nil, errNoUpgrade
	}

	var (
		data []byte
		err  error
	)
	if role == chat.Initiator {
		data, _, err = wsutil.ReadServerData(rw)
	} else {
		data, _, err = wsutil.ReadClientData(rw)
	}
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return nil, io.EOF
	}
	return data, err
}

// Write implements chat.Conn.
// Sends data as one text message.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rw == nil {
		return errNoUpgrade
	}
	w := c.rw.(*lockedWriter).w
	if c.role == chat.Initiator {
		return wsutil.WriteClientText(w, data)
	}
	return wsutil.WriteServerText(w, data)
}

// Shutdown implements chat.Conn. It sends a close frame before half-closing
// the TLS stream.
func (c *Conn) Shutdown() error {
	var errs []error

	c.mu.Lock()
	if c.rw != nil && !c.closed {
		c.closed = true
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		w := c.rw.(*lockedWriter).w
		var err error
		if c.role == chat.Initiator {
			err = wsutil.WriteClientMessage(w, ws.OpClose, body)
		} else {
			err = wsutil.WriteServerMessage(w, ws.OpClose, body)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	c.mu.Unlock()

	if err := c.inner.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.inner.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.inner.RemoteAddr()
}

// lockedWriter lets wsutil answer control frames (ping, close) from the read
// side without racing the writer goroutine.
type lockedWriter struct {
	io.Reader
	w  io.Writer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
