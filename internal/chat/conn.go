// Package chat holds the pieces shared by the peer and its transports: the
// socket contract, the handshake role, the connection lifecycle and the
// error kinds.
package chat

import "context"

// Role selects which side of the handshake an endpoint plays.
type Role int

const (
	// Initiator dialled the connection and acts as the TLS client.
	Initiator Role = iota
	// Responder accepted the connection and acts as the TLS server.
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return "unknown"
	}
}

// Conn abstracts an encrypted byte stream for both TCP and WebSocket.
// This interface isolates transport details from chat logic.
type Conn interface {
	// Handshake negotiates encryption for the given role. It blocks until
	// the handshake completes, fails, or ctx is cancelled.
	Handshake(ctx context.Context, role Role) error

	// Read returns the next chunk of available bytes. Chunks carry no frame
	// boundaries. Returns io.EOF when the peer closed the stream.
	Read(ctx context.Context) ([]byte, error)

	// Write sends data in full before returning.
	Write(ctx context.Context, data []byte) error

	// Shutdown half-closes the stream in both directions.
	Shutdown() error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
