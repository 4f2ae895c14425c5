package chat

import "errors"

// Error kinds. Concrete failures wrap one of these together with the cause,
// so callers match them with errors.Is.
var (
	ErrHandshake        = errors.New("handshake failed")
	ErrHandshakeStarted = errors.New("handshake already started")
	ErrRead             = errors.New("error reading message")
	ErrWrite            = errors.New("error sending message")
	ErrNotConnected     = errors.New("not connected to peer yet")
	ErrShutdown         = errors.New("shutdown error")
)
