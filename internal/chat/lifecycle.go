package chat

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is a step in a connection's lifecycle.
type State int32

const (
	StateHandshaking State = iota
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Lifecycle publishes the handshake outcome of one connection. It is written
// by the transport goroutine and read by any number of others.
//
// Handshaking moves to Connected or Failed exactly once. Closed can be
// entered from any state and is final; Failed is final apart from Closed.
// Ready is closed as soon as the handshake is resolved, which includes a
// shutdown that arrives before the handshake finished.
type Lifecycle struct {
	mu        sync.Mutex
	state     State
	connected atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once
}

// NewLifecycle returns a lifecycle in the Handshaking state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		state: StateHandshaking,
		ready: make(chan struct{}),
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Connected reports whether the handshake succeeded and the connection has
// not been closed since.
func (l *Lifecycle) Connected() bool {
	return l.connected.Load()
}

// Ready is closed once the handshake is resolved.
func (l *Lifecycle) Ready() <-chan struct{} {
	return l.ready
}

// Wait blocks until the handshake is resolved or ctx is done. It returns nil
// only if the connection is usable.
func (l *Lifecycle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ready:
	}
	if !l.Connected() {
		return ErrNotConnected
	}
	return nil
}

// MarkConnected moves Handshaking to Connected. It reports false if the
// lifecycle already left Handshaking, for instance because of a shutdown.
func (l *Lifecycle) MarkConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateHandshaking {
		return false
	}
	l.state = StateConnected
	l.connected.Store(true)
	l.resolve()
	return true
}

// MarkFailed moves Handshaking to Failed.
func (l *Lifecycle) MarkFailed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateHandshaking {
		return false
	}
	l.state = StateFailed
	l.connected.Store(false)
	l.resolve()
	return true
}

// MarkClosed moves any state to Closed. It reports false if the lifecycle
// was already closed.
func (l *Lifecycle) MarkClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		return false
	}
	l.state = StateClosed
	l.connected.Store(false)
	l.resolve()
	return true
}

func (l *Lifecycle) resolve() {
	l.readyOnce.Do(func() { close(l.ready) })
}
