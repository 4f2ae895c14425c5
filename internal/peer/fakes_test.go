package peer_test

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/omochice/peer-chat/internal/chat"
	"github.com/omochice/peer-chat/pkg/protocol"
)

// fakeConn is a scripted chat.Conn.
type fakeConn struct {
	handshakeErr  error
	handshakeGate chan struct{} // when set, Handshake waits for it or ctx
	shutdownErr   error

	readCh  chan []byte
	readErr error // returned once readCh is closed; io.EOF when nil
	closed  chan struct{}

	mu        sync.Mutex
	written   [][]byte
	failWrite int // number of writes that fail before writes succeed
	shutdowns int
	closes    int
	reads     int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		readCh: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Handshake(ctx context.Context, role chat.Role) error {
	if f.handshakeGate != nil {
		select {
		case <-f.handshakeGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.handshakeErr
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	f.reads++
	f.mu.Unlock()

	select {
	case <-f.closed:
		return nil, net.ErrClosed
	case data, ok := <-f.readCh:
		if !ok {
			if f.readErr != nil {
				return nil, f.readErr
			}
			return nil, io.EOF
		}
		return data, nil
	}
}

func (f *fakeConn) Write(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite > 0 {
		f.failWrite--
		return io.ErrClosedPipe
	}
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return f.shutdownErr
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closes == 1 {
		close(f.closed)
	}
	return nil
}

func (f *fakeConn) RemoteAddr() string {
	return "fake:1"
}

func (f *fakeConn) Written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	for i, w := range f.written {
		out[i] = string(w)
	}
	return out
}

func (f *fakeConn) counts() (reads, shutdowns, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.shutdowns, f.closes
}

var _ chat.Conn = (*fakeConn)(nil)

// recordingSink collects everything a peer reports.
type recordingSink struct {
	events chan protocol.Event
	sent   chan protocol.Message

	mu       sync.Mutex
	notices  []string
	failures []error
	failed   chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		events: make(chan protocol.Event, 256),
		sent:   make(chan protocol.Message, 256),
		failed: make(chan struct{}, 64),
	}
}

func (s *recordingSink) Deliver(ev protocol.Event) { s.events <- ev }

func (s *recordingSink) Sent(msg protocol.Message) { s.sent <- msg }

func (s *recordingSink) Notice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, msg)
}

func (s *recordingSink) Failure(err error) {
	s.mu.Lock()
	s.failures = append(s.failures, err)
	s.mu.Unlock()
	s.failed <- struct{}{}
}

func (s *recordingSink) Notices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notices...)
}

func (s *recordingSink) Failures() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.failures...)
}

func (s *recordingSink) waitFailure(t *testing.T) {
	t.Helper()
	select {
	case <-s.failed:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for a failure report")
	}
}

func (s *recordingSink) nextEvent(t *testing.T) protocol.Event {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for an event")
		return nil
	}
}

func (s *recordingSink) nextSent(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case msg := <-s.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for a sent message")
		return protocol.Message{}
	}
}

func waitReady(t *testing.T, ready <-chan struct{}) {
	t.Helper()
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for the handshake to resolve")
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
