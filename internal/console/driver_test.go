package console_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/peer-chat/internal/chat"
	"github.com/omochice/peer-chat/internal/console"
)

type fakeChatter struct {
	ready     chan struct{}
	connected bool

	mu   sync.Mutex
	sent []string
}

func newFakeChatter(connected bool) *fakeChatter {
	f := &fakeChatter{ready: make(chan struct{}), connected: connected}
	close(f.ready)
	return f
}

func (f *fakeChatter) Ready() <-chan struct{} { return f.ready }

func (f *fakeChatter) Connected() bool { return f.connected }

func (f *fakeChatter) SendMessage(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeChatter) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeView struct {
	mu      sync.Mutex
	notices []string
	prompts int
}

func (v *fakeView) Notice(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, msg)
}

func (v *fakeView) Prompt() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prompts++
}

func TestDriver_Run(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "exit", input: "hello\n\nworld\nexit\nignored\n", want: []string{"hello", "world"}},
		{name: "eof", input: "only line\n", want: []string{"only line"}},
		{name: "exit needs whole line", input: "exit now\nexit\n", want: []string{"exit now"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeChatter(true)
			view := &fakeView{}
			d := console.NewDriver(c, view, strings.NewReader(tt.input), zerolog.Nop())

			if err := d.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			got := c.Sent()
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("sent = %q, want %q", got, tt.want)
			}
			if len(view.notices) != 1 || view.notices[0] != "Enter 'exit' to quit the chat." {
				t.Errorf("notices = %q", view.notices)
			}
			if view.prompts == 0 {
				t.Error("prompt was never drawn")
			}
		})
	}
}

func TestDriver_LongLine(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	c := newFakeChatter(true)
	d := console.NewDriver(c, &fakeView{}, strings.NewReader(long+"\nafter\r\nexit\r\n"), zerolog.Nop())

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := c.Sent()
	if len(got) != 2 {
		t.Fatalf("sent %d lines, want 2", len(got))
	}
	if got[0] != long {
		t.Errorf("long line arrived with %d bytes, want %d", len(got[0]), len(long))
	}
	if got[1] != "after" {
		t.Errorf("second line = %q, want %q", got[1], "after")
	}
}

func TestDriver_HandshakeFailed(t *testing.T) {
	c := newFakeChatter(false)
	d := console.NewDriver(c, &fakeView{}, strings.NewReader("hello\n"), zerolog.Nop())

	if err := d.Run(context.Background()); !errors.Is(err, chat.ErrHandshake) {
		t.Errorf("Run() error = %v, want ErrHandshake", err)
	}
	if len(c.Sent()) != 0 {
		t.Errorf("sent %q after a failed handshake", c.Sent())
	}
}

func TestDriver_WaitsForReady(t *testing.T) {
	c := &fakeChatter{ready: make(chan struct{})}
	d := console.NewDriver(c, &fakeView{}, strings.NewReader("hello\n"), zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Run() returned %v before the handshake resolved", err)
	case <-time.After(50 * time.Millisecond):
	}

	c.connected = true
	close(c.ready)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
	}
	if got := c.Sent(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("sent = %q, want [hello]", got)
	}
}

func TestDriver_Cancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	c := newFakeChatter(true)
	d := console.NewDriver(c, &fakeView{}, pr, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() ignored cancellation while waiting for input")
	}
}
