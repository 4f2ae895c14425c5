package tcp_test

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/nettest"

	"github.com/omochice/peer-chat/internal/transport/tcp"
)

func TestListen_Addr(t *testing.T) {
	l, err := tcp.Listen("127.0.0.1:0", &tls.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer l.Close()

	if l.Addr() == "" {
		t.Error("Addr() returned empty string")
	}
}

func TestListen_BindFailure(t *testing.T) {
	l, err := tcp.Listen("127.0.0.1:0", &tls.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer l.Close()

	if _, err := tcp.Listen(l.Addr(), &tls.Config{}, zerolog.Nop()); err == nil {
		t.Error("second Listen() on the same address should fail")
	}
}

func TestListener_AcceptsOnlyOnce(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	l := tcp.NewListener(ln, &tls.Config{}, zerolog.Nop())
	addr := l.Addr()

	go func() {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			defer conn.Close()
			time.Sleep(100 * time.Millisecond)
		}
	}()

	conn, err := l.Accept(context.Background())
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	defer conn.Close()

	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Error("listener should stop listening after the first peer")
	}
}

func TestListener_AcceptCancelled(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	l := tcp.NewListener(ln, &tls.Config{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if _, err := l.Accept(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Accept() error = %v, want context.Canceled", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() after cancelled Accept error = %v", err)
	}
}

func TestDial_Refused(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := tcp.Dial(context.Background(), addr, &tls.Config{}); err == nil {
		t.Error("Dial() to a closed port should fail")
	}
}
