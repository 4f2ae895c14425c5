// Package runner wires a configured chat session together: credentials,
// transport, peer, display and console.
package runner

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/peer-chat/internal/chat"
	"github.com/omochice/peer-chat/internal/config"
	"github.com/omochice/peer-chat/internal/console"
	"github.com/omochice/peer-chat/internal/credentials"
	"github.com/omochice/peer-chat/internal/display"
	"github.com/omochice/peer-chat/internal/peer"
	"github.com/omochice/peer-chat/internal/transport/tcp"
	"github.com/omochice/peer-chat/internal/transport/ws"
)

// Display is both the peer's sink and the console's view.
type Display interface {
	peer.Sink
	console.View
}

// Runner runs one chat session.
type Runner struct {
	cfg    config.Config
	in     io.Reader
	out    io.Writer
	redraw bool
	log    zerolog.Logger
}

// NewRunner returns a Runner reading operator lines from in and writing the
// chat to out. redraw enables terminal line clearing on console output.
func NewRunner(cfg config.Config, in io.Reader, out io.Writer, redraw bool, log zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, in: in, out: out, redraw: redraw, log: log}
}

// Run hosts or connects according to the configured role and chats until
// the operator exits, input ends, ctx is done or SIGINT/SIGTERM arrives.
// Start-up failures are returned; failures after the peer exists are
// reported to the display.
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.Name == "" {
		return fmt.Errorf("%w: display name is required", config.ErrInvalid)
	}
	if err := r.cfg.Validate(); err != nil {
		return err
	}

	material, err := credentials.Load(r.cfg.Credentials)
	if err != nil {
		return err
	}
	tlsConfig := material.Config()
	tlsConfig.ServerName = r.cfg.ServerName

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	view := r.display()

	var conn chat.Conn
	if r.cfg.Role == chat.Responder {
		conn, err = r.host(ctx, tlsConfig, view)
	} else {
		conn, err = r.connect(ctx, tlsConfig, view)
	}
	if err != nil {
		return err
	}

	p, err := peer.New(conn, r.cfg.Name, r.cfg.Colour, view,
		peer.WithLogger(r.log),
		peer.WithQueueSize(r.cfg.QueueSize),
	)
	if err != nil {
		conn.Close()
		return err
	}
	if err := p.StartHandshake(r.cfg.Role); err != nil {
		p.Shutdown()
		return err
	}

	return r.chat(ctx, p, view)
}

func (r *Runner) display() Display {
	if r.cfg.Output == config.OutputJSON {
		return display.NewJSON(r.out, r.log)
	}
	return display.NewConsole(r.out, r.cfg.Name, display.WithRedraw(r.redraw))
}

// chat runs the console until it ends, then shuts the peer down.
func (r *Runner) chat(ctx context.Context, p *peer.Peer, view Display) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	driver := console.NewDriver(p, view, r.in, r.log)

	g, gctx := errgroup.WithContext(sessionCtx)
	g.Go(func() error {
		defer cancel()
		err := driver.Run(gctx)
		if errors.Is(err, context.Canceled) {
			r.log.Info().Msg("chat interrupted")
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		if err := p.Shutdown(); err != nil {
			r.log.Debug().Err(err).Msg("shutdown reported errors")
		}
		return nil
	})
	return g.Wait()
}

func (r *Runner) host(ctx context.Context, tlsConfig *tls.Config, view Display) (chat.Conn, error) {
	l, err := tcp.Listen(r.cfg.Address(), tlsConfig, r.log)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	view.Notice(fmt.Sprintf("Host IP: %s, Port: %d", r.cfg.IP, r.cfg.Port))
	view.Notice("Waiting for someone to connect...")
	r.log.Info().Str("addr", l.Addr()).Str("transport", r.cfg.Transport).Msg("listening")

	var conn chat.Conn
	if r.cfg.Transport == config.TransportWS {
		c, err := (&ws.Listener{Listener: l}).Accept(ctx)
		if err != nil {
			return nil, err
		}
		conn = c
	} else {
		c, err := l.Accept(ctx)
		if err != nil {
			return nil, err
		}
		conn = c
	}

	view.Notice("Host: Connection established.")
	return conn, nil
}

func (r *Runner) connect(ctx context.Context, tlsConfig *tls.Config, view Display) (chat.Conn, error) {
	view.Notice(fmt.Sprintf("Host IP: %s, Port: %d", r.cfg.IP, r.cfg.Port))
	r.log.Info().Str("addr", r.cfg.Address()).Str("transport", r.cfg.Transport).Msg("connecting")

	if r.cfg.Transport == config.TransportWS {
		c, err := ws.Dial(ctx, r.cfg.Address(), tlsConfig)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	c, err := tcp.Dial(ctx, r.cfg.Address(), tlsConfig)
	if err != nil {
		return nil, err
	}
	return c, nil
}
