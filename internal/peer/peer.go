// Package peer implements one end of a one-to-one encrypted chat.
//
// A Peer owns its chat.Conn. After StartHandshake succeeds it runs two
// goroutines until Shutdown: a receive loop that splits the stream into
// frames and hands decoded events to the Sink, and a writer that drains the
// outbound queue one frame at a time.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/omochice/peer-chat/internal/chat"
	"github.com/omochice/peer-chat/pkg/protocol"
)

// DefaultQueueSize is the number of frames SendMessage can queue before it
// waits for the writer.
const DefaultQueueSize = 64

// Sink receives everything a Peer has to show the operator. Calls come from
// the peer's own goroutines; a Sink must not call Shutdown from inside them.
type Sink interface {
	// Deliver is called once per inbound frame, in arrival order.
	Deliver(ev protocol.Event)
	// Notice reports a status change.
	Notice(msg string)
	// Failure reports an error wrapping one of the chat error kinds.
	Failure(err error)
	// Sent is called after a frame was written to the transport.
	Sent(msg protocol.Message)
}

// Option configures a Peer.
type Option func(*Peer)

// WithLogger sets the diagnostics logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Peer) { p.log = log }
}

// WithQueueSize sets how many outbound frames may wait for the writer.
func WithQueueSize(n int) Option {
	return func(p *Peer) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

type outbound struct {
	msg  protocol.Message
	data []byte
}

// Peer is one chat connection. Create it with New, start it with
// StartHandshake and end it with Shutdown. A Peer is never reused.
type Peer struct {
	conn   chat.Conn
	name   string
	colour protocol.Colour
	sink   Sink
	log    zerolog.Logger

	state *chat.Lifecycle

	queueSize int
	outgoing  chan outbound
	recv      protocol.Buffer

	ctx    context.Context
	cancel context.CancelFunc

	started atomic.Bool
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Peer around conn. name and colour are stamped on every
// outgoing frame; name must pass protocol.ValidateName.
func New(conn chat.Conn, name string, colour protocol.Colour, sink Sink, opts ...Option) (*Peer, error) {
	if err := protocol.ValidateName(name); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Peer{
		conn:      conn,
		name:      name,
		colour:    colour,
		sink:      sink,
		log:       zerolog.Nop(),
		state:     chat.NewLifecycle(),
		queueSize: DefaultQueueSize,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.outgoing = make(chan outbound, p.queueSize)
	p.log = p.log.With().Str("peer", name).Str("remote", conn.RemoteAddr()).Logger()
	return p, nil
}

// Name returns the display name.
func (p *Peer) Name() string { return p.name }

// State returns the lifecycle state.
func (p *Peer) State() chat.State { return p.state.State() }

// Connected reports whether messages can be sent.
func (p *Peer) Connected() bool { return p.state.Connected() }

// Ready is closed when the handshake has succeeded, failed or been
// abandoned by Shutdown.
func (p *Peer) Ready() <-chan struct{} { return p.state.Ready() }

// Wait blocks until the handshake is resolved. It returns nil if the peer
// is connected.
func (p *Peer) Wait(ctx context.Context) error { return p.state.Wait(ctx) }

// StartHandshake begins the handshake for role and returns immediately. The
// outcome is published through Ready and Connected and reported to the
// Sink. It may only be called once.
func (p *Peer) StartHandshake(role chat.Role) error {
	if !p.started.CompareAndSwap(false, true) {
		return chat.ErrHandshakeStarted
	}

	p.wg.Add(1)
	go p.handshake(role)
	return nil
}

func (p *Peer) handshake(role chat.Role) {
	defer p.wg.Done()

	p.sink.Notice("Starting handshake...")
	p.log.Debug().Stringer("role", role).Msg("handshake started")

	if err := p.conn.Handshake(p.ctx, role); err != nil {
		if !p.state.MarkFailed() {
			p.log.Debug().Err(err).Msg("handshake aborted by shutdown")
			return
		}
		p.log.Warn().Err(err).Msg("handshake failed")
		p.sink.Failure(fmt.Errorf("%w: %w", chat.ErrHandshake, err))
		return
	}

	if !p.state.MarkConnected() {
		p.log.Debug().Msg("handshake finished after shutdown")
		return
	}
	p.log.Info().Stringer("role", role).Msg("handshake complete")
	p.sink.Notice("Handshake successful.")

	p.wg.Add(2)
	go p.receiveLoop()
	go p.writeLoop()
}

// SendMessage queues text for transmission and returns without waiting for
// the write. Write failures are reported to the Sink. Before the handshake
// succeeds, or after Shutdown, it reports chat.ErrNotConnected and sends
// nothing.
func (p *Peer) SendMessage(text string) error {
	if !p.state.Connected() {
		p.sink.Failure(chat.ErrNotConnected)
		return chat.ErrNotConnected
	}

	msg := protocol.Message{Colour: p.colour, Sender: p.name, Content: text}
	select {
	case p.outgoing <- outbound{msg: msg, data: msg.Encode()}:
		return nil
	case <-p.done:
		p.sink.Failure(chat.ErrNotConnected)
		return chat.ErrNotConnected
	}
}

// receiveLoop reads until the stream fails or Shutdown is called. It does
// not change the lifecycle state.
func (p *Peer) receiveLoop() {
	defer p.wg.Done()

	for {
		chunk, err := p.conn.Read(p.ctx)
		if len(chunk) > 0 {
			p.recv.Write(chunk)
			p.dispatch()
		}
		if err != nil {
			if p.stopping() {
				p.log.Debug().Err(err).Msg("receive loop stopped")
				return
			}
			if errors.Is(err, io.EOF) {
				p.log.Info().Msg("peer closed the connection")
			} else {
				p.log.Warn().Err(err).Msg("read failed")
			}
			p.sink.Failure(fmt.Errorf("%w: %w", chat.ErrRead, err))
			return
		}
	}
}

func (p *Peer) dispatch() {
	for {
		line, ok := p.recv.Next()
		if !ok {
			return
		}
		if ev, ok := protocol.Decode(line); ok {
			p.sink.Deliver(ev)
		}
	}
}

func (p *Peer) writeLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case out := <-p.outgoing:
			if err := p.conn.Write(p.ctx, out.data); err != nil {
				if p.stopping() {
					return
				}
				p.log.Warn().Err(err).Msg("write failed")
				p.sink.Failure(fmt.Errorf("%w: %w", chat.ErrWrite, err))
				continue
			}
			p.sink.Sent(out.msg)
		}
	}
}

func (p *Peer) stopping() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Shutdown half-closes and then closes the connection and waits for the
// peer's goroutines to exit. Each failing step is reported to the Sink and
// included in the returned error. Calling it again reports that the socket
// is already closed and returns nil. It is safe before or during the
// handshake.
func (p *Peer) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sink.Notice("Socket already closed.")
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.state.MarkClosed()
	close(p.done)
	p.cancel()

	var errs []error
	if err := p.conn.Shutdown(); err != nil {
		err = fmt.Errorf("%w: %w", chat.ErrShutdown, err)
		p.log.Debug().Err(err).Msg("half-close failed")
		p.sink.Failure(err)
		errs = append(errs, err)
	}
	if err := p.conn.Close(); err != nil {
		err = fmt.Errorf("%w: close: %w", chat.ErrShutdown, err)
		p.log.Debug().Err(err).Msg("close failed")
		p.sink.Failure(err)
		errs = append(errs, err)
	} else {
		p.sink.Notice("Connection closed successfully.")
	}

	p.wg.Wait()
	p.log.Debug().Msg("peer shut down")
	return errors.Join(errs...)
}
