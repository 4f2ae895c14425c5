package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/omochice/peer-chat/internal/chat"
)

// ExitCommand ends the chat when typed on its own.
const ExitCommand = "exit"

// Chatter is the part of a peer the driver uses.
type Chatter interface {
	Ready() <-chan struct{}
	Connected() bool
	SendMessage(text string) error
}

// View is where the driver prints its own lines and the prompt.
type View interface {
	Notice(msg string)
	Prompt()
}

// Driver relays operator lines to a Chatter.
type Driver struct {
	chat Chatter
	view View
	in   io.Reader
	log  zerolog.Logger
}

// NewDriver returns a Driver reading lines from in.
func NewDriver(c Chatter, view View, in io.Reader, log zerolog.Logger) *Driver {
	return &Driver{chat: c, view: view, in: in, log: log}
}

// Run waits for the handshake, then sends every non-empty input line until
// the operator types "exit", the input ends or ctx is done. It returns
// chat.ErrHandshake if the handshake did not succeed.
func (d *Driver) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.chat.Ready():
	}
	if !d.chat.Connected() {
		return chat.ErrHandshake
	}

	d.view.Notice("Enter '" + ExitCommand + "' to quit the chat.")

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		r := bufio.NewReader(d.in)
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				select {
				case lines <- strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				errc <- err
				return
			}
		}
	}()

	for {
		d.view.Prompt()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			if err != nil {
				d.log.Warn().Err(err).Msg("failed to read input")
			}
			return err
		case line := <-lines:
			if line == ExitCommand {
				return nil
			}
			if line == "" {
				continue
			}
			if err := d.chat.SendMessage(line); err != nil {
				d.log.Debug().Err(err).Msg("message not queued")
			}
		}
	}
}
