// Package console talks to the operator: it asks for session settings and
// relays typed lines to the peer.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/omochice/peer-chat/internal/config"
	"github.com/omochice/peer-chat/pkg/protocol"
)

// Prompter asks the start-up questions. Every question repeats until the
// answer is usable or the input ends.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter returns a Prompter reading answers from in. Pass the same
// *bufio.Reader to the Driver so no typed-ahead input is lost.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Reader returns the buffered input.
func (p *Prompter) Reader() *bufio.Reader { return p.in }

func (p *Prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// AskName asks for the display name.
func (p *Prompter) AskName() (string, error) {
	for {
		name, err := p.ask("What is your username?: ")
		if err != nil {
			return "", err
		}
		if protocol.ValidateName(name) == nil {
			return name, nil
		}
		fmt.Fprintln(p.out, "Username must not be empty or contain '|' or ':'. Please try again.")
	}
}

// AskHosting asks whether this side listens. Only an answer starting with
// y or Y means yes.
func (p *Prompter) AskHosting() (bool, error) {
	answer, err := p.ask("Are you hosting the connection? (y/n): ")
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(answer, "y") || strings.HasPrefix(answer, "Y"), nil
}

// AskPort asks for a port in the accepted range. An empty answer selects
// config.DefaultPort.
func (p *Prompter) AskPort() (int, error) {
	question := fmt.Sprintf("Enter a port number (%d-%d) or press enter for default port: %d\n",
		config.MinPort, config.MaxPort, config.DefaultPort)
	for {
		answer, err := p.ask(question)
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return config.DefaultPort, nil
		}

		port, err := strconv.Atoi(answer)
		switch {
		case err != nil:
			fmt.Fprintln(p.out, "Invalid input. Please enter a numeric port number.")
		case port < config.MinPort || port > config.MaxPort:
			fmt.Fprintf(p.out, "Port number must be between %d and %d. Please try again.\n",
				config.MinPort, config.MaxPort)
		default:
			return port, nil
		}
	}
}

// AskColour asks for the colour of outgoing messages. An empty answer or
// "default" keeps the terminal colour.
func (p *Prompter) AskColour() (protocol.Colour, error) {
	names := make([]string, 0, len(protocol.Colours()))
	for _, c := range protocol.Colours() {
		names = append(names, c.Tag())
	}
	question := fmt.Sprintf("Choose a colour (%s) or press enter for default: ", strings.Join(names, ", "))

	for {
		answer, err := p.ask(question)
		if err != nil {
			return protocol.ColourDefault, err
		}
		if answer == "" || strings.EqualFold(answer, protocol.ColourDefault.String()) {
			return protocol.ColourDefault, nil
		}
		if c := protocol.ParseColour(answer); c != protocol.ColourDefault {
			return c, nil
		}
		fmt.Fprintln(p.out, "Unknown colour. Please try again.")
	}
}
