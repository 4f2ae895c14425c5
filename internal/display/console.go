// Package display renders what a peer reports, either for a person at a
// terminal or as a JSON event stream for other programs.
package display

import (
	"fmt"
	"io"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/omochice/peer-chat/pkg/protocol"
)

const clearLine = "\r\x1b[2K"

// ansi maps frame colours to the basic terminal palette.
var ansi = map[protocol.Colour]lipgloss.Color{
	protocol.ColourRed:     lipgloss.Color("1"),
	protocol.ColourGreen:   lipgloss.Color("2"),
	protocol.ColourYellow:  lipgloss.Color("3"),
	protocol.ColourBlue:    lipgloss.Color("4"),
	protocol.ColourMagenta: lipgloss.Color("5"),
	protocol.ColourCyan:    lipgloss.Color("6"),
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithRedraw turns line clearing on or off. It should only be on when the
// output is a terminal.
func WithRedraw(on bool) ConsoleOption {
	return func(c *Console) { c.redraw = on }
}

// Console prints chat events line by line and keeps a "name: " prompt at
// the bottom of the output.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	prompt   string
	redraw   bool
	renderer *lipgloss.Renderer
}

// NewConsole returns a Console writing to out with a prompt for name.
func NewConsole(out io.Writer, name string, opts ...ConsoleOption) *Console {
	c := &Console{
		out:      out,
		prompt:   name + ": ",
		renderer: lipgloss.NewRenderer(out),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Console) style(colour protocol.Colour) lipgloss.Style {
	s := c.renderer.NewStyle()
	if fg, ok := ansi[colour]; ok {
		s = s.Foreground(fg)
	}
	return s
}

// Render formats ev without a trailing newline.
func (c *Console) Render(ev protocol.Event) string {
	switch ev := ev.(type) {
	case protocol.ChatEvent:
		s := c.style(ev.Colour)
		return s.Bold(true).Render(ev.NameLabel) + s.Render(ev.Body)
	case protocol.UnstructuredEvent:
		return c.style(ev.Colour).Render(ev.Text)
	default:
		return ""
	}
}

// Deliver prints an inbound event and redraws the prompt.
func (c *Console) Deliver(ev protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line(c.Render(ev))
	c.writePrompt()
}

// Notice prints a status line.
func (c *Console) Notice(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line(msg)
}

// Failure prints err on its own line.
func (c *Console) Failure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line(capitalize(err.Error()))
}

// Sent redraws the prompt once a frame has gone out. Without redraw the
// prompt printed before the next read is enough.
func (c *Console) Sent(protocol.Message) {
	if !c.redraw {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writePrompt()
}

// Prompt prints the input prompt.
func (c *Console) Prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writePrompt()
}

func (c *Console) line(s string) {
	if c.redraw {
		io.WriteString(c.out, clearLine)
	}
	fmt.Fprintln(c.out, s)
}

func (c *Console) writePrompt() {
	if c.redraw {
		io.WriteString(c.out, clearLine)
	}
	io.WriteString(c.out, c.prompt)
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
