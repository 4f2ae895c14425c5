// Package protocol implements the line-oriented chat wire format:
//
//	[<colour> "|"] <sender> ": " <content> "\n"
//
// One frame per line. The newline is structural and is never escaped.
package protocol

import (
	"bytes"
	"errors"
	"strings"
)

// Delimiter terminates every frame on the wire.
const Delimiter = '\n'

const (
	tagSeparator  = '|'
	nameSeparator = ':'
)

// Colour is the display colour carried by a frame's optional tag.
type Colour int

const (
	ColourDefault Colour = iota
	ColourRed
	ColourGreen
	ColourBlue
	ColourYellow
	ColourCyan
	ColourMagenta
)

// Colours returns every colour that has a wire tag.
func Colours() []Colour {
	return []Colour{ColourRed, ColourGreen, ColourBlue, ColourYellow, ColourCyan, ColourMagenta}
}

// Tag returns the wire tag for the colour. The default colour has no tag.
func (c Colour) Tag() string {
	switch c {
	case ColourRed:
		return "red"
	case ColourGreen:
		return "green"
	case ColourBlue:
		return "blue"
	case ColourYellow:
		return "yellow"
	case ColourCyan:
		return "cyan"
	case ColourMagenta:
		return "magenta"
	default:
		return ""
	}
}

// String returns the tag, or "default" for the default colour.
func (c Colour) String() string {
	if tag := c.Tag(); tag != "" {
		return tag
	}
	return "default"
}

// ParseColour maps operator input to a Colour. Matching ignores case and
// surrounding space. Unknown names map to ColourDefault.
func ParseColour(name string) Colour {
	return colourForTag(strings.ToLower(strings.TrimSpace(name)))
}

// colourForTag maps a wire tag to a Colour. Only the exact lower-case tags
// match; anything else is ColourDefault.
func colourForTag(tag string) Colour {
	for _, c := range Colours() {
		if c.Tag() == tag {
			return c
		}
	}
	return ColourDefault
}

// ErrInvalidName is returned by ValidateName.
var ErrInvalidName = errors.New("invalid display name")

// ValidateName rejects names that would break framing. Sender names must be
// non-empty and free of the tag separator, the name separator and the
// delimiter. Message content is not checked.
func ValidateName(name string) error {
	if name == "" {
		return errors.Join(ErrInvalidName, errors.New("name is empty"))
	}
	if strings.ContainsAny(name, "|:\n") {
		return errors.Join(ErrInvalidName, errors.New("name must not contain '|', ':' or newlines"))
	}
	return nil
}

// Message is one outbound chat line.
type Message struct {
	Colour  Colour
	Sender  string
	Content string
}

// Encode renders the message as a single delimiter-terminated frame.
// Content containing a newline is written as-is and will be split by the
// receiver.
func (m Message) Encode() []byte {
	tag := m.Colour.Tag()

	var b bytes.Buffer
	b.Grow(len(tag) + len(m.Sender) + len(m.Content) + 4)
	if tag != "" {
		b.WriteString(tag)
		b.WriteByte(tagSeparator)
	}
	b.WriteString(m.Sender)
	b.WriteString(": ")
	b.WriteString(m.Content)
	b.WriteByte(Delimiter)
	return b.Bytes()
}

// Event is a decoded inbound frame: either a ChatEvent or an UnstructuredEvent.
type Event interface {
	event()
}

// ChatEvent is a frame with a sender. NameLabel keeps the trailing ':' and
// Body keeps the leading space, so NameLabel+Body reproduces the line.
type ChatEvent struct {
	Colour    Colour
	NameLabel string
	Body      string
}

// UnstructuredEvent is a frame without a name separator.
type UnstructuredEvent struct {
	Colour Colour
	Text   string
}

func (ChatEvent) event()         {}
func (UnstructuredEvent) event() {}

// Decode interprets one line with its delimiter already stripped. It reports
// false for an empty line. Decode never fails: anything it can't structure
// comes back as an UnstructuredEvent.
func Decode(line []byte) (Event, bool) {
	if len(line) == 0 {
		return nil, false
	}

	colour := ColourDefault
	rest := line
	if i := bytes.IndexByte(line, tagSeparator); i >= 0 {
		colour = colourForTag(string(line[:i]))
		rest = line[i+1:]
	}

	i := bytes.IndexByte(rest, nameSeparator)
	if i < 0 {
		return UnstructuredEvent{Colour: colour, Text: string(rest)}, true
	}
	return ChatEvent{
		Colour:    colour,
		NameLabel: string(rest[:i+1]),
		Body:      string(rest[i+1:]),
	}, true
}
