package display

import (
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/omochice/peer-chat/pkg/protocol"
)

// Event types written by JSON.
const (
	TypeChat   = "chat"
	TypeText   = "text"
	TypeNotice = "notice"
	TypeError  = "error"
	TypeSent   = "sent"
)

// JSON writes one JSON object per line for every event, for programs that
// drive the chat instead of a person. Invalid UTF-8 in any field is replaced
// with U+FFFD.
type JSON struct {
	mu  sync.Mutex
	out io.Writer
	log zerolog.Logger
}

// NewJSON returns a JSON sink writing to out. Encoding or write failures are
// logged to log.
func NewJSON(out io.Writer, log zerolog.Logger) *JSON {
	return &JSON{out: out, log: log}
}

// Deliver writes an inbound event.
func (j *JSON) Deliver(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.ChatEvent:
		j.emit(map[string]any{
			"type":   TypeChat,
			"colour": ev.Colour.String(),
			"name":   strings.TrimSuffix(ev.NameLabel, ":"),
			"body":   ev.Body,
		})
	case protocol.UnstructuredEvent:
		j.emit(map[string]any{
			"type":   TypeText,
			"colour": ev.Colour.String(),
			"text":   ev.Text,
		})
	}
}

// Notice writes a status event.
func (j *JSON) Notice(msg string) {
	j.emit(map[string]any{"type": TypeNotice, "text": msg})
}

// Failure writes an error event.
func (j *JSON) Failure(err error) {
	j.emit(map[string]any{"type": TypeError, "error": err.Error()})
}

// Sent writes an acknowledgement for an outgoing frame.
func (j *JSON) Sent(msg protocol.Message) {
	j.emit(map[string]any{
		"type":   TypeSent,
		"colour": msg.Colour.String(),
		"name":   msg.Sender,
		"text":   msg.Content,
	})
}

// Prompt does nothing; there is no prompt in a JSON stream.
func (j *JSON) Prompt() {}

func (j *JSON) emit(fields map[string]any) {
	for k, v := range fields {
		if str, ok := v.(string); ok {
			fields[k] = strings.ToValidUTF8(str, "\uFFFD")
		}
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		j.log.Error().Err(err).Msg("failed to build event")
		return
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		j.log.Error().Err(err).Msg("failed to encode event")
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.out.Write(append(data, '\n')); err != nil {
		j.log.Warn().Err(err).Msg("failed to write event")
	}
}
