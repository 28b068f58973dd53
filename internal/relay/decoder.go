// File: internal/relay/decoder.go
package relay

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Decoder reads events incrementally. Partial records stay buffered until
// the blank line that terminates them arrives.
type Decoder struct {
	r        *bufio.Reader
	finished bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event. It returns io.EOF after the terminal
// sentinel or a finish event, and io.ErrUnexpectedEOF if the transport
// closed in the middle of a record. JSON objects of an unknown type are
// skipped.
func (d *Decoder) Next() (Event, error) {
	if d.finished {
		return Event{}, io.EOF
	}
	var data []string
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line != "" {
					data = appendData(data, strings.TrimRight(line, "\r\n"))
				}
				if len(data) > 0 {
					if ev, ok, err := d.emit(strings.Join(data, "\n")); ok || err != nil {
						return ev, err
					}
				}
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(data) == 0 {
				continue
			}
			if ev, ok, err := d.emit(strings.Join(data, "\n")); ok || err != nil {
				return ev, err
			}
			data = data[:0]
			continue
		}
		data = appendData(data, line)
	}
}

func appendData(data []string, line string) []string {
	switch {
	case strings.HasPrefix(line, ":"):
		// comment / keep-alive
		return data
	case strings.HasPrefix(line, dataPrefix):
		return append(data, strings.TrimPrefix(strings.TrimPrefix(line, dataPrefix), " "))
	case strings.Contains(line, ":") && !strings.HasPrefix(line, "{"):
		// other SSE fields (event:, id:, retry:) carry nothing we use
		return data
	default:
		// bare newline-delimited JSON or plain text
		return append(data, line)
	}
}

func (d *Decoder) emit(payload string) (Event, bool, error) {
	if payload == doneSentinel {
		d.finished = true
		return Event{}, false, io.EOF
	}
	ev, ok := parsePayload(payload)
	if ev.Type == EventFinish {
		d.finished = true
	}
	return ev, ok, nil
}

// parsePayload accepts the event object, an assistant message envelope, a
// JSON string, or raw text. ok is false for a JSON object it does not know.
func parsePayload(payload string) (ev Event, ok bool) {
	trimmed := strings.TrimSpace(payload)
	if strings.HasPrefix(trimmed, "{") {
		var env struct {
			Type    EventType `json:"type"`
			Text    string    `json:"text"`
			Delta   string    `json:"delta"`
			Error   string    `json:"error"`
			Role    string    `json:"role"`
			Content string    `json:"content"`
		}
		if err := json.Unmarshal([]byte(trimmed), &env); err == nil {
			switch {
			case env.Type == EventTextDelta:
				text := env.Text
				if text == "" {
					text = env.Delta
				}
				return Delta(text), true
			case env.Type == EventFinish:
				return Finish(), true
			case env.Type == EventError:
				return Failure(env.Error), true
			case env.Role == "assistant" && env.Content != "":
				return Delta(env.Content), true
			}
			return Event{}, false
		}
	}
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return Delta(s), true
		}
	}
	return Delta(payload), true
}
