// Package relay frames a single turn's model output as a server-sent event
// stream and decodes it again on the consuming side.
package relay

type EventType string

const (
	EventTextDelta EventType = "text-delta"
	EventFinish    EventType = "finish"
	EventError     EventType = "error"
)

// Event is one record on the wire. Text is set for deltas; Error carries a
// user-facing message when the stream ends early.
type Event struct {
	Type  EventType `json:"type"`
	Text  string    `json:"text,omitempty"`
	Error string    `json:"error,omitempty"`
}

func Delta(text string) Event { return Event{Type: EventTextDelta, Text: text} }
func Finish() Event { return Event{Type: EventFinish} }
func Failure(msg string) Event { return Event{Type: EventError, Error: msg} }

const (
	// HeaderChatID carries the chat identity out of band, once per response.
	HeaderChatID = "X-Chat-Id"
	// HeaderMessageID carries the id of the user message persisted for the turn.
	HeaderMessageID = "X-Message-Id"

	doneSentinel = "[DONE]"
	dataPrefix   = "data:"
)
