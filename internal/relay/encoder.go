// File: internal/relay/encoder.go
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var ErrStreamingUnsupported = errors.New("response writer does not support flushing")

// Encoder writes events as "data: {json}\n\n" records and flushes after each
// one so the client sees deltas as they are produced.
type Encoder struct {
	w       http.ResponseWriter
	flusher http.Flusher
	done    bool
}

// NewEncoder prepares w for streaming. Extra headers (such as HeaderChatID)
// must be set by the caller before the first Encode.
func NewEncoder(w http.ResponseWriter) (*Encoder, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &Encoder{w: w, flusher: flusher}, nil
}

func (e *Encoder) Encode(ev Event) error {
	if e.done {
		return errors.New("relay: encode after done")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("relay: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "%s %s\n\n", dataPrefix, payload); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

// Done writes the terminal sentinel. Later calls are no-ops.
func (e *Encoder) Done() error {
	if e.done {
		return nil
	}
	e.done = true
	if _, err := fmt.Fprintf(e.w, "%s %s\n\n", dataPrefix, doneSentinel); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
