package relay

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
)

func collect(t *testing.T, d *Decoder) []Event {
	t.Helper()
	var out []Event
	for {
		ev, err := d.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, ev)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	enc, err := NewEncoder(rec)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	for _, d := range []string{"Hel", "lo, ", "world"} {
		if err := enc.Encode(Delta(d)); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	if err := enc.Encode(Finish()); err != nil {
		t.Fatalf("Encode finish: %v", err)
	}
	if err := enc.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !strings.HasSuffix(rec.Body.String(), "data: [DONE]\n\n") {
		t.Fatalf("missing terminal sentinel: %q", rec.Body.String())
	}

	// one byte at a time exercises partial-record buffering
	events := collect(t, NewDecoder(iotest.OneByteReader(strings.NewReader(rec.Body.String()))))
	var text strings.Builder
	for _, ev := range events {
		if ev.Type == EventTextDelta {
			text.WriteString(ev.Text)
		}
	}
	if text.String() != "Hello, world" {
		t.Fatalf("text = %q", text.String())
	}
	if last := events[len(events)-1]; last.Type != EventFinish {
		t.Fatalf("last event = %+v", last)
	}
}

func TestDecoderPayloadShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"event object", "data: {\"type\":\"text-delta\",\"text\":\"a\"}\n\n", []string{"a"}},
		{"assistant envelope", "data: {\"role\":\"assistant\",\"content\":\"b\"}\n\n", []string{"b"}},
		{"json string", "data: \"c\"\n\n", []string{"c"}},
		{"raw text", "data: plain\n\n", []string{"plain"}},
		{"ndjson", "{\"type\":\"text-delta\",\"text\":\"x\"}\n\n{\"type\":\"text-delta\",\"text\":\"y\"}\n\n", []string{"x", "y"}},
		{"keepalive ignored", ": ping\n\ndata: {\"type\":\"text-delta\",\"text\":\"d\"}\n\n", []string{"d"}},
		{"crlf", "data: {\"type\":\"text-delta\",\"text\":\"e\"}\r\n\r\n", []string{"e"}},
		{"no trailing blank line", "data: {\"type\":\"text-delta\",\"text\":\"f\"}", []string{"f"}},
		{"unknown type skipped", "data: {\"type\":\"tool-call\",\"name\":\"x\"}\n\ndata: {\"type\":\"text-delta\",\"text\":\"g\"}\n\n", []string{"g"}},
		{"unknown object at eof", "data: {\"type\":\"text-delta\",\"text\":\"h\"}\n\ndata: {\"usage\":{\"tokens\":3}}", []string{"h"}},
		{"malformed object is text", "data: {oops\n\n", []string{"{oops"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := collect(t, NewDecoder(strings.NewReader(tt.input)))
			if len(events) != len(tt.want) {
				t.Fatalf("got %d events, want %d: %+v", len(events), len(tt.want), events)
			}
			for i, ev := range events {
				if ev.Type != EventTextDelta || ev.Text != tt.want[i] {
					t.Fatalf("event %d = %+v, want delta %q", i, ev, tt.want[i])
				}
			}
		})
	}
}

func TestDecoderStopsAfterDone(t *testing.T) {
	input := "data: {\"type\":\"text-delta\",\"text\":\"a\"}\n\ndata: [DONE]\n\ndata: {\"type\":\"text-delta\",\"text\":\"late\"}\n\n"
	events := collect(t, NewDecoder(strings.NewReader(input)))
	if len(events) != 1 || events[0].Text != "a" {
		t.Fatalf("events = %+v", events)
	}
}

func TestDecoderErrorEvent(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: {\"type\":\"error\",\"error\":\"Failed to generate response.\"}\n\n"))
	ev, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Type != EventError || ev.Error != "Failed to generate response." {
		t.Fatalf("event = %+v", ev)
	}
}

func TestEncodeAfterDone(t *testing.T) {
	enc, _ := NewEncoder(httptest.NewRecorder())
	_ = enc.Done()
	if err := enc.Encode(Delta("x")); err == nil {
		t.Fatal("expected error encoding after Done")
	}
	if err := enc.Done(); err != nil {
		t.Fatalf("second Done: %v", err)
	}
}
