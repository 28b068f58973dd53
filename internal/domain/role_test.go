package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"system", "user", "assistant", "data", "tool"} {
		r, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
		if string(r) != raw {
			t.Fatalf("ParseRole(%q) = %q", raw, r)
		}
	}

	_, err := ParseRole("moderator")
	var unknown *ErrUnknownRole
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestRoleUnmarshalRejectsUnknown(t *testing.T) {
	var m struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal([]byte(`{"role":"assistant"}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Role != RoleAssistant {
		t.Fatalf("role = %q", m.Role)
	}
	if err := json.Unmarshal([]byte(`{"role":"function"}`), &m); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestAttachmentAcceptsTypeKey(t *testing.T) {
	var a Attachment
	if err := json.Unmarshal([]byte(`{"url":"https://x/a.pdf","name":"a.pdf","type":"application/pdf"}`), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.MediaType != "application/pdf" {
		t.Fatalf("MediaType = %q", a.MediaType)
	}
}

func TestMessageEditable(t *testing.T) {
	m := Message{Role: RoleUser, Content: "hi"}
	if !m.Editable() {
		t.Fatal("plain user message should be editable")
	}
	m.Attachments = []Attachment{{URL: "u", Name: "n"}}
	if m.Editable() {
		t.Fatal("user message with attachments should not be editable")
	}
	a := Message{Role: RoleAssistant}
	if a.Editable() {
		t.Fatal("assistant message should not be editable")
	}
}
