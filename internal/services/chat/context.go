// File: internal/services/chat/context.go
package chat

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iyunix/go-chat/internal/domain"
	"github.com/iyunix/go-chat/internal/services/ai"
)

var sentenceEnd = regexp.MustCompile(`[.!?]\s`)

// SmartTitle derives a chat title from the first user message: whitespace is
// collapsed, the text is cut at the first sentence terminator and at maxLen
// runes, and the first letter is upper-cased.
func SmartTitle(text string, maxLen int) string {
	cleaned := CleanWhitespace(text)
	if cleaned == "" {
		return domain.DefaultChatTitle
	}
	if loc := sentenceEnd.FindStringIndex(cleaned); loc != nil && loc[0] > 0 {
		cleaned = cleaned[:loc[0]]
	}
	cleaned = strings.TrimSpace(TruncateText(cleaned, maxLen))
	if cleaned == "" {
		return domain.DefaultChatTitle
	}
	r, size := utf8.DecodeRuneInString(cleaned)
	return string(unicode.ToUpper(r)) + cleaned[size:]
}

// TruncateText safely truncates a UTF-8 string to maxLen runes.
func TruncateText(input string, maxLen int) string {
	if input == "" || maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(input) <= maxLen {
		return input
	}
	var b strings.Builder
	count := 0
	for _, r := range input {
		if count >= maxLen {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// CleanWhitespace trims and collapses runs of whitespace to single spaces.
func CleanWhitespace(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// LatestUserIndex returns the index of the newest user message, or -1.
func LatestUserIndex(messages []InputMessage) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return i
		}
	}
	return -1
}

// BuildPromptMessages maps the history to the model format and appends one
// user-role block per attachment of the latest user turn.
func BuildPromptMessages(history []InputMessage, attachments []domain.Attachment, maxExtracted int) []ai.ChatMessage {
	out := make([]ai.ChatMessage, 0, len(history)+len(attachments))
	for _, m := range history {
		out = append(out, ai.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	for _, a := range attachments {
		out = append(out, ai.ChatMessage{Role: string(domain.RoleUser), Content: AttachmentBlock(a, maxExtracted)})
	}
	return out
}

// AttachmentBlock renders an attachment as text the model can reason over.
func AttachmentBlock(a domain.Attachment, maxExtracted int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Attachment: %s\n", a.Name)
	fmt.Fprintf(&sb, "Media type: %s\n", a.MediaType)
	fmt.Fprintf(&sb, "Source: %s", a.URL)
	if text := strings.TrimSpace(a.ExtractedText); text != "" {
		if maxExtracted > 0 {
			text = TruncateText(text, maxExtracted)
		}
		sb.WriteString("\nExtracted content:\n")
		sb.WriteString(text)
	}
	return sb.String()
}

// MemoryQuery is the text sent to memory retrieval: the first user message on
// a chat's first turn, otherwise the whole prompt.
func MemoryQuery(prompt []ai.ChatMessage, firstTurn bool, firstUser string) string {
	if firstTurn {
		return firstUser
	}
	var sb strings.Builder
	for _, m := range prompt {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}
