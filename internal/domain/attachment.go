// File: internal/domain/attachment.go
package domain

import "encoding/json"

// Attachment is an immutable file reference embedded in a Message.
type Attachment struct {
	URL           string `json:"url"`
	Name          string `json:"name"`
	MediaType     string `json:"mediaType"`
	ExtractedText string `json:"extractedText,omitempty"`
}

// UnmarshalJSON also accepts the browser client's "type" key for MediaType.
func (a *Attachment) UnmarshalJSON(b []byte) error {
	type plain Attachment
	var raw struct {
		plain
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*a = Attachment(raw.plain)
	if a.MediaType == "" {
		a.MediaType = raw.Type
	}
	return nil
}
