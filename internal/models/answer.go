package models

import "strings"

// QAAnswer is the payload the Q&A generation collaborator returns.
// Different generation paths populate different fields, so the
// human-readable text is whichever of them is filled first.
type QAAnswer struct {
	Answer      string `json:"answer,omitempty"`
	DisplayText string `json:"display_text,omitempty"`
	Message     string `json:"message,omitempty"`
	Content     string `json:"content,omitempty"`
	Language    string `json:"language,omitempty"`
}

// Text returns the first non-empty answer field, trimmed. Empty means
// the generation produced nothing readable.
func (a *QAAnswer) Text() string {
	for _, candidate := range []string{a.Answer, a.DisplayText, a.Message, a.Content} {
		if text := strings.TrimSpace(candidate); text != "" {
			return text
		}
	}
	return ""
}
