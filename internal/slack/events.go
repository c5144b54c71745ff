package slack

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Envelope types.
const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
	EventAppMention     = "app_mention"
)

// Envelope is the outer Events API payload.
type Envelope struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge,omitempty"`
	TeamID    string          `json:"team_id,omitempty"`
	EventID   string          `json:"event_id,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

// MentionEvent is an app_mention event.
type MentionEvent struct {
	Type     string `json:"type"`
	Channel  string `json:"channel"`
	User     string `json:"user"`
	BotID    string `json:"bot_id,omitempty"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// Thread returns the thread the mention belongs to. A top-level message
// starts its own thread.
func (m MentionEvent) Thread() string {
	if m.ThreadTS != "" {
		return m.ThreadTS
	}
	return m.TS
}

// ParseEnvelope decodes an Events API request body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode slack envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode slack envelope: missing type")
	}
	return &env, nil
}

// Mention returns the envelope's app_mention event. ok is false for any
// other event type.
func (e *Envelope) Mention() (MentionEvent, bool, error) {
	if e.Type != TypeEventCallback || len(e.Event) == 0 {
		return MentionEvent{}, false, nil
	}
	var m MentionEvent
	if err := json.Unmarshal(e.Event, &m); err != nil {
		return MentionEvent{}, false, fmt.Errorf("decode slack event: %w", err)
	}
	if m.Type != EventAppMention {
		return MentionEvent{}, false, nil
	}
	if m.Channel == "" || m.TS == "" {
		return MentionEvent{}, false, fmt.Errorf("app_mention missing channel or ts")
	}
	return m, true, nil
}

var mentionToken = regexp.MustCompile(`<@[A-Z0-9]+(?:\|[^>]*)?>`)

// StripMentions removes every user mention token from text.
func StripMentions(text string) string {
	return strings.Join(strings.Fields(mentionToken.ReplaceAllString(text, " ")), " ")
}
