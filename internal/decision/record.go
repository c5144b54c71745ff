// Package decision defines the decision record model shared by the
// capabilities, the record store and the workflows.
package decision

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLen is the longest title a record may carry, in characters.
const MaxTitleLen = 80

// Record is a persisted decision. ID is assigned by the store.
type Record struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	Tag           string    `json:"tag"`
	SourceThread  string    `json:"source_thread"`
	SourceChannel string    `json:"source_channel"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Candidate is an extracted decision that has not been reconciled yet.
type Candidate struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Tag        string `json:"tag"`
	Confidence int    `json:"confidence"`
	// Fallback is set when the candidate came from the heuristic extractor.
	Fallback bool `json:"-"`
}

// Fields is a partial record. Nil fields are left unchanged on update.
type Fields struct {
	Title         *string
	Summary       *string
	Tag           *string
	SourceThread  *string
	SourceChannel *string
	RecordedAt    *time.Time
}

// Source identifies the conversation a record change came from.
type Source struct {
	Channel string
	Thread  string
	At      time.Time
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// FromCandidate builds a full set of fields for a candidate recorded from src.
func FromCandidate(c Candidate, src Source) Fields {
	f := Fields{
		Title:   String(TruncateTitle(c.Title)),
		Summary: String(c.Summary),
		Tag:     String(c.Tag),
	}
	return f.WithSource(src)
}

// WithSource returns f with the thread, channel and timestamp refreshed.
func (f Fields) WithSource(src Source) Fields {
	at := src.At.UTC()
	f.SourceThread = String(src.Thread)
	f.SourceChannel = String(src.Channel)
	f.RecordedAt = &at
	return f
}

// IsEmpty reports whether no field is set.
func (f Fields) IsEmpty() bool {
	return f.Title == nil && f.Summary == nil && f.Tag == nil &&
		f.SourceThread == nil && f.SourceChannel == nil && f.RecordedAt == nil
}

// Apply returns r with every set field of f written over it.
func (f Fields) Apply(r Record) Record {
	if f.Title != nil {
		r.Title = TruncateTitle(*f.Title)
	}
	if f.Summary != nil {
		r.Summary = *f.Summary
	}
	if f.Tag != nil {
		r.Tag = *f.Tag
	}
	if f.SourceThread != nil {
		r.SourceThread = *f.SourceThread
	}
	if f.SourceChannel != nil {
		r.SourceChannel = *f.SourceChannel
	}
	if f.RecordedAt != nil {
		r.RecordedAt = *f.RecordedAt
	}
	return r
}

// TruncateTitle trims s and cuts it to MaxTitleLen characters.
func TruncateTitle(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxTitleLen {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:MaxTitleLen]))
}

// Contains reports whether a record with id is in records.
func Contains(records []Record, id string) bool {
	for _, r := range records {
		if r.ID == id {
			return true
		}
	}
	return false
}
