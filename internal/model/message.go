package model

import (
	"fmt"
	"strings"
	"time"
)

// SelfMarker replaces the querying user's own name in Record.Author.
const SelfMarker = "me"

type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

type (
	// Message is immutable once written; it is stored once per participant.
	Message struct {
		ID       string    `json:"id"`
		From     string    `json:"from"`
		FromName string    `json:"from_name"`
		To       string    `json:"to"`
		ToName   string    `json:"to_name"`
		Datetime time.Time `json:"datetime"`
		Body     string    `json:"message"`
	}

	// Record is one entry of a user's own log.
	Record struct {
		Message
		Direction Direction `json:"direction"`
		Author    string    `json:"author,omitempty"`
	}
)

// Copies returns the sender's outgoing and the recipient's incoming record.
func (m Message) Copies() (outgoing, incoming Record) {
	return Record{Message: m, Direction: Outgoing}, Record{Message: m, Direction: Incoming}
}

// Owner is the identity whose log holds r.
func (r Record) Owner() string {
	if r.Direction == Outgoing {
		return r.From
	}
	return r.To
}

// Peer is the other participant of r, as identity and display name.
func (r Record) Peer() (id, name string) {
	if r.Direction == Outgoing {
		return r.To, r.ToName
	}
	return r.From, r.FromName
}

// Annotate fills Author as "peer->me" or "me->peer" from the owner's point of view.
func (r Record) Annotate() Record {
	if r.Direction == Outgoing {
		r.Author = SelfMarker + "->" + r.ToName
	} else {
		r.Author = r.FromName + "->" + SelfMarker
	}
	return r
}

// Involves reports whether peer (identity or display name) sent or received r.
func (r Record) Involves(peer string) bool {
	return r.From == peer || r.To == peer || r.FromName == peer || r.ToName == peer
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 with or without zone; zoneless values are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// ParseUpperBound is ParseTimestamp for inclusive upper bounds: a date without a time covers
// the whole day.
func ParseUpperBound(s string) (time.Time, error) {
	t, err := ParseTimestamp(s)
	if err != nil {
		return t, err
	}
	if _, dateErr := time.Parse(time.DateOnly, strings.TrimSpace(s)); dateErr == nil {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

// FormatTimestamp renders t as ISO-8601 UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
