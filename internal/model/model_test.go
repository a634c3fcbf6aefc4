package model

import (
	"testing"
	"time"
)

func TestRosterLookups(t *testing.T) {
	r := NewRoster([]RosterEntry{
		{ID: "u2", Username: "bob"},
		{ID: "u1", Username: "alice"},
		{ID: "u1", Username: "mallory"},
		{ID: "", Username: "ghost"},
	})

	if r.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", r.Len())
	}
	if !r.CanConnect("u1") || r.CanConnect("u3") {
		t.Fatalf("unexpected CanConnect result")
	}
	if e, ok := r.ByName("bob"); !ok || e.ID != "u2" {
		t.Fatalf("expected bob to resolve to u2, got %+v", e)
	}
	if _, ok := r.ByName("mallory"); ok {
		t.Fatalf("duplicate id must not be indexed")
	}
	entries := r.Entries()
	if entries[0].ID != "u1" || entries[1].ID != "u2" {
		t.Fatalf("expected entries sorted by id, got %+v", entries)
	}
	entries[0].Username = "mutated"
	if e, _ := r.ByID("u1"); e.Username != "alice" {
		t.Fatalf("Entries must return a copy")
	}
}

func TestRecordAnnotate(t *testing.T) {
	msg := Message{From: "u1", FromName: "alice", To: "u2", ToName: "bob", Body: "hi"}
	out, in := msg.Copies()

	if got := out.Annotate().Author; got != "me->bob" {
		t.Fatalf("outgoing author = %q", got)
	}
	if got := in.Annotate().Author; got != "alice->me" {
		t.Fatalf("incoming author = %q", got)
	}
	if out.Owner() != "u1" || in.Owner() != "u2" {
		t.Fatalf("unexpected owners %s %s", out.Owner(), in.Owner())
	}
	if id, name := in.Peer(); id != "u1" || name != "alice" {
		t.Fatalf("unexpected peer %s %s", id, name)
	}
	if !in.Involves("alice") || !in.Involves("u2") || in.Involves("carol") {
		t.Fatalf("unexpected Involves result")
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-01T10:00:00.123456Z": time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC),
		"2024-03-01T10:00:00+02:00":   time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		"2024-03-01T10:00:00":         time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		"2024-03-01":                  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: got %s want %s", in, got, want)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error for free text")
	}
}

func TestParseUpperBoundCoversWholeDay(t *testing.T) {
	got, err := ParseUpperBound("2024-05-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if evening := time.Date(2024, 5, 1, 23, 59, 59, 0, time.UTC); got.Before(evening) {
		t.Fatalf("date-only bound %s excludes %s", got, evening)
	}
	if next := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC); !got.Before(next) {
		t.Fatalf("date-only bound %s reaches into the next day", got)
	}

	exact, err := ParseUpperBound("2024-05-01T10:00:00Z")
	if err != nil || !exact.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp bound changed: %s err=%v", exact, err)
	}
	if _, err := ParseUpperBound("tomorrow"); err == nil {
		t.Fatalf("expected error for free text")
	}
}

func TestCodeString(t *testing.T) {
	if NotFound.String() != "NOT_FOUND" || Code(42).String() != "CODE_42" {
		t.Fatalf("unexpected code names")
	}
	if !NotFoundLegacy.IsNotFound() || Code(42).Known() {
		t.Fatalf("unexpected code classification")
	}
}
