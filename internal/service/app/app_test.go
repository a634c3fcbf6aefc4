package app

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"voip_chat/internal/model"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line, cmd, arg string
	}{
		{"hello there", "", "hello there"},
		{"/call bob", "call", "bob"},
		{"/CALL  bob ", "call", "bob"},
		{"/quit", "quit", ""},
	}
	for _, tc := range cases {
		cmd, arg := parseCommand(tc.line)
		if cmd != tc.cmd || arg != tc.arg {
			t.Fatalf("%q: expected (%q, %q), got (%q, %q)", tc.line, tc.cmd, tc.arg, cmd, arg)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	raw, _ := json.Marshal(model.TextEvent{From: "alice", Message: "hi [there]", Datetime: "2024-01-01T00:00:00Z"})
	line, ok := formatEvent(model.Envelope{Code: model.SendText, Payload: json.RawMessage(raw)})
	if !ok || !strings.Contains(line, "alice") || !strings.Contains(line, "hi [there[]") {
		t.Fatalf("unexpected text line %q", line)
	}

	line, ok = formatEvent(model.NewEnvelope(model.VoiceCallRequest, model.CallEvent{From: "bob"}))
	if !ok || !strings.Contains(line, "bob is calling you") {
		t.Fatalf("unexpected call line %q", line)
	}

	if _, ok := formatEvent(model.NewEnvelope(model.ServerPing, nil)); ok {
		t.Fatalf("SERVER_PING should not be shown")
	}
}

func TestFormatRecordAndFriends(t *testing.T) {
	msg := model.Message{From: "u1", FromName: "alice", To: "u2", ToName: "bob", Datetime: time.Now(), Body: "hey"}
	out, in := msg.Copies()
	if line := formatRecord(out); !strings.Contains(line, "You:") {
		t.Fatalf("outgoing record should be attributed to the user: %q", line)
	}
	if line := formatRecord(in); !strings.Contains(line, "alice:") {
		t.Fatalf("incoming record should name the sender: %q", line)
	}

	listing := renderFriends([]model.Friend{{ID: "u2", Username: "bob", Online: true}, {ID: "u3", Username: "carol"}})
	if !strings.Contains(listing, "bob (online)") || !strings.Contains(listing, "carol (offline)") {
		t.Fatalf("unexpected listing %q", listing)
	}
	if friendLabel(model.Friend{Username: "bob", Online: true}) == friendLabel(model.Friend{Username: "bob"}) {
		t.Fatalf("online and offline labels should differ")
	}
}
