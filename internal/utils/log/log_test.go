package log

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewAcceptsMixedCase(t *testing.T) {
	l, err := New("DEBUG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Core().Enabled(-1) {
		t.Fatalf("expected debug level to be enabled")
	}
}

func TestSetLoggerNilFallsBackToNop(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	SetLogger(zaptest.NewLogger(t))
	Info("hello")

	SetLogger(nil)
	if L() == nil {
		t.Fatalf("expected nop logger, got nil")
	}
	Error("dropped")
}
