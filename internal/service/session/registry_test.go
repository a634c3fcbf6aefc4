package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voip_chat/internal/model"
)

type fakeConn struct {
	closed atomic.Int32
}

func (c *fakeConn) Send(model.Envelope) error { return nil }
func (c *fakeConn) Close() error {
	c.closed.Add(1)
	return nil
}

func newSession(id, name string) *Session {
	return New(model.RosterEntry{ID: id, Username: name}, &fakeConn{}, nil)
}

func TestInsertRejectsDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Insert(newSession("u1", "alice")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := reg.Insert(newSession("u1", "alice")); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}
	if err := reg.Insert(newSession("", "nobody")); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", reg.Len())
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Insert(newSession("u1", "alice"))

	var wg sync.WaitGroup
	var removed atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := reg.Remove("u1"); ok {
				removed.Add(1)
			}
		}()
	}
	wg.Wait()

	if removed.Load() != 1 {
		t.Fatalf("expected exactly one effective removal, got %d", removed.Load())
	}
	if reg.Has("u1") {
		t.Fatalf("expected u1 to be absent")
	}
	if _, ok := reg.Remove("never-there"); ok {
		t.Fatalf("removing an unknown id must be a no-op")
	}
}

func TestConcurrentInsertSingleWinner(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	var wins, losses atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := reg.Insert(newSession("u1", "alice"))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrAlreadyConnected):
				losses.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || losses.Load() != 15 {
		t.Fatalf("expected 1 winner and 15 losers, got %d/%d", wins.Load(), losses.Load())
	}
}

func TestRemoveSessionIgnoresStaleValue(t *testing.T) {
	reg := NewRegistry()
	old := newSession("u1", "alice")
	_ = reg.Insert(old)
	reg.Remove("u1")

	fresh := newSession("u1", "alice")
	_ = reg.Insert(fresh)

	if reg.RemoveSession(old) {
		t.Fatalf("stale session must not evict the newer one")
	}
	if cur, _ := reg.Get("u1"); cur != fresh {
		t.Fatalf("expected fresh session to remain")
	}
	if !reg.RemoveSession(fresh) {
		t.Fatalf("expected fresh session removal")
	}
	if reg.RemoveSession(nil) {
		t.Fatalf("nil session removal must be false")
	}
}

func TestSnapshotAndLookup(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Insert(newSession("u2", "bob"))
	_ = reg.Insert(newSession("u1", "alice"))

	snap := reg.Snapshot()
	if len(snap) != 2 || snap[0].ID() != "u1" || snap[1].ID() != "u2" {
		t.Fatalf("unexpected snapshot order")
	}

	// mutating the registry does not affect a taken snapshot
	reg.Remove("u1")
	if len(snap) != 2 {
		t.Fatalf("snapshot changed under mutation")
	}

	if sess, ok := reg.ByName("bob"); !ok || sess.ID() != "u2" {
		t.Fatalf("expected bob by name")
	}
	if _, ok := reg.ByName("alice"); ok {
		t.Fatalf("alice was removed")
	}
}

func TestCloseAll(t *testing.T) {
	reg := NewRegistry()
	c := &fakeConn{}
	_ = reg.Insert(New(model.RosterEntry{ID: "u1", Username: "alice"}, c, nil))

	closed := reg.CloseAll()
	if len(closed) != 1 || reg.Len() != 0 {
		t.Fatalf("expected registry emptied")
	}
	if c.closed.Load() != 1 {
		t.Fatalf("expected connection closed once")
	}
}

func TestSessionLiveness(t *testing.T) {
	sess := newSession("u1", "alice")
	sent, acked := sess.Liveness()
	if !sent.IsZero() || !acked.IsZero() {
		t.Fatalf("expected zero timestamps initially")
	}

	now := time.Now()
	sess.MarkPingSent(now)
	sess.MarkPingAcked(now.Add(time.Second))

	info := sess.Info()
	if !info.LastPingSent.Equal(now) || !info.LastPingAck.Equal(now.Add(time.Second)) {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Encrypted {
		t.Fatalf("session without peer key must not report encryption")
	}
}

type timedConn struct {
	fakeConn
	timeout time.Duration
}

func (c *timedConn) SendTimeout(_ model.Envelope, d time.Duration) error {
	c.timeout = d
	return nil
}

func TestSendWithinUsesDeadlineWhenAvailable(t *testing.T) {
	timed := &timedConn{}
	sess := New(model.RosterEntry{ID: "u1", Username: "alice"}, timed, nil)
	if err := sess.SendWithin(model.NewEnvelope(model.ServerPing, nil), time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}
	if timed.timeout != time.Second {
		t.Fatalf("expected bounded send, got timeout %s", timed.timeout)
	}

	// plain connections fall back to Send
	if err := newSession("u2", "bob").SendWithin(model.NewEnvelope(model.ServerPing, nil), time.Second); err != nil {
		t.Fatalf("fallback send: %v", err)
	}
}
