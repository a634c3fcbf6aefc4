package client

import (
	"context"
	stdrsa "crypto/rsa"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	rsaKey "voip_chat/internal/cryptographic/rsa"
	"voip_chat/internal/model"
	"voip_chat/internal/repository/message"
	"voip_chat/internal/service/server"
)

var testKey = sync.OnceValue(func() *stdrsa.PrivateKey {
	key, err := rsaKey.NewKeyPair()
	if err != nil {
		panic(err)
	}
	return key
})

func startServer(t *testing.T) *server.Server {
	t.Helper()
	store, err := message.NewFileStore(filepath.Join(t.TempDir(), "messages.json"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	roster := model.NewRoster([]model.RosterEntry{
		{ID: "u1", Username: "alice"},
		{ID: "u2", Username: "bob"},
	})
	srv, err := server.New(roster, store, server.Options{
		Address:       "127.0.0.1:0",
		SweepInterval: time.Hour,
		PrivateKey:    testKey(),
		Logger:        zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

func connect(t *testing.T, srv *server.Server, id, username string, plaintext bool) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, srv.Addr().String(), Options{Plaintext: plaintext, PrivateKey: testKey(), Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	name, err := c.Connect(ctx, id, username)
	if err != nil {
		t.Fatalf("connect %s: %v", id, err)
	}
	if name != username {
		t.Fatalf("expected display name %s, got %s", username, name)
	}
	return c
}

func nextEvent(t *testing.T, c *Client) model.Envelope {
	t.Helper()
	select {
	case env, ok := <-c.Events():
		if !ok {
			t.Fatalf("event stream closed: %v", c.Err())
		}
		return env
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return model.Envelope{}
}

func TestClientConversation(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	alice := connect(t, srv, "u1", "alice", false)
	bob := connect(t, srv, "u2", "bob", true)

	if err := alice.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	friends, err := alice.FriendsList(ctx)
	if err != nil {
		t.Fatalf("friends: %v", err)
	}
	if len(friends) != 1 || friends[0].Username != "bob" || !friends[0].Online {
		t.Fatalf("unexpected friends %+v", friends)
	}

	if _, err := alice.SendText(ctx, "bob", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	push := nextEvent(t, bob)
	if push.Code != model.SendText {
		t.Fatalf("expected SEND_TEXT, got %s", push.Code)
	}

	if err := alice.Call(ctx, "bob"); err != nil {
		t.Fatalf("call: %v", err)
	}
	if ring := nextEvent(t, bob); ring.Code != model.VoiceCallRequest {
		t.Fatalf("expected VOICECALL_REQUEST, got %s", ring.Code)
	}

	records, err := bob.Messages(ctx, Query{Peer: "alice", From: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(records) != 1 || records[0].Body != "hi" || records[0].Author != "alice->me" {
		t.Fatalf("unexpected records %+v", records)
	}

	info, err := bob.Describe(ctx)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if info.Online != 2 || info.Roster != 2 {
		t.Fatalf("unexpected info %+v", info)
	}

	if err := bob.Disconnect(ctx); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	select {
	case <-bob.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("client not closed after disconnect")
	}
	if err := bob.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after disconnect, got %v", err)
	}
}

func TestClientRequestErrors(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	c, err := Dial(ctx, srv.Addr().String(), Options{PrivateKey: testKey()})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	_, err = c.Connect(ctx, "u9", "mallory")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Code != model.BadRequest {
		t.Fatalf("expected BAD_REQUEST error, got %v", err)
	}

	alice := connect(t, srv, "u1", "alice", false)
	_, err = alice.SendText(ctx, "nobody", "hello")
	if !errors.As(err, &reqErr) || !reqErr.Code.IsNotFound() {
		t.Fatalf("expected NOT_FOUND error, got %v", err)
	}
	if err := alice.Call(ctx, "bob"); !errors.As(err, &reqErr) || !reqErr.Code.IsNotFound() {
		t.Fatalf("expected NOT_FOUND for offline callee, got %v", err)
	}
}

func TestClientObservesServerStop(t *testing.T) {
	srv := startServer(t)
	alice := connect(t, srv, "u1", "alice", true)

	srv.Stop()
	select {
	case <-alice.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("client did not notice server stop")
	}
	if _, ok := <-alice.Events(); ok {
		t.Fatalf("event stream should be closed")
	}
	if err := alice.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
