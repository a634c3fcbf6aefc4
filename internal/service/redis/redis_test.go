package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestDialAndAtomicPush(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	svc, err := Dial(ctx, Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer svc.Close()

	err = svc.RPushAtomic(ctx, map[string][]any{
		"a": {"1", "2"},
		"b": {"3"},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	got, err := svc.LRange(ctx, "a")
	if err != nil || len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("lrange a: %v %v", got, err)
	}
	if got, _ := svc.LRange(ctx, "b"); len(got) != 1 {
		t.Fatalf("lrange b: %v", got)
	}
}

func TestDialUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := Dial(context.Background(), Options{Addr: addr}); err == nil {
		t.Fatalf("expected error dialing a stopped server")
	}
}
