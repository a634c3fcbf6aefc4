package message

import (
	"context"
	"errors"
	"time"

	"voip_chat/internal/model"
)

var ErrStoreUnavailable = errors.New("message store unavailable")

type (
	// Store is the per-user message log. Append writes the sender's outgoing and the
	// recipient's incoming copy before returning.
	Store interface {
		Append(ctx context.Context, msg model.Message) error
		Query(ctx context.Context, identity string, f Filter) ([]model.Record, error)
		Close() error
	}

	// Filter bounds are inclusive; nil means unbounded. Peer matches the other party's
	// identity or display name.
	Filter struct {
		From *time.Time
		To   *time.Time
		Peer string
	}
)

func (f Filter) Match(r model.Record) bool {
	if f.From != nil && r.Datetime.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Datetime.After(*f.To) {
		return false
	}
	if f.Peer != "" && !r.Involves(f.Peer) {
		return false
	}
	return true
}

// apply filters records in insertion order and annotates the survivors.
func apply(records []model.Record, f Filter) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r.Annotate())
		}
	}
	return out
}
