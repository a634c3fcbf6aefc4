package roster

import (
	"context"

	"voip_chat/internal/model"
)

// Loader supplies the allow-list once at server start.
type Loader interface {
	Load(ctx context.Context) ([]model.RosterEntry, error)
}

// Load runs l and indexes the result.
func Load(ctx context.Context, l Loader) (*model.Roster, error) {
	entries, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	return model.NewRoster(entries), nil
}

// Static is a fixed in-memory roster.
type Static []model.RosterEntry

func (s Static) Load(context.Context) ([]model.RosterEntry, error) {
	return append([]model.RosterEntry(nil), s...), nil
}
