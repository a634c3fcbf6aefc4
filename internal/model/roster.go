package model

import "sort"

type (
	RosterEntry struct {
		ID       string `json:"id" bson:"id"`
		Username string `json:"username" bson:"username"`
	}

	// Roster is the read-only allow-list. It is never mutated after construction, so
	// concurrent readers need no locking.
	Roster struct {
		entries []RosterEntry
		byID    map[string]RosterEntry
		byName  map[string]RosterEntry
	}
)

// NewRoster indexes entries; later duplicates of an id or username are ignored.
func NewRoster(entries []RosterEntry) *Roster {
	r := &Roster{
		byID:   make(map[string]RosterEntry, len(entries)),
		byName: make(map[string]RosterEntry, len(entries)),
	}
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if _, dup := r.byID[e.ID]; dup {
			continue
		}
		r.byID[e.ID] = e
		if _, dup := r.byName[e.Username]; !dup && e.Username != "" {
			r.byName[e.Username] = e
		}
		r.entries = append(r.entries, e)
	}
	sort.SliceStable(r.entries, func(i, j int) bool { return r.entries[i].ID < r.entries[j].ID })
	return r
}

func (r *Roster) CanConnect(id string) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *Roster) ByID(id string) (RosterEntry, bool) {
	e, ok := r.byID[id]
	return e, ok
}

func (r *Roster) ByName(name string) (RosterEntry, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Entries returns a copy sorted by id.
func (r *Roster) Entries() []RosterEntry {
	return append([]RosterEntry(nil), r.entries...)
}

func (r *Roster) Len() int { return len(r.entries) }
