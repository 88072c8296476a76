package cache

import (
	"context"
	"log/slog"
)

// Snapshot is a point-in-time copy of the entries matching a predicate.
type Snapshot struct {
	match   Predicate
	entries map[Key]entry
}

// Snapshot captures the entries matching match.
func (s *Store) Snapshot(match Predicate) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{match: match, entries: make(map[Key]entry)}
	for k, e := range s.entries {
		if match(k) {
			c := *e
			c.refreshing = false
			snap.entries[k] = c
		}
	}
	return snap
}

// Len is the number of captured entries.
func (snap Snapshot) Len() int { return len(snap.entries) }

// Restore puts every matching entry back to its captured state. Entries that
// match but did not exist when the snapshot was taken are removed.
func (s *Store) Restore(snap Snapshot) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.entries {
		if _, captured := snap.entries[k]; !captured && snap.match(k) {
			s.epochs[k]++
			delete(s.entries, k)
		}
	}
	for k, e := range snap.entries {
		c := e
		s.epochs[k]++
		s.entries[k] = &c
	}
	return len(snap.entries)
}

// Outcome is how an optimistic mutation ended.
type Outcome int

const (
	Committed Outcome = iota + 1
	RolledBack
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Mutation is an optimistic change: Apply edits the cache tentatively, Commit
// performs the remote write. Scope selects the entries restored on failure.
type Mutation struct {
	Scope  Predicate
	Apply  func(*Store)
	Commit func(ctx context.Context) error
}

// TxResult reports an optimistic mutation's outcome. Err is the commit error
// when the mutation was rolled back.
type TxResult struct {
	Outcome  Outcome
	Restored int
	Err      error
}

func (r TxResult) Committed() bool { return r.Outcome == Committed }

// Optimistic captures the scoped entries, applies the tentative change and
// commits it. A failed commit restores the captured entries.
func (s *Store) Optimistic(ctx context.Context, m Mutation) TxResult {
	snap := s.Snapshot(m.Scope)
	slog.DebugContext(ctx, "Optimistic cache update", "captured", snap.Len())
	if m.Apply != nil {
		m.Apply(s)
	}

	if err := m.Commit(ctx); err != nil {
		restored := s.Restore(snap)
		slog.DebugContext(ctx, "Optimistic cache update rolled back", "restored", restored, "error", err)
		return TxResult{Outcome: RolledBack, Restored: restored, Err: err}
	}
	return TxResult{Outcome: Committed}
}
