package store

import (
	"context"
	"errors"

	"fplpilot/internal/season"
)

// ErrNotFound is returned by Load when no state exists for the key.
var ErrNotFound = errors.New("season state not found")

// Store is the durability boundary for season ledgers. The state document is
// kept apart from the per-gameweek log rows; Load joins them back together.
type Store interface {
	// Load returns the state with its log sorted by gameweek.
	Load(ctx context.Context, key season.Key) (*season.State, error)
	// Save replaces the state document and the whole log.
	Save(ctx context.Context, key season.Key, st *season.State) error
	// CommitGameweek writes the state document and upserts one entry atomically.
	CommitGameweek(ctx context.Context, key season.Key, st *season.State, entry season.Entry) error
	// RemoveGameweek writes the state document and deletes the entry for gw atomically.
	RemoveGameweek(ctx context.Context, key season.Key, st *season.State, gw int) error
	// UpsertEntries corrects individual log rows without touching the state document.
	UpsertEntries(ctx context.Context, key season.Key, entries []season.Entry) error
	// Users lists every user holding a state for the season.
	Users(ctx context.Context, seasonLabel string) ([]string, error)
	Close() error
}
