// Package memory is an in-process Store used by tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"fplpilot/internal/season"
	"fplpilot/internal/store"
)

type Store struct {
	mu      sync.RWMutex
	states  map[season.Key]*season.State
	entries map[season.Key]map[int]season.Entry
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		states:  make(map[season.Key]*season.State),
		entries: make(map[season.Key]map[int]season.Entry),
	}
}

func (s *Store) Load(_ context.Context, key season.Key) (*season.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.states[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := doc.Clone()
	out.Log = nil
	for _, e := range s.entries[key] {
		out.Log = append(out.Log, e.Clone())
	}
	out.Normalize()
	return out, nil
}

func (s *Store) Save(_ context.Context, key season.Key, st *season.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putDoc(key, st)
	rows := make(map[int]season.Entry, len(st.Log))
	for _, e := range st.Log {
		rows[e.GW] = e.Clone()
	}
	s.entries[key] = rows
	return nil
}

func (s *Store) CommitGameweek(_ context.Context, key season.Key, st *season.State, entry season.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putDoc(key, st)
	s.rows(key)[entry.GW] = entry.Clone()
	return nil
}

func (s *Store) RemoveGameweek(_ context.Context, key season.Key, st *season.State, gw int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putDoc(key, st)
	delete(s.rows(key), gw)
	return nil
}

func (s *Store) UpsertEntries(_ context.Context, key season.Key, entries []season.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows(key)
	for _, e := range entries {
		rows[e.GW] = e.Clone()
	}
	return nil
}

func (s *Store) Users(_ context.Context, seasonLabel string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.states {
		if k.Season == seasonLabel {
			out = append(out, k.User)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) putDoc(key season.Key, st *season.State) {
	doc := st.Clone()
	doc.Log = nil
	s.states[key] = doc
}

func (s *Store) rows(key season.Key) map[int]season.Entry {
	rows, ok := s.entries[key]
	if !ok {
		rows = make(map[int]season.Entry)
		s.entries[key] = rows
	}
	return rows
}
