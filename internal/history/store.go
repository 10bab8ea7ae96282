// Package history keeps the session-scoped, newest-first log of answered queries.
package history

import (
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/MikeSquared-Agency/insight/internal/query"
)

// Store is an append-only log of records for one session plus a "current selection" pointer.
//
// Records are kept oldest-first internally so Append is O(1); every read presents them
// newest-first. The selection, when set, always names a record present in the log.
type Store struct {
	sessionID string

	mu       sync.RWMutex
	records  []query.Record
	index    map[string]struct{}
	selected string
}

// New returns an empty store scoped to sessionID.
func New(sessionID string) *Store {
	return &Store{
		sessionID: sessionID,
		index:     make(map[string]struct{}),
	}
}

// SessionID returns the session this store is scoped to.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Append inserts rec at the head. A query id already present is rejected with
// *query.DuplicateRecordError and the store is left unchanged.
func (s *Store) Append(rec query.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[rec.QueryID]; ok {
		return &query.DuplicateRecordError{QueryID: rec.QueryID}
	}
	s.records = append(s.records, rec)
	s.index[rec.QueryID] = struct{}{}
	return nil
}

// All returns a newest-first copy of every record.
func (s *Store) All() []query.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.records)
	slices.Reverse(out)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Filter yields the records whose question text satisfies match, newest-first.
// The sequence is lazy and can be ranged over any number of times; each pass
// sees the store as it was when that pass started.
func (s *Store) Filter(match func(question string) bool) iter.Seq[query.Record] {
	return func(yield func(query.Record) bool) {
		s.mu.RLock()
		snapshot := s.records[:len(s.records):len(s.records)]
		s.mu.RUnlock()

		for i := len(snapshot) - 1; i >= 0; i-- {
			if !match(snapshot[i].Question) {
				continue
			}
			if !yield(snapshot[i]) {
				return
			}
		}
	}
}

// Search yields records whose question contains term, ignoring case.
// An empty term matches everything.
func (s *Store) Search(term string) iter.Seq[query.Record] {
	needle := strings.ToLower(strings.TrimSpace(term))
	return s.Filter(func(question string) bool {
		return strings.Contains(strings.ToLower(question), needle)
	})
}

// Get looks up a record without touching the selection.
func (s *Store) Get(queryID string) (query.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(queryID)
}

// Select marks queryID as the currently displayed record. An unknown id returns
// query.ErrNotFound and leaves the selection unchanged.
func (s *Store) Select(queryID string) (query.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(queryID)
	if err != nil {
		return query.Record{}, err
	}
	s.selected = queryID
	return rec, nil
}

// Selected returns the currently displayed record, if any.
func (s *Store) Selected() (query.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == "" {
		return query.Record{}, false
	}
	rec, err := s.lookup(s.selected)
	if err != nil {
		return query.Record{}, false
	}
	return rec, true
}

// Clear empties the log and resets the selection.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.index = make(map[string]struct{})
	s.selected = ""
}

// Replace swaps the contents for records given newest-first, as returned by the
// history endpoint. Later duplicates of a query id are dropped. The selection is
// kept only if it still names a present record.
func (s *Store) Replace(newestFirst []query.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]query.Record, 0, len(newestFirst))
	index := make(map[string]struct{}, len(newestFirst))
	for _, rec := range newestFirst {
		if _, ok := index[rec.QueryID]; ok {
			continue
		}
		index[rec.QueryID] = struct{}{}
		records = append(records, rec)
	}
	slices.Reverse(records)

	s.records = records
	s.index = index
	if _, ok := index[s.selected]; !ok {
		s.selected = ""
	}
}

func (s *Store) lookup(queryID string) (query.Record, error) {
	if _, ok := s.index[queryID]; !ok {
		return query.Record{}, query.ErrNotFound
	}
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].QueryID == queryID {
			return s.records[i], nil
		}
	}
	return query.Record{}, query.ErrNotFound
}
