package memory

import (
	"context"
	"sort"
	"sync"

	"farmbook/internal/core"
	"farmbook/internal/sheets"
)

var _ sheets.Mirror = (*Store)(nil)

// Store is an in-process mirror, used when no spreadsheet is configured and
// in tests.
type Store struct {
	mu   sync.Mutex
	rows map[core.RecordKind]map[int64]sheets.Row
}

func New() *Store {
	return &Store{rows: make(map[core.RecordKind]map[int64]sheets.Row)}
}

// Upsert stores a copy of the row, replacing any row with the same key.
func (s *Store) Upsert(_ context.Context, row sheets.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.rows[row.Kind]
	if !ok {
		byID = make(map[int64]sheets.Row)
		s.rows[row.Kind] = byID
	}
	row.Cells = append([]any(nil), row.Cells...)
	byID[row.ID] = row
	return nil
}

// Remove deletes the row if present. Removing a missing row is not an error.
func (s *Store) Remove(_ context.Context, kind core.RecordKind, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[kind], id)
	return nil
}

// Rows returns the stored rows of kind ordered by ID.
func (s *Store) Rows(kind core.RecordKind) []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]sheets.Row, 0, len(s.rows[kind]))
	for _, r := range s.rows[kind] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of stored rows across kinds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, byID := range s.rows {
		n += len(byID)
	}
	return n
}
