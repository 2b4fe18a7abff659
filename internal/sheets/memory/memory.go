// Package memory is an in-process Mirror for tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"financas/internal/core"
	"financas/internal/sheets"
)

type Row struct {
	UserID      string
	Transaction core.Transaction
}

type Store struct {
	mu   sync.Mutex
	base string
	tabs map[string]map[string]Row
}

var _ sheets.Mirror = (*Store)(nil)

func New(base string) *Store {
	if strings.TrimSpace(base) == "" {
		base = sheets.DefaultTab
	}
	return &Store{base: base, tabs: make(map[string]map[string]Row)}
}

// Upsert writes the row into its year's tab and drops it from any other tab.
func (s *Store) Upsert(_ context.Context, userID string, t core.Transaction) error {
	if t.ID == "" {
		return sheets.ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tab := sheets.TabName(s.base, t.Date.Year())
	for name, rows := range s.tabs {
		if name != tab {
			delete(rows, t.ID)
		}
	}
	if s.tabs[tab] == nil {
		s.tabs[tab] = make(map[string]Row)
	}
	s.tabs[tab][t.ID] = Row{UserID: userID, Transaction: t}
	return nil
}

func (s *Store) Remove(_ context.Context, _ string, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rows := range s.tabs {
		delete(rows, t.ID)
	}
	return nil
}

// Rows returns the rows of year's tab ordered by id.
func (s *Store) Rows(year int) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tabs[sheets.TabName(s.base, year)]
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Row) int { return strings.Compare(a.Transaction.ID, b.Transaction.ID) })
	return out
}
