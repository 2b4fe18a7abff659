// Package memory keeps every collection in process memory. It backs local
// development and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"financas/internal/core"
	"financas/internal/store"
)

type userData struct {
	txs   []core.Transaction
	cards []core.CreditCard
	fixed []core.FixedExpense
}

type Store struct {
	mu    sync.Mutex
	data  map[string]*userData
	users map[string]core.User
	now   func() time.Time
}

var _ store.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		data:  make(map[string]*userData),
		users: make(map[string]core.User),
		now:   time.Now,
	}
}

// bucket returns the user's data, creating it. Callers hold s.mu.
func (s *Store) bucket(userID string) *userData {
	d, ok := s.data[userID]
	if !ok {
		d = &userData{}
		s.data[userID] = d
	}
	return d
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.bucket(userID).txs...), nil
}

func (s *Store) AddTransaction(_ context.Context, userID string, t core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.NewString()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	d := s.bucket(userID)
	d.txs = append(d.txs, t)
	return t.ID, nil
}

func (s *Store) UpdateTransaction(_ context.Context, userID string, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.bucket(userID)
	for i := range d.txs {
		if d.txs[i].ID == t.ID {
			t.CreatedAt = d.txs[i].CreatedAt
			d.txs[i] = t
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.bucket(userID)
	for i := range d.txs {
		if d.txs[i].ID == id {
			d.txs = append(d.txs[:i], d.txs[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListCards(_ context.Context, userID string) ([]core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CreditCard(nil), s.bucket(userID).cards...), nil
}

func (s *Store) AddCard(_ context.Context, userID string, c core.CreditCard) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.NewString()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	d := s.bucket(userID)
	d.cards = append(d.cards, c)
	return c.ID, nil
}

func (s *Store) UpdateCard(_ context.Context, userID string, c core.CreditCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.bucket(userID)
	for i := range d.cards {
		if d.cards[i].ID == c.ID {
			c.CreatedAt = d.cards[i].CreatedAt
			d.cards[i] = c
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteCard(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.bucket(userID)
	for i := range d.cards {
		if d.cards[i].ID == id {
			d.cards = append(d.cards[:i], d.cards[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListFixedExpenses(_ context.Context, userID string) ([]core.FixedExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.FixedExpense(nil), s.bucket(userID).fixed...), nil
}

func (s *Store) AddFixedExpense(_ context.Context, userID string, f core.FixedExpense) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = uuid.NewString()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now().UTC()
	}
	d := s.bucket(userID)
	d.fixed = append(d.fixed, f)
	return f.ID, nil
}

func (s *Store) UpdateFixedExpense(_ context.Context, userID string, f core.FixedExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.bucket(userID)
	for i := range d.fixed {
		if d.fixed[i].ID == f.ID {
			f.CreatedAt = d.fixed[i].CreatedAt
			d.fixed[i] = f
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteFixedExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.bucket(userID)
	for i := range d.fixed {
		if d.fixed[i].ID == id {
			d.fixed = append(d.fixed[:i], d.fixed[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, u core.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := normalizeEmail(u.Email)
	for _, existing := range s.users {
		if normalizeEmail(existing.Email) == email {
			return "", store.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.users[u.ID] = u
	return u.ID, nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = normalizeEmail(email)
	for _, u := range s.users {
		if normalizeEmail(u.Email) == email {
			return u, nil
		}
	}
	return core.User{}, store.ErrNotFound
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
