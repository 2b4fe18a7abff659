// Package services keeps a per-user mirror of the ledger in memory and runs
// every mutation through a stage / remote call / apply-or-rollback cycle, so
// the mirror only ever reflects writes the store accepted.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"financas/internal/amqp"
	"financas/internal/cache"
	"financas/internal/core"
	applog "financas/internal/log"
	"financas/internal/store"
)

var (
	ErrUnknownCard   = errors.New("credit card not found")
	ErrCardInUse     = errors.New("credit card still referenced")
	ErrPendingChange = errors.New("another change to this record is in progress")
)

// IsValidation reports whether err means the input was rejected before any remote call.
func IsValidation(err error) bool {
	return core.IsValidationError(err) || errors.Is(err, ErrUnknownCard) || errors.Is(err, ErrCardInUse)
}

// EventPublisher receives committed transaction changes.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// Ledger is a point-in-time copy of one user's collections. Transactions are
// newest first; cards by creation; fixed expenses by day of month.
type Ledger struct {
	Transactions  []core.Transaction
	Cards         []core.CreditCard
	FixedExpenses []core.FixedExpense
	LoadedAt      time.Time
}

func (l Ledger) Card(id string) (core.CreditCard, bool) {
	i := slices.IndexFunc(l.Cards, func(c core.CreditCard) bool { return c.ID == id })
	if i < 0 {
		return core.CreditCard{}, false
	}
	return l.Cards[i], true
}

func (l Ledger) Transaction(id string) (core.Transaction, bool) {
	i := slices.IndexFunc(l.Transactions, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		return core.Transaction{}, false
	}
	return l.Transactions[i], true
}

func (l Ledger) FixedExpense(id string) (core.FixedExpense, bool) {
	i := slices.IndexFunc(l.FixedExpenses, func(f core.FixedExpense) bool { return f.ID == id })
	if i < 0 {
		return core.FixedExpense{}, false
	}
	return l.FixedExpenses[i], true
}

func (l Ledger) clone() Ledger {
	return Ledger{
		Transactions:  slices.Clone(l.Transactions),
		Cards:         slices.Clone(l.Cards),
		FixedExpenses: slices.Clone(l.FixedExpenses),
		LoadedAt:      l.LoadedAt,
	}
}

// mirror is the cached, mutable side of a Ledger. pending holds the keys of
// records with a remote call in flight; cardUses counts in-flight writes
// that reference each card.
type mirror struct {
	mu       sync.Mutex
	data     Ledger
	pending  map[string]string
	cardUses map[string]int
}

func (m *mirror) snapshot() Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.clone()
}

// stage validates against the current mirror and marks key as pending.
func (m *mirror) stage(key, op string, check func(Ledger) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key != "" {
		if _, busy := m.pending[key]; busy {
			return ErrPendingChange
		}
	}
	if check != nil {
		if err := check(m.data); err != nil {
			return err
		}
	}
	if key != "" {
		m.pending[key] = op
	}
	return nil
}

// settle clears the pending mark and, on success, applies the change.
func (m *mirror) settle(key string, apply func(*Ledger)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key != "" {
		delete(m.pending, key)
	}
	if apply != nil {
		apply(&m.data)
	}
}

func (m *mirror) pendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

type LedgerService struct {
	store     store.Ledger
	cache     *cache.LRUCache[*mirror]
	publisher EventPublisher
	logger    *applog.Logger
	events    *applog.StructuredLogger
	now       func() time.Time

	loadMu sync.Mutex
}

type Option func(*LedgerService)

func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithCache bounds how many user mirrors stay in memory and for how long.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *LedgerService) { s.cache = cache.NewLRUCache[*mirror](size, ttl) }
}

const (
	defaultCacheSize = 500
	defaultCacheTTL  = 10 * time.Minute
)

func NewLedgerService(st store.Ledger, opts ...Option) *LedgerService {
	s := &LedgerService{
		store: st,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewLRUCache[*mirror](defaultCacheSize, defaultCacheTTL)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(applog.ComponentLedger)
	s.events = applog.NewStructuredLogger(s.logger)
	return s
}

// Cache exposes the mirror cache for periodic expiry sweeps.
func (s *LedgerService) Cache() cache.Cleaner {
	return s.cache
}

// Snapshot returns the user's ledger, loading it on a cache miss.
func (s *LedgerService) Snapshot(ctx context.Context, userID string) (Ledger, error) {
	m, err := s.load(ctx, userID)
	if err != nil {
		return Ledger{}, err
	}
	return m.snapshot(), nil
}

// Pending reports how many changes of userID are waiting on the store.
func (s *LedgerService) Pending(userID string) int {
	if m, ok := s.cache.Get(userID); ok {
		return m.pendingCount()
	}
	return 0
}

// Invalidate drops the cached mirror; the next read refetches everything.
func (s *LedgerService) Invalidate(userID string) {
	s.cache.Delete(userID)
}

func (s *LedgerService) load(ctx context.Context, userID string) (*mirror, error) {
	if m, ok := s.cache.Get(userID); ok {
		return m, nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if m, ok := s.cache.Get(userID); ok {
		return m, nil
	}

	data, err := s.fetchAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	m := &mirror{data: data, pending: make(map[string]string)}
	s.cache.Set(userID, m)
	return m, nil
}

// fetchAll reads the three collections concurrently.
func (s *LedgerService) fetchAll(ctx context.Context, userID string) (Ledger, error) {
	var data Ledger
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		txs, err := s.store.ListTransactions(gctx, userID)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		data.Transactions = txs
		return nil
	})
	g.Go(func() error {
		cards, err := s.store.ListCards(gctx, userID)
		if err != nil {
			return fmt.Errorf("load cards: %w", err)
		}
		data.Cards = cards
		return nil
	})
	g.Go(func() error {
		fixed, err := s.store.ListFixedExpenses(gctx, userID)
		if err != nil {
			return fmt.Errorf("load fixed expenses: %w", err)
		}
		data.FixedExpenses = fixed
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load ledger",
			applog.FieldUserID, userID,
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeDatabase)
		return Ledger{}, err
	}

	sortTransactions(data.Transactions)
	sortFixed(data.FixedExpenses)
	data.LoadedAt = s.now()
	return data, nil
}

func sortTransactions(txs []core.Transaction) {
	slices.SortStableFunc(txs, func(a, b core.Transaction) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func sortFixed(fixed []core.FixedExpense) {
	slices.SortStableFunc(fixed, func(a, b core.FixedExpense) int {
		return a.DayOfMonth - b.DayOfMonth
	})
}

// holdCard checks the card a credit record points at and counts the caller
// as a user of it until release runs. A card being deleted is rejected.
// m.mu must be held.
func (m *mirror) holdCard(l Ledger, method core.PaymentMethod, cardID string) (release func(), err error) {
	if method != core.PaymentCredit {
		return func() {}, nil
	}
	if _, ok := l.Card(cardID); !ok {
		return nil, ErrUnknownCard
	}
	if m.pending[cardKey(cardID)] == applog.OpDelete {
		return nil, ErrPendingChange
	}
	if m.cardUses == nil {
		m.cardUses = make(map[string]int)
	}
	m.cardUses[cardID]++
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cardUses[cardID]--
		if m.cardUses[cardID] <= 0 {
			delete(m.cardUses, cardID)
		}
	}, nil
}

func txKey(id string) string    { return "tx:" + id }
func cardKey(id string) string  { return "card:" + id }
func fixedKey(id string) string { return "fixed:" + id }

// Transactions

func (s *LedgerService) AddTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	m, err := s.load(ctx, userID)
	if err != nil {
		return core.Transaction{}, err
	}

	t.ID = ""
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var release func()
	if err := m.stage("", applog.OpCreate, func(l Ledger) (err error) {
		release, err = m.holdCard(l, t.PaymentMethod, t.CreditCardID)
		return err
	}); err != nil {
		return core.Transaction{}, err
	}
	defer release()

	id, err := s.store.AddTransaction(ctx, userID, t)
	if err != nil {
		m.settle("", nil)
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	t.ID = id
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	m.settle("", func(l *Ledger) {
		l.Transactions = append(l.Transactions, t)
		sortTransactions(l.Transactions)
	})

	s.events.LogTransactionSaved(ctx, applog.OpCreate, userID, t.ID, string(t.Type), string(t.Category), t.Amount.Cents)
	s.publish(ctx, amqp.OpCreated, userID, t)
	return t, nil
}

// UpdateTransaction merges patch into the stored transaction.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	m, err := s.load(ctx, userID)
	if err != nil {
		return core.Transaction{}, err
	}

	var (
		merged  core.Transaction
		release func()
	)
	key := txKey(id)
	if err := m.stage(key, applog.OpUpdate, func(l Ledger) (err error) {
		cur, ok := l.Transaction(id)
		if !ok {
			return store.ErrNotFound
		}
		merged = patch.Apply(cur)
		if err := merged.Validate(); err != nil {
			return err
		}
		release, err = m.holdCard(l, merged.PaymentMethod, merged.CreditCardID)
		return err
	}); err != nil {
		return core.Transaction{}, err
	}
	defer release()

	if err := s.store.UpdateTransaction(ctx, userID, merged); err != nil {
		m.settle(key, nil)
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	m.settle(key, func(l *Ledger) {
		if i := slices.IndexFunc(l.Transactions, func(t core.Transaction) bool { return t.ID == id }); i >= 0 {
			l.Transactions[i] = merged
			sortTransactions(l.Transactions)
		}
	})

	s.events.LogTransactionSaved(ctx, applog.OpUpdate, userID, id, string(merged.Type), string(merged.Category), merged.Amount.Cents)
	s.publish(ctx, amqp.OpUpdated, userID, merged)
	return merged, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) error {
	m, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	var removed core.Transaction
	key := txKey(id)
	if err := m.stage(key, applog.OpDelete, func(l Ledger) error {
		cur, ok := l.Transaction(id)
		if !ok {
			return store.ErrNotFound
		}
		removed = cur
		return nil
	}); err != nil {
		return err
	}

	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		m.settle(key, nil)
		return fmt.Errorf("delete transaction: %w", err)
	}

	m.settle(key, func(l *Ledger) {
		l.Transactions = slices.DeleteFunc(l.Transactions, func(t core.Transaction) bool { return t.ID == id })
	})

	s.logger.InfoContext(ctx, "Transaction deleted", applog.FieldUserID, userID, applog.FieldEntityID, id)
	s.publish(ctx, amqp.OpDeleted, userID, removed)
	return nil
}

// publish never fails the caller: the change is already committed.
func (s *LedgerService) publish(ctx context.Context, op amqp.EventOp, userID string, t core.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(op, userID, t)); err != nil {
		s.events.LogError(ctx, "Failed to publish transaction event", err, applog.ComponentAMQP, applog.OpPublish,
			applog.NewFields().WithUser(userID).WithEntity("transaction", t.ID))
	}
}

// Credit cards

func (s *LedgerService) AddCard(ctx context.Context, userID string, c core.CreditCard) (core.CreditCard, error) {
	m, err := s.load(ctx, userID)
	if err != nil {
		return core.CreditCard{}, err
	}

	c.ID = ""
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	if err := m.stage("", applog.OpCreate, nil); err != nil {
		return core.CreditCard{}, err
	}

	id, err := s.store.AddCard(ctx, userID, c)
	if err != nil {
		m.settle("", nil)
		return core.CreditCard{}, fmt.Errorf("save card: %w", err)
	}

	c.ID = id
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	m.settle("", func(l *Ledger) { l.Cards = append(l.Cards, c) })

	s.logger.InfoContext(ctx, "Card saved", applog.FieldUserID, userID, applog.FieldEntityID, id)
	return c, nil
}

func (s *LedgerService) UpdateCard(ctx context.Context, userID, id string, patch core.CardPatch) (core.CreditCard, error) {
	m, err := s.load(ctx, userID)
	if err != nil {
		return core.CreditCard{}, err
	}

	var merged core.CreditCard
	key := cardKey(id)
	if err := m.stage(key, applog.OpUpdate, func(l Ledger) error {
		cur, ok := l.Card(id)
		if !ok {
			return store.ErrNotFound
		}
		merged = patch.Apply(cur)
		return merged.Validate()
	}); err != nil {
		return core.CreditCard{}, err
	}

	if err := s.store.UpdateCard(ctx, userID, merged); err != nil {
		m.settle(key, nil)
		return core.CreditCard{}, fmt.Errorf("update card: %w", err)
	}

	m.settle(key, func(l *Ledger) {
		if i := slices.IndexFunc(l.Cards, func(c core.CreditCard) bool { return c.ID == id }); i >= 0 {
			l.Cards[i] = merged
		}
	})
	return merged, nil
}

// DeleteCard refuses while any transaction or fixed expense points at the card.
func (s *LedgerService) DeleteCard(ctx context.Context, userID, id string) error {
	m, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	key := cardKey(id)
	if err := m.stage(key, applog.OpDelete, func(l Ledger) error {
		if _, ok := l.Card(id); !ok {
			return store.ErrNotFound
		}
		if slices.ContainsFunc(l.Transactions, func(t core.Transaction) bool { return t.CreditCardID == id }) ||
			slices.ContainsFunc(l.FixedExpenses, func(f core.FixedExpense) bool { return f.CreditCardID == id }) {
			return ErrCardInUse
		}
		if m.cardUses[id] > 0 {
			return ErrPendingChange
		}
		return nil
	}); err != nil {
		return err
	}

	if err := s.store.DeleteCard(ctx, userID, id); err != nil {
		m.settle(key, nil)
		return fmt.Errorf("delete card: %w", err)
	}

	m.settle(key, func(l *Ledger) {
		l.Cards = slices.DeleteFunc(l.Cards, func(c core.CreditCard) bool { return c.ID == id })
	})
	return nil
}

// Fixed expenses

func (s *LedgerService) AddFixedExpense(ctx context.Context, userID string, f core.FixedExpense) (core.FixedExpense, error) {
	m, err := s.load(ctx, userID)
	if err != nil {
		return core.FixedExpense{}, err
	}

	f.ID = ""
	if err := f.Validate(); err != nil {
		return core.FixedExpense{}, err
	}
	var release func()
	if err := m.stage("", applog.OpCreate, func(l Ledger) (err error) {
		release, err = m.holdCard(l, f.PaymentMethod, f.CreditCardID)
		return err
	}); err != nil {
		return core.FixedExpense{}, err
	}
	defer release()

	id, err := s.store.AddFixedExpense(ctx, userID, f)
	if err != nil {
		m.settle("", nil)
		return core.FixedExpense{}, fmt.Errorf("save fixed expense: %w", err)
	}

	f.ID = id
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	m.settle("", func(l *Ledger) {
		l.FixedExpenses = append(l.FixedExpenses, f)
		sortFixed(l.FixedExpenses)
	})
	return f, nil
}

func (s *LedgerService) UpdateFixedExpense(ctx context.Context, userID, id string, patch core.FixedExpensePatch) (core.FixedExpense, error) {
	m, err := s.load(ctx, userID)
	if err != nil {
		return core.FixedExpense{}, err
	}

	var (
		merged  core.FixedExpense
		release func()
	)
	key := fixedKey(id)
	if err := m.stage(key, applog.OpUpdate, func(l Ledger) (err error) {
		cur, ok := l.FixedExpense(id)
		if !ok {
			return store.ErrNotFound
		}
		merged = patch.Apply(cur)
		if err := merged.Validate(); err != nil {
			return err
		}
		release, err = m.holdCard(l, merged.PaymentMethod, merged.CreditCardID)
		return err
	}); err != nil {
		return core.FixedExpense{}, err
	}
	defer release()

	if err := s.store.UpdateFixedExpense(ctx, userID, merged); err != nil {
		m.settle(key, nil)
		return core.FixedExpense{}, fmt.Errorf("update fixed expense: %w", err)
	}

	m.settle(key, func(l *Ledger) {
		if i := slices.IndexFunc(l.FixedExpenses, func(f core.FixedExpense) bool { return f.ID == id }); i >= 0 {
			l.FixedExpenses[i] = merged
			sortFixed(l.FixedExpenses)
		}
	})
	return merged, nil
}

func (s *LedgerService) DeleteFixedExpense(ctx context.Context, userID, id string) error {
	m, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	key := fixedKey(id)
	if err := m.stage(key, applog.OpDelete, func(l Ledger) error {
		if _, ok := l.FixedExpense(id); !ok {
			return store.ErrNotFound
		}
		return nil
	}); err != nil {
		return err
	}

	if err := s.store.DeleteFixedExpense(ctx, userID, id); err != nil {
		m.settle(key, nil)
		return fmt.Errorf("delete fixed expense: %w", err)
	}

	m.settle(key, func(l *Ledger) {
		l.FixedExpenses = slices.DeleteFunc(l.FixedExpenses, func(f core.FixedExpense) bool { return f.ID == id })
	})
	return nil
}
