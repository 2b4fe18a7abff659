// Package supabase stores collections in a hosted Postgres through the
// PostgREST API. Every query is filtered by user_id.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/supabase-community/supabase-go"

	"financas/internal/core"
	"financas/internal/store"
)

const (
	tableUsers         = "users"
	tableTransactions  = "transactions"
	tableCards         = "credit_cards"
	tableFixedExpenses = "fixed_expenses"
)

type Repository struct {
	client *supabase.Client
	now    func() time.Time
}

var _ store.Backend = (*Repository)(nil)

func New(url, key string) (*Repository, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Repository{client: client, now: time.Now}, nil
}

func (r *Repository) Close() error { return nil }

func (r *Repository) Ping(ctx context.Context) error {
	_, _, err := r.client.From(tableUsers).Select("id", "", false).Limit(1, "").Execute()
	if err != nil {
		return fmt.Errorf("ping supabase: %w", err)
	}
	return nil
}

// Row shapes as stored in Postgres.

type transactionRow struct {
	ID            string  `json:"id,omitempty"`
	UserID        string  `json:"user_id"`
	Description   string  `json:"description"`
	AmountCents   int64   `json:"amount_cents"`
	Date          string  `json:"date"`
	Category      string  `json:"category"`
	Notes         string  `json:"notes"`
	Type          string  `json:"type"`
	PaymentMethod string  `json:"payment_method"`
	CreditCardID  *string `json:"credit_card_id"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

type cardRow struct {
	ID         string `json:"id,omitempty"`
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Bank       string `json:"bank"`
	LimitCents int64  `json:"limit_cents"`
	DueDay     int    `json:"due_day"`
	ClosingDay int    `json:"closing_day"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type fixedRow struct {
	ID            string  `json:"id,omitempty"`
	UserID        string  `json:"user_id"`
	Description   string  `json:"description"`
	AmountCents   int64   `json:"amount_cents"`
	Category      string  `json:"category"`
	PaymentMethod string  `json:"payment_method"`
	DayOfMonth    int     `json:"day_of_month"`
	Notes         string  `json:"notes"`
	CreditCardID  *string `json:"credit_card_id"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

type userRow struct {
	ID           string `json:"id,omitempty"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Plan         string `json:"plan"`
	Provider     string `json:"provider"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    string `json:"created_at,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r *Repository) stamp(t time.Time) string {
	if t.IsZero() {
		t = r.now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toTransactionRow(userID string, t core.Transaction) transactionRow {
	return transactionRow{
		UserID:        userID,
		Description:   t.Description,
		AmountCents:   t.Amount.Cents,
		Date:          t.Date.String(),
		Category:      string(t.Category),
		Notes:         t.Notes,
		Type:          string(t.Type),
		PaymentMethod: string(t.PaymentMethod),
		CreditCardID:  optional(t.CreditCardID),
	}
}

func (row transactionRow) toCore() (core.Transaction, error) {
	d, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:            row.ID,
		Description:   row.Description,
		Amount:        core.Money{Cents: row.AmountCents},
		Date:          d,
		Category:      core.ParseCategory(row.Category),
		Notes:         row.Notes,
		Type:          core.ParseTxType(row.Type),
		PaymentMethod: core.ParsePaymentMethod(row.PaymentMethod),
		CreditCardID:  deref(row.CreditCardID),
		CreatedAt:     parseTime(row.CreatedAt),
	}, nil
}

// insert posts row and returns the id Postgres assigned.
func (r *Repository) insert(table string, row any) (string, error) {
	data, _, err := r.client.From(table).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		if strings.Contains(err.Error(), "23505") || strings.Contains(strings.ToLower(err.Error()), "duplicate key") {
			return "", store.ErrConflict
		}
		return "", fmt.Errorf("insert into %s: %w", table, err)
	}
	var created []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("parse created %s: %w", table, err)
	}
	if len(created) == 0 || created[0].ID == "" {
		return "", fmt.Errorf("insert into %s: no id returned", table)
	}
	return created[0].ID, nil
}

// update patches the row matching id and userID; zero matched rows is
// ErrNotFound.
func (r *Repository) update(table, userID, id string, fields any) error {
	data, _, err := r.client.From(table).
		Update(fields, "representation", "").
		Eq("id", id).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("update %s %s: %w", table, id, err)
	}
	return checkMatched(data)
}

func (r *Repository) remove(table, userID, id string) error {
	data, _, err := r.client.From(table).
		Delete("representation", "").
		Eq("id", id).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	return checkMatched(data)
}

func checkMatched(data []byte) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) list(table, userID, order string, out any) error {
	data, _, err := r.client.From(table).
		Select("*", "", false).
		Eq("user_id", userID).
		Order(order, nil).
		Execute()
	if err != nil {
		return fmt.Errorf("list %s: %w", table, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", table, err)
	}
	return nil
}

// Transactions

func (r *Repository) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	var rows []transactionRow
	if err := r.list(tableTransactions, userID, "date", &rows); err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toCore()
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", row.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Repository) AddTransaction(_ context.Context, userID string, t core.Transaction) (string, error) {
	row := toTransactionRow(userID, t)
	row.CreatedAt = r.stamp(t.CreatedAt)
	return r.insert(tableTransactions, row)
}

func (r *Repository) UpdateTransaction(_ context.Context, userID string, t core.Transaction) error {
	return r.update(tableTransactions, userID, t.ID, toTransactionRow(userID, t))
}

func (r *Repository) DeleteTransaction(_ context.Context, userID, id string) error {
	return r.remove(tableTransactions, userID, id)
}

// Credit cards

func (r *Repository) ListCards(_ context.Context, userID string) ([]core.CreditCard, error) {
	var rows []cardRow
	if err := r.list(tableCards, userID, "created_at", &rows); err != nil {
		return nil, err
	}
	out := make([]core.CreditCard, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.CreditCard{
			ID:         row.ID,
			Name:       row.Name,
			Bank:       row.Bank,
			Limit:      core.Money{Cents: row.LimitCents},
			DueDay:     row.DueDay,
			ClosingDay: row.ClosingDay,
			CreatedAt:  parseTime(row.CreatedAt),
		})
	}
	return out, nil
}

func toCardRow(userID string, c core.CreditCard) cardRow {
	return cardRow{
		UserID:     userID,
		Name:       c.Name,
		Bank:       c.Bank,
		LimitCents: c.Limit.Cents,
		DueDay:     c.DueDay,
		ClosingDay: c.ClosingDay,
	}
}

func (r *Repository) AddCard(_ context.Context, userID string, c core.CreditCard) (string, error) {
	row := toCardRow(userID, c)
	row.CreatedAt = r.stamp(c.CreatedAt)
	return r.insert(tableCards, row)
}

func (r *Repository) UpdateCard(_ context.Context, userID string, c core.CreditCard) error {
	return r.update(tableCards, userID, c.ID, toCardRow(userID, c))
}

func (r *Repository) DeleteCard(_ context.Context, userID, id string) error {
	return r.remove(tableCards, userID, id)
}

// Fixed expenses

func (r *Repository) ListFixedExpenses(_ context.Context, userID string) ([]core.FixedExpense, error) {
	var rows []fixedRow
	if err := r.list(tableFixedExpenses, userID, "day_of_month", &rows); err != nil {
		return nil, err
	}
	out := make([]core.FixedExpense, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.FixedExpense{
			ID:            row.ID,
			Description:   row.Description,
			Amount:        core.Money{Cents: row.AmountCents},
			Category:      core.ParseCategory(row.Category),
			PaymentMethod: core.ParsePaymentMethod(row.PaymentMethod),
			DayOfMonth:    row.DayOfMonth,
			Notes:         row.Notes,
			CreditCardID:  deref(row.CreditCardID),
			CreatedAt:     parseTime(row.CreatedAt),
		})
	}
	return out, nil
}

func toFixedRow(userID string, f core.FixedExpense) fixedRow {
	return fixedRow{
		UserID:        userID,
		Description:   f.Description,
		AmountCents:   f.Amount.Cents,
		Category:      string(f.Category),
		PaymentMethod: string(f.PaymentMethod),
		DayOfMonth:    f.DayOfMonth,
		Notes:         f.Notes,
		CreditCardID:  optional(f.CreditCardID),
	}
}

func (r *Repository) AddFixedExpense(_ context.Context, userID string, f core.FixedExpense) (string, error) {
	row := toFixedRow(userID, f)
	row.CreatedAt = r.stamp(f.CreatedAt)
	return r.insert(tableFixedExpenses, row)
}

func (r *Repository) UpdateFixedExpense(_ context.Context, userID string, f core.FixedExpense) error {
	return r.update(tableFixedExpenses, userID, f.ID, toFixedRow(userID, f))
}

func (r *Repository) DeleteFixedExpense(_ context.Context, userID, id string) error {
	return r.remove(tableFixedExpenses, userID, id)
}

// Users

func (r *Repository) CreateUser(_ context.Context, u core.User) (string, error) {
	return r.insert(tableUsers, userRow{
		ID:           u.ID,
		Email:        strings.ToLower(strings.TrimSpace(u.Email)),
		Name:         u.Name,
		Plan:         u.Plan,
		Provider:     u.Provider,
		PasswordHash: u.PasswordHash,
		CreatedAt:    r.stamp(u.CreatedAt),
	})
}

func (r *Repository) findUser(column, value string) (core.User, error) {
	data, _, err := r.client.From(tableUsers).
		Select("*", "", false).
		Eq(column, value).
		Limit(1, "").
		Execute()
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	var rows []userRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return core.User{}, fmt.Errorf("parse user: %w", err)
	}
	if len(rows) == 0 {
		return core.User{}, store.ErrNotFound
	}
	row := rows[0]
	return core.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		Plan:         row.Plan,
		Provider:     row.Provider,
		PasswordHash: row.PasswordHash,
		CreatedAt:    parseTime(row.CreatedAt),
	}, nil
}

func (r *Repository) GetUser(_ context.Context, id string) (core.User, error) {
	return r.findUser("id", id)
}

func (r *Repository) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	return r.findUser("email", strings.ToLower(strings.TrimSpace(email)))
}
