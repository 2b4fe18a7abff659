// Package sqlite stores every collection in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"financas/internal/core"
	"financas/internal/store"
)

type Repository struct {
	db     *sql.DB
	now    func() time.Time
	schema uint
}

var _ store.Backend = (*Repository)(nil)

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps SQLITE_BUSY away.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, now: time.Now, schema: version}, nil
}

// SchemaVersion is the migration version the database was opened at.
func (r *Repository) SchemaVersion() uint {
	return r.schema
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const timeLayout = time.RFC3339Nano

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r *Repository) createdAt(t time.Time) string {
	if t.IsZero() {
		t = r.now()
	}
	return t.UTC().Format(timeLayout)
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// Transactions

const txColumns = `id, description, amount_cents, date, category, notes, type, payment_method, credit_card_id, created_at`

func scanTransaction(sc interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t                                core.Transaction
		date, category, typ, method, ts string
		card                             sql.NullString
	)
	if err := sc.Scan(&t.ID, &t.Description, &t.Amount.Cents, &date, &category, &t.Notes, &typ, &method, &card, &ts); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date = d
	t.Category = core.ParseCategory(category)
	t.Type = core.ParseTxType(typ)
	t.PaymentMethod = core.ParsePaymentMethod(method)
	t.CreditCardID = card.String
	t.CreatedAt = parseTime(ts)
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) AddTransaction(ctx context.Context, userID string, t core.Transaction) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, description, amount_cents, date, category, notes, type, payment_method, credit_card_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, t.Description, t.Amount.Cents, t.Date.String(), string(t.Category), t.Notes,
		string(t.Type), string(t.PaymentMethod), nullable(t.CreditCardID), r.createdAt(t.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite", "id", id, "user_id", userID, "amount_cents", t.Amount.Cents)
	return id, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, userID string, t core.Transaction) error {
	err := affected(r.db.ExecContext(ctx,
		`UPDATE transactions SET description = ?, amount_cents = ?, date = ?, category = ?, notes = ?,
		        type = ?, payment_method = ?, credit_card_id = ?
		 WHERE id = ? AND user_id = ?`,
		t.Description, t.Amount.Cents, t.Date.String(), string(t.Category), t.Notes,
		string(t.Type), string(t.PaymentMethod), nullable(t.CreditCardID), t.ID, userID))
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id string) error {
	err := affected(r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// Credit cards

func (r *Repository) ListCards(ctx context.Context, userID string) ([]core.CreditCard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, bank, limit_cents, due_day, closing_day, created_at
		 FROM credit_cards WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []core.CreditCard
	for rows.Next() {
		var (
			c  core.CreditCard
			ts string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Bank, &c.Limit.Cents, &c.DueDay, &c.ClosingDay, &ts); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		c.CreatedAt = parseTime(ts)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) AddCard(ctx context.Context, userID string, c core.CreditCard) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credit_cards (id, user_id, name, bank, limit_cents, due_day, closing_day, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, c.Name, c.Bank, c.Limit.Cents, c.DueDay, c.ClosingDay, r.createdAt(c.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("create card: %w", err)
	}
	return id, nil
}

func (r *Repository) UpdateCard(ctx context.Context, userID string, c core.CreditCard) error {
	err := affected(r.db.ExecContext(ctx,
		`UPDATE credit_cards SET name = ?, bank = ?, limit_cents = ?, due_day = ?, closing_day = ?
		 WHERE id = ? AND user_id = ?`,
		c.Name, c.Bank, c.Limit.Cents, c.DueDay, c.ClosingDay, c.ID, userID))
	if err != nil {
		return fmt.Errorf("update card %s: %w", c.ID, err)
	}
	return nil
}

func (r *Repository) DeleteCard(ctx context.Context, userID, id string) error {
	err := affected(r.db.ExecContext(ctx, `DELETE FROM credit_cards WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return fmt.Errorf("delete card %s: %w", id, err)
	}
	return nil
}

// Fixed expenses

func (r *Repository) ListFixedExpenses(ctx context.Context, userID string) ([]core.FixedExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount_cents, category, payment_method, day_of_month, notes, credit_card_id, created_at
		 FROM fixed_expenses WHERE user_id = ? ORDER BY day_of_month, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list fixed expenses: %w", err)
	}
	defer rows.Close()

	var out []core.FixedExpense
	for rows.Next() {
		var (
			f                    core.FixedExpense
			category, method, ts string
			card                 sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Description, &f.Amount.Cents, &category, &method, &f.DayOfMonth, &f.Notes, &card, &ts); err != nil {
			return nil, fmt.Errorf("scan fixed expense: %w", err)
		}
		f.Category = core.ParseCategory(category)
		f.PaymentMethod = core.ParsePaymentMethod(method)
		f.CreditCardID = card.String
		f.CreatedAt = parseTime(ts)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repository) AddFixedExpense(ctx context.Context, userID string, f core.FixedExpense) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fixed_expenses (id, user_id, description, amount_cents, category, payment_method, day_of_month, notes, credit_card_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, f.Description, f.Amount.Cents, string(f.Category), string(f.PaymentMethod),
		f.DayOfMonth, f.Notes, nullable(f.CreditCardID), r.createdAt(f.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("create fixed expense: %w", err)
	}
	return id, nil
}

func (r *Repository) UpdateFixedExpense(ctx context.Context, userID string, f core.FixedExpense) error {
	err := affected(r.db.ExecContext(ctx,
		`UPDATE fixed_expenses SET description = ?, amount_cents = ?, category = ?, payment_method = ?,
		        day_of_month = ?, notes = ?, credit_card_id = ?
		 WHERE id = ? AND user_id = ?`,
		f.Description, f.Amount.Cents, string(f.Category), string(f.PaymentMethod),
		f.DayOfMonth, f.Notes, nullable(f.CreditCardID), f.ID, userID))
	if err != nil {
		return fmt.Errorf("update fixed expense %s: %w", f.ID, err)
	}
	return nil
}

func (r *Repository) DeleteFixedExpense(ctx context.Context, userID, id string) error {
	err := affected(r.db.ExecContext(ctx, `DELETE FROM fixed_expenses WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return fmt.Errorf("delete fixed expense %s: %w", id, err)
	}
	return nil
}

// Users

func (r *Repository) CreateUser(ctx context.Context, u core.User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, plan, provider, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, strings.TrimSpace(u.Email), u.Name, u.Plan, u.Provider, u.PasswordHash, r.createdAt(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrConflict
		}
		return "", fmt.Errorf("create user: %w", err)
	}
	return u.ID, nil
}

func (r *Repository) getUser(ctx context.Context, where string, arg string) (core.User, error) {
	var (
		u  core.User
		ts string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, plan, provider, password_hash, created_at FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.Plan, &u.Provider, &u.PasswordHash, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = parseTime(ts)
	return u, nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (core.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUser(ctx, "email = ?", strings.TrimSpace(email))
}
