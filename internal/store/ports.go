// Package store defines the data-access ports. Every record lives under the
// namespace of exactly one user; implementations never return another
// user's records.
package store

import (
	"context"
	"errors"

	"financas/internal/core"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type (
	// Transactions is the per-user transaction collection.
	//
	// Add ignores the record's ID and returns the one assigned by storage.
	// Update replaces every field of the stored record except ID and
	// CreatedAt and returns ErrNotFound when the id is unknown.
	Transactions interface {
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		AddTransaction(ctx context.Context, userID string, t core.Transaction) (string, error)
		UpdateTransaction(ctx context.Context, userID string, t core.Transaction) error
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	CreditCards interface {
		ListCards(ctx context.Context, userID string) ([]core.CreditCard, error)
		AddCard(ctx context.Context, userID string, c core.CreditCard) (string, error)
		UpdateCard(ctx context.Context, userID string, c core.CreditCard) error
		DeleteCard(ctx context.Context, userID, id string) error
	}

	FixedExpenses interface {
		ListFixedExpenses(ctx context.Context, userID string) ([]core.FixedExpense, error)
		AddFixedExpense(ctx context.Context, userID string, f core.FixedExpense) (string, error)
		UpdateFixedExpense(ctx context.Context, userID string, f core.FixedExpense) error
		DeleteFixedExpense(ctx context.Context, userID, id string) error
	}

	// Users stores profiles. CreateUser returns ErrConflict for a taken email.
	Users interface {
		CreateUser(ctx context.Context, u core.User) (string, error)
		GetUser(ctx context.Context, id string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
	}

	// Ledger groups the three user collections.
	Ledger interface {
		Transactions
		CreditCards
		FixedExpenses
	}

	// Backend is everything the web application needs from storage.
	Backend interface {
		Ledger
		Users
		Ping(ctx context.Context) error
		Close() error
	}
)
