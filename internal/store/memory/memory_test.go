package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"financas/internal/core"
	"financas/internal/store"
)

func sampleTx() core.Transaction {
	return core.Transaction{
		Description:   "Mercado",
		Amount:        core.Money{Cents: 1234},
		Date:          core.NewDate(2024, time.March, 1),
		Category:      core.CategoryFood,
		Type:          core.Expense,
		PaymentMethod: core.PaymentPix,
	}
}

func TestTransactionsCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.AddTransaction(ctx, "u1", sampleTx())
	if err != nil || id == "" {
		t.Fatalf("unexpected add: id=%q err=%v", id, err)
	}

	list, _ := s.ListTransactions(ctx, "u1")
	if len(list) != 1 || list[0].ID != id || list[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected list: %+v", list)
	}
	created := list[0].CreatedAt

	upd := list[0]
	upd.Description = "Feira"
	upd.CreatedAt = time.Time{}
	if err := s.UpdateTransaction(ctx, "u1", upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, _ = s.ListTransactions(ctx, "u1")
	if list[0].Description != "Feira" || !list[0].CreatedAt.Equal(created) {
		t.Fatalf("update should keep createdAt: %+v", list[0])
	}

	if err := s.UpdateTransaction(ctx, "u1", core.Transaction{ID: "nope"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.DeleteTransaction(ctx, "u1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "u1", id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUserNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, _ := s.AddTransaction(ctx, "alice", sampleTx())
	_, _ = s.AddCard(ctx, "alice", core.CreditCard{Name: "Nubank", Limit: core.Money{Cents: 100}, DueDay: 1, ClosingDay: 1})

	if list, _ := s.ListTransactions(ctx, "bob"); len(list) != 0 {
		t.Fatalf("bob sees alice's transactions: %+v", list)
	}
	if cards, _ := s.ListCards(ctx, "bob"); len(cards) != 0 {
		t.Fatalf("bob sees alice's cards: %+v", cards)
	}
	if err := s.DeleteTransaction(ctx, "bob", id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("bob deleted alice's record: %v", err)
	}
}

func TestCardsAndFixedExpenses(t *testing.T) {
	ctx := context.Background()
	s := New()

	cid, err := s.AddCard(ctx, "u1", core.CreditCard{Name: "Inter", Limit: core.Money{Cents: 300000}, DueDay: 10, ClosingDay: 3})
	if err != nil {
		t.Fatalf("add card: %v", err)
	}
	fid, err := s.AddFixedExpense(ctx, "u1", core.FixedExpense{
		Description: "Netflix", Amount: core.Money{Cents: 3990}, Category: core.CategoryLeisure,
		PaymentMethod: core.PaymentCredit, CreditCardID: cid, DayOfMonth: 12,
	})
	if err != nil {
		t.Fatalf("add fixed: %v", err)
	}

	cards, _ := s.ListCards(ctx, "u1")
	cards[0].Name = "Banco Inter"
	if err := s.UpdateCard(ctx, "u1", cards[0]); err != nil {
		t.Fatalf("update card: %v", err)
	}
	fixed, _ := s.ListFixedExpenses(ctx, "u1")
	fixed[0].DayOfMonth = 15
	if err := s.UpdateFixedExpense(ctx, "u1", fixed[0]); err != nil {
		t.Fatalf("update fixed: %v", err)
	}

	cards, _ = s.ListCards(ctx, "u1")
	fixed, _ = s.ListFixedExpenses(ctx, "u1")
	if cards[0].Name != "Banco Inter" || fixed[0].DayOfMonth != 15 {
		t.Fatalf("updates not stored: %+v %+v", cards[0], fixed[0])
	}

	if err := s.DeleteFixedExpense(ctx, "u1", fid); err != nil {
		t.Fatalf("delete fixed: %v", err)
	}
	if err := s.DeleteCard(ctx, "u1", cid); err != nil {
		t.Fatalf("delete card: %v", err)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.CreateUser(ctx, core.User{Email: "Ana@Example.com", Plan: core.PlanFree})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateUser(ctx, core.User{Email: "ana@example.com", Plan: core.PlanFree}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	u, err := s.GetUserByEmail(ctx, " ana@EXAMPLE.com ")
	if err != nil || u.ID != id {
		t.Fatalf("lookup by email: %+v %v", u, err)
	}
	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
