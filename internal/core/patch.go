package core

// Patches carry the fields of an update. A nil field keeps the stored value.
// Apply never touches ID or CreatedAt.

type TransactionPatch struct {
	Description   *string
	Amount        *Money
	Date          *Date
	Category      *Category
	Notes         *string
	Type          *TxType
	PaymentMethod *PaymentMethod
	CreditCardID  *string
}

func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.PaymentMethod != nil {
		t.PaymentMethod = *p.PaymentMethod
		if *p.PaymentMethod != PaymentCredit && p.CreditCardID == nil {
			t.CreditCardID = ""
		}
	}
	if p.CreditCardID != nil {
		t.CreditCardID = *p.CreditCardID
	}
	return t
}

type CardPatch struct {
	Name       *string
	Bank       *string
	Limit      *Money
	DueDay     *int
	ClosingDay *int
}

func (p CardPatch) Apply(c CreditCard) CreditCard {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Bank != nil {
		c.Bank = *p.Bank
	}
	if p.Limit != nil {
		c.Limit = *p.Limit
	}
	if p.DueDay != nil {
		c.DueDay = *p.DueDay
	}
	if p.ClosingDay != nil {
		c.ClosingDay = *p.ClosingDay
	}
	return c
}

type FixedExpensePatch struct {
	Description   *string
	Amount        *Money
	Category      *Category
	PaymentMethod *PaymentMethod
	DayOfMonth    *int
	Notes         *string
	CreditCardID  *string
}

func (p FixedExpensePatch) Apply(f FixedExpense) FixedExpense {
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.Amount != nil {
		f.Amount = *p.Amount
	}
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.PaymentMethod != nil {
		f.PaymentMethod = *p.PaymentMethod
		if *p.PaymentMethod != PaymentCredit && p.CreditCardID == nil {
			f.CreditCardID = ""
		}
	}
	if p.DayOfMonth != nil {
		f.DayOfMonth = *p.DayOfMonth
	}
	if p.Notes != nil {
		f.Notes = *p.Notes
	}
	if p.CreditCardID != nil {
		f.CreditCardID = *p.CreditCardID
	}
	return f
}
