package finance

import (
	"sort"

	"financas/internal/core"
)

// Summary holds the totals of a month.
type Summary struct {
	Period  Period
	Income  core.Money
	Expense core.Money
	Balance core.Money
}

// CategoryShare is one slice of the expense breakdown.
type CategoryShare struct {
	Category core.Category
	Amount   core.Money
	Percent  float64
}

// CardUsage is the spend on one card inside a month.
type CardUsage struct {
	Card    core.CreditCard
	Used    core.Money
	Percent float64
}

// MonthTransactions returns the transactions dated inside p, preserving
// input order.
func MonthTransactions(txs []core.Transaction, p Period) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if p.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}

// Partition splits txs by type.
func Partition(txs []core.Transaction) (income, expense []core.Transaction) {
	for _, t := range txs {
		if t.IsIncome() {
			income = append(income, t)
		} else {
			expense = append(expense, t)
		}
	}
	return income, expense
}

// Total sums amounts in input order.
func Total(txs []core.Transaction) core.Money {
	var sum core.Money
	for _, t := range txs {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// Summarize computes income, expense and balance for p.
func Summarize(txs []core.Transaction, p Period) Summary {
	income, expense := Partition(MonthTransactions(txs, p))
	in := Total(income)
	out := Total(expense)
	return Summary{Period: p, Income: in, Expense: out, Balance: in.Sub(out)}
}

// CategoryBreakdown groups expenses by category, largest first. Ties keep
// the order in which categories first appear. With a zero total every
// percentage is 0.
func CategoryBreakdown(expenses []core.Transaction) []CategoryShare {
	var order []core.Category
	sums := make(map[core.Category]core.Money)
	var total core.Money
	for _, t := range expenses {
		if _, seen := sums[t.Category]; !seen {
			order = append(order, t.Category)
		}
		sums[t.Category] = sums[t.Category].Add(t.Amount)
		total = total.Add(t.Amount)
	}

	shares := make([]CategoryShare, 0, len(order))
	for _, c := range order {
		shares = append(shares, CategoryShare{
			Category: c,
			Amount:   sums[c],
			Percent:  percentOf(sums[c], total),
		})
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Amount.Cents > shares[j].Amount.Cents
	})
	return shares
}

// MonthCategoryBreakdown is CategoryBreakdown over the expenses of p.
func MonthCategoryBreakdown(txs []core.Transaction, p Period) []CategoryShare {
	_, expense := Partition(MonthTransactions(txs, p))
	return CategoryBreakdown(expense)
}

// CardSpend sums credit expenses charged to card within p. Usage percent is
// uncapped and 0 when the card has no limit.
func CardSpend(txs []core.Transaction, card core.CreditCard, p Period) CardUsage {
	var used core.Money
	for _, t := range txs {
		if t.Type != core.Expense || t.PaymentMethod != core.PaymentCredit {
			continue
		}
		if t.CreditCardID != card.ID || !p.Contains(t.Date) {
			continue
		}
		used = used.Add(t.Amount)
	}
	return CardUsage{Card: card, Used: used, Percent: percentOf(used, card.Limit)}
}

// CardsSpend applies CardSpend to every card, keeping card order.
func CardsSpend(txs []core.Transaction, cards []core.CreditCard, p Period) []CardUsage {
	out := make([]CardUsage, 0, len(cards))
	for _, c := range cards {
		out = append(out, CardSpend(txs, c, p))
	}
	return out
}

// FixedExpenseTotal sums the monthly obligations.
func FixedExpenseTotal(fixed []core.FixedExpense) core.Money {
	var sum core.Money
	for _, f := range fixed {
		sum = sum.Add(f.Amount)
	}
	return sum
}

func percentOf(part, whole core.Money) float64 {
	if whole.Cents <= 0 {
		return 0
	}
	return float64(part.Cents) / float64(whole.Cents) * 100
}
