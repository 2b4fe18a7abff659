package finance

import (
	"sort"

	"financas/internal/core"
)

// TrendMonths is the length of the trend window.
const TrendMonths = 6

// MonthSummary is one point of the trend.
type MonthSummary struct {
	Period  Period
	Label   string
	Income  core.Money
	Expense core.Money
	Balance core.Money
}

// BalancePoint is the running balance at the end of a day.
type BalancePoint struct {
	Day     core.Date
	Label   string
	Balance core.Money
}

// SixMonthTrend returns the six months ending at p, oldest first.
func SixMonthTrend(txs []core.Transaction, p Period) []MonthSummary {
	out := make([]MonthSummary, 0, TrendMonths)
	for i := TrendMonths - 1; i >= 0; i-- {
		m := p.AddMonths(-i)
		s := Summarize(txs, m)
		out = append(out, MonthSummary{
			Period:  m,
			Label:   m.ShortLabel(),
			Income:  s.Income,
			Expense: s.Expense,
			Balance: s.Balance,
		})
	}
	return out
}

// BalanceHistory accumulates the daily net of p in date order. Only days
// with at least one transaction produce a point.
func BalanceHistory(txs []core.Transaction, p Period) []BalancePoint {
	month := MonthTransactions(txs, p)
	if len(month) == 0 {
		return nil
	}

	net := make(map[core.Date]int64)
	var days []core.Date
	for _, t := range month {
		day := core.DateOf(t.Date.Time)
		if _, seen := net[day]; !seen {
			days = append(days, day)
		}
		if t.IsIncome() {
			net[day] += t.Amount.Cents
		} else {
			net[day] -= t.Amount.Cents
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j].Time) })

	points := make([]BalancePoint, 0, len(days))
	var running int64
	for _, d := range days {
		running += net[d]
		points = append(points, BalancePoint{
			Day:     d,
			Label:   d.Short(),
			Balance: core.Money{Cents: running},
		})
	}
	return points
}
