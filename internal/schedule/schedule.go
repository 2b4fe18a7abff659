// Package schedule computes due dates of monthly obligations: fixed
// expenses and credit card closing/due days.
package schedule

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"financas/internal/core"
)

// monthlyRule fires once a month on day, or on the month's last day when
// the month is shorter. Days 29-31 expand to 28..day and keep the last match.
func monthlyRule(day int, start time.Time) (*rrule.RRule, error) {
	if day < 1 || day > 31 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidDay, day)
	}
	opt := rrule.ROption{
		Freq:     rrule.MONTHLY,
		Interval: 1,
		Dtstart:  start,
	}
	if day <= 28 {
		opt.Bymonthday = []int{day}
	} else {
		for d := 28; d <= day; d++ {
			opt.Bymonthday = append(opt.Bymonthday, d)
		}
		opt.Bysetpos = []int{-1}
	}
	return rrule.NewRRule(opt)
}

// NextDue returns the first date on or after from whose day of month is
// day, clamped to the month's last day.
func NextDue(day int, from core.Date) (core.Date, error) {
	start := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	rule, err := monthlyRule(day, start)
	if err != nil {
		return core.Date{}, err
	}
	next := rule.After(from.Time, true)
	if next.IsZero() {
		return core.Date{}, fmt.Errorf("no occurrence of day %d after %s", day, from)
	}
	return core.DateOf(next), nil
}

// DueIn returns the day-of-month date inside the given month, clamped.
func DueIn(day int, year int, month time.Month) (core.Date, error) {
	return NextDue(day, core.NewDate(year, month, 1))
}

// Occurrence is a fixed expense paired with its next due date.
type Occurrence struct {
	Expense  core.FixedExpense
	Due      core.Date
	DaysLeft int
}

// Upcoming lists the fixed expenses due within days of from (inclusive),
// soonest first. Expenses with an invalid day are skipped.
func Upcoming(fixed []core.FixedExpense, from core.Date, days int) []Occurrence {
	limit := from.AddDate(0, 0, days)
	var out []Occurrence
	for _, f := range fixed {
		due, err := NextDue(f.DayOfMonth, from)
		if err != nil || due.After(limit) {
			continue
		}
		out = append(out, Occurrence{
			Expense:  f,
			Due:      due,
			DaysLeft: daysBetween(from, due),
		})
	}
	slices.SortStableFunc(out, func(a, b Occurrence) int {
		if c := a.Due.Compare(b.Due.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.Expense.Description, b.Expense.Description)
	})
	return out
}

// CardCycle is the billing cycle of a card as seen from a given day.
type CardCycle struct {
	Card    core.CreditCard
	Closing core.Date
	Due     core.Date
}

// NextCycle returns the next closing date on or after from and the first due
// date after that closing.
func NextCycle(card core.CreditCard, from core.Date) (CardCycle, error) {
	closing, err := NextDue(card.ClosingDay, from)
	if err != nil {
		return CardCycle{}, fmt.Errorf("closing day: %w", err)
	}
	due, err := NextDue(card.DueDay, core.DateOf(closing.AddDate(0, 0, 1)))
	if err != nil {
		return CardCycle{}, fmt.Errorf("due day: %w", err)
	}
	return CardCycle{Card: card, Closing: closing, Due: due}, nil
}

// Cycles computes NextCycle for every card, skipping invalid ones.
func Cycles(cards []core.CreditCard, from core.Date) []CardCycle {
	out := make([]CardCycle, 0, len(cards))
	for _, c := range cards {
		if cycle, err := NextCycle(c, from); err == nil {
			out = append(out, cycle)
		}
	}
	return out
}

func daysBetween(a, b core.Date) int {
	return int(b.Sub(a.Time).Hours() / 24)
}
