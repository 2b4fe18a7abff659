// Package finance derives monthly summaries, category breakdowns, card usage,
// trends and balance history from a user's transactions. Every function is
// pure: the displayed month travels as an explicit Period value.
package finance

import (
	"fmt"
	"time"

	"financas/internal/core"
)

var shortMonths = [...]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"}

var longMonths = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// NewPeriod validates month and returns the period.
func NewPeriod(year int, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d core.Date) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

// AddMonths steps n months forward (or backward for negative n), carrying
// across year boundaries.
func (p Period) AddMonths(n int) Period {
	idx := p.Year*12 + int(p.Month-1) + n
	year := idx / 12
	month := idx % 12
	if month < 0 {
		month += 12
		year--
	}
	return Period{Year: year, Month: time.Month(month + 1)}
}

func (p Period) Prev() Period { return p.AddMonths(-1) }

func (p Period) Next() Period { return p.AddMonths(1) }

// Start is the first day of the month.
func (p Period) Start() core.Date {
	return core.NewDate(p.Year, p.Month, 1)
}

// End is the last day of the month.
func (p Period) End() core.Date {
	return core.NewDate(p.Year, p.Month+1, 0)
}

// ShortLabel returns the abbreviated month name, e.g. "Mar".
func (p Period) ShortLabel() string {
	return shortMonths[p.Month-1]
}

// Label returns e.g. "Março 2024".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", longMonths[p.Month-1], p.Year)
}

// Key returns e.g. "2024-03".
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
