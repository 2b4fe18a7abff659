// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents everywhere; decimal strings are only
// produced at the edges (forms, CSV, spreadsheets).
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money is an amount in centavos.
type Money struct {
	Cents int64
}

var brlPrinter = message.NewPrinter(language.BrazilianPortuguese)

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. When both
// appear, the rightmost one is the decimal separator and the other is treated
// as a thousands separator ("1.234,56" -> 123456).
// Returns ErrInvalidAmount for invalid formats, negative values or zero.
//
// Examples:
//
//	ParseDecimalToCents("12.34")    -> 1234, nil
//	ParseDecimalToCents("12,34")    -> 1234, nil
//	ParseDecimalToCents("12.345")   -> 1235, nil
//	ParseDecimalToCents("1.234,56") -> 123456, nil
func ParseDecimalToCents(s string) (int64, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// ParseDecimal parses a decimal number written with either separator.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = NormalizeDecimalSeparators(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromString(s)
}

// NormalizeDecimalSeparators rewrites s so that '.' is the only decimal
// separator and thousands separators are removed.
func NormalizeDecimalSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma < 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", "")
		}
		return s
	case lastDot < 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	default:
		return strings.ReplaceAll(s, ",", "")
	}
}

// MoneyFromDecimal rounds d half-up to cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// Decimal returns the amount as a decimal with two places.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the amount in reais for charts and percentages.
// Use cents for arithmetic.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount as a plain decimal ("150.50"), the form used
// in CSV files and spreadsheet cells.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// FormatBRL renders the amount for display, e.g. "R$ 1.234,56".
func (m Money) FormatBRL() string {
	sign := ""
	cents := m.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%sR$ %s", sign, brlPrinter.Sprintf("%.2f", float64(cents)/100.0))
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) IsZero() bool { return m.Cents == 0 }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
