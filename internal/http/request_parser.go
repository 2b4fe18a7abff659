// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// the period selector shared by every monthly view, the record forms, and a
// body parser that accepts both form-encoded and JSON submissions.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"financas/internal/core"
	"financas/internal/finance"
)

const (
	// maxFormBytes bounds url-encoded and JSON bodies.
	maxFormBytes = 64 << 10
	// maxGridBytes bounds a whole spreadsheet of rows.
	maxGridBytes = 1 << 20
)

var errBodyTooLarge = errors.New("request body too large")

// ParsePeriod reads ?year=&month=, falling back to the month of now for
// missing or out-of-range values.
func ParsePeriod(query url.Values, now time.Time) finance.Period {
	p := finance.PeriodOf(now)

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y >= 1900 && y <= 9999 {
			p.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			p.Month = time.Month(m)
		}
	}
	return p
}

// RequestBodyParser reads a body once and serves values from it whether it
// was sent as JSON or as a form.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	return newBodyParser(r, maxFormBytes)
}

// newBodyParser reads one byte past limit so an oversized body is reported
// instead of being cut short.
func newBodyParser(r *http.Request, limit int64) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, limit+1))
	if p.err == nil && int64(len(p.body)) > limit {
		p.body, p.err = nil, errBodyTooLarge
	}
	return p
}

func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Has reports whether key was submitted at all, even empty.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	_, ok := p.formData[key]
	return ok
}

func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Values returns every value of a repeated field.
func (p *RequestBodyParser) Values(key string) []string {
	var raw []string
	if p.jsonData != nil {
		switch v := p.jsonData[key].(type) {
		case []interface{}:
			for _, item := range v {
				raw = append(raw, stringValue(item))
			}
		case nil:
		default:
			raw = []string{stringValue(v)}
		}
	} else if p.formData != nil {
		raw = p.formData[key]
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(sanitizeInput(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseBody parses r and answers 400 on malformed input.
func ParseBody(r *http.Request) (*RequestBodyParser, *HTMXResponseBuilder) {
	return parseBody(newBodyParser(r, maxFormBytes))
}

// ParseGridBody is ParseBody for spreadsheet submissions.
func ParseGridBody(r *http.Request) (*RequestBodyParser, *HTMXResponseBuilder) {
	return parseBody(newBodyParser(r, maxGridBytes))
}

func parseBody(p *RequestBodyParser) (*RequestBodyParser, *HTMXResponseBuilder) {
	if err := p.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return nil, ErrorResponse(http.StatusRequestEntityTooLarge, "Dados demais em um único envio. Divida as alterações.")
		}
		return nil, BadRequestError("Formato de requisição inválido.")
	}
	return p, nil
}

func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

func parseDay(s string) (int, error) {
	d, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, core.ErrInvalidDay
	}
	return d, nil
}

// cardFor keeps the card only for credit payments; the form leaves the
// selector filled in when the method changes.
func cardFor(method core.PaymentMethod, cardID string) string {
	if method != core.PaymentCredit {
		return ""
	}
	return cardID
}

// TransactionFromForm builds a new transaction. Validation of the record
// itself is left to the ledger.
func TransactionFromForm(p *RequestBodyParser) (core.Transaction, error) {
	amount, err := parseAmount(p.Get("amount"))
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return core.Transaction{}, err
	}
	method := core.PaymentMethod(p.Get("payment_method"))
	return core.Transaction{
		Description:   p.Get("description"),
		Amount:        amount,
		Date:          date,
		Category:      core.Category(p.Get("category")),
		Notes:         p.Get("notes"),
		Type:          core.TxType(p.Get("type")),
		PaymentMethod: method,
		CreditCardID:  cardFor(method, p.Get("credit_card_id")),
	}, nil
}

// TransactionPatchFromForm only touches submitted fields.
func TransactionPatchFromForm(p *RequestBodyParser) (core.TransactionPatch, error) {
	var patch core.TransactionPatch
	if p.Has("description") {
		v := p.Get("description")
		patch.Description = &v
	}
	if p.Has("amount") {
		m, err := parseAmount(p.Get("amount"))
		if err != nil {
			return patch, err
		}
		patch.Amount = &m
	}
	if p.Has("date") {
		d, err := core.ParseDate(p.Get("date"))
		if err != nil {
			return patch, err
		}
		patch.Date = &d
	}
	if p.Has("category") {
		c := core.Category(p.Get("category"))
		patch.Category = &c
	}
	if p.Has("notes") {
		v := p.Get("notes")
		patch.Notes = &v
	}
	if p.Has("type") {
		t := core.TxType(p.Get("type"))
		patch.Type = &t
	}
	if p.Has("payment_method") {
		m := core.PaymentMethod(p.Get("payment_method"))
		patch.PaymentMethod = &m
		card := cardFor(m, p.Get("credit_card_id"))
		patch.CreditCardID = &card
	} else if p.Has("credit_card_id") {
		card := p.Get("credit_card_id")
		patch.CreditCardID = &card
	}
	return patch, nil
}

func CardFromForm(p *RequestBodyParser) (core.CreditCard, error) {
	limit, err := parseAmount(p.Get("limit"))
	if err != nil {
		return core.CreditCard{}, err
	}
	due, err := parseDay(p.Get("due_day"))
	if err != nil {
		return core.CreditCard{}, err
	}
	closing, err := parseDay(p.Get("closing_day"))
	if err != nil {
		return core.CreditCard{}, err
	}
	return core.CreditCard{
		Name:       p.Get("name"),
		Bank:       p.Get("bank"),
		Limit:      limit,
		DueDay:     due,
		ClosingDay: closing,
	}, nil
}

func CardPatchFromForm(p *RequestBodyParser) (core.CardPatch, error) {
	var patch core.CardPatch
	if p.Has("name") {
		v := p.Get("name")
		patch.Name = &v
	}
	if p.Has("bank") {
		v := p.Get("bank")
		patch.Bank = &v
	}
	if p.Has("limit") {
		m, err := parseAmount(p.Get("limit"))
		if err != nil {
			return patch, err
		}
		patch.Limit = &m
	}
	if p.Has("due_day") {
		d, err := parseDay(p.Get("due_day"))
		if err != nil {
			return patch, err
		}
		patch.DueDay = &d
	}
	if p.Has("closing_day") {
		d, err := parseDay(p.Get("closing_day"))
		if err != nil {
			return patch, err
		}
		patch.ClosingDay = &d
	}
	return patch, nil
}

func FixedExpenseFromForm(p *RequestBodyParser) (core.FixedExpense, error) {
	amount, err := parseAmount(p.Get("amount"))
	if err != nil {
		return core.FixedExpense{}, err
	}
	day, err := parseDay(p.Get("day_of_month"))
	if err != nil {
		return core.FixedExpense{}, err
	}
	method := core.PaymentMethod(p.Get("payment_method"))
	return core.FixedExpense{
		Description:   p.Get("description"),
		Amount:        amount,
		Category:      core.Category(p.Get("category")),
		PaymentMethod: method,
		DayOfMonth:    day,
		Notes:         p.Get("notes"),
		CreditCardID:  cardFor(method, p.Get("credit_card_id")),
	}, nil
}

func FixedExpensePatchFromForm(p *RequestBodyParser) (core.FixedExpensePatch, error) {
	var patch core.FixedExpensePatch
	if p.Has("description") {
		v := p.Get("description")
		patch.Description = &v
	}
	if p.Has("amount") {
		m, err := parseAmount(p.Get("amount"))
		if err != nil {
			return patch, err
		}
		patch.Amount = &m
	}
	if p.Has("category") {
		c := core.Category(p.Get("category"))
		patch.Category = &c
	}
	if p.Has("day_of_month") {
		d, err := parseDay(p.Get("day_of_month"))
		if err != nil {
			return patch, err
		}
		patch.DayOfMonth = &d
	}
	if p.Has("notes") {
		v := p.Get("notes")
		patch.Notes = &v
	}
	if p.Has("payment_method") {
		m := core.PaymentMethod(p.Get("payment_method"))
		patch.PaymentMethod = &m
		card := cardFor(m, p.Get("credit_card_id"))
		patch.CreditCardID = &card
	} else if p.Has("credit_card_id") {
		card := p.Get("credit_card_id")
		patch.CreditCardID = &card
	}
	return patch, nil
}
