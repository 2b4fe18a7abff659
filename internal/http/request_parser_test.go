package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financas/internal/core"
)

func TestParsePeriod(t *testing.T) {
	now := time.Date(2024, time.May, 20, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth time.Month
	}{
		{"explicit", url.Values{"year": {"2023"}, "month": {"12"}}, 2023, time.December},
		{"missing uses now", url.Values{}, 2024, time.May},
		{"month only", url.Values{"month": {"2"}}, 2024, time.February},
		{"month out of range", url.Values{"year": {"2022"}, "month": {"13"}}, 2022, time.May},
		{"zero month", url.Values{"month": {"0"}}, 2024, time.May},
		{"year out of range", url.Values{"year": {"10000"}, "month": {"1"}}, 2024, time.January},
		{"garbage", url.Values{"year": {"abc"}, "month": {"x"}}, 2024, time.May},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePeriod(tt.query, now)
			assert.Equal(t, tt.wantYear, p.Year)
			assert.Equal(t, tt.wantMonth, p.Month)
		})
	}
}

func newFormRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func newJSONRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestRequestBodyParser_Form(t *testing.T) {
	p, errResp := ParseBody(newFormRequest("description=++Mercado++&notes=&keep=a&keep=b&keep=&bad=x%01y"))
	require.Nil(t, errResp)

	assert.False(t, p.IsJSON())
	assert.Equal(t, "Mercado", p.Get("description"))
	assert.True(t, p.Has("notes"))
	assert.False(t, p.Has("amount"))
	assert.Equal(t, []string{"a", "b"}, p.Values("keep"))
	assert.Equal(t, "xy", p.Get("bad"))
}

func TestRequestBodyParser_JSON(t *testing.T) {
	p, errResp := ParseBody(newJSONRequest(`{"amount": 12.5, "description": "Aluguel", "keep": ["x", "y"], "flag": true}`))
	require.Nil(t, errResp)

	assert.True(t, p.IsJSON())
	assert.Equal(t, "12.5", p.Get("amount"))
	assert.Equal(t, "Aluguel", p.Get("description"))
	assert.Equal(t, "true", p.Get("flag"))
	assert.Equal(t, []string{"x", "y"}, p.Values("keep"))
	assert.Empty(t, p.Get("missing"))
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	_, errResp := ParseBody(newJSONRequest(`{"amount":`))
	require.NotNil(t, errResp)

	w := httptest.NewRecorder()
	errResp.Write(w)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	big := "notes=" + strings.Repeat("a", maxFormBytes)

	_, errResp := ParseBody(newFormRequest(big))
	require.NotNil(t, errResp)
	w := httptest.NewRecorder()
	errResp.Write(w)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	p, errResp := ParseGridBody(newFormRequest(big))
	require.Nil(t, errResp)
	assert.Len(t, p.Get("notes"), maxFormBytes)

	_, errResp = ParseGridBody(newFormRequest("notes=" + strings.Repeat("a", maxGridBytes)))
	assert.NotNil(t, errResp)
}

func TestTransactionFromForm(t *testing.T) {
	p, _ := ParseBody(newFormRequest(url.Values{
		"description":    {"Supermercado"},
		"amount":         {"1.234,56"},
		"date":           {"2024-03-15"},
		"category":       {"alimentacao"},
		"type":           {"expense"},
		"payment_method": {"credit"},
		"credit_card_id": {"card-1"},
		"notes":          {"semana"},
	}.Encode()))

	tx, err := TransactionFromForm(p)
	require.NoError(t, err)
	assert.Equal(t, "Supermercado", tx.Description)
	assert.Equal(t, int64(123456), tx.Amount.Cents)
	assert.Equal(t, "2024-03-15", tx.Date.String())
	assert.Equal(t, core.CategoryFood, tx.Category)
	assert.Equal(t, core.Expense, tx.Type)
	assert.Equal(t, core.PaymentCredit, tx.PaymentMethod)
	assert.Equal(t, "card-1", tx.CreditCardID)
	assert.Equal(t, "semana", tx.Notes)
}

func TestTransactionFromForm_DropsCardForOtherMethods(t *testing.T) {
	p, _ := ParseBody(newFormRequest("description=Pao&amount=5&date=2024-03-15&type=expense&category=alimentacao&payment_method=pix&credit_card_id=card-1"))

	tx, err := TransactionFromForm(p)
	require.NoError(t, err)
	assert.Empty(t, tx.CreditCardID)
}

func TestTransactionFromForm_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"zero amount", "amount=0&date=2024-01-01", core.ErrInvalidAmount},
		{"negative amount", "amount=-3&date=2024-01-01", core.ErrInvalidAmount},
		{"missing amount", "date=2024-01-01", core.ErrInvalidAmount},
		{"bad date", "amount=10&date=15/01/2024", core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := ParseBody(newFormRequest(tt.body))
			_, err := TransactionFromForm(p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTransactionPatchFromForm(t *testing.T) {
	p, _ := ParseBody(newFormRequest("amount=42,10&payment_method=debit&credit_card_id=card-1"))

	patch, err := TransactionPatchFromForm(p)
	require.NoError(t, err)

	require.NotNil(t, patch.Amount)
	assert.Equal(t, int64(4210), patch.Amount.Cents)
	require.NotNil(t, patch.PaymentMethod)
	assert.Equal(t, core.PaymentDebit, *patch.PaymentMethod)
	require.NotNil(t, patch.CreditCardID)
	assert.Empty(t, *patch.CreditCardID, "a non-credit method clears the card")
	assert.Nil(t, patch.Description)
	assert.Nil(t, patch.Date)
	assert.Nil(t, patch.Type)
}

func TestCardForms(t *testing.T) {
	p, _ := ParseBody(newFormRequest("name=Nubank&bank=Nu&limit=5000&due_day=10&closing_day=3"))
	card, err := CardFromForm(p)
	require.NoError(t, err)
	assert.Equal(t, core.CreditCard{Name: "Nubank", Bank: "Nu", Limit: core.Money{Cents: 500000}, DueDay: 10, ClosingDay: 3}, card)

	p, _ = ParseBody(newFormRequest("due_day=abc"))
	_, err = CardFromForm(p)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	p, _ = ParseBody(newFormRequest("limit=100&due_day=abc&closing_day=1"))
	_, err = CardFromForm(p)
	assert.ErrorIs(t, err, core.ErrInvalidDay)

	p, _ = ParseBody(newFormRequest("closing_day=28"))
	patch, err := CardPatchFromForm(p)
	require.NoError(t, err)
	require.NotNil(t, patch.ClosingDay)
	assert.Equal(t, 28, *patch.ClosingDay)
	assert.Nil(t, patch.Name)
	assert.Nil(t, patch.Limit)
}

func TestFixedExpenseForms(t *testing.T) {
	p, _ := ParseBody(newFormRequest("description=Aluguel&amount=1500&category=moradia&payment_method=transfer&day_of_month=5"))
	f, err := FixedExpenseFromForm(p)
	require.NoError(t, err)
	assert.Equal(t, "Aluguel", f.Description)
	assert.Equal(t, int64(150000), f.Amount.Cents)
	assert.Equal(t, core.CategoryHousing, f.Category)
	assert.Equal(t, 5, f.DayOfMonth)

	p, _ = ParseBody(newFormRequest("amount=10&day_of_month="))
	_, err = FixedExpenseFromForm(p)
	assert.ErrorIs(t, err, core.ErrInvalidDay)

	p, _ = ParseBody(newFormRequest("day_of_month=31&notes=vence+no+fim"))
	patch, err := FixedExpensePatchFromForm(p)
	require.NoError(t, err)
	require.NotNil(t, patch.DayOfMonth)
	assert.Equal(t, 31, *patch.DayOfMonth)
	require.NotNil(t, patch.Notes)
	assert.Equal(t, "vence no fim", *patch.Notes)
	assert.Nil(t, patch.Amount)
}

func TestBarWidth(t *testing.T) {
	top := core.Money{Cents: 10000}
	assert.Equal(t, 100, barWidth(top, top))
	assert.Equal(t, 50, barWidth(core.Money{Cents: 5000}, top))
	assert.Equal(t, 2, barWidth(core.Money{Cents: 1}, top))
	assert.Equal(t, 0, barWidth(core.Money{}, top))
	assert.Equal(t, 0, barWidth(top, core.Money{}))
}
