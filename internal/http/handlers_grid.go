package http

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"financas/internal/core"
	"financas/internal/finance"
	applog "financas/internal/log"
	"financas/internal/services"
)

// blankGridRows are the empty lines offered for new transactions.
const blankGridRows = 3

// gridRow is one editable spreadsheet line. Cells stay as typed so a
// rejected row comes back exactly as the user left it.
type gridRow struct {
	Key         string
	ID          string
	Line        int
	Keep        bool
	Description string
	Date        string
	Amount      string
	Type        string
	Category    string
	Method      string
	CardID      string
	Notes       string
	Error       string
}

type gridView struct {
	Rows       []gridRow
	Selectable bool
	Categories []core.Category
	Methods    []core.PaymentMethod
	Cards      []core.CreditCard
}

type bulkView struct {
	Period finance.Period
	Grid   gridView
}

func newGridView(rows []gridRow, cards []core.CreditCard) gridView {
	return gridView{
		Rows:       rows,
		Categories: core.Categories,
		Methods:    core.PaymentMethods,
		Cards:      cards,
	}
}

func gridRowOf(key string, line int, t core.Transaction) gridRow {
	row := gridRow{
		Key:         key,
		ID:          t.ID,
		Line:        line,
		Keep:        true,
		Description: t.Description,
		Date:        t.Date.String(),
		Type:        string(t.Type),
		Category:    string(t.Category),
		Method:      string(t.PaymentMethod),
		CardID:      t.CreditCardID,
		Notes:       t.Notes,
	}
	if !t.Amount.IsZero() {
		row.Amount = t.Amount.String()
	}
	return row
}

// gridRowFromForm reads the cells of row key. Cells that were not
// submitted keep the value from fallback.
func gridRowFromForm(p *RequestBodyParser, key string, fallback gridRow) gridRow {
	row := fallback
	row.Key = key
	row.Error = ""
	cell := func(dst *string, field string) {
		if name := field + "." + key; p.Has(name) {
			*dst = p.Get(name)
		}
	}
	cell(&row.ID, "id")
	cell(&row.Description, "description")
	cell(&row.Date, "date")
	cell(&row.Amount, "amount")
	cell(&row.Type, "type")
	cell(&row.Category, "category")
	cell(&row.Method, "payment_method")
	cell(&row.CardID, "credit_card_id")
	cell(&row.Notes, "notes")
	return row
}

// blank reports a new line the user never touched.
func (g gridRow) blank() bool {
	return g.ID == "" &&
		strings.TrimSpace(g.Description) == "" &&
		strings.TrimSpace(g.Amount) == ""
}

// transaction reads the typed cells. Validation of the record itself is
// left to the ledger.
func (g gridRow) transaction() (core.Transaction, error) {
	amount, err := parseAmount(g.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(g.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	method := core.PaymentMethod(g.Method)
	return core.Transaction{
		ID:            g.ID,
		Description:   strings.TrimSpace(g.Description),
		Amount:        amount,
		Date:          date,
		Category:      core.Category(g.Category),
		Notes:         strings.TrimSpace(g.Notes),
		Type:          core.TxType(g.Type),
		PaymentMethod: method,
		CreditCardID:  cardFor(method, g.CardID),
	}, nil
}

// sameContent ignores ID and creation time.
func sameContent(a, b core.Transaction) bool {
	return a.Description == b.Description &&
		a.Amount == b.Amount &&
		a.Date.Equal(b.Date.Time) &&
		a.Category == b.Category &&
		a.Notes == b.Notes &&
		a.Type == b.Type &&
		a.PaymentMethod == b.PaymentMethod &&
		a.CreditCardID == b.CreditCardID
}

// monthGrid lists the month oldest first, then blank lines for new rows.
// Rows in rejected replace their saved version and keep their errors.
func monthGrid(ledger services.Ledger, p finance.Period, rejected []gridRow) []gridRow {
	month := finance.MonthTransactions(ledger.Transactions, p)
	slices.Reverse(month)

	byID := make(map[string]gridRow)
	var fresh []gridRow
	for _, row := range rejected {
		if row.ID != "" {
			byID[row.ID] = row
		} else {
			fresh = append(fresh, row)
		}
	}

	rows := make([]gridRow, 0, len(month)+len(fresh)+blankGridRows)
	for _, t := range month {
		if row, ok := byID[t.ID]; ok {
			rows = append(rows, row)
			delete(byID, t.ID)
			continue
		}
		rows = append(rows, gridRowOf(t.ID, 0, t))
	}
	// Rejected edits of rows that left the month stay visible.
	for _, row := range rejected {
		if _, ok := byID[row.ID]; ok {
			rows = append(rows, row)
		}
	}
	rows = append(rows, fresh...)

	taken := make(map[string]bool, len(fresh))
	for _, row := range fresh {
		taken[row.Key] = true
	}
	for n, added := 1, 0; added < blankGridRows; n++ {
		key := "new-" + strconv.Itoa(n)
		if taken[key] {
			continue
		}
		rows = append(rows, gridRow{Key: key})
		added++
	}
	return rows
}

func (s *Server) handleGridPage(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	p := s.period(r)
	page := s.newPage(r, "Planilha", "grid", p)
	page.Cards = ledger.Cards
	page.Data = bulkView{Period: p, Grid: newGridView(monthGrid(ledger, p, nil), ledger.Cards)}
	s.render(w, r, http.StatusOK, "grid", page)
}

// handleGridSave commits the changed rows of a spreadsheet. Each row stands
// alone: rejected rows come back with their message, the rest are saved.
func (s *Server) handleGridSave(w http.ResponseWriter, r *http.Request) {
	form, errResp := ParseGridBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	uid := userID(r)
	p := s.period(r)
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	current := make(map[string]core.Transaction, len(ledger.Transactions))
	for _, t := range ledger.Transactions {
		current[t.ID] = t
	}

	var (
		edits    []services.RowEdit
		rejected []gridRow
		typed    = make(map[string]gridRow)
	)
	for i, key := range form.Values("row") {
		row := gridRowFromForm(form, key, gridRow{})
		if row.blank() {
			continue
		}
		t, err := row.transaction()
		if err != nil {
			row.Error = errorMessage(err)
			rejected = append(rejected, row)
			continue
		}
		if old, ok := current[t.ID]; ok && sameContent(old, t) {
			continue
		}
		typed[key] = row
		edits = append(edits, services.RowEdit{TempID: key, Line: i + 1, Transaction: t})
	}

	var report services.BatchReport
	if len(edits) > 0 {
		var err error
		if report, err = s.ledger.SaveRows(r.Context(), uid, edits); err != nil {
			s.fail(w, r, applog.OpUpdate, err)
			return
		}
		if ledger, ok = s.snapshot(w, r); !ok {
			return
		}
	}
	for _, res := range report.Failed() {
		row := typed[res.TempID]
		row.Error = errorMessage(res.Err)
		rejected = append(rejected, row)
	}

	view := bulkView{Period: p, Grid: newGridView(monthGrid(ledger, p, rejected), ledger.Cards)}
	body, err := s.partialBody("tx_grid", view)
	if err != nil {
		s.renderFailed(w, r, "tx_grid", err)
		return
	}

	saved := len(report.Saved())
	resp := NewHTMXResponse().BodyHTML(body)
	if saved > 0 {
		resp.TriggerTransactionsChanged(p)
	}
	switch {
	case len(rejected) > 0 && saved == 0:
		resp.Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification(fmt.Sprintf("%d linha(s) com erro. Nada foi salvo.", len(rejected)))
	case len(rejected) > 0:
		resp.TriggerWarningNotification(fmt.Sprintf("%d salva(s), %d com erro.", saved, len(rejected)))
	case saved == 0:
		resp.TriggerNotification(NotificationInfo, "Nenhuma alteração para salvar.", 3000)
	default:
		resp.TriggerSuccessNotification(fmt.Sprintf("%d transação(ões) salva(s).", saved))
	}
	resp.Write(w)
}
