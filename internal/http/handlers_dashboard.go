package http

import (
	"net/http"

	"financas/internal/core"
	"financas/internal/finance"
	"financas/internal/schedule"
	"financas/internal/services"
)

// upcomingDays is how far ahead the dashboard lists fixed expenses.
const upcomingDays = 10

type categoryRow struct {
	finance.CategoryShare
	Width int
}

type cardRow struct {
	finance.CardUsage
	Width    int
	Cycle    schedule.CardCycle
	HasCycle bool
}

type summaryView struct {
	Period     finance.Period
	Summary    finance.Summary
	Categories []categoryRow
	Cards      []cardRow
	FixedTotal core.Money
	Upcoming   []schedule.Occurrence
	Pending    int
}

type txRow struct {
	core.Transaction
	CardName string
}

type transactionsView struct {
	Period     finance.Period
	Filter     core.TxType
	Rows       []txRow
	Total      core.Money
	Cards      []core.CreditCard
	Categories []core.Category
	Methods    []core.PaymentMethod
}

func buildSummary(ledger services.Ledger, p finance.Period, today core.Date, pending int) summaryView {
	view := summaryView{
		Period:     p,
		Summary:    finance.Summarize(ledger.Transactions, p),
		FixedTotal: finance.FixedExpenseTotal(ledger.FixedExpenses),
		Upcoming:   schedule.Upcoming(ledger.FixedExpenses, today, upcomingDays),
		Pending:    pending,
	}

	shares := finance.MonthCategoryBreakdown(ledger.Transactions, p)
	var top core.Money
	for _, sh := range shares {
		if sh.Amount.Cents > top.Cents {
			top = sh.Amount
		}
	}
	for _, sh := range shares {
		view.Categories = append(view.Categories, categoryRow{CategoryShare: sh, Width: barWidth(sh.Amount, top)})
	}

	cycles := make(map[string]schedule.CardCycle)
	for _, c := range schedule.Cycles(ledger.Cards, today) {
		cycles[c.Card.ID] = c
	}
	for _, u := range finance.CardsSpend(ledger.Transactions, ledger.Cards, p) {
		row := cardRow{CardUsage: u, Width: min(int(u.Percent+0.5), 100)}
		row.Cycle, row.HasCycle = cycles[u.Card.ID]
		view.Cards = append(view.Cards, row)
	}
	return view
}

func buildTransactions(ledger services.Ledger, p finance.Period, filter core.TxType) transactionsView {
	names := make(map[string]string, len(ledger.Cards))
	for _, c := range ledger.Cards {
		names[c.ID] = c.Name
	}

	view := transactionsView{
		Period:     p,
		Filter:     filter,
		Cards:      ledger.Cards,
		Categories: core.Categories,
		Methods:    core.PaymentMethods,
	}
	for _, t := range finance.MonthTransactions(ledger.Transactions, p) {
		if filter != "" && t.Type != filter {
			continue
		}
		view.Rows = append(view.Rows, txRow{Transaction: t, CardName: names[t.CreditCardID]})
		if t.IsIncome() {
			view.Total = view.Total.Add(t.Amount)
		} else {
			view.Total = view.Total.Sub(t.Amount)
		}
	}
	return view
}

func typeFilter(r *http.Request) core.TxType {
	switch v := core.TxType(r.URL.Query().Get("type")); v {
	case core.Income, core.Expense:
		return v
	default:
		return ""
	}
}

type dashboardView struct {
	Summary      summaryView
	Transactions transactionsView
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := s.period(r)
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	page := s.newPage(r, p.Label(), "dashboard", p)
	page.Cards = ledger.Cards
	page.Data = dashboardView{
		Summary:      buildSummary(ledger, p, page.Today, s.ledger.Pending(userID(r))),
		Transactions: buildTransactions(ledger, p, typeFilter(r)),
	}
	s.render(w, r, http.StatusOK, "dashboard", page)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p := s.period(r)
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	today := core.DateOf(s.now())
	s.renderPartial(w, r, http.StatusOK, "summary", buildSummary(ledger, p, today, s.ledger.Pending(userID(r))))
}

func (s *Server) handleTransactionList(w http.ResponseWriter, r *http.Request) {
	p := s.period(r)
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	s.renderPartial(w, r, http.StatusOK, "transactions", buildTransactions(ledger, p, typeFilter(r)))
}
