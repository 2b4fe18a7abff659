package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"financas/internal/charts"
	"financas/internal/finance"
	applog "financas/internal/log"
	"financas/internal/report"
)

type trendRow struct {
	finance.MonthSummary
	IncomeWidth  int
	ExpenseWidth int
}

type reportsView struct {
	Period     finance.Period
	Summary    finance.Summary
	Trend      []trendRow
	Categories []categoryRow
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	p := s.period(r)
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	view := reportsView{Period: p, Summary: finance.Summarize(ledger.Transactions, p)}
	trend := finance.SixMonthTrend(ledger.Transactions, p)
	var top int64
	for _, m := range trend {
		top = max(top, m.Income.Cents, m.Expense.Cents)
	}
	for _, m := range trend {
		row := trendRow{MonthSummary: m}
		if top > 0 {
			row.IncomeWidth = int(m.Income.Cents * 100 / top)
			row.ExpenseWidth = int(m.Expense.Cents * 100 / top)
		}
		view.Trend = append(view.Trend, row)
	}
	for _, sh := range finance.MonthCategoryBreakdown(ledger.Transactions, p) {
		view.Categories = append(view.Categories, categoryRow{CategoryShare: sh, Width: min(int(sh.Percent+0.5), 100)})
	}

	page := s.newPage(r, "Relatórios", "reports", p)
	page.Cards = ledger.Cards
	page.Data = view
	s.render(w, r, http.StatusOK, "reports", page)
}

// handleChart serves /reports/chart/{kind}.png. An empty period answers
// 204 so the page can hide the image.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	kind, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}
	p := s.period(r)
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	var (
		img []byte
		err error
	)
	switch kind {
	case "categories":
		img, err = charts.CategoryPie(finance.MonthCategoryBreakdown(ledger.Transactions, p))
	case "trend":
		img, err = charts.Trend(finance.SixMonthTrend(ledger.Transactions, p))
	case "balance":
		img, err = charts.Balance(finance.BalanceHistory(ledger.Transactions, p))
	default:
		http.NotFound(w, r)
		return
	}
	if errors.Is(err, charts.ErrNoData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Chart rendering failed",
			applog.FieldError, err, "chart", kind, applog.FieldOperation, applog.OpExport)
		InternalServerError("Erro ao gerar o gráfico.").Write(w)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	p := s.period(r)
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	owner := userID(r)
	if u, err := s.auth.User(r.Context(), owner); err == nil {
		owner = u.Email
		if u.Name != "" {
			owner = u.Name + " <" + u.Email + ">"
		}
	}

	var buf bytes.Buffer
	data := report.NewStatementData(owner, p, ledger.Transactions, ledger.Cards, s.now())
	if err := report.Statement(&buf, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Statement rendering failed",
			applog.FieldError, err, applog.FieldOperation, applog.OpExport)
		InternalServerError("Erro ao gerar o extrato.").Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="extrato_%s.pdf"`, p.Key()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
