package http

import (
	"net/http"

	"financas/internal/core"
	"financas/internal/finance"
	applog "financas/internal/log"
	"financas/internal/schedule"
)

type fixedRow struct {
	core.FixedExpense
	CardName string
	Due      core.Date
	HasDue   bool
}

type fixedView struct {
	Rows  []fixedRow
	Total core.Money
}

func (s *Server) handleFixed(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	page := s.newPage(r, "Despesas fixas", "fixed", finance.PeriodOf(s.now()))
	page.Cards = ledger.Cards

	names := make(map[string]string, len(ledger.Cards))
	for _, c := range ledger.Cards {
		names[c.ID] = c.Name
	}
	view := fixedView{Total: finance.FixedExpenseTotal(ledger.FixedExpenses)}
	for _, f := range ledger.FixedExpenses {
		row := fixedRow{FixedExpense: f, CardName: names[f.CreditCardID]}
		if due, err := schedule.NextDue(f.DayOfMonth, page.Today); err == nil {
			row.Due, row.HasDue = due, true
		}
		view.Rows = append(view.Rows, row)
	}
	page.Data = view
	s.render(w, r, http.StatusOK, "fixed", page)
}

func (s *Server) handleCreateFixed(w http.ResponseWriter, r *http.Request) {
	form, errResp := ParseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	f, err := FixedExpenseFromForm(form)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	saved, err := s.ledger.AddFixedExpense(r.Context(), userID(r), f)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	NewHTMXResponse().
		TriggerFixedChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Despesa fixa cadastrada: " + saved.Description + ".").
		Write(w)
}

func (s *Server) handleUpdateFixed(w http.ResponseWriter, r *http.Request) {
	form, errResp := ParseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	patch, err := FixedExpensePatchFromForm(form)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if _, err := s.ledger.UpdateFixedExpense(r.Context(), userID(r), r.PathValue("id"), patch); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}

	NewHTMXResponse().
		TriggerFixedChanged().
		TriggerSuccessNotification("Despesa fixa atualizada.").
		Write(w)
}

func (s *Server) handleDeleteFixed(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteFixedExpense(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}

	NewHTMXResponse().
		TriggerFixedChanged().
		TriggerSuccessNotification("Despesa fixa excluída.").
		Write(w)
}
