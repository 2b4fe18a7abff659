package http

import (
	"fmt"
	"net/http"

	"financas/internal/finance"
	applog "financas/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	form, errResp := ParseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	t, err := TransactionFromForm(form)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	saved, err := s.ledger.AddTransaction(r.Context(), userID(r), t)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	NewHTMXResponse().
		TriggerTransactionsChanged(finance.PeriodOf(saved.Date.Time)).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("%s registrada: %s (%s)", saved.Type.Label(), saved.Description, saved.Amount.FormatBRL())).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	form, errResp := ParseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	patch, err := TransactionPatchFromForm(form)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}

	saved, err := s.ledger.UpdateTransaction(r.Context(), userID(r), r.PathValue("id"), patch)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}

	NewHTMXResponse().
		TriggerTransactionsChanged(finance.PeriodOf(saved.Date.Time)).
		TriggerSuccessNotification("Transação atualizada.").
		Write(w)
}

// handleDeleteTransaction answers with an empty body so the row swaps out.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}

	NewHTMXResponse().
		TriggerTransactionsChanged(s.period(r)).
		TriggerSuccessNotification("Transação excluída.").
		Write(w)
}
