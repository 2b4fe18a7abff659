package http

import (
	"net/http"

	"financas/internal/core"
	"financas/internal/finance"
	applog "financas/internal/log"
	"financas/internal/schedule"
)

type cardsView struct {
	Period finance.Period
	Rows   []cardRow
	Total  core.Money
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	p := s.period(r)
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	page := s.newPage(r, "Cartões", "cards", p)
	page.Cards = ledger.Cards

	view := cardsView{Period: p}
	for _, u := range finance.CardsSpend(ledger.Transactions, ledger.Cards, p) {
		row := cardRow{CardUsage: u, Width: min(int(u.Percent+0.5), 100)}
		if cycle, err := schedule.NextCycle(u.Card, page.Today); err == nil {
			row.Cycle, row.HasCycle = cycle, true
		}
		view.Rows = append(view.Rows, row)
		view.Total = view.Total.Add(u.Used)
	}
	page.Data = view
	s.render(w, r, http.StatusOK, "cards", page)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	form, errResp := ParseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	c, err := CardFromForm(form)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	saved, err := s.ledger.AddCard(r.Context(), userID(r), c)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	NewHTMXResponse().
		TriggerCardsChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Cartão " + saved.Name + " cadastrado.").
		Write(w)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	form, errResp := ParseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	patch, err := CardPatchFromForm(form)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if _, err := s.ledger.UpdateCard(r.Context(), userID(r), r.PathValue("id"), patch); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}

	NewHTMXResponse().
		TriggerCardsChanged().
		TriggerSuccessNotification("Cartão atualizado.").
		Write(w)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteCard(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}

	NewHTMXResponse().
		TriggerCardsChanged().
		TriggerSuccessNotification("Cartão excluído.").
		Write(w)
}
