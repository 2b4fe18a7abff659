package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/csvio"
	"financas/internal/finance"
	"financas/internal/services"
	"financas/internal/store"
)

func decodeTriggers(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	raw := w.Header().Get("HX-Trigger")
	require.NotEmpty(t, raw, "HX-Trigger header not set")
	var triggers map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &triggers))
	return triggers
}

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusCreated).
		Body([]byte("test")).
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "test", w.Body.String())
	assert.Empty(t, w.Header().Get("HX-Trigger"))
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerTransactionsChanged(finance.Period{Year: 2024, Month: time.March}).
		TriggerFormReset().
		TriggerSuccessNotification("Salvo").
		Write(w)

	triggers := decodeTriggers(t, w)
	assert.Contains(t, triggers, "form:reset")

	var period map[string]int
	require.NoError(t, json.Unmarshal(triggers["transactions:changed"], &period))
	assert.Equal(t, map[string]int{"year": 2024, "month": 3}, period)

	var note map[string]any
	require.NoError(t, json.Unmarshal(triggers["show-notification"], &note))
	assert.Equal(t, "success", note["type"])
	assert.Equal(t, "Salvo", note["message"])
	assert.EqualValues(t, 3000, note["duration"])
}

func TestHTMXResponseBuilder_ListEvents(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerCardsChanged().
		TriggerFixedChanged().
		TriggerWarningNotification("atenção").
		Write(w)

	triggers := decodeTriggers(t, w)
	assert.Contains(t, triggers, "cards:changed")
	assert.Contains(t, triggers, "fixed:changed")

	var note map[string]any
	require.NoError(t, json.Unmarshal(triggers["show-notification"], &note))
	assert.Equal(t, "warning", note["type"])
	assert.EqualValues(t, 6000, note["duration"])
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("X-Custom", "value").
		BodyHTML("<p>ok</p>").
		Write(w)

	assert.Equal(t, "value", w.Header().Get("X-Custom"))
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "<p>ok</p>", w.Body.String())
}

func TestErrorResponse_EscapesMessage(t *testing.T) {
	w := httptest.NewRecorder()

	ErrorResponse(http.StatusUnprocessableEntity, `<b>"x"</b>`).Write(w)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, `<div class="error">&lt;b&gt;&#34;x&#34;&lt;/b&gt;</div>`, w.Body.String())

	triggers := decodeTriggers(t, w)
	var note map[string]any
	require.NoError(t, json.Unmarshal(triggers["show-notification"], &note))
	assert.Equal(t, "error", note["type"])
	assert.Equal(t, `<b>"x"</b>`, note["message"])
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		build  func(string) *HTMXResponseBuilder
		status int
	}{
		{"bad request", BadRequestError, http.StatusBadRequest},
		{"unprocessable", UnprocessableEntityError, http.StatusUnprocessableEntity},
		{"not found", NotFoundError, http.StatusNotFound},
		{"internal", InternalServerError, http.StatusInternalServerError},
		{"bad gateway", BadGatewayError, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.build("falhou").Write(w)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), "falhou")
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid amount", core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"wrapped validation", fmt.Errorf("save: %w", core.ErrEmptyDescription), http.StatusUnprocessableEntity},
		{"card required", core.ErrCardRequired, http.StatusUnprocessableEntity},
		{"unknown card", services.ErrUnknownCard, http.StatusUnprocessableEntity},
		{"card in use", services.ErrCardInUse, http.StatusUnprocessableEntity},
		{"unreadable csv", csvio.ErrUnreadable, http.StatusUnprocessableEntity},
		{"nothing imported", errors.Join(csvio.ErrNothingImported, core.ErrInvalidAmount), http.StatusUnprocessableEntity},
		{"weak password", auth.ErrWeakPassword, http.StatusUnprocessableEntity},
		{"preview expired", errPreviewExpired, http.StatusUnprocessableEntity},
		{"nothing to export", errNothingToExport, http.StatusUnprocessableEntity},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"state mismatch", auth.ErrStateMismatch, http.StatusUnauthorized},
		{"email taken", auth.ErrEmailTaken, http.StatusConflict},
		{"pending change", services.ErrPendingChange, http.StatusConflict},
		{"not found", fmt.Errorf("update: %w", store.ErrNotFound), http.StatusNotFound},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"remote failure", errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Valor inválido: informe um número maior que zero.", errorMessage(fmt.Errorf("x: %w", core.ErrInvalidAmount)))
	assert.Equal(t, "Este cartão ainda tem lançamentos vinculados.", errorMessage(services.ErrCardInUse))
	assert.Equal(t, remoteFailureMessage, errorMessage(errors.New("boom")))
}

func TestErrorFor(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFor(auth.ErrEmailTaken).Write(w)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Este e-mail já está cadastrado.")
}
