// Package http serves the finance UI: full pages, HTMX partials, downloads
// and the auth endpoints.
//
// This file implements the Builder Pattern for constructing HTMX responses.
// It provides a fluent API for HX-Trigger headers and keeps the mapping from
// domain errors to status codes and Portuguese messages in one place.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/csvio"
	"financas/internal/finance"
	"financas/internal/services"
	"financas/internal/store"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
type HTMXResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named event with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data interface{}) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

func periodData(p finance.Period) map[string]int {
	return map[string]int{"year": p.Year, "month": int(p.Month)}
}

// TriggerTransactionsChanged refreshes every partial that reads transactions.
func (b *HTMXResponseBuilder) TriggerTransactionsChanged(p finance.Period) *HTMXResponseBuilder {
	return b.Trigger("transactions:changed", periodData(p))
}

func (b *HTMXResponseBuilder) TriggerCardsChanged() *HTMXResponseBuilder {
	return b.Trigger("cards:changed", struct{}{})
}

func (b *HTMXResponseBuilder) TriggerFixedChanged() *HTMXResponseBuilder {
	return b.Trigger("fixed:changed", struct{}{})
}

func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger("form:reset", struct{}{})
}

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger("show-notification", map[string]interface{}{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

func (b *HTMXResponseBuilder) TriggerWarningNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationWarning, message, 6000)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *HTMXResponseBuilder) Body(content []byte) *HTMXResponseBuilder {
	b.body = content
	return b
}

func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders message in an error box and raises a notification.
// The message is HTML-escaped.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		TriggerErrorNotification(message).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func BadGatewayError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadGateway, message)
}

// User-facing messages, in the order they are matched.
var errorMessages = []struct {
	err error
	msg string
}{
	{core.ErrEmptyDescription, "Informe uma descrição."},
	{core.ErrEmptyName, "Informe um nome."},
	{core.ErrInvalidAmount, "Valor inválido: informe um número maior que zero."},
	{core.ErrInvalidDate, "Data inválida."},
	{core.ErrInvalidDay, "O dia deve estar entre 1 e 31."},
	{core.ErrInvalidMonth, "Mês inválido."},
	{core.ErrInvalidType, "Tipo de transação inválido."},
	{core.ErrInvalidCategory, "Categoria inválida."},
	{core.ErrInvalidMethod, "Forma de pagamento inválida."},
	{core.ErrTooLong, "Texto muito longo."},
	{core.ErrCardRequired, "Selecione o cartão para pagamentos no crédito."},
	{core.ErrCardNotAllowed, "Cartão só pode ser informado para pagamentos no crédito."},
	{services.ErrUnknownCard, "Cartão não encontrado."},
	{services.ErrCardInUse, "Este cartão ainda tem lançamentos vinculados."},
	{services.ErrPendingChange, "Outra alteração deste registro ainda está em andamento."},
	{store.ErrNotFound, "Registro não encontrado."},
	{csvio.ErrUnreadable, "Não foi possível ler o arquivo. Envie um CSV em UTF-8."},
	{csvio.ErrNothingImported, "Nenhuma transação foi importada."},
	{auth.ErrInvalidCredentials, "E-mail ou senha incorretos."},
	{auth.ErrEmailTaken, "Este e-mail já está cadastrado."},
	{auth.ErrInvalidEmail, "E-mail inválido."},
	{auth.ErrWeakPassword, "A senha deve ter pelo menos 6 caracteres."},
	{auth.ErrPasswordTooLong, "A senha é longa demais."},
	{auth.ErrStateMismatch, "Sessão de login expirada. Tente novamente."},
	{auth.ErrUnverifiedEmail, "Sua conta Google não tem e-mail verificado."},
	{errPreviewExpired, "A pré-visualização expirou. Envie o arquivo novamente."},
	{errNoFile, "Selecione um arquivo CSV."},
	{errNothingToExport, "Nenhum dado para exportar neste período."},
	{context.DeadlineExceeded, "O servidor de dados demorou demais para responder."},
}

const remoteFailureMessage = "Não foi possível falar com o servidor de dados. Tente novamente."

// errorMessage returns the Portuguese message for err, or the generic
// remote failure text.
func errorMessage(err error) string {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return remoteFailureMessage
}

// statusFor classifies err. Anything unrecognised came from the store and is
// reported as a bad gateway.
func statusFor(err error) int {
	switch {
	case services.IsValidation(err),
		errors.Is(err, csvio.ErrUnreadable),
		errors.Is(err, csvio.ErrNothingImported),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, errPreviewExpired),
		errors.Is(err, errNoFile),
		errors.Is(err, errNothingToExport):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrStateMismatch), errors.Is(err, auth.ErrUnverifiedEmail):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, services.ErrPendingChange):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// ErrorFor builds the response for a failed operation.
func ErrorFor(err error) *HTMXResponseBuilder {
	return ErrorResponse(statusFor(err), errorMessage(err))
}
