package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"financas/internal/auth"
	applog "financas/internal/log"
	"financas/internal/middleware/ratelimit"
	"financas/internal/services"
	"financas/internal/store/memory"
)

var testNow = time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)

type testServer struct {
	*Server
	store *memory.Store
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, tweak func(*Deps)) testServer {
	t.Helper()
	st := memory.New()
	logger := applog.New(applog.Config{Output: io.Discard})
	deps := Deps{
		Ledger:    services.NewLedgerService(st, services.WithClock(func() time.Time { return testNow }), services.WithLogger(logger)),
		Auth:      auth.NewService(st, auth.WithBcryptCost(bcrypt.MinCost)),
		Sessions:  auth.NewSessions("test-secret-with-at-least-32-bytes!", time.Hour, false),
		Store:     st,
		Logger:    logger,
		RateLimit: ratelimit.Config{RequestsPerWindow: 1000, Window: time.Minute},
		Now:       func() time.Time { return testNow },
	}
	if tweak != nil {
		tweak(&deps)
	}
	srv, err := NewServer(":0", deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testServer{Server: srv, store: st}
}

type request struct {
	method  string
	path    string
	form    url.Values
	cookie  *http.Cookie
	htmx    bool
	body    io.Reader
	content string
}

func (ts testServer) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	body := req.body
	contentType := req.content
	if req.form != nil {
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if req.cookie != nil {
		r.AddCookie(req.cookie)
	}
	if req.htmx {
		r.Header.Set("HX-Request", "true")
	}
	w := httptest.NewRecorder()
	ts.Handler.ServeHTTP(w, r)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response (status %d)", w.Code)
	return nil
}

func (ts testServer) signUp(t *testing.T, email string) *http.Cookie {
	t.Helper()
	w := ts.do(t, request{method: http.MethodPost, path: "/auth/signup", form: url.Values{
		"name":             {"Ana"},
		"email":            {email},
		"password":         {"segredo123"},
		"password_confirm": {"segredo123"},
	}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	return sessionCookie(t, w)
}

func triggers(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	out := map[string]json.RawMessage{}
	if raw := w.Header().Get("HX-Trigger"); raw != "" {
		require.NoError(t, json.Unmarshal([]byte(raw), &out))
	}
	return out
}

func TestPrivateRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, request{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = ts.do(t, request{method: http.MethodGet, path: "/ui/summary", htmx: true})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "/login", w.Header().Get("HX-Redirect"))

	w = ts.do(t, request{method: http.MethodGet, path: "/", cookie: &http.Cookie{Name: auth.SessionCookie, Value: "forged"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestLoginPage(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, request{method: http.MethodGet, path: "/login"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/auth/signin"`)
	assert.NotContains(t, w.Body.String(), "/auth/google")
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = ts.do(t, request{method: http.MethodGet, path: "/login?mode=signup"})
	assert.Contains(t, w.Body.String(), `action="/auth/signup"`)

	cookie := ts.signUp(t, "ana@example.com")
	w = ts.do(t, request{method: http.MethodGet, path: "/login", cookie: cookie})
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestSignUpAndSignIn(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, request{method: http.MethodPost, path: "/auth/signup", form: url.Values{
		"email": {"ana@example.com"}, "password": {"segredo123"}, "password_confirm": {"outra"},
	}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "As senhas não conferem.")

	w = ts.do(t, request{method: http.MethodPost, path: "/auth/signup", form: url.Values{
		"email": {"ana@example.com"}, "password": {"123"}, "password_confirm": {"123"},
	}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	cookie := ts.signUp(t, "ana@example.com")

	w = ts.do(t, request{method: http.MethodPost, path: "/auth/signup", form: url.Values{
		"email": {"ANA@example.com"}, "password": {"segredo123"}, "password_confirm": {"segredo123"},
	}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Nova transação")
	assert.Contains(t, w.Body.String(), "Março 2024")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = ts.do(t, request{method: http.MethodPost, path: "/auth/signin", form: url.Values{
		"email": {"ana@example.com"}, "password": {"errada"},
	}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "E-mail ou senha incorretos.")

	w = ts.do(t, request{method: http.MethodPost, path: "/auth/signin", htmx: true, form: url.Values{
		"email": {"ana@example.com"}, "password": {"segredo123"},
	}})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "/", w.Header().Get("HX-Redirect"))
	sessionCookie(t, w)

	w = ts.do(t, request{method: http.MethodPost, path: "/auth/signout", cookie: cookie})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestGoogleRoutesDisabled(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, request{method: http.MethodGet, path: "/auth/google"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func txForm(desc, amount, date, method, card string) url.Values {
	return url.Values{
		"description":    {desc},
		"amount":         {amount},
		"date":           {date},
		"category":       {"alimentacao"},
		"type":           {"expense"},
		"payment_method": {method},
		"credit_card_id": {card},
	}
}

func TestTransactionLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.signUp(t, "ana@example.com")

	w := ts.do(t, request{method: http.MethodPost, path: "/transactions", cookie: cookie, htmx: true,
		form: txForm("Mercado", "0", "2024-03-10", "pix", "")})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, triggers(t, w), "show-notification")

	w = ts.do(t, request{method: http.MethodPost, path: "/transactions", cookie: cookie, htmx: true,
		form: txForm("Mercado", "0", "2024-03-10", "credit", "")})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, request{method: http.MethodPost, path: "/transactions", cookie: cookie, htmx: true,
		form: txForm("Mercado", "123,45", "2024-03-10", "pix", "")})
	require.Equal(t, http.StatusOK, w.Code)
	tr := triggers(t, w)
	assert.JSONEq(t, `{"year":2024,"month":3}`, string(tr["transactions:changed"]))
	assert.Contains(t, tr, "form:reset")

	w = ts.do(t, request{method: http.MethodGet, path: "/ui/transactions?year=2024&month=3", cookie: cookie, htmx: true})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Mercado")
	assert.Contains(t, body, "R$ 123,45")

	id := regexp.MustCompile(`id="tx-([^"]+)"`).FindStringSubmatch(body)
	require.Len(t, id, 2)

	w = ts.do(t, request{method: http.MethodPost, path: "/transactions/" + id[1], cookie: cookie, htmx: true,
		form: url.Values{"description": {"Feira"}}})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/ui/summary?year=2024&month=3", cookie: cookie, htmx: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "R$ 123,45")

	w = ts.do(t, request{method: http.MethodGet, path: "/ui/transactions?year=2024&month=3&type=income", cookie: cookie, htmx: true})
	assert.NotContains(t, w.Body.String(), "Feira")

	w = ts.do(t, request{method: http.MethodDelete, path: "/transactions/" + id[1] + "?year=2024&month=3", cookie: cookie, htmx: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = ts.do(t, request{method: http.MethodDelete, path: "/transactions/" + id[1], cookie: cookie, htmx: true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsersOnlySeeTheirOwnData(t *testing.T) {
	ts := newTestServer(t, nil)
	ana := ts.signUp(t, "ana@example.com")
	bia := ts.signUp(t, "bia@example.com")

	w := ts.do(t, request{method: http.MethodPost, path: "/transactions", cookie: ana, htmx: true,
		form: txForm("Segredo da Ana", "10", "2024-03-10", "pix", "")})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/ui/transactions", cookie: bia, htmx: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Segredo da Ana")
}

func TestCardsLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.signUp(t, "ana@example.com")

	w := ts.do(t, request{method: http.MethodPost, path: "/cards", cookie: cookie, htmx: true, form: url.Values{
		"name": {"Nubank"}, "bank": {"Nu"}, "limit": {"5000"}, "due_day": {"10"}, "closing_day": {"40"},
	}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, request{method: http.MethodPost, path: "/cards", cookie: cookie, htmx: true, form: url.Values{
		"name": {"Nubank"}, "bank": {"Nu"}, "limit": {"5000"}, "due_day": {"10"}, "closing_day": {"3"},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, triggers(t, w), "cards:changed")

	ledger, err := ts.ledger.Snapshot(context.Background(), userIDOf(t, ts, cookie))
	require.NoError(t, err)
	require.Len(t, ledger.Cards, 1)
	cardID := ledger.Cards[0].ID

	w = ts.do(t, request{method: http.MethodPost, path: "/transactions", cookie: cookie, htmx: true,
		form: txForm("Restaurante", "250", "2024-03-12", "credit", cardID)})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/cards?year=2024&month=3", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Nubank")
	assert.Contains(t, w.Body.String(), "R$ 250,00")

	w = ts.do(t, request{method: http.MethodPost, path: "/cards/" + cardID, cookie: cookie, htmx: true,
		form: url.Values{"limit": {"6000"}}})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, request{method: http.MethodDelete, path: "/cards/" + cardID, cookie: cookie, htmx: true})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "lançamentos vinculados")
}

func userIDOf(t *testing.T, ts testServer, cookie *http.Cookie) string {
	t.Helper()
	id, err := ts.sessions.Verify(cookie.Value)
	require.NoError(t, err)
	return id
}

func TestFixedExpenses(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.signUp(t, "ana@example.com")

	w := ts.do(t, request{method: http.MethodPost, path: "/fixed", cookie: cookie, htmx: true, form: url.Values{
		"description": {"Aluguel"}, "amount": {"1500"}, "category": {"moradia"},
		"payment_method": {"transfer"}, "day_of_month": {"25"},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, triggers(t, w), "fixed:changed")

	w = ts.do(t, request{method: http.MethodGet, path: "/fixed", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Aluguel")
	assert.Contains(t, w.Body.String(), "25/03/2024")

	w = ts.do(t, request{method: http.MethodGet, path: "/ui/summary", cookie: cookie, htmx: true})
	assert.Contains(t, w.Body.String(), "Aluguel", "due within the upcoming window")

	w = ts.do(t, request{method: http.MethodPost, path: "/fixed", cookie: cookie, htmx: true, form: url.Values{
		"description": {"Academia"}, "amount": {"100"}, "category": {"saude"},
		"payment_method": {"pix"}, "day_of_month": {"32"},
	}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestReportsAndExports(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.signUp(t, "ana@example.com")

	w := ts.do(t, request{method: http.MethodGet, path: "/export/transactions.csv?year=2024&month=3", cookie: cookie})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/reports/chart/categories.png?year=2024&month=3", cookie: cookie})
	assert.Equal(t, http.StatusNoContent, w.Code)

	for _, form := range []url.Values{
		txForm("Mercado", "80", "2024-03-05", "pix", ""),
		{"description": {"Uber"}, "amount": {"20"}, "date": {"2024-03-06"}, "category": {"transporte"}, "type": {"expense"}, "payment_method": {"debit"}},
		{"description": {"Salário"}, "amount": {"3000"}, "date": {"2024-03-01"}, "category": {"salario"}, "type": {"income"}, "payment_method": {"transfer"}},
	} {
		w = ts.do(t, request{method: http.MethodPost, path: "/transactions", cookie: cookie, htmx: true, form: form})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = ts.do(t, request{method: http.MethodGet, path: "/reports?year=2024&month=3", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/reports/chart/trend.png?year=2024&amp;month=3")

	w = ts.do(t, request{method: http.MethodGet, path: "/export/transactions.csv?year=2024&month=3", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "_2024-03-20.csv")
	assert.Contains(t, w.Body.String(), "Mercado")

	w = ts.do(t, request{method: http.MethodGet, path: "/export/monthly.csv?year=2024&month=3", cookie: cookie})
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/export/bogus.csv", cookie: cookie})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/reports/chart/categories.png?year=2024&month=3", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = ts.do(t, request{method: http.MethodGet, path: "/reports/chart/pizza.png", cookie: cookie})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/reports/statement.pdf?year=2024&month=3", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "extrato_2024-03.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func uploadCSV(t *testing.T, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "extrato.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImportPreviewAndCommit(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.signUp(t, "ana@example.com")

	body, contentType := uploadCSV(t, "data,descricao,categoria,pagamento,valor\n"+
		"10/03/2024,Mercado,mercado,pix,-50.00\n"+
		"01/03/2024,Salario,salario,transferencia,3000\n"+
		"12/03/2024,,outros,pix,-10\n")
	w := ts.do(t, request{method: http.MethodPost, path: "/import/preview", cookie: cookie, htmx: true, body: body, content: contentType})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ts.previews.Size())

	token := regexp.MustCompile(`name="token" value="([^"]+)"`).FindStringSubmatch(w.Body.String())
	require.Len(t, token, 2)
	keep := regexp.MustCompile(`name="keep" value="([^"]+)"`).FindAllStringSubmatch(w.Body.String(), -1)
	require.Len(t, keep, 3)

	form := url.Values{"token": {token[1]}}
	for _, k := range keep {
		form.Add("keep", k[1])
	}
	w = ts.do(t, request{method: http.MethodPost, path: "/import", cookie: cookie, htmx: true, form: form})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2 transação(ões) importada(s)")
	assert.Contains(t, w.Body.String(), "Informe uma descrição.")
	tr := triggers(t, w)
	assert.JSONEq(t, `{"year":2024,"month":3}`, string(tr["transactions:changed"]))
	assert.Equal(t, string(NotificationWarning), notificationType(t, w))

	// Only the rejected row is left, editable in place.
	assert.Equal(t, 1, ts.previews.Size())
	left := regexp.MustCompile(`name="keep" value="([^"]+)"`).FindAllStringSubmatch(w.Body.String(), -1)
	require.Len(t, left, 1)
	key := left[0][1]
	assert.Contains(t, w.Body.String(), `name="description.`+key+`" value=""`)

	fix := url.Values{"token": {token[1]}, "keep": {key}, "description." + key: {"Padaria"}, "amount." + key: {"dez"}}
	w = ts.do(t, request{method: http.MethodPost, path: "/import", cookie: cookie, htmx: true, form: fix})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Valor inválido")
	assert.Contains(t, w.Body.String(), `value="Padaria"`)
	assert.Equal(t, 1, ts.previews.Size())

	fix.Set("amount."+key, "10,00")
	w = ts.do(t, request{method: http.MethodPost, path: "/import", cookie: cookie, htmx: true, form: fix})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "1 transação(ões) importada(s)")
	assert.Equal(t, string(NotificationSuccess), notificationType(t, w))
	assert.Equal(t, 0, ts.previews.Size())

	w = ts.do(t, request{method: http.MethodGet, path: "/ui/transactions?year=2024&month=3", cookie: cookie, htmx: true})
	assert.Contains(t, w.Body.String(), "Padaria")
	assert.Contains(t, w.Body.String(), "Salario")

	w = ts.do(t, request{method: http.MethodPost, path: "/import", cookie: cookie, htmx: true, form: form})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "pré-visualização expirou")
}

func TestImportCommit_EditedCells(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.signUp(t, "ana@example.com")

	body, contentType := uploadCSV(t, "data,descricao,valor\n05/03/2024,Mercdo,-42\n")
	w := ts.do(t, request{method: http.MethodPost, path: "/import/preview", cookie: cookie, htmx: true, body: body, content: contentType})
	require.Equal(t, http.StatusOK, w.Code)
	token := regexp.MustCompile(`name="token" value="([^"]+)"`).FindStringSubmatch(w.Body.String())
	require.Len(t, token, 2)
	keep := regexp.MustCompile(`name="keep" value="([^"]+)"`).FindStringSubmatch(w.Body.String())
	require.Len(t, keep, 2)
	assert.Contains(t, w.Body.String(), `value="42.00"`)

	form := url.Values{
		"token":                  {token[1]},
		"keep":                   {keep[1]},
		"description." + keep[1]: {"Mercado"},
		"category." + keep[1]:    {"alimentacao"},
		"date." + keep[1]:        {"2024-03-06"},
	}
	w = ts.do(t, request{method: http.MethodPost, path: "/import", cookie: cookie, htmx: true, form: form})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/ui/transactions?year=2024&month=3", cookie: cookie, htmx: true})
	list := w.Body.String()
	assert.Contains(t, list, "Mercado")
	assert.NotContains(t, list, "Mercdo")
	assert.Contains(t, list, "06/03/2024")
	assert.Contains(t, list, "Alimentação")
}

func TestImportRejectsBadFiles(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.signUp(t, "ana@example.com")

	body, contentType := uploadCSV(t, "data,descricao,valor\n")
	w := ts.do(t, request{method: http.MethodPost, path: "/import/preview", cookie: cookie, htmx: true, body: body, content: contentType})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body, contentType = uploadCSV(t, "\xff\xfe\x00b\x00a")
	w = ts.do(t, request{method: http.MethodPost, path: "/import/preview", cookie: cookie, htmx: true, body: body, content: contentType})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Não foi possível ler o arquivo")
}

func TestHealthReadyAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, request{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])

	w = ts.do(t, request{method: http.MethodGet, path: "/readyz"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "financas_http_requests_total")

	down := newTestServer(t, func(d *Deps) { d.Store = failingPinger{} })
	w = down.do(t, request{method: http.MethodGet, path: "/readyz"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unreachable")
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) {
		d.RateLimit = ratelimit.Config{RequestsPerWindow: 2, Window: time.Minute}
	})

	form := url.Values{"email": {"x@example.com"}, "password": {"errada"}}
	for i := 0; i < 2; i++ {
		w := ts.do(t, request{method: http.MethodPost, path: "/auth/signin", form: form})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := ts.do(t, request{method: http.MethodPost, path: "/auth/signin", form: form})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = ts.do(t, request{method: http.MethodGet, path: "/login"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStaticAssets(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, request{method: http.MethodGet, path: "/static/app.js"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "max-age=")
}
