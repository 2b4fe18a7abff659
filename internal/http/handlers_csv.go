package http

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"financas/internal/core"
	"financas/internal/csvio"
	"financas/internal/finance"
	applog "financas/internal/log"
	"financas/internal/services"
)

const maxUploadBytes = 2 << 20

var (
	errPreviewExpired  = errors.New("import preview expired")
	errNoFile          = errors.New("no file uploaded")
	errNothingToExport = errors.New("nothing to export")
)

// importPreview holds the rows still waiting to be imported. After a
// partial commit it keeps only the rejected rows, as the user edited them.
type importPreview struct {
	Filename string
	Rows     []gridRow
}

type importPreviewView struct {
	Token     string
	Filename  string
	Grid      gridView
	NeedsCard bool
	Retry     bool
}

type importResultView struct {
	Saved []core.Transaction
	Retry *importPreviewView
}

func newImportPreviewView(token string, preview importPreview, cards []core.CreditCard) importPreviewView {
	grid := newGridView(preview.Rows, cards)
	grid.Selectable = true
	view := importPreviewView{Token: token, Filename: preview.Filename, Grid: grid}
	for _, row := range preview.Rows {
		if row.Method == string(core.PaymentCredit) {
			view.NeedsCard = true
			break
		}
	}
	return view
}

func previewKey(userID, token string) string {
	return userID + ":" + token
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind, ok := strings.CutSuffix(r.PathValue("file"), ".csv")
	if !ok {
		http.NotFound(w, r)
		return
	}
	p := s.period(r)
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	var table csvio.Table
	switch kind {
	case "transactions":
		table = csvio.TransactionTable(finance.MonthTransactions(ledger.Transactions, p))
	case "monthly":
		table = csvio.MonthlyTable(finance.SixMonthTrend(ledger.Transactions, p))
	case "categories":
		table = csvio.CategoryTable(finance.MonthCategoryBreakdown(ledger.Transactions, p))
	default:
		http.NotFound(w, r)
		return
	}
	if len(table.Rows) == 0 {
		s.fail(w, r, applog.OpExport, errNothingToExport)
		return
	}

	var buf bytes.Buffer
	if err := table.Write(&buf); err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, csvio.Filename(table.Label, s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleImportPage(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	page := s.newPage(r, "Importar CSV", "import", s.period(r))
	page.Cards = ledger.Cards
	s.render(w, r, http.StatusOK, "import", page)
}

func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "Arquivo grande demais (máximo 2 MB).").Write(w)
			return
		}
		BadRequestError("Formato de requisição inválido.").Write(w)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, applog.OpImport, errNoFile)
		return
	}
	defer file.Close()

	result, err := csvio.Import(file, s.now())
	if err != nil {
		s.fail(w, r, applog.OpImport, err)
		return
	}
	ledger, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	preview := importPreview{Filename: header.Filename, Rows: make([]gridRow, 0, len(result.Rows))}
	for _, row := range result.Rows {
		preview.Rows = append(preview.Rows, gridRowOf(row.TempID, row.Line, row.Transaction))
	}
	token := uuid.NewString()
	s.previews.Set(previewKey(userID(r), token), preview)

	view := newImportPreviewView(token, preview, ledger.Cards)
	body, err := s.partialBody("import_preview", view)
	if err != nil {
		s.renderFailed(w, r, "import_preview", err)
		return
	}
	NewHTMXResponse().
		TriggerNotification(NotificationInfo, fmt.Sprintf("%d linhas lidas. Revise antes de importar.", len(result.Rows)), 4000).
		BodyHTML(body).
		Write(w)
}

// handleImportCommit imports the kept rows with the cells as edited. Rows
// that fail stay in the preview so they can be fixed and sent again.
func (s *Server) handleImportCommit(w http.ResponseWriter, r *http.Request) {
	form, errResp := ParseGridBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	uid := userID(r)
	token := form.Get("token")
	key := previewKey(uid, token)
	preview, ok := s.previews.Get(key)
	if !ok {
		s.fail(w, r, applog.OpImport, errPreviewExpired)
		return
	}

	keep := make(map[string]bool)
	for _, id := range form.Values("keep") {
		keep[id] = true
	}
	var (
		rows     []csvio.ImportedRow
		rejected []gridRow
		typed    = make(map[string]gridRow)
	)
	for _, prev := range preview.Rows {
		if !keep[prev.Key] {
			continue
		}
		row := gridRowFromForm(form, prev.Key, prev)
		row.ID = ""
		t, err := row.transaction()
		if err != nil {
			row.Error = errorMessage(err)
			rejected = append(rejected, row)
			continue
		}
		typed[row.Key] = row
		rows = append(rows, csvio.ImportedRow{TempID: row.Key, Line: row.Line, IsNew: true, Transaction: t})
	}
	if len(rows) == 0 && len(rejected) == 0 {
		s.fail(w, r, applog.OpImport, csvio.ErrNothingImported)
		return
	}

	var (
		report services.BatchReport
		err    = error(csvio.ErrNothingImported)
	)
	if len(rows) > 0 {
		report, err = s.ledger.ImportTransactions(r.Context(), uid, rows, form.Get("card_id"))
		if err != nil && len(report.Results) == 0 {
			s.fail(w, r, applog.OpImport, err)
			return
		}
	}
	for _, res := range report.Failed() {
		row := typed[res.TempID]
		row.Error = errorMessage(res.Err)
		rejected = append(rejected, row)
	}
	slices.SortFunc(rejected, func(a, b gridRow) int { return cmp.Compare(a.Line, b.Line) })

	view := importResultView{Saved: report.Saved()}
	if len(rejected) > 0 {
		rest := importPreview{Filename: preview.Filename, Rows: rejected}
		s.previews.Set(key, rest)
		ledger, ok := s.snapshot(w, r)
		if !ok {
			return
		}
		retry := newImportPreviewView(token, rest, ledger.Cards)
		retry.Retry = true
		view.Retry = &retry
	} else {
		s.previews.Delete(key)
	}

	body, renderErr := s.partialBody("import_result", view)
	if renderErr != nil {
		s.renderFailed(w, r, "import_result", renderErr)
		return
	}

	resp := NewHTMXResponse().BodyHTML(body)
	switch {
	case len(view.Saved) == 0:
		resp.Status(statusFor(err)).
			TriggerErrorNotification(errorMessage(csvio.ErrNothingImported) + " Corrija as linhas e envie novamente.")
	case len(rejected) > 0:
		resp.TriggerTransactionsChanged(importedPeriod(report, s.now())).
			TriggerWarningNotification(fmt.Sprintf("%d importadas, %d com erro. Corrija e envie novamente.", len(view.Saved), len(rejected)))
	default:
		resp.TriggerTransactionsChanged(importedPeriod(report, s.now())).
			TriggerSuccessNotification(fmt.Sprintf("%d transações importadas.", len(view.Saved)))
	}
	resp.Write(w)
}

// importedPeriod is the month of the most recent imported row.
func importedPeriod(report services.BatchReport, now time.Time) finance.Period {
	var latest core.Date
	for _, t := range report.Saved() {
		if t.Date.After(latest.Time) {
			latest = t.Date
		}
	}
	if latest.IsZero() {
		return finance.PeriodOf(now)
	}
	return finance.PeriodOf(latest.Time)
}
