package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"financas/internal/core"
	"financas/internal/csvio"
)

// batchConcurrency caps in-flight store calls for one batch.
const batchConcurrency = 4

// RowEdit is one row of a bulk save. An empty ID adds a transaction; any
// other ID replaces the stored one.
type RowEdit struct {
	TempID      string
	Line        int
	Transaction core.Transaction
}

type RowResult struct {
	TempID      string
	Line        int
	Transaction core.Transaction
	Err         error
}

type BatchReport struct {
	Results []RowResult
}

func (r BatchReport) Saved() []core.Transaction {
	var out []core.Transaction
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res.Transaction)
		}
	}
	return out
}

func (r BatchReport) Failed() []RowResult {
	var out []RowResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// SaveRows commits every row independently, so one rejected row never blocks
// the rest. Results keep the order of edits.
func (s *LedgerService) SaveRows(ctx context.Context, userID string, edits []RowEdit) (BatchReport, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return BatchReport{}, err
	}

	results := make([]RowResult, len(edits))
	var g errgroup.Group
	g.SetLimit(batchConcurrency)

	for i, e := range edits {
		g.Go(func() error {
			res := RowResult{TempID: e.TempID, Line: e.Line}
			if e.Transaction.ID == "" {
				res.Transaction, res.Err = s.AddTransaction(ctx, userID, e.Transaction)
			} else {
				res.Transaction, res.Err = s.UpdateTransaction(ctx, userID, e.Transaction.ID, replaceAll(e.Transaction))
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return BatchReport{Results: results}, nil
}

// replaceAll turns a full record into a patch that overwrites every field.
func replaceAll(t core.Transaction) core.TransactionPatch {
	return core.TransactionPatch{
		Description:   &t.Description,
		Amount:        &t.Amount,
		Date:          &t.Date,
		Category:      &t.Category,
		Notes:         &t.Notes,
		Type:          &t.Type,
		PaymentMethod: &t.PaymentMethod,
		CreditCardID:  &t.CreditCardID,
	}
}

// ImportTransactions stores imported rows as new transactions. Credit rows
// carry no card in the file: they take cardID, or the user's only card, and
// fail on their own otherwise.
func (s *LedgerService) ImportTransactions(ctx context.Context, userID string, rows []csvio.ImportedRow, cardID string) (BatchReport, error) {
	if len(rows) == 0 {
		return BatchReport{}, csvio.ErrNothingImported
	}

	ledger, err := s.Snapshot(ctx, userID)
	if err != nil {
		return BatchReport{}, err
	}
	fallback := cardID
	if fallback == "" && len(ledger.Cards) == 1 {
		fallback = ledger.Cards[0].ID
	}

	edits := make([]RowEdit, 0, len(rows))
	for _, row := range rows {
		t := row.Transaction
		t.ID = ""
		if t.PaymentMethod == core.PaymentCredit && t.CreditCardID == "" {
			t.CreditCardID = fallback
		}
		edits = append(edits, RowEdit{TempID: row.TempID, Line: row.Line, Transaction: t})
	}

	report, err := s.SaveRows(ctx, userID, edits)
	if err != nil {
		return report, err
	}
	s.events.LogImport(ctx, userID, len(report.Saved()), len(report.Failed()))
	if len(report.Saved()) == 0 {
		return report, errors.Join(csvio.ErrNothingImported, firstError(report))
	}
	return report, nil
}

func firstError(r BatchReport) error {
	for _, res := range r.Results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}
