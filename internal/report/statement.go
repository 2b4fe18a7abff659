// Package report builds the monthly statement PDF.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"financas/internal/core"
	"financas/internal/finance"
)

const maxRows = 500

// StatementData is everything printed on one monthly statement.
type StatementData struct {
	Owner        string
	Period       finance.Period
	Summary      finance.Summary
	Categories   []finance.CategoryShare
	Transactions []core.Transaction
	Cards        []core.CreditCard
	GeneratedAt  time.Time
}

// NewStatementData collects the month's figures from a ledger.
func NewStatementData(owner string, p finance.Period, txs []core.Transaction, cards []core.CreditCard, now time.Time) StatementData {
	return StatementData{
		Owner:        owner,
		Period:       p,
		Summary:      finance.Summarize(txs, p),
		Categories:   finance.MonthCategoryBreakdown(txs, p),
		Transactions: finance.MonthTransactions(txs, p),
		Cards:        cards,
		GeneratedAt:  now,
	}
}

// Statement writes the PDF for d to w.
func Statement(w io.Writer, d StatementData) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetTitle("Extrato "+d.Period.Label(), true)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		footer := fmt.Sprintf("Gerado em %s - página %d/{nb}", d.GeneratedAt.Format("02/01/2006 15:04"), pdf.PageNo())
		pdf.CellFormat(0, 10, tr(footer), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr("Extrato de "+d.Period.Label()))
	pdf.Ln(9)
	if d.Owner != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(80, 80, 80)
		pdf.Cell(0, 6, tr(d.Owner))
		pdf.Ln(8)
	}

	summary(pdf, tr, d.Summary)
	categories(pdf, tr, d.Categories)
	transactions(pdf, tr, d.Transactions, cardNames(d.Cards))

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render statement: %w", err)
	}
	return nil
}

type translator func(string) string

func summary(pdf *gofpdf.Fpdf, tr translator, s finance.Summary) {
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)

	w := 60.0
	pdf.CellFormat(w, 9, tr("Receitas"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(w, 9, tr("Despesas"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(w, 9, tr("Saldo"), "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(w, 9, tr(s.Income.FormatBRL()), "1", 0, "C", false, 0, "")
	pdf.CellFormat(w, 9, tr(s.Expense.FormatBRL()), "1", 0, "C", false, 0, "")
	pdf.CellFormat(w, 9, tr(s.Balance.FormatBRL()), "1", 1, "C", false, 0, "")
	pdf.Ln(6)
}

func categories(pdf *gofpdf.Fpdf, tr translator, shares []finance.CategoryShare) {
	if len(shares) == 0 {
		return
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr("Despesas por categoria"))
	pdf.Ln(8)

	colW := []float64{90, 50, 40}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.CellFormat(colW[0], 7, tr("Categoria"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(colW[1], 7, tr("Valor"), "1", 0, "R", true, 0, "")
	pdf.CellFormat(colW[2], 7, "%", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, s := range shares {
		pdf.CellFormat(colW[0], 7, tr(s.Category.Label()), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[1], 7, tr(s.Amount.FormatBRL()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[2], 7, fmt.Sprintf("%.1f%%", s.Percent), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)
}

var txCols = []float64{22, 70, 34, 26, 30}

func txHeader(pdf *gofpdf.Fpdf, tr translator) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(245, 245, 245)
	pdf.CellFormat(txCols[0], 7, tr("Data"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(txCols[1], 7, tr("Descrição"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(txCols[2], 7, tr("Categoria"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(txCols[3], 7, tr("Pagamento"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(txCols[4], 7, tr("Valor"), "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 9)
}

func transactions(pdf *gofpdf.Fpdf, tr translator, txs []core.Transaction, cards map[string]string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr("Transações"))
	pdf.Ln(8)

	if len(txs) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 7, tr("Nenhuma transação no período."))
		pdf.Ln(7)
		return
	}

	txHeader(pdf, tr)
	for i, t := range txs {
		if i >= maxRows {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 7, tr(fmt.Sprintf("... mais %d transações", len(txs)-maxRows)), "1", 1, "C", false, 0, "")
			break
		}
		if pdf.GetY() > 270 {
			pdf.AddPage()
			txHeader(pdf, tr)
		}

		amount := t.Amount.FormatBRL()
		if t.IsExpense() {
			amount = "-" + amount
		}
		method := t.PaymentMethod.Label()
		if name, ok := cards[t.CreditCardID]; ok && t.PaymentMethod == core.PaymentCredit {
			method = name
		}

		pdf.SetTextColor(30, 30, 30)
		pdf.CellFormat(txCols[0], 7, t.Date.BR(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(txCols[1], 7, tr(truncate(t.Description, 40)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(txCols[2], 7, tr(t.Category.Label()), "1", 0, "L", false, 0, "")
		pdf.CellFormat(txCols[3], 7, tr(truncate(method, 14)), "1", 0, "L", false, 0, "")
		if t.IsExpense() {
			pdf.SetTextColor(185, 28, 28)
		} else {
			pdf.SetTextColor(21, 128, 61)
		}
		pdf.CellFormat(txCols[4], 7, tr(amount), "1", 1, "R", false, 0, "")
	}
	pdf.SetTextColor(20, 20, 20)
}

func cardNames(cards []core.CreditCard) map[string]string {
	out := make(map[string]string, len(cards))
	for _, c := range cards {
		out[c.ID] = c.Name
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
