package csvio

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"financas/internal/core"
	"financas/internal/finance"
)

// Export labels used in download filenames.
const (
	LabelTransactions = "planilha-financeira"
	LabelMonthly      = "relatorio-mensal"
	LabelCategories   = "relatorio-categorias"
)

// Table is a uniformly shaped list of records ready to be written.
type Table struct {
	Label  string
	Header []string
	Rows   [][]string
}

// Filename returns "<label>_<YYYY-MM-DD>.csv".
func Filename(label string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", label, now.Format(time.DateOnly))
}

// Export writes the header and rows as comma separated text. A field is
// quoted only when it holds a comma, a quote or a line break; inner quotes
// are doubled.
func Export(w io.Writer, header []string, rows [][]string) error {
	bw := bufio.NewWriter(w)
	if err := writeRecord(bw, header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writeRecord(bw, r); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Write exports t.
func (t Table) Write(w io.Writer) error {
	return Export(w, t.Header, t.Rows)
}

func writeRecord(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quoteField(f)); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}

func quoteField(f string) string {
	if !strings.ContainsAny(f, ",\"\r\n") {
		return f
	}
	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}

// TransactionTable lays out transactions in a shape Import reads back.
func TransactionTable(txs []core.Transaction) Table {
	rows := make([][]string, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, []string{
			t.ID,
			t.Date.String(),
			t.Description,
			string(t.Category),
			string(t.PaymentMethod),
			t.Amount.String(),
			string(t.Type),
		})
	}
	return Table{
		Label:  LabelTransactions,
		Header: []string{"id", "data", "descricao", "categoria", "metodo_pagamento", "valor", "tipo"},
		Rows:   rows,
	}
}

// MonthlyTable lays out a trend as month, income, expenses and balance.
func MonthlyTable(trend []finance.MonthSummary) Table {
	rows := make([][]string, 0, len(trend))
	for _, m := range trend {
		rows = append(rows, []string{
			fmt.Sprintf("%s %d", m.Label, m.Period.Year),
			m.Income.String(),
			m.Expense.String(),
			m.Balance.String(),
		})
	}
	return Table{
		Label:  LabelMonthly,
		Header: []string{"mes", "receitas", "despesas", "saldo"},
		Rows:   rows,
	}
}

// CategoryTable lays out a breakdown with percentages as "xx.xx%".
func CategoryTable(shares []finance.CategoryShare) Table {
	rows := make([][]string, 0, len(shares))
	for _, s := range shares {
		rows = append(rows, []string{
			s.Category.Label(),
			s.Amount.String(),
			fmt.Sprintf("%.2f%%", s.Percent),
		})
	}
	return Table{
		Label:  LabelCategories,
		Header: []string{"categoria", "valor", "porcentagem"},
		Rows:   rows,
	}
}
