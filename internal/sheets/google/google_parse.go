package google

import (
	"fmt"
	"strconv"
	"strings"

	"financas/internal/core"
)

// Columns A..J: id, user, date, description, category, type, method, card,
// signed amount, notes.
const lastColumn = "J"

func headerRow() []any {
	return []any{"ID", "Usuario", "Data", "Descricao", "Categoria", "Tipo", "Pagamento", "Cartao", "Valor", "Notas"}
}

func encodeRow(userID string, t core.Transaction) []any {
	amount := t.Amount.Float()
	if t.IsExpense() {
		amount = -amount
	}
	return []any{
		t.ID,
		userID,
		t.Date.String(),
		t.Description,
		t.Category.Label(),
		t.Type.Label(),
		t.PaymentMethod.Label(),
		t.CreditCardID,
		amount,
		t.Notes,
	}
}

// rowIndexByID scans column A values and returns the 1-based row of id, or 0.
func rowIndexByID(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

func rowRange(tab string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteTab(tab), row, lastColumn, row)
}

// isMirrorTab reports whether name looks like "<year> <base>".
func isMirrorTab(name, base string) bool {
	year, rest, ok := strings.Cut(strings.TrimSpace(name), " ")
	if !ok || rest != base || len(year) != 4 {
		return false
	}
	y, err := strconv.Atoi(year)
	return err == nil && y > 1900 && y < 3000
}
