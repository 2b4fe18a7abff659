// Package csvio reads spreadsheet exports into transaction drafts and writes
// records back out as CSV.
package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"financas/internal/core"
)

var (
	// ErrNothingImported means the file parsed but produced no rows.
	ErrNothingImported = errors.New("nothing imported")
	// ErrUnreadable means the content is not a readable text file.
	ErrUnreadable = errors.New("unreadable csv content")
)

// maxLineBytes bounds a single CSV line.
const maxLineBytes = 1 << 20

// TempIDPrefix marks identifiers that were never assigned by storage.
const TempIDPrefix = "import-"

// ImportedRow is a parsed line waiting to be saved.
type ImportedRow struct {
	TempID      string
	Line        int
	IsNew       bool
	Transaction core.Transaction
}

// ImportResult is the outcome of a parse.
type ImportResult struct {
	Rows    []ImportedRow
	Columns Columns
}

// Columns holds the header index of each role, -1 when absent.
type Columns struct {
	Date        int
	Description int
	Category    int
	Method      int
	Amount      int
	Type        int
}

var headerTokens = []struct {
	role   func(*Columns) *int
	tokens []string
}{
	{func(c *Columns) *int { return &c.Date }, []string{"data", "date"}},
	{func(c *Columns) *int { return &c.Description }, []string{"descri"}},
	{func(c *Columns) *int { return &c.Category }, []string{"categ"}},
	{func(c *Columns) *int { return &c.Method }, []string{"method", "metodo", "pagamento", "payment"}},
	{func(c *Columns) *int { return &c.Amount }, []string{"valor", "amount", "value"}},
	{func(c *Columns) *int { return &c.Type }, []string{"tipo", "type"}},
}

// DetectColumns maps header cells to roles by substring match on the
// lower-cased, accent-free header text. The first matching column wins.
func DetectColumns(header []string) Columns {
	cols := Columns{Date: -1, Description: -1, Category: -1, Method: -1, Amount: -1, Type: -1}
	for _, h := range headerTokens {
		idx := h.role(&cols)
		for i, cell := range header {
			if containsAny(fold(cell), h.tokens) {
				*idx = i
				break
			}
		}
	}
	return cols
}

// Import parses r. now is used for rows whose date cannot be read.
func Import(r io.Reader, now time.Time) (ImportResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return ImportResult{}, ErrUnreadable
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		res    ImportResult
		today  = core.DateOf(now)
		lineNo int
		header bool
	)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		record := splitLine(line)
		if !header {
			res.Columns = DetectColumns(record)
			header = true
			continue
		}
		if blank(record) {
			continue
		}
		res.Rows = append(res.Rows, ImportedRow{
			TempID:      TempIDPrefix + uuid.NewString(),
			Line:        lineNo,
			IsNew:       true,
			Transaction: res.Columns.parseRow(record, today),
		})
	}
	if err := scanner.Err(); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	if len(res.Rows) == 0 {
		return res, ErrNothingImported
	}
	return res, nil
}

// splitLine reads one physical line as CSV. A line the CSV reader rejects,
// such as one with a stray quote, is split on commas instead, so a broken
// line never swallows the lines after it.
func splitLine(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	if record, err := r.Read(); err == nil {
		return record
	}
	record := strings.Split(line, ",")
	for i, f := range record {
		record[i] = strings.Trim(strings.TrimSpace(f), `"`)
	}
	return record
}

func (c Columns) parseRow(record []string, today core.Date) core.Transaction {
	rawAmount := field(record, c.Amount)
	t := core.Transaction{
		Description:   field(record, c.Description),
		Date:          ParseImportDate(field(record, c.Date), today),
		Category:      MapCategory(field(record, c.Category)),
		PaymentMethod: MapPaymentMethod(field(record, c.Method)),
		Amount:        ParseImportAmount(rawAmount),
	}
	if c.Type >= 0 {
		t.Type = MapType(field(record, c.Type))
	} else {
		t.Type = InferType(rawAmount)
	}
	return t
}

// ParseImportDate reads day/month/year when the value has slashes, ISO
// layouts otherwise, and falls back to today.
func ParseImportDate(s string, today core.Date) core.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return today
	}
	if strings.Contains(s, "/") {
		if d, ok := parseDayMonthYear(s); ok {
			return d
		}
		return today
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04:05", time.DateTime, "02-01-2006", "02.01.2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t)
		}
	}
	return today
}

func parseDayMonthYear(s string) (core.Date, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return core.Date{}, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i == 2 {
			// tolerate a trailing time, e.g. "15/03/2024 10:00"
			if sp := strings.IndexByte(p, ' '); sp > 0 {
				p = p[:sp]
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return core.Date{}, false
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return core.Date{}, false
	}
	d := core.NewDate(year, time.Month(month), day)
	if d.Day() != day {
		// 31/02 and friends
		return core.Date{}, false
	}
	return d, true
}

// ParseImportAmount keeps digits, separators and signs, parses the result
// and returns its absolute value. Unparseable input yields zero.
func ParseImportAmount(s string) core.Money {
	cleaned := cleanAmount(s)
	d, err := core.ParseDecimal(strings.TrimLeft(cleaned, "+"))
	if err != nil {
		return core.Money{}
	}
	return core.MoneyFromDecimal(d.Abs())
}

// InferType applies the sign rule used when the file has no type column:
// an explicit leading minus is an expense, anything else is income.
func InferType(rawAmount string) core.TxType {
	if strings.HasPrefix(cleanAmount(rawAmount), "-") {
		return core.Expense
	}
	return core.Income
}

// MapType reads a type column value.
func MapType(s string) core.TxType {
	if containsAny(fold(s), []string{"receita", "income", "entrada"}) {
		return core.Income
	}
	return core.Expense
}

// MapPaymentMethod maps free text to a payment method, money by default.
// Debit is checked first so that "cartão de débito" is not read as credit.
func MapPaymentMethod(s string) core.PaymentMethod {
	v := fold(s)
	switch {
	case strings.Contains(v, "debit"):
		return core.PaymentDebit
	case containsAny(v, []string{"credit", "cartao"}):
		return core.PaymentCredit
	case strings.Contains(v, "pix"):
		return core.PaymentPix
	case strings.Contains(v, "transf"):
		return core.PaymentTransfer
	default:
		return core.PaymentMoney
	}
}

var categoryTokens = []struct {
	category core.Category
	tokens   []string
}{
	{core.CategoryFood, []string{"aliment", "mercado", "restaurante", "comida"}},
	{core.CategoryTransport, []string{"transport", "uber", "combust", "gasolina"}},
	{core.CategoryHousing, []string{"casa", "morad", "aluguel"}},
	{core.CategoryLeisure, []string{"lazer"}},
	{core.CategoryHealth, []string{"saude", "farmacia"}},
	{core.CategoryEducation, []string{"educa"}},
	{core.CategorySalary, []string{"salario"}},
}

// MapCategory maps free text to a category, outros by default.
func MapCategory(s string) core.Category {
	v := fold(s)
	if v == "" {
		return core.CategoryOther
	}
	for _, c := range categoryTokens {
		if containsAny(v, c.tokens) {
			return c.category
		}
	}
	return core.CategoryOther
}

func cleanAmount(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == '+' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fold lower-cases s and strips diacritics ("Crédito" -> "credito").
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
