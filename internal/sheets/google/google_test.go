package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	"financas/internal/core"
	"financas/internal/sheets"
)

// fakeSheets serves the handful of Sheets API calls the client makes.
type fakeSheets struct {
	mu    sync.Mutex
	tabs  map[string][][]string
	order []string
	calls []string
}

var rangeRe = regexp.MustCompile(`^'(.*)'!A(\d*):[A-Z](\d*)$`)

func newFakeSheets(tabs ...string) *fakeSheets {
	f := &fakeSheets{tabs: map[string][][]string{}}
	for _, t := range tabs {
		f.addTab(t)
	}
	return f
}

func (f *fakeSheets) addTab(name string) {
	if _, ok := f.tabs[name]; !ok {
		f.tabs[name] = nil
		f.order = append(f.order, name)
	}
}

func (f *fakeSheets) rows(tab string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabs[tab]
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-id")
	f.calls = append(f.calls, r.Method+" "+path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case path == "" && r.Method == http.MethodGet:
		type props struct {
			Title string `json:"title"`
		}
		type sheet struct {
			Properties props `json:"properties"`
		}
		var out struct {
			Sheets []sheet `json:"sheets"`
		}
		for _, name := range f.order {
			out.Sheets = append(out.Sheets, sheet{Properties: props{Title: name}})
		}
		_ = json.NewEncoder(w).Encode(out)

	case path == ":batchUpdate":
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			f.addTab(rq.AddSheet.Properties.Title)
		}
		_, _ = w.Write([]byte(`{}`))

	case strings.HasPrefix(path, "/values/"):
		rng := strings.TrimPrefix(path, "/values/")
		action := ""
		if i := strings.LastIndex(rng, ":"); i >= 0 && !strings.Contains(rng[i:], "!") && (rng[i+1:] == "append" || rng[i+1:] == "clear") {
			action = rng[i+1:]
			rng = rng[:i]
		}
		m := rangeRe.FindStringSubmatch(rng)
		if m == nil {
			http.Error(w, `{"error":{"message":"bad range"}}`, http.StatusBadRequest)
			return
		}
		tab := m[1]
		if _, ok := f.tabs[tab]; !ok {
			http.Error(w, `{"error":{"message":"unknown tab"}}`, http.StatusBadRequest)
			return
		}
		row, _ := strconv.Atoi(m[2])

		switch {
		case r.Method == http.MethodGet:
			values := make([][]string, 0, len(f.tabs[tab]))
			for _, cols := range f.tabs[tab] {
				if len(cols) == 0 {
					values = append(values, []string{})
					continue
				}
				values = append(values, cols[:1])
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": values})
		case action == "clear":
			f.tabs[tab][row-1] = nil
			_, _ = w.Write([]byte(`{}`))
		default:
			var vr struct {
				Values [][]any `json:"values"`
			}
			_ = json.NewDecoder(r.Body).Decode(&vr)
			cols := make([]string, len(vr.Values[0]))
			for i, v := range vr.Values[0] {
				cols[i] = fmt.Sprint(v)
			}
			if action == "append" {
				f.tabs[tab] = append(f.tabs[tab], cols)
			} else {
				for len(f.tabs[tab]) < row {
					f.tabs[tab] = append(f.tabs[tab], nil)
				}
				f.tabs[tab][row-1] = cols
			}
			_, _ = w.Write([]byte(`{}`))
		}

	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return c
}

func tx(id string, year int, cents int64) core.Transaction {
	return core.Transaction{
		ID:            id,
		Description:   "Mercado",
		Amount:        core.Money{Cents: cents},
		Date:          core.NewDate(year, 3, 5),
		Type:          core.Expense,
		Category:      core.CategoryFood,
		PaymentMethod: core.PaymentDebit,
	}
}

func TestClient_UpsertCreatesTabAndAppends(t *testing.T) {
	fake := newFakeSheets()
	c := newTestClient(t, fake)

	require.NoError(t, c.Upsert(context.Background(), "u1", tx("t1", 2024, 32050)))

	rows := fake.rows("2024 Transacoes")
	require.Len(t, rows, 2)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, []string{"t1", "u1", "2024-03-05", "Mercado", "Alimentação", "Despesa", "Débito", "", "-320.5", ""}, rows[1])
}

func TestClient_UpsertUpdatesExistingRow(t *testing.T) {
	fake := newFakeSheets()
	c := newTestClient(t, fake)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, "u1", tx("t1", 2024, 1000)))
	require.NoError(t, c.Upsert(ctx, "u1", tx("t2", 2024, 2000)))
	require.NoError(t, c.Upsert(ctx, "u1", tx("t1", 2024, 1500)))

	rows := fake.rows("2024 Transacoes")
	require.Len(t, rows, 3)
	assert.Equal(t, "t1", rows[1][0])
	assert.Equal(t, "-15", rows[1][8])
}

func TestClient_UpsertMovesBetweenYears(t *testing.T) {
	fake := newFakeSheets()
	c := newTestClient(t, fake)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, "u1", tx("t1", 2023, 1000)))
	require.NoError(t, c.Upsert(ctx, "u1", tx("t1", 2024, 1000)))

	old := fake.rows("2023 Transacoes")
	require.Len(t, old, 2)
	assert.Empty(t, old[1])
	assert.Equal(t, "t1", fake.rows("2024 Transacoes")[1][0])
}

func TestClient_Remove(t *testing.T) {
	fake := newFakeSheets()
	c := newTestClient(t, fake)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, "u1", tx("t1", 2024, 1000)))
	require.NoError(t, c.Upsert(ctx, "u1", tx("t2", 2024, 2000)))
	require.NoError(t, c.Remove(ctx, "u1", tx("t1", 2024, 1000)))

	rows := fake.rows("2024 Transacoes")
	assert.Empty(t, rows[1])
	assert.Equal(t, "t2", rows[2][0])

	// removing again or from a year without a tab is a no-op
	assert.NoError(t, c.Remove(ctx, "u1", tx("t1", 2024, 1000)))
	assert.NoError(t, c.Remove(ctx, "u1", tx("t9", 2019, 1000)))
}

func TestClient_RejectsMissingID(t *testing.T) {
	c := newTestClient(t, newFakeSheets())
	assert.ErrorIs(t, c.Upsert(context.Background(), "u1", tx("", 2024, 1)), sheets.ErrMissingID)
	assert.ErrorIs(t, c.Remove(context.Background(), "u1", tx("", 2024, 1)), sheets.ErrMissingID)
}

func TestNew_Config(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.EqualError(t, err, "missing spreadsheet id")

	_, err = New(context.Background(), Config{SpreadsheetID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")

	_, err = New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/nonexistent/sa.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestRowHelpers(t *testing.T) {
	values := [][]any{{"ID"}, {}, {" t2 "}, {"t3"}}
	assert.Equal(t, 3, rowIndexByID(values, "t2"))
	assert.Equal(t, 0, rowIndexByID(values, "t9"))

	assert.Equal(t, "'2024 Transacoes'!A7:J7", rowRange("2024 Transacoes", 7))
	assert.Equal(t, "'D''Avila'", quoteTab("D'Avila"))

	tests := []struct {
		name string
		want bool
	}{
		{"2024 Transacoes", true},
		{"1899 Transacoes", false},
		{"Transacoes", false},
		{"2024 Dashboard", false},
		{"24 Transacoes", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isMirrorTab(tt.name, "Transacoes"))
		})
	}
}

func TestEncodeRow_IncomeIsPositive(t *testing.T) {
	in := tx("t1", 2024, 500000)
	in.Type = core.Income
	in.Category = core.CategorySalary
	in.PaymentMethod = core.PaymentCredit
	in.CreditCardID = "c1"

	row := encodeRow("u1", in)
	assert.Equal(t, 5000.0, row[8])
	assert.Equal(t, "c1", row[7])
}
