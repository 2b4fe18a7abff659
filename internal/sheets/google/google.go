package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"financas/internal/core"
	"financas/internal/sheets"
)

type Config struct {
	SpreadsheetID   string
	TabBase         string
	CredentialsJSON string
	CredentialsFile string
}

// Client writes transaction rows through the Sheets API.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	base          string

	mu   sync.Mutex
	tabs map[string]bool
}

var _ sheets.Mirror = (*Client)(nil)

// New creates a client authenticated with service account credentials.
// Extra options are appended after the credentials, so tests can point the
// client at a local endpoint.
func New(ctx context.Context, cfg Config, extra ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	base := strings.TrimSpace(cfg.TabBase)
	if base == "" {
		base = sheets.DefaultTab
	}

	opts, err := credentialOptions(cfg)
	if err != nil && len(extra) == 0 {
		return nil, err
	}
	opts = append(opts, extra...)

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID, "tab_base", base)

	return &Client{svc: svc, spreadsheetID: spreadsheetID, base: base}, nil
}

func credentialOptions(cfg Config) ([]goption.ClientOption, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// Upsert overwrites the row holding t.ID in the tab of t's year, or appends
// one. A row left in another year's tab by a date change is cleared.
func (c *Client) Upsert(ctx context.Context, userID string, t core.Transaction) error {
	if t.ID == "" {
		return sheets.ErrMissingID
	}
	tab := sheets.TabName(c.base, t.Date.Year())
	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	vr := &gsheet.ValueRange{Values: [][]any{encodeRow(userID, t)}}
	row, err := c.findRow(ctx, tab, t.ID)
	if err != nil {
		return err
	}
	if row > 0 {
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rowRange(tab, row), vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update row %d in %s: %w", row, tab, err)
		}
		return nil
	}

	if err := c.clearElsewhere(ctx, tab, t.ID); err != nil {
		return err
	}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, quoteTab(tab)+"!A:"+lastColumn, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", tab, err)
	}
	return nil
}

// Remove clears the row holding t.ID. Missing rows are ignored.
func (c *Client) Remove(ctx context.Context, _ string, t core.Transaction) error {
	if t.ID == "" {
		return sheets.ErrMissingID
	}
	tab := sheets.TabName(c.base, t.Date.Year())
	known, err := c.hasTab(ctx, tab)
	if err != nil {
		return err
	}
	if known {
		row, err := c.findRow(ctx, tab, t.ID)
		if err != nil {
			return err
		}
		if row > 0 {
			return c.clearRow(ctx, tab, row)
		}
	}
	return c.clearElsewhere(ctx, tab, t.ID)
}

func (c *Client) clearRow(ctx context.Context, tab string, row int) error {
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rowRange(tab, row), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear row %d in %s: %w", row, tab, err)
	}
	return nil
}

// clearElsewhere removes id from every mirror tab except skip.
func (c *Client) clearElsewhere(ctx context.Context, skip, id string) error {
	if err := c.loadTabs(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	var others []string
	for name := range c.tabs {
		if name != skip && isMirrorTab(name, c.base) {
			others = append(others, name)
		}
	}
	c.mu.Unlock()

	for _, tab := range others {
		row, err := c.findRow(ctx, tab, id)
		if err != nil {
			return err
		}
		if row > 0 {
			if err := c.clearRow(ctx, tab, row); err != nil {
				return err
			}
		}
	}
	return nil
}

// findRow returns the 1-based row whose column A equals id, or 0.
func (c *Client) findRow(ctx context.Context, tab, id string) (int, error) {
	rng := quoteTab(tab) + "!A:A"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	return rowIndexByID(resp.Values, id), nil
}

func (c *Client) loadTabs(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.tabs != nil
	c.mu.Unlock()
	if loaded {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet tabs: %w", err)
	}
	tabs := make(map[string]bool, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			tabs[sh.Properties.Title] = true
		}
	}

	c.mu.Lock()
	c.tabs = tabs
	c.mu.Unlock()
	return nil
}

func (c *Client) hasTab(ctx context.Context, tab string) (bool, error) {
	if err := c.loadTabs(ctx); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tabs[tab], nil
}

// ensureTab creates the tab with its header row on first use.
func (c *Client) ensureTab(ctx context.Context, tab string) error {
	ok, err := c.hasTab(ctx, tab)
	if err != nil || ok {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create tab %s: %w", tab, err)
	}

	header := &gsheet.ValueRange{Values: [][]any{headerRow()}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rowRange(tab, 1), header).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header of %s: %w", tab, err)
	}
	slog.InfoContext(ctx, "Created spreadsheet tab", "tab", tab)

	c.mu.Lock()
	c.tabs[tab] = true
	c.mu.Unlock()
	return nil
}
