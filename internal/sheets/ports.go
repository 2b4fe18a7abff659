// Package sheets mirrors transactions into a spreadsheet, one tab per year.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"financas/internal/core"
)

var ErrMissingID = errors.New("transaction without id")

// DefaultTab is the base name of the per-year tabs.
const DefaultTab = "Transacoes"

// Mirror is the outbound port used by the sync worker. Both operations are
// idempotent: upserting twice leaves one row, removing a missing id is a no-op.
type Mirror interface {
	Upsert(ctx context.Context, userID string, t core.Transaction) error
	Remove(ctx context.Context, userID string, t core.Transaction) error
}

// TabName returns "<year> <base>".
func TabName(base string, year int) string {
	return fmt.Sprintf("%d %s", year, base)
}
