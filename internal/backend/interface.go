package backend

import (
	"context"

	"financas/internal/store"
)

// CleanupFunc releases what the backend holds open.
type CleanupFunc func() error

type BackendResult struct {
	Backend store.Backend
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string

	SupabaseURL string
	SupabaseKey string
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	SupabaseBackend BackendType = "supabase"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, SupabaseBackend:
		return true
	default:
		return false
	}
}
