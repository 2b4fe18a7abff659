package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"financas/internal/store/memory"
	"financas/internal/store/sqlite"
	"financas/internal/store/supabase"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SupabaseBackend:
		return f.createSupabaseBackend(ctx, config)
	default:
		return f.createMemoryBackend()
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := sqlite.New(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Backend: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createSupabaseBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := supabase.New(config.SupabaseURL, config.SupabaseKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
	}

	// A failed ping is not fatal: the project may still be waking up.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		f.logger.Warn("Supabase not reachable at startup", "error", err)
	}

	f.logger.Info("Initialized Supabase backend", "url", config.SupabaseURL)
	return &BackendResult{Backend: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")
	return &BackendResult{Backend: memory.New()}, nil
}
