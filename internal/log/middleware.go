package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ContextKey string

const LoggerContextKey ContextKey = "logger"

// Middleware stores logger in the request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLogger(r.Context(), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext returns the request logger, or one backed by slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

func ComponentMiddleware(component string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).WithComponent(component)
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}

// RequestIDMiddleware binds the request id to the context logger.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}

// StructuredLogger emits the recurring records of the app with a fixed shape.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) emit(ctx context.Context, level slog.Level, msg string, fields LogFields) {
	l := sl.logger
	if c, ok := fields[FieldComponent].(string); ok {
		l = l.WithComponent(c)
	}
	l.Logger.Log(ctx, level, msg, l.withComponent(fields.ToSlice())...)
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.emit(ctx, slog.LevelDebug, "HTTP request started", fields)
}

// LogHTTPEnd picks the level from the status class.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.emit(ctx, level, "HTTP request completed", fields)
}

// LogTransactionSaved records a ledger write. Descriptions stay out of the logs.
func (sl *StructuredLogger) LogTransactionSaved(ctx context.Context, op, userID, id, txType, category string, amountCents int64) {
	fields := NewFields().
		WithUser(userID).
		WithEntity("transaction", id).
		WithTransaction(txType, category, amountCents).
		WithOperation(op).
		WithComponent(ComponentLedger)
	sl.emit(ctx, slog.LevelInfo, "Transaction saved", fields)
}

func (sl *StructuredLogger) LogImport(ctx context.Context, userID string, imported, failed int) {
	fields := NewFields().
		WithUser(userID).
		WithOperation(OpImport).
		WithComponent(ComponentImport)
	fields[FieldRows] = imported
	fields[FieldFailed] = failed
	sl.emit(ctx, slog.LevelInfo, "CSV import finished", fields)
}

func (sl *StructuredLogger) LogAuth(ctx context.Context, op, userID, provider string, success bool) {
	fields := NewFields().
		WithUser(userID).
		WithOperation(op).
		WithComponent(ComponentAuth)
	fields[FieldProvider] = provider
	fields[FieldSuccess] = success
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	sl.emit(ctx, level, "Authentication event", fields)
}

func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation).WithComponent(component)
	sl.emit(ctx, slog.LevelError, msg, fields)
}
