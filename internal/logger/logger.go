// Package logger sets up structured JSON logging via log/slog and carries a
// per-build ID through context so one valuation build's log lines can be
// correlated.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type ctxKey string

const buildIDKey ctxKey = "build_id"

// Init creates a JSON logger for the given service and installs it as the
// slog default.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithBuildID stores a valuation-build ID in the context.
func WithBuildID(ctx context.Context, buildID string) context.Context {
	return context.WithValue(ctx, buildIDKey, buildID)
}

// BuildID extracts the build ID from context. Returns "" if not set.
func BuildID(ctx context.Context) string {
	if v, ok := ctx.Value(buildIDKey).(string); ok {
		return v
	}
	return ""
}

// GenerateBuildID creates a build ID from the account and start timestamp.
func GenerateBuildID(actID string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", actID, ts.UnixNano())
}

// WithBuild returns slog attributes including the build ID from context.
// Usage: slog.Info("msg", logger.WithBuild(ctx)...)
func WithBuild(ctx context.Context) []any {
	id := BuildID(ctx)
	if id == "" {
		return nil
	}
	return []any{slog.String("build_id", id)}
}
