package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nysm-labs/tft-curator/internal/checkpoint"
	"github.com/nysm-labs/tft-curator/internal/config"
	"github.com/nysm-labs/tft-curator/internal/envfile"
	"github.com/nysm-labs/tft-curator/internal/model"
	"github.com/nysm-labs/tft-curator/internal/paths"
	"github.com/nysm-labs/tft-curator/internal/registry"
	"github.com/nysm-labs/tft-curator/internal/riot"
)

// multiHandler fans every log record out to both a human-readable stderr
// handler and a machine-readable JSON file handler, so a collection run
// leaves a structured per-cycle log on disk while the operator still
// sees text on the console.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, record.Level) {
			if err := h.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// buildLogger returns the slog.TextHandler-on-stderr logger every command
// uses. When logPath is non-empty, a JSON file handler at that path is
// fanned in alongside it. The returned func closes the log file, if one
// was opened.
func buildLogger(verbose bool, logPath string) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if logPath == "" {
		return slog.New(textHandler), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("cli: create log dir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("cli: open log file: %w", err)
	}
	jsonHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	logger := slog.New(&multiHandler{handlers: []slog.Handler{textHandler, jsonHandler}})
	return logger, func() { f.Close() }, nil
}

// resolveAPIKey loads RIOT_API_KEY from the environment, falling back to a
// .env file in the working directory.
func resolveAPIKey(root string) (string, error) {
	if err := envfile.Load(filepath.Join(root, ".env")); err != nil {
		return "", err
	}
	key := os.Getenv("RIOT_API_KEY")
	if key == "" {
		return "", fmt.Errorf("cli: RIOT_API_KEY is not set (environment or .env)")
	}
	return key, nil
}

// buildRiotClient constructs the rate-limited client from a loaded config.
func buildRiotClient(cfg *config.Config, apiKey string) *riot.Client {
	return riot.New(riot.Config{
		APIKey: apiKey,
		BaseURL: fmt.Sprintf("https://%s.api.riotgames.com", cfg.API.Region),
		ShortLimit: cfg.API.RateLimit.ShortWindowLimit,
		ShortWindowSeconds: cfg.API.RateLimit.ShortWindowSeconds,
		LongLimit: cfg.API.RateLimit.LongWindowLimit,
		LongWindowSeconds: cfg.API.RateLimit.LongWindowSeconds,
	})
}

// openRegistry opens the registry database under root.
func openRegistry(root string) (*registry.Store, error) {
	return registry.Open(filepath.Join(root, "registry.db"))
}

// openCheckpoints opens the checkpoint store rooted at layout's canonical
// checkpoint directory.
func openCheckpoints(layout paths.Layout) (*checkpoint.Store, error) {
	return checkpoint.NewStore(layout.CheckpointDir())
}

// cycleWindow computes [windowStart, windowEnd) for a cycleId formatted
// YYYYMMDD, per the collection method's window policy: a
// daily cycle covers the named UTC day, a weekly cycle the seven days
// ending on it.
func cycleWindow(cycleID string, method model.CollectionMethod) (time.Time, time.Time, error) {
	day, err := time.Parse("20060102", cycleID)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("cli: cycle id %q is not a YYYYMMDD date: %w", cycleID, err)
	}
	day = day.UTC()
	windowEnd := day.Add(24 * time.Hour)
	windowStart := day
	if method == model.MethodWeekly {
		windowStart = windowEnd.Add(-7 * 24 * time.Hour)
	}
	return windowStart, windowEnd, nil
}
