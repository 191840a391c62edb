// Package testevents generates reproducible synthetic seasons for exercising
// the pipeline end to end.
package testevents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/tvi/internal/adapters/csvtable"
	"github.com/okian/tvi/pkg/logger"
)

// Output file names inside Config.OutputDir.
const (
	EventsFile   = "events.csv"
	PlayTimeFile = "playtime.csv"

	directoryPermission = 0o750
)

// Run generates a season and writes it as CSV into cfg.OutputDir.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "generating synthetic season",
		logger.Int("games", cfg.Games),
		logger.Int("playersPerTeam", cfg.PlayersPerTeam),
		logger.Int("maxEventsPerPlayer", cfg.MaxEventsPerPlayer),
		logger.Any("seed", cfg.Seed),
		logger.String("outputDir", cfg.OutputDir),
	)

	season, err := Generate(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("season generation failed: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, directoryPermission); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	cols := csvtable.DefaultColumns()
	if err := writeTable(filepath.Join(cfg.OutputDir, EventsFile), func(w *csvtable.Writer) error {
		return w.WriteEvents(cols, season.Events)
	}); err != nil {
		return nil, err
	}
	if err := writeTable(filepath.Join(cfg.OutputDir, PlayTimeFile), func(w *csvtable.Writer) error {
		return w.WritePlayTime(cols, season.PlayTime)
	}); err != nil {
		return nil, err
	}

	stats.Games = cfg.Games
	stats.Events = len(season.Events)
	stats.PlayTimeRecords = len(season.PlayTime)
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	logger.Get().Info(ctx, "synthetic season written",
		logger.Int("events", stats.Events),
		logger.Int("playTimeRecords", stats.PlayTimeRecords),
		logger.Duration("took", stats.Duration),
	)
	return stats, nil
}

func writeTable(path string, write func(*csvtable.Writer) error) error {
	f, err := os.Create(path) //nolint:gosec // path built from operator-supplied directory
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(csvtable.NewWriter(f)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
