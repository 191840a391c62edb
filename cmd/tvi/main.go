// Command tvi scores a season of event data and prints the Tactical
// Versatility Index table as CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/tvi/internal/adapters/csvtable"
	app "github.com/okian/tvi/internal/app"
	"github.com/okian/tvi/internal/config"
	"github.com/okian/tvi/internal/domain/aggregate"
	"github.com/okian/tvi/internal/domain/model"
	"github.com/okian/tvi/internal/domain/scoring"
	"github.com/okian/tvi/pkg/logger"
	"github.com/okian/tvi/pkg/metrics"
)

// Exit codes.
const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		_, _ = os.Stderr.WriteString("tvi: " + err.Error() + "\n")
		os.Exit(exitCode(err))
	}
}

// options are the command line flags.
type options struct {
	events      string
	playTime    string
	out         string
	matches     string
	metricsFile string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("tvi", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.events, "events", "", "events CSV (game_id, team_id, player_id, event_name, x, y)")
	fs.StringVar(&o.playTime, "playtime", "", "playtime CSV (game_id, team_id, player_id, play_time[, position])")
	fs.StringVar(&o.out, "out", "-", "season table output path, - for stdout")
	fs.StringVar(&o.matches, "matches", "", "optional per-match table output path")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile (overrides metrics_file)")
	if err := fs.Parse(args); err != nil {
		return o, fmt.Errorf("%w: %w", errUsage, err)
	}
	if o.events == "" || o.playTime == "" {
		return o, fmt.Errorf("%w: -events and -playtime are required", errUsage)
	}
	return o, nil
}

var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	// Logs go to stderr so the table can go to stdout.
	if err := logger.InitWithWriter(stderr, logger.FormatText); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if cfg.LogFormat != logger.FormatText {
		if err := logger.InitWithWriter(stderr, cfg.LogFormat); err != nil {
			return fmt.Errorf("%w: log_format: %w", config.ErrInvalidConfig, err)
		}
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if o.metricsFile != "" {
		cfg.MetricsFile = o.metricsFile
	}

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}

	cols := csvtable.Columns{
		GameID:    cfg.Columns.GameID,
		TeamID:    cfg.Columns.TeamID,
		PlayerID:  cfg.Columns.PlayerID,
		EventName: cfg.Columns.EventName,
		X:         cfg.Columns.X,
		Y:         cfg.Columns.Y,
		PlayTime:  cfg.Columns.PlayTime,
		Position:  cfg.Columns.Position,
	}

	start := time.Now()
	events, err := readFile(o.events, func(r io.Reader) ([]model.RawActionEvent, error) { return csvtable.ReadEvents(r, cols) })
	if err != nil {
		return err
	}
	playTime, err := readFile(o.playTime, func(r io.Reader) ([]model.PlayTimeRecord, error) { return csvtable.ReadPlayTime(r, cols) })
	if err != nil {
		return err
	}
	log.Info(ctx, "tables loaded",
		logger.Int("events", len(events)),
		logger.Int("playTimeRecords", len(playTime)),
		logger.Duration("took", time.Since(start)),
	)

	res, err := svc.Run(ctx, events, playTime)
	if err != nil {
		return err
	}

	w := csvtable.WithEntropy(cfg.IncludeEntropy)
	if err := writeFile(o.out, stdout, func(out io.Writer) error {
		return csvtable.NewWriter(out, w).WritePlayers(res.Columns, res.Players)
	}); err != nil {
		return err
	}
	if o.matches != "" {
		if err := writeFile(o.matches, stdout, func(out io.Writer) error {
			return csvtable.NewWriter(out, w).WriteMatches(res.MatchColumns, res.Matches)
		}); err != nil {
			return err
		}
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Error(ctx, "metrics textfile not written", logger.String("path", cfg.MetricsFile), logger.Error(err))
		}
	}

	log.Info(ctx, "season table written",
		logger.String("runID", res.RunID.String()),
		logger.Int("players", len(res.Players)),
		logger.String("out", o.out),
	)
	return nil
}

func newService(cfg *config.Config, log logger.Logger) (*app.Service, error) {
	grid, err := cfg.Grid.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: grid: %w", config.ErrInvalidConfig, err)
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithGrid(grid),
		app.WithScorer(scoring.NewScorer(scoring.WithScalingConstant(cfg.ScalingConstant))),
		app.WithAggregator(aggregate.NewAggregator(
			aggregate.WithMinPlayTime(cfg.MinPlayTime),
			aggregate.WithExcludedPositions(cfg.ExcludePositions...),
		)),
	}
	if cfg.DeriveCategories {
		opts = append(opts, app.WithCategories(cfg.Categories, cfg.CategoryTemplate))
	}
	return app.New(opts...)
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func writeFile(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errUsage),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrLoadConfig),
		errors.Is(err, csvtable.ErrMissingColumns),
		errors.Is(err, csvtable.ErrInvalidValue),
		app.IsInputError(err):
		return exitUsage
	default:
		return exitFailure
	}
}
