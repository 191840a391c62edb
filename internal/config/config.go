// Package config defines the pipeline configuration and its loading hooks.
//
// Conventions:
//   - One immutable Config value is built per run and passed to every stage.
//   - New returns defaults; Load layers a YAML file and env vars on top.
//   - Errors wrap this package's sentinels so callers can use errors.Is.
package config

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/okian/tvi/internal/domain/category"
	"github.com/okian/tvi/internal/domain/scoring"
	"github.com/okian/tvi/internal/domain/zone"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// WorkerCount sets the number of per-game profile workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the partition queue feeding the workers.
	QueueSize int `koanf:"queue_size"`

	// ScalingConstant is C in TVI = C * diversity / playtime.
	ScalingConstant float64 `koanf:"scaling_constant"`

	// IncludeEntropy adds shannon_entropy and TVI_entropy to the output.
	IncludeEntropy bool `koanf:"include_entropy"`

	Grid    GridConfig   `koanf:"grid"`
	Columns ColumnConfig `koanf:"columns"`

	// DeriveCategories replaces raw action x zone columns in the season
	// output with category x zone columns built from Categories.
	DeriveCategories bool                `koanf:"derive_categories"`
	Categories       []category.Category `koanf:"categories"`
	CategoryTemplate string              `koanf:"category_template"`

	// MinPlayTime keeps only players above this many season minutes.
	MinPlayTime float64 `koanf:"min_play_time"`

	// ExcludePositions drops players whose main position is listed.
	ExcludePositions []string `koanf:"exclude_positions"`

	// MetricsFile, when set, receives a Prometheus textfile after each run.
	MetricsFile string `koanf:"metrics_file"`
}

// GridConfig describes the pitch discretization.
type GridConfig struct {
	Rows    int      `koanf:"rows"`
	Cols    int      `koanf:"cols"`
	ZoneMap []string `koanf:"zone_map"`
	XMin    float64  `koanf:"x_min"`
	XMax    float64  `koanf:"x_max"`
	YMin    float64  `koanf:"y_min"`
	YMax    float64  `koanf:"y_max"`
}

// Build returns the validated zone grid.
func (g GridConfig) Build() (*zone.Grid, error) {
	return zone.NewGrid(
		zone.WithShape(g.Rows, g.Cols),
		zone.WithZoneMap(g.ZoneMap),
		zone.WithXRange(g.XMin, g.XMax),
		zone.WithYRange(g.YMin, g.YMax),
	)
}

// ColumnConfig names the input table columns.
type ColumnConfig struct {
	GameID    string `koanf:"game_id"`
	TeamID    string `koanf:"team_id"`
	PlayerID  string `koanf:"player_id"`
	EventName string `koanf:"event_name"`
	X         string `koanf:"x"`
	Y         string `koanf:"y"`
	PlayTime  string `koanf:"play_time"`
	Position  string `koanf:"position"`
}

// New creates a Config populated with defaults. Context is accepted first to
// follow the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		WorkerCount:     runtime.NumCPU(),
		QueueSize:       1024,
		ScalingConstant: scoring.DefaultScalingConstant,
		IncludeEntropy:  true,
		Grid: GridConfig{
			Rows:    zone.DefaultRows,
			Cols:    zone.DefaultCols,
			ZoneMap: append([]string(nil), zone.DefaultZoneMap...),
			XMin:    zone.DefaultMin,
			XMax:    zone.DefaultMax,
			YMin:    zone.DefaultMin,
			YMax:    zone.DefaultMax,
		},
		Columns: ColumnConfig{
			GameID:    "game_id",
			TeamID:    "team_id",
			PlayerID:  "player_id",
			EventName: "event_name",
			X:         "x",
			Y:         "y",
			PlayTime:  "play_time",
			Position:  "position",
		},
		Categories:       category.Defaults(),
		CategoryTemplate: category.DefaultTemplate,
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker_count must be at least 1, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be at least 1, got %d", ErrInvalidConfig, c.QueueSize)
	}
	if !(c.ScalingConstant > 0) || math.IsInf(c.ScalingConstant, 0) {
		return fmt.Errorf("%w: scaling_constant must be a positive number, got %g", ErrInvalidConfig, c.ScalingConstant)
	}
	if c.MinPlayTime < 0 {
		return fmt.Errorf("%w: min_play_time must not be negative", ErrInvalidConfig)
	}

	grid, err := c.Grid.Build()
	if err != nil {
		return fmt.Errorf("%w: grid: %w", ErrInvalidConfig, err)
	}

	cols := map[string]string{
		"game_id":    c.Columns.GameID,
		"team_id":    c.Columns.TeamID,
		"player_id":  c.Columns.PlayerID,
		"event_name": c.Columns.EventName,
		"x":          c.Columns.X,
		"y":          c.Columns.Y,
		"play_time":  c.Columns.PlayTime,
	}
	for key, name := range cols {
		if name == "" {
			return fmt.Errorf("%w: columns.%s must not be empty", ErrInvalidConfig, key)
		}
	}

	if c.DeriveCategories {
		if _, err := category.NewDeriver(c.Categories, c.CategoryTemplate, grid.Zones()); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
