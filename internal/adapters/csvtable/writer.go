package csvtable

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/okian/tvi/internal/domain/model"
)

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithEntropy includes the shannon_entropy and TVI_entropy columns.
func WithEntropy(include bool) Option {
	return func(w *Writer) {
		w.includeEntropy = include
	}
}

// Writer renders result tables as CSV.
type Writer struct {
	out            io.Writer
	includeEntropy bool
}

// NewWriter creates a writer. Entropy columns are included by default.
func NewWriter(out io.Writer, opts ...Option) *Writer {
	w := &Writer{out: out, includeEntropy: true}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WritePlayers writes the season table: player_id, one column per metric,
// action_diversity, shannon_entropy, TVI, TVI_entropy, position, play_time.
// Null values are written as empty cells.
func (w *Writer) WritePlayers(columns []string, players []model.PlayerAggregateRecord) error {
	cw := csv.NewWriter(w.out)

	header := append([]string{"player_id"}, columns...)
	header = append(header, "action_diversity")
	if w.includeEntropy {
		header = append(header, "shannon_entropy")
	}
	header = append(header, "TVI")
	if w.includeEntropy {
		header = append(header, "TVI_entropy")
	}
	header = append(header, "position", "play_time")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, p := range players {
		if len(p.Metrics) != len(columns) {
			return fmt.Errorf("player %s: %d metrics for %d columns", p.PlayerID, len(p.Metrics), len(columns))
		}
		row := make([]string, 0, len(header))
		row = append(row, p.PlayerID)
		for _, m := range p.Metrics {
			row = append(row, nullFloat(m))
		}
		row = append(row, nullFloat(p.ActionDiversity))
		if w.includeEntropy {
			row = append(row, nullFloat(p.ShannonEntropy))
		}
		row = append(row, nullFloat(p.TVI))
		if w.includeEntropy {
			row = append(row, nullFloat(p.TVIEntropy))
		}
		row = append(row, p.Position, formatFloat(p.PlayTime))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("player %s: %w", p.PlayerID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteMatches writes the per-match table: the match key, one column per
// composite key, action_diversity, shannon_entropy, play_time, position,
// TVI and TVI_entropy.
func (w *Writer) WriteMatches(columns []string, matches []model.PlayerMatchTVIRecord) error {
	cw := csv.NewWriter(w.out)

	header := append([]string{"game_id", "team_id", "player_id"}, columns...)
	header = append(header, "action_diversity")
	if w.includeEntropy {
		header = append(header, "shannon_entropy")
	}
	header = append(header, "play_time", "position", "TVI")
	if w.includeEntropy {
		header = append(header, "TVI_entropy")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, m := range matches {
		row := make([]string, 0, len(header))
		row = append(row, m.Key.GameID, m.Key.TeamID, m.Key.PlayerID)
		for _, col := range columns {
			row = append(row, strconv.Itoa(m.Counts[col]))
		}
		row = append(row, strconv.Itoa(m.ActionDiversity))
		if w.includeEntropy {
			row = append(row, formatFloat(m.ShannonEntropy))
		}
		row = append(row, formatFloat(m.PlayTime), m.Position, formatFloat(m.TVI))
		if w.includeEntropy {
			row = append(row, formatFloat(m.TVIEntropy))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("match %s/%s: %w", m.Key.GameID, m.Key.PlayerID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}

// WriteEvents writes an events table using the given column names.
func (w *Writer) WriteEvents(cols Columns, events []model.RawActionEvent) error {
	cw := csv.NewWriter(w.out)
	if err := cw.Write([]string{cols.GameID, cols.TeamID, cols.PlayerID, cols.EventName, cols.X, cols.Y}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range events {
		if err := cw.Write([]string{e.GameID, e.TeamID, e.PlayerID, e.EventName, formatFloat(e.X), formatFloat(e.Y)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePlayTime writes a playtime table using the given column names. The
// position column is written when cols.Position is set.
func (w *Writer) WritePlayTime(cols Columns, records []model.PlayTimeRecord) error {
	cw := csv.NewWriter(w.out)
	header := []string{cols.GameID, cols.TeamID, cols.PlayerID, cols.PlayTime}
	if cols.Position != "" {
		header = append(header, cols.Position)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{r.GameID, r.TeamID, r.PlayerID, formatFloat(r.PlayTime)}
		if cols.Position != "" {
			row = append(row, r.Position)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
