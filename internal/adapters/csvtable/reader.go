// Package csvtable reads the events and playtime tables from CSV and writes
// pipeline results back out.
package csvtable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okian/tvi/internal/domain/model"
)

// Columns names the input fields. Position is optional; every other field
// is required in the table it belongs to.
type Columns struct {
	GameID    string
	TeamID    string
	PlayerID  string
	EventName string
	X         string
	Y         string
	PlayTime  string
	Position  string
}

// DefaultColumns returns the canonical column names.
func DefaultColumns() Columns {
	return Columns{
		GameID:    "game_id",
		TeamID:    "team_id",
		PlayerID:  "player_id",
		EventName: "event_name",
		X:         "x",
		Y:         "y",
		PlayTime:  "play_time",
		Position:  "position",
	}
}

// table is a CSV body with a resolved header.
type table struct {
	r     *csv.Reader
	index map[string]int
	row   int
}

func open(r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s (empty table)", ErrMissingColumns, strings.Join(required, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return &table{r: cr, index: index, row: 1}, nil
}

// next returns the next record, or nil at end of input.
func (t *table) next() ([]string, error) {
	rec, err := t.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	t.row++
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", t.row, err)
	}
	return rec, nil
}

func (t *table) str(rec []string, name string) string {
	i, ok := t.index[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *table) float(rec []string, name string) (float64, error) {
	raw := t.str(rec, name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: row %d, column %s: %q", ErrInvalidValue, t.row, name, raw)
	}
	return v, nil
}

// ReadEvents reads the action events table.
func ReadEvents(r io.Reader, cols Columns) ([]model.RawActionEvent, error) {
	t, err := open(r, cols.GameID, cols.TeamID, cols.PlayerID, cols.EventName, cols.X, cols.Y)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}

	var out []model.RawActionEvent
	for {
		rec, err := t.next()
		if err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		if rec == nil {
			break
		}
		e := model.RawActionEvent{
			GameID:    t.str(rec, cols.GameID),
			TeamID:    t.str(rec, cols.TeamID),
			PlayerID:  t.str(rec, cols.PlayerID),
			EventName: t.str(rec, cols.EventName),
		}
		if e.X, err = t.float(rec, cols.X); err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		if e.Y, err = t.float(rec, cols.Y); err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ReadPlayTime reads the playtime table. A missing position column leaves
// every Position empty.
func ReadPlayTime(r io.Reader, cols Columns) ([]model.PlayTimeRecord, error) {
	t, err := open(r, cols.GameID, cols.TeamID, cols.PlayerID, cols.PlayTime)
	if err != nil {
		return nil, fmt.Errorf("playtime: %w", err)
	}

	var out []model.PlayTimeRecord
	for {
		rec, err := t.next()
		if err != nil {
			return nil, fmt.Errorf("playtime: %w", err)
		}
		if rec == nil {
			break
		}
		p := model.PlayTimeRecord{
			GameID:   t.str(rec, cols.GameID),
			TeamID:   t.str(rec, cols.TeamID),
			PlayerID: t.str(rec, cols.PlayerID),
		}
		if cols.Position != "" {
			p.Position = t.str(rec, cols.Position)
		}
		if p.PlayTime, err = t.float(rec, cols.PlayTime); err != nil {
			return nil, fmt.Errorf("playtime: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}
