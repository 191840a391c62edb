// Package profile turns classified action events into per player-match
// action x zone count profiles.
//
// Profiles are built sparse and only materialized as dense rows once the
// column set of the whole batch is known.
package profile

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/tvi/internal/domain/model"
	"github.com/okian/tvi/internal/domain/zone"
	"github.com/okian/tvi/pkg/metrics"
)

// Profile holds the action x zone counts of one player in one match.
type Profile struct {
	Key    model.MatchKey
	Counts map[string]int // composite column -> count
}

// Total returns the number of events counted in the profile.
func (p Profile) Total() int {
	n := 0
	for _, c := range p.Counts {
		n += c
	}
	return n
}

// Table is the pivoted profile table of a batch.
type Table struct {
	// Columns is the sorted union of composite columns seen in the batch.
	Columns  []string
	Profiles []Profile
}

// Dense returns the counts of profile i aligned with t.Columns, zero filled.
func (t Table) Dense(i int) []float64 {
	row := make([]float64, len(t.Columns))
	counts := t.Profiles[i].Counts
	for j, col := range t.Columns {
		row[j] = float64(counts[col])
	}
	return row
}

// CompositeKey builds the column name for an action performed in a zone.
func CompositeKey(eventName, zoneID string) string {
	return eventName + "_" + zoneID
}

// Partition is the slice of a batch belonging to one game.
type Partition struct {
	GameID string
	Events []model.RawActionEvent
}

// Split groups events by game, keeping games in first-seen order and events
// in input order within a game.
func Split(events []model.RawActionEvent) []Partition {
	index := make(map[string]int)
	var parts []Partition
	for _, e := range events {
		i, ok := index[e.GameID]
		if !ok {
			i = len(parts)
			index[e.GameID] = i
			parts = append(parts, Partition{GameID: e.GameID})
		}
		parts[i].Events = append(parts[i].Events, e)
	}
	return parts
}

// BuildPartition counts events per player-match, action and zone. Profiles
// are returned in the order their key first appears in events.
func BuildPartition(ctx context.Context, events []model.RawActionEvent, grid *zone.Grid) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	index := make(map[model.MatchKey]int)
	var profiles []Profile
	for n, e := range events {
		z, err := grid.Assign(e.X, e.Y)
		if err != nil {
			metrics.RecordErrorByComponent("profile", "invalid_coordinate")
			return nil, fmt.Errorf("event %d (game %s, player %s): %w", n, e.GameID, e.PlayerID, err)
		}

		key := e.Key()
		i, ok := index[key]
		if !ok {
			i = len(profiles)
			index[key] = i
			profiles = append(profiles, Profile{Key: key, Counts: make(map[string]int)})
		}
		profiles[i].Counts[CompositeKey(e.EventName, z)]++
		metrics.RecordEventCategory(e.EventName)
	}
	return profiles, nil
}

// Merge concatenates partition results into one table and finalizes the
// column union. A key present in several parts has its counts summed into
// its first occurrence.
func Merge(parts ...[]Profile) Table {
	index := make(map[model.MatchKey]int)
	columns := make(map[string]struct{})
	var out []Profile
	for _, part := range parts {
		for _, p := range part {
			for col := range p.Counts {
				columns[col] = struct{}{}
			}
			i, ok := index[p.Key]
			if !ok {
				index[p.Key] = len(out)
				counts := make(map[string]int, len(p.Counts))
				for col, c := range p.Counts {
					counts[col] = c
				}
				out = append(out, Profile{Key: p.Key, Counts: counts})
				continue
			}
			for col, c := range p.Counts {
				out[i].Counts[col] += c
			}
		}
	}

	cols := make([]string, 0, len(columns))
	for col := range columns {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	metrics.RecordProfilesBuilt(len(out))
	return Table{Columns: cols, Profiles: out}
}

// Build pivots a whole batch sequentially.
func Build(ctx context.Context, events []model.RawActionEvent, grid *zone.Grid) (Table, error) {
	profiles, err := BuildPartition(ctx, events, grid)
	if err != nil {
		return Table{}, err
	}
	return Merge(profiles), nil
}

// Builder builds partitions against a fixed grid.
type Builder struct {
	Grid *zone.Grid
}

// Build pivots one partition.
func (b Builder) Build(ctx context.Context, p Partition) ([]Profile, error) {
	return BuildPartition(ctx, p.Events, b.Grid)
}
