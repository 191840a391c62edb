// Package aggregate reduces per-match TVI records into one season record per
// player using playtime-weighted averages.
package aggregate

import (
	"context"
	"database/sql"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/tvi/internal/domain/model"
	"github.com/okian/tvi/pkg/logger"
	"github.com/okian/tvi/pkg/metrics"
)

// Projector maps a record's sparse counts onto a fixed list of metric columns.
type Projector interface {
	Columns() []string
	Project(counts map[string]int) []float64
}

// RawColumns projects counts onto the composite action x zone columns as is.
type RawColumns []string

// Columns returns the column names.
func (c RawColumns) Columns() []string { return append([]string(nil), c...) }

// Project returns the count of every column, zero when absent.
func (c RawColumns) Project(counts map[string]int) []float64 {
	out := make([]float64, len(c))
	for i, col := range c {
		out[i] = float64(counts[col])
	}
	return out
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithMinPlayTime keeps only players whose season playtime is strictly
// greater than minutes. A zero value disables the filter.
func WithMinPlayTime(minutes float64) Option {
	return func(a *Aggregator) {
		if minutes > 0 {
			a.minPlayTime = minutes
		}
	}
}

// WithExcludedPositions drops players whose main position is listed.
func WithExcludedPositions(positions ...string) Option {
	return func(a *Aggregator) {
		for _, p := range positions {
			if p != "" {
				a.excluded[p] = struct{}{}
			}
		}
	}
}

// WithLogger sets the aggregator logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// Aggregator builds season records. It is safe for concurrent use.
type Aggregator struct {
	minPlayTime float64
	excluded    map[string]struct{}
	logger      logger.Logger
}

// NewAggregator creates an aggregator with configuration options.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		excluded: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Named("aggregate")
	}
	return a
}

// Aggregate groups records by player and reduces each group. The result is
// sorted by TVI descending; ties keep the order in which players first
// appear in records and null TVI sorts last.
func (a *Aggregator) Aggregate(ctx context.Context, proj Projector, records []model.PlayerMatchTVIRecord) []model.PlayerAggregateRecord {
	order := make([]string, 0)
	groups := make(map[string][]model.PlayerMatchTVIRecord)
	for _, r := range records {
		id := r.Key.PlayerID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], r)
	}

	out := make([]model.PlayerAggregateRecord, 0, len(order))
	filtered := 0
	for _, id := range order {
		agg := Reduce(proj, groups[id])
		if !agg.TVI.Valid {
			metrics.RecordNullAggregate()
			a.logger.Debug(ctx, "player has no weighted playtime",
				logger.String("playerID", id),
				logger.Int("matches", agg.Matches),
			)
		}
		if a.drop(agg) {
			filtered++
			continue
		}
		out = append(out, agg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		x, y := out[i].TVI, out[j].TVI
		if x.Valid != y.Valid {
			return x.Valid
		}
		return x.Float64 > y.Float64
	})

	metrics.RecordPlayersAggregated(len(out))
	metrics.RecordPlayersFiltered(filtered)
	return out
}

func (a *Aggregator) drop(agg model.PlayerAggregateRecord) bool {
	if a.minPlayTime > 0 && !(agg.PlayTime > a.minPlayTime) {
		return true
	}
	_, excluded := a.excluded[agg.Position]
	return excluded
}

// Reduce folds one player's match records into a season record. Records are
// reduced in (game, team, playtime, TVI, entropy, position) order, so any permutation of the input gives the
// same floating point result. Weighted fields are null when the summed
// playtime weight is zero.
func Reduce(proj Projector, records []model.PlayerMatchTVIRecord) model.PlayerAggregateRecord {
	rs := append([]model.PlayerMatchTVIRecord(nil), records...)
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Key.GameID != rs[j].Key.GameID {
			return rs[i].Key.GameID < rs[j].Key.GameID
		}
		if rs[i].Key.TeamID != rs[j].Key.TeamID {
			return rs[i].Key.TeamID < rs[j].Key.TeamID
		}
		if rs[i].PlayTime != rs[j].PlayTime {
			return rs[i].PlayTime < rs[j].PlayTime
		}
		if rs[i].TVI != rs[j].TVI {
			return rs[i].TVI < rs[j].TVI
		}
		if rs[i].ShannonEntropy != rs[j].ShannonEntropy {
			return rs[i].ShannonEntropy < rs[j].ShannonEntropy
		}
		return rs[i].Position < rs[j].Position
	})

	cols := proj.Columns()
	agg := model.PlayerAggregateRecord{
		Metrics: make([]sql.NullFloat64, len(cols)),
		Matches: len(rs),
	}
	if len(rs) == 0 {
		return agg
	}
	agg.PlayerID = rs[0].Key.PlayerID

	weights := make([]float64, len(rs))
	playTime := make([]float64, len(rs))
	for i, r := range rs {
		playTime[i] = r.PlayTime
		weights[i] = weight(r.PlayTime)
	}
	agg.PlayTime = floats.Sum(playTime)
	agg.Position = MainPosition(rs)

	if floats.Sum(weights) == 0 {
		return agg
	}

	mean := func(value func(model.PlayerMatchTVIRecord) float64) sql.NullFloat64 {
		x := make([]float64, len(rs))
		for i, r := range rs {
			x[i] = value(r)
		}
		return sql.NullFloat64{Float64: stat.Mean(x, weights), Valid: true}
	}

	projected := make([][]float64, len(rs))
	for i, r := range rs {
		projected[i] = proj.Project(r.Counts)
	}
	for j := range cols {
		x := make([]float64, len(rs))
		for i := range rs {
			x[i] = projected[i][j]
		}
		agg.Metrics[j] = sql.NullFloat64{Float64: stat.Mean(x, weights), Valid: true}
	}

	agg.ActionDiversity = mean(func(r model.PlayerMatchTVIRecord) float64 { return float64(r.ActionDiversity) })
	agg.ShannonEntropy = mean(func(r model.PlayerMatchTVIRecord) float64 { return r.ShannonEntropy })
	agg.TVI = mean(func(r model.PlayerMatchTVIRecord) float64 { return r.TVI })
	agg.TVIEntropy = mean(func(r model.PlayerMatchTVIRecord) float64 { return r.TVIEntropy })
	return agg
}

// weight maps a playtime to its averaging weight; invalid playtimes weigh nothing.
func weight(playTime float64) float64 {
	if !(playTime > 0) || math.IsInf(playTime, 0) {
		return 0
	}
	return playTime
}

// MainPosition returns the position with the most cumulative playtime.
// Ties go to the lexically smallest label; unlabelled records are ignored.
func MainPosition(records []model.PlayerMatchTVIRecord) string {
	minutes := make(map[string]float64)
	for _, r := range records {
		if r.Position == "" {
			continue
		}
		minutes[r.Position] += weight(r.PlayTime)
	}

	labels := make([]string, 0, len(minutes))
	for p := range minutes {
		labels = append(labels, p)
	}
	sort.Strings(labels)

	best := ""
	for _, p := range labels {
		if best == "" || minutes[p] > minutes[best] {
			best = p
		}
	}
	return best
}
