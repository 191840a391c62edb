// Package scoring turns diversity-scored profiles and playtime into bounded
// per-match TVI records.
package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/tvi/internal/domain/diversity"
	"github.com/okian/tvi/internal/domain/model"
	"github.com/okian/tvi/internal/domain/profile"
	"github.com/okian/tvi/pkg/logger"
	"github.com/okian/tvi/pkg/metrics"
)

// Default scoring configuration constants.
const (
	// DefaultScalingConstant normalizes a full 90 minute match against a
	// ceiling of 44 distinct action x zone cells.
	DefaultScalingConstant = 90.0 / 44.0

	maxScoreValue = 1.0
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithScalingConstant overrides the TVI scaling constant C. Non-positive or
// non-finite values are ignored.
func WithScalingConstant(c float64) Option {
	return func(s *Scorer) {
		if c > 0 && !math.IsInf(c, 0) {
			s.scalingConstant = c
		}
	}
}

// WithLogger sets the logger used for join diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scorer computes TVI and entropy-based TVI per player-match. It holds no
// mutable state and is safe for concurrent use.
type Scorer struct {
	scalingConstant float64
	logger          logger.Logger
}

// NewScorer creates a scorer with configuration options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		scalingConstant: DefaultScalingConstant,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("scoring")
	}
	return s
}

// ScalingConstant returns the configured C.
func (s *Scorer) ScalingConstant() float64 { return s.scalingConstant }

// TVI returns clip(C * actionDiversity / playTime) into [0, 1]. It is zero
// when playTime is not a positive finite number.
func (s *Scorer) TVI(actionDiversity int, playTime float64) float64 {
	return ratio(s.scalingConstant*float64(actionDiversity), playTime)
}

// TVIEntropy returns clip(entropy / playTime) into [0, 1]. It is zero when
// playTime is not a positive finite number.
func (s *Scorer) TVIEntropy(entropy, playTime float64) float64 {
	return ratio(entropy, playTime)
}

func ratio(num, playTime float64) float64 {
	if !(playTime > 0) || math.IsInf(playTime, 0) {
		return 0
	}
	v := num / playTime
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(maxScoreValue, v))
}

// Score joins the profile table onto the playtime records and scores every
// player-match. Playtime drives the join: each record yields exactly one
// output row in input order, with zero counts when the player has no
// profile. Profiles without a playtime record are dropped.
func (s *Scorer) Score(ctx context.Context, table profile.Table, playTime []model.PlayTimeRecord) ([]model.PlayerMatchTVIRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	start := time.Now()
	scores := diversity.ScoreTable(table)
	metrics.RecordStageDuration(metrics.StageDiversity, float64(time.Since(start).Microseconds())/1000)

	byKey := make(map[model.MatchKey]int, len(table.Profiles))
	for i, p := range table.Profiles {
		byKey[p.Key] = i
	}

	matched := make(map[model.MatchKey]struct{}, len(playTime))
	out := make([]model.PlayerMatchTVIRecord, 0, len(playTime))
	for _, pt := range playTime {
		key := pt.Key()
		rec := model.PlayerMatchTVIRecord{
			Key:      key,
			Counts:   map[string]int{},
			PlayTime: pt.PlayTime,
			Position: pt.Position,
		}
		if i, ok := byKey[key]; ok {
			matched[key] = struct{}{}
			rec.Counts = table.Profiles[i].Counts
			rec.ActionDiversity = scores[i].ActionDiversity
			rec.ShannonEntropy = scores[i].ShannonEntropy
		}
		if !(pt.PlayTime > 0) {
			metrics.RecordZeroPlayTime()
		}
		rec.TVI = s.TVI(rec.ActionDiversity, rec.PlayTime)
		rec.TVIEntropy = s.TVIEntropy(rec.ShannonEntropy, rec.PlayTime)
		out = append(out, rec)
	}

	for _, p := range table.Profiles {
		if _, ok := matched[p.Key]; !ok {
			metrics.RecordOrphanProfile()
			s.logger.Debug(ctx, "profile without playtime dropped",
				logger.String("gameID", p.Key.GameID),
				logger.String("teamID", p.Key.TeamID),
				logger.String("playerID", p.Key.PlayerID),
			)
		}
	}

	metrics.RecordRecordsScored(len(out))
	return out, nil
}
