// Package service runs the TVI pipeline: zone assignment and profile
// pivoting per game on a worker pool, then diversity, scoring and season
// aggregation.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/tvi/internal/adapters/mq/queue"
	workerpool "github.com/okian/tvi/internal/adapters/mq/worker"
	"github.com/okian/tvi/internal/domain/aggregate"
	"github.com/okian/tvi/internal/domain/category"
	"github.com/okian/tvi/internal/domain/model"
	"github.com/okian/tvi/internal/domain/profile"
	"github.com/okian/tvi/internal/domain/scoring"
	"github.com/okian/tvi/internal/domain/zone"
	"github.com/okian/tvi/pkg/logger"
	"github.com/okian/tvi/pkg/metrics"
)

// Result is the output of one pipeline run.
type Result struct {
	RunID uuid.UUID

	// Columns names the entries of every PlayerAggregateRecord.Metrics.
	Columns []string

	// MatchColumns names the raw action x zone keys of every
	// PlayerMatchTVIRecord.Counts. It differs from Columns when category
	// columns are derived.
	MatchColumns []string

	// Matches holds one scored record per playtime row, in playtime order.
	Matches []model.PlayerMatchTVIRecord

	// Players holds the season records sorted by TVI descending.
	Players []model.PlayerAggregateRecord
}

// Service wires the pipeline stages. Its configuration is fixed at
// construction and Run is safe to call concurrently.
type Service struct {
	grid       *zone.Grid
	scorer     *scoring.Scorer
	aggregator *aggregate.Aggregator

	categories       []category.Category
	categoryTemplate string
	deriver          *category.Deriver

	workerCount int
	queueSize   int

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of profile workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the partition queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGrid sets the zone grid.
func WithGrid(g *zone.Grid) Option {
	return func(s *Service) {
		if g != nil {
			s.grid = g
		}
	}
}

// WithScorer sets the per-match scorer.
func WithScorer(sc *scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithAggregator sets the season aggregator.
func WithAggregator(a *aggregate.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithCategories replaces the raw action x zone season columns with
// category x zone columns. An empty template uses category.DefaultTemplate.
func WithCategories(categories []category.Category, template string) Option {
	return func(s *Service) {
		s.categories = categories
		s.categoryTemplate = template
		if s.categories == nil {
			s.categories = []category.Category{}
		}
	}
}

// New constructs a Service. Unset components get their package defaults.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.grid == nil {
		g, err := zone.NewGrid()
		if err != nil {
			return nil, fmt.Errorf("default grid: %w", err)
		}
		s.grid = g
	}
	if s.scorer == nil {
		s.scorer = scoring.NewScorer()
	}
	if s.aggregator == nil {
		s.aggregator = aggregate.NewAggregator()
	}
	if s.categories != nil {
		d, err := category.NewDeriver(s.categories, s.categoryTemplate, s.grid.Zones())
		if err != nil {
			return nil, err
		}
		s.deriver = d
	}
	return s, nil
}

// Run executes the whole pipeline over one batch.
func (s *Service) Run(ctx context.Context, events []model.RawActionEvent, playTime []model.PlayTimeRecord) (Result, error) {
	res := Result{RunID: uuid.New()}
	runID := logger.String("runID", res.RunID.String())
	start := time.Now()

	metrics.RecordEventsIngested(len(events))
	metrics.RecordPlayTimeRecords(len(playTime))
	s.logger.Info(ctx, "run started", runID,
		logger.Int("events", len(events)),
		logger.Int("playTimeRecords", len(playTime)),
		logger.Int("workers", s.workerCount),
	)

	fail := func(stage string, err error) (Result, error) {
		metrics.RecordRun(metrics.OutcomeError)
		metrics.RecordErrorByComponent("service", stage)
		s.logger.Error(ctx, "run failed", runID, logger.String("stage", stage), logger.Error(err))
		return Result{}, fmt.Errorf("%s: %w", stage, err)
	}

	stageStart := time.Now()
	table, err := s.buildProfiles(ctx, events)
	if err != nil {
		return fail(metrics.StageProfile, err)
	}
	observe(metrics.StageProfile, stageStart)

	stageStart = time.Now()
	res.Matches, err = s.scorer.Score(ctx, table, playTime)
	if err != nil {
		return fail(metrics.StageScoring, err)
	}
	observe(metrics.StageScoring, stageStart)

	res.MatchColumns = table.Columns
	var proj aggregate.Projector = aggregate.RawColumns(table.Columns)
	if s.deriver != nil {
		proj = s.deriver
	}
	res.Columns = proj.Columns()

	stageStart = time.Now()
	res.Players = s.aggregator.Aggregate(ctx, proj, res.Matches)
	observe(metrics.StageAggregate, stageStart)

	observe(metrics.StageRun, start)
	metrics.RecordRun(metrics.OutcomeSuccess)
	s.logger.Info(ctx, "run finished", runID,
		logger.Int("profiles", len(table.Profiles)),
		logger.Int("columns", len(res.Columns)),
		logger.Int("matches", len(res.Matches)),
		logger.Int("players", len(res.Players)),
		logger.Duration("took", time.Since(start)),
	)
	return res, nil
}

// buildProfiles fans the batch out per game and merges the partitions back
// in first-seen game order, so the table does not depend on scheduling.
func (s *Service) buildProfiles(ctx context.Context, events []model.RawActionEvent) (profile.Table, error) {
	parts := profile.Split(events)
	if len(parts) == 0 {
		return profile.Merge(), nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := s.workerCount
	if workers > len(parts) {
		workers = len(parts)
	}
	q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	pool := workerpool.NewPool(workers, q, profile.Builder{Grid: s.grid})
	pool.Start(ctx)
	defer func() {
		// Workers have exited once Results is drained; this releases the queue.
		if err := pool.Shutdown(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}()

	enqueueErr := make(chan error, 1)
	go func() {
		defer func() { _ = q.Close() }()
		for i, p := range parts {
			if err := q.Enqueue(ctx, eventqueue.Task{Index: i, Partition: p}); err != nil {
				enqueueErr <- err
				return
			}
		}
		enqueueErr <- nil
	}()

	built := make([][]profile.Profile, len(parts))
	var firstErr error
	for r := range pool.Results() {
		if r.Err != nil && firstErr == nil {
			firstErr = r.Err
			cancel()
		}
		built[r.Index] = r.Profiles
	}

	if firstErr != nil {
		return profile.Table{}, firstErr
	}
	if err := <-enqueueErr; err != nil {
		return profile.Table{}, err
	}
	if err := ctx.Err(); err != nil {
		return profile.Table{}, fmt.Errorf("context cancelled: %w", err)
	}
	return profile.Merge(built...), nil
}

func observe(stage string, since time.Time) {
	metrics.RecordStageDuration(stage, float64(time.Since(since).Microseconds())/1000)
}

// IsInputError reports whether err came from malformed input data rather
// than configuration or cancellation.
func IsInputError(err error) bool {
	return errors.Is(err, zone.ErrInvalidCoordinate)
}
