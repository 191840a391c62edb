// Package metrics provides Prometheus metrics for the TVI batch pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stage labels used with RecordStageDuration.
const (
	StageProfile   = "profile"
	StageDiversity = "diversity"
	StageScoring   = "scoring"
	StageAggregate = "aggregate"
	StageRun       = "run"
)

// Run outcome labels used with RecordRun.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	sizeBuckets      []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Input volume
	eventsIngested   prometheus.Counter
	eventsByCategory *prometheus.CounterVec
	playTimeRecords  prometheus.Counter

	// Stage output
	profilesBuilt        prometheus.Counter
	partitionsProcessed  prometheus.Counter
	partitionSize        prometheus.Histogram
	recordsScored        prometheus.Counter
	zeroPlayTimeRecords  prometheus.Counter
	orphanProfiles       prometheus.Counter
	playersAggregated    prometheus.Counter
	nullAggregates       prometheus.Counter
	playersFiltered      prometheus.Counter
	stageDuration        *prometheus.HistogramVec
	runsTotal            *prometheus.CounterVec
	errorRateByComponent *prometheus.CounterVec

	// Worker pool
	workerCount prometheus.Gauge
	queueSize   prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tvi",
		subsystem:        "pipeline",
		histogramBuckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000},
		sizeBuckets:      prometheus.ExponentialBuckets(16, 4, 8),
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one block per metric
	auto := promauto.With(m.registry)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: m.constLabels,
		})
	}

	m.eventsIngested = counter("events_ingested_total", "Total number of classified action events fed to the pipeline")
	m.playTimeRecords = counter("playtime_records_total", "Total number of player-match playtime records fed to the pipeline")
	m.profilesBuilt = counter("profiles_built_total", "Total number of player-match action x zone profiles built")
	m.partitionsProcessed = counter("partitions_processed_total", "Total number of per-game partitions aggregated")
	m.recordsScored = counter("records_scored_total", "Total number of player-match TVI records produced")
	m.zeroPlayTimeRecords = counter("zero_playtime_records_total", "Player-match records scored with zero playtime")
	m.orphanProfiles = counter("orphan_profiles_total", "Profiles dropped because no playtime record matched")
	m.playersAggregated = counter("players_aggregated_total", "Total number of season aggregates produced")
	m.nullAggregates = counter("null_aggregates_total", "Season aggregates left null because total playtime was zero")
	m.playersFiltered = counter("players_filtered_total", "Season aggregates removed by playtime or position filters")

	m.eventsByCategory = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_by_category_total",
		Help:        "Classified action events by event name",
		ConstLabels: m.constLabels,
	}, []string{"event_name"})

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Pipeline runs by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Errors by component and error type",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})

	m.partitionSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "partition_events",
		Help:        "Number of events per game partition",
		Buckets:     m.sizeBuckets,
		ConstLabels: m.constLabels,
	})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stage_duration_milliseconds",
		Help:        "Duration of each pipeline stage in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"stage"})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_count",
		Help:        "Number of partition workers in the current run",
		ConstLabels: m.constLabels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_size",
		Help:        "Partitions waiting in the queue",
		ConstLabels: m.constLabels,
	})
}

// Input Metrics Functions.

// RecordEventsIngested adds n events to the ingested counter.
func RecordEventsIngested(n int) {
	globalManager.eventsIngested.Add(float64(n))
}

// RecordEventCategory increments the per event name counter.
func RecordEventCategory(eventName string) {
	globalManager.eventsByCategory.WithLabelValues(eventName).Inc()
}

// RecordPlayTimeRecords adds n playtime records to the counter.
func RecordPlayTimeRecords(n int) {
	globalManager.playTimeRecords.Add(float64(n))
}

// Stage Metrics Functions.

// RecordProfilesBuilt adds n to the built profiles counter.
func RecordProfilesBuilt(n int) {
	globalManager.profilesBuilt.Add(float64(n))
}

// RecordPartitionProcessed records one processed partition of the given size.
func RecordPartitionProcessed(events int) {
	globalManager.partitionsProcessed.Inc()
	globalManager.partitionSize.Observe(float64(events))
}

// RecordRecordsScored adds n to the scored records counter.
func RecordRecordsScored(n int) {
	globalManager.recordsScored.Add(float64(n))
}

// RecordZeroPlayTime increments the zero playtime counter.
func RecordZeroPlayTime() {
	globalManager.zeroPlayTimeRecords.Inc()
}

// RecordOrphanProfile increments the orphan profile counter.
func RecordOrphanProfile() {
	globalManager.orphanProfiles.Inc()
}

// RecordPlayersAggregated adds n to the aggregated players counter.
func RecordPlayersAggregated(n int) {
	globalManager.playersAggregated.Add(float64(n))
}

// RecordNullAggregate increments the null aggregate counter.
func RecordNullAggregate() {
	globalManager.nullAggregates.Inc()
}

// RecordPlayersFiltered adds n to the filtered players counter.
func RecordPlayersFiltered(n int) {
	globalManager.playersFiltered.Add(float64(n))
}

// RecordStageDuration records how long a stage took in milliseconds.
func RecordStageDuration(stage string, ms float64) {
	globalManager.stageDuration.WithLabelValues(stage).Observe(ms)
}

// RecordRun increments the run counter for the given outcome.
func RecordRun(outcome string) {
	globalManager.runsTotal.WithLabelValues(outcome).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the number of partition workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateQueueSize sets the number of queued partitions.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the current registry contents to path in the
// Prometheus text exposition format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTextfile, path, err)
	}
	return nil
}
