// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel/metric"
)

// StatementMetrics provides business metrics for the reconciliation engine.
// It tracks statement creation, batch import throughput, reconciliation
// rejections, and vendor expense distribution volume.
type StatementMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	statementCreatedTotal  *Counter
	batchChunksTotal       *Counter
	reconcileMismatchTotal *Counter
	vendorExpenseRowsTotal *Counter

	// Distribution of invoice extraction round-trips
	extractionDuration *Histogram

	// Gauge metrics (point-in-time values)
	liveStatements *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	volumeProvider StatementVolumeProvider
}

// StatementVolumeProvider supplies statement volume data for periodic gauge
// collection. The interface keeps the telemetry layer off the statement
// domain packages.
type StatementVolumeProvider interface {
	// LiveStatementCount returns the number of non-deleted statements for an org
	LiveStatementCount(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// StatementMetricsConfig holds configuration for statement metrics.
type StatementMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	VolumeProvider  StatementVolumeProvider
}

// NewStatementMetrics creates a new StatementMetrics instance.
func NewStatementMetrics(cfg StatementMetricsConfig) (*StatementMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &StatementMetrics{
		meter:          cfg.Meter,
		logger:         logger,
		stopChan:       make(chan struct{}),
		volumeProvider: cfg.VolumeProvider,
	}

	var err error

	sm.statementCreatedTotal, err = NewCounter(
		cfg.Meter,
		"properly_statement_created_total",
		"Total number of owner statements created",
		"{statements}",
	)
	if err != nil {
		return nil, err
	}

	sm.batchChunksTotal, err = NewCounter(
		cfg.Meter,
		"properly_batch_chunks_total",
		"Total number of batch import chunks by commit result",
		"{chunks}",
	)
	if err != nil {
		return nil, err
	}

	sm.reconcileMismatchTotal, err = NewCounter(
		cfg.Meter,
		"properly_reconcile_mismatch_total",
		"Total number of rejected client totals by field",
		"{mismatches}",
	)
	if err != nil {
		return nil, err
	}

	sm.vendorExpenseRowsTotal, err = NewCounter(
		cfg.Meter,
		"properly_vendor_expense_rows_total",
		"Total number of vendor expense rows distributed to statements",
		"{rows}",
	)
	if err != nil {
		return nil, err
	}

	sm.extractionDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "properly_invoice_extraction_duration_seconds",
		Description: "Invoice extraction round-trip latency in seconds",
		Unit:        "s",
		Boundaries:  ExtractionDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	sm.liveStatements, err = NewGauge(
		cfg.Meter,
		"properly_live_statements",
		"Current number of non-deleted owner statements",
		"{statements}",
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// =============================================================================
// Statement Metrics
// =============================================================================

// StatementSource labels how a statement entered the system.
type StatementSource string

const (
	StatementSourceManual StatementSource = "manual"
	StatementSourceBatch  StatementSource = "batch"
)

// RecordStatementCreated records a statement creation event.
// Called from the application layer when a statement is persisted.
func (sm *StatementMetrics) RecordStatementCreated(ctx context.Context, orgID uuid.UUID, source StatementSource) {
	sm.statementCreatedTotal.Inc(ctx,
		AttrOrgID.String(orgID.String()),
		AttrStatementSource.String(string(source)),
	)
}

// RecordStatementsCreated records count statements written by a single flow,
// such as one monthly batch.
func (sm *StatementMetrics) RecordStatementsCreated(ctx context.Context, orgID uuid.UUID, source StatementSource, count int64) {
	if count <= 0 {
		return
	}
	sm.statementCreatedTotal.Add(ctx, count,
		AttrOrgID.String(orgID.String()),
		AttrStatementSource.String(string(source)),
	)
}

// RecordReconcileMismatch records a rejected client total.
// The field label names which summary column disagreed with the item sums.
func (sm *StatementMetrics) RecordReconcileMismatch(ctx context.Context, orgID uuid.UUID, field string) {
	sm.reconcileMismatchTotal.Inc(ctx,
		AttrOrgID.String(orgID.String()),
		AttrMismatchField.String(field),
	)
}

// =============================================================================
// Import Metrics
// =============================================================================

// ChunkResult labels the outcome of one batch import chunk.
type ChunkResult string

const (
	ChunkCommitted ChunkResult = "committed"
	ChunkFailed    ChunkResult = "failed"
)

// RecordBatchChunk records the commit outcome of one batch import chunk.
func (sm *StatementMetrics) RecordBatchChunk(ctx context.Context, orgID uuid.UUID, result ChunkResult) {
	sm.batchChunksTotal.Inc(ctx,
		AttrOrgID.String(orgID.String()),
		AttrChunkResult.String(string(result)),
	)
}

// RowSource labels where a vendor expense row came from.
type RowSource string

const (
	RowSourceWorkbook RowSource = "workbook"
	RowSourceInvoice  RowSource = "invoice"
)

// RecordVendorExpenseRows records expense rows appended to statements during
// a vendor expense distribution.
func (sm *StatementMetrics) RecordVendorExpenseRows(ctx context.Context, orgID uuid.UUID, source RowSource, rows int64) {
	sm.vendorExpenseRowsTotal.Add(ctx, rows,
		AttrOrgID.String(orgID.String()),
		AttrRowSource.String(string(source)),
	)
}

// RecordExtractionDuration records one invoice extraction round-trip.
func (sm *StatementMetrics) RecordExtractionDuration(ctx context.Context, orgID uuid.UUID, d time.Duration) {
	sm.extractionDuration.RecordDuration(ctx, d,
		AttrOrgID.String(orgID.String()),
	)
}

// RecordLiveStatements records the current live statement count for an org.
// This is a gauge metric updated by the periodic collector.
func (sm *StatementMetrics) RecordLiveStatements(ctx context.Context, orgID uuid.UUID, count int64) {
	sm.liveStatements.Record(ctx, count,
		AttrOrgID.String(orgID.String()),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// OrgProvider supplies organization IDs for periodic metrics collection.
type OrgProvider interface {
	ActiveOrgIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It refreshes statement volume every interval (default: 5 minutes).
// This is non-blocking; use Stop() to stop collection.
func (sm *StatementMetrics) StartPeriodicCollection(ctx context.Context, orgProvider OrgProvider, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go sm.runPeriodicCollection(ctx, orgProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (sm *StatementMetrics) runPeriodicCollection(ctx context.Context, orgProvider OrgProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	sm.collectVolumeMetrics(ctx, orgProvider)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic statement metrics collection")
			return
		case <-ctx.Done():
			sm.logger.Info("Context cancelled, stopping periodic statement metrics collection")
			return
		case <-ticker.C:
			sm.collectVolumeMetrics(ctx, orgProvider)
		}
	}
}

// collectVolumeMetrics refreshes the live statement gauge for all orgs.
func (sm *StatementMetrics) collectVolumeMetrics(ctx context.Context, orgProvider OrgProvider) {
	if sm.volumeProvider == nil {
		sm.logger.Debug("No volume provider configured, skipping statement volume collection")
		return
	}

	orgIDs, err := orgProvider.ActiveOrgIDs(ctx)
	if err != nil {
		sm.logger.Error("Failed to get org IDs for metrics collection", zap.Error(err))
		return
	}

	for _, orgID := range orgIDs {
		count, err := sm.volumeProvider.LiveStatementCount(ctx, orgID)
		if err != nil {
			sm.logger.Warn("Failed to get live statement count for org",
				zap.String("org_id", orgID.String()),
				zap.Error(err),
			)
			continue
		}
		sm.RecordLiveStatements(ctx, orgID, count)
	}
}

// Stop stops the periodic collection.
func (sm *StatementMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewStatementMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
