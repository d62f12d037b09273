package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"taxi-platform/internal/config"
	"taxi-platform/internal/models"
	"taxi-platform/pkg/logging"
	"taxi-platform/pkg/metrics"
)

// TripWriter receives batches of cleaned trips at the persistence boundary.
type TripWriter func(ctx context.Context, trips []*models.Trip) error

// RunResult is everything a cleaning run produces besides the cleaned record
// stream itself: the report and the bounded exclusion sample.
type RunResult struct {
	Report     *models.CleaningReport
	Exclusions []models.ExclusionRecord
}

// Cleaner drives a single cleaning run: parse, validate, derive, guard,
// account. Persistence happens only through the TripWriter at batch
// boundaries; the transform itself never blocks on I/O mid-record.
type Cleaner struct {
	cfg     config.CleaningConfig
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

func NewCleaner(cfg config.CleaningConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Cleaner {
	return &Cleaner{
		cfg:     cfg,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Run processes every record from src. Row-level problems become exclusions;
// only parser stream failures and writer failures abort the run. Even an
// aborted run returns a report covering the rows processed so far, marked
// failed.
func (c *Cleaner) Run(ctx context.Context, src *Parser, batchSize int, write TripWriter) (*RunResult, error) {
	startTime := time.Now()
	runID := uuid.New().String()

	c.logger.Info(ctx, "[CLEAN_START] Starting cleaning run", logging.Fields{
		"run_id":     runID,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	validator := NewValidator(c.cfg)
	deriver := NewFeatureDeriver(c.cfg)
	sink := newExclusionSink(c.cfg.ExclusionSampleCap)
	report := &models.CleaningReport{
		RunID:            runID,
		Status:           models.RunStatusCompleted,
		ExcludedByReason: make(map[string]int),
		Columns:          models.OutputColumns(),
	}

	batch := make([]*models.Trip, 0, batchSize)
	var runErr error

	for {
		raw, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			runErr = fmt.Errorf("input stream failed: %w", err)
			break
		}

		report.InputRows++

		trip, reason := validator.Validate(raw)
		if trip == nil {
			report.ExcludedRows++
			report.ExcludedByReason[string(reason)]++
			sink.add(models.ExclusionRecord{RowIndex: raw.RowIndex, Reason: reason, Raw: *raw})
			c.metrics.RecordExclusion(string(reason))
			continue
		}

		deriver.Derive(trip)
		deriver.GuardOutliers(trip)

		report.RetainedRows++
		batch = append(batch, trip)

		if len(batch) >= batchSize {
			if err := write(ctx, batch); err != nil {
				runErr = fmt.Errorf("failed to write batch: %w", err)
				break
			}
			c.metrics.CleanBatchSize.Observe(float64(len(batch)))
			batch = batch[:0]
		}
	}

	if runErr == nil && len(batch) > 0 {
		if err := write(ctx, batch); err != nil {
			runErr = fmt.Errorf("failed to write final batch: %w", err)
		} else {
			c.metrics.CleanBatchSize.Observe(float64(len(batch)))
		}
	}

	report.RunTimestamp = time.Now().UTC()
	if runErr != nil {
		report.Status = models.RunStatusFailed
		report.FailureMessage = runErr.Error()
	}

	duration := time.Since(startTime)
	c.metrics.CleanRunDuration.Observe(duration.Seconds())
	c.metrics.CleanRowsTotal.Add(float64(report.InputRows))
	c.metrics.CleanRetainedTotal.Add(float64(report.RetainedRows))

	c.logger.Info(ctx, "[CLEAN_COMPLETE] Cleaning run finished", logging.Fields{
		"run_id":           runID,
		"status":           report.Status,
		"input_rows":       report.InputRows,
		"retained_rows":    report.RetainedRows,
		"excluded_rows":    report.ExcludedRows,
		"duration_seconds": duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return &RunResult{Report: report, Exclusions: sink.records()}, runErr
}

// exclusionSink keeps the first N exclusions in input order. Append-only and
// deterministic: the sample is always a prefix of the exclusion sequence.
type exclusionSink struct {
	cap     int
	sample  []models.ExclusionRecord
	dropped int
}

func newExclusionSink(capacity int) *exclusionSink {
	return &exclusionSink{
		cap:    capacity,
		sample: make([]models.ExclusionRecord, 0, capacity),
	}
}

func (s *exclusionSink) add(rec models.ExclusionRecord) {
	if len(s.sample) >= s.cap {
		s.dropped++
		return
	}
	s.sample = append(s.sample, rec)
}

func (s *exclusionSink) records() []models.ExclusionRecord {
	return s.sample
}
