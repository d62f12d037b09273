package services

import (
	"context"
	"fmt"
	"os"

	"taxi-platform/internal/config"
	"taxi-platform/internal/models"
	"taxi-platform/internal/pipeline"
	"taxi-platform/internal/repository"
	"taxi-platform/pkg/logging"
	"taxi-platform/pkg/metrics"
)

// CleaningService runs the cleaning pipeline over a raw trip export and
// persists everything the run produces: the cleaned record stream, the
// bounded exclusion sample and the run report.
type CleaningService struct {
	repo    repository.TripRepository
	cfg     config.CleaningConfig
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCleaningService creates a new cleaning service.
func NewCleaningService(repo repository.TripRepository, cfg config.CleaningConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CleaningService {
	return &CleaningService{
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// RunFile cleans a single CSV file. A failed run still persists its report,
// covering the rows processed up to the failure, marked with the failure;
// the error is returned alongside so the caller can exit non-zero.
func (s *CleaningService) RunFile(ctx context.Context, path string, batchSize int) (*pipeline.RunResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	parser, err := pipeline.NewParser(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse input header: %w", err)
	}

	cleaner := pipeline.NewCleaner(s.cfg, s.logger, s.metrics)

	result, runErr := cleaner.Run(ctx, parser, batchSize, s.repo.CreateTripsBatch)
	if result == nil {
		return nil, runErr
	}

	report := result.Report
	if err := s.repo.SaveExclusions(ctx, report.RunID, result.Exclusions); err != nil {
		s.logger.Error(ctx, "[CLEAN_SAVE_EXCLUSIONS_ERROR] Failed to save exclusion sample", logging.Fields{
			"run_id": report.RunID,
			"count":  len(result.Exclusions),
		}, err)
		if runErr == nil {
			runErr = err
			report.Status = models.RunStatusFailed
			report.FailureMessage = err.Error()
		}
	}

	if err := s.repo.SaveCleaningReport(ctx, report); err != nil {
		s.logger.Error(ctx, "[CLEAN_SAVE_REPORT_ERROR] Failed to save cleaning report", logging.Fields{
			"run_id": report.RunID,
		}, err)
		if runErr == nil {
			runErr = err
		}
	}

	s.logger.Info(ctx, "[CLEAN_RUN_PERSISTED] Cleaning run persisted", logging.Fields{
		"run_id":        report.RunID,
		"status":        report.Status,
		"input_rows":    report.InputRows,
		"retained_rows": report.RetainedRows,
		"excluded_rows": report.ExcludedRows,
		"sample_size":   len(result.Exclusions),
	})

	return result, runErr
}

// LatestReports returns the most recent cleaning reports.
func (s *CleaningService) LatestReports(ctx context.Context, limit int) ([]*models.CleaningReport, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.GetCleaningReports(ctx, limit)
}
