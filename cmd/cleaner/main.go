package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"taxi-platform/internal/config"
	"taxi-platform/internal/models"
	"taxi-platform/internal/repository"
	"taxi-platform/internal/services"
	"taxi-platform/pkg/database"
	"taxi-platform/pkg/logging"
	"taxi-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	input := flag.String("input", "./data/train.csv", "Path to the raw trip CSV export")
	batchSize := flag.Int("batch-size", 1000, "Number of cleaned trips to persist per batch")
	exclusionCap := flag.Int("exclusion-cap", 0, "Override the configured exclusion sample cap (0 keeps the config value)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *exclusionCap > 0 {
		cfg.Cleaning.ExclusionSampleCap = *exclusionCap
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logLevel := logging.InfoLevel
	if cfg.Logging.Level == "debug" {
		logLevel = logging.DebugLevel
	}

	logger := logging.NewStructuredLogger("taxi-cleaner", "1.0.0", logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[CLEANER_START] Starting trip data cleaning", logging.Fields{
		"version":       "1.0.0",
		"input":         *input,
		"batch_size":    *batchSize,
		"exclusion_cap": cfg.Cleaning.ExclusionSampleCap,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("taxi_cleaner")

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[CLEANER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository and service
	tripRepo := repository.NewTripRepository(db, logger, metricsCollector)
	cleaningService := services.NewCleaningService(tripRepo, cfg.Cleaning, logger, metricsCollector)

	// Run the cleaning pass
	result, runErr := cleaningService.RunFile(ctx, *input, *batchSize)
	if result == nil {
		logger.Fatal(ctx, "[CLEANER_ERROR] Cleaning run could not start", logging.Fields{
			"input": *input,
		}, runErr)
	}

	report := result.Report

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("CLEANING RUN COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Run ID:        %s\n", report.RunID)
	fmt.Printf("Status:        %s\n", report.Status)
	fmt.Printf("Input Rows:    %d\n", report.InputRows)
	fmt.Printf("Retained Rows: %d\n", report.RetainedRows)
	fmt.Printf("Excluded Rows: %d\n", report.ExcludedRows)

	if len(report.ExcludedByReason) > 0 {
		reasons := make([]string, 0, len(report.ExcludedByReason))
		for reason := range report.ExcludedByReason {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)

		fmt.Println("\nExclusions by reason:")
		for _, reason := range reasons {
			fmt.Printf("  %-25s %d\n", reason, report.ExcludedByReason[reason])
		}
	}

	if report.Status == models.RunStatusFailed {
		fmt.Printf("\nRun failed: %s\n", report.FailureMessage)
	}

	logger.Info(ctx, "[CLEANER_COMPLETE] Cleaning run finished", logging.Fields{
		"run_id":        report.RunID,
		"status":        report.Status,
		"input_rows":    report.InputRows,
		"retained_rows": report.RetainedRows,
		"excluded_rows": report.ExcludedRows,
	})

	if runErr != nil {
		os.Exit(1)
	}
}
