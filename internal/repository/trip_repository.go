package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"taxi-platform/internal/models"
	"taxi-platform/pkg/database"
	"taxi-platform/pkg/logging"
	"taxi-platform/pkg/metrics"
)

// TripRepository provides data access for cleaned trips, exclusion samples
// and cleaning reports.
type TripRepository interface {
	// Cleaning run output
	CreateTripsBatch(ctx context.Context, trips []*models.Trip) error
	SaveCleaningReport(ctx context.Context, report *models.CleaningReport) error
	SaveExclusions(ctx context.Context, runID string, exclusions []models.ExclusionRecord) error

	// Query surface
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	GetTrips(ctx context.Context, filter TripFilter, limit, offset int) ([]*models.Trip, int, error)
	GetTripMetrics(ctx context.Context, filter TripFilter) ([]models.TripMetric, error)
	GetCleaningReports(ctx context.Context, limit int) ([]*models.CleaningReport, error)

	HealthCheck(ctx context.Context) error
}

// TripFilter defines the caller-supplied filters of the query surface.
// Date bounds are inclusive; a TimeOfDay selection covering all four buckets
// (or none) is equivalent to no filter.
type TripFilter struct {
	StartDate      *time.Time
	EndDate        *time.Time
	TimeOfDay      []string
	PassengerCount *int
	VendorID       *int
	MinDuration    *int
	MaxDuration    *int
}

// effectiveTimeOfDay returns the bucket predicate values, or nil when the
// selection is degenerate (empty or all four buckets).
func (f TripFilter) effectiveTimeOfDay() []string {
	if len(f.TimeOfDay) == 0 {
		return nil
	}
	distinct := make(map[string]struct{}, len(f.TimeOfDay))
	for _, label := range f.TimeOfDay {
		distinct[label] = struct{}{}
	}
	if len(distinct) >= 4 {
		return nil
	}
	out := make([]string, 0, len(distinct))
	for label := range distinct {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// CacheKey is a canonical string form of the filter, stable across equivalent
// filters, used to key cached query results.
func (f TripFilter) CacheKey() string {
	var b strings.Builder
	if f.StartDate != nil {
		b.WriteString("s=" + f.StartDate.Format("2006-01-02"))
	}
	if f.EndDate != nil {
		b.WriteString("|e=" + f.EndDate.Format("2006-01-02"))
	}
	if tod := f.effectiveTimeOfDay(); tod != nil {
		b.WriteString("|t=" + strings.Join(tod, ","))
	}
	if f.PassengerCount != nil {
		b.WriteString("|p=" + strconv.Itoa(*f.PassengerCount))
	}
	if f.VendorID != nil {
		b.WriteString("|v=" + strconv.Itoa(*f.VendorID))
	}
	if f.MinDuration != nil {
		b.WriteString("|dmin=" + strconv.Itoa(*f.MinDuration))
	}
	if f.MaxDuration != nil {
		b.WriteString("|dmax=" + strconv.Itoa(*f.MaxDuration))
	}
	return b.String()
}

// whereClause builds the SQL predicate and args for the filter, starting
// argument numbering at startArg.
func (f TripFilter) whereClause(startArg int) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	argNum := startArg

	if f.StartDate != nil {
		clauses = append(clauses, fmt.Sprintf("pickup_time >= $%d", argNum))
		args = append(args, *f.StartDate)
		argNum++
	}
	if f.EndDate != nil {
		// Inclusive date bound: anything before the start of the next day.
		clauses = append(clauses, fmt.Sprintf("pickup_time < $%d", argNum))
		args = append(args, f.EndDate.AddDate(0, 0, 1))
		argNum++
	}
	if tod := f.effectiveTimeOfDay(); tod != nil {
		placeholders := make([]string, len(tod))
		for i, label := range tod {
			placeholders[i] = fmt.Sprintf("$%d", argNum)
			args = append(args, label)
			argNum++
		}
		clauses = append(clauses, fmt.Sprintf("time_of_day IN (%s)", strings.Join(placeholders, ", ")))
	}
	if f.PassengerCount != nil {
		clauses = append(clauses, fmt.Sprintf("passenger_count = $%d", argNum))
		args = append(args, *f.PassengerCount)
		argNum++
	}
	if f.VendorID != nil {
		clauses = append(clauses, fmt.Sprintf("vendor_id = $%d", argNum))
		args = append(args, *f.VendorID)
		argNum++
	}
	if f.MinDuration != nil {
		clauses = append(clauses, fmt.Sprintf("duration_seconds >= $%d", argNum))
		args = append(args, *f.MinDuration)
		argNum++
	}
	if f.MaxDuration != nil {
		clauses = append(clauses, fmt.Sprintf("duration_seconds <= $%d", argNum))
		args = append(args, *f.MaxDuration)
		argNum++
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// tripRepository implements TripRepository against Postgres.
type tripRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewTripRepository creates a new trip repository.
func NewTripRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) TripRepository {
	return &tripRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const tripColumns = `
	trip_id, vendor_id, pickup_time, dropoff_time,
	pickup_longitude, pickup_latitude, dropoff_longitude, dropoff_latitude,
	passenger_count, store_and_fwd_flag, duration_seconds,
	trip_distance_miles, fare_amount, tip_amount,
	distance_km, speed_kmh, fare_per_km, tip_percentage, haversine_miles,
	hour_of_day, day_of_week, is_weekend, time_of_day, distance_category,
	created_at
`

// Upsert on trip_id so re-running a cleaning pass replaces every mutable
// column, coordinates and flag included; only created_at keeps its first
// value.
const upsertTripQuery = `
	INSERT INTO trips (` + tripColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
	        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	ON CONFLICT (trip_id) DO UPDATE SET
		vendor_id = EXCLUDED.vendor_id,
		pickup_time = EXCLUDED.pickup_time,
		dropoff_time = EXCLUDED.dropoff_time,
		pickup_longitude = EXCLUDED.pickup_longitude,
		pickup_latitude = EXCLUDED.pickup_latitude,
		dropoff_longitude = EXCLUDED.dropoff_longitude,
		dropoff_latitude = EXCLUDED.dropoff_latitude,
		passenger_count = EXCLUDED.passenger_count,
		store_and_fwd_flag = EXCLUDED.store_and_fwd_flag,
		duration_seconds = EXCLUDED.duration_seconds,
		trip_distance_miles = EXCLUDED.trip_distance_miles,
		fare_amount = EXCLUDED.fare_amount,
		tip_amount = EXCLUDED.tip_amount,
		distance_km = EXCLUDED.distance_km,
		speed_kmh = EXCLUDED.speed_kmh,
		fare_per_km = EXCLUDED.fare_per_km,
		tip_percentage = EXCLUDED.tip_percentage,
		haversine_miles = EXCLUDED.haversine_miles,
		hour_of_day = EXCLUDED.hour_of_day,
		day_of_week = EXCLUDED.day_of_week,
		is_weekend = EXCLUDED.is_weekend,
		time_of_day = EXCLUDED.time_of_day,
		distance_category = EXCLUDED.distance_category
`

// CreateTripsBatch inserts cleaned trips inside a single transaction.
// Re-running a cleaning pass over the same input upserts the same rows, which
// keeps runs idempotent end to end.
func (r *tripRepository) CreateTripsBatch(ctx context.Context, trips []*models.Trip) error {
	if len(trips) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Trip batch insert completed", logging.Fields{
			"count":       len(trips),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertTripQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range trips {
		_, err := stmt.ExecContext(ctx,
			t.TripID, t.VendorID, t.PickupTime, t.DropoffTime,
			t.PickupLongitude, t.PickupLatitude, t.DropoffLongitude, t.DropoffLatitude,
			t.PassengerCount, t.StoreAndFwdFlag, t.DurationSeconds,
			t.TripDistanceMiles, t.FareAmount, t.TipAmount,
			t.DistanceKm, t.SpeedKmh, t.FarePerKm, t.TipPercentage, t.HaversineMiles,
			t.HourOfDay, t.DayOfWeek, t.IsWeekend, t.TimeOfDay, t.DistanceCategory,
			t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trip %s: %w", t.TripID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SaveCleaningReport persists a run report. Reports are append-only, one per
// run, never updated.
func (r *tripRepository) SaveCleaningReport(ctx context.Context, report *models.CleaningReport) error {
	byReason, err := json.Marshal(report.ExcludedByReason)
	if err != nil {
		return fmt.Errorf("failed to marshal exclusion counts: %w", err)
	}
	columns, err := json.Marshal(report.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal column signature: %w", err)
	}

	query := `
		INSERT INTO cleaning_reports (
			run_id, run_timestamp, status, failure_message,
			input_rows, retained_rows, excluded_rows,
			excluded_by_reason, columns_signature
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, "insert_cleaning_report", query,
		report.RunID,
		report.RunTimestamp,
		report.Status,
		report.FailureMessage,
		report.InputRows,
		report.RetainedRows,
		report.ExcludedRows,
		byReason,
		columns,
	)
	if err != nil {
		return fmt.Errorf("failed to save cleaning report: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_SAVE_REPORT] Cleaning report saved", logging.Fields{
		"run_id": report.RunID,
		"status": report.Status,
	})

	return nil
}

// SaveExclusions persists the bounded exclusion sample for a run.
func (r *tripRepository) SaveExclusions(ctx context.Context, runID string, exclusions []models.ExclusionRecord) error {
	if len(exclusions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO excluded_records (run_id, row_index, reason, raw_record)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, exc := range exclusions {
		raw, err := json.Marshal(exc.Raw)
		if err != nil {
			return fmt.Errorf("failed to marshal excluded record: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, runID, exc.RowIndex, string(exc.Reason), raw); err != nil {
			return fmt.Errorf("failed to insert excluded record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTrip retrieves a single cleaned trip by identifier.
func (r *tripRepository) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	query := "SELECT " + tripColumns + " FROM trips WHERE trip_id = $1"

	var trip models.Trip
	err := r.db.GetContext(ctx, "get_trip", &trip, query, tripID)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "trip", ID: tripID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return &trip, nil
}

// GetTrips retrieves a page of cleaned trips matching the filter plus the
// total matching count. Callers treating page-derived distributions as
// population statistics are sampling; the total lets them know by how much.
func (r *tripRepository) GetTrips(ctx context.Context, filter TripFilter, limit, offset int) ([]*models.Trip, int, error) {
	where, args := filter.whereClause(1)

	countQuery := "SELECT COUNT(*) FROM trips" + where
	var totalCount int
	if err := r.db.GetContext(ctx, "count_trips", &totalCount, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count trips: %w", err)
	}

	query := "SELECT " + tripColumns + " FROM trips" + where +
		fmt.Sprintf(" ORDER BY pickup_time, trip_id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var trips []*models.Trip
	if err := r.db.SelectContext(ctx, "get_trips", &trips, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get trips: %w", err)
	}

	return trips, totalCount, nil
}

// GetTripMetrics retrieves the aggregation projection for every trip matching
// the filter. This is the full filtered population, not a page.
func (r *tripRepository) GetTripMetrics(ctx context.Context, filter TripFilter) ([]models.TripMetric, error) {
	where, args := filter.whereClause(1)

	query := `
		SELECT hour_of_day, day_of_week, vendor_id, duration_seconds,
		       distance_km, speed_kmh, fare_amount
		FROM trips` + where

	var rows []models.TripMetric
	if err := r.db.SelectContext(ctx, "get_trip_metrics", &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get trip metrics: %w", err)
	}

	return rows, nil
}

// GetCleaningReports returns the most recent run reports.
func (r *tripRepository) GetCleaningReports(ctx context.Context, limit int) ([]*models.CleaningReport, error) {
	query := `
		SELECT run_id, run_timestamp, status, failure_message,
		       input_rows, retained_rows, excluded_rows,
		       excluded_by_reason, columns_signature
		FROM cleaning_reports
		ORDER BY run_timestamp DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, "get_cleaning_reports", query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get cleaning reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.CleaningReport
	for rows.Next() {
		var report models.CleaningReport
		var byReason, columns []byte
		if err := rows.Scan(
			&report.RunID, &report.RunTimestamp, &report.Status, &report.FailureMessage,
			&report.InputRows, &report.RetainedRows, &report.ExcludedRows,
			&byReason, &columns,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cleaning report: %w", err)
		}
		if err := json.Unmarshal(byReason, &report.ExcludedByReason); err != nil {
			return nil, fmt.Errorf("failed to unmarshal exclusion counts: %w", err)
		}
		if err := json.Unmarshal(columns, &report.Columns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal column signature: %w", err)
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// HealthCheck performs a repository health check.
func (r *tripRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
