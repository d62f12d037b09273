package models

import (
	"time"
)

// RawTripRecord is a single row from the raw trip export, untrusted and
// unparsed. Fields stay as the strings found in the file; RowIndex is the
// zero-based position of the row in the input, used for deterministic
// exclusion ordering.
type RawTripRecord struct {
	RowIndex         int    `json:"row_index"`
	TripID           string `json:"id"`
	VendorID         string `json:"vendor_id"`
	PickupDatetime   string `json:"pickup_datetime"`
	DropoffDatetime  string `json:"dropoff_datetime"`
	PickupLongitude  string `json:"pickup_longitude"`
	PickupLatitude   string `json:"pickup_latitude"`
	DropoffLongitude string `json:"dropoff_longitude"`
	DropoffLatitude  string `json:"dropoff_latitude"`
	PassengerCount   string `json:"passenger_count"`
	StoreAndFwdFlag  string `json:"store_and_fwd_flag"`
	TripDuration     string `json:"trip_duration"`
	TripDistance     string `json:"trip_distance,omitempty"`
	FareAmount       string `json:"fare_amount,omitempty"`
	TipAmount        string `json:"tip_amount,omitempty"`
}

// Trip is a fully validated, feature-enriched trip record.
// Optional raw fields and derived metrics that can be undefined are pointers;
// nil means the value is absent, not zero.
type Trip struct {
	TripID           string    `json:"trip_id" db:"trip_id"`
	VendorID         int       `json:"vendor_id" db:"vendor_id"`
	PickupTime       time.Time `json:"pickup_time" db:"pickup_time"`
	DropoffTime      time.Time `json:"dropoff_time" db:"dropoff_time"`
	PickupLongitude  float64   `json:"pickup_longitude" db:"pickup_longitude"`
	PickupLatitude   float64   `json:"pickup_latitude" db:"pickup_latitude"`
	DropoffLongitude float64   `json:"dropoff_longitude" db:"dropoff_longitude"`
	DropoffLatitude  float64   `json:"dropoff_latitude" db:"dropoff_latitude"`
	PassengerCount   int       `json:"passenger_count" db:"passenger_count"`
	StoreAndFwdFlag  string    `json:"store_and_fwd_flag" db:"store_and_fwd_flag"`
	DurationSeconds  int       `json:"duration_seconds" db:"duration_seconds"`

	TripDistanceMiles *float64 `json:"trip_distance_miles,omitempty" db:"trip_distance_miles"`
	FareAmount        *float64 `json:"fare_amount,omitempty" db:"fare_amount"`
	TipAmount         *float64 `json:"tip_amount,omitempty" db:"tip_amount"`

	// Derived fields, computed after validation.
	DistanceKm       *float64 `json:"distance_km,omitempty" db:"distance_km"`
	SpeedKmh         *float64 `json:"speed_kmh,omitempty" db:"speed_kmh"`
	FarePerKm        *float64 `json:"fare_per_km,omitempty" db:"fare_per_km"`
	TipPercentage    *float64 `json:"tip_percentage,omitempty" db:"tip_percentage"`
	HaversineMiles   float64  `json:"haversine_miles" db:"haversine_miles"`
	HourOfDay        int      `json:"hour_of_day" db:"hour_of_day"`
	DayOfWeek        int      `json:"day_of_week" db:"day_of_week"`
	IsWeekend        bool     `json:"is_weekend" db:"is_weekend"`
	TimeOfDay        string   `json:"time_of_day" db:"time_of_day"`
	DistanceCategory *string  `json:"distance_category,omitempty" db:"distance_category"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ExclusionReason identifies why a raw record failed validation.
type ExclusionReason string

const (
	ReasonMissingCriticalField  ExclusionReason = "missing_critical_field"
	ReasonDuplicate             ExclusionReason = "duplicate"
	ReasonInvalidDuration       ExclusionReason = "invalid_duration"
	ReasonOutOfBounds           ExclusionReason = "out_of_bounds"
	ReasonInvalidDistance       ExclusionReason = "invalid_distance"
	ReasonInvalidFare           ExclusionReason = "invalid_fare"
	ReasonInvalidPassengerCount ExclusionReason = "invalid_passenger_count"
)

// ExclusionRecord pairs a rejected raw row with its exclusion reason.
// Immutable once created; only the first N per run are retained.
type ExclusionRecord struct {
	RowIndex int             `json:"row_index"`
	Reason   ExclusionReason `json:"reason"`
	Raw      RawTripRecord   `json:"raw"`
}

// ColumnType is one entry of the cleaned output's type signature.
type ColumnType struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CleaningReport summarizes a single cleaning run. Created once when the run
// ends (or fails) and never mutated afterwards.
type CleaningReport struct {
	RunID            string         `json:"run_id" db:"run_id"`
	RunTimestamp     time.Time      `json:"run_timestamp" db:"run_timestamp"`
	Status           string         `json:"status" db:"status"` // "completed" or "failed"
	FailureMessage   string         `json:"failure_message,omitempty" db:"failure_message"`
	InputRows        int            `json:"input_rows" db:"input_rows"`
	RetainedRows     int            `json:"retained_rows" db:"retained_rows"`
	ExcludedRows     int            `json:"excluded_rows" db:"excluded_rows"`
	ExcludedByReason map[string]int `json:"excluded_by_reason"`
	Columns          []ColumnType   `json:"columns"`
}

const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// OutputColumns is the fixed type signature of the cleaned record stream,
// recorded in every CleaningReport.
func OutputColumns() []ColumnType {
	return []ColumnType{
		{Name: "trip_id", Type: "string"},
		{Name: "vendor_id", Type: "int"},
		{Name: "pickup_time", Type: "timestamp"},
		{Name: "dropoff_time", Type: "timestamp"},
		{Name: "pickup_longitude", Type: "float64"},
		{Name: "pickup_latitude", Type: "float64"},
		{Name: "dropoff_longitude", Type: "float64"},
		{Name: "dropoff_latitude", Type: "float64"},
		{Name: "passenger_count", Type: "int"},
		{Name: "store_and_fwd_flag", Type: "string"},
		{Name: "duration_seconds", Type: "int"},
		{Name: "trip_distance_miles", Type: "float64?"},
		{Name: "fare_amount", Type: "float64?"},
		{Name: "tip_amount", Type: "float64?"},
		{Name: "distance_km", Type: "float64?"},
		{Name: "speed_kmh", Type: "float64?"},
		{Name: "fare_per_km", Type: "float64?"},
		{Name: "tip_percentage", Type: "float64?"},
		{Name: "haversine_miles", Type: "float64"},
		{Name: "hour_of_day", Type: "int"},
		{Name: "day_of_week", Type: "int"},
		{Name: "is_weekend", Type: "bool"},
		{Name: "time_of_day", Type: "string"},
		{Name: "distance_category", Type: "string?"},
	}
}

// TripMetric is the narrow projection of a cleaned trip that the aggregation
// engine consumes. Nullable metrics stay nullable so that means can exclude
// absent values while counts still include the record.
type TripMetric struct {
	Hour            int      `db:"hour_of_day"`
	DayOfWeek       int      `db:"day_of_week"`
	VendorID        int      `db:"vendor_id"`
	DurationSeconds int      `db:"duration_seconds"`
	DistanceKm      *float64 `db:"distance_km"`
	SpeedKmh        *float64 `db:"speed_kmh"`
	FareAmount      *float64 `db:"fare_amount"`
}

// AggregateBucket is one group of a by-hour aggregation. Averages are nil when
// no record in the bucket carries the metric.
type AggregateBucket struct {
	Hour               int      `json:"hour"`
	TripCount          int      `json:"trip_count"`
	AvgDurationSeconds *float64 `json:"avg_duration_seconds"`
	AvgDistanceKm      *float64 `json:"avg_distance_km"`
	AvgSpeedKmh        *float64 `json:"avg_speed_kmh"`
}

// DayOfWeekBucket is one group of a by-day-of-week aggregation. Days are
// Monday-indexed (Monday=0) to match the cleaned output convention.
type DayOfWeekBucket struct {
	DayOfWeek          int      `json:"day_of_week"`
	DayName            string   `json:"day_name"`
	IsWeekend          bool     `json:"is_weekend"`
	TripCount          int      `json:"trip_count"`
	AvgDurationSeconds *float64 `json:"avg_duration_seconds"`
	AvgDistanceKm      *float64 `json:"avg_distance_km"`
	AvgSpeedKmh        *float64 `json:"avg_speed_kmh"`
}

// VendorStats is one vendor's share of the filtered population.
type VendorStats struct {
	VendorID           int      `json:"vendor_id"`
	TripCount          int      `json:"trip_count"`
	SharePct           float64  `json:"share_pct"`
	AvgDurationSeconds *float64 `json:"avg_duration_seconds"`
	AvgDistanceKm      *float64 `json:"avg_distance_km"`
	AvgFare            *float64 `json:"avg_fare"`
}

// OverviewStats are aggregate statistics over the full filtered population.
type OverviewStats struct {
	TripCount          int      `json:"trip_count"`
	AvgDurationSeconds *float64 `json:"avg_duration_seconds"`
	AvgDistanceKm      *float64 `json:"avg_distance_km"`
	AvgSpeedKmh        *float64 `json:"avg_speed_kmh"`
	AvgFare            *float64 `json:"avg_fare"`
	TotalDistanceKm    *float64 `json:"total_distance_km"`
}

// Insight is a short human-readable finding synthesized from aggregates.
type Insight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
