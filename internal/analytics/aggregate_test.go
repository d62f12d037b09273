package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-platform/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestByHour(t *testing.T) {
	rows := []models.TripMetric{
		{Hour: 8, DurationSeconds: 600, DistanceKm: floatPtr(2), SpeedKmh: floatPtr(12)},
		{Hour: 8, DurationSeconds: 900, DistanceKm: floatPtr(4), SpeedKmh: floatPtr(16)},
		{Hour: 17, DurationSeconds: 1200, DistanceKm: floatPtr(6), SpeedKmh: floatPtr(18)},
	}

	buckets := ByHour(rows)
	require.Len(t, buckets, 2)

	assert.Equal(t, 8, buckets[0].Hour)
	assert.Equal(t, 2, buckets[0].TripCount)
	require.NotNil(t, buckets[0].AvgDurationSeconds)
	assert.Equal(t, 750.0, *buckets[0].AvgDurationSeconds)
	require.NotNil(t, buckets[0].AvgDistanceKm)
	assert.Equal(t, 3.0, *buckets[0].AvgDistanceKm)
	require.NotNil(t, buckets[0].AvgSpeedKmh)
	assert.Equal(t, 14.0, *buckets[0].AvgSpeedKmh)

	assert.Equal(t, 17, buckets[1].Hour)
	assert.Equal(t, 1, buckets[1].TripCount)
	require.NotNil(t, buckets[1].AvgDurationSeconds)
	assert.Equal(t, 1200.0, *buckets[1].AvgDurationSeconds)
}

func TestByHourSortsSparseBuckets(t *testing.T) {
	rows := []models.TripMetric{
		{Hour: 23, DurationSeconds: 300},
		{Hour: 0, DurationSeconds: 400},
		{Hour: 12, DurationSeconds: 500},
	}

	buckets := ByHour(rows)
	require.Len(t, buckets, 3)
	assert.Equal(t, 0, buckets[0].Hour)
	assert.Equal(t, 12, buckets[1].Hour)
	assert.Equal(t, 23, buckets[2].Hour)
}

func TestByHourNilMetricsExcludedFromMeans(t *testing.T) {
	rows := []models.TripMetric{
		{Hour: 9, DurationSeconds: 600, DistanceKm: floatPtr(3), SpeedKmh: nil},
		{Hour: 9, DurationSeconds: 800, DistanceKm: nil, SpeedKmh: nil},
	}

	buckets := ByHour(rows)
	require.Len(t, buckets, 1)

	b := buckets[0]
	assert.Equal(t, 2, b.TripCount)
	require.NotNil(t, b.AvgDurationSeconds)
	assert.Equal(t, 700.0, *b.AvgDurationSeconds)

	// Mean over the single non-nil value, not over the bucket count.
	require.NotNil(t, b.AvgDistanceKm)
	assert.Equal(t, 3.0, *b.AvgDistanceKm)

	// All values nil: the average itself is nil, never zero.
	assert.Nil(t, b.AvgSpeedKmh)
}

func TestByHourEmptyInput(t *testing.T) {
	assert.Empty(t, ByHour(nil))
	assert.Empty(t, ByHour([]models.TripMetric{}))
}

func TestByDayOfWeek(t *testing.T) {
	rows := []models.TripMetric{
		{DayOfWeek: 0, DurationSeconds: 600, DistanceKm: floatPtr(2), SpeedKmh: floatPtr(12)},
		{DayOfWeek: 0, DurationSeconds: 900, DistanceKm: floatPtr(4), SpeedKmh: floatPtr(16)},
		{DayOfWeek: 5, DurationSeconds: 1200, DistanceKm: floatPtr(6), SpeedKmh: floatPtr(18)},
	}

	buckets := ByDayOfWeek(rows)
	require.Len(t, buckets, 2)

	assert.Equal(t, 0, buckets[0].DayOfWeek)
	assert.Equal(t, "Monday", buckets[0].DayName)
	assert.False(t, buckets[0].IsWeekend)
	assert.Equal(t, 2, buckets[0].TripCount)
	require.NotNil(t, buckets[0].AvgDurationSeconds)
	assert.Equal(t, 750.0, *buckets[0].AvgDurationSeconds)
	require.NotNil(t, buckets[0].AvgDistanceKm)
	assert.Equal(t, 3.0, *buckets[0].AvgDistanceKm)
	require.NotNil(t, buckets[0].AvgSpeedKmh)
	assert.Equal(t, 14.0, *buckets[0].AvgSpeedKmh)

	assert.Equal(t, 5, buckets[1].DayOfWeek)
	assert.Equal(t, "Saturday", buckets[1].DayName)
	assert.True(t, buckets[1].IsWeekend)
	assert.Equal(t, 1, buckets[1].TripCount)
}

func TestByDayOfWeekSortsSparseBuckets(t *testing.T) {
	rows := []models.TripMetric{
		{DayOfWeek: 6, DurationSeconds: 300},
		{DayOfWeek: 1, DurationSeconds: 400},
		{DayOfWeek: 4, DurationSeconds: 500},
	}

	buckets := ByDayOfWeek(rows)
	require.Len(t, buckets, 3)
	assert.Equal(t, "Tuesday", buckets[0].DayName)
	assert.Equal(t, "Friday", buckets[1].DayName)
	assert.Equal(t, "Sunday", buckets[2].DayName)
	assert.False(t, buckets[1].IsWeekend)
	assert.True(t, buckets[2].IsWeekend)
}

func TestByDayOfWeekNilMetricsExcludedFromMeans(t *testing.T) {
	rows := []models.TripMetric{
		{DayOfWeek: 2, DurationSeconds: 600, DistanceKm: floatPtr(3)},
		{DayOfWeek: 2, DurationSeconds: 800},
	}

	buckets := ByDayOfWeek(rows)
	require.Len(t, buckets, 1)

	b := buckets[0]
	assert.Equal(t, 2, b.TripCount)
	require.NotNil(t, b.AvgDurationSeconds)
	assert.Equal(t, 700.0, *b.AvgDurationSeconds)
	require.NotNil(t, b.AvgDistanceKm)
	assert.Equal(t, 3.0, *b.AvgDistanceKm)
	assert.Nil(t, b.AvgSpeedKmh)
}

func TestByDayOfWeekEmptyInput(t *testing.T) {
	assert.Empty(t, ByDayOfWeek(nil))
}

func TestByVendor(t *testing.T) {
	rows := []models.TripMetric{
		{VendorID: 1, DurationSeconds: 600, DistanceKm: floatPtr(2), FareAmount: floatPtr(10)},
		{VendorID: 1, DurationSeconds: 900, DistanceKm: floatPtr(4), FareAmount: floatPtr(20)},
		{VendorID: 2, DurationSeconds: 1200, DistanceKm: floatPtr(6), FareAmount: nil},
		{VendorID: 2, DurationSeconds: 300, DistanceKm: nil, FareAmount: nil},
	}

	stats := ByVendor(rows)
	require.Len(t, stats, 2)

	assert.Equal(t, 1, stats[0].VendorID)
	assert.Equal(t, 2, stats[0].TripCount)
	assert.Equal(t, 50.0, stats[0].SharePct)
	require.NotNil(t, stats[0].AvgDurationSeconds)
	assert.Equal(t, 750.0, *stats[0].AvgDurationSeconds)
	require.NotNil(t, stats[0].AvgDistanceKm)
	assert.Equal(t, 3.0, *stats[0].AvgDistanceKm)
	require.NotNil(t, stats[0].AvgFare)
	assert.Equal(t, 15.0, *stats[0].AvgFare)

	assert.Equal(t, 2, stats[1].VendorID)
	assert.Equal(t, 50.0, stats[1].SharePct)
	require.NotNil(t, stats[1].AvgDistanceKm)
	assert.Equal(t, 6.0, *stats[1].AvgDistanceKm)
	assert.Nil(t, stats[1].AvgFare)
}

func TestByVendorShareSumsAcrossUnevenSplit(t *testing.T) {
	rows := []models.TripMetric{
		{VendorID: 2, DurationSeconds: 100},
		{VendorID: 1, DurationSeconds: 100},
		{VendorID: 2, DurationSeconds: 100},
		{VendorID: 2, DurationSeconds: 100},
	}

	stats := ByVendor(rows)
	require.Len(t, stats, 2)
	assert.Equal(t, 1, stats[0].VendorID)
	assert.Equal(t, 25.0, stats[0].SharePct)
	assert.Equal(t, 75.0, stats[1].SharePct)
}

func TestByVendorEmptyInput(t *testing.T) {
	assert.Empty(t, ByVendor(nil))
}

func TestOverview(t *testing.T) {
	rows := []models.TripMetric{
		{Hour: 8, DurationSeconds: 600, DistanceKm: floatPtr(2), SpeedKmh: floatPtr(12), FareAmount: floatPtr(10)},
		{Hour: 9, DurationSeconds: 900, DistanceKm: floatPtr(4), SpeedKmh: nil, FareAmount: floatPtr(20)},
		{Hour: 10, DurationSeconds: 1500, DistanceKm: nil, SpeedKmh: nil, FareAmount: nil},
	}

	stats := Overview(rows)

	assert.Equal(t, 3, stats.TripCount)
	require.NotNil(t, stats.AvgDurationSeconds)
	assert.Equal(t, 1000.0, *stats.AvgDurationSeconds)
	require.NotNil(t, stats.AvgDistanceKm)
	assert.Equal(t, 3.0, *stats.AvgDistanceKm)
	require.NotNil(t, stats.TotalDistanceKm)
	assert.Equal(t, 6.0, *stats.TotalDistanceKm)
	require.NotNil(t, stats.AvgSpeedKmh)
	assert.Equal(t, 12.0, *stats.AvgSpeedKmh)
	require.NotNil(t, stats.AvgFare)
	assert.Equal(t, 15.0, *stats.AvgFare)
}

func TestOverviewEmptyPopulation(t *testing.T) {
	stats := Overview(nil)

	assert.Equal(t, 0, stats.TripCount)
	assert.Nil(t, stats.AvgDurationSeconds)
	assert.Nil(t, stats.AvgDistanceKm)
	assert.Nil(t, stats.AvgSpeedKmh)
	assert.Nil(t, stats.AvgFare)
	assert.Nil(t, stats.TotalDistanceKm)
}

func TestOverviewAllNilMetrics(t *testing.T) {
	rows := []models.TripMetric{
		{Hour: 8, DurationSeconds: 600},
		{Hour: 9, DurationSeconds: 800},
	}

	stats := Overview(rows)

	assert.Equal(t, 2, stats.TripCount)
	require.NotNil(t, stats.AvgDurationSeconds)
	assert.Equal(t, 700.0, *stats.AvgDurationSeconds)
	assert.Nil(t, stats.AvgDistanceKm)
	assert.Nil(t, stats.TotalDistanceKm)
	assert.Nil(t, stats.AvgSpeedKmh)
	assert.Nil(t, stats.AvgFare)
}
