package analytics

import (
	"sort"

	"taxi-platform/internal/models"
)

// ByHour groups trip metrics by pickup hour and computes per-bucket
// statistics. Hours with no matching records are omitted, not emitted as
// zero. Averages are arithmetic means over non-nil values only; a bucket
// whose metric values are all nil reports that metric as nil.
func ByHour(rows []models.TripMetric) []models.AggregateBucket {
	type accumulator struct {
		count         int
		durationSum   float64
		distanceSum   float64
		distanceCount int
		speedSum      float64
		speedCount    int
	}

	groups := make(map[int]*accumulator)
	for _, row := range rows {
		acc := groups[row.Hour]
		if acc == nil {
			acc = &accumulator{}
			groups[row.Hour] = acc
		}
		acc.count++
		acc.durationSum += float64(row.DurationSeconds)
		if row.DistanceKm != nil {
			acc.distanceSum += *row.DistanceKm
			acc.distanceCount++
		}
		if row.SpeedKmh != nil {
			acc.speedSum += *row.SpeedKmh
			acc.speedCount++
		}
	}

	buckets := make([]models.AggregateBucket, 0, len(groups))
	for hour, acc := range groups {
		bucket := models.AggregateBucket{
			Hour:      hour,
			TripCount: acc.count,
		}
		avgDuration := acc.durationSum / float64(acc.count)
		bucket.AvgDurationSeconds = &avgDuration
		if acc.distanceCount > 0 {
			avg := acc.distanceSum / float64(acc.distanceCount)
			bucket.AvgDistanceKm = &avg
		}
		if acc.speedCount > 0 {
			avg := acc.speedSum / float64(acc.speedCount)
			bucket.AvgSpeedKmh = &avg
		}
		buckets = append(buckets, bucket)
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Hour < buckets[j].Hour })

	return buckets
}

var dayNames = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// ByDayOfWeek groups trip metrics by Monday-indexed day of week. Same
// semantics as ByHour: sparse buckets, nil-excluded means, day-ascending
// order.
func ByDayOfWeek(rows []models.TripMetric) []models.DayOfWeekBucket {
	type accumulator struct {
		count         int
		durationSum   float64
		distanceSum   float64
		distanceCount int
		speedSum      float64
		speedCount    int
	}

	groups := make(map[int]*accumulator)
	for _, row := range rows {
		acc := groups[row.DayOfWeek]
		if acc == nil {
			acc = &accumulator{}
			groups[row.DayOfWeek] = acc
		}
		acc.count++
		acc.durationSum += float64(row.DurationSeconds)
		if row.DistanceKm != nil {
			acc.distanceSum += *row.DistanceKm
			acc.distanceCount++
		}
		if row.SpeedKmh != nil {
			acc.speedSum += *row.SpeedKmh
			acc.speedCount++
		}
	}

	buckets := make([]models.DayOfWeekBucket, 0, len(groups))
	for day, acc := range groups {
		bucket := models.DayOfWeekBucket{
			DayOfWeek: day,
			IsWeekend: day == 5 || day == 6,
			TripCount: acc.count,
		}
		if day >= 0 && day < len(dayNames) {
			bucket.DayName = dayNames[day]
		}
		avgDuration := acc.durationSum / float64(acc.count)
		bucket.AvgDurationSeconds = &avgDuration
		if acc.distanceCount > 0 {
			avg := acc.distanceSum / float64(acc.distanceCount)
			bucket.AvgDistanceKm = &avg
		}
		if acc.speedCount > 0 {
			avg := acc.speedSum / float64(acc.speedCount)
			bucket.AvgSpeedKmh = &avg
		}
		buckets = append(buckets, bucket)
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].DayOfWeek < buckets[j].DayOfWeek })

	return buckets
}

// ByVendor compares vendors over the filtered population: trip counts, the
// vendor's share of all matching trips and nil-excluded metric means.
func ByVendor(rows []models.TripMetric) []models.VendorStats {
	type accumulator struct {
		count         int
		durationSum   float64
		distanceSum   float64
		distanceCount int
		fareSum       float64
		fareCount     int
	}

	groups := make(map[int]*accumulator)
	for _, row := range rows {
		acc := groups[row.VendorID]
		if acc == nil {
			acc = &accumulator{}
			groups[row.VendorID] = acc
		}
		acc.count++
		acc.durationSum += float64(row.DurationSeconds)
		if row.DistanceKm != nil {
			acc.distanceSum += *row.DistanceKm
			acc.distanceCount++
		}
		if row.FareAmount != nil {
			acc.fareSum += *row.FareAmount
			acc.fareCount++
		}
	}

	stats := make([]models.VendorStats, 0, len(groups))
	for vendorID, acc := range groups {
		entry := models.VendorStats{
			VendorID:  vendorID,
			TripCount: acc.count,
			SharePct:  float64(acc.count) / float64(len(rows)) * 100,
		}
		avgDuration := acc.durationSum / float64(acc.count)
		entry.AvgDurationSeconds = &avgDuration
		if acc.distanceCount > 0 {
			avg := acc.distanceSum / float64(acc.distanceCount)
			entry.AvgDistanceKm = &avg
		}
		if acc.fareCount > 0 {
			avg := acc.fareSum / float64(acc.fareCount)
			entry.AvgFare = &avg
		}
		stats = append(stats, entry)
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].VendorID < stats[j].VendorID })

	return stats
}

// Overview computes aggregate statistics over the full filtered population.
// Never computed from a page: the metric projection covers every matching
// record.
func Overview(rows []models.TripMetric) models.OverviewStats {
	stats := models.OverviewStats{TripCount: len(rows)}
	if len(rows) == 0 {
		return stats
	}

	var durationSum float64
	var distanceSum, speedSum, fareSum float64
	var distanceCount, speedCount, fareCount int

	for _, row := range rows {
		durationSum += float64(row.DurationSeconds)
		if row.DistanceKm != nil {
			distanceSum += *row.DistanceKm
			distanceCount++
		}
		if row.SpeedKmh != nil {
			speedSum += *row.SpeedKmh
			speedCount++
		}
		if row.FareAmount != nil {
			fareSum += *row.FareAmount
			fareCount++
		}
	}

	avgDuration := durationSum / float64(len(rows))
	stats.AvgDurationSeconds = &avgDuration
	if distanceCount > 0 {
		avgDistance := distanceSum / float64(distanceCount)
		stats.AvgDistanceKm = &avgDistance
		total := distanceSum
		stats.TotalDistanceKm = &total
	}
	if speedCount > 0 {
		avgSpeed := speedSum / float64(speedCount)
		stats.AvgSpeedKmh = &avgSpeed
	}
	if fareCount > 0 {
		avgFare := fareSum / float64(fareCount)
		stats.AvgFare = &avgFare
	}

	return stats
}
