package analytics

import (
	"fmt"

	"taxi-platform/internal/models"
)

// Synthesize scans by-hour aggregates for extremal patterns and emits
// human-readable findings. Deterministic: exact ties are broken by the lowest
// hour index. An empty bucket set yields zero insights, never an error, and
// nothing is ever fabricated outside the supplied aggregates.
func Synthesize(buckets []models.AggregateBucket) []models.Insight {
	if len(buckets) == 0 {
		return nil
	}

	peak := buckets[0]
	quiet := buckets[0]
	for _, b := range buckets[1:] {
		if b.TripCount > peak.TripCount {
			peak = b
		}
		if b.TripCount < quiet.TripCount {
			quiet = b
		}
	}

	insights := []models.Insight{
		{
			Title: "Peak Hour",
			Description: fmt.Sprintf("The busiest hour is %02d:00 with %d trips.",
				peak.Hour, peak.TripCount),
		},
		{
			Title: "Quietest Hour",
			Description: fmt.Sprintf("The quietest hour is %02d:00 with %d trips.",
				quiet.Hour, quiet.TripCount),
		},
	}

	var longest *models.AggregateBucket
	for i := range buckets {
		b := &buckets[i]
		if b.AvgDurationSeconds == nil {
			continue
		}
		if longest == nil || *b.AvgDurationSeconds > *longest.AvgDurationSeconds {
			longest = b
		}
	}
	if longest != nil {
		insights = append(insights, models.Insight{
			Title: "Longest Avg Duration",
			Description: fmt.Sprintf("Trips starting at %02d:00 run longest, averaging %.0f seconds.",
				longest.Hour, *longest.AvgDurationSeconds),
		})
	}

	return insights
}
