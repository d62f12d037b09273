package pipeline

import (
	"math"
	"time"

	"taxi-platform/internal/config"
	"taxi-platform/internal/models"
)

const (
	milesToKm     = 1.60934
	earthRadiusMi = 3958.7613
	fareEpsilonKm = 1e-6
)

// Time-of-day bucket labels. Night wraps midnight.
const (
	TimeOfDayMorning   = "morning"   // [6,12)
	TimeOfDayAfternoon = "afternoon" // [12,18)
	TimeOfDayEvening   = "evening"   // [18,22)
	TimeOfDayNight     = "night"     // [22,24) and [0,6)
)

// Distance category labels.
const (
	DistanceVeryShort = "very_short"
	DistanceShort     = "short"
	DistanceMedium    = "medium"
	DistanceLong      = "long"
)

// FeatureDeriver computes the derived numeric and categorical fields of a
// validated trip. Derivation never fails; metrics whose inputs are absent
// stay nil.
type FeatureDeriver struct {
	cfg config.CleaningConfig
}

func NewFeatureDeriver(cfg config.CleaningConfig) *FeatureDeriver {
	return &FeatureDeriver{cfg: cfg}
}

// Derive fills in the derived fields of t in place.
func (d *FeatureDeriver) Derive(t *models.Trip) {
	if t.TripDistanceMiles != nil {
		km := *t.TripDistanceMiles * milesToKm
		t.DistanceKm = &km

		speed := km / (float64(t.DurationSeconds) / 3600.0)
		t.SpeedKmh = &speed

		category := d.distanceCategory(*t.TripDistanceMiles)
		t.DistanceCategory = &category
	}

	if t.FareAmount != nil && t.DistanceKm != nil {
		perKm := *t.FareAmount / math.Max(fareEpsilonKm, *t.DistanceKm)
		t.FarePerKm = &perKm
	}

	if t.TipAmount != nil && t.FareAmount != nil {
		var pct float64
		if *t.FareAmount != 0 {
			pct = math.Round(*t.TipAmount / *t.FareAmount * 100 * 100) / 100
		}
		t.TipPercentage = &pct
	}

	t.HourOfDay = t.PickupTime.Hour()
	t.DayOfWeek = mondayIndexedWeekday(t.PickupTime.Weekday())
	t.IsWeekend = t.DayOfWeek == 5 || t.DayOfWeek == 6
	t.TimeOfDay = TimeOfDayBucket(t.HourOfDay)

	t.HaversineMiles = HaversineMiles(
		t.PickupLatitude, t.PickupLongitude,
		t.DropoffLatitude, t.DropoffLongitude,
	)
}

// GuardOutliers nulls out physically impossible derived values without
// re-excluding the record. Currently only speed is guarded: a value outside
// the configured band is dropped, the trip stays in the cleaned set.
func (d *FeatureDeriver) GuardOutliers(t *models.Trip) {
	if t.SpeedKmh != nil && (*t.SpeedKmh < d.cfg.MinSpeedKmh || *t.SpeedKmh > d.cfg.MaxSpeedKmh) {
		t.SpeedKmh = nil
	}
}

func (d *FeatureDeriver) distanceCategory(miles float64) string {
	switch {
	case miles < d.cfg.DistanceShortMiles:
		return DistanceVeryShort
	case miles < d.cfg.DistanceMediumMiles:
		return DistanceShort
	case miles < d.cfg.DistanceLongMiles:
		return DistanceMedium
	default:
		return DistanceLong
	}
}

// TimeOfDayBucket maps an hour of day (0-23) to its bucket label.
func TimeOfDayBucket(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return TimeOfDayMorning
	case hour >= 12 && hour < 18:
		return TimeOfDayAfternoon
	case hour >= 18 && hour < 22:
		return TimeOfDayEvening
	default:
		return TimeOfDayNight
	}
}

// ValidTimeOfDay reports whether label is one of the four bucket names.
func ValidTimeOfDay(label string) bool {
	switch label {
	case TimeOfDayMorning, TimeOfDayAfternoon, TimeOfDayEvening, TimeOfDayNight:
		return true
	}
	return false
}

// HaversineMiles is the great-circle distance between two points in miles.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMi * math.Asin(math.Sqrt(a))
}

// mondayIndexedWeekday maps time.Weekday (Sunday=0) to Monday=0 indexing,
// matching the day_of_week convention of the cleaned output.
func mondayIndexedWeekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}
