package pipeline

import (
	"math"
	"testing"
	"time"

	"taxi-platform/internal/models"
)

func baseTrip(t *testing.T, pickup string, duration int) *models.Trip {
	t.Helper()

	pickupTime, err := time.Parse(timestampLayout, pickup)
	if err != nil {
		t.Fatalf("bad pickup fixture: %v", err)
	}

	return &models.Trip{
		TripID:           "t1",
		PickupTime:       pickupTime,
		DropoffTime:      pickupTime.Add(time.Duration(duration) * time.Second),
		PickupLongitude:  -73.982155,
		PickupLatitude:   40.767937,
		DropoffLongitude: -73.964630,
		DropoffLatitude:  40.765602,
		DurationSeconds:  duration,
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestDeriveDistanceAndSpeed(t *testing.T) {
	d := NewFeatureDeriver(testCleaningConfig())

	// With a one hour duration, speed in km/h equals the distance in km.
	trip := baseTrip(t, "2016-03-14 17:24:55", 3600)
	trip.TripDistanceMiles = floatPtr(1)

	d.Derive(trip)

	if trip.DistanceKm == nil || *trip.DistanceKm != 1.60934 {
		t.Fatalf("expected distance 1.60934 km, got %v", trip.DistanceKm)
	}
	if trip.SpeedKmh == nil || *trip.SpeedKmh != 1.60934 {
		t.Fatalf("expected speed 1.60934 km/h, got %v", trip.SpeedKmh)
	}
}

func TestDeriveWithoutDistance(t *testing.T) {
	d := NewFeatureDeriver(testCleaningConfig())
	trip := baseTrip(t, "2016-03-14 17:24:55", 455)

	d.Derive(trip)

	if trip.DistanceKm != nil {
		t.Errorf("expected nil distance, got %v", *trip.DistanceKm)
	}
	if trip.SpeedKmh != nil {
		t.Errorf("expected nil speed, got %v", *trip.SpeedKmh)
	}
	if trip.DistanceCategory != nil {
		t.Errorf("expected nil distance category, got %v", *trip.DistanceCategory)
	}
	if trip.FarePerKm != nil {
		t.Errorf("expected nil fare per km, got %v", *trip.FarePerKm)
	}
	if trip.HaversineMiles <= 0 {
		t.Errorf("expected positive haversine distance, got %f", trip.HaversineMiles)
	}
}

func TestDeriveFarePerKm(t *testing.T) {
	d := NewFeatureDeriver(testCleaningConfig())
	trip := baseTrip(t, "2016-03-14 17:24:55", 3600)
	trip.TripDistanceMiles = floatPtr(1)
	trip.FareAmount = floatPtr(10)

	d.Derive(trip)

	want := 10.0 / 1.60934
	if trip.FarePerKm == nil || math.Abs(*trip.FarePerKm-want) > 1e-9 {
		t.Fatalf("expected fare per km %f, got %v", want, trip.FarePerKm)
	}
}

func TestDeriveTipPercentage(t *testing.T) {
	tests := []struct {
		name string
		fare float64
		tip  float64
		want float64
	}{
		{name: "twenty percent", fare: 10, tip: 2, want: 20},
		{name: "rounded to two decimals", fare: 3, tip: 1, want: 33.33},
		{name: "zero fare yields zero", fare: 0, tip: 2, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewFeatureDeriver(testCleaningConfig())
			trip := baseTrip(t, "2016-03-14 17:24:55", 455)
			trip.FareAmount = floatPtr(tt.fare)
			trip.TipAmount = floatPtr(tt.tip)

			d.Derive(trip)

			if trip.TipPercentage == nil || *trip.TipPercentage != tt.want {
				t.Errorf("expected tip percentage %v, got %v", tt.want, trip.TipPercentage)
			}
		})
	}
}

func TestDeriveTemporalFeatures(t *testing.T) {
	tests := []struct {
		name      string
		pickup    string
		hour      int
		dayOfWeek int
		weekend   bool
		timeOfDay string
	}{
		{
			name:      "monday afternoon",
			pickup:    "2016-03-14 17:24:55",
			hour:      17,
			dayOfWeek: 0,
			weekend:   false,
			timeOfDay: TimeOfDayAfternoon,
		},
		{
			name:      "saturday night",
			pickup:    "2016-03-12 23:15:00",
			hour:      23,
			dayOfWeek: 5,
			weekend:   true,
			timeOfDay: TimeOfDayNight,
		},
		{
			name:      "sunday morning",
			pickup:    "2016-03-13 06:00:00",
			hour:      6,
			dayOfWeek: 6,
			weekend:   true,
			timeOfDay: TimeOfDayMorning,
		},
		{
			name:      "friday evening",
			pickup:    "2016-03-18 21:59:59",
			hour:      21,
			dayOfWeek: 4,
			weekend:   false,
			timeOfDay: TimeOfDayEvening,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewFeatureDeriver(testCleaningConfig())
			trip := baseTrip(t, tt.pickup, 455)

			d.Derive(trip)

			if trip.HourOfDay != tt.hour {
				t.Errorf("expected hour %d, got %d", tt.hour, trip.HourOfDay)
			}
			if trip.DayOfWeek != tt.dayOfWeek {
				t.Errorf("expected day of week %d, got %d", tt.dayOfWeek, trip.DayOfWeek)
			}
			if trip.IsWeekend != tt.weekend {
				t.Errorf("expected weekend %v, got %v", tt.weekend, trip.IsWeekend)
			}
			if trip.TimeOfDay != tt.timeOfDay {
				t.Errorf("expected time of day %q, got %q", tt.timeOfDay, trip.TimeOfDay)
			}
		})
	}
}

func TestTimeOfDayBucket(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{hour: 0, want: TimeOfDayNight},
		{hour: 5, want: TimeOfDayNight},
		{hour: 6, want: TimeOfDayMorning},
		{hour: 11, want: TimeOfDayMorning},
		{hour: 12, want: TimeOfDayAfternoon},
		{hour: 17, want: TimeOfDayAfternoon},
		{hour: 18, want: TimeOfDayEvening},
		{hour: 21, want: TimeOfDayEvening},
		{hour: 22, want: TimeOfDayNight},
		{hour: 23, want: TimeOfDayNight},
	}

	for _, tt := range tests {
		if got := TimeOfDayBucket(tt.hour); got != tt.want {
			t.Errorf("hour %d: expected %q, got %q", tt.hour, tt.want, got)
		}
	}
}

func TestDistanceCategory(t *testing.T) {
	d := NewFeatureDeriver(testCleaningConfig())

	tests := []struct {
		miles float64
		want  string
	}{
		{miles: 0.5, want: DistanceVeryShort},
		{miles: 1, want: DistanceShort},
		{miles: 2.9, want: DistanceShort},
		{miles: 3, want: DistanceMedium},
		{miles: 7.9, want: DistanceMedium},
		{miles: 8, want: DistanceLong},
		{miles: 50, want: DistanceLong},
	}

	for _, tt := range tests {
		trip := baseTrip(t, "2016-03-14 17:24:55", 3600)
		trip.TripDistanceMiles = floatPtr(tt.miles)

		d.Derive(trip)

		if trip.DistanceCategory == nil || *trip.DistanceCategory != tt.want {
			t.Errorf("%.1f miles: expected category %q, got %v", tt.miles, tt.want, trip.DistanceCategory)
		}
	}
}

func TestGuardOutliersDropsImpossibleSpeed(t *testing.T) {
	d := NewFeatureDeriver(testCleaningConfig())

	// 100 miles in an hour is over the speed band.
	trip := baseTrip(t, "2016-03-14 17:24:55", 3600)
	trip.TripDistanceMiles = floatPtr(100)

	d.Derive(trip)
	if trip.SpeedKmh == nil {
		t.Fatal("expected derived speed before guarding")
	}

	d.GuardOutliers(trip)

	if trip.SpeedKmh != nil {
		t.Errorf("expected speed to be dropped, got %v", *trip.SpeedKmh)
	}
	if trip.DistanceKm == nil {
		t.Error("expected distance to survive the guard")
	}
}

func TestGuardOutliersKeepsPlausibleSpeed(t *testing.T) {
	d := NewFeatureDeriver(testCleaningConfig())
	trip := baseTrip(t, "2016-03-14 17:24:55", 3600)
	trip.TripDistanceMiles = floatPtr(20)

	d.Derive(trip)
	d.GuardOutliers(trip)

	if trip.SpeedKmh == nil {
		t.Fatal("expected plausible speed to be kept")
	}
}

func TestValidTimeOfDay(t *testing.T) {
	for _, label := range []string{TimeOfDayMorning, TimeOfDayAfternoon, TimeOfDayEvening, TimeOfDayNight} {
		if !ValidTimeOfDay(label) {
			t.Errorf("expected %q to be valid", label)
		}
	}
	for _, label := range []string{"", "noon", "Morning", "midnight"} {
		if ValidTimeOfDay(label) {
			t.Errorf("expected %q to be invalid", label)
		}
	}
}

func TestHaversineMiles(t *testing.T) {
	if d := HaversineMiles(40.7680, -73.9820, 40.7680, -73.9820); d != 0 {
		t.Errorf("expected zero distance for identical points, got %f", d)
	}

	// One degree of latitude is about 69.1 miles.
	d := HaversineMiles(40.0, -74.0, 41.0, -74.0)
	if math.Abs(d-69.09) > 0.1 {
		t.Errorf("expected roughly 69.09 miles per degree of latitude, got %f", d)
	}
}
