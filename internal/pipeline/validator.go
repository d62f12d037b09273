package pipeline

import (
	"fmt"
	"strconv"
	"time"

	"taxi-platform/internal/config"
	"taxi-platform/internal/models"
)

const timestampLayout = "2006-01-02 15:04:05"

// Validator applies the inclusion/exclusion rules to candidate records.
// A record either becomes a fully typed Trip or is excluded with a single
// reason; malformed input is an exclusion class, never an error.
//
// The validator carries per-run state: a seen-set for duplicate detection,
// keyed on (pickup time, dropoff time, pickup coordinates), first occurrence
// retained. Create one Validator per run.
type Validator struct {
	cfg  config.CleaningConfig
	seen map[string]struct{}
}

func NewValidator(cfg config.CleaningConfig) *Validator {
	return &Validator{
		cfg:  cfg,
		seen: make(map[string]struct{}),
	}
}

// Validate checks a raw record against every rule. On success the returned
// trip has all base (non-derived) fields populated; on failure the reason of
// the highest-priority failing rule is returned and the trip is nil.
func (v *Validator) Validate(raw *models.RawTripRecord) (*models.Trip, models.ExclusionReason) {
	// Rule 1: critical fields present and parseable.
	pickupTime, err := time.Parse(timestampLayout, raw.PickupDatetime)
	if err != nil {
		return nil, models.ReasonMissingCriticalField
	}
	dropoffTime, err := time.Parse(timestampLayout, raw.DropoffDatetime)
	if err != nil {
		return nil, models.ReasonMissingCriticalField
	}
	pickupLon, err := strconv.ParseFloat(raw.PickupLongitude, 64)
	if err != nil {
		return nil, models.ReasonMissingCriticalField
	}
	pickupLat, err := strconv.ParseFloat(raw.PickupLatitude, 64)
	if err != nil {
		return nil, models.ReasonMissingCriticalField
	}
	dropoffLon, err := strconv.ParseFloat(raw.DropoffLongitude, 64)
	if err != nil {
		return nil, models.ReasonMissingCriticalField
	}
	dropoffLat, err := strconv.ParseFloat(raw.DropoffLatitude, 64)
	if err != nil {
		return nil, models.ReasonMissingCriticalField
	}

	// Rule 2: duplicate rows, first occurrence wins.
	dupKey := fmt.Sprintf("%s|%s|%s|%s",
		raw.PickupDatetime, raw.DropoffDatetime, raw.PickupLongitude, raw.PickupLatitude)
	if _, dup := v.seen[dupKey]; dup {
		return nil, models.ReasonDuplicate
	}
	v.seen[dupKey] = struct{}{}

	// Rule 3: duration, supplied or computed from the timestamps.
	duration := int(dropoffTime.Sub(pickupTime).Seconds())
	if supplied, err := strconv.Atoi(raw.TripDuration); err == nil {
		duration = supplied
	}
	if duration <= 0 || duration > v.cfg.MaxDurationSeconds {
		return nil, models.ReasonInvalidDuration
	}

	// Rule 4: both coordinate pairs inside the bounding box. A literal zero
	// coordinate is treated as out of bounds regardless of the configured box.
	box := v.cfg.BoundingBox
	if !box.Contains(pickupLon, pickupLat) || !box.Contains(dropoffLon, dropoffLat) ||
		pickupLon == 0 || pickupLat == 0 || dropoffLon == 0 || dropoffLat == 0 {
		return nil, models.ReasonOutOfBounds
	}

	// Rule 5: trip distance, only when present.
	var distance *float64
	if raw.TripDistance != "" {
		d, err := strconv.ParseFloat(raw.TripDistance, 64)
		if err != nil || d <= 0 || d > v.cfg.MaxDistanceMiles {
			return nil, models.ReasonInvalidDistance
		}
		distance = &d
	}

	// Rule 6: fare, only when present.
	var fare *float64
	if raw.FareAmount != "" {
		f, err := strconv.ParseFloat(raw.FareAmount, 64)
		if err != nil || f < 0 || f > v.cfg.MaxFareAmount {
			return nil, models.ReasonInvalidFare
		}
		fare = &f
	}

	var tip *float64
	if raw.TipAmount != "" {
		if t, err := strconv.ParseFloat(raw.TipAmount, 64); err == nil && t >= 0 {
			tip = &t
		}
	}

	// Rule 7: passenger count. Missing or not a positive integer defaults to
	// 1; a positive integer above the acceptance band excludes. The band here
	// is narrower than the storage CHECK constraint on purpose.
	passengers := 1
	if p, err := strconv.Atoi(raw.PassengerCount); err == nil && p > 0 {
		if p < v.cfg.MinPassengers || p > v.cfg.MaxPassengers {
			return nil, models.ReasonInvalidPassengerCount
		}
		passengers = p
	}

	flag := raw.StoreAndFwdFlag
	if flag == "" {
		flag = "N"
	}
	if len(flag) > 1 {
		flag = flag[:1]
	}

	return &models.Trip{
		TripID:            raw.TripID,
		VendorID:          atoiOrZero(raw.VendorID),
		PickupTime:        pickupTime,
		DropoffTime:       dropoffTime,
		PickupLongitude:   pickupLon,
		PickupLatitude:    pickupLat,
		DropoffLongitude:  dropoffLon,
		DropoffLatitude:   dropoffLat,
		PassengerCount:    passengers,
		StoreAndFwdFlag:   flag,
		DurationSeconds:   duration,
		TripDistanceMiles: distance,
		FareAmount:        fare,
		TipAmount:         tip,
		CreatedAt:         time.Now().UTC(),
	}, ""
}

func atoiOrZero(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
