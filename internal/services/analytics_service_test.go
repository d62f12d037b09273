package services

import (
	"context"
	"errors"
	"testing"

	"taxi-platform/internal/models"
	"taxi-platform/internal/repository"
)

func floatPtr(v float64) *float64 { return &v }

func analyticsFixture() *fakeTripRepository {
	repo := newFakeRepo()
	repo.metricsRows = []models.TripMetric{
		{Hour: 8, DurationSeconds: 600, DistanceKm: floatPtr(2), SpeedKmh: floatPtr(12), FareAmount: floatPtr(10)},
		{Hour: 8, DurationSeconds: 900, DistanceKm: floatPtr(4), SpeedKmh: floatPtr(16), FareAmount: floatPtr(20)},
		{Hour: 17, DurationSeconds: 1200, DistanceKm: floatPtr(6), SpeedKmh: floatPtr(18), FareAmount: floatPtr(30)},
	}
	return repo
}

func TestOverviewCoversFullPopulation(t *testing.T) {
	svc := NewAnalyticsService(analyticsFixture(), nil, testLogger(), testCollector())

	stats, err := svc.Overview(context.Background(), repository.TripFilter{})
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}

	if stats.TripCount != 3 {
		t.Errorf("expected 3 trips, got %d", stats.TripCount)
	}
	if stats.AvgDurationSeconds == nil || *stats.AvgDurationSeconds != 900 {
		t.Errorf("unexpected avg duration %v", stats.AvgDurationSeconds)
	}
	if stats.TotalDistanceKm == nil || *stats.TotalDistanceKm != 12 {
		t.Errorf("unexpected total distance %v", stats.TotalDistanceKm)
	}
	if stats.AvgFare == nil || *stats.AvgFare != 20 {
		t.Errorf("unexpected avg fare %v", stats.AvgFare)
	}
}

func TestByHourBuckets(t *testing.T) {
	svc := NewAnalyticsService(analyticsFixture(), nil, testLogger(), testCollector())

	buckets, err := svc.ByHour(context.Background(), repository.TripFilter{})
	if err != nil {
		t.Fatalf("by-hour failed: %v", err)
	}

	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Hour != 8 || buckets[0].TripCount != 2 {
		t.Errorf("unexpected first bucket %+v", buckets[0])
	}
	if buckets[1].Hour != 17 || buckets[1].TripCount != 1 {
		t.Errorf("unexpected second bucket %+v", buckets[1])
	}
}

func TestByDayOfWeekBuckets(t *testing.T) {
	repo := newFakeRepo()
	repo.metricsRows = []models.TripMetric{
		{DayOfWeek: 0, DurationSeconds: 600, DistanceKm: floatPtr(2)},
		{DayOfWeek: 0, DurationSeconds: 900, DistanceKm: floatPtr(4)},
		{DayOfWeek: 6, DurationSeconds: 1200, DistanceKm: floatPtr(6)},
	}
	svc := NewAnalyticsService(repo, nil, testLogger(), testCollector())

	buckets, err := svc.ByDayOfWeek(context.Background(), repository.TripFilter{})
	if err != nil {
		t.Fatalf("by-day-of-week failed: %v", err)
	}

	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].DayName != "Monday" || buckets[0].TripCount != 2 || buckets[0].IsWeekend {
		t.Errorf("unexpected first bucket %+v", buckets[0])
	}
	if buckets[1].DayName != "Sunday" || !buckets[1].IsWeekend {
		t.Errorf("unexpected second bucket %+v", buckets[1])
	}
}

func TestByVendorComparison(t *testing.T) {
	repo := newFakeRepo()
	repo.metricsRows = []models.TripMetric{
		{VendorID: 1, DurationSeconds: 600, FareAmount: floatPtr(10)},
		{VendorID: 2, DurationSeconds: 900, FareAmount: floatPtr(20)},
		{VendorID: 2, DurationSeconds: 1200, FareAmount: floatPtr(30)},
		{VendorID: 1, DurationSeconds: 300, FareAmount: floatPtr(40)},
	}
	svc := NewAnalyticsService(repo, nil, testLogger(), testCollector())

	stats, err := svc.ByVendor(context.Background(), repository.TripFilter{})
	if err != nil {
		t.Fatalf("by-vendor failed: %v", err)
	}

	if len(stats) != 2 {
		t.Fatalf("expected 2 vendors, got %d", len(stats))
	}
	if stats[0].VendorID != 1 || stats[0].SharePct != 50 {
		t.Errorf("unexpected first vendor %+v", stats[0])
	}
	if stats[1].AvgFare == nil || *stats[1].AvgFare != 25 {
		t.Errorf("unexpected second vendor fare %v", stats[1].AvgFare)
	}
}

func TestInsightsFromBuckets(t *testing.T) {
	svc := NewAnalyticsService(analyticsFixture(), nil, testLogger(), testCollector())

	insights, err := svc.Insights(context.Background(), repository.TripFilter{})
	if err != nil {
		t.Fatalf("insights failed: %v", err)
	}

	if len(insights) != 3 {
		t.Fatalf("expected 3 insights, got %d", len(insights))
	}
	if insights[0].Title != "Peak Hour" {
		t.Errorf("unexpected first insight %+v", insights[0])
	}
}

func TestInsightsEmptyPopulation(t *testing.T) {
	svc := NewAnalyticsService(newFakeRepo(), nil, testLogger(), testCollector())

	insights, err := svc.Insights(context.Background(), repository.TripFilter{})
	if err != nil {
		t.Fatalf("insights failed: %v", err)
	}
	if len(insights) != 0 {
		t.Errorf("expected no insights for empty population, got %d", len(insights))
	}
}

func TestAnalyticsPropagatesQueryErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.metricsErr = errors.New("db down")
	svc := NewAnalyticsService(repo, nil, testLogger(), testCollector())

	if _, err := svc.Overview(context.Background(), repository.TripFilter{}); err == nil {
		t.Error("expected overview to propagate the error")
	}
	if _, err := svc.ByHour(context.Background(), repository.TripFilter{}); err == nil {
		t.Error("expected by-hour to propagate the error")
	}
	if _, err := svc.ByDayOfWeek(context.Background(), repository.TripFilter{}); err == nil {
		t.Error("expected by-day-of-week to propagate the error")
	}
	if _, err := svc.ByVendor(context.Background(), repository.TripFilter{}); err == nil {
		t.Error("expected by-vendor to propagate the error")
	}
	if _, err := svc.Insights(context.Background(), repository.TripFilter{}); err == nil {
		t.Error("expected insights to propagate the error")
	}
}

func TestTripsPagination(t *testing.T) {
	repo := newFakeRepo()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		repo.trips = append(repo.trips, &models.Trip{TripID: id})
	}
	svc := NewAnalyticsService(repo, nil, testLogger(), testCollector())

	page, err := svc.Trips(context.Background(), repository.TripFilter{}, 2, 2)
	if err != nil {
		t.Fatalf("trips failed: %v", err)
	}

	if len(page.Trips) != 2 {
		t.Fatalf("expected 2 trips on page, got %d", len(page.Trips))
	}
	if page.Trips[0].TripID != "c" {
		t.Errorf("expected page to start at c, got %s", page.Trips[0].TripID)
	}
	if page.Meta.Total != 5 {
		t.Errorf("expected total 5, got %d", page.Meta.Total)
	}
	if page.Meta.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", page.Meta.TotalPages)
	}
	if !page.Meta.Sampled {
		t.Error("expected page to be marked as a sample of the population")
	}
}

func TestTripsSinglePageNotSampled(t *testing.T) {
	repo := newFakeRepo()
	repo.trips = append(repo.trips, &models.Trip{TripID: "a"})
	svc := NewAnalyticsService(repo, nil, testLogger(), testCollector())

	page, err := svc.Trips(context.Background(), repository.TripFilter{}, 1, 10)
	if err != nil {
		t.Fatalf("trips failed: %v", err)
	}
	if page.Meta.Sampled {
		t.Error("expected a fully covered listing not to be marked sampled")
	}
}

func TestTripLookup(t *testing.T) {
	repo := newFakeRepo()
	repo.trips = append(repo.trips, &models.Trip{TripID: "id1"})
	svc := NewAnalyticsService(repo, nil, testLogger(), testCollector())

	trip, err := svc.Trip(context.Background(), "id1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if trip.TripID != "id1" {
		t.Errorf("unexpected trip %+v", trip)
	}

	_, err = svc.Trip(context.Background(), "missing")
	var notFound *repository.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}
