package services

import (
	"context"

	"taxi-platform/internal/analytics"
	"taxi-platform/internal/cache"
	"taxi-platform/internal/models"
	"taxi-platform/internal/repository"
	"taxi-platform/pkg/logging"
	"taxi-platform/pkg/metrics"
)

// AnalyticsService serves the aggregate statistics and insights surface.
// It re-reads persisted cleaned trips through caller-supplied filters, feeds
// them to the aggregation engine and optionally caches the results. The read
// path holds no mutable state of its own, so concurrent queries are safe.
type AnalyticsService struct {
	repo    repository.TripRepository
	cache   *cache.Cache // nil when caching is disabled
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAnalyticsService creates a new analytics service. cache may be nil.
func NewAnalyticsService(repo repository.TripRepository, queryCache *cache.Cache, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AnalyticsService {
	return &AnalyticsService{
		repo:    repo,
		cache:   queryCache,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// TripPage is one page of the trips listing. Distributions computed from a
// page are a sample of at most Limit trips, not the full filtered population;
// Sampled is true whenever the page does not cover every match.
type TripPage struct {
	Trips []*models.Trip `json:"trips"`
	Meta  PageMeta       `json:"page_meta"`
}

type PageMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	Sampled    bool `json:"sampled"`
}

// Overview computes aggregate statistics over the full filtered population.
func (s *AnalyticsService) Overview(ctx context.Context, filter repository.TripFilter) (*models.OverviewStats, error) {
	key := "overview:" + filter.CacheKey()
	var cached models.OverviewStats
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	rows, err := s.repo.GetTripMetrics(ctx, filter)
	if err != nil {
		return nil, err
	}

	stats := analytics.Overview(rows)
	s.cacheSet(ctx, key, stats)

	return &stats, nil
}

// ByHour groups the filtered population by pickup hour. Sparse: hours with no
// matching trips are absent from the result.
func (s *AnalyticsService) ByHour(ctx context.Context, filter repository.TripFilter) ([]models.AggregateBucket, error) {
	key := "by_hour:" + filter.CacheKey()
	var cached []models.AggregateBucket
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.repo.GetTripMetrics(ctx, filter)
	if err != nil {
		return nil, err
	}

	buckets := analytics.ByHour(rows)
	s.cacheSet(ctx, key, buckets)

	return buckets, nil
}

// ByDayOfWeek groups the filtered population by Monday-indexed day of week.
func (s *AnalyticsService) ByDayOfWeek(ctx context.Context, filter repository.TripFilter) ([]models.DayOfWeekBucket, error) {
	key := "by_day:" + filter.CacheKey()
	var cached []models.DayOfWeekBucket
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.repo.GetTripMetrics(ctx, filter)
	if err != nil {
		return nil, err
	}

	buckets := analytics.ByDayOfWeek(rows)
	s.cacheSet(ctx, key, buckets)

	return buckets, nil
}

// ByVendor compares the configured vendors over the filtered population.
func (s *AnalyticsService) ByVendor(ctx context.Context, filter repository.TripFilter) ([]models.VendorStats, error) {
	key := "by_vendor:" + filter.CacheKey()
	var cached []models.VendorStats
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.repo.GetTripMetrics(ctx, filter)
	if err != nil {
		return nil, err
	}

	stats := analytics.ByVendor(rows)
	s.cacheSet(ctx, key, stats)

	return stats, nil
}

// Insights synthesizes findings from the by-hour aggregation of the filtered
// population. An empty population yields an empty insight list.
func (s *AnalyticsService) Insights(ctx context.Context, filter repository.TripFilter) ([]models.Insight, error) {
	key := "insights:" + filter.CacheKey()
	var cached []models.Insight
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	buckets, err := s.ByHour(ctx, filter)
	if err != nil {
		return nil, err
	}

	insights := analytics.Synthesize(buckets)
	s.cacheSet(ctx, key, insights)

	return insights, nil
}

// Trips returns one page of the filtered trip listing.
func (s *AnalyticsService) Trips(ctx context.Context, filter repository.TripFilter, page, limit int) (*TripPage, error) {
	offset := (page - 1) * limit

	trips, total, err := s.repo.GetTrips(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}

	totalPages := (total + limit - 1) / limit

	return &TripPage{
		Trips: trips,
		Meta: PageMeta{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			Sampled:    total > len(trips),
		},
	}, nil
}

// Trip returns one cleaned trip by identifier.
func (s *AnalyticsService) Trip(ctx context.Context, tripID string) (*models.Trip, error) {
	return s.repo.GetTrip(ctx, tripID)
}

func (s *AnalyticsService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn(ctx, "[CACHE_GET_FAILED] Treating as miss", logging.Fields{"key": key})
		s.metrics.CacheMissesTotal.Inc()
		return false
	}
	if hit {
		s.metrics.CacheHitsTotal.Inc()
	} else {
		s.metrics.CacheMissesTotal.Inc()
	}
	return hit
}

// cacheSet runs only after a successful query; a failed query never touches
// the cache.
func (s *AnalyticsService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn(ctx, "[CACHE_SET_FAILED] Result not cached", logging.Fields{"key": key})
	}
}
