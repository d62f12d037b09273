package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"taxi-platform/internal/config"
	"taxi-platform/internal/models"
	"taxi-platform/internal/pipeline"
	"taxi-platform/internal/repository"
	"taxi-platform/internal/services"
	"taxi-platform/pkg/logging"
	"taxi-platform/pkg/metrics"
)

const dateLayout = "2006-01-02"

// TripHandler handles the trip analytics API endpoints.
type TripHandler struct {
	analytics *services.AnalyticsService
	cleaning  *services.CleaningService
	cfg       *config.Config
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewTripHandler creates a new trip handler.
func NewTripHandler(
	analyticsService *services.AnalyticsService,
	cleaningService *services.CleaningService,
	cfg *config.Config,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *TripHandler {
	return &TripHandler{
		analytics: analyticsService,
		cleaning:  cleaningService,
		cfg:       cfg,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ParseFilter builds a TripFilter from query parameters. Invalid values are
// rejected per-query with a descriptive error; they never affect other
// queries or any cached state.
func (h *TripHandler) ParseFilter(r *http.Request) (repository.TripFilter, error) {
	q := r.URL.Query()
	var filter repository.TripFilter

	if v := q.Get("start_date"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return filter, fmt.Errorf("invalid start_date %q, expected YYYY-MM-DD", v)
		}
		filter.StartDate = &d
	}
	if v := q.Get("end_date"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return filter, fmt.Errorf("invalid end_date %q, expected YYYY-MM-DD", v)
		}
		filter.EndDate = &d
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return filter, fmt.Errorf("end_date precedes start_date")
	}

	if v := q.Get("time_of_day"); v != "" {
		for _, label := range strings.Split(v, ",") {
			label = strings.TrimSpace(label)
			if !pipeline.ValidTimeOfDay(label) {
				return filter, fmt.Errorf("invalid time_of_day %q, expected one of morning, afternoon, evening, night", label)
			}
			filter.TimeOfDay = append(filter.TimeOfDay, label)
		}
	}

	if v := q.Get("passenger_count"); v != "" && v != "all" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			return filter, fmt.Errorf("invalid passenger_count %q, expected a positive integer or \"all\"", v)
		}
		filter.PassengerCount = &p
	}

	if v := q.Get("vendor_id"); v != "" && v != "all" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid vendor_id %q, expected an integer or \"all\"", v)
		}
		if !h.cfg.KnownVendor(id) {
			return filter, fmt.Errorf("unknown vendor_id %d", id)
		}
		filter.VendorID = &id
	}

	if v := q.Get("min_duration"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			return filter, fmt.Errorf("invalid min_duration %q, expected seconds", v)
		}
		filter.MinDuration = &d
	}
	if v := q.Get("max_duration"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			return filter, fmt.Errorf("invalid max_duration %q, expected seconds", v)
		}
		filter.MaxDuration = &d
	}

	return filter, nil
}

func (h *TripHandler) parsePagination(r *http.Request) (page, limit int) {
	page = 1
	limit = h.cfg.API.DefaultPageLimit

	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= h.cfg.API.MaxPageLimit {
			limit = l
		}
	}

	return page, limit
}

// GetTrips handles GET /api/trips
func (h *TripHandler) GetTrips(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/trips", time.Now())

	filter, err := h.ParseFilter(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	page, limit := h.parsePagination(r)

	result, err := h.analytics.Trips(ctx, filter, page, limit)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_TRIPS_ERROR] Failed to get trips", logging.Fields{
			"filter": filter.CacheKey(),
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/trips")
		h.sendError(w, r, "failed to retrieve trips", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/trips", "GET", "200")
	h.sendJSON(w, result, http.StatusOK)
}

// GetTrip handles GET /api/trips/{id}
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/trips/{id}", time.Now())

	tripID := mux.Vars(r)["id"]

	trip, err := h.analytics.Trip(ctx, tripID)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			h.sendError(w, r, notFound.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "[API_GET_TRIP_ERROR] Failed to get trip", logging.Fields{
			"trip_id": tripID,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/trips/{id}")
		h.sendError(w, r, "failed to retrieve trip", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/trips/{id}", "GET", "200")
	h.sendJSON(w, trip, http.StatusOK)
}

// GetOverview handles GET /api/statistics/overview
func (h *TripHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/statistics/overview", time.Now())

	filter, err := h.ParseFilter(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := h.analytics.Overview(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_OVERVIEW_ERROR] Failed to compute overview", logging.Fields{
			"filter": filter.CacheKey(),
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/statistics/overview")
		h.sendError(w, r, "failed to compute statistics", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/statistics/overview", "GET", "200")
	h.sendJSON(w, stats, http.StatusOK)
}

// GetByHour handles GET /api/statistics/by-hour
func (h *TripHandler) GetByHour(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/statistics/by-hour", time.Now())

	filter, err := h.ParseFilter(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	buckets, err := h.analytics.ByHour(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_BY_HOUR_ERROR] Failed to compute hourly statistics", logging.Fields{
			"filter": filter.CacheKey(),
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/statistics/by-hour")
		h.sendError(w, r, "failed to compute statistics", http.StatusInternalServerError)
		return
	}
	if buckets == nil {
		buckets = []models.AggregateBucket{}
	}

	h.metrics.RecordAPIRequest("/api/statistics/by-hour", "GET", "200")
	h.sendJSON(w, buckets, http.StatusOK)
}

// GetByDayOfWeek handles GET /api/statistics/by-day-of-week
func (h *TripHandler) GetByDayOfWeek(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/statistics/by-day-of-week", time.Now())

	filter, err := h.ParseFilter(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	buckets, err := h.analytics.ByDayOfWeek(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_BY_DAY_ERROR] Failed to compute day-of-week statistics", logging.Fields{
			"filter": filter.CacheKey(),
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/statistics/by-day-of-week")
		h.sendError(w, r, "failed to compute statistics", http.StatusInternalServerError)
		return
	}
	if buckets == nil {
		buckets = []models.DayOfWeekBucket{}
	}

	h.metrics.RecordAPIRequest("/api/statistics/by-day-of-week", "GET", "200")
	h.sendJSON(w, buckets, http.StatusOK)
}

// GetByVendor handles GET /api/statistics/by-vendor
func (h *TripHandler) GetByVendor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/statistics/by-vendor", time.Now())

	filter, err := h.ParseFilter(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := h.analytics.ByVendor(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_BY_VENDOR_ERROR] Failed to compute vendor comparison", logging.Fields{
			"filter": filter.CacheKey(),
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/statistics/by-vendor")
		h.sendError(w, r, "failed to compute statistics", http.StatusInternalServerError)
		return
	}
	if stats == nil {
		stats = []models.VendorStats{}
	}

	h.metrics.RecordAPIRequest("/api/statistics/by-vendor", "GET", "200")
	h.sendJSON(w, stats, http.StatusOK)
}

// GetInsights handles GET /api/insights
func (h *TripHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/insights", time.Now())

	filter, err := h.ParseFilter(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	insights, err := h.analytics.Insights(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_INSIGHTS_ERROR] Failed to synthesize insights", logging.Fields{
			"filter": filter.CacheKey(),
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/insights")
		h.sendError(w, r, "failed to synthesize insights", http.StatusInternalServerError)
		return
	}
	if insights == nil {
		insights = []models.Insight{}
	}

	h.metrics.RecordAPIRequest("/api/insights", "GET", "200")
	h.sendJSON(w, map[string]interface{}{"insights": insights}, http.StatusOK)
}

// GetReports handles GET /api/reports
func (h *TripHandler) GetReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/reports", time.Now())

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	reports, err := h.cleaning.LatestReports(ctx, limit)
	if err != nil {
		h.logger.Error(ctx, "[API_REPORTS_ERROR] Failed to get cleaning reports", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/reports")
		h.sendError(w, r, "failed to retrieve cleaning reports", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/reports", "GET", "200")
	h.sendJSON(w, reports, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *TripHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

func (h *TripHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// sendJSON sends a JSON response.
func (h *TripHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response.
func (h *TripHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all trip API routes.
func (h *TripHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/trips", h.GetTrips).Methods("GET")
	router.HandleFunc("/api/trips/{id}", h.GetTrip).Methods("GET")
	router.HandleFunc("/api/statistics/overview", h.GetOverview).Methods("GET")
	router.HandleFunc("/api/statistics/by-hour", h.GetByHour).Methods("GET")
	router.HandleFunc("/api/statistics/by-day-of-week", h.GetByDayOfWeek).Methods("GET")
	router.HandleFunc("/api/statistics/by-vendor", h.GetByVendor).Methods("GET")
	router.HandleFunc("/api/insights", h.GetInsights).Methods("GET")
	router.HandleFunc("/api/reports", h.GetReports).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
