package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"weather-compare/internal/repository"
	"weather-compare/internal/services"
	"weather-compare/pkg/logging"
	"weather-compare/pkg/metrics"
)

// WeatherHandler handles the comparison API endpoints
type WeatherHandler struct {
	comparisonService *services.ComparisonService
	ingestionService  *services.IngestionService
	statusService     *services.StatusService
	cityNames         []string
	logger            *logging.StructuredLogger
	metrics           *metrics.Collector
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(
	comparisonService *services.ComparisonService,
	ingestionService *services.IngestionService,
	statusService *services.StatusService,
	cityNames []string,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WeatherHandler {
	return &WeatherHandler{
		comparisonService: comparisonService,
		ingestionService:  ingestionService,
		statusService:     statusService,
		cityNames:         cityNames,
		logger:            logger,
		metrics:           metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// FetchResponse represents the outcome of a manual ingestion trigger
type FetchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// GetCities handles GET /api/cities
func (h *WeatherHandler) GetCities(w http.ResponseWriter, r *http.Request) {
	defer h.timeEndpoint("/api/cities")()

	h.metrics.RecordAPIRequest("/api/cities", "GET", "200")
	h.sendJSON(w, h.cityNames, http.StatusOK)
}

// GetWeather handles GET /api/weather/{city}
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.timeEndpoint("/api/weather")()

	city := mux.Vars(r)["city"]

	result, err := h.comparisonService.Compare(ctx, city)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			h.sendError(w, r, fmt.Sprintf("unknown city: %s", city), http.StatusNotFound)
			return
		}

		h.logger.Error(ctx, "[API_WEATHER_ERROR] Comparison query failed", logging.Fields{
			"city": city,
		}, err)
		h.metrics.RecordAPIError("storage_error", "/api/weather")
		h.sendError(w, r, "failed to load weather comparison", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/weather", "GET", "200")
	h.sendJSON(w, result, http.StatusOK)
}

// TriggerFetch handles POST /api/fetch: synchronous ingestion + cleanup.
func (h *WeatherHandler) TriggerFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.timeEndpoint("/api/fetch")()

	result, err := h.ingestionService.IngestAll(ctx)
	if err != nil {
		if errors.Is(err, services.ErrIngestionInFlight) {
			h.metrics.RecordAPIRequest("/api/fetch", "POST", "409")
			h.sendJSON(w, FetchResponse{
				Success: false,
				Message: "an ingestion run is already in progress",
			}, http.StatusConflict)
			return
		}

		h.logger.Error(ctx, "[API_FETCH_ERROR] Manual ingestion failed", logging.Fields{}, err)
		h.metrics.RecordAPIError("ingestion_error", "/api/fetch")
		h.sendError(w, r, "ingestion failed", http.StatusInternalServerError)
		return
	}

	deleted, err := h.ingestionService.Cleanup(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_FETCH_CLEANUP_ERROR] Cleanup after manual ingestion failed", logging.Fields{}, err)
		h.metrics.RecordAPIError("cleanup_error", "/api/fetch")
		h.sendError(w, r, "cleanup failed", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/fetch", "POST", "200")
	h.sendJSON(w, FetchResponse{
		Success: true,
		Message: fmt.Sprintf("ingested %d samples for %d/%d cities, %d expired samples deleted",
			result.SamplesUpserted, result.CitiesSucceeded, result.CitiesAttempted, deleted),
	}, http.StatusOK)
}

// GetStatus handles GET /api/status
func (h *WeatherHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.timeEndpoint("/api/status")()

	report, err := h.statusService.GetStatus(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_STATUS_ERROR] Status query failed", logging.Fields{}, err)
		h.metrics.RecordAPIError("storage_error", "/api/status")
		h.sendError(w, r, "failed to load status", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/status", "GET", "200")
	h.sendJSON(w, report, http.StatusOK)
}

// GetCityDebug handles GET /api/debug/{city}
func (h *WeatherHandler) GetCityDebug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.timeEndpoint("/api/debug")()

	city := mux.Vars(r)["city"]

	aggregates, err := h.statusService.GetCityDebug(ctx, city)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			h.sendError(w, r, fmt.Sprintf("unknown city: %s", city), http.StatusNotFound)
			return
		}

		h.logger.Error(ctx, "[API_DEBUG_ERROR] Debug query failed", logging.Fields{
			"city": city,
		}, err)
		h.metrics.RecordAPIError("storage_error", "/api/debug")
		h.sendError(w, r, "failed to load debug breakdown", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/debug", "GET", "200")
	h.sendJSON(w, aggregates, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.sendJSON(w, status, http.StatusOK)
}

// timeEndpoint returns a deferred duration observer for one endpoint.
func (h *WeatherHandler) timeEndpoint(endpoint string) func() {
	startTime := time.Now()
	return func() {
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}
}

// sendJSON sends a JSON response
func (h *WeatherHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *WeatherHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	h.sendJSON(w, ErrorResponse{
		Error: message,
		Code:  statusCode,
	}, statusCode)
}

// RegisterRoutes registers all comparison API routes
func (h *WeatherHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/cities", h.GetCities).Methods("GET")
	router.HandleFunc("/api/weather/{city}", h.GetWeather).Methods("GET")
	router.HandleFunc("/api/fetch", h.TriggerFetch).Methods("POST")
	router.HandleFunc("/api/status", h.GetStatus).Methods("GET")
	router.HandleFunc("/api/debug/{city}", h.GetCityDebug).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/docs", SwaggerUI).Methods("GET")
}
