package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/zvdy/clustermeta/src/collector"
	"github.com/zvdy/clustermeta/src/models"
)

// Handler handles API requests
type Handler struct {
	clusterCollector *collector.ClusterCollector
	gatherer         prometheus.Gatherer
	log              *logrus.Logger
}

// NewHandler creates a new API handler
func NewHandler(clusterCollector *collector.ClusterCollector, gatherer prometheus.Gatherer, log *logrus.Logger) *Handler {
	return &Handler{
		clusterCollector: clusterCollector,
		gatherer:         gatherer,
		log:              log,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health check
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/ready", h.ReadinessCheck).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// Cluster endpoints
	r.HandleFunc("/api/v1/clusters", h.ListClusters).Methods("GET")
	r.HandleFunc("/api/v1/hosts/{host}/paths", h.GetHostPaths).Methods("GET")

	// Refresh endpoints
	r.HandleFunc("/api/v1/refresh", h.GetLastRefresh).Methods("GET")
	r.HandleFunc("/api/v1/refresh", h.TriggerRefresh).Methods("POST")
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "ok",
	}
	h.respondJSON(w, http.StatusOK, response)
}

// ReadinessCheck reports ready once the first refresh has completed
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	last := h.clusterCollector.LastSummary()

	status := "ready"
	statusCode := http.StatusOK
	if last == nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":   status,
		"clusters": len(h.clusterCollector.Registry().Clusters()),
	}
	h.respondJSON(w, statusCode, response)
}

// clustersResponse is the registry as served by ListClusters
type clustersResponse struct {
	Clusters                    []models.ClusterEntry `json:"clusters"`
	SparkHistoryServers         []string              `json:"sparkHistoryServers"`
	ResourceManagerToJobHistory map[string]string     `json:"resourceManagerToJobHistory"`
}

// ListClusters returns the configured clusters
func (h *Handler) ListClusters(w http.ResponseWriter, r *http.Request) {
	registry := h.clusterCollector.Registry()
	h.respondJSON(w, http.StatusOK, clustersResponse{
		Clusters:                    registry.Clusters(),
		SparkHistoryServers:         registry.SparkHistoryServers(),
		ResourceManagerToJobHistory: registry.ResourceManagerToJobHistory(),
	})
}

// GetHostPaths returns the paths published for a JobHistory server
func (h *Handler) GetHostPaths(w http.ResponseWriter, r *http.Request) {
	host := mux.Vars(r)["host"]

	paths, ok, err := h.clusterCollector.HostPaths(r.Context(), host)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		h.respondError(w, http.StatusNotFound, "No paths published for host")
		return
	}

	h.respondJSON(w, http.StatusOK, paths)
}

// GetLastRefresh returns the summary of the last refresh
func (h *Handler) GetLastRefresh(w http.ResponseWriter, r *http.Request) {
	last := h.clusterCollector.LastSummary()
	if last == nil {
		h.respondError(w, http.StatusNotFound, "No refresh has completed yet")
		return
	}
	h.respondJSON(w, http.StatusOK, last)
}

// TriggerRefresh runs a refresh now and returns its result
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.clusterCollector.RefreshNow(r.Context())
	if errors.Is(err, collector.ErrRefreshInProgress) {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.log.Errorf("Refresh publish failed: %v", err)
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError sends an error response
func (h *Handler) respondError(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]string{
		"error": message,
	}
	h.respondJSON(w, statusCode, response)
}
