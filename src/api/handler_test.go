package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zvdy/clustermeta/src/cache"
	"github.com/zvdy/clustermeta/src/collector"
	"github.com/zvdy/clustermeta/src/config"
	"github.com/zvdy/clustermeta/src/models"
)

type stubResolver map[string]*models.ResolvedPathInfo

func (s stubResolver) Resolve(_ context.Context, host string) (*models.ResolvedPathInfo, error) {
	if info, ok := s[host]; ok {
		return info, nil
	}
	return nil, &collector.ResolveError{Host: host, Kind: collector.ErrUnreachable}
}

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	promRegistry := prometheus.NewRegistry()
	metrics := collector.NewMetrics(promRegistry)
	resolver := stubResolver{
		"jhs-a:19888": {
			DefaultFS:        "hdfs://nn:8020",
			RemoteLogDir:     "hdfs://nn:8020/tmp/logs",
			MapreduceDoneDir: "hdfs://nn:8020/done",
		},
	}
	registry := models.NewRegistry([]models.ClusterEntry{
		{ResourceManagers: []string{"rm1:8088"}, JobHistoryServer: "jhs-a:19888"},
		{ResourceManagers: []string{"rm2:8088"}, JobHistoryServer: "jhs-b:19888"},
	}, []string{"shs:18080"})
	keys := config.KeysConfig{
		SparkHistoryServers:                "spark",
		YarnClusters:                       "clusters",
		ResourceManagerToJobHistory:        "rm-jhs",
		RemoteLogDirPrefix:                 "remote:",
		MapreduceDoneDirPrefix:             "done:",
		MapreduceIntermediateDoneDirPrefix: "intermediate:",
	}

	cc := collector.NewClusterCollector(
		registry,
		collector.NewCoordinator(resolver, 2, metrics, log),
		collector.NewPublisher(cache.NewMemoryStore(), keys, log),
		metrics,
		log,
		"@every 1h",
		false,
	)

	router := mux.NewRouter()
	NewHandler(cc, promRegistry, log).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthCheck(t *testing.T) {
	rec := do(newTestRouter(t), "GET", "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadinessFollowsFirstRefresh(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, "GET", "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.Equal(t, http.StatusOK, do(router, "POST", "/api/v1/refresh").Code)

	rec = do(router, "GET", "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","clusters":2}`, rec.Body.String())
}

func TestListClusters(t *testing.T) {
	rec := do(newTestRouter(t), "GET", "/api/v1/clusters")
	require.Equal(t, http.StatusOK, rec.Code)

	var body clustersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Clusters, 2)
	assert.Equal(t, []string{"shs:18080"}, body.SparkHistoryServers)
	assert.Equal(t, "jhs-b:19888", body.ResourceManagerToJobHistory["rm2:8088"])
}

func TestRefreshEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, "GET", "/api/v1/refresh")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, "POST", "/api/v1/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.RefreshResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Contains(t, result.Resolved, "jhs-a:19888")
	assert.Equal(t, "unreachable", result.Failures["jhs-b:19888"].Kind)

	rec = do(router, "GET", "/api/v1/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary models.RefreshSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, result.ID, summary.ID)
	assert.Equal(t, []string{"jhs-a:19888"}, summary.ResolvedHosts)
}

func TestGetHostPaths(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, "GET", "/api/v1/hosts/jhs-a:19888/paths")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, do(router, "POST", "/api/v1/refresh").Code)

	rec = do(router, "GET", "/api/v1/hosts/jhs-a:19888/paths")
	require.Equal(t, http.StatusOK, rec.Code)

	var paths models.ResolvedPathInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&paths))
	assert.Equal(t, "hdfs://nn:8020/tmp/logs", paths.RemoteLogDir)
	assert.Equal(t, "hdfs://nn:8020/done", paths.MapreduceDoneDir)

	rec = do(router, "GET", "/api/v1/hosts/jhs-b:19888/paths")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusOK, do(router, "POST", "/api/v1/refresh").Code)

	rec := do(router, "GET", "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "clustermeta_refreshes_total 1"))
	assert.True(t, strings.Contains(body, `clustermeta_host_resolutions_total{outcome="unreachable"} 1`))
}
