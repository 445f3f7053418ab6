package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zvdy/clustermeta/src/models"
)

// fakeResolver answers from fixed tables and records how often each host is asked
type fakeResolver struct {
	mu       sync.Mutex
	infos    map[string]*models.ResolvedPathInfo
	errs     map[string]error
	calls    map[string]int
	delay    time.Duration
	inFlight int32
	peak     int32
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		infos: make(map[string]*models.ResolvedPathInfo),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeResolver) Resolve(ctx context.Context, host string) (*models.ResolvedPathInfo, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[host]++
	if err, ok := f.errs[host]; ok {
		return nil, err
	}
	return f.infos[host], nil
}

func testInfo(fs string) *models.ResolvedPathInfo {
	return &models.ResolvedPathInfo{
		DefaultFS:        fs,
		RemoteLogDir:     fs + "/tmp/logs",
		MapreduceDoneDir: fs + "/done",
	}
}

func newTestCoordinator(r PathResolver, concurrency int) (*Coordinator, *Metrics) {
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewCoordinator(r, concurrency, metrics, quietLogger()), metrics
}

func TestRefreshBuildsRegistryViews(t *testing.T) {
	resolver := newFakeResolver()
	resolver.infos["jhs-a"] = testInfo("hdfs://a:8020")
	registry := models.NewRegistry([]models.ClusterEntry{
		{ResourceManagers: []string{"rm1", "rm2"}, JobHistoryServer: "jhs-a"},
		{ResourceManagers: []string{"rm3"}, JobHistoryServer: ""},
	}, []string{"shs-1", "shs-2"})

	c, _ := newTestCoordinator(resolver, 2)
	result := c.Refresh(context.Background(), registry)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, []string{"shs-1", "shs-2"}, result.SparkHistoryServers)
	assert.Equal(t, map[string]string{"rm1": "jhs-a", "rm2": "jhs-a", "rm3": ""}, result.ResourceManagerToJobHistory)
	assert.Len(t, result.Clusters, 2)
	assert.Equal(t, map[string]int{"jhs-a": 1}, resolver.calls, "clusters without a JobHistory server are not resolved")
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestRefreshPartialFailure(t *testing.T) {
	resolver := newFakeResolver()
	resolver.infos["jhs-a"] = testInfo("hdfs://a:8020")
	resolver.errs["jhs-b"] = &ResolveError{Host: "jhs-b", Kind: ErrMissingRequiredField, Field: MapreduceDoneDirKey}
	registry := models.NewRegistry([]models.ClusterEntry{
		{ResourceManagers: []string{"rm-a"}, JobHistoryServer: "jhs-a"},
		{ResourceManagers: []string{"rm-b"}, JobHistoryServer: "jhs-b"},
	}, nil)

	c, metrics := newTestCoordinator(resolver, 2)
	result := c.Refresh(context.Background(), registry)

	require.Contains(t, result.Resolved, "jhs-a")
	assert.NotContains(t, result.Resolved, "jhs-b")
	require.Contains(t, result.Failures, "jhs-b")
	assert.Equal(t, "missing_required_field", result.Failures["jhs-b"].Kind)
	assert.Equal(t, MapreduceDoneDirKey, result.Failures["jhs-b"].Field)
	assert.True(t, result.Succeeded("jhs-a"))
	assert.False(t, result.Succeeded("jhs-b"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues("missing_required_field")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolvedHosts))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.refreshes))
}

func TestRefreshSharedHostResolvedOnce(t *testing.T) {
	resolver := newFakeResolver()
	resolver.infos["jhs-shared"] = testInfo("hdfs://s:8020")
	registry := models.NewRegistry([]models.ClusterEntry{
		{ResourceManagers: []string{"rm1"}, JobHistoryServer: "jhs-shared"},
		{ResourceManagers: []string{"rm2"}, JobHistoryServer: "jhs-shared"},
		{ResourceManagers: []string{"rm3"}, JobHistoryServer: "jhs-shared"},
	}, nil)

	c, _ := newTestCoordinator(resolver, 4)
	result := c.Refresh(context.Background(), registry)

	assert.Equal(t, 1, resolver.calls["jhs-shared"])
	assert.Len(t, result.Resolved, 1)
}

func TestRefreshRespectsConcurrencyLimit(t *testing.T) {
	resolver := newFakeResolver()
	resolver.delay = 20 * time.Millisecond
	var clusters []models.ClusterEntry
	for _, host := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		resolver.infos[host] = testInfo("hdfs://" + host)
		clusters = append(clusters, models.ClusterEntry{ResourceManagers: []string{"rm-" + host}, JobHistoryServer: host})
	}

	c, _ := newTestCoordinator(resolver, 2)
	result := c.Refresh(context.Background(), models.NewRegistry(clusters, nil))

	assert.Len(t, result.Resolved, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&resolver.peak), int32(2))
}

func TestRefreshEmptyRegistry(t *testing.T) {
	c, _ := newTestCoordinator(newFakeResolver(), 1)
	result := c.Refresh(context.Background(), models.NewRegistry(nil, nil))

	assert.Empty(t, result.Resolved)
	assert.Empty(t, result.Failures)
	assert.Empty(t, result.ResourceManagerToJobHistory)
	assert.NotNil(t, result.SparkHistoryServers)
}

// TestRefreshEndToEnd drives the real resolver against mocked JobHistory servers.
func TestRefreshEndToEnd(t *testing.T) {
	r, mt := newMockResolver()
	mt.RegisterResponder("GET", "http://jhs-a:19888/conf",
		httpmock.NewStringResponder(200, jsonProps(completeProps()...)))
	mt.RegisterResponder("GET", "http://jhs-b:19888/conf",
		httpmock.NewErrorResponder(context.DeadlineExceeded))

	registry := models.NewRegistry([]models.ClusterEntry{
		{ResourceManagers: []string{"rm-a1", "rm-a2"}, JobHistoryServer: "jhs-a:19888"},
		{ResourceManagers: []string{"rm-a3"}, JobHistoryServer: "jhs-a:19888"},
		{ResourceManagers: []string{"rm-b"}, JobHistoryServer: "jhs-b:19888"},
	}, []string{"shs:18080"})

	c, _ := newTestCoordinator(r, 4)
	result := c.Refresh(context.Background(), registry)

	require.Contains(t, result.Resolved, "jhs-a:19888")
	assert.Equal(t, "hdfs://nn:8020/tmp/logs", result.Resolved["jhs-a:19888"].RemoteLogDir)
	require.Contains(t, result.Failures, "jhs-b:19888")
	assert.Equal(t, "unreachable", result.Failures["jhs-b:19888"].Kind)

	counts := mt.GetCallCountInfo()
	assert.Equal(t, 1, counts["GET http://jhs-a:19888/conf"])
	assert.Equal(t, 1, counts["GET http://jhs-b:19888/conf"])
}
