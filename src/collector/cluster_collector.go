package collector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/zvdy/clustermeta/src/models"
)

// ErrRefreshInProgress is returned when a refresh is requested while one is running
var ErrRefreshInProgress = errors.New("refresh already in progress")

// ClusterCollector periodically refreshes cluster path metadata and publishes it
type ClusterCollector struct {
	registry    *models.Registry
	coordinator *Coordinator
	publisher   *Publisher
	metrics     *Metrics
	log         *logrus.Logger
	cronSpec    string
	runOnStart  bool

	running atomic.Bool
	mu      sync.RWMutex
	last    *models.RefreshSummary
}

// NewClusterCollector creates a new ClusterCollector instance
func NewClusterCollector(
	registry *models.Registry,
	coordinator *Coordinator,
	publisher *Publisher,
	metrics *Metrics,
	log *logrus.Logger,
	cronSpec string,
	runOnStart bool,
) *ClusterCollector {
	return &ClusterCollector{
		registry:    registry,
		coordinator: coordinator,
		publisher:   publisher,
		metrics:     metrics,
		log:         log,
		cronSpec:    cronSpec,
		runOnStart:  runOnStart,
	}
}

// Start refreshes on the configured cron schedule until ctx is cancelled
func (cc *ClusterCollector) Start(ctx context.Context) error {
	logger := cron.PrintfLogger(cc.log)
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	if _, err := c.AddFunc(cc.cronSpec, func() { cc.runScheduled(ctx) }); err != nil {
		return err
	}

	cc.log.Infof("Cluster collector started (schedule %q)", cc.cronSpec)

	if cc.runOnStart {
		cc.runScheduled(ctx)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	cc.log.Info("Cluster collector stopped")
	return nil
}

func (cc *ClusterCollector) runScheduled(ctx context.Context) {
	if _, err := cc.RefreshNow(ctx); err != nil {
		if errors.Is(err, ErrRefreshInProgress) {
			cc.log.Warn("Skipping scheduled refresh: previous refresh still running")
			return
		}
		cc.log.Errorf("Failed to publish refresh result: %v", err)
	}
}

// RefreshNow resolves and publishes the registry immediately.
// The result is returned even when publishing fails.
func (cc *ClusterCollector) RefreshNow(ctx context.Context) (*models.RefreshResult, error) {
	if !cc.running.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer cc.running.Store(false)

	result := cc.coordinator.Refresh(ctx, cc.registry)

	cc.mu.Lock()
	cc.last = result.Summary()
	cc.mu.Unlock()

	if err := cc.publisher.Publish(ctx, result); err != nil {
		cc.metrics.publishFailures.Inc()
		return result, err
	}
	return result, nil
}

// LastSummary returns the summary of the most recent refresh, or nil before the first refresh
func (cc *ClusterCollector) LastSummary() *models.RefreshSummary {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.last
}

// Registry returns the clusters being refreshed
func (cc *ClusterCollector) Registry() *models.Registry {
	return cc.registry
}

// HostPaths returns the paths currently published for host
func (cc *ClusterCollector) HostPaths(ctx context.Context, host string) (*models.ResolvedPathInfo, bool, error) {
	return cc.publisher.HostPaths(ctx, host)
}
