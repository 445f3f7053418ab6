package collector

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zvdy/clustermeta/src/models"
	"golang.org/x/sync/errgroup"
)

// Coordinator resolves every JobHistory server of a registry and aggregates the outcome
type Coordinator struct {
	resolver    PathResolver
	concurrency int
	metrics     *Metrics
	log         *logrus.Logger
}

// NewCoordinator creates a Coordinator resolving at most concurrency hosts at once
func NewCoordinator(resolver PathResolver, concurrency int, metrics *Metrics, log *logrus.Logger) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		resolver:    resolver,
		concurrency: concurrency,
		metrics:     metrics,
		log:         log,
	}
}

type hostOutcome struct {
	info *models.ResolvedPathInfo
	err  error
}

// Refresh builds a fresh RefreshResult for registry.
// Each distinct JobHistory server is resolved once; a failing host is recorded
// in the result and never aborts the refresh.
func (c *Coordinator) Refresh(ctx context.Context, registry *models.Registry) *models.RefreshResult {
	result := models.NewRefreshResult(uuid.NewString())
	log := c.log.WithField("refresh_id", result.ID)

	result.SparkHistoryServers = registry.SparkHistoryServers()
	result.Clusters = registry.Clusters()
	result.ResourceManagerToJobHistory = registry.ResourceManagerToJobHistory()

	for _, cluster := range result.Clusters {
		if cluster.JobHistoryServer == "" {
			log.Warnf("Cluster with resource managers %v has no JobHistory server, skipping", cluster.ResourceManagers)
		}
	}

	hosts := registry.JobHistoryServers()
	outcomes := make([]hostOutcome, len(hosts))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, host := range hosts {
		g.Go(func() error {
			info, err := c.resolver.Resolve(ctx, host)
			outcomes[i] = hostOutcome{info: info, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, host := range hosts {
		outcome := outcomes[i]
		if outcome.err != nil {
			failure := &models.HostFailure{
				Host:    host,
				Kind:    FailureKind(outcome.err),
				Message: outcome.err.Error(),
			}
			var re *ResolveError
			if errors.As(outcome.err, &re) {
				failure.Field = re.Field
			}
			result.Failures[host] = failure
			c.metrics.resolutions.WithLabelValues(failure.Kind).Inc()
			log.WithField("host", host).Errorf("Failed to resolve path info: %v", outcome.err)
			continue
		}
		result.Resolved[host] = outcome.info
		c.metrics.resolutions.WithLabelValues("success").Inc()
	}

	result.FinishedAt = time.Now()
	c.metrics.refreshes.Inc()
	c.metrics.refreshDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	c.metrics.resolvedHosts.Set(float64(len(result.Resolved)))

	log.Infof("Refresh finished: %d clusters, %d JobHistory servers, %d resolved, %d failed",
		len(result.Clusters), len(hosts), len(result.Resolved), len(result.Failures))
	return result
}
