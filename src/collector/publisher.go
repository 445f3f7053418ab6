package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/zvdy/clustermeta/src/cache"
	"github.com/zvdy/clustermeta/src/config"
	"github.com/zvdy/clustermeta/src/models"
)

// Publisher writes refresh results to the cache store read by the diagnosis pipeline
type Publisher struct {
	store cache.Store
	keys  config.KeysConfig
	log   *logrus.Logger
}

// NewPublisher creates a Publisher writing under the given key names
func NewPublisher(store cache.Store, keys config.KeysConfig, log *logrus.Logger) *Publisher {
	return &Publisher{store: store, keys: keys, log: log}
}

// HostPathKeys returns the three keys a host's paths are published under
func (p *Publisher) HostPathKeys(host string) (remoteLogDir, doneDir, intermediateDoneDir string) {
	return p.keys.RemoteLogDirPrefix + host,
		p.keys.MapreduceDoneDirPrefix + host,
		p.keys.MapreduceIntermediateDoneDirPrefix + host
}

// Publish writes the registry views and the paths of every resolved host.
// A host's paths are written as one group. Failed hosts get no writes.
// Every write is attempted; all failures are returned together.
func (p *Publisher) Publish(ctx context.Context, result *models.RefreshResult) error {
	var errs error
	log := p.log.WithField("refresh_id", result.ID)

	views := []struct {
		key   string
		value interface{}
	}{
		{p.keys.SparkHistoryServers, result.SparkHistoryServers},
		{p.keys.YarnClusters, result.Clusters},
		{p.keys.ResourceManagerToJobHistory, result.ResourceManagerToJobHistory},
	}
	for _, v := range views {
		data, err := json.Marshal(v.value)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("encode %s: %w", v.key, err))
			continue
		}
		if err := p.store.Set(ctx, v.key, string(data)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("write %s: %w", v.key, err))
			continue
		}
		log.Infof("Cached %s: %s", v.key, data)
	}

	hosts := make([]string, 0, len(result.Resolved))
	for host := range result.Resolved {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	for _, host := range hosts {
		info := result.Resolved[host]
		remoteKey, doneKey, intermediateKey := p.HostPathKeys(host)
		pairs := map[string]string{
			remoteKey:       info.RemoteLogDir,
			doneKey:         info.MapreduceDoneDir,
			intermediateKey: info.MapreduceIntermediateDoneDir,
		}
		if err := p.store.SetMany(ctx, pairs); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("write paths of %s: %w", host, err))
			continue
		}
		log.WithField("host", host).Infof("Cached path info: %s=%s, %s=%s, %s=%s",
			remoteKey, info.RemoteLogDir, doneKey, info.MapreduceDoneDir, intermediateKey, info.MapreduceIntermediateDoneDir)
	}

	return errs
}

// HostPaths reads back the published paths of host.
// The bool is false when nothing has been published for it.
func (p *Publisher) HostPaths(ctx context.Context, host string) (*models.ResolvedPathInfo, bool, error) {
	remoteKey, doneKey, intermediateKey := p.HostPathKeys(host)

	remote, ok, err := p.store.Get(ctx, remoteKey)
	if err != nil || !ok {
		return nil, false, err
	}
	done, _, err := p.store.Get(ctx, doneKey)
	if err != nil {
		return nil, false, err
	}
	intermediate, _, err := p.store.Get(ctx, intermediateKey)
	if err != nil {
		return nil, false, err
	}

	return &models.ResolvedPathInfo{
		RemoteLogDir:                 remote,
		MapreduceDoneDir:             done,
		MapreduceIntermediateDoneDir: intermediate,
	}, true, nil
}
