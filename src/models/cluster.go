package models

// ClusterEntry describes one YARN cluster: its resource managers and the
// JobHistory server that serves their MapReduce history.
type ClusterEntry struct {
	ResourceManagers []string `json:"resourceManager"`
	JobHistoryServer string   `json:"jobHistoryServer"`
}

// Registry is the static set of clusters known to the service
type Registry struct {
	clusters            []ClusterEntry
	sparkHistoryServers []string
}

// NewRegistry creates a Registry holding copies of the given clusters and spark history servers
func NewRegistry(clusters []ClusterEntry, sparkHistoryServers []string) *Registry {
	r := &Registry{
		clusters:            make([]ClusterEntry, 0, len(clusters)),
		sparkHistoryServers: append([]string{}, sparkHistoryServers...),
	}
	for _, c := range clusters {
		r.clusters = append(r.clusters, ClusterEntry{
			ResourceManagers: append([]string{}, c.ResourceManagers...),
			JobHistoryServer: c.JobHistoryServer,
		})
	}
	return r
}

// Clusters returns a copy of the cluster entries
func (r *Registry) Clusters() []ClusterEntry {
	out := make([]ClusterEntry, 0, len(r.clusters))
	for _, c := range r.clusters {
		out = append(out, ClusterEntry{
			ResourceManagers: append([]string{}, c.ResourceManagers...),
			JobHistoryServer: c.JobHistoryServer,
		})
	}
	return out
}

// SparkHistoryServers returns a copy of the spark history server addresses
func (r *Registry) SparkHistoryServers() []string {
	return append([]string{}, r.sparkHistoryServers...)
}

// ResourceManagerToJobHistory maps every resource manager to its cluster's JobHistory server.
// A resource manager listed under several clusters maps to the last one.
func (r *Registry) ResourceManagerToJobHistory() map[string]string {
	m := make(map[string]string)
	for _, c := range r.clusters {
		for _, rm := range c.ResourceManagers {
			m[rm] = c.JobHistoryServer
		}
	}
	return m
}

// JobHistoryServers returns the distinct non-empty JobHistory server hosts in registry order
func (r *Registry) JobHistoryServers() []string {
	seen := make(map[string]struct{}, len(r.clusters))
	hosts := make([]string, 0, len(r.clusters))
	for _, c := range r.clusters {
		if c.JobHistoryServer == "" {
			continue
		}
		if _, ok := seen[c.JobHistoryServer]; ok {
			continue
		}
		seen[c.JobHistoryServer] = struct{}{}
		hosts = append(hosts, c.JobHistoryServer)
	}
	return hosts
}
