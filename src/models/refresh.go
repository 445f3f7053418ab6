package models

import (
	"sort"
	"time"
)

// HostFailure records why a JobHistory server produced no path info in a refresh
type HostFailure struct {
	Host    string `json:"host"`
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// RefreshResult is the outcome of one refresh cycle.
// Every resolved JobHistory server is in exactly one of Resolved or Failures.
type RefreshResult struct {
	ID                          string                       `json:"id"`
	StartedAt                   time.Time                    `json:"startedAt"`
	FinishedAt                  time.Time                    `json:"finishedAt"`
	SparkHistoryServers         []string                     `json:"sparkHistoryServers"`
	Clusters                    []ClusterEntry               `json:"clusters"`
	ResourceManagerToJobHistory map[string]string            `json:"resourceManagerToJobHistory"`
	Resolved                    map[string]*ResolvedPathInfo `json:"resolved"`
	Failures                    map[string]*HostFailure      `json:"failures"`
}

// NewRefreshResult creates an empty RefreshResult
func NewRefreshResult(id string) *RefreshResult {
	return &RefreshResult{
		ID:                          id,
		StartedAt:                   time.Now(),
		SparkHistoryServers:         []string{},
		Clusters:                    []ClusterEntry{},
		ResourceManagerToJobHistory: make(map[string]string),
		Resolved:                    make(map[string]*ResolvedPathInfo),
		Failures:                    make(map[string]*HostFailure),
	}
}

// Succeeded reports whether host resolved in this refresh
func (r *RefreshResult) Succeeded(host string) bool {
	_, ok := r.Resolved[host]
	return ok
}

// RefreshSummary is what is kept of a refresh after its results are published
type RefreshSummary struct {
	ID            string                  `json:"id"`
	StartedAt     time.Time               `json:"startedAt"`
	FinishedAt    time.Time               `json:"finishedAt"`
	ResolvedHosts []string                `json:"resolvedHosts"`
	Failures      map[string]*HostFailure `json:"failures"`
}

// Summary drops the resolved path info, keeping only which hosts resolved
func (r *RefreshResult) Summary() *RefreshSummary {
	hosts := make([]string, 0, len(r.Resolved))
	for host := range r.Resolved {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	failures := make(map[string]*HostFailure, len(r.Failures))
	for host, f := range r.Failures {
		failures[host] = f
	}

	return &RefreshSummary{
		ID:            r.ID,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		ResolvedHosts: hosts,
		Failures:      failures,
	}
}
