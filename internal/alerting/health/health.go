// Package health provides system health monitoring and status reporting.
package health

import (
	"time"

	"github.com/vietddude/coinwatch/internal/infra/rpc/provider"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

func worse(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// CycleHealth describes one notification cycle.
type CycleHealth struct {
	Status      SystemStatus `json:"status"`
	Runs        int64        `json:"runs"`
	Failures    int64        `json:"failures"`
	LastRun     time.Time    `json:"last_run,omitempty"`
	LastSuccess time.Time    `json:"last_success,omitempty"`
	LastError   string       `json:"last_error,omitempty"`
}

// DependencyHealth describes a backing service such as the database.
type DependencyHealth struct {
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus                     `json:"system_status"`
	Cycles       map[string]CycleHealth           `json:"cycles"`
	Providers    map[string]provider.HealthStatus `json:"providers"`
	Dependencies map[string]DependencyHealth      `json:"dependencies"`
}
