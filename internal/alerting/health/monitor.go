package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/coinwatch/internal/alerting/scheduler"
	"github.com/vietddude/coinwatch/internal/infra/rpc/provider"
)

// CycleSource reports scheduler cycle history.
type CycleSource interface {
	Status() []scheduler.CycleStatus
}

// ProviderSource reports upstream provider health.
type ProviderSource interface {
	Health() map[string]provider.HealthStatus
}

// Pinger checks a backing service.
type Pinger func(ctx context.Context) error

// Monitor aggregates health status from various system components.
type Monitor struct {
	cycles    CycleSource
	providers ProviderSource
	deps      map[string]Pinger
	cacheFor  time.Duration
	now       func() time.Time

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a new health monitor. providers may be nil.
func NewMonitor(cycles CycleSource, providers ProviderSource, deps map[string]Pinger) *Monitor {
	return &Monitor{
		cycles:    cycles,
		providers: providers,
		deps:      deps,
		cacheFor:  10 * time.Second,
		now:       time.Now,
	}
}

// CheckHealth builds a report. Results are reused for a few seconds so
// probes do not hammer the database.
func (m *Monitor) CheckHealth(ctx context.Context) *HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.lastReport != nil && now.Sub(m.lastCheck) < m.cacheFor {
		return m.lastReport
	}

	report := &HealthReport{
		SystemStatus: StatusHealthy,
		Cycles:       make(map[string]CycleHealth),
		Providers:    make(map[string]provider.HealthStatus),
		Dependencies: make(map[string]DependencyHealth),
	}

	if m.cycles != nil {
		for _, st := range m.cycles.Status() {
			h := cycleHealth(st, now)
			report.Cycles[st.Name] = h
			report.SystemStatus = worse(report.SystemStatus, h.Status)
		}
	}

	if m.providers != nil {
		for name, ph := range m.providers.Health() {
			report.Providers[name] = ph
			if !ph.Available {
				report.SystemStatus = worse(report.SystemStatus, StatusDegraded)
			}
		}
	}

	for name, ping := range m.deps {
		dh := DependencyHealth{Status: StatusHealthy}
		if err := ping(ctx); err != nil {
			dh = DependencyHealth{Status: StatusCritical, Error: err.Error()}
		}
		report.Dependencies[name] = dh
		report.SystemStatus = worse(report.SystemStatus, dh.Status)
	}

	m.lastCheck = now
	m.lastReport = report
	return report
}

// cycleHealth is degraded after a failed run and critical when nothing has
// succeeded for five intervals.
func cycleHealth(st scheduler.CycleStatus, now time.Time) CycleHealth {
	h := CycleHealth{
		Status:      StatusHealthy,
		Runs:        st.Runs,
		Failures:    st.Failures,
		LastRun:     st.LastRun,
		LastSuccess: st.LastSuccess,
		LastError:   st.LastError,
	}
	if st.Runs == 0 {
		return h
	}
	if st.LastError != "" {
		h.Status = StatusDegraded
	}
	stale := 5 * st.Interval
	if stale > 0 {
		since := st.LastSuccess
		if since.IsZero() && st.Runs >= 5 {
			h.Status = StatusCritical
		} else if !since.IsZero() && now.Sub(since) > stale {
			h.Status = StatusCritical
		}
	}
	return h
}
