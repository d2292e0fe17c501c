package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/wellcareplus/curedeploy/pkg/health"
	"github.com/wellcareplus/curedeploy/pkg/log"
	"github.com/wellcareplus/curedeploy/pkg/supervisor"
)

// Monitor probes the deployed application and restarts its service unit
// when liveness fails. One instance covers one host.
type Monitor struct {
	Liveness  health.Checker
	Readiness health.Checker
	Systemd   *supervisor.Systemd
	Unit      string
	Config    health.Config

	// RecoveryDelay is how long CheckOnce waits after a restart before
	// re-probing, giving the workers time to boot.
	RecoveryDelay time.Duration

	mu       sync.RWMutex
	status   *health.Status
	restarts int
}

// New creates a monitor for the given service unit.
func New(liveness, readiness health.Checker, systemd *supervisor.Systemd, unit string, cfg health.Config) *Monitor {
	return &Monitor{
		Liveness:      liveness,
		Readiness:     readiness,
		Systemd:       systemd,
		Unit:          unit,
		Config:        cfg,
		RecoveryDelay: 5 * time.Second,
		status:        health.NewStatus(),
	}
}

// CheckOnce performs a single liveness probe, restarting the service when it
// fails, and returns an error only if the service stays down after the
// restart. This is the path the cron entry exercises.
func (m *Monitor) CheckOnce(ctx context.Context) error {
	logger := log.WithComponent("monitor")

	result := m.probe(ctx, "liveness", m.Liveness)
	if result.Healthy {
		logger.Info().Str("message", result.Message).Msg("service healthy")
		if m.Readiness != nil {
			if ready := m.probe(ctx, "readiness", m.Readiness); !ready.Healthy {
				logger.Warn().Str("message", ready.Message).Msg("front door not reachable")
			}
		}
		return nil
	}

	logger.Warn().Str("message", result.Message).Msg("liveness failed, restarting service")
	if err := m.restart(ctx); err != nil {
		return err
	}

	// Give the workers a moment before declaring recovery.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.RecoveryDelay):
	}

	result = m.probe(ctx, "liveness", m.Liveness)
	if !result.Healthy {
		return fmt.Errorf("service %s still unhealthy after restart: %s", m.Unit, result.Message)
	}
	logger.Info().Msg("service recovered after restart")
	return nil
}

// Run probes on an interval until the context is cancelled, restarting the
// service after the configured number of consecutive liveness failures.
func (m *Monitor) Run(ctx context.Context) error {
	logger := log.WithComponent("monitor")
	logger.Info().
		Dur("interval", m.Config.Interval).
		Int("retries", m.Config.Retries).
		Str("unit", m.Unit).
		Msg("health monitor started")

	ticker := time.NewTicker(m.Config.Interval)
	defer ticker.Stop()

	// Run the first check immediately.
	m.tick(ctx)

	for {
		select {
		case <-ticker.C:
			m.tick(ctx)
		case <-ctx.Done():
			logger.Info().Msg("health monitor stopped")
			return ctx.Err()
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	logger := log.WithComponent("monitor")

	checkCtx, cancel := context.WithTimeout(ctx, m.Config.Timeout)
	result := m.probe(checkCtx, "liveness", m.Liveness)
	cancel()

	m.mu.Lock()
	m.status.Update(result, m.Config)
	unhealthy := !m.status.Healthy
	failures := m.status.ConsecutiveFailures
	m.mu.Unlock()

	ConsecutiveFailures.Set(float64(failures))
	if unhealthy {
		ServiceHealthy.Set(0)
	} else {
		ServiceHealthy.Set(1)
	}

	if m.Readiness != nil {
		readyCtx, cancel := context.WithTimeout(ctx, m.Config.Timeout)
		ready := m.probe(readyCtx, "readiness", m.Readiness)
		cancel()
		if !ready.Healthy {
			logger.Warn().Str("message", ready.Message).Msg("readiness probe failing")
		}
	}

	if unhealthy {
		logger.Warn().Int("consecutive_failures", failures).Msg("restart threshold reached")
		if err := m.restart(ctx); err != nil {
			logger.Error().Err(err).Msg("restart failed")
			return
		}
		m.mu.Lock()
		m.status = health.NewStatus()
		m.mu.Unlock()
	}
}

func (m *Monitor) probe(ctx context.Context, name string, checker health.Checker) health.Result {
	result := checker.Check(ctx)

	CheckDuration.WithLabelValues(name).Observe(result.Duration.Seconds())
	LastCheckTimestamp.Set(float64(result.CheckedAt.Unix()))
	if result.Healthy {
		ChecksTotal.WithLabelValues(name, "healthy").Inc()
	} else {
		ChecksTotal.WithLabelValues(name, "unhealthy").Inc()
	}
	return result
}

func (m *Monitor) restart(ctx context.Context) error {
	if err := m.Systemd.Restart(ctx, m.Unit); err != nil {
		return fmt.Errorf("failed to restart %s: %w", m.Unit, err)
	}
	RestartsTotal.Inc()
	m.mu.Lock()
	m.restarts++
	m.mu.Unlock()
	return m.Systemd.WaitActive(ctx, m.Unit, 60*time.Second)
}

// Snapshot is the JSON body served on /healthz.
type Snapshot struct {
	Healthy             bool      `json:"healthy"`
	Unit                string    `json:"unit"`
	LastCheck           time.Time `json:"last_check"`
	LastMessage         string    `json:"last_message"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Restarts            int       `json:"restarts"`
}

// Snapshot returns the current monitor state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Healthy:             m.status.Healthy,
		Unit:                m.Unit,
		LastCheck:           m.status.LastCheck,
		LastMessage:         m.status.LastResult.Message,
		ConsecutiveFailures: m.status.ConsecutiveFailures,
		Restarts:            m.restarts,
	}
}

// Handler serves /metrics and /healthz for the monitor daemon.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		snap := m.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if !snap.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(snap)
	})
	return mux
}

// Serve runs the metrics endpoint until the context is cancelled.
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
