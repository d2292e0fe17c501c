package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
)

// Systemd drives the process supervisor for every managed service: the app
// unit itself plus postgresql, redis-server and nginx.
type Systemd struct {
	Runner execx.Runner
}

// NewSystemd creates a systemd controller over the given command runner.
func NewSystemd(runner execx.Runner) *Systemd {
	return &Systemd{Runner: runner}
}

// DaemonReload reloads unit definitions after a unit file changes.
func (s *Systemd) DaemonReload(ctx context.Context) error {
	return s.Runner.Run(ctx, "systemctl", "daemon-reload")
}

// Enable marks the unit to start at boot.
func (s *Systemd) Enable(ctx context.Context, unit string) error {
	return s.Runner.Run(ctx, "systemctl", "enable", unit)
}

// Start starts the unit.
func (s *Systemd) Start(ctx context.Context, unit string) error {
	return s.Runner.Run(ctx, "systemctl", "start", unit)
}

// Restart restarts the unit.
func (s *Systemd) Restart(ctx context.Context, unit string) error {
	return s.Runner.Run(ctx, "systemctl", "restart", unit)
}

// Reload asks the unit to reload its configuration.
func (s *Systemd) Reload(ctx context.Context, unit string) error {
	return s.Runner.Run(ctx, "systemctl", "reload", unit)
}

// IsActive reports whether the unit is currently active.
func (s *Systemd) IsActive(ctx context.Context, unit string) bool {
	out, err := s.Runner.Output(ctx, "systemctl", "is-active", unit)
	return err == nil && out == "active"
}

// IsEnabled reports whether the unit (or timer) is enabled.
func (s *Systemd) IsEnabled(ctx context.Context, unit string) bool {
	out, err := s.Runner.Output(ctx, "systemctl", "is-enabled", unit)
	return err == nil && out == "enabled"
}

// EnsureActive starts and enables the unit if it is not already running.
// Used for the packaged services (postgresql, redis-server, nginx) whose
// units ship with their packages.
func (s *Systemd) EnsureActive(ctx context.Context, unit string) error {
	if s.IsActive(ctx, unit) {
		return nil
	}
	logger := log.WithComponent("systemd")
	logger.Info().Str("unit", unit).Msg("starting service")
	if err := s.Start(ctx, unit); err != nil {
		return fmt.Errorf("failed to start %s: %w", unit, err)
	}
	if err := s.Enable(ctx, unit); err != nil {
		return fmt.Errorf("failed to enable %s: %w", unit, err)
	}
	return nil
}

// WaitActive polls until the unit reports active or the timeout elapses.
func (s *Systemd) WaitActive(ctx context.Context, unit string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if s.IsActive(ctx, unit) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("service %s did not become active within %s", unit, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
