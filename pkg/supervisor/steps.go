package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wellcareplus/curedeploy/pkg/log"
	"github.com/wellcareplus/curedeploy/pkg/templates"
)

// UnitStep renders the gunicorn service unit for this deployment's paths and
// account, installs it, and enables it.
type UnitStep struct {
	Systemd *Systemd
	Data    templates.Data

	// UnitDir is /etc/systemd/system unless overridden in tests.
	UnitDir string
}

func (s *UnitStep) Name() string { return "systemd-unit" }

func (s *UnitStep) unitPath() string {
	dir := s.UnitDir
	if dir == "" {
		dir = "/etc/systemd/system"
	}
	return filepath.Join(dir, s.Data.AppName+".service")
}

func (s *UnitStep) Run(ctx context.Context) error {
	content, err := templates.Render("gunicorn.service", s.Data)
	if err != nil {
		return err
	}

	path := s.unitPath()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write unit file %s: %w", path, err)
	}
	logger := log.WithStep(s.Name())
	logger.Info().Str("path", path).Msg("service unit installed")

	if err := s.Systemd.DaemonReload(ctx); err != nil {
		return fmt.Errorf("daemon-reload failed: %w", err)
	}
	if err := s.Systemd.Enable(ctx, s.Data.AppName+".service"); err != nil {
		return fmt.Errorf("failed to enable unit: %w", err)
	}
	return nil
}

// StartStep restarts the application service and fails the run if it does
// not report active within the timeout.
type StartStep struct {
	Systemd *Systemd
	Unit    string
	Timeout time.Duration
}

func (s *StartStep) Name() string { return "start-service" }

func (s *StartStep) Run(ctx context.Context) error {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	logger := log.WithStep(s.Name())
	logger.Info().Str("unit", s.Unit).Msg("restarting application service")
	if err := s.Systemd.Restart(ctx, s.Unit); err != nil {
		return fmt.Errorf("restart failed: %w", err)
	}
	if err := s.Systemd.WaitActive(ctx, s.Unit, timeout); err != nil {
		return err
	}
	logger.Info().Str("unit", s.Unit).Msg("service is active")
	return nil
}
