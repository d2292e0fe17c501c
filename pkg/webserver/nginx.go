package webserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
	"github.com/wellcareplus/curedeploy/pkg/supervisor"
	"github.com/wellcareplus/curedeploy/pkg/templates"
)

// Step installs the nginx reverse-proxy site for the application, disables
// the distribution default site, validates the config and reloads nginx.
type Step struct {
	Runner  execx.Runner
	Systemd *supervisor.Systemd
	Data    templates.Data

	SitesAvailableDir string
	SitesEnabledDir   string
}

func (s *Step) Name() string { return "nginx-site" }

func (s *Step) availablePath() string {
	return filepath.Join(s.SitesAvailableDir, s.Data.AppName)
}

func (s *Step) enabledPath() string {
	return filepath.Join(s.SitesEnabledDir, s.Data.AppName)
}

func (s *Step) Run(ctx context.Context) error {
	logger := log.WithStep(s.Name())

	content, err := templates.Render("nginx-site", s.Data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.availablePath(), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write site config: %w", err)
	}
	logger.Info().Str("path", s.availablePath()).Msg("site config installed")

	// Symlink into sites-enabled, replacing a stale link if present.
	if _, err := os.Lstat(s.enabledPath()); err == nil {
		if err := os.Remove(s.enabledPath()); err != nil {
			return fmt.Errorf("failed to replace enabled site link: %w", err)
		}
	}
	if err := os.Symlink(s.availablePath(), s.enabledPath()); err != nil {
		return fmt.Errorf("failed to enable site: %w", err)
	}

	// The packaged default site shadows ours on catch-all requests.
	defaultSite := filepath.Join(s.SitesEnabledDir, "default")
	if _, err := os.Lstat(defaultSite); err == nil {
		logger.Info().Msg("disabling default site")
		if err := os.Remove(defaultSite); err != nil {
			return fmt.Errorf("failed to disable default site: %w", err)
		}
	}

	if err := s.Runner.Run(ctx, "nginx", "-t"); err != nil {
		return fmt.Errorf("nginx config validation failed: %w", err)
	}

	if err := s.Systemd.EnsureActive(ctx, "nginx.service"); err != nil {
		return err
	}
	if err := s.Systemd.Reload(ctx, "nginx.service"); err != nil {
		return fmt.Errorf("nginx reload failed: %w", err)
	}
	return nil
}
