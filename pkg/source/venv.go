package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
)

// VenvStep builds the isolated Python environment and installs the
// application's dependencies into it. Everything runs as the service
// account; pip as root would litter the checkout with root-owned caches.
type VenvStep struct {
	Runner     execx.Runner
	InstallDir string
	Python     string
	User       string
}

func (s *VenvStep) Name() string { return "virtualenv" }

func (s *VenvStep) venvDir() string {
	return filepath.Join(s.InstallDir, "venv")
}

func (s *VenvStep) pip() string {
	return filepath.Join(s.venvDir(), "bin", "pip")
}

func (s *VenvStep) runAs(ctx context.Context, name string, args ...string) error {
	cmd, rewritten := execx.AsUser(s.User, name, args...)
	return s.Runner.Run(ctx, cmd, rewritten...)
}

func (s *VenvStep) Run(ctx context.Context) error {
	logger := log.WithStep(s.Name())

	if _, err := os.Stat(filepath.Join(s.venvDir(), "bin", "python")); err != nil {
		logger.Info().Str("dir", s.venvDir()).Msg("creating virtualenv")
		if err := s.runAs(ctx, s.Python, "-m", "venv", s.venvDir()); err != nil {
			return fmt.Errorf("venv creation failed: %w", err)
		}
	}

	if err := s.runAs(ctx, s.pip(), "install", "--upgrade", "pip", "wheel"); err != nil {
		return fmt.Errorf("pip upgrade failed: %w", err)
	}

	requirements := filepath.Join(s.InstallDir, "requirements.txt")
	if _, err := os.Stat(requirements); err != nil {
		return fmt.Errorf("requirements.txt not found in %s", s.InstallDir)
	}
	logger.Info().Msg("installing application requirements")
	if err := s.runAs(ctx, s.pip(), "install", "-r", requirements); err != nil {
		return fmt.Errorf("requirements install failed: %w", err)
	}

	// gunicorn and its gevent worker class are deploy-time dependencies
	// the app's requirements file does not pin.
	if err := s.runAs(ctx, s.pip(), "install", "gunicorn", "gevent"); err != nil {
		return fmt.Errorf("gunicorn install failed: %w", err)
	}
	return nil
}
