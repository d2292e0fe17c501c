package appinit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wellcareplus/curedeploy/pkg/config"
	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
	"github.com/wellcareplus/curedeploy/pkg/templates"
)

// Step initializes the Django application: the environment file, schema
// migrations, static asset collection, and the seeded superuser.
type Step struct {
	Runner execx.Runner
	Cfg    *config.Config
}

func (s *Step) Name() string { return "app-init" }

func (s *Step) envPath() string {
	return filepath.Join(s.Cfg.App.InstallDir, ".env")
}

func (s *Step) python() string {
	return filepath.Join(s.Cfg.App.InstallDir, "venv", "bin", "python")
}

func (s *Step) manage(ctx context.Context, args ...string) error {
	managePy := filepath.Join(s.Cfg.App.InstallDir, "manage.py")
	cmd, rewritten := execx.AsUser(s.Cfg.App.User, s.python(), append([]string{managePy}, args...)...)
	return s.Runner.Run(ctx, cmd, rewritten...)
}

func (s *Step) Run(ctx context.Context) error {
	logger := log.WithStep(s.Name())

	if err := s.writeEnvFile(ctx); err != nil {
		return err
	}

	logger.Info().Msg("running schema migrations")
	if err := s.manage(ctx, "migrate", "--noinput"); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	logger.Info().Msg("collecting static assets")
	if err := s.manage(ctx, "collectstatic", "--noinput"); err != nil {
		return fmt.Errorf("collectstatic failed: %w", err)
	}

	return s.createSuperuser(ctx)
}

func (s *Step) writeEnvFile(ctx context.Context) error {
	content, err := templates.Render("env", templates.FromConfig(s.Cfg))
	if err != nil {
		return err
	}

	path := s.envPath()
	// Holds the SECRET_KEY and database password: readable by the app
	// group, nobody else.
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}
	if err := s.Runner.Run(ctx, "chown", "root:"+s.Cfg.App.Group, path); err != nil {
		return fmt.Errorf("failed to chown env file: %w", err)
	}

	logger := log.WithStep(s.Name())
	logger.Info().Str("path", path).Msg("environment file written")
	return nil
}

func (s *Step) createSuperuser(ctx context.Context) error {
	logger := log.WithStep(s.Name())

	admin := s.Cfg.App.Admin
	if admin.Username == "" || admin.Password == "" {
		logger.Warn().Msg("no admin credentials configured, skipping superuser creation")
		return nil
	}

	logger.Info().Str("username", admin.Username).Msg("creating superuser")

	managePy := filepath.Join(s.Cfg.App.InstallDir, "manage.py")
	userCmd, userArgs := execx.AsUser(s.Cfg.App.User,
		s.python(), managePy, "createsuperuser", "--noinput")

	// Credentials travel in the environment, never the argv: /proc exposes
	// command lines to every local user.
	env := []string{
		"DJANGO_SUPERUSER_USERNAME=" + admin.Username,
		"DJANGO_SUPERUSER_EMAIL=" + admin.Email,
		"DJANGO_SUPERUSER_PASSWORD=" + admin.Password,
	}

	err := s.Runner.RunEnv(ctx, env, userCmd, userArgs...)
	if err != nil {
		// createsuperuser refuses to overwrite; a seeded host is fine.
		if strings.Contains(err.Error(), "already taken") || strings.Contains(err.Error(), "already exists") {
			logger.Info().Str("username", admin.Username).Msg("superuser already exists")
			return nil
		}
		return fmt.Errorf("createsuperuser failed: %w", err)
	}
	return nil
}
