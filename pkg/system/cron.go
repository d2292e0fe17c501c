package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wellcareplus/curedeploy/pkg/log"
	"github.com/wellcareplus/curedeploy/pkg/templates"
)

// CronStep installs the periodic health-check entry under /etc/cron.d. The
// entry invokes this same binary's "health check" command, which restarts
// the service when the liveness probe fails.
type CronStep struct {
	Data templates.Data

	// Dir is the cron drop-in directory, /etc/cron.d by default.
	Dir string
}

func (s *CronStep) Name() string { return "health-cron" }

func (s *CronStep) path() string {
	dir := s.Dir
	if dir == "" {
		dir = "/etc/cron.d"
	}
	return filepath.Join(dir, s.Data.AppName+"-health")
}

func (s *CronStep) Run(ctx context.Context) error {
	if s.Data.BinaryPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to resolve own binary path: %w", err)
		}
		s.Data.BinaryPath = exe
	}

	content, err := templates.Render("cron-health", s.Data)
	if err != nil {
		return err
	}

	path := s.path()
	// cron.d entries must not be group-writable or cron ignores them.
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logger := log.WithStep(s.Name())
	logger.Info().Str("path", path).Str("schedule", s.Data.CronSchedule).Msg("health cron installed")
	return nil
}
