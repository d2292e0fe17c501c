package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
)

// DirsStep creates and permissions the application file tree.
type DirsStep struct {
	Runner     execx.Runner
	InstallDir string
	User       string
	Group      string
}

func (s *DirsStep) Name() string { return "directories" }

type dirSpec struct {
	path string
	mode os.FileMode
}

// tree lists the subdirectories under the install dir with their modes.
// logs/ is group-readable only; everything else is world-readable so nginx
// can serve static and media files.
func (s *DirsStep) tree() []dirSpec {
	return []dirSpec{
		{s.InstallDir, 0o755},
		{filepath.Join(s.InstallDir, "logs"), 0o750},
		{filepath.Join(s.InstallDir, "media"), 0o755},
		{filepath.Join(s.InstallDir, "staticfiles"), 0o755},
		{filepath.Join(s.InstallDir, "run"), 0o755},
	}
}

func (s *DirsStep) Run(ctx context.Context) error {
	logger := log.WithStep(s.Name())

	for _, spec := range s.tree() {
		dir, mode := spec.path, spec.mode
		if err := os.MkdirAll(dir, mode); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		// MkdirAll does not tighten modes on pre-existing dirs.
		if err := os.Chmod(dir, mode); err != nil {
			return fmt.Errorf("failed to chmod %s: %w", dir, err)
		}
	}

	owner := s.User + ":" + s.Group
	logger.Info().Str("dir", s.InstallDir).Str("owner", owner).Msg("setting ownership")
	if err := s.Runner.Run(ctx, "chown", "-R", owner, s.InstallDir); err != nil {
		return fmt.Errorf("failed to chown %s: %w", s.InstallDir, err)
	}
	return nil
}
