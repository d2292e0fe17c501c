package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wellcareplus/curedeploy/pkg/log"
	"github.com/wellcareplus/curedeploy/pkg/templates"
)

// LogrotateStep installs the rotation policy for the application's logs with
// a post-rotation reload of the service.
type LogrotateStep struct {
	Data templates.Data

	// Dir is the logrotate drop-in directory, /etc/logrotate.d by default.
	Dir string
}

func (s *LogrotateStep) Name() string { return "logrotate" }

func (s *LogrotateStep) path() string {
	dir := s.Dir
	if dir == "" {
		dir = "/etc/logrotate.d"
	}
	return filepath.Join(dir, s.Data.AppName)
}

func (s *LogrotateStep) Run(ctx context.Context) error {
	content, err := templates.Render("logrotate", s.Data)
	if err != nil {
		return err
	}

	path := s.path()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logger := log.WithStep(s.Name())
	logger.Info().Str("path", path).Msg("logrotate policy installed")
	return nil
}
