package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
)

// GitStep materializes the application source at the target branch. A fresh
// host gets a clone; an already-deployed host gets a fetch plus hard reset
// to origin/<branch>, discarding any local drift.
type GitStep struct {
	Runner     execx.Runner
	RepoURL    string
	Branch     string
	InstallDir string
	User       string
	Group      string
}

func (s *GitStep) Name() string { return "source" }

// git runs a git command in the install dir as the service account. Running
// as root would trip git's dubious-ownership check on the user-owned
// checkout and abort every re-provision.
func (s *GitStep) git(ctx context.Context, args ...string) error {
	cmd, rewritten := execx.AsUser(s.User, "git", append([]string{"-C", s.InstallDir}, args...)...)
	return s.Runner.Run(ctx, cmd, rewritten...)
}

func (s *GitStep) Run(ctx context.Context) error {
	logger := log.WithStep(s.Name())

	gitDir := filepath.Join(s.InstallDir, ".git")
	if _, err := os.Stat(gitDir); err != nil {
		// The install dir already holds logs/, media/ etc., so a plain
		// clone would refuse it. init + fetch behaves like clone but
		// tolerates a non-empty tree.
		logger.Info().Str("repo", s.RepoURL).Str("branch", s.Branch).Msg("cloning application source")
		if err := s.git(ctx, "init"); err != nil {
			return fmt.Errorf("git init failed: %w", err)
		}
		if err := s.git(ctx, "remote", "add", "origin", s.RepoURL); err != nil {
			return fmt.Errorf("git remote add failed: %w", err)
		}
	} else {
		logger.Info().Str("branch", s.Branch).Msg("resetting existing checkout")
	}

	if err := s.git(ctx, "fetch", "origin", s.Branch); err != nil {
		return fmt.Errorf("git fetch failed: %w", err)
	}
	if err := s.git(ctx, "checkout", "-B", s.Branch); err != nil {
		return fmt.Errorf("git checkout failed: %w", err)
	}
	if err := s.git(ctx, "reset", "--hard", "origin/"+s.Branch); err != nil {
		return fmt.Errorf("git reset failed: %w", err)
	}

	owner := s.User + ":" + s.Group
	if err := s.Runner.Run(ctx, "chown", "-R", owner, s.InstallDir); err != nil {
		return fmt.Errorf("failed to chown checkout: %w", err)
	}
	return nil
}
