package system

import (
	"context"
	"fmt"
	"strings"

	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
)

// BasePackages is everything the deployment needs from apt: the Python
// runtime, PostgreSQL, Redis, nginx, git, certbot and the firewall tooling.
var BasePackages = []string{
	"python3",
	"python3-venv",
	"python3-pip",
	"postgresql",
	"postgresql-contrib",
	"redis-server",
	"nginx",
	"git",
	"curl",
	"certbot",
	"python3-certbot-nginx",
	"ufw",
	"logrotate",
}

// PackagesStep installs the OS package set via apt-get.
type PackagesStep struct {
	Runner   execx.Runner
	Packages []string
}

func (s *PackagesStep) Name() string { return "packages" }

func (s *PackagesStep) packages() []string {
	if len(s.Packages) > 0 {
		return s.Packages
	}
	return BasePackages
}

// AlreadyDone reports true when every package is already installed.
func (s *PackagesStep) AlreadyDone(ctx context.Context) (bool, string, error) {
	missing := s.missingPackages(ctx)
	if len(missing) == 0 {
		return true, "all packages installed", nil
	}
	return false, "", nil
}

func (s *PackagesStep) missingPackages(ctx context.Context) []string {
	var missing []string
	for _, pkg := range s.packages() {
		out, err := s.Runner.Output(ctx, "dpkg-query", "-W", "-f", "${Status}", pkg)
		if err != nil || !strings.Contains(out, "install ok installed") {
			missing = append(missing, pkg)
		}
	}
	return missing
}

func (s *PackagesStep) Run(ctx context.Context) error {
	logger := log.WithStep(s.Name())

	if err := s.Runner.Run(ctx, "apt-get", "update"); err != nil {
		return fmt.Errorf("apt-get update failed: %w", err)
	}

	missing := s.missingPackages(ctx)
	if len(missing) == 0 {
		logger.Info().Msg("all packages already installed")
		return nil
	}

	logger.Info().Strs("packages", missing).Msg("installing packages")

	// DEBIAN_FRONTEND keeps dpkg from blocking on config prompts.
	args := append([]string{"install", "-y"}, missing...)
	if err := s.Runner.RunEnv(ctx, []string{"DEBIAN_FRONTEND=noninteractive"}, "apt-get", args...); err != nil {
		return fmt.Errorf("package install failed: %w", err)
	}
	return nil
}
