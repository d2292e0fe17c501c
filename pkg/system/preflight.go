package system

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/wellcareplus/curedeploy/pkg/execx"
)

// PreflightStep verifies the host can be provisioned at all: root
// privileges, a Linux kernel, and the package/service managers the rest of
// the pipeline shells out to.
type PreflightStep struct {
	Runner execx.Runner

	// Geteuid is injectable for tests; defaults to os.Geteuid.
	Geteuid func() int

	// GOOS is injectable for tests; defaults to runtime.GOOS.
	GOOS string
}

func (s *PreflightStep) Name() string { return "preflight" }

func (s *PreflightStep) Run(ctx context.Context) error {
	geteuid := s.Geteuid
	if geteuid == nil {
		geteuid = os.Geteuid
	}
	goos := s.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	if goos != "linux" {
		return fmt.Errorf("provisioning requires linux, running on %s", goos)
	}
	if geteuid() != 0 {
		return fmt.Errorf("provisioning requires root privileges (euid %d)", geteuid())
	}

	for _, tool := range []string{"apt-get", "systemctl"} {
		if !s.Runner.LookPath(tool) {
			return fmt.Errorf("required tool %q not found on PATH", tool)
		}
	}
	return nil
}
