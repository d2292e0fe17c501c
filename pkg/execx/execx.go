package execx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/wellcareplus/curedeploy/pkg/log"
)

// Runner abstracts execution of external commands so provisioning steps can
// be exercised in tests without touching the host.
type Runner interface {
	// Run executes the command and returns an error on non-zero exit.
	// Stderr is captured and included in the error.
	Run(ctx context.Context, name string, args ...string) error

	// RunEnv is Run with extra KEY=value pairs appended to the process
	// environment. Secrets go through here, never through the argv.
	RunEnv(ctx context.Context, env []string, name string, args ...string) error

	// Output executes the command and returns its trimmed stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)

	// LookPath reports whether the named binary is on PATH.
	LookPath(name string) bool
}

// System runs commands on the local host.
type System struct {
	// Timeout bounds each command when the caller's context has no
	// deadline of its own. Zero means no additional bound.
	Timeout time.Duration
}

// NewSystem creates a host command runner with a default per-command timeout.
func NewSystem() *System {
	return &System{Timeout: 10 * time.Minute}
}

func (s *System) commandContext(ctx context.Context, name string, args ...string) (*exec.Cmd, context.CancelFunc) {
	cancel := func() {}
	if s.Timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		}
	}
	return exec.CommandContext(ctx, name, args...), cancel
}

// Run executes the command, streaming nothing; output is captured and
// surfaced only on failure.
func (s *System) Run(ctx context.Context, name string, args ...string) error {
	return s.run(ctx, nil, name, args...)
}

// RunEnv executes the command with extra environment variables. The values
// never appear in the argv, so they stay out of the process table.
func (s *System) RunEnv(ctx context.Context, env []string, name string, args ...string) error {
	return s.run(ctx, env, name, args...)
}

func (s *System) run(ctx context.Context, env []string, name string, args ...string) error {
	logger := log.WithComponent("exec")
	logger.Debug().Str("cmd", name).Strs("args", args).Msg("running command")

	cmd, cancel := s.commandContext(ctx, name, args...)
	defer cancel()

	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// Output executes the command and returns its trimmed stdout.
func (s *System) Output(ctx context.Context, name string, args ...string) (string, error) {
	logger := log.WithComponent("exec")
	logger.Debug().Str("cmd", name).Strs("args", args).Msg("running command for output")

	cmd, cancel := s.commandContext(ctx, name, args...)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// LookPath reports whether the named binary is on PATH.
func (s *System) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// AsUser rewrites a command so it runs under the given service account.
// Used for application-level commands (pip, manage.py) that must not run
// as root.
func AsUser(user, name string, args ...string) (string, []string) {
	rewritten := append([]string{"-u", user, "--", name}, args...)
	return "runuser", rewritten
}
