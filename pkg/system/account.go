package system

import (
	"context"
	"fmt"

	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
)

// AccountStep ensures the dedicated service account the application runs as.
type AccountStep struct {
	Runner execx.Runner
	User   string
	Group  string
	Home   string
}

func (s *AccountStep) Name() string { return "service-account" }

// AlreadyDone reports true when the user already exists.
func (s *AccountStep) AlreadyDone(ctx context.Context) (bool, string, error) {
	if _, err := s.Runner.Output(ctx, "id", "-u", s.User); err == nil {
		return true, fmt.Sprintf("user %s exists", s.User), nil
	}
	return false, "", nil
}

func (s *AccountStep) Run(ctx context.Context) error {
	logger := log.WithStep(s.Name())

	if _, err := s.Runner.Output(ctx, "getent", "group", s.Group); err != nil {
		logger.Info().Str("group", s.Group).Msg("creating system group")
		if err := s.Runner.Run(ctx, "groupadd", "--system", s.Group); err != nil {
			return fmt.Errorf("failed to create group %s: %w", s.Group, err)
		}
	}

	logger.Info().Str("user", s.User).Msg("creating system user")
	err := s.Runner.Run(ctx, "useradd",
		"--system",
		"--gid", s.Group,
		"--home-dir", s.Home,
		"--no-create-home",
		"--shell", "/usr/sbin/nologin",
		s.User,
	)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", s.User, err)
	}
	return nil
}
