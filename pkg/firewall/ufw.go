package firewall

import (
	"context"
	"fmt"

	"github.com/wellcareplus/curedeploy/pkg/config"
	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
)

// Step resets ufw to a known allow-list and enables enforcement. The
// allow-list always includes HTTP and HTTPS; SSH is kept open unless the
// config explicitly opts out, since dropping it on a remote host would cut
// off the operator.
type Step struct {
	Runner execx.Runner
	Cfg    config.FirewallConfig
}

func (s *Step) Name() string { return "firewall" }

// Rules returns the ordered ufw invocations for the configured allow-list.
func (s *Step) Rules() [][]string {
	rules := [][]string{
		{"--force", "reset"},
		{"default", "deny", "incoming"},
		{"default", "allow", "outgoing"},
	}
	if s.Cfg.AllowSSH {
		rules = append(rules, []string{"allow", "OpenSSH"})
	}
	rules = append(rules,
		[]string{"allow", "80/tcp"},
		[]string{"allow", "443/tcp"},
	)
	for _, port := range s.Cfg.ExtraPorts {
		rules = append(rules, []string{"allow", port})
	}
	rules = append(rules, []string{"--force", "enable"})
	return rules
}

func (s *Step) Run(ctx context.Context) error {
	if !s.Cfg.Enabled {
		logger := log.WithStep(s.Name())
		logger.Warn().Msg("firewall disabled in config, skipping")
		return nil
	}

	for _, rule := range s.Rules() {
		if err := s.Runner.Run(ctx, "ufw", rule...); err != nil {
			return fmt.Errorf("ufw %v failed: %w", rule, err)
		}
	}

	logger := log.WithStep(s.Name())
	logger.Info().Msg("firewall enabled")
	return nil
}
