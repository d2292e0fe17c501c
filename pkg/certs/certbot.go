package certs

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/wellcareplus/curedeploy/pkg/config"
	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/log"
	"github.com/wellcareplus/curedeploy/pkg/supervisor"
)

var serverNameRe = regexp.MustCompile(`(?m)^(\s*)server_name\s+[^;]+;`)

// Step obtains a TLS certificate for the configured domain via certbot's
// nginx plugin and makes sure auto-renewal is scheduled. It first pins the
// site's server_name to the real domain so certbot can find the block to
// patch.
type Step struct {
	Runner   execx.Runner
	Systemd  *supervisor.Systemd
	Cfg      config.TLSConfig
	SitePath string
}

func (s *Step) Name() string { return "tls" }

func (s *Step) Run(ctx context.Context) error {
	logger := log.WithStep(s.Name())

	raw, err := os.ReadFile(s.SitePath)
	if err != nil {
		return fmt.Errorf("failed to read site config: %w", err)
	}

	patched, changed := PatchServerName(string(raw), s.Cfg.Domain)
	if changed {
		logger.Info().Str("domain", s.Cfg.Domain).Msg("setting server_name")
		if err := os.WriteFile(s.SitePath, []byte(patched), 0o644); err != nil {
			return fmt.Errorf("failed to write site config: %w", err)
		}
		if err := s.Runner.Run(ctx, "nginx", "-t"); err != nil {
			return fmt.Errorf("nginx config validation failed: %w", err)
		}
		if err := s.Systemd.Reload(ctx, "nginx.service"); err != nil {
			return fmt.Errorf("nginx reload failed: %w", err)
		}
	}

	logger.Info().Str("domain", s.Cfg.Domain).Msg("requesting certificate")
	err = s.Runner.Run(ctx, "certbot",
		"--nginx",
		"-d", s.Cfg.Domain,
		"-m", s.Cfg.Email,
		"--agree-tos",
		"--non-interactive",
		"--redirect",
	)
	if err != nil {
		return fmt.Errorf("certbot failed: %w", err)
	}

	// certbot's package ships a renewal timer; make sure it actually runs.
	if !s.Systemd.IsEnabled(ctx, "certbot.timer") {
		if err := s.Runner.Run(ctx, "systemctl", "enable", "--now", "certbot.timer"); err != nil {
			return fmt.Errorf("failed to enable renewal timer: %w", err)
		}
	}

	logger.Info().Str("domain", s.Cfg.Domain).Msg("certificate provisioned")
	return nil
}

// PatchServerName rewrites every server_name directive to the given domain.
// Returns the patched config and whether anything changed.
func PatchServerName(conf, domain string) (string, bool) {
	replacement := "${1}server_name " + domain + ";"
	patched := serverNameRe.ReplaceAllString(conf, replacement)
	return patched, patched != conf
}
