package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/wellcareplus/curedeploy/pkg/certs"
	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/supervisor"
)

var tlsCmd = &cobra.Command{
	Use:   "tls",
	Short: "Provision TLS for the deployed site",
	Long: `TLS patches the nginx site to the given domain, obtains a
certificate through certbot's nginx plugin, and enables auto-renewal.

Runs standalone so TLS can be added after DNS is pointed at a host that was
provisioned without it.`,
	RunE: runTLS,
}

func init() {
	tlsCmd.Flags().String("domain", "", "Public domain name (overrides config)")
	tlsCmd.Flags().String("email", "", "Registration email for the certificate authority (overrides config)")
	rootCmd.AddCommand(tlsCmd)
}

func runTLS(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if domain, _ := cmd.Flags().GetString("domain"); domain != "" {
		cfg.TLS.Domain = domain
	}
	if email, _ := cmd.Flags().GetString("email"); email != "" {
		cfg.TLS.Email = email
	}
	if cfg.TLS.Domain == "" || cfg.TLS.Email == "" {
		return fmt.Errorf("tls requires a domain and email (flags or config)")
	}

	runner := execx.NewSystem()
	step := &certs.Step{
		Runner:   runner,
		Systemd:  supervisor.NewSystemd(runner),
		Cfg:      cfg.TLS,
		SitePath: filepath.Join(cfg.Web.SitesAvailableDir, cfg.App.Name),
	}
	if err := step.Run(cmd.Context()); err != nil {
		return err
	}

	fmt.Printf("✓ TLS provisioned for %s\n", cfg.TLS.Domain)
	return nil
}
