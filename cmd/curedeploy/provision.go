package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/journal"
	"github.com/wellcareplus/curedeploy/pkg/pipeline"
	"github.com/wellcareplus/curedeploy/pkg/provision"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision this host for the WellCarePlus deployment",
	Long: `Provision runs the full deployment sequence on this host.

Examples:
  # Full run from a config file
  curedeploy provision -f deploy.yaml

  # Resume an interrupted run, skipping completed steps
  curedeploy provision -f deploy.yaml --resume

  # Skip the firewall step on a host with managed network policy
  curedeploy provision -f deploy.yaml --skip-steps firewall`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().Bool("resume", false, "Skip steps already completed for this config")
	provisionCmd.Flags().StringSlice("skip-steps", nil, "Step names to skip unconditionally")
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	resume, _ := cmd.Flags().GetBool("resume")
	skipList, _ := cmd.Flags().GetStringSlice("skip-steps")
	skip := make(map[string]bool, len(skipList))
	for _, name := range skipList {
		skip[name] = true
	}

	jnl, err := journal.Open(cfg.StateDir)
	if err != nil {
		return err
	}
	defer jnl.Close()

	steps := provision.Steps(cfg, execx.NewSystem(), configPath)

	fmt.Printf("Provisioning %s (%d steps)\n", cfg.App.Name, len(steps))

	runner := &pipeline.Runner{
		Journal:     jnl,
		Fingerprint: cfg.Fingerprint(),
		Resume:      resume,
		Skip:        skip,
	}
	if err := runner.Run(cmd.Context(), steps); err != nil {
		return err
	}

	fmt.Println("✓ Provisioning complete")
	if cfg.TLS.Enabled {
		fmt.Printf("✓ Site is live at https://%s\n", cfg.TLS.Domain)
	} else {
		fmt.Printf("✓ Site is live at http://%s\n", cfg.Web.ServerName)
	}
	return nil
}
