package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wellcareplus/curedeploy/pkg/config"
	"github.com/wellcareplus/curedeploy/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "curedeploy",
	Short: "curedeploy - WellCarePlus production deployment tool",
	Long: `curedeploy provisions a bare Ubuntu host to run the WellCarePlus
healthcare portal: system packages, PostgreSQL, Redis, the application
checkout and virtualenv, gunicorn under systemd, nginx, ufw, logrotate,
a periodic health monitor, and optionally TLS via certbot.

Runs are fail-fast and journaled; an interrupted run can be resumed with
--resume without repeating completed steps.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"curedeploy version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("file", "f", "deploy.yaml", "Deployment config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs")
}

// loadConfig reads the config named by -f and initializes logging from it,
// honoring CLI overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("file")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}

	level := cfg.Logging.Level
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	jsonOut := cfg.Logging.JSON
	if flagJSON, _ := cmd.Flags().GetBool("log-json"); flagJSON {
		jsonOut = true
	}

	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
	return cfg, path, nil
}
