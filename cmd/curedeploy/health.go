package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wellcareplus/curedeploy/pkg/execx"
	"github.com/wellcareplus/curedeploy/pkg/health"
	"github.com/wellcareplus/curedeploy/pkg/monitor"
	"github.com/wellcareplus/curedeploy/pkg/supervisor"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe and monitor the deployed application",
}

var healthCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "One-shot liveness check, restarting the service on failure",
	Long: `Check probes the gunicorn upstream once. If the probe fails the
application service is restarted and re-probed; the command exits non-zero
only when the service stays down. This is the command the installed cron
entry runs.`,
	RunE: runHealthCheck,
}

var healthMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the continuous health monitor daemon",
	Long: `Monitor probes the application on an interval, restarts the
service after the configured number of consecutive failures, and serves
Prometheus metrics plus a JSON health endpoint.`,
	RunE: runHealthMonitor,
}

func init() {
	healthMonitorCmd.Flags().String("listen", "", "Metrics listen address (overrides config)")
	healthCmd.AddCommand(healthCheckCmd)
	healthCmd.AddCommand(healthMonitorCmd)
	rootCmd.AddCommand(healthCmd)
}

func buildMonitor(cmd *cobra.Command) (*monitor.Monitor, string, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}

	checkCfg := health.Config{
		Interval: time.Duration(cfg.Monitor.IntervalSeconds) * time.Second,
		Timeout:  time.Duration(cfg.Monitor.TimeoutSeconds) * time.Second,
		Retries:  cfg.Monitor.Retries,
	}

	liveness := health.NewHTTPChecker(cfg.LivenessURL()).WithTimeout(checkCfg.Timeout)
	readiness := health.NewTCPChecker("127.0.0.1:80").WithTimeout(checkCfg.Timeout)
	systemd := supervisor.NewSystemd(execx.NewSystem())

	listen := cfg.Monitor.ListenAddr
	if override, _ := cmd.Flags().GetString("listen"); override != "" {
		listen = override
	}

	return monitor.New(liveness, readiness, systemd, cfg.ServiceName(), checkCfg), listen, nil
}

func runHealthCheck(cmd *cobra.Command, args []string) error {
	mon, _, err := buildMonitor(cmd)
	if err != nil {
		return err
	}
	return mon.CheckOnce(cmd.Context())
}

func runHealthMonitor(cmd *cobra.Command, args []string) error {
	mon, listen, err := buildMonitor(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- mon.Serve(ctx, listen)
	}()

	fmt.Printf("Health monitor running, metrics on %s. Press Ctrl+C to stop.\n", listen)

	if err := mon.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return <-errCh
}
