package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/wellcareplus/curedeploy/pkg/journal"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded provisioning step outcomes",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	jnl, err := journal.Open(cfg.StateDir)
	if err != nil {
		return err
	}
	defer jnl.Close()

	steps, err := jnl.ListSteps()
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Println("No provisioning runs recorded.")
		return nil
	}

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].StartedAt.Before(steps[j].StartedAt)
	})

	current := cfg.Fingerprint()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSTATE\tSTARTED\tDURATION\tNOTE")
	for _, rec := range steps {
		note := rec.Note
		if rec.Error != "" {
			note = rec.Error
		}
		if rec.Fingerprint != current {
			note = "(stale config) " + note
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.Name,
			rec.State,
			rec.StartedAt.Format("2006-01-02 15:04:05"),
			rec.Duration,
			note,
		)
	}
	return w.Flush()
}
