package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rentflow/property-portal/property-portal-backend/internal/jobs"
)

type rootOptions struct {
	configPath string
	output     string
}

func newRootCmd(open opener) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "workers",
		Short: "Workflow management jobs for the property portal",
		Long: `Runs the workflow batch jobs once, or all of them on their cron schedules.

Examples:
  # Preview which maintenance requests would be escalated
  workers process-sla-escalation --dry-run

  # Sweep triggers for payments only
  workers process-workflow-triggers --instance-type Payment

  # Remind tenants whose rent is at least three days late
  workers send-payment-reminders --days-overdue 3

  # Run every job on its schedule until interrupted
  workers scheduler
`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.json", "path to the JSON config file")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")

	root.AddCommand(
		newSLACmd(open, opts),
		newTriggersCmd(open, opts),
		newRemindersCmd(open, opts),
		newSchedulerCmd(open, opts),
		newExportCmd(open, opts),
		newIssueTokenCmd(open, opts),
		newMigrateCmd(opts),
	)
	return root
}

func newSLACmd(open opener, opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "process-sla-escalation",
		Short: "Escalate maintenance requests that have breached their SLA",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := open(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer done()
			report, err := a.Jobs.SLA.Run(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), opts.output, report, "escalated")
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be escalated without changing anything")
	return cmd
}

func newTriggersCmd(open opener, opts *rootOptions) *cobra.Command {
	var (
		dryRun       bool
		instanceType string
	)
	cmd := &cobra.Command{
		Use:   "process-workflow-triggers",
		Short: "Evaluate workflow triggers against recently modified records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := open(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer done()
			report, err := a.Jobs.Triggers.Run(cmd.Context(), dryRun, instanceType)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), opts.output, report, "triggered")
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list matching triggers without executing them")
	cmd.Flags().StringVar(&instanceType, "instance-type", "", "only sweep this type ("+strings.Join(jobs.SweptTypes, ", ")+")")
	return cmd
}

func newRemindersCmd(open opener, opts *rootOptions) *cobra.Command {
	var (
		dryRun      bool
		daysOverdue int
	)
	cmd := &cobra.Command{
		Use:   "send-payment-reminders",
		Short: "Remind tenants about overdue rent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := open(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer done()
			days := daysOverdue
			if !cmd.Flags().Changed("days-overdue") {
				days = a.Config.Workflow.ReminderDaysOverdue
			}
			report, err := a.Jobs.Reminders.Run(cmd.Context(), dryRun, days)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), opts.output, report, "reminded")
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list overdue agreements without sending reminders")
	cmd.Flags().IntVar(&daysOverdue, "days-overdue", 0, "only remind when rent is at least this many days late")
	return cmd
}

func newSchedulerCmd(open opener, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run every job on its configured cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, done, err := open(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer done()
			if err := a.Scheduler.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scheduler running with %d jobs\n", a.Scheduler.Entries())
			<-ctx.Done()
			a.Scheduler.Stop()
			return nil
		},
	}
}

func printReport(w io.Writer, format string, r *jobs.Report, verb string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	prefix := ""
	if r.DryRun {
		prefix = "[dry run] "
		verb = "would be " + verb
	}
	for _, item := range r.Acted {
		fmt.Fprintf(w, "%s%s %s: %s\n", prefix, item.InstanceType, item.InstanceID, item.Detail)
	}
	for _, item := range r.Failed {
		fmt.Fprintf(w, "FAILED %s %s: %s\n", item.InstanceType, item.InstanceID, item.Error)
	}
	fmt.Fprintf(w, "%s: scanned %d, %s %d, failed %d (%s)\n",
		r.Job, r.Scanned, verb, len(r.Acted), len(r.Failed), r.Elapsed.Round(time.Millisecond))
	return nil
}
