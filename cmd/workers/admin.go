package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rentflow/property-portal/property-portal-backend/internal/app"
	"rentflow/property-portal/property-portal-backend/internal/reports"
	"rentflow/property-portal/property-portal-backend/internal/reports/export"
)

func newExportCmd(open opener, opts *rootOptions) *cobra.Command {
	var (
		format       string
		days         int
		instanceType string
		outPath      string
		upload       bool
	)
	cmd := &cobra.Command{
		Use:   "export-audit",
		Short: "Export the workflow audit log as CSV, Excel or PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			a, done, err := open(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer done()

			out, err := a.Reports.ExportAudit(cmd.Context(), reports.ExportRequest{
				Format:       f,
				Days:         days,
				InstanceType: instanceType,
			})
			if err != nil {
				return err
			}

			if upload {
				if err := a.Reports.Upload(cmd.Context(), out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d rows to %s\n", out.Rows, out.Location)
				return nil
			}

			path := outPath
			if path == "" {
				path = out.Filename
			}
			if path == "-" {
				_, err := cmd.OutOrStdout().Write(out.Body)
				return err
			}
			if err := os.WriteFile(path, out.Body, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", out.Rows, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv, xlsx or pdf")
	cmd.Flags().IntVar(&days, "days", 30, "how many days back to export")
	cmd.Flags().StringVar(&instanceType, "instance-type", "", "only export rows for this entity type")
	cmd.Flags().StringVar(&outPath, "out", "", "output file, - for stdout (default: generated name)")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload to the configured bucket instead of writing a file")
	return cmd
}

func newIssueTokenCmd(open opener, opts *rootOptions) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Sign an API bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := open(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer done()
			if a.Auth == nil {
				return fmt.Errorf("security.jwt_secret is not configured")
			}

			u, err := a.Stores.UoW.Repositories().Users.GetByUsername(cmd.Context(), username)
			if err != nil {
				return fmt.Errorf("failed to find user %q: %w", username, err)
			}
			token, expires, err := a.Auth.IssueToken(u)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "username to issue the token for")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(opts.configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := app.OpenDatabase(cfg.Database, logger)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := app.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database migrated")
			return nil
		},
	}
}
