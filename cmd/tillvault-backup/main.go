// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

// Package main is the entry point for the tillvault-backup CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tillvault/tillvault/internal/backup"
	"github.com/tillvault/tillvault/internal/logging"
)

var cfgFile string

func main() {
	logging.Init(logging.FromEnv())

	rootCmd := &cobra.Command{
		Use:   "tillvault-backup",
		Short: "Encrypted backup and restore for the Tillvault data file",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: tillvault.yaml, then /etc/tillvault/tillvault.yaml)")

	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(restoreCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(pruneCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newEngine loads configuration and builds an engine over the configured
// data file.
func newEngine() (*backup.Engine, *backup.Config, error) {
	cfg, err := backup.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	engine, err := backup.NewEngine(cfg, newStore(cfg))
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

func createCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a backup of the data file now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _, err := newEngine()
			if err != nil {
				return err
			}

			summary, err := engine.CreateBackup(cmd.Context(), backup.TriggerManual, description, nil)
			if err != nil {
				return err
			}

			fmt.Printf("Created %s (%s, %d bytes)\n", summary.Name, summary.ID, summary.FileSize)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "description stored in the archive header")
	return cmd
}

func restoreCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "restore [archive-id-or-name]",
		Short: "Restore an archive over the data file (previous contents kept as .rollback)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cfg, err := newEngine()
			if err != nil {
				return err
			}

			if target == "" {
				target = cfg.DataFile
			}

			report, err := engine.RestoreBackup(cmd.Context(), args[0], target)
			if err != nil {
				return err
			}

			fmt.Printf("Restored %d bytes to %s\n", report.BytesRestored, report.TargetPath)
			if report.RollbackPath != "" {
				fmt.Printf("Previous contents saved to %s\n", report.RollbackPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "restore target path (default: configured data file)")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [archive-id-or-name]",
		Short: "Verify an archive without touching the data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			engine, _, err := newEngine()
			if err != nil {
				return err
			}

			report, err := engine.VerifyBackup(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Archive %s: authentic=%t checksum_match=%t\n", report.ArchiveID, report.Authentic, report.ChecksumMatch)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archives, newest first",
		RunE: func(_ *cobra.Command, _ []string) error {
			engine, _, err := newEngine()
			if err != nil {
				return err
			}

			summaries, err := engine.Retention().ListArchives()
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No archives found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tID\tCREATED\tSIZE\tENCRYPTED\tTRIGGER\tDESCRIPTION")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\t%s\n",
					s.Name, s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.FileSize, s.Encrypted, s.Trigger, s.Description)
			}
			return w.Flush()
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [archive-id-or-name]",
		Short: "Delete a single archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			engine, _, err := newEngine()
			if err != nil {
				return err
			}
			if err := engine.Retention().Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Apply the retention policy now",
		RunE: func(_ *cobra.Command, _ []string) error {
			engine, cfg, err := newEngine()
			if err != nil {
				return err
			}

			deleted, err := engine.Retention().Prune(cfg.Retention)
			fmt.Printf("Deleted %d archive(s)\n", deleted)
			return err
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run scheduled backups until interrupted",
		RunE: func(_ *cobra.Command, _ []string) error {
			engine, cfg, err := newEngine()
			if err != nil {
				return err
			}
			if !cfg.Schedule.Enabled {
				return fmt.Errorf("scheduling is disabled; set schedule.enabled to true")
			}

			sched, err := backup.NewScheduler(engine, cfg.Schedule.Interval)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := sched.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}
}
