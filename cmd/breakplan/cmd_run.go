/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/breakplan/internal/breaks"
	"github.com/friendsincode/breakplan/internal/db"
	"github.com/friendsincode/breakplan/internal/export"
	"github.com/friendsincode/breakplan/internal/models"
	"github.com/friendsincode/breakplan/internal/pipeline"
	"github.com/friendsincode/breakplan/internal/roster"
	"github.com/friendsincode/breakplan/internal/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the schedule pipeline over a roster file",
	Long:  "Load a roster, insert breaks, check for conflicts and write the master schedule as CSV.",
	RunE:  runSchedule,
}

var breaksCmd = &cobra.Command{
	Use:   "breaks",
	Short: "Print the break entries a roster would receive",
	RunE:  runBreaks,
}

// Shared roster flags
var (
	rosterPath string
	rulesPath  string
)

// Run flags
var (
	runOutPath string
	runPersist bool
	runCopy    bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(breaksCmd)

	for _, c := range []*cobra.Command{runCmd, breaksCmd} {
		c.Flags().StringVar(&rosterPath, "roster", "", "Path to the roster YAML file (required)")
		c.Flags().StringVar(&rulesPath, "rules", "", "Path to the break rules YAML file (default: stored rules)")
		_ = c.MarkFlagRequired("roster")
	}

	runCmd.Flags().StringVarP(&runOutPath, "out", "o", "-", "Master schedule CSV output path, - for stdout")
	runCmd.Flags().BoolVar(&runPersist, "persist", false, "Store the run in the configured database")
	runCmd.Flags().BoolVar(&runCopy, "copy", false, "Save a timestamped copy to the configured export storage")
}

// loadRules reads the rules file, or the stored rules when no file is given.
func loadRules(ctx context.Context, store *db.Store) ([]models.BreakRule, error) {
	if rulesPath != "" {
		return roster.LoadRules(rulesPath)
	}
	if store == nil {
		return nil, errors.New("no --rules file given and no database to read stored rules from")
	}
	return store.ListRules(ctx)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()

	departments, err := roster.LoadRoster(rosterPath)
	if err != nil {
		return err
	}

	var store *db.Store
	if runPersist || rulesPath == "" {
		database, s, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close(database)
		store = s
	}

	rules, err := loadRules(ctx, store)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	sink := db.NewRunLogSink()
	runner := pipeline.NewRunner(breaks.New(logger), nil, logger)
	started := time.Now()
	res := runner.RunSchedule(ctx, pipeline.RunParams{
		Departments: departments,
		Rules:       rules,
		Log:         pipeline.MultiLogger{pipeline.NewConsoleLogger(cmd.ErrOrStderr()), sink},
	})

	if runPersist {
		record := db.NewRunRecord(db.RunOutcome{
			Source:     "cli",
			StartedAt:  started,
			FinishedAt: time.Now(),
			FinalStage: runner.State(),
			Result:     res,
			Logs:       sink.Logs(),
		})
		if err := store.SaveRun(ctx, record); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "run %s stored\n", record.ID)
	}

	if !res.Success() {
		for _, msg := range res.Errors() {
			fmt.Fprintln(cmd.ErrOrStderr(), msg)
		}
		return errors.New(res.Message())
	}
	fmt.Fprintln(cmd.ErrOrStderr(), res.Message())

	master := export.BuildMaster(res.Data())
	if err := writeMaster(cmd.OutOrStdout(), master); err != nil {
		return err
	}

	if runCopy {
		objects, err := storage.FromConfig(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("open export storage: %w", err)
		}
		location, err := export.NewExporter(objects, logger).SaveCopy(ctx, master)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "copy saved to %s\n", location)
	}
	return nil
}

func writeMaster(stdout io.Writer, master []export.MasterRow) error {
	if runOutPath == "" || runOutPath == "-" {
		return export.WriteCSV(stdout, master)
	}

	f, err := os.Create(runOutPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", runOutPath, err)
	}
	if err := export.WriteCSV(f, master); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func runBreaks(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	departments, err := roster.LoadRoster(rosterPath)
	if err != nil {
		return err
	}

	var store *db.Store
	if rulesPath == "" {
		database, s, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close(database)
		store = s
	}

	rules, err := loadRules(cmd.Context(), store)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	planned, err := breaks.New(logger).Schedule(rules, departments.Entries())
	if err != nil {
		return err
	}
	return export.WriteBreakEntries(cmd.OutOrStdout(), planned)
}
