/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/breakplan/internal/db"
	"github.com/friendsincode/breakplan/internal/roster"
	"github.com/friendsincode/breakplan/internal/server"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage stored break rules",
}

var rulesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Create or replace stored rules from a rules file",
	RunE:  runRulesImport,
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print stored rules in rules file format",
	RunE:  runRulesExport,
}

var rulesImportPath string

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesImportCmd)
	rulesCmd.AddCommand(rulesExportCmd)

	rulesImportCmd.Flags().StringVar(&rulesImportPath, "file", "", "Path to the break rules YAML file (required)")
	_ = rulesImportCmd.MarkFlagRequired("file")
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	rules, err := roster.LoadRules(rulesImportPath)
	if err != nil {
		return err
	}

	database, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close(database)

	ruleCache := openCache()
	defer ruleCache.Close()

	if err := server.SeedRules(cmd.Context(), store, rules, ruleCache); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d rules\n", len(rules))
	return nil
}

func runRulesExport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close(database)

	rules, err := store.ListRules(cmd.Context())
	if err != nil {
		return err
	}
	return roster.EncodeRules(cmd.OutOrStdout(), rules)
}
