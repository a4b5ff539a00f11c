/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/muninn_rotation/internal/rules"
)

var validateRulesCmd = &cobra.Command{
	Use:   "validate-rules [file]",
	Short: "Validate a scheduling rules file",
	Long: `Parses and validates a rules YAML document. Without an argument the
configured rules path is checked. Validation issues are advisory and are
printed without failing the command; only an unreadable or unparseable file
exits non-zero.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidateRules,
}

func init() {
	rootCmd.AddCommand(validateRulesCmd)
}

func runValidateRules(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	path := cfg.RulesPath
	if len(args) == 1 {
		path = args[0]
	}

	ruleCfg, err := rules.Load(path)
	if err != nil {
		return fmt.Errorf("validate %s: %w", path, err)
	}

	issues := ruleCfg.Validate()
	if len(issues) == 0 {
		fmt.Printf("%s: ok\n", path)
		return nil
	}

	fmt.Printf("%s: %d issue(s)\n", path, len(issues))
	for _, issue := range issues {
		fmt.Printf("  - %s\n", issue)
	}
	return nil
}
