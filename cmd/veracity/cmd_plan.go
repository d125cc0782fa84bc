// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/AleutianAI/AleutianVeracity/services/belief/plan"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect and validate stage plans",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a stage plan file (or show the embedded default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p plan.Plan
		var err error
		if len(args) == 1 {
			p, err = plan.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("plan %s is valid (version %s)\n", args[0], p.Version)
		} else {
			p = plan.Default()
			fmt.Printf("embedded default plan (version %s)\n", p.Version)
		}
		for i, s := range p.Stages {
			fmt.Printf("  stage %d: templates=%d slots=%d replicates=%d bootstrap=%d\n",
				i, s.Templates, s.Slots, s.Replicates, s.BootstrapIterations)
		}
		g := p.Gates
		fmt.Printf("  gates: ci_width<=%.3f stability>=%.3f imbalance<=%.2f",
			g.CIWidthMax, g.StabilityMin, g.ImbalanceMax)
		if g.ImbalanceWarn > 0 {
			fmt.Printf(" (warn at %.2f)", g.ImbalanceWarn)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	planCmd.AddCommand(planValidateCmd)
	rootCmd.AddCommand(planCmd)
}
