// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// veracity is the command-line front end for claim assessment: run an
// assessment against a provider, validate stage plans, and inspect the
// canonical template set.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "veracity",
	Short: "Assess the truth probability of claims via repeated LLM elicitation",
	Long: `veracity asks a language model the same question many ways, aggregates
the probability samples robustly, and reports a point estimate with a
bootstrap confidence interval and a paraphrase-stability score.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
