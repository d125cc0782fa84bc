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
	"os"

	"github.com/AleutianAI/AleutianVeracity/services/templates"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var templatesShowText bool

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect the canonical paraphrase template set",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List template IDs and content hashes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		set := templates.Default()
		// Short hashes for humans, full hashes when piped.
		short := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
		fmt.Printf("prompt version %s, %d templates\n", set.Version(), set.Len())
		for _, tpl := range set.List() {
			hash := tpl.ContentHash()
			if short {
				hash = hash[:12]
			}
			fmt.Printf("  %-16s %s\n", tpl.ID, hash)
			if templatesShowText {
				fmt.Printf("    %s\n", tpl.Text)
			}
		}
	},
}

func init() {
	templatesListCmd.Flags().BoolVar(&templatesShowText, "text", false, "also print the full template text")
	templatesCmd.AddCommand(templatesListCmd)
	rootCmd.AddCommand(templatesCmd)
}
