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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AleutianAI/AleutianVeracity/pkg/logging"
	"github.com/AleutianAI/AleutianVeracity/pkg/secrets"
	"github.com/AleutianAI/AleutianVeracity/services/belief"
	"github.com/AleutianAI/AleutianVeracity/services/belief/plan"
	"github.com/AleutianAI/AleutianVeracity/services/elicit"
	"github.com/AleutianAI/AleutianVeracity/services/llm"
	"github.com/AleutianAI/AleutianVeracity/services/templates"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var assessFlags struct {
	provider     string
	model        string
	planPath     string
	seed         uint64
	forceRefresh bool
	jsonOut      bool
	ollamaURL    string
	logLevel     string
}

var assessCmd = &cobra.Command{
	Use:   "assess [claim]",
	Short: "Run a full staged assessment of one claim",
	Long: `Runs the adaptive sampling loop against the chosen provider and prints
the assessment. The claim is taken from the argument, or from stdin
when piped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().StringVarP(&assessFlags.provider, "provider", "p", "ollama", "provider backend (ollama, openai, anthropic)")
	assessCmd.Flags().StringVarP(&assessFlags.model, "model", "m", "", "model identifier (backend default when empty)")
	assessCmd.Flags().StringVar(&assessFlags.planPath, "plan", "", "stage plan YAML (embedded default when empty)")
	assessCmd.Flags().Uint64Var(&assessFlags.seed, "seed", 0, "pin the bootstrap seed (derived when unset)")
	assessCmd.Flags().BoolVar(&assessFlags.forceRefresh, "force-refresh", false, "ignore cached samples")
	assessCmd.Flags().BoolVar(&assessFlags.jsonOut, "json", false, "print the raw assessment JSON")
	assessCmd.Flags().StringVar(&assessFlags.ollamaURL, "ollama-url", "", "Ollama base URL (defaults to $OLLAMA_BASE_URL)")
	assessCmd.Flags().StringVar(&assessFlags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(assessCmd)
}

// readClaim takes the claim from the argument or, when piped, stdin.
func readClaim(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("no claim given: pass it as an argument or pipe it on stdin")
	}
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var sb strings.Builder
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString(" ")
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read claim from stdin: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func loadPlan(path string) (plan.Plan, error) {
	if path == "" {
		return plan.Default(), nil
	}
	return plan.Load(path)
}

func runAssess(cmd *cobra.Command, args []string) error {
	rawClaim, err := readClaim(args)
	if err != nil {
		return err
	}
	claim, clamped, err := elicit.PrepareClaim(rawClaim)
	if err != nil {
		return err
	}

	p, err := loadPlan(assessFlags.planPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(assessFlags.logLevel),
		Service: "veracity-cli",
	})
	defer logger.Close()

	keys := secrets.NewKeyring()
	// Missing keys only matter for the backend actually selected; the
	// registry surfaces that error with context.
	_ = keys.Load("openai", "OPENAI_API_KEY", "/run/secrets/openai_api_key")
	_ = keys.Load("anthropic", "ANTHROPIC_API_KEY", "/run/secrets/anthropic_api_key")

	ollamaURL := assessFlags.ollamaURL
	if ollamaURL == "" {
		ollamaURL = os.Getenv("OLLAMA_BASE_URL")
	}
	registry := llm.NewRegistry(llm.RegistryConfig{Keys: keys, OllamaBaseURL: ollamaURL})
	client, err := registry.Client(assessFlags.provider, assessFlags.model)
	if err != nil {
		return err
	}
	provider, err := elicit.NewElicitor(client)
	if err != nil {
		return err
	}

	set := templates.Default()
	cfg := belief.RunConfig{
		Claim:         claim,
		ModelID:       client.Model(),
		PromptVersion: set.Version(),
		Templates:     set.Refs(),
		Stages:        p.StageConfigs(),
		Gates:         p.GateConfig(),
		ForceRefresh:  assessFlags.forceRefresh,
	}
	if cmd.Flags().Changed("seed") {
		seed := assessFlags.seed
		cfg.SeedOverride = &seed
	}

	controller, err := belief.NewController(cfg, provider, set, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if clamped {
		fmt.Fprintln(os.Stderr, "note: claim exceeded the length bound and was clamped")
	}

	assessment, err := controller.Run(ctx)
	if err != nil {
		return err
	}

	if assessFlags.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(assessment)
	}
	printAssessment(assessment)
	return nil
}

func printAssessment(a *belief.Assessment) {
	r := a.Result
	fmt.Printf("Claim:       %s\n", a.Claim)
	fmt.Printf("Model:       %s\n", a.ModelID)
	fmt.Printf("Run:         %s\n", a.RunID)
	fmt.Printf("P(true):     %.4f  [%.4f, %.4f]\n", r.PointEstimate, r.CILo, r.CIHi)
	fmt.Printf("Stability:   %.3f\n", r.StabilityScore)
	fmt.Printf("Center:      %s (trim %.2f)\n", r.CenterMethod, r.TrimFraction)
	fmt.Printf("Samples:     %d across %d templates\n", len(a.Samples), len(r.CountsByTemplate))
	fmt.Printf("Seed:        %d\n", r.Seed)
	if a.Degraded {
		fmt.Println("Status:      DEGRADED (stage plan exhausted before gates passed)")
	} else {
		fmt.Println("Status:      passed")
	}
	for _, entry := range a.DecisionLog {
		fmt.Printf("  stage %d: %s (ci_width=%.3f stability=%.3f imbalance=%.2f)\n",
			entry.StageIndex, entry.Action,
			entry.Metrics.CIWidth, entry.Metrics.StabilityScore, entry.Metrics.ImbalanceRatio)
		for _, w := range entry.Warnings {
			fmt.Printf("    warning: %s\n", w)
		}
	}
}
