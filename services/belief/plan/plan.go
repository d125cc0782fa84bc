// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plan loads and validates the staged sampling plan.
//
// The plan is versioned configuration, not code: stage sizes and gate
// thresholds come from YAML (a file on disk, or the embedded default
// baked into the binary), pass schema validation once at load time,
// and are handed to the controller as immutable values. Changing
// sampling policy is a configuration diff, never a runtime mutation.
package plan

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/AleutianAI/AleutianVeracity/services/belief"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// defaultPlanYAML is the built-in plan, embedded so a bare binary can
// assess claims without any configuration on disk.
//
//go:embed default_plan.yaml
var defaultPlanYAML []byte

// Stage sizes one controller stage.
type Stage struct {
	Templates           int `yaml:"templates" validate:"min=1,max=64"`
	Slots               int `yaml:"slots" validate:"min=1,max=1024"`
	Replicates          int `yaml:"replicates" validate:"min=1,max=64"`
	BootstrapIterations int `yaml:"bootstrap_iterations" validate:"min=100,max=1000000"`
}

// Gates holds the controller's stop thresholds.
type Gates struct {
	CIWidthMax    float64 `yaml:"ci_width_max" validate:"gt=0,lte=1"`
	StabilityMin  float64 `yaml:"stability_min" validate:"gt=0,lte=1"`
	ImbalanceMax  float64 `yaml:"imbalance_max" validate:"gte=1"`
	ImbalanceWarn float64 `yaml:"imbalance_warn" validate:"omitempty,gte=1"`
}

// Plan is a complete, versioned stage plan.
type Plan struct {
	Version string  `yaml:"version" validate:"required"`
	Stages  []Stage `yaml:"stages" validate:"min=1,max=16,dive"`
	Gates   Gates   `yaml:"gates"`
}

var validate = validator.New()

// Default returns the embedded plan. The embedded bytes are validated
// at package test time; a parse failure here means a broken build, so
// Default panics rather than returning an error every caller would
// have to invent handling for.
func Default() Plan {
	p, err := parse(defaultPlanYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default plan is invalid: %v", err))
	}
	return p
}

// Load reads and validates a plan from a YAML file.
func Load(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan file: %w", err)
	}
	p, err := parse(data)
	if err != nil {
		return Plan{}, fmt.Errorf("plan file %s: %w", path, err)
	}
	return p, nil
}

// Parse validates a plan from raw YAML bytes.
func Parse(data []byte) (Plan, error) {
	return parse(data)
}

func parse(data []byte) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("unmarshal plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Validate applies schema validation plus the structural rules the
// tags cannot express: stages must escalate (no stage may shrink any
// dimension), and the warn threshold must sit at or below the hard
// imbalance limit.
func (p Plan) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("plan schema: %w", err)
	}
	for i := 1; i < len(p.Stages); i++ {
		prev, cur := p.Stages[i-1], p.Stages[i]
		if cur.Templates < prev.Templates ||
			cur.Slots < prev.Slots ||
			cur.Replicates < prev.Replicates {
			return fmt.Errorf("stage %d shrinks a sampling dimension relative to stage %d", i, i-1)
		}
	}
	if p.Gates.ImbalanceWarn > 0 && p.Gates.ImbalanceWarn > p.Gates.ImbalanceMax {
		return fmt.Errorf("imbalance_warn %.2f exceeds imbalance_max %.2f",
			p.Gates.ImbalanceWarn, p.Gates.ImbalanceMax)
	}
	return nil
}

// StageConfigs converts the plan's stages to the controller's type.
func (p Plan) StageConfigs() []belief.StageConfig {
	stages := make([]belief.StageConfig, len(p.Stages))
	for i, s := range p.Stages {
		stages[i] = belief.StageConfig{
			TemplateCount:       s.Templates,
			ParaphraseSlots:     s.Slots,
			ReplicatesPerSlot:   s.Replicates,
			BootstrapIterations: s.BootstrapIterations,
		}
	}
	return stages
}

// GateConfig converts the plan's gates to the controller's type.
func (p Plan) GateConfig() belief.GateConfig {
	return belief.GateConfig{
		CIWidthMax:    p.Gates.CIWidthMax,
		StabilityMin:  p.Gates.StabilityMin,
		ImbalanceMax:  p.Gates.ImbalanceMax,
		ImbalanceWarn: p.Gates.ImbalanceWarn,
	}
}

// MaxTemplates returns the largest template count any stage requests.
func (p Plan) MaxTemplates() int {
	most := 0
	for _, s := range p.Stages {
		if s.Templates > most {
			most = s.Templates
		}
	}
	return most
}
