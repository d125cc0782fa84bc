// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package templates holds the canonical paraphrase prompt set.
//
// Every template asks the same question in different words: given a
// claim, reply with a probability that the claim is true, as strict
// JSON. The template ID is stable across releases; the content hash
// is the sha256 of the canonical template text, so any wording change
// produces a new hash and breaks cache identity on purpose.
package templates

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/AleutianAI/AleutianVeracity/services/belief"
)

// PromptVersion identifies the wording generation of the default set.
// Bump it whenever any default template text changes.
const PromptVersion = "2025-08-1"

// jsonInstruction is appended to every default template so providers
// of any vintage produce the same parseable shape.
const jsonInstruction = `Respond with only a JSON object of the form {"probability": <number between 0 and 1>} and nothing else.`

// Template is one prompt variant. Text must contain the {{.Claim}}
// placeholder; anything else is a construction error.
type Template struct {
	ID   string
	Text string

	tmpl *template.Template
	hash string
}

// ContentHash returns the sha256 hex digest of the canonical text.
func (t *Template) ContentHash() string {
	return t.hash
}

// Set is an ordered, immutable collection of templates. Order matters:
// the controller draws the first T templates of a stage from the front
// of the set, so the default ordering is part of the sampling contract.
type Set struct {
	ordered []*Template
	byID    map[string]*Template
	version string
}

type claimData struct {
	Claim string
}

// NewSet compiles the given templates into a set. IDs must be unique
// and every text must reference the claim placeholder.
func NewSet(version string, specs []Template) (*Set, error) {
	if version == "" {
		return nil, fmt.Errorf("template set version must not be empty")
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("template set must not be empty")
	}
	s := &Set{
		ordered: make([]*Template, 0, len(specs)),
		byID:    make(map[string]*Template, len(specs)),
		version: version,
	}
	for i := range specs {
		spec := specs[i]
		if spec.ID == "" {
			return nil, fmt.Errorf("template %d has an empty ID", i)
		}
		if _, dup := s.byID[spec.ID]; dup {
			return nil, fmt.Errorf("duplicate template ID %q", spec.ID)
		}
		if !strings.Contains(spec.Text, "{{.Claim}}") {
			return nil, fmt.Errorf("template %q has no {{.Claim}} placeholder", spec.ID)
		}
		tmpl, err := template.New(spec.ID).Parse(spec.Text)
		if err != nil {
			return nil, fmt.Errorf("parse template %q: %w", spec.ID, err)
		}
		sum := sha256.Sum256([]byte(spec.Text))
		t := &Template{
			ID:   spec.ID,
			Text: spec.Text,
			tmpl: tmpl,
			hash: hex.EncodeToString(sum[:]),
		}
		s.ordered = append(s.ordered, t)
		s.byID[t.ID] = t
	}
	return s, nil
}

// Version returns the set's prompt version.
func (s *Set) Version() string { return s.version }

// Len returns the number of templates in the set.
func (s *Set) Len() int { return len(s.ordered) }

// Render fills the template's claim placeholder. Implements the
// renderer contract of the belief controller.
func (s *Set) Render(templateID, claim string) (string, error) {
	t, ok := s.byID[templateID]
	if !ok {
		return "", fmt.Errorf("unknown template %q", templateID)
	}
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, claimData{Claim: claim}); err != nil {
		return "", fmt.Errorf("render template %q: %w", templateID, err)
	}
	return sb.String(), nil
}

// Refs returns the set's identity in controller form, preserving the
// canonical ordering.
func (s *Set) Refs() []belief.TemplateRef {
	refs := make([]belief.TemplateRef, len(s.ordered))
	for i, t := range s.ordered {
		refs[i] = belief.TemplateRef{ID: t.ID, ContentHash: t.hash}
	}
	return refs
}

// List returns the templates sorted by ID for display purposes.
func (s *Set) List() []*Template {
	out := make([]*Template, len(s.ordered))
	copy(out, s.ordered)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Default returns the built-in paraphrase set. The wording variants
// probe the same question from different framings so that template
// sensitivity shows up as cluster spread rather than hiding inside a
// single phrasing.
func Default() *Set {
	specs := []Template{
		{
			ID:   "direct-v1",
			Text: "What is the probability that the following claim is true?\n\nClaim: {{.Claim}}\n\n" + jsonInstruction,
		},
		{
			ID:   "assessor-v1",
			Text: "You are a careful assessor of factual claims. Assess this claim and state the probability that it is true.\n\nClaim: {{.Claim}}\n\n" + jsonInstruction,
		},
		{
			ID:   "credence-v1",
			Text: "Consider the statement below. What credence, between 0 and 1, do you assign to it being true?\n\nStatement: {{.Claim}}\n\n" + jsonInstruction,
		},
		{
			ID:   "falsity-v1",
			Text: "Estimate how likely the following claim is to be FALSE, then report the probability that it is TRUE.\n\nClaim: {{.Claim}}\n\n" + jsonInstruction,
		},
		{
			ID:   "betting-v1",
			Text: "If you had to bet on whether this claim is true, what probability would make the bet fair?\n\nClaim: {{.Claim}}\n\n" + jsonInstruction,
		},
		{
			ID:   "factcheck-v1",
			Text: "Act as a fact checker. After weighing the evidence you know of, report the probability that the claim is accurate.\n\nClaim: {{.Claim}}\n\n" + jsonInstruction,
		},
		{
			ID:   "frequency-v1",
			Text: "Imagine 100 worlds consistent with your knowledge. In how many is the following claim true? Report the fraction as a probability.\n\nClaim: {{.Claim}}\n\n" + jsonInstruction,
		},
		{
			ID:   "skeptic-v1",
			Text: "A skeptic doubts the claim below. Weighing their doubt against the evidence, how probable is it that the claim is nonetheless true?\n\nClaim: {{.Claim}}\n\n" + jsonInstruction,
		},
		{
			ID:   "calibrated-v1",
			Text: "Give a calibrated probability estimate for the truth of this claim. A calibrated 0.8 means such claims are true 8 times in 10.\n\nClaim: {{.Claim}}\n\n" + jsonInstruction,
		},
		{
			ID:   "verdict-v1",
			Text: "Read the claim and deliver a verdict as a probability of truth, where 0 means certainly false and 1 means certainly true.\n\nClaim: {{.Claim}}\n\n" + jsonInstruction,
		},
		{
			ID:   "evidence-v1",
			Text: "Based strictly on evidence you are confident about, what is the probability that the following holds?\n\nClaim: {{.Claim}}\n\n" + jsonInstruction,
		},
		{
			ID:   "peer-v1",
			Text: "A well-informed peer asserts the claim below. What is the probability that they are right?\n\nClaim: {{.Claim}}\n\n" + jsonInstruction,
		},
	}
	s, err := NewSet(PromptVersion, specs)
	if err != nil {
		// The default set is compiled from literals above. A failure
		// here is a programming error, not a runtime condition.
		panic(fmt.Sprintf("default template set is invalid: %v", err))
	}
	return s
}
