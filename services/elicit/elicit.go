// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package elicit adapts an LLM backend into a probability provider.
//
// The elicitor sends one rendered prompt per call and demands strict
// JSON back: exactly {"probability": <number>}. Anything else, prose
// around the JSON included, is a schema violation. The strictness is
// the point: lenient parsing of near-miss replies would let formatting
// habits of one model version leak into the sample distribution.
package elicit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianVeracity/services/belief"
	"github.com/AleutianAI/AleutianVeracity/services/llm"
	"github.com/google/uuid"
)

// Decode settings for probability elicitation. Temperature stays at
// the backend default so replicate spread reflects genuine decode
// noise; output is capped small because the reply is one JSON object.
var (
	elicitMaxTokens = 64
	elicitStop      = []string{"\n\n"}
)

type probabilityReply struct {
	Probability *float64 `json:"probability"`
}

// Elicitor implements the belief provider contract on top of an
// LLMClient.
type Elicitor struct {
	client llm.LLMClient
}

func NewElicitor(client llm.LLMClient) (*Elicitor, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client must not be nil")
	}
	return &Elicitor{client: client}, nil
}

// Sample sends the prompt and parses the reply into one raw draw.
// Responses that are not a bare {"probability": x} object come back as
// *belief.SchemaViolationError so the controller can discard and
// count them.
func (e *Elicitor) Sample(ctx context.Context, prompt string) (belief.Draw, error) {
	out, err := e.client.Generate(ctx, prompt, llm.GenerationParams{
		MaxTokens: &elicitMaxTokens,
		Stop:      elicitStop,
	})
	if err != nil {
		return belief.Draw{}, err
	}

	p, err := parseProbability(out.Text)
	if err != nil {
		return belief.Draw{}, err
	}

	responseID := out.ResponseID
	if responseID == "" {
		// Local backends assign no response IDs; synthesize one so
		// every sample is individually addressable in stored records.
		responseID = "local-" + uuid.NewString()
	}
	return belief.Draw{
		Probability: p,
		Provenance: belief.Provenance{
			ResponseID: responseID,
			Model:      out.Model,
			Timestamp:  time.Now().UTC(),
		},
	}, nil
}

// parseProbability enforces the reply schema. json.Decoder with
// DisallowUnknownFields rejects extra keys; a trailing-token check
// rejects prose after the object.
func parseProbability(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, &belief.SchemaViolationError{Raw: raw, Reason: "empty response"}
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.DisallowUnknownFields()
	var reply probabilityReply
	if err := dec.Decode(&reply); err != nil {
		return 0, &belief.SchemaViolationError{Raw: raw, Reason: fmt.Sprintf("not a probability object: %v", err)}
	}
	if dec.More() {
		return 0, &belief.SchemaViolationError{Raw: raw, Reason: "trailing content after JSON object"}
	}
	if reply.Probability == nil {
		return 0, &belief.SchemaViolationError{Raw: raw, Reason: "missing probability field"}
	}
	return *reply.Probability, nil
}
