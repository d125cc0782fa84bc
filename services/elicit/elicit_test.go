// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package elicit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianVeracity/pkg/validation"
	"github.com/AleutianAI/AleutianVeracity/services/belief"
	"github.com/AleutianAI/AleutianVeracity/services/llm"
)

type fakeLLM struct {
	text       string
	responseID string
	model      string
	err        error

	gotPrompt string
	gotParams llm.GenerationParams
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (llm.Completion, error) {
	f.gotPrompt = prompt
	f.gotParams = params
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Text: f.text, ResponseID: f.responseID, Model: f.model}, nil
}

func (f *fakeLLM) Model() string { return f.model }

func TestSampleParsesStrictJSON(t *testing.T) {
	fake := &fakeLLM{text: `{"probability": 0.73}`, responseID: "resp-1", model: "m"}
	e, err := NewElicitor(fake)
	if err != nil {
		t.Fatal(err)
	}
	draw, err := e.Sample(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if draw.Probability != 0.73 {
		t.Errorf("probability = %v", draw.Probability)
	}
	if draw.Provenance.ResponseID != "resp-1" {
		t.Errorf("response ID = %q", draw.Provenance.ResponseID)
	}
	if draw.Provenance.Model != "m" {
		t.Errorf("model = %q", draw.Provenance.Model)
	}
	if draw.Provenance.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
	if fake.gotPrompt != "the prompt" {
		t.Errorf("prompt forwarded as %q", fake.gotPrompt)
	}
	if fake.gotParams.MaxTokens == nil || *fake.gotParams.MaxTokens != 64 {
		t.Error("max tokens not capped")
	}
}

func TestSampleSynthesizesResponseID(t *testing.T) {
	fake := &fakeLLM{text: `{"probability": 0.5}`, model: "local"}
	e, _ := NewElicitor(fake)
	draw, err := e.Sample(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(draw.Provenance.ResponseID, "local-") {
		t.Errorf("synthetic response ID = %q", draw.Provenance.ResponseID)
	}
}

func TestSampleSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   \n"},
		{"prose", "The probability is 0.7."},
		{"prose around json", `Sure! {"probability": 0.7}`},
		{"trailing prose", `{"probability": 0.7} hope that helps`},
		{"wrong key", `{"prob": 0.7}`},
		{"extra key", `{"probability": 0.7, "confidence": "high"}`},
		{"missing field", `{}`},
		{"string value", `{"probability": "0.7"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLLM{text: tt.text, model: "m"}
			e, _ := NewElicitor(fake)
			_, err := e.Sample(context.Background(), "p")
			var sv *belief.SchemaViolationError
			if !errors.As(err, &sv) {
				t.Fatalf("want SchemaViolationError, got %v", err)
			}
			if sv.Raw != tt.text {
				t.Errorf("Raw = %q, want the original response", sv.Raw)
			}
		})
	}
}

func TestSampleAcceptsOutOfRangeNumbers(t *testing.T) {
	// Range enforcement is the aggregation core's job; the elicitor
	// only enforces shape.
	fake := &fakeLLM{text: `{"probability": 1.4}`, model: "m"}
	e, _ := NewElicitor(fake)
	draw, err := e.Sample(context.Background(), "p")
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if draw.Probability != 1.4 {
		t.Errorf("probability = %v", draw.Probability)
	}
}

func TestSamplePropagatesTransportErrors(t *testing.T) {
	boom := errors.New("connection refused")
	fake := &fakeLLM{err: boom}
	e, _ := NewElicitor(fake)
	_, err := e.Sample(context.Background(), "p")
	if !errors.Is(err, boom) {
		t.Fatalf("want transport error, got %v", err)
	}
	var sv *belief.SchemaViolationError
	if errors.As(err, &sv) {
		t.Error("transport error must not be a schema violation")
	}
}

func TestNewElicitorNilClient(t *testing.T) {
	if _, err := NewElicitor(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestPrepareClaimPassthrough(t *testing.T) {
	got, clamped, err := PrepareClaim("  Water boils at\n100C at sea level.  ")
	if err != nil {
		t.Fatal(err)
	}
	if clamped {
		t.Error("short claim should not be clamped")
	}
	if got != "Water boils at 100C at sea level." {
		t.Errorf("normalized = %q", got)
	}
}

func TestPrepareClaimClampsLongClaims(t *testing.T) {
	long := strings.Repeat("This sentence pads the claim well past the byte bound. ", 200)
	got, clamped, err := PrepareClaim(long)
	if err != nil {
		t.Fatal(err)
	}
	if !clamped {
		t.Error("over-length claim should be clamped")
	}
	if len(got) > validation.MaxClaimLength {
		t.Errorf("clamped claim is %d bytes, max %d", len(got), validation.MaxClaimLength)
	}
	if got == "" {
		t.Error("clamped claim is empty")
	}
}

func TestPrepareClaimRejectsBlank(t *testing.T) {
	if _, _, err := PrepareClaim("   "); err == nil {
		t.Fatal("expected error for blank claim")
	}
}
