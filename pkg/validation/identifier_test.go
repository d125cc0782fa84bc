// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid identifiers
		{"simple", "openai", false},
		{"single char", "a", false},
		{"with digits", "tmpl-03", false},
		{"with dots", "prompt.v2", false},
		{"with underscore", "direct_v1", false},
		{"max length", strings.Repeat("a", 64), false},

		// Invalid identifiers
		{"empty", "", true},
		{"uppercase", "OpenAI", true},
		{"spaces", "open ai", true},
		{"leading dot", ".openai", true},
		{"leading hyphen", "-openai", true},
		{"too long", strings.Repeat("a", 65), true},
		{"path traversal", "../secrets", true},
		{"key collision attempt", "a/b", true},
		{"newline", "openai\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateModelID(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		wantErr bool
	}{
		{"openai style", "gpt-4o-mini", false},
		{"anthropic style", "claude-sonnet-4-5", false},
		{"ollama tag", "qwen2.5:14b", false},
		{"hf repo path", "meta-llama/Llama-3-8B", false},
		{"empty", "", true},
		{"spaces", "gpt 4", true},
		{"leading slash", "/etc/passwd", true},
		{"too long", strings.Repeat("m", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModelID(tt.model)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateModelID(%q) error = %v, wantErr %v", tt.model, err, tt.wantErr)
			}
		})
	}
}

func TestValidateClaim(t *testing.T) {
	tests := []struct {
		name    string
		claim   string
		wantErr bool
	}{
		{"simple", "The Eiffel Tower is in Paris.", false},
		{"unicode", "水は100°Cで沸騰する", false},
		{"max length", strings.Repeat("x", MaxClaimLength), false},
		{"empty", "", true},
		{"whitespace only", "   \t\n", true},
		{"too long", strings.Repeat("x", MaxClaimLength+1), true},
		{"nul byte", "claim\x00claim", true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClaim(tt.claim)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateClaim(%.20q) error = %v, wantErr %v", tt.claim, err, tt.wantErr)
			}
		})
	}
}

func TestValidateIdentifiers(t *testing.T) {
	if err := ValidateIdentifiers([]string{"openai", "ollama"}); err != nil {
		t.Errorf("all valid: unexpected error %v", err)
	}
	err := ValidateIdentifiers([]string{"openai", "BAD", "also bad"})
	if err == nil {
		t.Fatal("expected error for invalid identifiers")
	}
	if !strings.Contains(err.Error(), "BAD") || !strings.Contains(err.Error(), "also bad") {
		t.Errorf("error should list all invalid ids, got %v", err)
	}
	if err := ValidateIdentifiers(nil); err != nil {
		t.Errorf("empty slice: unexpected error %v", err)
	}
}
