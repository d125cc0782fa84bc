// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package templates

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestDefaultSetShape(t *testing.T) {
	s := Default()
	if s.Version() != PromptVersion {
		t.Errorf("version = %q, want %q", s.Version(), PromptVersion)
	}
	if s.Len() < 10 {
		t.Errorf("default set has %d templates, want at least 10", s.Len())
	}
	seen := map[string]bool{}
	for _, ref := range s.Refs() {
		if seen[ref.ID] {
			t.Errorf("duplicate template ID %q", ref.ID)
		}
		seen[ref.ID] = true
		if len(ref.ContentHash) != 64 {
			t.Errorf("template %q hash %q is not a sha256 hex digest", ref.ID, ref.ContentHash)
		}
	}
}

func TestRenderSubstitutesClaim(t *testing.T) {
	s := Default()
	claim := "The Aleutian Islands span two hemispheres."
	for _, ref := range s.Refs() {
		out, err := s.Render(ref.ID, claim)
		if err != nil {
			t.Fatalf("Render(%q): %v", ref.ID, err)
		}
		if !strings.Contains(out, claim) {
			t.Errorf("template %q output does not contain the claim", ref.ID)
		}
		if strings.Contains(out, "{{") {
			t.Errorf("template %q output has an unexpanded placeholder", ref.ID)
		}
		if !strings.Contains(out, `"probability"`) {
			t.Errorf("template %q output lacks the JSON instruction", ref.ID)
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	s := Default()
	if _, err := s.Render("no-such-template", "claim"); err == nil {
		t.Fatal("expected error for unknown template ID")
	}
}

func TestContentHashMatchesText(t *testing.T) {
	s := Default()
	for _, tpl := range s.List() {
		sum := sha256.Sum256([]byte(tpl.Text))
		want := hex.EncodeToString(sum[:])
		if tpl.ContentHash() != want {
			t.Errorf("template %q hash mismatch", tpl.ID)
		}
	}
}

func TestHashChangesWithWording(t *testing.T) {
	a, err := NewSet("v", []Template{{ID: "x", Text: "Is it true? {{.Claim}}"}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSet("v", []Template{{ID: "x", Text: "Is it true?? {{.Claim}}"}})
	if err != nil {
		t.Fatal(err)
	}
	if a.Refs()[0].ContentHash == b.Refs()[0].ContentHash {
		t.Error("different wordings produced the same content hash")
	}
}

func TestNewSetRejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name    string
		version string
		specs   []Template
	}{
		{"empty version", "", []Template{{ID: "a", Text: "{{.Claim}}"}}},
		{"no templates", "v", nil},
		{"empty ID", "v", []Template{{ID: "", Text: "{{.Claim}}"}}},
		{"duplicate ID", "v", []Template{
			{ID: "a", Text: "first {{.Claim}}"},
			{ID: "a", Text: "second {{.Claim}}"},
		}},
		{"missing placeholder", "v", []Template{{ID: "a", Text: "no claim here"}}},
		{"broken syntax", "v", []Template{{ID: "a", Text: "{{.Claim}} {{if}}"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSet(tt.version, tt.specs); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestRefsPreserveCanonicalOrder(t *testing.T) {
	s, err := NewSet("v", []Template{
		{ID: "zeta", Text: "z {{.Claim}}"},
		{ID: "alpha", Text: "a {{.Claim}}"},
		{ID: "mid", Text: "m {{.Claim}}"},
	})
	if err != nil {
		t.Fatal(err)
	}
	refs := s.Refs()
	want := []string{"zeta", "alpha", "mid"}
	for i, ref := range refs {
		if ref.ID != want[i] {
			t.Errorf("refs[%d] = %q, want %q", i, ref.ID, want[i])
		}
	}
	list := s.List()
	if list[0].ID != "alpha" || list[2].ID != "zeta" {
		t.Error("List is not sorted by ID")
	}
}
