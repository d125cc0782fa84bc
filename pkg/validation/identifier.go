// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for caller-provided identifiers that are
// used in storage keys, metric labels, and provider lookups. Validating them
// up front prevents key-collision tricks and label-cardinality explosions.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// identifierPattern matches logical identifiers (provider ids, template ids,
// prompt versions). Lowercase alphanumerics with dots, hyphens, underscores;
// must start alphanumeric. Max length 64.
var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{0,63}$`)

// modelPattern is looser than identifierPattern: upstream model names mix
// case and use slashes and colons (for example "claude-sonnet-4-5",
// "qwen2.5:14b", "meta-llama/Llama-3-8B"). Max length 128.
var modelPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/\-]{0,127}$`)

// MaxClaimLength bounds claim text to keep prompts and storage keys sane.
const MaxClaimLength = 4096

// ValidateIdentifier validates a logical identifier such as a provider id,
// template id, or prompt version.
//
// Valid identifiers:
//   - 1-64 characters
//   - lowercase letters, digits, dots, underscores, hyphens
//   - must start with a letter or digit
//
// Example:
//
//	if err := validation.ValidateIdentifier("openai"); err != nil {
//	    return fmt.Errorf("invalid provider: %w", err)
//	}
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier %q (must be 1-64 lowercase alphanumeric chars, dots, underscores, or hyphens)", id)
	}
	return nil
}

// ValidateModelID validates an upstream model name.
func ValidateModelID(model string) error {
	if model == "" {
		return fmt.Errorf("model id cannot be empty")
	}
	if !modelPattern.MatchString(model) {
		return fmt.Errorf("invalid model id %q", model)
	}
	return nil
}

// ValidateClaim validates claim text before it is rendered into prompts.
// Claims must be non-blank, valid UTF-8, free of NUL bytes, and at most
// MaxClaimLength bytes.
func ValidateClaim(claim string) error {
	if strings.TrimSpace(claim) == "" {
		return fmt.Errorf("claim cannot be blank")
	}
	if len(claim) > MaxClaimLength {
		return fmt.Errorf("claim exceeds %d bytes (got %d)", MaxClaimLength, len(claim))
	}
	if !utf8.ValidString(claim) {
		return fmt.Errorf("claim is not valid UTF-8")
	}
	if strings.ContainsRune(claim, '\x00') {
		return fmt.Errorf("claim contains NUL byte")
	}
	return nil
}

// ValidateIdentifiers validates multiple identifiers, reporting every
// invalid one in a single error.
func ValidateIdentifiers(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateIdentifier(id); err != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid identifiers: %s", strings.Join(invalid, ", "))
	}
	return nil
}
