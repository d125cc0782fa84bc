// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package belief

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// SeedInputs is everything that feeds the deterministic bootstrap
// seed. Identical inputs produce a bit-identical seed on every run,
// on every machine.
type SeedInputs struct {
	Claim          string
	ModelID        string
	PromptVersion  string
	Slots          int // K
	Replicates     int // R
	BootstrapIters int // B
	CenterMethod   string
	TrimFraction   float64
	TemplateHashes []string // content hashes; order-insensitive
}

// DeriveSeed hashes the canonical concatenation of the run
// configuration into a 64-bit seed. Template hashes are sorted so the
// caller's ordering cannot perturb the result.
func DeriveSeed(in SeedInputs) uint64 {
	hashes := make([]string, len(in.TemplateHashes))
	copy(hashes, in.TemplateHashes)
	sort.Strings(hashes)

	canonical := strings.Join([]string{
		in.Claim,
		in.ModelID,
		in.PromptVersion,
		fmt.Sprintf("%d", in.Slots),
		fmt.Sprintf("%d", in.Replicates),
		fmt.Sprintf("%d", in.BootstrapIters),
		in.CenterMethod,
		fmt.Sprintf("%.6f", in.TrimFraction),
		strings.Join(hashes, ","),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return binary.BigEndian.Uint64(sum[:8])
}

// rotationOffset derives the balanced sampler's template rotation from
// claim, model, and prompt version, so different claims do not always
// favor low-index templates. Deterministic given identical inputs.
func rotationOffset(claim, modelID, promptVersion string, templateCount int) int {
	if templateCount <= 0 {
		return 0
	}
	sum := sha256.Sum256([]byte(claim + "|" + modelID + "|" + promptVersion))
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(templateCount))
}
