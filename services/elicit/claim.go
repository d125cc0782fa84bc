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
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianVeracity/pkg/validation"
	"github.com/tmc/langchaingo/textsplitter"
)

// PrepareClaim normalizes a user claim before a run: whitespace is
// collapsed, then over-length claims are clamped to their first
// sentence-aligned chunk rather than truncated mid-word. Returns the
// prepared claim and whether clamping happened.
//
// Clamping is splitter-based so the kept prefix ends on a natural
// boundary; the cut changes the claim's content hash inputs, so a
// clamped claim never aliases the cache of the full one.
func PrepareClaim(claim string) (string, bool, error) {
	normalized := strings.Join(strings.Fields(claim), " ")
	if err := validation.ValidateClaim(normalized); err == nil {
		return normalized, false, nil
	} else if len(normalized) <= validation.MaxClaimLength {
		// Invalid for a reason other than length; clamping cannot fix it.
		return "", false, err
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(validation.MaxClaimLength),
		textsplitter.WithChunkOverlap(0),
	)
	chunks, err := splitter.SplitText(normalized)
	if err != nil {
		return "", false, fmt.Errorf("split over-length claim: %w", err)
	}
	if len(chunks) == 0 {
		return "", false, fmt.Errorf("claim reduced to nothing after splitting")
	}
	clamped := strings.TrimSpace(chunks[0])
	if err := validation.ValidateClaim(clamped); err != nil {
		return "", false, fmt.Errorf("clamped claim still invalid: %w", err)
	}
	return clamped, true, nil
}
