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
	"fmt"
	"math"
	"sort"
)

// DefaultTrimFraction is the share of template means dropped from
// each tail before averaging. With 5 templates it drops exactly the
// min and the max.
const DefaultTrimFraction = 0.20

// trimMinTemplates is the template count below which trimming is
// skipped and the plain mean is used instead. Trimming 20% of fewer
// than 5 values drops nothing anyway, and very small T makes extreme
// values indistinguishable from signal.
const trimMinTemplates = 5

// Center method names reported in AggregateResult.
const (
	centerMethodMean = "mean"
)

func centerMethodTrimmed(trim float64) string {
	return fmt.Sprintf("trimmed_mean_%.2f", trim)
}

// robustCenter computes the trimmed mean of per-template mean logits.
//
// For T >= 5 the means are sorted and floor(trim*T) values are dropped
// from each tail; the remainder is averaged with equal weight per
// template. Weighting templates equally, not samples, is what
// neutralizes paraphrase-count imbalance. For T < 5 the unweighted
// mean of all values is returned untrimmed.
//
// Returns the center in logit space and the method name used.
func robustCenter(means []float64, trim float64) (float64, string) {
	t := len(means)
	if t < trimMinTemplates {
		return mean(means), centerMethodMean
	}

	sorted := make([]float64, t)
	copy(sorted, means)
	sort.Float64s(sorted)

	drop := int(math.Floor(trim * float64(t)))
	// Never trim away everything.
	if 2*drop >= t {
		drop = (t - 1) / 2
	}
	retained := sorted[drop : t-drop]
	return mean(retained), centerMethodTrimmed(trim)
}
