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
	"math/rand/v2"
	"sort"
)

// clusterBootstrap estimates a 95% confidence interval for the point
// estimate via a two-level (cluster) bootstrap.
//
// Each iteration resamples T template identities with replacement,
// then resamples each drawn template's replicate logits with
// replacement, reduces them to means, applies the robust center, and
// records the sigmoid of the result. The 2.5th and 97.5th percentiles
// of the recorded distribution form the interval.
//
// Variance here is dominated by template-to-template wording
// differences, not within-template decode noise; a flat bootstrap
// over all raw samples would systematically understate uncertainty.
//
// All draws consume the single rng stream strictly sequentially in a
// fixed iteration order, so results are bit-identical for a given
// seed. Do not parallelize the loop without changing the seeding
// scheme, and by extension the output contract.
func clusterBootstrap(ordered [][]float64, iterations int, trim float64, rng *rand.Rand) (lo, hi float64) {
	t := len(ordered)
	estimates := make([]float64, iterations)
	means := make([]float64, t)

	for i := 0; i < iterations; i++ {
		for j := 0; j < t; j++ {
			cluster := ordered[rng.IntN(t)]
			n := len(cluster)
			sum := 0.0
			for k := 0; k < n; k++ {
				sum += cluster[rng.IntN(n)]
			}
			means[j] = sum / float64(n)
		}
		center, _ := robustCenter(means, trim)
		estimates[i] = Sigmoid(center)
	}

	sort.Float64s(estimates)
	return quantile(estimates, 0.025), quantile(estimates, 0.975)
}

// newBootstrapRNG builds the PCG generator the bootstrap consumes.
// Both words of PCG state are derived from the 64-bit seed so the
// full seed influences the stream.
func newBootstrapRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
