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

// stabilityScore measures paraphrase sensitivity as 1/(1+IQR) over
// per-template mean logits, bounded in (0,1]. Identical template
// means give IQR 0 and a score of exactly 1.
func stabilityScore(means []float64) float64 {
	iqr := quantile(means, 0.75) - quantile(means, 0.25)
	return 1 / (1 + iqr)
}
