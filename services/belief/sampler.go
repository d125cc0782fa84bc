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

// Cell identifies one (template, replicate) provider call.
type Cell struct {
	TemplateID     string
	ReplicateIndex int
}

// slotCounts distributes K paraphrase slots across the first T
// templates of the run's template list, rotated by offset. Resulting
// counts differ by at most 1 even when K is not a multiple of T.
func slotCounts(templates []TemplateRef, stage StageConfig, offset int) map[string]int {
	t := stage.TemplateCount
	if t > len(templates) {
		t = len(templates)
	}
	counts := make(map[string]int, t)
	for slot := 0; slot < stage.ParaphraseSlots; slot++ {
		id := templates[(slot+offset)%t].ID
		counts[id]++
	}
	return counts
}

// deltaCells returns the (template, replicate) cells a stage needs
// that are not already in the cache. Desired replicates per template
// are slots(t) x R; existing cells are never re-requested, only the
// shortfall is returned. Cell order is deterministic: templates in
// list order, replicate indexes ascending.
func deltaCells(templates []TemplateRef, stage StageConfig, offset int, cache *SampleCache) []Cell {
	desired := slotCounts(templates, stage, offset)

	var cells []Cell
	t := stage.TemplateCount
	if t > len(templates) {
		t = len(templates)
	}
	for i := 0; i < t; i++ {
		id := templates[i].ID
		want := desired[id] * stage.ReplicatesPerSlot
		for replicate := 0; replicate < want; replicate++ {
			if !cache.Has(id, replicate) {
				cells = append(cells, Cell{TemplateID: id, ReplicateIndex: replicate})
			}
		}
	}
	return cells
}
