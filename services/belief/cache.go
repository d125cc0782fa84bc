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
	"sort"
	"sync"
)

type cellKey struct {
	templateID string
	replicate  int
}

// SampleCache is the cumulative, write-once sample store shared by
// all stages of a run. Samples are immutable; a cell is written at
// most once and never evicted. Safe for concurrent use.
type SampleCache struct {
	mu     sync.RWMutex
	byCell map[cellKey]Sample
}

// NewSampleCache returns an empty cache.
func NewSampleCache() *SampleCache {
	return &SampleCache{byCell: make(map[cellKey]Sample)}
}

// Put stores a sample for its cell. The first write wins; later
// writes for the same cell are ignored, preserving immutability.
func (c *SampleCache) Put(s Sample) {
	key := cellKey{templateID: s.TemplateID, replicate: s.ReplicateIndex}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byCell[key]; exists {
		return
	}
	c.byCell[key] = s
}

// Has reports whether the cell already holds a sample.
func (c *SampleCache) Has(templateID string, replicate int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byCell[cellKey{templateID: templateID, replicate: replicate}]
	return ok
}

// Len returns the number of cached samples.
func (c *SampleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byCell)
}

// Reset drops every cached sample. Used by force-refresh.
func (c *SampleCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCell = make(map[cellKey]Sample)
}

// Snapshot returns all samples ordered by template ID then replicate
// index. The deterministic order matters: aggregation consumes this
// snapshot, and bit-exact reproducibility requires a stable iteration
// order over what is otherwise an unordered map.
func (c *SampleCache) Snapshot() []Sample {
	c.mu.RLock()
	samples := make([]Sample, 0, len(c.byCell))
	for _, s := range c.byCell {
		samples = append(samples, s)
	}
	c.mu.RUnlock()

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].TemplateID != samples[j].TemplateID {
			return samples[i].TemplateID < samples[j].TemplateID
		}
		return samples[i].ReplicateIndex < samples[j].ReplicateIndex
	})
	return samples
}

// clusters groups the snapshot's logits by template ID.
func clusters(samples []Sample) map[string][]float64 {
	out := make(map[string][]float64)
	for _, s := range samples {
		out[s.TemplateID] = append(out[s.TemplateID], s.Logit)
	}
	return out
}
