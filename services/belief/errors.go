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

import "fmt"

// NumericDomainError marks a raw probability that cannot be coerced
// into (0,1). The offending sample is discarded and logged; the run
// continues.
type NumericDomainError struct {
	Value  float64
	Reason string
}

func (e *NumericDomainError) Error() string {
	return fmt.Sprintf("probability %v outside numeric domain: %s", e.Value, e.Reason)
}

// SchemaViolationError marks a provider response that cannot be
// coerced into the expected shape. Same discard policy as
// NumericDomainError.
type SchemaViolationError struct {
	Raw    string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("provider response violates schema: %s", e.Reason)
}

// InsufficientDataError is fatal: after discarding invalid samples,
// too little valid data remains to aggregate. Surfaced to the caller,
// never silently degraded.
type InsufficientDataError struct {
	Unit string // what was counted: "template clusters", "valid samples"
	Got  int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d %s remain, need at least %d", e.Got, e.Unit, e.Need)
}

// Minimum valid data required for aggregation. A run with fewer
// surviving template clusters or total samples fails explicitly.
const (
	minValidClusters = 3
	minValidSamples  = 3
)
