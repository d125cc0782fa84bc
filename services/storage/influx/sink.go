// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package influx exports accepted samples to InfluxDB as time series.
//
// Each sample becomes one point in the belief_samples measurement,
// tagged by run, model, and template. The export is optional plumbing
// for offline calibration analysis; assessment storage of record stays
// in BadgerDB.
package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianVeracity/services/belief"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const sampleMeasurement = "belief_samples"

// SinkConfig selects the InfluxDB endpoint and destination bucket.
type SinkConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// SampleSink writes per-sample points with the blocking write API so a
// failed export surfaces immediately instead of dying in a batch queue.
type SampleSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func NewSampleSink(cfg SinkConfig) (*SampleSink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx URL, org, and bucket are required")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	slog.Info("Initializing InfluxDB sample sink", "url", cfg.URL, "bucket", cfg.Bucket)
	return &SampleSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

// WriteAssessment exports every sample of a finished run as one batch.
func (s *SampleSink) WriteAssessment(ctx context.Context, a *belief.Assessment) error {
	if a == nil {
		return errors.New("assessment must not be nil")
	}
	points := make([]*write.Point, 0, len(a.Samples))
	for _, sample := range a.Samples {
		points = append(points, influxdb2.NewPoint(
			sampleMeasurement,
			map[string]string{
				"run_id":      a.RunID,
				"model_id":    a.ModelID,
				"template_id": sample.TemplateID,
			},
			map[string]interface{}{
				"probability":     sample.Probability,
				"logit":           sample.Logit,
				"replicate_index": sample.ReplicateIndex,
				"response_id":     sample.Provenance.ResponseID,
			},
			sample.Provenance.Timestamp,
		))
	}
	if len(points) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write sample points for run %s: %w", a.RunID, err)
	}
	return nil
}

// Close releases the underlying HTTP client.
func (s *SampleSink) Close() {
	s.client.Close()
}
