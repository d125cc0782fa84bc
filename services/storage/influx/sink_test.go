// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package influx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianVeracity/services/belief"
)

func TestWriteAssessmentEmitsLineProtocol(t *testing.T) {
	var mu sync.Mutex
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/write") {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		body = string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink, err := NewSampleSink(SinkConfig{
		URL:    server.URL,
		Token:  "test-token",
		Org:    "aleutian",
		Bucket: "veracity",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	a := &belief.Assessment{
		RunID:   "run-42",
		ModelID: "test-model",
		Samples: []belief.Sample{
			{
				TemplateID:     "direct-v1",
				ReplicateIndex: 1,
				Probability:    0.8,
				Logit:          1.386,
				Provenance: belief.Provenance{
					ResponseID: "resp-1",
					Timestamp:  time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
				},
			},
			{
				TemplateID:     "betting-v1",
				ReplicateIndex: 0,
				Probability:    0.6,
				Logit:          0.405,
				Provenance: belief.Provenance{
					ResponseID: "resp-2",
					Timestamp:  time.Date(2025, 8, 1, 0, 1, 0, 0, time.UTC),
				},
			},
		},
	}
	if err := sink.WriteAssessment(context.Background(), a); err != nil {
		t.Fatalf("WriteAssessment: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(body, "belief_samples") {
		t.Errorf("body missing measurement: %q", body)
	}
	if !strings.Contains(body, "run_id=run-42") {
		t.Errorf("body missing run tag: %q", body)
	}
	if !strings.Contains(body, "template_id=direct-v1") || !strings.Contains(body, "template_id=betting-v1") {
		t.Errorf("body missing template tags: %q", body)
	}
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 2 {
		t.Errorf("got %d points, want 2: %q", len(lines), body)
	}
}

func TestWriteAssessmentEmptySamples(t *testing.T) {
	sink, err := NewSampleSink(SinkConfig{
		URL:    "http://localhost:9999",
		Org:    "o",
		Bucket: "b",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	// No samples means no write attempt, so the dead endpoint is fine.
	if err := sink.WriteAssessment(context.Background(), &belief.Assessment{RunID: "r"}); err != nil {
		t.Fatalf("empty assessment should be a no-op, got %v", err)
	}
	if err := sink.WriteAssessment(context.Background(), nil); err == nil {
		t.Error("nil assessment should error")
	}
}

func TestNewSampleSinkValidation(t *testing.T) {
	if _, err := NewSampleSink(SinkConfig{Org: "o", Bucket: "b"}); err == nil {
		t.Error("missing URL should error")
	}
	if _, err := NewSampleSink(SinkConfig{URL: "http://x", Bucket: "b"}); err == nil {
		t.Error("missing org should error")
	}
	if _, err := NewSampleSink(SinkConfig{URL: "http://x", Org: "o"}); err == nil {
		t.Error("missing bucket should error")
	}
}
