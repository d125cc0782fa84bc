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
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("aleutian.veracity.belief")

// Provider is the capability interface over language-model backends.
// The aggregation core never learns which concrete adapter produced a
// draw; provenance passes through untouched.
type Provider interface {
	// Sample elicits one probability reading for the rendered prompt.
	// Implementations return SchemaViolationError for responses that
	// cannot be coerced into the expected shape.
	Sample(ctx context.Context, prompt string) (Draw, error)
}

// PromptRenderer supplies canonical prompt text per template. The
// core passes the text straight to the provider and otherwise only
// handles template content hashes.
type PromptRenderer interface {
	Render(templateID, claim string) (string, error)
}

// CollectorHooks lets callers observe provider traffic without the
// core depending on a metrics library. All fields are optional.
type CollectorHooks struct {
	// OnCall fires after every provider call with its duration and
	// whether it yielded an accepted sample.
	OnCall func(templateID string, elapsed time.Duration, accepted bool)

	// OnDiscard fires for every discarded response with the discard
	// reason ("schema_violation", "numeric_domain", "provider_error",
	// "canceled").
	OnDiscard func(templateID, reason string)
}

func (h CollectorHooks) call(templateID string, elapsed time.Duration, accepted bool) {
	if h.OnCall != nil {
		h.OnCall(templateID, elapsed, accepted)
	}
}

func (h CollectorHooks) discard(templateID, reason string) {
	if h.OnDiscard != nil {
		h.OnDiscard(templateID, reason)
	}
}

// collect issues provider calls for every delta cell of the stage and
// fills the cache with accepted samples. Calls run concurrently up to
// the worker limit, optionally throttled by the shared rate limiter.
//
// collect is the aggregation barrier's other half: it returns only
// when every cell has been resolved (accepted, discarded, or dropped
// by cancellation), so aggregation never observes an in-flight stage.
// Invalid responses are discarded with a warning, never retried here;
// the cell simply stays empty and is eligible again next stage.
func (c *Controller) collect(ctx context.Context, cells []Cell) error {
	ctx, span := tracer.Start(ctx, "belief.collect")
	span.SetAttributes(attribute.Int("cells", len(cells)))
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, cell := range cells {
		g.Go(func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(gctx); err != nil {
					return err
				}
			}

			prompt, err := c.renderer.Render(cell.TemplateID, c.inputs.Claim)
			if err != nil {
				// A template that cannot render is a configuration
				// defect, not decode noise. Abort the stage.
				return err
			}

			start := time.Now()
			draw, err := c.provider.Sample(gctx, prompt)
			elapsed := time.Since(start)

			if err != nil {
				c.hooks.call(cell.TemplateID, elapsed, false)
				switch {
				case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
					if gctx.Err() != nil {
						return err
					}
					// Per-call timeout: drop the sample, keep going.
					c.logger.Warn("provider call timed out, sample dropped",
						"template_id", cell.TemplateID, "replicate", cell.ReplicateIndex)
					c.hooks.discard(cell.TemplateID, "canceled")
					return nil
				default:
					var schemaErr *SchemaViolationError
					if errors.As(err, &schemaErr) {
						c.logger.Warn("provider response discarded",
							"template_id", cell.TemplateID, "reason", schemaErr.Reason)
						c.hooks.discard(cell.TemplateID, "schema_violation")
						return nil
					}
					c.logger.Warn("provider call failed, sample dropped",
						"template_id", cell.TemplateID, "error", err)
					c.hooks.discard(cell.TemplateID, "provider_error")
					return nil
				}
			}

			p, err := CoerceProbability(draw.Probability)
			if err != nil {
				c.logger.Warn("probability outside domain, sample discarded",
					"template_id", cell.TemplateID, "probability", draw.Probability)
				c.hooks.call(cell.TemplateID, elapsed, false)
				c.hooks.discard(cell.TemplateID, "numeric_domain")
				return nil
			}

			c.hooks.call(cell.TemplateID, elapsed, true)
			c.cache.Put(Sample{
				TemplateID:     cell.TemplateID,
				ReplicateIndex: cell.ReplicateIndex,
				Probability:    p,
				Logit:          Logit(p),
				Provenance:     draw.Provenance,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collection aborted")
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Rate limiting defaults for provider traffic.
const (
	defaultWorkers = 4
	defaultRate    = rate.Limit(8) // calls per second across all workers
	defaultBurst   = 4
)
