// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// assessor runs the claim-assessment HTTP service. Configuration is
// environment-driven so the binary drops into a container with no
// flags.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/AleutianAI/AleutianVeracity/pkg/logging"
	"github.com/AleutianAI/AleutianVeracity/pkg/secrets"
	"github.com/AleutianAI/AleutianVeracity/services/assessor"
	"github.com/AleutianAI/AleutianVeracity/services/assessor/observability"
	"github.com/AleutianAI/AleutianVeracity/services/belief/plan"
	"github.com/AleutianAI/AleutianVeracity/services/llm"
	"github.com/AleutianAI/AleutianVeracity/services/storage/badger"
	"github.com/AleutianAI/AleutianVeracity/services/storage/influx"
	"github.com/AleutianAI/AleutianVeracity/services/templates"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// initTracer wires the OpenTelemetry trace provider. Traces go to
// stdout when ASSESSOR_TRACE_STDOUT is set; otherwise spans are
// created but not exported, which keeps instrumentation free in
// deployments without a collector.
func initTracer() (func(context.Context), error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String("assessor-service")))
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	}
	var exporter *stdouttrace.Exporter
	if os.Getenv("ASSESSOR_TRACE_STDOUT") != "" {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			log.Printf("failed to shutdown trace provider: %v", err)
		}
	}, nil
}

func main() {
	port := envOr("ASSESSOR_PORT", "12310")

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(envOr("LOG_LEVEL", "info")),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "assessor",
		JSON:    true,
	})
	defer logger.Close()

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup tracer: %v", err)
	}
	defer cleanup(context.Background())

	keys := secrets.NewKeyring()
	if err := keys.Load("openai", "OPENAI_API_KEY", "/run/secrets/openai_api_key"); err != nil {
		logger.Warn("OpenAI key not loaded, openai provider disabled", "error", err)
	}
	if err := keys.Load("anthropic", "ANTHROPIC_API_KEY", "/run/secrets/anthropic_api_key"); err != nil {
		logger.Warn("Anthropic key not loaded, anthropic provider disabled", "error", err)
	}

	registry := llm.NewRegistry(llm.RegistryConfig{
		Keys:          keys,
		OllamaBaseURL: os.Getenv("OLLAMA_BASE_URL"),
	})

	stagePlan := plan.Default()
	if path := os.Getenv("ASSESSOR_PLAN_PATH"); path != "" {
		stagePlan, err = plan.Load(path)
		if err != nil {
			log.Fatalf("failed to load stage plan: %v", err)
		}
		logger.Info("loaded stage plan", "path", path, "version", stagePlan.Version)
	}

	storeCfg := badger.DefaultConfig()
	storeCfg.Path = envOr("ASSESSOR_DB_PATH", "/var/lib/veracity/assessments")
	storeCfg.Logger = logger.Slog()
	store, err := badger.NewStore(storeCfg)
	if err != nil {
		log.Fatalf("failed to open assessment store: %v", err)
	}
	defer store.Close()

	var exporter assessor.SampleExporter
	if influxURL := os.Getenv("INFLUXDB_URL"); influxURL != "" {
		sink, err := influx.NewSampleSink(influx.SinkConfig{
			URL:    influxURL,
			Token:  os.Getenv("INFLUXDB_TOKEN"),
			Org:    envOr("INFLUXDB_ORG", "aleutian"),
			Bucket: envOr("INFLUXDB_BUCKET", "veracity"),
		})
		if err != nil {
			log.Fatalf("failed to build influx sink: %v", err)
		}
		defer sink.Close()
		exporter = sink
		logger.Info("sample export enabled", "url", influxURL)
	}

	runTimeout := 10 * time.Minute
	if raw := os.Getenv("ASSESSOR_RUN_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid ASSESSOR_RUN_TIMEOUT %q: %v", raw, err)
		}
		runTimeout = parsed
	}

	server := assessor.NewServer(assessor.Deps{
		Registry:   registry,
		Templates:  templates.Default(),
		Plan:       stagePlan,
		Store:      store,
		Exporter:   exporter,
		Metrics:    observability.InitMetrics(),
		Logger:     logger,
		RunTimeout: runTimeout,
	})

	logger.Info("assessor listening", "port", port, "plan_version", stagePlan.Version)
	if err := server.Router().Run(":" + port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
