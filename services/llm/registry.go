// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianVeracity/pkg/secrets"
)

// Provider identifiers accepted by the registry.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// RegistryConfig carries per-backend settings the factories need.
type RegistryConfig struct {
	Keys          *secrets.Keyring
	OllamaBaseURL string
}

type factory func(cfg RegistryConfig, model string) (LLMClient, error)

var factories = map[string]factory{
	ProviderOpenAI: func(cfg RegistryConfig, model string) (LLMClient, error) {
		return NewOpenAIClient(cfg.Keys, model)
	},
	ProviderAnthropic: func(cfg RegistryConfig, model string) (LLMClient, error) {
		return NewAnthropicClient(cfg.Keys, model)
	},
	ProviderOllama: func(cfg RegistryConfig, model string) (LLMClient, error) {
		return NewOllamaClient(cfg.OllamaBaseURL, model)
	},
}

// Registry constructs backend clients on demand and memoizes them per
// (provider, model) pair, so repeated assessments against the same
// backend share one HTTP client.
//
// Thread Safety: safe for concurrent use.
type Registry struct {
	cfg RegistryConfig

	mu      sync.Mutex
	clients map[string]LLMClient
}

func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{cfg: cfg, clients: make(map[string]LLMClient)}
}

// Client returns the memoized client for provider and model, building
// it on first use.
func (r *Registry) Client(provider, model string) (LLMClient, error) {
	build, ok := factories[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %v)", provider, Providers())
	}

	key := provider + "/" + model
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[key]; ok {
		return c, nil
	}
	c, err := build(r.cfg, model)
	if err != nil {
		return nil, fmt.Errorf("build %s client: %w", provider, err)
	}
	r.clients[key] = c
	return c, nil
}

// Providers lists the registered provider identifiers, sorted.
func Providers() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
