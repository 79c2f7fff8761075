// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ai talks to the language model that writes email drafts. Each
// vendor implements Provider; the Registry picks the configured one and
// DraftGenerator turns its answers into stored drafts.
package ai

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Provider sends one completion request carrying a single user message and
// returns the model's text.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)

	// Name returns the provider identifier (e.g., "openai", "claude").
	Name() string
}

// ProviderConfig holds the credentials and fixed sampling settings for a
// single provider. Model and temperature are configuration, never request
// parameters.
type ProviderConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
}

// requestTimeout bounds a single completion call.
const requestTimeout = 120 * time.Second

// Registry holds the providers that have credentials and selects the
// active one by name. All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	active    string
}

// NewRegistry creates a registry and initialises a provider for every config
// that has a non-empty API key. Unknown names are ignored.
func NewRegistry(active string, configs map[string]ProviderConfig) *Registry {
	r := &Registry{
		providers: make(map[string]Provider),
		active:    active,
	}

	for name, cfg := range configs {
		if cfg.APIKey == "" {
			continue
		}
		switch name {
		case "openai":
			r.Register(name, newOpenAI(cfg))
		case "claude":
			r.Register(name, newClaude(cfg))
		}
	}

	return r
}

// Generate calls the active provider.
func (r *Registry) Generate(ctx context.Context, prompt string) (string, error) {
	p, err := r.Active()
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, prompt)
}

// Active returns the currently active provider.
func (r *Registry) Active() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[r.active]
	if !ok {
		return nil, fmt.Errorf("ai: no provider configured for %q", r.active)
	}
	return p, nil
}

// SetActive switches the active provider. Returns an error if the named
// provider has no API key configured.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("ai: provider %q is not available (no API key?)", name)
	}
	r.active = name
	return nil
}

// ActiveName returns the name of the currently active provider.
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.active
}

// Available returns the sorted names of all providers with credentials.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds or replaces a provider.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// HasProvider checks whether a named provider is configured.
func (r *Registry) HasProvider(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.providers[name]
	return ok
}

// Fallback makes the first available provider active when the configured
// one has no credentials. It reports the active name and whether it had to
// switch; with nothing available the registry is left unchanged.
func (r *Registry) Fallback() (string, bool) {
	active := r.ActiveName()
	if r.HasProvider(active) {
		return active, false
	}
	for _, name := range r.Available() {
		if r.SetActive(name) == nil {
			return name, true
		}
	}
	return active, false
}
