// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// mockProvider is a test double implementing the Provider interface.
// It records calls and returns configurable responses.
type mockProvider struct {
	name       string
	response   string
	err        error
	callCount  int
	lastPrompt string
	mu         sync.Mutex
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastPrompt = prompt
	return m.response, m.err
}

// ---------- Registry.Generate ----------

func TestRegistryGenerate(t *testing.T) {
	t.Run("delegates to active provider", func(t *testing.T) {
		mock := &mockProvider{name: "test", response: "Hello from mock"}

		reg := &Registry{
			providers: map[string]Provider{"test": mock},
			active:    "test",
		}

		result, err := reg.Generate(context.Background(), "write it")
		if err != nil {
			t.Fatalf("Generate: unexpected error: %v", err)
		}
		if result != "Hello from mock" {
			t.Errorf("result: got %q, want %q", result, "Hello from mock")
		}

		mock.mu.Lock()
		defer mock.mu.Unlock()
		if mock.callCount != 1 {
			t.Errorf("callCount: got %d, want 1", mock.callCount)
		}
		if mock.lastPrompt != "write it" {
			t.Errorf("prompt: got %q", mock.lastPrompt)
		}
	})

	t.Run("propagates provider error", func(t *testing.T) {
		mock := &mockProvider{name: "test", err: fmt.Errorf("api failure")}

		reg := &Registry{
			providers: map[string]Provider{"test": mock},
			active:    "test",
		}

		_, err := reg.Generate(context.Background(), "p")
		if err == nil || err.Error() != "api failure" {
			t.Fatalf("error: got %v, want api failure", err)
		}
	})

	t.Run("error when active name is not registered", func(t *testing.T) {
		reg := &Registry{
			providers: map[string]Provider{"openai": &mockProvider{name: "openai"}},
			active:    "claude",
		}

		if _, err := reg.Generate(context.Background(), "p"); err == nil {
			t.Fatal("expected error for unregistered active provider")
		}
	})
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry("openai", map[string]ProviderConfig{
		"openai":  {APIKey: "key1", Model: "gpt-4o"},
		"claude":  {APIKey: ""},
		"unknown": {APIKey: "key3"},
	})

	if !reg.HasProvider("openai") {
		t.Error("openai should be registered")
	}
	if reg.HasProvider("claude") {
		t.Error("claude has no key and should be skipped")
	}
	if reg.HasProvider("unknown") {
		t.Error("unknown provider names should be ignored")
	}
	if got := reg.Available(); len(got) != 1 || got[0] != "openai" {
		t.Errorf("Available: got %v", got)
	}
}

func TestRegistrySetActive(t *testing.T) {
	reg := &Registry{
		providers: map[string]Provider{
			"a": &mockProvider{name: "a", response: "from a"},
			"b": &mockProvider{name: "b", response: "from b"},
		},
		active: "a",
	}

	if err := reg.SetActive("b"); err != nil {
		t.Fatalf("SetActive(b): %v", err)
	}
	got, _ := reg.Generate(context.Background(), "p")
	if got != "from b" {
		t.Errorf("result after switch: got %q", got)
	}

	if err := reg.SetActive("missing"); err == nil {
		t.Error("expected error for provider without key")
	}
	if reg.ActiveName() != "b" {
		t.Errorf("active changed on failed SetActive: %q", reg.ActiveName())
	}
}

func TestRegistryFallback(t *testing.T) {
	t.Run("keeps configured provider", func(t *testing.T) {
		reg := NewRegistry("claude", map[string]ProviderConfig{
			"openai": {APIKey: "key1"},
			"claude": {APIKey: "key2"},
		})
		name, switched := reg.Fallback()
		if switched || name != "claude" {
			t.Errorf("Fallback: got %q switched=%v, want claude unchanged", name, switched)
		}
	})

	t.Run("switches when configured provider has no key", func(t *testing.T) {
		reg := NewRegistry("claude", map[string]ProviderConfig{
			"openai": {APIKey: "key1"},
			"claude": {APIKey: ""},
		})
		name, switched := reg.Fallback()
		if !switched || name != "openai" {
			t.Fatalf("Fallback: got %q switched=%v, want openai", name, switched)
		}
		if reg.ActiveName() != "openai" {
			t.Errorf("ActiveName: got %q", reg.ActiveName())
		}
		if _, err := reg.Active(); err != nil {
			t.Errorf("Active after fallback: %v", err)
		}
	})

	t.Run("nothing available", func(t *testing.T) {
		reg := NewRegistry("openai", nil)
		name, switched := reg.Fallback()
		if switched || name != "openai" {
			t.Errorf("Fallback: got %q switched=%v", name, switched)
		}
		if _, err := reg.Generate(context.Background(), "p"); err == nil {
			t.Error("expected error with no providers")
		}
	})
}

func TestRegistryAvailableSorted(t *testing.T) {
	reg := &Registry{providers: map[string]Provider{}}
	reg.Register("openai", &mockProvider{name: "openai"})
	reg.Register("claude", &mockProvider{name: "claude"})

	got := reg.Available()
	if len(got) != 2 || got[0] != "claude" || got[1] != "openai" {
		t.Errorf("Available: got %v", got)
	}
}

func TestRegistryConcurrency(t *testing.T) {
	reg := &Registry{
		providers: map[string]Provider{
			"a": &mockProvider{name: "a", response: "from a"},
			"b": &mockProvider{name: "b", response: "from b"},
		},
		active: "a",
	}

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines * 2)

	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			name := "a"
			if i%2 == 0 {
				name = "b"
			}
			reg.SetActive(name)
		}(i)
		go func() {
			defer wg.Done()
			if _, err := reg.Generate(context.Background(), "p"); err != nil {
				t.Errorf("Generate: %v", err)
			}
		}()
	}
	wg.Wait()
}
