// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// notes.go keeps the ad-hoc instructions an operator has added while
// regenerating a draft, one Valkey list per theme, so they survive between
// API requests. The lifecycle controller never reads them; the API layer
// loads them and passes them in explicitly.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"themedesk/internal/prompt"
)

const (
	// noteKeyPrefix is the Valkey key prefix for note lists.
	noteKeyPrefix = "notes:"

	// DefaultNoteTTL outlives one monthly cycle.
	DefaultNoteTTL = 40 * 24 * time.Hour
)

// NoteStore manages regeneration notes in Valkey.
type NoteStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewNoteStore creates a note store backed by the given Valkey client.
func NewNoteStore(client *redis.Client, ttl time.Duration) *NoteStore {
	if ttl == 0 {
		ttl = DefaultNoteTTL
	}
	return &NoteStore{client: client, ttl: ttl}
}

// Append adds a note for a theme and returns every note collected so far,
// oldest first. Blank notes are not stored.
func (ns *NoteStore) Append(ctx context.Context, themeID, note string) (prompt.Instructions, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return ns.Load(ctx, themeID)
	}

	key := NoteKey(themeID)
	var lr *redis.StringSliceCmd
	_, err := ns.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, note)
		pipe.Expire(ctx, key, ns.ttl)
		lr = pipe.LRange(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append note: %w", err)
	}

	slog.Debug("regeneration note added", "theme_id", themeID, "notes", len(lr.Val()))
	return prompt.Instructions(lr.Val()), nil
}

// Load returns the notes for a theme, oldest first. A theme without notes
// yields an empty list.
func (ns *NoteStore) Load(ctx context.Context, themeID string) (prompt.Instructions, error) {
	vals, err := ns.client.LRange(ctx, NoteKey(themeID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	return prompt.Instructions(vals), nil
}

// Clear forgets a theme's notes.
func (ns *NoteStore) Clear(ctx context.Context, themeID string) error {
	if err := ns.client.Del(ctx, NoteKey(themeID)).Err(); err != nil {
		return fmt.Errorf("clear notes: %w", err)
	}
	slog.Debug("regeneration notes cleared", "theme_id", themeID)
	return nil
}

// NoteKey returns the Valkey key for a theme's notes.
func NoteKey(themeID string) string {
	return noteKeyPrefix + themeID
}
