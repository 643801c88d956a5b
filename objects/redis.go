// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package objects

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisHashClient abstracts the minimal surface needed from a Redis client.
// *redis.Client (and anything else implementing redis.Cmdable) satisfies it;
// tests may substitute an in-memory fake.
type RedisHashClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisHashKey returns the hash key under which a map object's entries live.
func RedisHashKey(name string) string { return fmt.Sprintf("dagflow:object:%s", name) }

// RedisMap is a map object persisted to a single Redis hash: one field per
// key, values JSON-encoded. Like the filesystem variant, key removals are
// deferred until Save.
type RedisMap struct {
	name    string
	client  RedisHashClient
	timeout time.Duration
	mapState
}

// NewRedisMap returns a map object backed by the given client. timeout bounds
// each Redis round trip; 0 uses a 5s default.
func NewRedisMap(name string, client RedisHashClient, timeout time.Duration) *RedisMap {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	m := &RedisMap{name: name, client: client, timeout: timeout}
	m.reset(nil)
	return m
}

// Name returns the object name.
func (m *RedisMap) Name() string { return m.name }

func (m *RedisMap) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

// OnAddToPipeline does nothing; the hash is created lazily on first Save.
func (m *RedisMap) OnAddToPipeline() error { return nil }

// OnRemoveFromPipeline deletes the backing hash.
func (m *RedisMap) OnRemoveFromPipeline() error {
	ctx, cancel := m.opCtx()
	defer cancel()
	if err := m.client.Del(ctx, RedisHashKey(m.name)).Err(); err != nil {
		return fmt.Errorf("delete hash for map %q: %w", m.name, err)
	}
	return nil
}

// OnPipelineStart loads the underlay from the hash. The loaded underlay is
// authoritative until the next Save.
func (m *RedisMap) OnPipelineStart() error {
	ctx, cancel := m.opCtx()
	defer cancel()
	fields, err := m.client.HGetAll(ctx, RedisHashKey(m.name)).Result()
	if err != nil {
		return fmt.Errorf("load map %q: %w", m.name, err)
	}
	underlay := make(map[string]any, len(fields))
	for key, raw := range fields {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return fmt.Errorf("decode key %q of map %q: %w", key, m.name, err)
		}
		underlay[key] = v
	}
	m.reset(underlay)
	return nil
}

func (m *RedisMap) OnPipelineEnd() error { return nil }

// Save writes new and changed fields with HSET, deletes removed fields with
// HDEL, then promotes the overlay and clears the log.
func (m *RedisMap) Save() error {
	ctx, cancel := m.opCtx()
	defer cancel()
	hashKey := RedisHashKey(m.name)

	dirty := m.dirtyKeys()
	if len(dirty) > 0 {
		pairs := make([]interface{}, 0, 2*len(dirty))
		for _, key := range dirty {
			data, err := json.Marshal(m.overlay[key])
			if err != nil {
				return fmt.Errorf("encode key %q of map %q: %w", key, m.name, err)
			}
			pairs = append(pairs, key, string(data))
		}
		if err := m.client.HSet(ctx, hashKey, pairs...).Err(); err != nil {
			return fmt.Errorf("write map %q: %w", m.name, err)
		}
	}
	if removed := m.removedKeys(); len(removed) > 0 {
		if err := m.client.HDel(ctx, hashKey, removed...).Err(); err != nil {
			return fmt.Errorf("delete keys of map %q: %w", m.name, err)
		}
	}
	m.commit()
	return nil
}

// Purge resets both views to empty and deletes the backing hash.
func (m *RedisMap) Purge() error {
	ctx, cancel := m.opCtx()
	defer cancel()
	if err := m.client.Del(ctx, RedisHashKey(m.name)).Err(); err != nil {
		return fmt.Errorf("purge map %q: %w", m.name, err)
	}
	m.reset(nil)
	return nil
}

// Changed reports whether the change log is non-empty.
func (m *RedisMap) Changed() bool { return m.changed() }

// Get returns the overlay value for key, or the underlay value when old is
// true.
func (m *RedisMap) Get(key string, old bool) (any, error) { return m.get(key, old) }

// Set stores value under key.
func (m *RedisMap) Set(key string, value any) error { return m.set(key, value) }

// Remove drops key from the overlay; the hash field is deleted at Save.
func (m *RedisMap) Remove(key string) { m.remove(key) }

// Has reports whether key exists in the overlay.
func (m *RedisMap) Has(key string) bool {
	_, ok := m.overlay[key]
	return ok
}

// Keys returns the overlay keys in unspecified order.
func (m *RedisMap) Keys() []string {
	keys := make([]string, 0, len(m.overlay))
	for k := range m.overlay {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the overlay size.
func (m *RedisMap) Len() int { return m.length() }
