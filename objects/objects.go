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

// Package objects provides the concrete change-tracked objects bound to
// process ports: in-memory sequence and map variants, filesystem-backed
// variants, and a Redis-backed map.
//
// Every variant keeps two views: the underlay (state as last persisted) and
// the overlay (current state). Mutations update the overlay and append to an
// ordered change log; the overlay always equals the underlay with the log
// applied. Save promotes the overlay to the underlay, persists it, and clears
// the log.
//
// Values are arbitrary JSON-like data (scalars, []any, map[string]any).
// Container values are copied across the save boundary so the two views never
// share mutable state; scalar values are shared as-is.
package objects

import (
	"fmt"
	"reflect"
	"regexp"

	"dagflow"
)

// Every variant satisfies the runtime's Object contract.
var (
	_ dagflow.Object = (*Seq)(nil)
	_ dagflow.Object = (*Map)(nil)
	_ dagflow.Object = (*FSSeq)(nil)
	_ dagflow.Object = (*FSMap)(nil)
	_ dagflow.Object = (*RedisMap)(nil)
)

// Op identifies the kind of a change log entry.
type Op string

const (
	OpInsert Op = "insert"
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// Change is one entry of an object's change log. Sequence mutations use
// Index; map mutations use Key. Remove entries keep the removed value for
// debugging.
type Change struct {
	Op    Op
	Index int
	Key   string
	Value any
}

// keyPattern restricts map keys so that the filesystem variant can use the
// key directly as a filename.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q must match [A-Za-z0-9_]+", dagflow.ErrInvalidKey, key)
	}
	return nil
}

// copyValue deep-copies container values; scalars are returned as-is.
func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

func copySeq(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = copyValue(v)
	}
	return out
}

func copyMap(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = copyValue(v)
	}
	return out
}

// seqState is the two-view core shared by every sequence variant.
type seqState struct {
	underlay []any
	overlay  []any
	log      []Change
}

// reset installs a freshly loaded underlay and derives the overlay from it.
func (s *seqState) reset(underlay []any) {
	s.underlay = underlay
	s.overlay = copySeq(underlay)
	s.log = nil
}

// get returns the overlay value at idx, or the underlay value when old.
func (s *seqState) get(idx int, old bool) (any, error) {
	view := s.overlay
	if old {
		view = s.underlay
	}
	if idx < 0 || idx >= len(view) {
		return nil, fmt.Errorf("%w: %d (len %d)", dagflow.ErrInvalidIndex, idx, len(view))
	}
	return view[idx], nil
}

// insert places value at idx, shifting the tail. 0 <= idx <= len.
func (s *seqState) insert(idx int, value any) error {
	if idx < 0 || idx > len(s.overlay) {
		return fmt.Errorf("%w: insert at %d (len %d)", dagflow.ErrInvalidIndex, idx, len(s.overlay))
	}
	s.overlay = append(s.overlay, nil)
	copy(s.overlay[idx+1:], s.overlay[idx:])
	s.overlay[idx] = value
	s.log = append(s.log, Change{Op: OpInsert, Index: idx, Value: value})
	return nil
}

// set overwrites the value at idx. Setting an equal value is a no-op and does
// not touch the change log, keeping change detection tight.
func (s *seqState) set(idx int, value any) error {
	if idx < 0 || idx >= len(s.overlay) {
		return fmt.Errorf("%w: set at %d (len %d)", dagflow.ErrInvalidIndex, idx, len(s.overlay))
	}
	if reflect.DeepEqual(s.overlay[idx], value) {
		return nil
	}
	s.overlay[idx] = value
	s.log = append(s.log, Change{Op: OpSet, Index: idx, Value: value})
	return nil
}

// remove drops the value at idx, keeping indices dense.
func (s *seqState) remove(idx int) error {
	if idx < 0 || idx >= len(s.overlay) {
		return fmt.Errorf("%w: remove at %d (len %d)", dagflow.ErrInvalidIndex, idx, len(s.overlay))
	}
	removed := s.overlay[idx]
	s.overlay = append(s.overlay[:idx], s.overlay[idx+1:]...)
	s.log = append(s.log, Change{Op: OpRemove, Index: idx, Value: removed})
	return nil
}

func (s *seqState) changed() bool { return len(s.log) > 0 }

func (s *seqState) length() int { return len(s.overlay) }

// commit promotes the overlay to the underlay and clears the log. Callers
// persist the overlay first so a failed write leaves the log intact.
func (s *seqState) commit() {
	s.underlay = copySeq(s.overlay)
	s.log = nil
}

// mapState is the two-view core shared by every map variant.
type mapState struct {
	underlay map[string]any
	overlay  map[string]any
	log      []Change
}

func (m *mapState) reset(underlay map[string]any) {
	if underlay == nil {
		underlay = make(map[string]any)
	}
	m.underlay = underlay
	m.overlay = copyMap(underlay)
	m.log = nil
}

// get returns the overlay value for key, or the underlay value when old. The
// two views are independent: a key may exist in one and not the other.
func (m *mapState) get(key string, old bool) (any, error) {
	view := m.overlay
	if old {
		view = m.underlay
	}
	v, ok := view[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", dagflow.ErrKeyNotFound, key)
	}
	return v, nil
}

// set stores value under key, recording an overwrite even when the value is
// unchanged.
func (m *mapState) set(key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.overlay[key] = value
	m.log = append(m.log, Change{Op: OpSet, Key: key, Value: value})
	return nil
}

// remove drops key from the overlay. Removing an absent key is a no-op.
func (m *mapState) remove(key string) {
	v, ok := m.overlay[key]
	if !ok {
		return
	}
	delete(m.overlay, key)
	m.log = append(m.log, Change{Op: OpRemove, Key: key, Value: v})
}

func (m *mapState) changed() bool { return len(m.log) > 0 }

func (m *mapState) length() int { return len(m.overlay) }

// removedKeys lists keys present in the underlay but gone from the overlay.
// Backends use it to defer physical deletion until save.
func (m *mapState) removedKeys() []string {
	var keys []string
	for k := range m.underlay {
		if _, ok := m.overlay[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// dirtyKeys lists overlay keys that are new or differ from the underlay.
func (m *mapState) dirtyKeys() []string {
	var keys []string
	for k, v := range m.overlay {
		if old, ok := m.underlay[k]; !ok || !reflect.DeepEqual(old, v) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m *mapState) commit() {
	m.underlay = copyMap(m.overlay)
	m.log = nil
}
