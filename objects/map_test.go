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
	"errors"
	"testing"

	"dagflow"
)

// TestMap_TwoViewsIndependent checks that key presence is evaluated per view:
// a key set since the last save exists in the overlay only, a key removed
// since the last save exists in the underlay only.
func TestMap_TwoViewsIndependent(t *testing.T) {
	m := NewMap("conf")
	if err := m.Set("kept", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set("doomed", "v2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := m.Set("fresh", "v3"); err != nil {
		t.Fatalf("set: %v", err)
	}
	m.Remove("doomed")

	if _, err := m.Get("fresh", false); err != nil {
		t.Fatalf("overlay must hold fresh key: %v", err)
	}
	if _, err := m.Get("fresh", true); !errors.Is(err, dagflow.ErrKeyNotFound) {
		t.Fatalf("underlay must not hold fresh key, got %v", err)
	}
	if _, err := m.Get("doomed", false); !errors.Is(err, dagflow.ErrKeyNotFound) {
		t.Fatalf("overlay must not hold removed key, got %v", err)
	}
	if v, err := m.Get("doomed", true); err != nil || v != "v2" {
		t.Fatalf("underlay get removed key = %v, %v; want v2", v, err)
	}
}

// TestMap_RemoveAbsentNoOp removes a key that was never set and expects no
// change log entry.
func TestMap_RemoveAbsentNoOp(t *testing.T) {
	m := NewMap("conf")
	m.Remove("ghost")
	if m.Changed() {
		t.Fatalf("removing an absent key must not mark the object changed")
	}
}

// TestMap_SetRecordsOverwrite verifies that set always records, including an
// overwrite with an equal value.
func TestMap_SetRecordsOverwrite(t *testing.T) {
	m := NewMap("conf")
	if err := m.Set("k", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.Set("k", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !m.Changed() {
		t.Fatalf("map set must record the overwrite")
	}
}

// TestMap_KeyValidation rejects keys outside [A-Za-z0-9_]+.
func TestMap_KeyValidation(t *testing.T) {
	m := NewMap("conf")
	for _, key := range []string{"key-1", "key 1", "key.json", "", "key!"} {
		if err := m.Set(key, "v"); !errors.Is(err, dagflow.ErrInvalidKey) {
			t.Errorf("Set(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
	if err := m.Set("Valid_Key_1", "ok"); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
}

// TestMap_Accessors covers Has, Keys and Len against the overlay.
func TestMap_Accessors(t *testing.T) {
	m := NewMap("conf")
	if err := m.Set("a", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set("b", 2); err != nil {
		t.Fatalf("set: %v", err)
	}
	m.Remove("a")

	if m.Has("a") || !m.Has("b") {
		t.Fatalf("Has sees the overlay: a removed, b present")
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	keys := m.Keys()
	if len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("Keys = %v, want [b]", keys)
	}
}
