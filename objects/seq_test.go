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
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"dagflow"
)

// TestFSSeq_RoundTrip mutates a filesystem-backed sequence, saves it, and
// reloads through a fresh instance: the new underlay must match the saved
// overlay and report no pending changes.
func TestFSSeq_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := NewFSSeq("nums", dir)
	if err := s.OnAddToPipeline(); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.OnPipelineStart(); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, v := range []any{10, 20, 5} {
		if err := s.Push(v); err != nil {
			t.Fatalf("push %v: %v", v, err)
		}
	}
	if err := s.Remove(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Set(0, 99); err != nil {
		t.Fatalf("set: %v", err)
	}

	if got := s.Values(); !reflect.DeepEqual(got, []any{99, 5}) {
		t.Fatalf("overlay = %v, want [99 5]", got)
	}
	if len(s.log) != 5 {
		t.Fatalf("change log length = %d, want 5", len(s.log))
	}
	if !s.Changed() {
		t.Fatalf("expected Changed before save")
	}

	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if s.Changed() {
		t.Fatalf("expected no pending changes after save")
	}

	// Reload via a fresh instance; JSON decoding yields float64 numbers.
	reloaded := NewFSSeq("nums", dir)
	if err := reloaded.OnPipelineStart(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.Values(); !reflect.DeepEqual(got, []any{float64(99), float64(5)}) {
		t.Fatalf("reloaded underlay = %v, want [99 5]", got)
	}
	if reloaded.Changed() {
		t.Fatalf("freshly loaded object must not report changes")
	}
}

// TestSeq_SetNoOp verifies that setting an index to its current value does
// not append to the change log.
func TestSeq_SetNoOp(t *testing.T) {
	s := NewSeq("nums")
	if err := s.Push(7); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.Set(0, 7); err != nil {
		t.Fatalf("set: %v", err)
	}
	if s.Changed() {
		t.Fatalf("no-op set must not mark the object changed")
	}
	if err := s.Set(0, 8); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !s.Changed() {
		t.Fatalf("real set must mark the object changed")
	}
}

// TestSeq_TwoViews checks that get(old=true) reads the underlay while the
// overlay reflects unsaved mutations.
func TestSeq_TwoViews(t *testing.T) {
	s := NewSeq("nums")
	if err := s.Push(1); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Set(0, 2); err != nil {
		t.Fatalf("set: %v", err)
	}

	if v, err := s.Get(0, false); err != nil || v != 2 {
		t.Fatalf("overlay get = %v, %v; want 2", v, err)
	}
	if v, err := s.Get(0, true); err != nil || v != 1 {
		t.Fatalf("underlay get = %v, %v; want 1", v, err)
	}
}

// TestSeq_InvalidIndex exercises the index bounds of every mutation.
func TestSeq_InvalidIndex(t *testing.T) {
	s := NewSeq("nums")
	if err := s.Push(1); err != nil {
		t.Fatalf("push: %v", err)
	}

	cases := []struct {
		name string
		err  error
	}{
		{"insert negative", s.Insert(-1, 0)},
		{"insert past end", s.Insert(3, 0)},
		{"set at len", s.Set(1, 0)},
		{"remove at len", s.Remove(1)},
		{"get past end", func() error { _, err := s.Get(5, false); return err }()},
	}
	for _, c := range cases {
		if !errors.Is(c.err, dagflow.ErrInvalidIndex) {
			t.Errorf("%s: got %v, want ErrInvalidIndex", c.name, c.err)
		}
	}

	// insert at len is the push position and must succeed
	if err := s.Insert(1, 2); err != nil {
		t.Fatalf("insert at len: %v", err)
	}
}

// TestFSSeq_SaveIdempotent saves twice without intervening mutations and
// expects identical persisted bytes and an empty log.
func TestFSSeq_SaveIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewFSSeq("nums", dir)
	if err := s.OnAddToPipeline(); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.OnPipelineStart(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Push(3); err != nil {
		t.Fatalf("push: %v", err)
	}

	if err := s.Save(); err != nil {
		t.Fatalf("first save: %v", err)
	}
	first, err := os.ReadFile(filepath.Join(dir, seqDataFile))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}

	if err := s.Save(); err != nil {
		t.Fatalf("second save: %v", err)
	}
	second, err := os.ReadFile(filepath.Join(dir, seqDataFile))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("second save changed the blob: %q vs %q", first, second)
	}
	if s.Changed() {
		t.Fatalf("log must stay empty after idempotent save")
	}
}

// TestFSSeq_Purge expects both views emptied and the blob removed.
func TestFSSeq_Purge(t *testing.T) {
	dir := t.TempDir()
	s := NewFSSeq("nums", dir)
	if err := s.OnAddToPipeline(); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.OnPipelineStart(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Push(1); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.Purge(); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if s.Len() != 0 || s.Changed() {
		t.Fatalf("purged object must be empty and unchanged")
	}
	if _, err := os.Stat(filepath.Join(dir, seqDataFile)); !os.IsNotExist(err) {
		t.Fatalf("blob must be gone after purge, stat err = %v", err)
	}
}

// TestFSSeq_UnderlayCached verifies that external modifications to the blob
// after load are not observed mid-run.
func TestFSSeq_UnderlayCached(t *testing.T) {
	dir := t.TempDir()
	s := NewFSSeq("nums", dir)
	if err := s.OnAddToPipeline(); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.OnPipelineStart(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Push(1); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Clobber the blob behind the object's back.
	if err := os.WriteFile(filepath.Join(dir, seqDataFile), []byte(`[42]`), 0o644); err != nil {
		t.Fatalf("clobber: %v", err)
	}

	if v, err := s.Get(0, true); err != nil || v != 1 {
		t.Fatalf("underlay get = %v, %v; want cached 1", v, err)
	}
	if v, err := s.Get(0, false); err != nil || v != 1 {
		t.Fatalf("overlay get = %v, %v; want cached 1", v, err)
	}
}
