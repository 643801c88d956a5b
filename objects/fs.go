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

// Filesystem-backed object variants. Each object owns one directory: the
// sequence variant persists its full underlay as a single JSON blob, the map
// variant keeps one JSON file per key (filename = key, which is why keys are
// restricted to [A-Za-z0-9_]+). Every file is written through a temporary
// file and rename, so a crash mid-save never leaves a torn file: the sequence
// blob holds either the previous underlay or the new one. The map variant
// writes its key files one at a time, so a crash part-way through a save can
// leave some keys at their new value and others at their old one.
package objects

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// seqDataFile is the blob filename inside an FSSeq directory.
const seqDataFile = "data.json"

// FSSeq is a sequence object persisted as a single JSON blob in its own
// directory.
type FSSeq struct {
	name string
	dir  string
	seqState
}

// NewFSSeq returns a sequence object backed by dir. The directory is created
// by OnAddToPipeline and loaded by OnPipelineStart.
func NewFSSeq(name, dir string) *FSSeq {
	s := &FSSeq{name: name, dir: dir}
	s.reset(nil)
	return s
}

// Name returns the object name.
func (s *FSSeq) Name() string { return s.name }

// OnAddToPipeline creates the backing directory.
func (s *FSSeq) OnAddToPipeline() error {
	return os.MkdirAll(s.dir, 0o755)
}

// OnRemoveFromPipeline deletes the backing directory.
func (s *FSSeq) OnRemoveFromPipeline() error {
	return os.RemoveAll(s.dir)
}

// OnPipelineStart loads the underlay from the blob file, or starts empty if
// none exists. The loaded underlay is authoritative until the next Save;
// external changes to the file are not observed mid-run.
func (s *FSSeq) OnPipelineStart() error {
	path := filepath.Join(s.dir, seqDataFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.reset(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	var values []any
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	s.reset(values)
	return nil
}

func (s *FSSeq) OnPipelineEnd() error { return nil }

// Save writes the overlay to the blob file via temp-and-rename, then promotes
// it to the underlay and clears the log. On write failure the log is kept so
// the save can be retried next step.
func (s *FSSeq) Save() error {
	data, err := json.Marshal(s.overlay)
	if err != nil {
		return fmt.Errorf("encode sequence %q: %w", s.name, err)
	}
	path := filepath.Join(s.dir, seqDataFile)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.commit()
	return nil
}

// Purge resets both views to empty and deletes the blob file.
func (s *FSSeq) Purge() error {
	s.reset(nil)
	path := filepath.Join(s.dir, seqDataFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("purge %s: %w", path, err)
	}
	return nil
}

// Changed reports whether the change log is non-empty.
func (s *FSSeq) Changed() bool { return s.changed() }

// Get returns the value at idx from the overlay, or from the underlay when
// old is true.
func (s *FSSeq) Get(idx int, old bool) (any, error) { return s.get(idx, old) }

// Insert places value at idx (0 <= idx <= Len).
func (s *FSSeq) Insert(idx int, value any) error { return s.insert(idx, value) }

// Push appends value at the end.
func (s *FSSeq) Push(value any) error { return s.insert(s.length(), value) }

// Set overwrites the value at idx; equal values are a no-op.
func (s *FSSeq) Set(idx int, value any) error { return s.set(idx, value) }

// Remove drops the value at idx.
func (s *FSSeq) Remove(idx int) error { return s.remove(idx) }

// Len returns the overlay length.
func (s *FSSeq) Len() int { return s.length() }

// Values returns a snapshot of the overlay in order.
func (s *FSSeq) Values() []any { return copySeq(s.overlay) }

// FSMap is a map object persisted as one JSON file per key inside its own
// directory. Removing a key defers the file deletion until Save.
type FSMap struct {
	name string
	dir  string
	mapState
}

// NewFSMap returns a map object backed by dir.
func NewFSMap(name, dir string) *FSMap {
	m := &FSMap{name: name, dir: dir}
	m.reset(nil)
	return m
}

// Name returns the object name.
func (m *FSMap) Name() string { return m.name }

// OnAddToPipeline creates the backing directory.
func (m *FSMap) OnAddToPipeline() error {
	return os.MkdirAll(m.dir, 0o755)
}

// OnRemoveFromPipeline deletes the backing directory.
func (m *FSMap) OnRemoveFromPipeline() error {
	return os.RemoveAll(m.dir)
}

// OnPipelineStart loads the underlay: every valid-key file in the directory
// becomes an entry. The loaded underlay is authoritative until the next Save.
func (m *FSMap) OnPipelineStart() error {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		m.reset(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load map %q: %w", m.name, err)
	}
	underlay := make(map[string]any)
	for _, entry := range entries {
		if entry.IsDir() || !keyPattern.MatchString(entry.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("load key %q of map %q: %w", entry.Name(), m.name, err)
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode key %q of map %q: %w", entry.Name(), m.name, err)
		}
		underlay[entry.Name()] = v
	}
	m.reset(underlay)
	return nil
}

func (m *FSMap) OnPipelineEnd() error { return nil }

// Save writes new and changed keys via temp-and-rename, deletes files for
// keys removed since the last save, then promotes the overlay and clears the
// log.
func (m *FSMap) Save() error {
	for _, key := range m.dirtyKeys() {
		data, err := json.Marshal(m.overlay[key])
		if err != nil {
			return fmt.Errorf("encode key %q of map %q: %w", key, m.name, err)
		}
		path := filepath.Join(m.dir, key)
		if err := renameio.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	for _, key := range m.removedKeys() {
		path := filepath.Join(m.dir, key)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", path, err)
		}
	}
	m.commit()
	return nil
}

// Purge resets both views to empty and deletes every key file.
func (m *FSMap) Purge() error {
	for key := range m.underlay {
		if err := os.Remove(filepath.Join(m.dir, key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("purge map %q: %w", m.name, err)
		}
	}
	for key := range m.overlay {
		if err := os.Remove(filepath.Join(m.dir, key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("purge map %q: %w", m.name, err)
		}
	}
	m.reset(nil)
	return nil
}

// Changed reports whether the change log is non-empty.
func (m *FSMap) Changed() bool { return m.changed() }

// Get returns the overlay value for key, or the underlay value when old is
// true.
func (m *FSMap) Get(key string, old bool) (any, error) { return m.get(key, old) }

// Set stores value under key.
func (m *FSMap) Set(key string, value any) error { return m.set(key, value) }

// Remove drops key from the overlay; the backing file is deleted at Save.
func (m *FSMap) Remove(key string) { m.remove(key) }

// Has reports whether key exists in the overlay.
func (m *FSMap) Has(key string) bool {
	_, ok := m.overlay[key]
	return ok
}

// Keys returns the overlay keys in unspecified order.
func (m *FSMap) Keys() []string {
	keys := make([]string, 0, len(m.overlay))
	for k := range m.overlay {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the overlay size.
func (m *FSMap) Len() int { return m.length() }
