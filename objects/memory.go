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

// In-memory object variants. They keep the full two-view discipline (Save
// promotes the overlay to the underlay and clears the log) but have no
// backing store, which makes them the natural choice for tests and for
// scratch objects whose contents need not outlive the run.
package objects

// Seq is an in-memory ordered sequence object.
type Seq struct {
	name string
	seqState
}

// NewSeq returns an empty in-memory sequence object.
func NewSeq(name string) *Seq {
	s := &Seq{name: name}
	s.reset(nil)
	return s
}

// Name returns the object name.
func (s *Seq) Name() string { return s.name }

func (s *Seq) OnAddToPipeline() error      { return nil }
func (s *Seq) OnRemoveFromPipeline() error { return nil }

// OnPipelineStart keeps the current state; an in-memory object has nothing
// to load.
func (s *Seq) OnPipelineStart() error { return nil }

func (s *Seq) OnPipelineEnd() error { return nil }

// Save promotes the overlay to the underlay and clears the change log.
func (s *Seq) Save() error {
	s.commit()
	return nil
}

// Purge resets both views to empty.
func (s *Seq) Purge() error {
	s.reset(nil)
	return nil
}

// Changed reports whether the change log is non-empty.
func (s *Seq) Changed() bool { return s.changed() }

// Get returns the value at idx from the overlay, or from the underlay when
// old is true.
func (s *Seq) Get(idx int, old bool) (any, error) { return s.get(idx, old) }

// Insert places value at idx (0 <= idx <= Len).
func (s *Seq) Insert(idx int, value any) error { return s.insert(idx, value) }

// Push appends value at the end.
func (s *Seq) Push(value any) error { return s.insert(s.length(), value) }

// Set overwrites the value at idx; equal values are a no-op.
func (s *Seq) Set(idx int, value any) error { return s.set(idx, value) }

// Remove drops the value at idx.
func (s *Seq) Remove(idx int) error { return s.remove(idx) }

// Len returns the overlay length.
func (s *Seq) Len() int { return s.length() }

// Values returns a snapshot of the overlay in order.
func (s *Seq) Values() []any { return copySeq(s.overlay) }

// Map is an in-memory keyed map object. Keys must match [A-Za-z0-9_]+.
type Map struct {
	name string
	mapState
}

// NewMap returns an empty in-memory map object.
func NewMap(name string) *Map {
	m := &Map{name: name}
	m.reset(nil)
	return m
}

// Name returns the object name.
func (m *Map) Name() string { return m.name }

func (m *Map) OnAddToPipeline() error      { return nil }
func (m *Map) OnRemoveFromPipeline() error { return nil }
func (m *Map) OnPipelineStart() error      { return nil }
func (m *Map) OnPipelineEnd() error        { return nil }

// Save promotes the overlay to the underlay and clears the change log.
func (m *Map) Save() error {
	m.commit()
	return nil
}

// Purge resets both views to empty.
func (m *Map) Purge() error {
	m.reset(nil)
	return nil
}

// Changed reports whether the change log is non-empty.
func (m *Map) Changed() bool { return m.changed() }

// Get returns the overlay value for key, or the underlay value when old is
// true. Each view fails with ErrKeyNotFound independently.
func (m *Map) Get(key string, old bool) (any, error) { return m.get(key, old) }

// Set stores value under key.
func (m *Map) Set(key string, value any) error { return m.set(key, value) }

// Remove drops key; absent keys are a no-op.
func (m *Map) Remove(key string) { m.remove(key) }

// Has reports whether key exists in the overlay.
func (m *Map) Has(key string) bool {
	_, ok := m.overlay[key]
	return ok
}

// Keys returns the overlay keys in unspecified order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.overlay))
	for k := range m.overlay {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the overlay size.
func (m *Map) Len() int { return m.length() }
