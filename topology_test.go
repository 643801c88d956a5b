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

package dagflow

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func mustAddObject(t *testing.T, topo *Topology, name string) {
	t.Helper()
	if err := topo.AddObject(name); err != nil {
		t.Fatalf("add object %s: %v", name, err)
	}
}

func mustAddProcess(t *testing.T, topo *Topology, name string, inputs, outputs map[string]string) {
	t.Helper()
	if err := topo.AddProcess(name, inputs, outputs); err != nil {
		t.Fatalf("add process %s: %v", name, err)
	}
}

// TestTopology_MutationFailures covers the failure mode of every mutation.
func TestTopology_MutationFailures(t *testing.T) {
	topo := NewTopology()
	mustAddObject(t, topo, "x")
	mustAddProcess(t, topo, "src", nil, map[string]string{"out": "x"})

	if err := topo.AddObject("x"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate object: got %v", err)
	}
	if err := topo.AddProcess("src", nil, nil); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate process: got %v", err)
	}
	if err := topo.AddProcess("p", map[string]string{"in": "ghost"}, nil); !errors.Is(err, ErrMissingObject) {
		t.Errorf("missing input object: got %v", err)
	}
	if err := topo.AddProcess("p", nil, map[string]string{"out": "ghost"}); !errors.Is(err, ErrMissingObject) {
		t.Errorf("missing output object: got %v", err)
	}
	if err := topo.AddProcess("p", nil, map[string]string{"out": "x"}); !errors.Is(err, ErrDoubleProducer) {
		t.Errorf("double producer: got %v", err)
	}
	if err := topo.RemoveProcess("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove unknown process: got %v", err)
	}
	if err := topo.RemoveObject("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove unknown object: got %v", err)
	}
	if err := topo.RemoveObject("x"); !errors.Is(err, ErrInUse) {
		t.Errorf("remove produced object: got %v", err)
	}

	// Once the producer is detached the object can go.
	if err := topo.RemoveProcess("src"); err != nil {
		t.Fatalf("remove process: %v", err)
	}
	if err := topo.RemoveObject("x"); err != nil {
		t.Fatalf("remove object: %v", err)
	}
}

// TestTopology_FailedAddLeavesNoEdges verifies that a rejected AddProcess
// does not leave partial consumer back-edges behind.
func TestTopology_FailedAddLeavesNoEdges(t *testing.T) {
	topo := NewTopology()
	mustAddObject(t, topo, "x")
	mustAddObject(t, topo, "y")
	mustAddProcess(t, topo, "a", nil, map[string]string{"out": "y"})

	// Fails on the output side after the inputs were checked.
	if err := topo.AddProcess("b", map[string]string{"in": "x"}, map[string]string{"out": "y"}); !errors.Is(err, ErrDoubleProducer) {
		t.Fatalf("expected ErrDoubleProducer, got %v", err)
	}
	if got := topo.ObjectConsumers("x"); len(got) != 0 {
		t.Fatalf("rejected process left consumers %v on x", got)
	}
}

// TestTopology_OutputReuseRejected rebuilds the producing side of a would-be
// cycle: a third process re-producing an existing object is rejected at add
// time, before any sort runs.
func TestTopology_OutputReuseRejected(t *testing.T) {
	topo := NewTopology()
	mustAddObject(t, topo, "x")
	mustAddObject(t, topo, "y")
	mustAddProcess(t, topo, "a", nil, map[string]string{"out": "x"})
	mustAddProcess(t, topo, "b", map[string]string{"in": "x"}, map[string]string{"out": "y"})

	err := topo.AddProcess("c", map[string]string{"in": "y"}, map[string]string{"out": "x"})
	if !errors.Is(err, ErrDoubleProducer) {
		t.Fatalf("expected ErrDoubleProducer, got %v", err)
	}
}

// TestTopology_ValidateReportsCycle wires two processes into a loop and
// expects a cycle diagnostic from Validate.
func TestTopology_ValidateReportsCycle(t *testing.T) {
	topo := NewTopology()
	mustAddObject(t, topo, "x")
	mustAddObject(t, topo, "y")
	mustAddProcess(t, topo, "a", map[string]string{"in": "x"}, map[string]string{"out": "y"})
	mustAddProcess(t, topo, "b", map[string]string{"in": "y"}, map[string]string{"out": "x"})

	diags := topo.Validate()
	found := false
	for _, d := range diags {
		if strings.Contains(d, "cycle") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a cycle diagnostic, got %v", diags)
	}
	if _, err := topo.TopologicalSort(); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

// TestTopology_ValidateReportsOrphans expects diagnostics for objects with no
// producer or no consumers, in object-name order.
func TestTopology_ValidateReportsOrphans(t *testing.T) {
	topo := NewTopology()
	mustAddObject(t, topo, "unproduced")
	mustAddObject(t, topo, "unconsumed")
	mustAddProcess(t, topo, "p", map[string]string{"in": "unproduced"}, map[string]string{"out": "unconsumed"})

	diags := topo.Validate()
	want := []string{
		`object "unconsumed" has no consumers`,
		`object "unproduced" has no producer`,
	}
	if !reflect.DeepEqual(diags, want) {
		t.Fatalf("diags = %v, want %v", diags, want)
	}
}

// TestTopology_ValidateCleanImpliesSortable builds a diamond and checks the
// validate-empty => sortable property plus the ordering constraints.
func TestTopology_ValidateCleanImpliesSortable(t *testing.T) {
	topo := diamondTopology(t)

	if diags := topo.Validate(); len(diags) != 0 {
		t.Fatalf("expected clean validation, got %v", diags)
	}
	order, err := topo.TopologicalSort()
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if len(order) != 5 {
		t.Fatalf("order = %v, want all 5 processes", order)
	}
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	for _, dep := range [][2]string{{"src", "f1"}, {"src", "f2"}, {"f1", "sink"}, {"f2", "sink"}, {"sink", "drain"}} {
		if pos[dep[0]] >= pos[dep[1]] {
			t.Errorf("%s must precede %s in %v", dep[0], dep[1], order)
		}
	}
}

// diamondTopology is src(->a), f1(a->b), f2(a->c), sink(b,c->d). The sink
// also consumes d's upstream objects, so every object has a producer and at
// least one consumer.
func diamondTopology(t *testing.T) *Topology {
	t.Helper()
	topo := NewTopology()
	for _, obj := range []string{"a", "b", "c", "d"} {
		mustAddObject(t, topo, obj)
	}
	mustAddProcess(t, topo, "src", nil, map[string]string{"out": "a"})
	mustAddProcess(t, topo, "f1", map[string]string{"in": "a"}, map[string]string{"out": "b"})
	mustAddProcess(t, topo, "f2", map[string]string{"in": "a"}, map[string]string{"out": "c"})
	mustAddProcess(t, topo, "sink", map[string]string{"left": "b", "right": "c"}, map[string]string{"out": "d"})
	// d needs a consumer for clean validation
	mustAddProcess(t, topo, "drain", map[string]string{"in": "d"}, nil)
	return topo
}

// TestTopology_YAMLRoundTrip serializes and reloads a topology and compares
// the graphs.
func TestTopology_YAMLRoundTrip(t *testing.T) {
	topo := diamondTopology(t)

	data, err := topo.ToYAML()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := UnmarshalTopology(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !reflect.DeepEqual(topo.Objects(), back.Objects()) {
		t.Fatalf("objects %v != %v", topo.Objects(), back.Objects())
	}
	if !reflect.DeepEqual(topo.Processes(), back.Processes()) {
		t.Fatalf("processes %v != %v", topo.Processes(), back.Processes())
	}
	for _, name := range topo.Processes() {
		if !reflect.DeepEqual(topo.ProcessInputs(name), back.ProcessInputs(name)) {
			t.Errorf("inputs of %s differ", name)
		}
		if !reflect.DeepEqual(topo.ProcessOutputs(name), back.ProcessOutputs(name)) {
			t.Errorf("outputs of %s differ", name)
		}
	}
	for _, name := range topo.Objects() {
		if !reflect.DeepEqual(topo.ObjectConsumers(name), back.ObjectConsumers(name)) {
			t.Errorf("consumers of %s differ", name)
		}
	}
}

// TestLoadTopologyFile_Missing returns an empty topology for a missing path.
func TestLoadTopologyFile_Missing(t *testing.T) {
	topo, err := LoadTopologyFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(topo.Objects()) != 0 || len(topo.Processes()) != 0 {
		t.Fatalf("expected empty topology")
	}
}

// TestTopology_SaveAndLoadFile round-trips through the filesystem.
func TestTopology_SaveAndLoadFile(t *testing.T) {
	topo := diamondTopology(t)
	path := filepath.Join(t.TempDir(), "topology.yaml")
	if err := topo.SaveFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := LoadTopologyFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(topo.Processes(), back.Processes()) {
		t.Fatalf("processes differ after file round-trip")
	}
}
