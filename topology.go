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
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Topology is the declarative graph of processes and objects: which process
// produces each object and which processes consume it. It is a pure
// in-memory model; binding names to live instances is the scheduler's job.
//
// Mutations enforce local invariants only (unique names, referenced objects
// exist, at most one producer per object, no dangling removals). Whole-graph
// checks, that every object is produced and consumed and no cycles exist,
// are performed by Validate.
type Topology struct {
	objects   map[string]*objectNode
	processes map[string]*processNode
}

type objectNode struct {
	producer  string // empty while unproduced
	consumers map[string]struct{}
}

type processNode struct {
	inputs  map[string]string // port name -> object name
	outputs map[string]string
}

// NewTopology returns an empty topology.
func NewTopology() *Topology {
	return &Topology{
		objects:   make(map[string]*objectNode),
		processes: make(map[string]*processNode),
	}
}

// AddObject registers an object name. It fails with ErrDuplicate if the name
// is already present.
func (t *Topology) AddObject(name string) error {
	if _, ok := t.objects[name]; ok {
		return fmt.Errorf("%w: object %q", ErrDuplicate, name)
	}
	t.objects[name] = &objectNode{consumers: make(map[string]struct{})}
	return nil
}

// AddProcess registers a process with its port-to-object wiring. It fails
// with ErrDuplicate if the process exists, ErrMissingObject if any referenced
// object is absent, and ErrDoubleProducer if an output object already has a
// producer. On success the producer and consumer back-edges are registered;
// on failure the topology is left unchanged.
func (t *Topology) AddProcess(name string, inputs, outputs map[string]string) error {
	if _, ok := t.processes[name]; ok {
		return fmt.Errorf("%w: process %q", ErrDuplicate, name)
	}
	for port, obj := range inputs {
		if _, ok := t.objects[obj]; !ok {
			return fmt.Errorf("%w: input %s=%s of process %q", ErrMissingObject, port, obj, name)
		}
	}
	for port, obj := range outputs {
		node, ok := t.objects[obj]
		if !ok {
			return fmt.Errorf("%w: output %s=%s of process %q", ErrMissingObject, port, obj, name)
		}
		if node.producer != "" {
			return fmt.Errorf("%w: object %q is produced by %q", ErrDoubleProducer, obj, node.producer)
		}
	}

	for _, obj := range inputs {
		t.objects[obj].consumers[name] = struct{}{}
	}
	for _, obj := range outputs {
		t.objects[obj].producer = name
	}
	t.processes[name] = &processNode{
		inputs:  copyPorts(inputs),
		outputs: copyPorts(outputs),
	}
	return nil
}

// RemoveProcess detaches all of the process's back-edges and unregisters it.
// It fails with ErrNotFound if the process is absent.
func (t *Topology) RemoveProcess(name string) error {
	node, ok := t.processes[name]
	if !ok {
		return fmt.Errorf("%w: process %q", ErrNotFound, name)
	}
	for _, obj := range node.inputs {
		delete(t.objects[obj].consumers, name)
	}
	for _, obj := range node.outputs {
		t.objects[obj].producer = ""
	}
	delete(t.processes, name)
	return nil
}

// RemoveObject unregisters an object. It fails with ErrNotFound if absent and
// ErrInUse while the object still has a producer or any consumer.
func (t *Topology) RemoveObject(name string) error {
	node, ok := t.objects[name]
	if !ok {
		return fmt.Errorf("%w: object %q", ErrNotFound, name)
	}
	if node.producer != "" {
		return fmt.Errorf("%w: object %q is produced by %q", ErrInUse, name, node.producer)
	}
	if len(node.consumers) > 0 {
		return fmt.Errorf("%w: object %q has %d consumers", ErrInUse, name, len(node.consumers))
	}
	delete(t.objects, name)
	return nil
}

// HasObject reports whether the object name is registered.
func (t *Topology) HasObject(name string) bool {
	_, ok := t.objects[name]
	return ok
}

// HasProcess reports whether the process name is registered.
func (t *Topology) HasProcess(name string) bool {
	_, ok := t.processes[name]
	return ok
}

// Objects returns the sorted object names.
func (t *Topology) Objects() []string {
	names := make([]string, 0, len(t.objects))
	for name := range t.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Processes returns the sorted process names.
func (t *Topology) Processes() []string {
	names := make([]string, 0, len(t.processes))
	for name := range t.processes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProcessInputs returns a copy of the process's input port wiring, or nil if
// the process is unknown.
func (t *Topology) ProcessInputs(name string) map[string]string {
	node, ok := t.processes[name]
	if !ok {
		return nil
	}
	return copyPorts(node.inputs)
}

// ProcessOutputs returns a copy of the process's output port wiring, or nil
// if the process is unknown.
func (t *Topology) ProcessOutputs(name string) map[string]string {
	node, ok := t.processes[name]
	if !ok {
		return nil
	}
	return copyPorts(node.outputs)
}

// ObjectProducer returns the name of the process producing the object, or
// false if the object is unknown or unproduced.
func (t *Topology) ObjectProducer(name string) (string, bool) {
	node, ok := t.objects[name]
	if !ok || node.producer == "" {
		return "", false
	}
	return node.producer, true
}

// ObjectConsumers returns the sorted names of processes consuming the object.
func (t *Topology) ObjectConsumers(name string) []string {
	node, ok := t.objects[name]
	if !ok {
		return nil
	}
	consumers := make([]string, 0, len(node.consumers))
	for c := range node.consumers {
		consumers = append(consumers, c)
	}
	sort.Strings(consumers)
	return consumers
}

// Validate returns an ordered list of diagnostics: objects with no producer
// or no consumers, and a cycle diagnostic when the topological sort fails.
// It never fails; an empty result means the topology is runnable.
func (t *Topology) Validate() []string {
	var diags []string
	for _, name := range t.Objects() {
		node := t.objects[name]
		if node.producer == "" {
			diags = append(diags, fmt.Sprintf("object %q has no producer", name))
		}
		if len(node.consumers) == 0 {
			diags = append(diags, fmt.Sprintf("object %q has no consumers", name))
		}
	}
	if _, err := t.TopologicalSort(); err != nil {
		diags = append(diags, err.Error())
	}
	return diags
}

// TopologicalSort orders the processes so that every producer precedes its
// consumers, using Kahn's algorithm with the number of input ports as the
// indegree. It fails with ErrCycle when the order is incomplete, which
// includes a process reading an object that no process produces. Tie-breaking
// among simultaneously ready processes is unspecified; callers must not
// depend on a particular order.
func (t *Topology) TopologicalSort() ([]string, error) {
	indegree := make(map[string]int, len(t.processes))
	var queue []string
	for name, node := range t.processes {
		indegree[name] = len(node.inputs)
		if len(node.inputs) == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]string, 0, len(t.processes))
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)
		for _, obj := range t.processes[u].outputs {
			for consumer := range t.objects[obj].consumers {
				indegree[consumer]--
				if indegree[consumer] == 0 {
					queue = append(queue, consumer)
				}
			}
		}
	}
	if len(order) != len(t.processes) {
		return nil, fmt.Errorf("%w: %d of %d processes unordered", ErrCycle, len(t.processes)-len(order), len(t.processes))
	}
	return order, nil
}

// topologyFile is the on-disk YAML shape:
//
//	objects: [sorted names]
//	processes:
//	  name:
//	    inputs:  {port: object}
//	    outputs: {port: object}
type topologyFile struct {
	Objects   []string                 `yaml:"objects"`
	Processes map[string]topologyPorts `yaml:"processes"`
}

type topologyPorts struct {
	Inputs  map[string]string `yaml:"inputs,omitempty"`
	Outputs map[string]string `yaml:"outputs,omitempty"`
}

// ToYAML serializes the topology in its canonical file form.
func (t *Topology) ToYAML() ([]byte, error) {
	file := topologyFile{
		Objects:   t.Objects(),
		Processes: make(map[string]topologyPorts, len(t.processes)),
	}
	for name, node := range t.processes {
		file.Processes[name] = topologyPorts{
			Inputs:  copyPorts(node.inputs),
			Outputs: copyPorts(node.outputs),
		}
	}
	return yaml.Marshal(&file)
}

// UnmarshalTopology rebuilds a topology from its YAML form, re-running the
// same validation as the public mutation API.
func UnmarshalTopology(data []byte) (*Topology, error) {
	var file topologyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode topology: %w", err)
	}
	t := NewTopology()
	for _, name := range file.Objects {
		if err := t.AddObject(name); err != nil {
			return nil, err
		}
	}
	for name, ports := range file.Processes {
		if err := t.AddProcess(name, ports.Inputs, ports.Outputs); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// LoadTopologyFile reads a topology from path. A missing file yields an empty
// topology so that the first mutation of a fresh project starts from scratch.
func LoadTopologyFile(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewTopology(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read topology %s: %w", path, err)
	}
	return UnmarshalTopology(data)
}

// SaveFile writes the topology to path in its canonical YAML form.
func (t *Topology) SaveFile(path string) error {
	data, err := t.ToYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write topology %s: %w", path, err)
	}
	return nil
}

func copyPorts(ports map[string]string) map[string]string {
	out := make(map[string]string, len(ports))
	for port, obj := range ports {
		out[port] = obj
	}
	return out
}
