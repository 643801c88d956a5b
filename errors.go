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

import "errors"

// Sentinel errors returned by the topology, the object implementations, and
// the scheduler. Call sites wrap them with fmt.Errorf("...: %w", ...) so
// callers can discriminate with errors.Is while still seeing the offending
// name in the message.
var (
	// ErrDuplicate is returned when adding an object or process under a
	// name that is already registered.
	ErrDuplicate = errors.New("duplicate name")

	// ErrNotFound is returned when removing or looking up a name that is
	// not registered.
	ErrNotFound = errors.New("not found")

	// ErrMissingObject is returned when a process references an object
	// that has not been added to the topology.
	ErrMissingObject = errors.New("missing object")

	// ErrDoubleProducer is returned when an output object already has a
	// producer.
	ErrDoubleProducer = errors.New("object already has a producer")

	// ErrInUse is returned when removing an object that still has a
	// producer or consumers.
	ErrInUse = errors.New("object in use")

	// ErrCycle is returned by TopologicalSort when it cannot order every
	// process: the graph has a cycle, or a process reads an object that no
	// process produces.
	ErrCycle = errors.New("cycle detected")

	// ErrInvalidIndex is returned by sequence objects for out-of-range
	// indices.
	ErrInvalidIndex = errors.New("index out of range")

	// ErrKeyNotFound is returned by map objects when a key is absent from
	// the requested view.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidKey is returned by map objects for keys outside
	// [A-Za-z0-9_]+.
	ErrInvalidKey = errors.New("invalid key")

	// ErrConsistency is returned at scheduler construction when the
	// instance registries do not match the topology.
	ErrConsistency = errors.New("registry inconsistent with topology")

	// ErrPoll wraps any error or panic escaping a process Poll; it aborts
	// the current step.
	ErrPoll = errors.New("poll failed")
)
