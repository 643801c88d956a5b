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

// Package dagflow is a dataflow pipeline runtime. Users declare a topology of
// processes wired through named, change-tracked objects; the scheduler polls
// processes in dependency order, running a process only after every producer
// of its inputs has finished, and persists mutated objects at the end of each
// step. Long-lived daemon producers run in background goroutines alongside
// the step loop and hand data to their process through private staging, to be
// flushed during Poll.
package dagflow

import "context"

// Object is a named, persistent, change-tracked data holder bound to process
// ports. Implementations keep two views of their data: the underlay (the
// state as last persisted) and the overlay (the current in-flight state,
// equal to the underlay plus an append-only change log). Save promotes the
// overlay to the underlay and clears the log.
//
// Concrete implementations live in the objects package.
type Object interface {
	// Name returns the object's unique name within a run.
	Name() string

	// OnAddToPipeline is called once when the object is first bound to a
	// topology, e.g. to create a backing directory.
	OnAddToPipeline() error

	// OnRemoveFromPipeline is called when the object is removed from the
	// topology, e.g. to delete its backing storage.
	OnRemoveFromPipeline() error

	// OnPipelineStart opens the underlay: load from the backing store if
	// present, otherwise start empty. Once loaded the underlay is
	// authoritative until the next Save; external changes to the backing
	// store are not observed mid-run.
	OnPipelineStart() error

	// OnPipelineEnd is called once on shutdown to flush or close any
	// resources held by the object.
	OnPipelineEnd() error

	// Save atomically replaces the underlay with a copy of the overlay,
	// persists it to the backing store, then empties the change log. If
	// persistence fails the change log is kept so the save can be retried.
	Save() error

	// Purge resets both views to the empty structure and drops any
	// persisted state, returning the object to its post-add state.
	Purge() error

	// Changed reports whether the change log is non-empty.
	Changed() bool
}

// Ports maps a process's declared port names to the resolved Object
// instances. The same map covers both input and output ports and is resolved
// once at scheduler construction; Poll and RunDaemon receive it unchanged on
// every invocation.
type Ports map[string]Object

// Process is a named compute unit with declared input and output ports. The
// scheduler invokes Poll once per step after every producer of the process's
// inputs has completed. Poll may mutate objects bound to output ports and
// read objects bound to input ports; it must not mutate inputs.
//
// The scheduler calls Poll unconditionally once dependencies are satisfied;
// it is the implementation's responsibility to early-return when none of its
// inputs report Changed. Source processes with no input ports are invoked
// every step, which lets daemon-backed processes flush internal staging even
// when nothing upstream changed.
type Process interface {
	// Name returns the process's unique name within a run.
	Name() string

	// Inputs returns the declared input port names.
	Inputs() []string

	// Outputs returns the declared output port names.
	Outputs() []string

	// HasDaemon reports whether RunDaemon should be started for this
	// process.
	HasDaemon() bool

	OnAddToPipeline()
	OnRemoveFromPipeline()
	OnPipelineStart()
	OnPipelineEnd()

	// Poll runs one unit of work against the bound ports.
	Poll(ports Ports) error

	// RunDaemon is invoked once per run in a background goroutine for
	// processes with HasDaemon true. It typically loops producing data
	// into private staging until ctx is cancelled at shutdown. Daemons
	// must not mutate port objects directly; mutation is confined to Poll
	// so that writes stay on the step threads.
	RunDaemon(ctx context.Context, ports Ports)
}

// BaseProcess provides the no-op portion of the Process interface. User
// processes embed it and implement Poll plus whichever declarations and
// hooks they need.
type BaseProcess struct {
	name string
}

// NewBaseProcess returns an embeddable base carrying the process name.
func NewBaseProcess(name string) BaseProcess {
	return BaseProcess{name: name}
}

// Name returns the process name.
func (b BaseProcess) Name() string { return b.name }

// Inputs declares no input ports.
func (BaseProcess) Inputs() []string { return nil }

// Outputs declares no output ports.
func (BaseProcess) Outputs() []string { return nil }

// HasDaemon reports that the process has no daemon.
func (BaseProcess) HasDaemon() bool { return false }

func (BaseProcess) OnAddToPipeline()      {}
func (BaseProcess) OnRemoveFromPipeline() {}
func (BaseProcess) OnPipelineStart()      {}
func (BaseProcess) OnPipelineEnd()        {}

// RunDaemon does nothing; processes with HasDaemon true override it.
func (BaseProcess) RunDaemon(context.Context, Ports) {}
