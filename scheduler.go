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
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// stepInterval is the pause between steps in Run. It keeps the loop from
// busy-spinning while staying short enough that daemon-staged data is picked
// up promptly.
const stepInterval = 10 * time.Millisecond

// defaultParallelization bounds concurrent polls when no option overrides it.
const defaultParallelization = 4

// Scheduler drives a run: it validates that the instance registries match the
// topology, fires lifecycle hooks, launches daemons, and executes the step
// loop. Each step polls every process at most once, in an order compatible
// with data flow, with independent branches running concurrently up to the
// parallelization bound; changed objects are saved after the wave drains.
type Scheduler struct {
	topo      *Topology
	objects   map[string]Object
	processes map[string]Process

	// bindings maps each process to its resolved port map. Built once at
	// construction and immutable for the duration of the run.
	bindings map[string]Ports

	parallelization int
	log             zerolog.Logger

	daemonCancel context.CancelFunc
	daemonWG     sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithParallelization sets the maximum number of concurrent polls per step.
// Values below 1 are ignored.
func WithParallelization(n int) Option {
	return func(s *Scheduler) {
		if n >= 1 {
			s.parallelization = n
		}
	}
}

// WithLogger replaces the default stderr logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// NewScheduler builds a scheduler from a topology and the live process and
// object instances it names. It fails with ErrConsistency when the registries
// and the topology disagree: the process name sets must be equal, every
// process's declared ports must equal the topology's ports for that name, and
// object names must match one to one. A cyclic topology is rejected with
// ErrCycle.
func NewScheduler(topo *Topology, processes []Process, objects []Object, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		topo:            topo,
		objects:         make(map[string]Object, len(objects)),
		processes:       make(map[string]Process, len(processes)),
		bindings:        make(map[string]Ports, len(processes)),
		parallelization: defaultParallelization,
		log:             zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, obj := range objects {
		if _, ok := s.objects[obj.Name()]; ok {
			return nil, fmt.Errorf("%w: object %q registered twice", ErrConsistency, obj.Name())
		}
		s.objects[obj.Name()] = obj
	}
	for _, proc := range processes {
		if _, ok := s.processes[proc.Name()]; ok {
			return nil, fmt.Errorf("%w: process %q registered twice", ErrConsistency, proc.Name())
		}
		s.processes[proc.Name()] = proc
	}
	if err := s.checkConsistent(); err != nil {
		return nil, err
	}
	if _, err := topo.TopologicalSort(); err != nil {
		return nil, err
	}

	for name := range s.processes {
		s.bindings[name] = s.resolvePorts(name)
	}
	return s, nil
}

// checkConsistent asserts that the registries mirror the topology exactly.
func (s *Scheduler) checkConsistent() error {
	if len(s.processes) != len(s.topo.processes) {
		return fmt.Errorf("%w: %d processes registered, topology has %d", ErrConsistency, len(s.processes), len(s.topo.processes))
	}
	for name, proc := range s.processes {
		if !s.topo.HasProcess(name) {
			return fmt.Errorf("%w: process %q not in topology", ErrConsistency, name)
		}
		if err := samePortSet(name, "input", proc.Inputs(), s.topo.ProcessInputs(name)); err != nil {
			return err
		}
		if err := samePortSet(name, "output", proc.Outputs(), s.topo.ProcessOutputs(name)); err != nil {
			return err
		}
	}

	if len(s.objects) != len(s.topo.objects) {
		return fmt.Errorf("%w: %d objects registered, topology has %d", ErrConsistency, len(s.objects), len(s.topo.objects))
	}
	for name := range s.objects {
		if !s.topo.HasObject(name) {
			return fmt.Errorf("%w: object %q not in topology", ErrConsistency, name)
		}
	}
	return nil
}

// samePortSet checks a process's declared port names against the topology's
// wiring for the same process.
func samePortSet(proc, kind string, declared []string, wired map[string]string) error {
	if len(declared) != len(wired) {
		return fmt.Errorf("%w: process %q declares %d %s ports, topology wires %d", ErrConsistency, proc, len(declared), kind, len(wired))
	}
	for _, port := range declared {
		if _, ok := wired[port]; !ok {
			return fmt.Errorf("%w: process %q declares %s port %q not wired in topology", ErrConsistency, proc, kind, port)
		}
	}
	return nil
}

// resolvePorts builds the port-name to instance map for one process, covering
// both inputs and outputs.
func (s *Scheduler) resolvePorts(name string) Ports {
	ports := make(Ports)
	for port, obj := range s.topo.ProcessInputs(name) {
		ports[port] = s.objects[obj]
	}
	for port, obj := range s.topo.ProcessOutputs(name) {
		ports[port] = s.objects[obj]
	}
	return ports
}

// Run drives a full run until ctx is cancelled or a step fails:
// OnPipelineStart on every object then every process, daemons launched, the
// step loop with a short inter-step pause, then OnPipelineEnd on objects and
// processes and a join of all daemon goroutines.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, name := range s.topo.Objects() {
		if err := s.objects[name].OnPipelineStart(); err != nil {
			return fmt.Errorf("start object %q: %w", name, err)
		}
	}
	for _, name := range s.topo.Processes() {
		s.processes[name].OnPipelineStart()
	}

	s.startDaemons()
	s.log.Info().Int("processes", len(s.processes)).Int("objects", len(s.objects)).Msg("pipeline started")

	var runErr error
loop:
	for {
		if _, err := s.Step(); err != nil {
			s.log.Error().Err(err).Msg("step failed")
			runErr = err
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case <-time.After(stepInterval):
		}
	}

	for _, name := range s.topo.Objects() {
		if err := s.objects[name].OnPipelineEnd(); err != nil {
			s.log.Error().Err(err).Str("object", name).Msg("object end hook failed")
		}
	}
	for _, name := range s.topo.Processes() {
		s.processes[name].OnPipelineEnd()
	}
	s.stopDaemons()
	s.log.Info().Msg("pipeline stopped")
	return runErr
}

// pollResult is the completion record a worker posts back to the step driver.
type pollResult struct {
	name string
	err  error
}

// Step runs one topological wave: processes with zero pending inputs are
// submitted to the worker pool, and each completion unlocks the consumers of
// the completed process's outputs. Every process polls at most once. After
// the wave drains, every changed object is saved.
//
// The returned bool reports whether any object was saved this step. A poll
// error (or panic) aborts the wave: in-flight polls drain, nothing new is
// submitted, the save pass is skipped, and the error is returned wrapped as
// ErrPoll. Save failures do not stop the save pass; they are aggregated and
// returned together.
func (s *Scheduler) Step() (bool, error) {
	start := time.Now()

	pending := make(map[string]int, len(s.processes))
	for name := range s.processes {
		pending[name] = len(s.topo.ProcessInputs(name))
	}

	tasks := make(chan string, len(s.processes))
	results := make(chan pollResult, len(s.processes))
	var workers sync.WaitGroup
	for i := 0; i < s.parallelization; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for name := range tasks {
				results <- pollResult{name: name, err: s.pollOne(name)}
			}
		}()
	}

	outstanding := 0
	submit := func(name string) {
		outstanding++
		tasks <- name
	}
	for name, n := range pending {
		if n == 0 {
			submit(name)
		}
	}

	var pollErr error
	for outstanding > 0 {
		res := <-results
		outstanding--
		if res.err != nil {
			if pollErr == nil {
				pollErr = fmt.Errorf("%w: process %q: %v", ErrPoll, res.name, res.err)
			}
			continue
		}
		if pollErr != nil {
			// Aborting: drain what is already in flight only.
			continue
		}
		for _, obj := range s.topo.ProcessOutputs(res.name) {
			for _, consumer := range s.topo.ObjectConsumers(obj) {
				pending[consumer]--
				if pending[consumer] == 0 {
					submit(consumer)
				}
			}
		}
	}
	close(tasks)
	workers.Wait()

	if pollErr != nil {
		return false, pollErr
	}

	saved := false
	var saveErrs *multierror.Error
	for _, name := range s.topo.Objects() {
		obj := s.objects[name]
		if !obj.Changed() {
			continue
		}
		if err := obj.Save(); err != nil {
			s.log.Error().Err(err).Str("object", name).Msg("save failed")
			saveErrorsTotal.Inc()
			saveErrs = multierror.Append(saveErrs, fmt.Errorf("save object %q: %w", name, err))
			continue
		}
		saved = true
		objectsSavedTotal.Inc()
	}

	stepsTotal.Inc()
	stepDuration.Observe(time.Since(start).Seconds())
	return saved, saveErrs.ErrorOrNil()
}

// pollOne invokes a single process's Poll, converting panics into errors so a
// misbehaving process cannot take down a worker.
func (s *Scheduler) pollOne(name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		pollsTotal.Inc()
		if err != nil {
			pollErrorsTotal.Inc()
		}
	}()
	start := time.Now()
	err = s.processes[name].Poll(s.bindings[name])
	pollDuration.Observe(time.Since(start).Seconds())
	return err
}

// startDaemons launches one background goroutine per daemon process. Daemons
// receive the same resolved port map as Poll plus a context cancelled at
// shutdown. A daemon failure is logged and ends that daemon only; the step
// loop keeps running.
func (s *Scheduler) startDaemons() {
	ctx, cancel := context.WithCancel(context.Background())
	s.daemonCancel = cancel
	for _, name := range s.topo.Processes() {
		proc := s.processes[name]
		if !proc.HasDaemon() {
			continue
		}
		s.daemonWG.Add(1)
		go func(name string, proc Process) {
			defer s.daemonWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Str("process", name).Interface("panic", r).Msg("daemon crashed")
				}
				daemonExitsTotal.Inc()
			}()
			proc.RunDaemon(ctx, s.bindings[name])
		}(name, proc)
	}
}

// stopDaemons signals cancellation and joins every daemon goroutine.
func (s *Scheduler) stopDaemons() {
	if s.daemonCancel != nil {
		s.daemonCancel()
	}
	s.daemonWG.Wait()
}
