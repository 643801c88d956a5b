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

// Command pipeline-sim runs a small end-to-end pipeline: a daemon source
// staging random numbers, an even/odd filter, a halving stage, and print
// sinks. State persists under the data directory, so interrupting and
// restarting the simulator resumes from the saved objects.
package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dagflow"
	"dagflow/objects"
)

// randGenProcess is a daemon source: the daemon stages a random number every
// half second, Poll drains the staging channel into the output sequence and
// trims the head to keep the last ten values.
type randGenProcess struct {
	dagflow.BaseProcess
	staged chan int
}

func newRandGenProcess(name string) *randGenProcess {
	return &randGenProcess{
		BaseProcess: dagflow.NewBaseProcess(name),
		staged:      make(chan int, 128),
	}
}

func (p *randGenProcess) Outputs() []string { return []string{"num_list"} }
func (p *randGenProcess) HasDaemon() bool   { return true }

func (p *randGenProcess) RunDaemon(ctx context.Context, ports dagflow.Ports) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case p.staged <- rand.Intn(100) + 1:
			default:
				// staging full; drop rather than block the daemon
			}
		}
	}
}

func (p *randGenProcess) Poll(ports dagflow.Ports) error {
	out := ports["num_list"].(*objects.FSSeq)
	for {
		select {
		case v := <-p.staged:
			if err := out.Push(v); err != nil {
				return err
			}
			for out.Len() > 10 {
				if err := out.Remove(0); err != nil {
					return err
				}
			}
		default:
			return nil
		}
	}
}

// asInt normalizes sequence values: freshly pushed values are ints, values
// reloaded from the JSON underlay are float64.
func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

// rewriteSeq overwrites dst with values, reusing Set so unchanged positions
// stay out of the change log, and trims any leftover tail.
func rewriteSeq(dst *objects.FSSeq, values []int) error {
	for i, v := range values {
		if i < dst.Len() {
			if err := dst.Set(i, v); err != nil {
				return err
			}
			continue
		}
		if err := dst.Push(v); err != nil {
			return err
		}
	}
	for dst.Len() > len(values) {
		if err := dst.Remove(len(values)); err != nil {
			return err
		}
	}
	return nil
}

// filterProcess splits its input into even and odd output sequences.
type filterProcess struct {
	dagflow.BaseProcess
}

func (p *filterProcess) Inputs() []string  { return []string{"input_nums"} }
func (p *filterProcess) Outputs() []string { return []string{"even_nums", "odd_nums"} }

func (p *filterProcess) Poll(ports dagflow.Ports) error {
	in := ports["input_nums"].(*objects.FSSeq)
	if !in.Changed() {
		return nil
	}
	var evens, odds []int
	for _, v := range in.Values() {
		n, ok := asInt(v)
		if !ok {
			continue
		}
		if n%2 == 0 {
			evens = append(evens, n)
		} else {
			odds = append(odds, n)
		}
	}
	if err := rewriteSeq(ports["even_nums"].(*objects.FSSeq), evens); err != nil {
		return err
	}
	return rewriteSeq(ports["odd_nums"].(*objects.FSSeq), odds)
}

// halveProcess maps every input value to its half.
type halveProcess struct {
	dagflow.BaseProcess
}

func (p *halveProcess) Inputs() []string  { return []string{"input_nums"} }
func (p *halveProcess) Outputs() []string { return []string{"output_nums"} }

func (p *halveProcess) Poll(ports dagflow.Ports) error {
	in := ports["input_nums"].(*objects.FSSeq)
	if !in.Changed() {
		return nil
	}
	var halved []int
	for _, v := range in.Values() {
		if n, ok := asInt(v); ok {
			halved = append(halved, n/2)
		}
	}
	return rewriteSeq(ports["output_nums"].(*objects.FSSeq), halved)
}

// printProcess logs its input whenever it changes.
type printProcess struct {
	dagflow.BaseProcess
	log zerolog.Logger
}

func (p *printProcess) Inputs() []string { return []string{"input_nums"} }

func (p *printProcess) Poll(ports dagflow.Ports) error {
	in := ports["input_nums"].(*objects.FSSeq)
	if !in.Changed() {
		return nil
	}
	p.log.Info().Str("process", p.Name()).Interface("values", in.Values()).Msg("sequence updated")
	return nil
}

func main() {
	dataDir := flag.String("data", "data", "data directory for object state")
	metricsAddr := flag.String("metrics_addr", "", "address for the Prometheus /metrics endpoint, empty to disable")
	parallelization := flag.Int("parallelization", 4, "maximum concurrent polls per step")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	objDir := func(name string) string { return filepath.Join(*dataDir, "objects", name) }
	randoms := objects.NewFSSeq("randoms", objDir("randoms"))
	evens := objects.NewFSSeq("evens", objDir("evens"))
	odds := objects.NewFSSeq("odds", objDir("odds"))
	results := objects.NewFSSeq("results", objDir("results"))
	objs := []dagflow.Object{randoms, evens, odds, results}

	procs := []dagflow.Process{
		newRandGenProcess("random_gen"),
		&filterProcess{BaseProcess: dagflow.NewBaseProcess("filter_numbers")},
		&halveProcess{BaseProcess: dagflow.NewBaseProcess("halve_evens")},
		&printProcess{BaseProcess: dagflow.NewBaseProcess("print_numbers"), log: log},
		&printProcess{BaseProcess: dagflow.NewBaseProcess("print_evens"), log: log},
		&printProcess{BaseProcess: dagflow.NewBaseProcess("print_odds"), log: log},
		&printProcess{BaseProcess: dagflow.NewBaseProcess("print_results"), log: log},
	}

	topo := dagflow.NewTopology()
	for _, obj := range objs {
		if err := topo.AddObject(obj.Name()); err != nil {
			fatal(log, err)
		}
		if err := obj.OnAddToPipeline(); err != nil {
			fatal(log, err)
		}
	}
	wire := func(name string, inputs, outputs map[string]string) {
		if err := topo.AddProcess(name, inputs, outputs); err != nil {
			fatal(log, err)
		}
	}
	wire("random_gen", nil, map[string]string{"num_list": "randoms"})
	wire("filter_numbers", map[string]string{"input_nums": "randoms"},
		map[string]string{"even_nums": "evens", "odd_nums": "odds"})
	wire("halve_evens", map[string]string{"input_nums": "evens"},
		map[string]string{"output_nums": "results"})
	wire("print_numbers", map[string]string{"input_nums": "randoms"}, nil)
	wire("print_evens", map[string]string{"input_nums": "evens"}, nil)
	wire("print_odds", map[string]string{"input_nums": "odds"}, nil)
	wire("print_results", map[string]string{"input_nums": "results"}, nil)

	if diags := topo.Validate(); len(diags) > 0 {
		for _, d := range diags {
			log.Warn().Msg(d)
		}
	}

	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				log.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	sched, err := dagflow.NewScheduler(topo, procs, objs,
		dagflow.WithParallelization(*parallelization),
		dagflow.WithLogger(log),
	)
	if err != nil {
		fatal(log, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := sched.Run(ctx); err != nil {
		fatal(log, err)
	}
}

func fatal(log zerolog.Logger, err error) {
	log.Error().Err(err).Msg("pipeline-sim failed")
	os.Exit(1)
}
