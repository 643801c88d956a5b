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

// This file holds the Prometheus instrumentation for the step loop. Metrics
// are global only, with no per-process or per-object labels, to keep cardinality
// fixed regardless of topology size.
package dagflow

import "github.com/prometheus/client_golang/prometheus"

var (
	stepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dagflow_steps_total",
		Help: "Total completed scheduler steps",
	})
	stepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dagflow_step_duration_seconds",
		Help:    "Wall time of a full step, polls plus save pass",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
	pollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dagflow_polls_total",
		Help: "Total process poll invocations",
	})
	pollErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dagflow_poll_errors_total",
		Help: "Total poll invocations that returned an error or panicked",
	})
	pollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dagflow_poll_duration_seconds",
		Help:    "Distribution of single poll durations",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
	objectsSavedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dagflow_objects_saved_total",
		Help: "Total successful object saves at step end",
	})
	saveErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dagflow_save_errors_total",
		Help: "Total failed object saves at step end",
	})
	daemonExitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dagflow_daemon_exits_total",
		Help: "Total daemon goroutine exits, clean or crashed",
	})
)

func init() {
	// Register eagerly. If no Prometheus endpoint is exposed, the
	// registration is harmless.
	prometheus.MustRegister(stepsTotal, stepDuration, pollsTotal, pollErrorsTotal,
		pollDuration, objectsSavedTotal, saveErrorsTotal, daemonExitsTotal)
}
