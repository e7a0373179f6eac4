// Copyright 2025 The udplex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics defines simple interfaces for metrics reporting. Nil
// metric values are valid and are never updated, which allows code to be
// instrumented unconditionally.
package metrics

// Counter describes an append-only metric.
type Counter interface {
	// Add increases the value of the counter. Implementations may panic if
	// delta is negative.
	Add(delta float64)
}

// Gauge describes a metric that can go up or down.
type Gauge interface {
	// Set sets the value of the gauge.
	Set(value float64)
	// Add increases the value of the gauge by delta.
	Add(delta float64)
}

// CounterInc increases the counter by 1. If the counter is nil, it is a
// no-op.
func CounterInc(c Counter) {
	CounterAdd(c, 1)
}

// CounterAdd increases the counter by delta. If the counter is nil, it is a
// no-op.
func CounterAdd(c Counter, delta float64) {
	if c != nil {
		c.Add(delta)
	}
}

// GaugeSet sets the gauge to the given value. If the gauge is nil, it is a
// no-op.
func GaugeSet(g Gauge, value float64) {
	if g != nil {
		g.Set(value)
	}
}

// GaugeAdd increases the gauge by delta. If the gauge is nil, it is a no-op.
func GaugeAdd(g Gauge, delta float64) {
	if g != nil {
		g.Add(delta)
	}
}
