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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NewPromCounter wraps a prometheus counter vector with the given label
// values as a counter. Returns nil if cv is nil.
func NewPromCounter(cv *prometheus.CounterVec, labelValues ...string) Counter {
	if cv == nil {
		return nil
	}
	return cv.WithLabelValues(labelValues...)
}

// NewPromGauge wraps a prometheus gauge vector with the given label values
// as a gauge. Returns nil if gv is nil.
func NewPromGauge(gv *prometheus.GaugeVec, labelValues ...string) Gauge {
	if gv == nil {
		return nil
	}
	return gv.WithLabelValues(labelValues...)
}
