/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package esdb

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an optional, opt-in observability sink (ambient, not required
// by any operation in this spec). A nil *Metrics is always safe to use:
// every method is a no-op guard around the underlying collectors.
type Metrics struct {
	reopenTotal    prometheus.Counter
	appendDuration prometheus.Histogram
}

// NewMetrics registers this client's collectors on reg and returns a
// Metrics ready to pass to WithMetrics. Pass prometheus.DefaultRegisterer
// to use the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reopenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "esdb_client_connection_reopen_total",
			Help: "Number of times the client reopened its channel to the cluster.",
		}),
		appendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "esdb_client_append_duration_seconds",
			Help:    "Latency of Append calls, including one retry on a leader redirect.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.reopenTotal, m.appendDuration)
	return m
}

func (m *Metrics) recordReopen() {
	if m == nil {
		return
	}
	m.reopenTotal.Inc()
}

func (m *Metrics) observeAppend(start time.Time) {
	if m == nil {
		return
	}
	m.appendDuration.Observe(time.Since(start).Seconds())
}
