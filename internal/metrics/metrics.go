// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "doclookup"

// Registry collects the metrics of the process. It is exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// Resolutions counts resolutions by outcome (ok, fetch_failed, parse_failed, schema_failed).
	Resolutions = MustRegisterCounterVec("lookup", "resolutions_total",
		"Number of document resolutions, by outcome.", "outcome")

	// SkippedKeys counts top-level keys ignored because they exceed the key buffer.
	SkippedKeys = MustRegisterCounter("lookup", "skipped_keys_total",
		"Number of top-level document keys skipped for exceeding the key size limit.")

	// FetchDuration observes the latency of document store reads.
	FetchDuration = MustRegisterHistogramVec("lookup", "fetch_duration_seconds",
		"Latency of document store reads, by status.", prometheus.DefBuckets, "status")
)

// MustRegisterCounterVec creates and registers a counter vector.
func MustRegisterCounterVec(component, name, help string, labelNames ...string) *prometheus.CounterVec {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
	}, labelNames)
	Registry.MustRegister(m)
	return m
}

// MustRegisterCounter creates and registers a counter.
func MustRegisterCounter(component, name, help string) prometheus.Counter {
	m := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
	})
	Registry.MustRegister(m)
	return m
}

// MustRegisterHistogramVec creates and registers a histogram vector.
func MustRegisterHistogramVec(component, name, help string, buckets []float64, labelNames ...string) *prometheus.HistogramVec {
	m := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labelNames)
	Registry.MustRegister(m)
	return m
}
