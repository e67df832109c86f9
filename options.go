// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/metrics"
	"github.com/scigolib/raster/internal/mlog"
)

// MetricsCollector aggregates I/O counters and latencies. It is safe for
// concurrent use and may be shared by several readers, writers and
// dispatchers.
type MetricsCollector = metrics.Collector

// MetricsSnapshot is a point-in-time copy of a MetricsCollector.
type MetricsSnapshot = metrics.Snapshot

// NewMetricsCollector returns an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return metrics.NewCollector()
}

// Option configures a Reader, Writer or Dispatcher. Options that do not
// apply to a component are ignored by it.
//
// Example:
//
//	r := raster.NewReader("dem.tif",
//	    raster.WithRegistry(reg),
//	    raster.WithMetrics(collector),
//	)
type Option func(*options)

type options struct {
	registry   *driver.Registry
	driverName string
	logger     *logrus.Entry
	workers    int
	metrics    *metrics.Collector
}

func buildOptions(component string, opts []Option) options {
	o := options{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}
	if o.logger == nil {
		o.logger = mlog.GetPackageLogger("raster").WithField("component", component)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

// WithRegistry selects the drivers available to the component.
// The default is DefaultRegistry().
func WithRegistry(reg *driver.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithDriver makes a Reader open its path with the named driver instead of
// probing the registry.
func WithDriver(name string) Option {
	return func(o *options) { o.driverName = name }
}

// WithLogger sets the log entry used for lifecycle and failure messages.
func WithLogger(entry *logrus.Entry) Option {
	return func(o *options) { o.logger = entry }
}

// WithWorkers bounds the dispatcher pool. Values below 1 mean 1.
// The default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMetrics records operation counts and latencies into c.
func WithMetrics(c *MetricsCollector) Option {
	return func(o *options) { o.metrics = c }
}
