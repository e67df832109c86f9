// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package metrics collects counters and latencies for raster I/O.
package metrics

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Operation is a kind of recorded I/O event.
type Operation int

// Recorded operations.
const (
	OpOpen Operation = iota
	OpRead
	OpWrite
	OpFlush
	OpClose
	OpTask
)

var operationNames = [...]string{"open", "read", "write", "flush", "close", "task"}

// String returns the lowercase operation name.
func (op Operation) String() string {
	if op >= 0 && int(op) < len(operationNames) {
		return operationNames[op]
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// timing accumulates latencies of one operation.
type timing struct {
	count  int64
	errors int64
	total  time.Duration
	min    time.Duration
	max    time.Duration
}

// Collector aggregates operation metrics.
//
// Thread Safety:
//   - All public methods are thread-safe
//   - Counters are atomic; per-operation timings sit behind a mutex
type Collector struct {
	totalOperations atomic.Int64
	totalErrors     atomic.Int64
	panics          atomic.Int64
	samples         atomic.Int64

	mu             sync.RWMutex
	byOperation    map[Operation]*timing
	startTime      time.Time
	lastUpdateTime time.Time
}

// NewCollector creates a collector with all metrics at zero.
func NewCollector() *Collector {
	now := time.Now()
	return &Collector{
		byOperation:    make(map[Operation]*timing),
		startTime:      now,
		lastUpdateTime: now,
	}
}

// Record adds one operation that took d and finished with err.
func (c *Collector) Record(op Operation, d time.Duration, err error) {
	c.totalOperations.Add(1)
	if err != nil {
		c.totalErrors.Add(1)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.byOperation[op]
	if !ok {
		t = &timing{}
		c.byOperation[op] = t
	}
	t.count++
	if err != nil {
		t.errors++
	}
	t.total += d
	if t.min == 0 || d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
	c.lastUpdateTime = time.Now()
}

// RecordPanic counts a recovered panic.
func (c *Collector) RecordPanic() {
	c.panics.Add(1)
}

// RecordSamples counts n transferred samples.
func (c *Collector) RecordSamples(n int) {
	c.samples.Add(int64(n))
}

// OperationStats summarizes one operation in a Snapshot.
type OperationStats struct {
	Count  int64         `json:"count"`
	Errors int64         `json:"errors"`
	Avg    time.Duration `json:"avg"`
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
}

// Snapshot is a point-in-time copy of a Collector.
type Snapshot struct {
	TotalOperations     int64                        `json:"total_operations"`
	TotalErrors         int64                        `json:"total_errors"`
	Panics              int64                        `json:"panics"`
	Samples             int64                        `json:"samples"`
	ErrorRate           float64                      `json:"error_rate"`
	OperationsPerSecond float64                      `json:"operations_per_second"`
	ByOperation         map[Operation]OperationStats `json:"-"`
	Uptime              time.Duration                `json:"uptime"`
	LastUpdateTime      time.Time                    `json:"last_update_time"`
	SnapshotTime        time.Time                    `json:"snapshot_time"`
}

// Snapshot returns an immutable copy of the current metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	s := Snapshot{
		TotalOperations: c.totalOperations.Load(),
		TotalErrors:     c.totalErrors.Load(),
		Panics:          c.panics.Load(),
		Samples:         c.samples.Load(),
		ByOperation:     make(map[Operation]OperationStats, len(c.byOperation)),
		Uptime:          now.Sub(c.startTime),
		LastUpdateTime:  c.lastUpdateTime,
		SnapshotTime:    now,
	}

	for op, t := range c.byOperation {
		st := OperationStats{Count: t.count, Errors: t.errors, Min: t.min, Max: t.max}
		if t.count > 0 {
			st.Avg = t.total / time.Duration(t.count)
		}
		s.ByOperation[op] = st
	}

	if s.TotalOperations > 0 {
		s.ErrorRate = float64(s.TotalErrors) / float64(s.TotalOperations)
	}
	if secs := s.Uptime.Seconds(); secs > 0 {
		s.OperationsPerSecond = float64(s.TotalOperations) / secs
	}
	return s
}

// Reset zeroes every metric and restarts the uptime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalOperations.Store(0)
	c.totalErrors.Store(0)
	c.panics.Store(0)
	c.samples.Store(0)
	c.byOperation = make(map[Operation]*timing)
	c.startTime = time.Now()
	c.lastUpdateTime = c.startTime
}

// String returns a human-readable summary.
//
// Example Output:
//
//	Raster I/O Metrics
//	==================
//	Operations: 1,024 (512.0 ops/sec)
//	  - read: 1000 (avg: 120µs, min: 80µs, max: 2ms)
//	  - open: 24 (avg: 300µs, min: 200µs, max: 1ms)
//	Errors: 0
//	Uptime: 0h 0m 2s
func (c *Collector) String() string {
	s := c.Snapshot()

	var sb strings.Builder
	sb.WriteString("Raster I/O Metrics\n")
	sb.WriteString("==================\n")

	fmt.Fprintf(&sb, "Operations: %d (%.1f ops/sec)\n", s.TotalOperations, s.OperationsPerSecond)
	for op := OpOpen; op <= OpTask; op++ {
		st, ok := s.ByOperation[op]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "  - %s: %d (avg: %v, min: %v, max: %v)\n", op, st.Count, st.Avg, st.Min, st.Max)
	}

	if s.TotalErrors > 0 {
		fmt.Fprintf(&sb, "Errors: %d (%.3f%% error rate)\n", s.TotalErrors, s.ErrorRate*100)
	} else {
		sb.WriteString("Errors: 0\n")
	}
	if s.Panics > 0 {
		fmt.Fprintf(&sb, "Panics: %d\n", s.Panics)
	}

	hours := int(s.Uptime.Hours())
	minutes := int(s.Uptime.Minutes()) % 60
	seconds := int(s.Uptime.Seconds()) % 60
	fmt.Fprintf(&sb, "Uptime: %dh %dm %ds\n", hours, minutes, seconds)

	return sb.String()
}

// MarshalJSON renders durations as strings and operations by name.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	type opJSON struct {
		Count  int64  `json:"count"`
		Errors int64  `json:"errors"`
		Avg    string `json:"avg"`
		Min    string `json:"min"`
		Max    string `json:"max"`
	}
	ops := make(map[string]opJSON, len(s.ByOperation))
	for op, st := range s.ByOperation {
		ops[op.String()] = opJSON{
			Count:  st.Count,
			Errors: st.Errors,
			Avg:    st.Avg.String(),
			Min:    st.Min.String(),
			Max:    st.Max.String(),
		}
	}

	type Alias Snapshot
	return json.Marshal(&struct {
		Uptime      string            `json:"uptime"`
		ByOperation map[string]opJSON `json:"by_operation"`
		*Alias
	}{
		Uptime:      s.Uptime.String(),
		ByOperation: ops,
		Alias:       (*Alias)(s),
	})
}
