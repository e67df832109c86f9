// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"fmt"
	"math"
	"time"
)

// BenchmarkStats summarizes the timings of a Benchmark run.
// StdDev is the population standard deviation.
type BenchmarkStats struct {
	Iterations int
	Mean       time.Duration
	StdDev     time.Duration
	Min        time.Duration
	Max        time.Duration
	Total      time.Duration
}

// String formats the stats on one line.
func (s BenchmarkStats) String() string {
	return fmt.Sprintf("%d iterations: mean=%v stddev=%v min=%v max=%v",
		s.Iterations, s.Mean, s.StdDev, s.Min, s.Max)
}

// Benchmark calls op iterations times, one after another, and times each
// call. The first error from op aborts the run and is returned.
func Benchmark(iterations int, op func() error) (BenchmarkStats, error) {
	if iterations < 1 {
		return BenchmarkStats{}, fmt.Errorf("%w: iterations %d must be at least 1", ErrOutOfRange, iterations)
	}

	samples := make([]time.Duration, 0, iterations)
	for i := range iterations {
		start := time.Now()
		if err := op(); err != nil {
			return BenchmarkStats{}, fmt.Errorf("benchmark iteration %d: %w", i, err)
		}
		samples = append(samples, time.Since(start))
	}
	return summarize(samples), nil
}

func summarize(samples []time.Duration) BenchmarkStats {
	s := BenchmarkStats{
		Iterations: len(samples),
		Min:        samples[0],
		Max:        samples[0],
	}
	for _, d := range samples {
		s.Total += d
		s.Min = min(s.Min, d)
		s.Max = max(s.Max, d)
	}

	mean := float64(s.Total) / float64(len(samples))
	var sq float64
	for _, d := range samples {
		diff := float64(d) - mean
		sq += diff * diff
	}
	s.Mean = time.Duration(mean)
	s.StdDev = time.Duration(math.Sqrt(sq / float64(len(samples))))
	return s
}
