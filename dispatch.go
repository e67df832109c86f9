// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scigolib/raster/internal/metrics"
)

// Outcome is the result of one block's task: Value on success, Err otherwise.
type Outcome[T any] struct {
	Block Block
	Value T
	Err   error
}

// DispatcherStats are cumulative task counts for a Dispatcher.
type DispatcherStats struct {
	Submitted uint64
	Succeeded uint64
	Failed    uint64
}

// Dispatcher runs per-block tasks on a bounded pool of worker goroutines.
// A Dispatcher may run several batches, sequentially or concurrently; each
// batch gets its own pool.
type Dispatcher struct {
	workers int
	opts    options

	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher returns a dispatcher. It honors WithWorkers, WithLogger and
// WithMetrics.
func NewDispatcher(opts ...Option) *Dispatcher {
	o := buildOptions("dispatcher", opts)
	return &Dispatcher{workers: o.workers, opts: o}
}

// Workers returns the pool bound.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Stats returns cumulative counts over every batch run so far.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Submitted: d.submitted.Load(),
		Succeeded: d.succeeded.Load(),
		Failed:    d.failed.Load(),
	}
}

// ProcessBlocks applies op to every block on min(workers, len(blocks))
// goroutines and returns one Outcome per block, in completion order.
//
// Each goroutine carries its own *Worker in the context passed to op, and
// runs the worker's exit hooks when it finishes. An op that returns an error
// or panics yields an Outcome whose Err is a *TaskError; the remaining blocks
// still run. ProcessBlocks does not return until every task has finished.
func ProcessBlocks[T any](ctx context.Context, d *Dispatcher, blocks []Block, op func(ctx context.Context, b Block) (T, error)) []Outcome[T] {
	if len(blocks) == 0 {
		return nil
	}
	d.submitted.Add(uint64(len(blocks)))

	jobs := make(chan Block)
	var (
		mu  sync.Mutex
		out = make([]Outcome[T], 0, len(blocks))
	)

	var wg sync.WaitGroup
	for range min(d.workers, len(blocks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := NewWorker()
			defer w.Exit()
			wctx := WithWorker(ctx, w)

			for b := range jobs {
				res := runTask(wctx, d, w, b, op)
				mu.Lock()
				out = append(out, res)
				mu.Unlock()
			}
		}()
	}

	for _, b := range blocks {
		jobs <- b
	}
	close(jobs)
	wg.Wait()

	return out
}

func runTask[T any](ctx context.Context, d *Dispatcher, w *Worker, b Block, op func(context.Context, Block) (T, error)) (res Outcome[T]) {
	res.Block = b
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			var zero T
			res.Value = zero
			res.Err = &TaskError{Block: b, Err: fmt.Errorf("%w: %v", ErrTaskPanic, r)}
			if d.opts.metrics != nil {
				d.opts.metrics.RecordPanic()
			}
		}
		d.finish(w, res.Block, res.Err, time.Since(start))
	}()

	v, err := op(ctx, b)
	if err != nil {
		res.Err = &TaskError{Block: b, Err: err}
		return res
	}
	res.Value = v
	return res
}

func (d *Dispatcher) finish(w *Worker, b Block, err error, elapsed time.Duration) {
	if d.opts.metrics != nil {
		d.opts.metrics.Record(metrics.OpTask, elapsed, err)
	}
	if err == nil {
		d.succeeded.Add(1)
		return
	}
	d.failed.Add(1)
	d.opts.logger.WithFields(logrus.Fields{
		"worker": w.ID(),
		"block":  b.String(),
	}).WithError(err).Warn("block task failed")
}
