// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"context"
	"sync"
	"sync/atomic"
)

var workerIDs atomic.Uint64

// Worker identifies one goroutine of a dispatcher pool. Components that keep
// per-goroutine state, such as Reader's handle slots, key it on the worker
// and register an exit hook to release it.
type Worker struct {
	id uint64

	mu     sync.Mutex
	hooks  []func()
	exited bool
}

// NewWorker returns a worker with a process-unique ID.
// Dispatcher creates workers itself; callers running their own goroutines
// can create one per goroutine and call Exit when it finishes.
func NewWorker() *Worker {
	return &Worker{id: workerIDs.Add(1)}
}

// ID returns the worker's process-unique identifier.
func (w *Worker) ID() uint64 {
	return w.id
}

// OnExit registers fn to run when the worker exits. If the worker has
// already exited fn runs immediately.
func (w *Worker) OnExit(fn func()) {
	w.mu.Lock()
	if !w.exited {
		w.hooks = append(w.hooks, fn)
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	fn()
}

// Exit runs the registered hooks in reverse order of registration.
// Only the first call has an effect.
func (w *Worker) Exit() {
	w.mu.Lock()
	if w.exited {
		w.mu.Unlock()
		return
	}
	w.exited = true
	hooks := w.hooks
	w.hooks = nil
	w.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

type workerKey struct{}

// WithWorker returns a context carrying w.
func WithWorker(ctx context.Context, w *Worker) context.Context {
	return context.WithValue(ctx, workerKey{}, w)
}

// WorkerFrom returns the worker carried by ctx, if any.
func WorkerFrom(ctx context.Context) (*Worker, bool) {
	w, ok := ctx.Value(workerKey{}).(*Worker)
	return w, ok && w != nil
}
