// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/metrics"
	"github.com/scigolib/raster/internal/utils"
)

// Reader gives many goroutines concurrent read access to one raster.
//
// The shared handle opened by Open serves metadata only. Block reads go
// through per-worker handles: a goroutine identified by a *Worker in its
// context gets its own handle, opened on first use and released when the
// worker exits or the Reader is closed. Reads without a worker open and close
// a private handle around each call.
type Reader struct {
	path string
	opts options
	log  *logrus.Entry

	drvMu sync.Mutex
	drv   driver.Driver

	mu     sync.Mutex
	shared driver.Dataset
	md     driver.Metadata

	closed atomic.Bool

	slotsMu sync.Mutex
	slots   map[uint64]*slot
	live    atomic.Int64
}

// slot holds one worker's read handle. mu is uncontended except when Close
// races an in-flight read.
type slot struct {
	mu     sync.Mutex
	ds     driver.Dataset
	closed bool
}

// NewReader returns a Reader for path. Nothing is opened until Open or the
// first ReadBlock.
func NewReader(path string, opts ...Option) *Reader {
	o := buildOptions("reader", opts)
	return &Reader{
		path:  path,
		opts:  o,
		log:   o.logger.WithField("path", path),
		slots: make(map[uint64]*slot),
	}
}

// Path returns the dataset path.
func (r *Reader) Path() string {
	return r.path
}

// Open opens the shared metadata handle. Calling Open again is a no-op.
func (r *Reader) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return ErrClosed
	}
	if r.shared != nil {
		return nil
	}

	ds, err := r.openHandle()
	if err != nil {
		return err
	}
	md, err := ds.Metadata()
	if err != nil {
		_ = ds.Close()
		return utils.WrapError("read metadata of "+r.path, err)
	}

	r.shared = ds
	r.md = md
	r.log.WithField("driver", md.Driver).Debug("opened shared handle")
	return nil
}

// Metadata returns the metadata read by Open.
func (r *Reader) Metadata() (driver.Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return driver.Metadata{}, ErrClosed
	}
	if r.shared == nil {
		return driver.Metadata{}, fmt.Errorf("%w: reader for %s not opened", ErrNotReady, r.path)
	}
	return r.md, nil
}

// ReadBlock reads one window of a 1-indexed band.
func (r *Reader) ReadBlock(ctx context.Context, band int, b Block) (*driver.Buffer, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	buf, err := r.readBlock(ctx, band, b)
	if r.opts.metrics != nil {
		r.opts.metrics.Record(metrics.OpRead, time.Since(start), err)
		if err == nil {
			r.opts.metrics.RecordSamples(buf.Len())
		}
	}
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("read %s band %d block %v", r.path, band, b), err)
	}
	return buf, nil
}

func (r *Reader) readBlock(ctx context.Context, band int, b Block) (*driver.Buffer, error) {
	w, ok := WorkerFrom(ctx)
	if !ok {
		return r.readTransient(band, b)
	}

	s, err := r.slotFor(w)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		if r.closed.Load() {
			return nil, ErrClosed
		}
		// The worker exited before this call; its slot is gone.
		return r.readTransient(band, b)
	}
	if s.ds == nil {
		ds, err := r.openHandle()
		if err != nil {
			return nil, err
		}
		s.ds = ds
		r.live.Add(1)
		r.log.WithField("worker", w.ID()).Debug("opened worker handle")
	}
	return s.ds.ReadBand(band, b.XOff, b.YOff, b.XSize, b.YSize)
}

func (r *Reader) readTransient(band int, b Block) (_ *driver.Buffer, err error) {
	ds, err := r.openHandle()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := ds.Close(); err == nil {
			err = cerr
		}
	}()
	return ds.ReadBand(band, b.XOff, b.YOff, b.XSize, b.YSize)
}

// slotFor returns the slot of w, creating it and its exit hook on first use.
func (r *Reader) slotFor(w *Worker) (*slot, error) {
	r.slotsMu.Lock()
	if r.closed.Load() {
		r.slotsMu.Unlock()
		return nil, ErrClosed
	}
	s, ok := r.slots[w.ID()]
	if !ok {
		s = &slot{}
		r.slots[w.ID()] = s
	}
	r.slotsMu.Unlock()

	if !ok {
		id := w.ID()
		w.OnExit(func() { r.releaseSlot(id) })
	}
	return s, nil
}

func (r *Reader) releaseSlot(id uint64) {
	r.slotsMu.Lock()
	s := r.slots[id]
	delete(r.slots, id)
	r.slotsMu.Unlock()

	if s == nil {
		return
	}
	if err := r.closeSlot(s); err != nil {
		r.log.WithField("worker", id).WithError(err).Warn("closing worker handle failed")
	}
}

func (r *Reader) closeSlot(s *slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.ds == nil {
		return nil
	}
	err := s.ds.Close()
	s.ds = nil
	r.live.Add(-1)
	return err
}

// ReadFullBand reads a whole band. It needs the metadata from Open.
func (r *Reader) ReadFullBand(ctx context.Context, band int) (*driver.Buffer, error) {
	md, err := r.Metadata()
	if err != nil {
		return nil, err
	}
	return r.ReadBlock(ctx, band, Block{XSize: md.Width, YSize: md.Height})
}

// OpenHandles returns the number of worker handles currently open.
func (r *Reader) OpenHandles() int {
	return int(r.live.Load())
}

// Close releases the shared handle and every worker handle, waiting for
// in-flight reads. Later reads fail with ErrClosed. Close is idempotent.
func (r *Reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	var errs []error

	r.mu.Lock()
	if r.shared != nil {
		errs = append(errs, r.shared.Close())
		r.shared = nil
	}
	r.mu.Unlock()

	r.slotsMu.Lock()
	slots := r.slots
	r.slots = make(map[uint64]*slot)
	r.slotsMu.Unlock()

	for _, s := range slots {
		errs = append(errs, r.closeSlot(s))
	}

	r.log.WithField("slots", len(slots)).Debug("reader closed")
	if err := errors.Join(errs...); err != nil {
		return utils.WrapError("close reader "+r.path, err)
	}
	return nil
}

func (r *Reader) resolveDriver() (driver.Driver, error) {
	r.drvMu.Lock()
	defer r.drvMu.Unlock()

	if r.drv != nil {
		return r.drv, nil
	}

	var (
		d   driver.Driver
		err error
	)
	if r.opts.driverName != "" {
		d, err = r.opts.registry.Lookup(r.opts.driverName)
	} else {
		d, err = r.opts.registry.ForPath(r.path)
	}
	if err != nil {
		return nil, err
	}
	r.drv = d
	return d, nil
}

func (r *Reader) openHandle() (driver.Dataset, error) {
	d, err := r.resolveDriver()
	if err != nil {
		return nil, utils.WrapError("open "+r.path, err)
	}

	start := time.Now()
	ds, err := d.Open(r.path, driver.ReadOnly)
	if r.opts.metrics != nil {
		r.opts.metrics.Record(metrics.OpOpen, time.Since(start), err)
	}
	if err != nil {
		return nil, utils.WrapError("open "+r.path, err)
	}
	return ds, nil
}
