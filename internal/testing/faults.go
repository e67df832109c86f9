// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package testing

import (
	"sync"
	"time"

	"github.com/scigolib/raster/driver"
)

// Window identifies one band transfer.
type Window struct {
	Band, XOff, YOff, XSize, YSize int
}

// Fault decides whether a transfer fails. A nil return lets it through.
type Fault func(w Window) error

// Option configures a FaultDriver.
type Option func(*FaultDriver)

// FailReads injects f into every ReadBand.
func FailReads(f Fault) Option {
	return func(d *FaultDriver) { d.readFault = f }
}

// FailWrites injects f into every WriteBand.
func FailWrites(f Fault) Option {
	return func(d *FaultDriver) { d.writeFault = f }
}

// FailOpen makes every Open return err.
func FailOpen(err error) Option {
	return func(d *FaultDriver) { d.openErr = err }
}

// Delay sleeps before each transfer to widen race windows.
func Delay(d time.Duration) Option {
	return func(f *FaultDriver) { f.delay = d }
}

// FaultDriver wraps a driver, counts live handles and injects faults.
// It registers under the wrapped driver's name.
type FaultDriver struct {
	driver.Driver

	readFault  Fault
	writeFault Fault
	openErr    error
	delay      time.Duration

	mu     sync.Mutex
	live   int
	opened int
}

// NewFaultDriver wraps inner.
func NewFaultDriver(inner driver.Driver, opts ...Option) *FaultDriver {
	d := &FaultDriver{Driver: inner}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open opens through the wrapped driver unless FailOpen is set.
func (d *FaultDriver) Open(path string, access driver.Access) (driver.Dataset, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	ds, err := d.Driver.Open(path, access)
	if err != nil {
		return nil, err
	}
	return d.track(ds), nil
}

// Create creates through the wrapped driver.
func (d *FaultDriver) Create(path string, opts driver.CreateOptions) (driver.Dataset, error) {
	ds, err := d.Driver.Create(path, opts)
	if err != nil {
		return nil, err
	}
	return d.track(ds), nil
}

func (d *FaultDriver) track(ds driver.Dataset) driver.Dataset {
	d.mu.Lock()
	d.live++
	d.opened++
	d.mu.Unlock()
	return &faultDataset{Dataset: ds, d: d}
}

// LiveHandles returns the number of handles opened and not yet closed.
func (d *FaultDriver) LiveHandles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// OpenedHandles returns the number of handles ever opened or created.
func (d *FaultDriver) OpenedHandles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

type faultDataset struct {
	driver.Dataset
	d      *FaultDriver
	closed bool
}

func (f *faultDataset) ReadBand(band, xOff, yOff, xSize, ySize int) (*driver.Buffer, error) {
	if f.d.delay > 0 {
		time.Sleep(f.d.delay)
	}
	if f.d.readFault != nil {
		if err := f.d.readFault(Window{band, xOff, yOff, xSize, ySize}); err != nil {
			return nil, err
		}
	}
	return f.Dataset.ReadBand(band, xOff, yOff, xSize, ySize)
}

func (f *faultDataset) WriteBand(band, xOff, yOff int, data *driver.Buffer) error {
	if f.d.delay > 0 {
		time.Sleep(f.d.delay)
	}
	if f.d.writeFault != nil {
		if err := f.d.writeFault(Window{band, xOff, yOff, data.XSize, data.YSize}); err != nil {
			return err
		}
	}
	return f.Dataset.WriteBand(band, xOff, yOff, data)
}

func (f *faultDataset) Close() error {
	err := f.Dataset.Close()
	if !f.closed {
		f.closed = true
		f.d.mu.Lock()
		f.d.live--
		f.d.mu.Unlock()
	}
	return err
}
