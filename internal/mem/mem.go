// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package mem implements an in-process raster driver. Datasets live in a
// path-keyed store for the lifetime of the driver value, so a dataset
// created through one handle can be reopened through another.
package mem

import (
	"fmt"
	"sync"

	"github.com/scigolib/raster/driver"
)

// Name is the format name of the in-memory driver.
const Name = "MEM"

// image is the shared pixel store behind every handle on one path.
// Distinct handles may touch it concurrently, so it carries its own lock.
type image struct {
	mu    sync.RWMutex
	md    driver.Metadata
	bands [][]float64
}

// Driver is the in-memory driver.
type Driver struct {
	mu     sync.Mutex
	images map[string]*image
}

// New returns a driver with an empty store.
func New() *Driver {
	return &Driver{images: make(map[string]*image)}
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return Name }

// Extensions implements driver.Driver. MEM datasets have no file extension.
func (d *Driver) Extensions() []string { return nil }

// Identify reports whether path exists in the store.
func (d *Driver) Identify(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.images[path]
	return ok
}

// Open returns a new handle on an existing in-memory dataset.
func (d *Driver) Open(path string, access driver.Access) (driver.Dataset, error) {
	d.mu.Lock()
	img, ok := d.images[path]
	d.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s: no such in-memory dataset", driver.ErrOpen, path)
	}
	return &dataset{img: img, access: access}, nil
}

// Create replaces any dataset at path with a zero-filled one.
func (d *Driver) Create(path string, opts driver.CreateOptions) (driver.Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}

	img := &image{
		md: driver.Metadata{
			Width:        opts.Width,
			Height:       opts.Height,
			Bands:        opts.Bands,
			SampleType:   opts.SampleType,
			GeoTransform: driver.DefaultGeoTransform,
			Driver:       Name,
		},
		bands: make([][]float64, opts.Bands),
	}
	for i := range img.bands {
		img.bands[i] = make([]float64, opts.Width*opts.Height)
	}

	d.mu.Lock()
	d.images[path] = img
	d.mu.Unlock()

	return &dataset{img: img, access: driver.Update}, nil
}

// Remove deletes path from the store. Open handles keep working on the
// detached image until closed.
func (d *Driver) Remove(path string) {
	d.mu.Lock()
	delete(d.images, path)
	d.mu.Unlock()
}

// dataset is one handle on an image.
type dataset struct {
	img    *image
	access driver.Access
	closed bool
}

func (ds *dataset) Metadata() (driver.Metadata, error) {
	if ds.closed {
		return driver.Metadata{}, driver.ErrNotOpen
	}
	ds.img.mu.RLock()
	defer ds.img.mu.RUnlock()
	return ds.img.md, nil
}

func (ds *dataset) ReadBand(band, xOff, yOff, xSize, ySize int) (*driver.Buffer, error) {
	if ds.closed {
		return nil, driver.ErrNotOpen
	}

	ds.img.mu.RLock()
	defer ds.img.mu.RUnlock()

	if err := driver.CheckWindow(ds.img.md, band, xOff, yOff, xSize, ySize); err != nil {
		return nil, err
	}

	out := driver.NewBuffer(xSize, ySize)
	src := ds.img.bands[band-1]
	width := ds.img.md.Width
	for y := 0; y < ySize; y++ {
		start := (yOff+y)*width + xOff
		copy(out.Row(y), src[start:start+xSize])
	}
	return out, nil
}

func (ds *dataset) WriteBand(band, xOff, yOff int, data *driver.Buffer) error {
	if err := ds.writable(); err != nil {
		return err
	}

	ds.img.mu.Lock()
	defer ds.img.mu.Unlock()

	if err := driver.CheckWrite(ds.img.md, band, xOff, yOff, data); err != nil {
		return err
	}

	dst := ds.img.bands[band-1]
	width := ds.img.md.Width
	typ := ds.img.md.SampleType
	for y := 0; y < data.YSize; y++ {
		row := data.Row(y)
		start := (yOff+y)*width + xOff
		for x, v := range row {
			dst[start+x] = typ.Quantize(v)
		}
	}
	return nil
}

func (ds *dataset) SetProjection(wkt string) error {
	if err := ds.writable(); err != nil {
		return err
	}
	ds.img.mu.Lock()
	ds.img.md.Projection = wkt
	ds.img.mu.Unlock()
	return nil
}

func (ds *dataset) SetGeoTransform(gt driver.GeoTransform) error {
	if err := ds.writable(); err != nil {
		return err
	}
	ds.img.mu.Lock()
	ds.img.md.GeoTransform = gt
	ds.img.mu.Unlock()
	return nil
}

func (ds *dataset) Flush() error {
	if ds.closed {
		return driver.ErrNotOpen
	}
	return nil
}

func (ds *dataset) Close() error {
	if ds.closed {
		return driver.ErrNotOpen
	}
	ds.closed = true
	return nil
}

func (ds *dataset) writable() error {
	if ds.closed {
		return driver.ErrNotOpen
	}
	if ds.access != driver.Update {
		return driver.ErrReadOnly
	}
	return nil
}
