// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

//go:build godal

// Package gdal exposes GDAL format drivers through github.com/airbusgeo/godal.
// It needs cgo and a GDAL installation, so it is only built with the
// "godal" build tag.
package gdal

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/scigolib/raster/driver"
)

var registerOnce sync.Once

// Driver wraps one GDAL format driver.
type Driver struct {
	format godal.DriverName
	exts   []string
}

// New returns a driver for the named GDAL format, e.g. godal.GTiff.
func New(format godal.DriverName, exts ...string) *Driver {
	registerOnce.Do(godal.RegisterAll)
	return &Driver{format: format, exts: exts}
}

// Name is "GDAL-" followed by the GDAL short name, so the wrapped drivers
// can be registered next to the native ones.
func (d *Driver) Name() string { return "GDAL-" + string(d.format) }

// Extensions implements driver.Driver.
func (d *Driver) Extensions() []string { return d.exts }

// Identify reports whether GDAL can open path as a raster.
func (d *Driver) Identify(path string) bool {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return false
	}
	_ = ds.Close()
	return true
}

var dataTypes = map[driver.SampleType]godal.DataType{
	driver.Byte:    godal.Byte,
	driver.Int16:   godal.Int16,
	driver.UInt16:  godal.UInt16,
	driver.Int32:   godal.Int32,
	driver.UInt32:  godal.UInt32,
	driver.Float32: godal.Float32,
	driver.Float64: godal.Float64,
}

func sampleTypeOf(dt godal.DataType) driver.SampleType {
	for st, gdt := range dataTypes {
		if gdt == dt {
			return st
		}
	}
	return driver.Unknown
}

// Open opens path through GDAL.
func (d *Driver) Open(path string, access driver.Access) (driver.Dataset, error) {
	opts := []godal.OpenOption{godal.RasterOnly()}
	if access == driver.Update {
		opts = append(opts, godal.Update())
	}

	ds, err := godal.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrOpen, path, err)
	}
	h := &dataset{ds: ds, access: access, name: d.Name()}
	if sampleTypeOf(ds.Structure().DataType) == driver.Unknown {
		_ = ds.Close()
		return nil, fmt.Errorf("%w: %s: unsupported GDAL data type %s", driver.ErrOpen, path, ds.Structure().DataType)
	}
	return h, nil
}

// Create creates path with the wrapped GDAL driver.
func (d *Driver) Create(path string, opts driver.CreateOptions) (driver.Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}

	ds, err := godal.Create(d.format, path, opts.Bands, dataTypes[opts.SampleType], opts.Width, opts.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}
	return &dataset{ds: ds, access: driver.Update, name: d.Name()}, nil
}

// dataset adapts a *godal.Dataset. GDAL converts between the band type and
// the float64 buffers on every transfer.
type dataset struct {
	ds     *godal.Dataset
	access driver.Access
	name   string
	closed bool
}

func (h *dataset) Metadata() (driver.Metadata, error) {
	if h.closed {
		return driver.Metadata{}, driver.ErrNotOpen
	}
	return h.metadata(), nil
}

func (h *dataset) metadata() driver.Metadata {
	st := h.ds.Structure()
	md := driver.Metadata{
		Width:        st.SizeX,
		Height:       st.SizeY,
		Bands:        st.NBands,
		SampleType:   sampleTypeOf(st.DataType),
		Projection:   h.ds.Projection(),
		GeoTransform: driver.DefaultGeoTransform,
		Driver:       h.name,
	}
	if gt, err := h.ds.GeoTransform(); err == nil {
		md.GeoTransform = gt
	}
	return md
}

func (h *dataset) ReadBand(band, xOff, yOff, xSize, ySize int) (*driver.Buffer, error) {
	if h.closed {
		return nil, driver.ErrNotOpen
	}
	if err := driver.CheckWindow(h.metadata(), band, xOff, yOff, xSize, ySize); err != nil {
		return nil, err
	}

	out := driver.NewBuffer(xSize, ySize)
	if err := h.ds.Bands()[band-1].Read(xOff, yOff, out.Data, xSize, ySize); err != nil {
		return nil, fmt.Errorf("GDAL read of band %d: %w", band, err)
	}
	return out, nil
}

func (h *dataset) WriteBand(band, xOff, yOff int, data *driver.Buffer) error {
	if err := h.writable(); err != nil {
		return err
	}
	if err := driver.CheckWrite(h.metadata(), band, xOff, yOff, data); err != nil {
		return err
	}
	if err := h.ds.Bands()[band-1].Write(xOff, yOff, data.Data, data.XSize, data.YSize); err != nil {
		return fmt.Errorf("GDAL write of band %d: %w", band, err)
	}
	return nil
}

func (h *dataset) SetProjection(wkt string) error {
	if err := h.writable(); err != nil {
		return err
	}
	return h.ds.SetProjection(wkt)
}

func (h *dataset) SetGeoTransform(gt driver.GeoTransform) error {
	if err := h.writable(); err != nil {
		return err
	}
	return h.ds.SetGeoTransform(gt)
}

// Flush is a no-op; GDAL writes cached blocks on Close.
func (h *dataset) Flush() error {
	if h.closed {
		return driver.ErrNotOpen
	}
	return nil
}

func (h *dataset) Close() error {
	if h.closed {
		return driver.ErrNotOpen
	}
	h.closed = true
	return h.ds.Close()
}

func (h *dataset) writable() error {
	if h.closed {
		return driver.ErrNotOpen
	}
	if h.access != driver.Update {
		return driver.ErrReadOnly
	}
	return nil
}
