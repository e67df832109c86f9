// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package driver defines the dataset handle contract consumed by the
// concurrency layer, together with the buffer, sample type and error
// vocabulary every format driver shares.
//
// A Dataset is a stateful handle and is NOT safe for concurrent use.
// Callers either give each goroutine its own handle or serialize access.
package driver

import "fmt"

// Access is the mode a dataset is opened with.
type Access int

const (
	// ReadOnly opens an existing dataset for reading.
	ReadOnly Access = iota
	// Update opens an existing dataset for reading and writing.
	Update
)

// String implements fmt.Stringer.
func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "read-only"
	case Update:
		return "update"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// Metadata describes an open dataset.
type Metadata struct {
	Width        int
	Height       int
	Bands        int
	SampleType   SampleType
	Projection   string
	GeoTransform GeoTransform
	Driver       string
}

// CreateOptions describes a dataset to be created.
type CreateOptions struct {
	Width      int
	Height     int
	Bands      int
	SampleType SampleType
}

// Validate checks that every dimension is positive and the type is known.
func (o CreateOptions) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: invalid raster size %dx%d", ErrOutOfRange, o.Width, o.Height)
	}
	if o.Bands <= 0 {
		return fmt.Errorf("%w: invalid band count %d", ErrOutOfRange, o.Bands)
	}
	if !o.SampleType.Valid() {
		return fmt.Errorf("%w: invalid sample type %v", ErrOutOfRange, o.SampleType)
	}
	return nil
}

// Dataset is one open handle on a raster dataset.
//
// Bands are 1-indexed. After Close every method returns ErrNotOpen.
type Dataset interface {
	Metadata() (Metadata, error)
	ReadBand(band, xOff, yOff, xSize, ySize int) (*Buffer, error)
	WriteBand(band, xOff, yOff int, data *Buffer) error
	SetProjection(wkt string) error
	SetGeoTransform(gt GeoTransform) error
	Flush() error
	Close() error
}

// Driver opens and creates datasets of one format.
type Driver interface {
	// Name is the short format name, e.g. "GTiff".
	Name() string
	// Extensions lists file extensions including the dot, preferred first.
	Extensions() []string
	// Identify reports whether path looks like a dataset of this format.
	Identify(path string) bool
	Open(path string, access Access) (Dataset, error)
	Create(path string, opts CreateOptions) (Dataset, error)
}
