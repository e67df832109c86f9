// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package h5 stores rasters in HDF5 files through github.com/scigolib/hdf5.
//
// A raster is the 3-D dataset "/raster" with dimensions {bands, height,
// width}, described by attributes on that dataset. Read-only handles read
// windows straight from the file with hyperslab selections. Update handles
// hold the pixels in memory and rewrite the whole file on Flush, because
// the HDF5 writer only writes complete datasets.
package h5

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/scigolib/hdf5"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/utils"
)

// Name is the format name of the HDF5 driver.
const Name = "HDF5"

const (
	datasetPath = "/raster"

	attrShape        = "shape"
	attrSampleType   = "sample_type"
	attrProjection   = "projection"
	attrGeoTransform = "geotransform"
)

var signature = []byte("\x89HDF\r\n\x1a\n")

// Driver is the HDF5 driver. The zero value is ready to use.
type Driver struct{}

// New returns an HDF5 driver.
func New() *Driver { return &Driver{} }

// Name implements driver.Driver.
func (*Driver) Name() string { return Name }

// Extensions implements driver.Driver.
func (*Driver) Extensions() []string { return []string{".h5", ".hdf5"} }

// Identify reports whether path starts with the HDF5 signature.
func (*Driver) Identify(path string) bool {
	//nolint:gosec // G304: user-provided path is intentional for a raster library
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, len(signature))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, signature)
}

// storageType picks the on-disk HDF5 type for a sample type. The reader
// decodes float32, float64 and int32 datasets, so every other integer type
// is widened to float64, which holds it exactly.
func storageType(t driver.SampleType) hdf5.Datatype {
	switch t {
	case driver.Float32:
		return hdf5.Float32
	case driver.Int32:
		return hdf5.Int32
	default:
		return hdf5.Float64
	}
}

// Open opens an existing HDF5 raster.
func (*Driver) Open(path string, access driver.Access) (driver.Dataset, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrOpen, path, err)
	}

	ds, err := load(f, path, access)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrOpen, path, err)
	}
	return ds, nil
}

func load(f *hdf5.File, path string, access driver.Access) (*dataset, error) {
	var raster *hdf5.Dataset
	f.Walk(func(p string, obj hdf5.Object) {
		if d, ok := obj.(*hdf5.Dataset); ok && p == datasetPath {
			raster = d
		}
	})
	if raster == nil {
		return nil, fmt.Errorf("dataset %s not found", datasetPath)
	}

	md, err := readMetadata(raster)
	if err != nil {
		return nil, err
	}

	ds := &dataset{path: path, md: md, access: access, file: f, raster: raster}
	if access == driver.ReadOnly {
		return ds, nil
	}

	// Update handles own the pixels; the file is rewritten on Flush.
	ds.bands = make([][]float64, md.Bands)
	for b := range ds.bands {
		buf, err := ds.readWindow(b+1, 0, 0, md.Width, md.Height)
		if err != nil {
			return nil, err
		}
		ds.bands[b] = buf.Data
	}
	ds.file, ds.raster = nil, nil
	if err := f.Close(); err != nil {
		return nil, err
	}
	return ds, nil
}

func readMetadata(raster *hdf5.Dataset) (driver.Metadata, error) {
	md := driver.Metadata{GeoTransform: driver.DefaultGeoTransform, Driver: Name}

	shapeVal, err := raster.ReadAttribute(attrShape)
	if err != nil {
		return md, err
	}
	shape, err := toInts(shapeVal)
	if err != nil || len(shape) != 3 {
		return md, fmt.Errorf("attribute %s: want 3 integers, got %v", attrShape, shapeVal)
	}
	md.Bands, md.Height, md.Width = int(shape[0]), int(shape[1]), int(shape[2])
	if _, err := utils.DatasetBytes(md.Width, md.Height, md.Bands, 1); err != nil {
		return md, fmt.Errorf("attribute %s: %w", attrShape, err)
	}

	typeVal, err := raster.ReadAttribute(attrSampleType)
	if err != nil {
		return md, err
	}
	name, err := toString(typeVal)
	if err != nil {
		return md, fmt.Errorf("attribute %s: %w", attrSampleType, err)
	}
	if md.SampleType, err = driver.ParseSampleType(name); err != nil {
		return md, err
	}

	if v, err := raster.ReadAttribute(attrGeoTransform); err == nil {
		gt, ok := v.([]float64)
		if !ok || len(gt) != 6 {
			return md, fmt.Errorf("attribute %s: want 6 doubles, got %v", attrGeoTransform, v)
		}
		copy(md.GeoTransform[:], gt)
	}
	if v, err := raster.ReadAttribute(attrProjection); err == nil {
		if md.Projection, err = toString(v); err != nil {
			return md, fmt.Errorf("attribute %s: %w", attrProjection, err)
		}
	}
	return md, nil
}

func toInts(v interface{}) ([]int64, error) {
	switch x := v.(type) {
	case []int64:
		return x, nil
	case []int32:
		out := make([]int64, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out, nil
	case int64:
		return []int64{x}, nil
	case int32:
		return []int64{int64(x)}, nil
	default:
		return nil, fmt.Errorf("unexpected attribute type %T", v)
	}
}

func toString(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []string:
		if len(x) == 1 {
			return x[0], nil
		}
	}
	return "", fmt.Errorf("unexpected attribute type %T", v)
}

// Create writes a zero-filled raster file.
func (*Driver) Create(path string, opts driver.CreateOptions) (driver.Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}
	if _, err := utils.DatasetBytes(opts.Width, opts.Height, opts.Bands, 8); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}

	ds := &dataset{
		path: path,
		md: driver.Metadata{
			Width:        opts.Width,
			Height:       opts.Height,
			Bands:        opts.Bands,
			SampleType:   opts.SampleType,
			GeoTransform: driver.DefaultGeoTransform,
			Driver:       Name,
		},
		access: driver.Update,
		bands:  make([][]float64, opts.Bands),
	}
	for b := range ds.bands {
		ds.bands[b] = make([]float64, opts.Width*opts.Height)
	}

	if err := ds.rewrite(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}
	return ds, nil
}

// dataset is one handle on an HDF5 raster. Exactly one of (file, raster)
// or bands is populated, depending on access.
type dataset struct {
	path   string
	md     driver.Metadata
	access driver.Access
	closed bool
	dirty  bool

	file   *hdf5.File
	raster *hdf5.Dataset

	bands [][]float64
}

func (ds *dataset) Metadata() (driver.Metadata, error) {
	if ds.closed {
		return driver.Metadata{}, driver.ErrNotOpen
	}
	return ds.md, nil
}

func (ds *dataset) ReadBand(band, xOff, yOff, xSize, ySize int) (*driver.Buffer, error) {
	if ds.closed {
		return nil, driver.ErrNotOpen
	}
	if err := driver.CheckWindow(ds.md, band, xOff, yOff, xSize, ySize); err != nil {
		return nil, err
	}

	if ds.bands == nil {
		return ds.readWindow(band, xOff, yOff, xSize, ySize)
	}

	out := driver.NewBuffer(xSize, ySize)
	src := ds.bands[band-1]
	for y := 0; y < ySize; y++ {
		start := (yOff+y)*ds.md.Width + xOff
		copy(out.Row(y), src[start:start+xSize])
	}
	return out, nil
}

// readWindow reads a window from the open file with a hyperslab selection.
func (ds *dataset) readWindow(band, xOff, yOff, xSize, ySize int) (*driver.Buffer, error) {
	start := []uint64{uint64(band - 1), uint64(yOff), uint64(xOff)}
	count := []uint64{1, uint64(ySize), uint64(xSize)}

	raw, err := ds.raster.ReadSlice(start, count)
	if err != nil {
		return nil, utils.WrapError("HDF5 hyperslab read failed", err)
	}

	var data []float64
	switch v := raw.(type) {
	case []float64:
		data = v
	case []float32:
		data = make([]float64, len(v))
		for i, f := range v {
			data[i] = float64(f)
		}
	case []int32:
		data = make([]float64, len(v))
		for i, n := range v {
			data[i] = float64(n)
		}
	default:
		return nil, fmt.Errorf("unexpected hyperslab type %T", raw)
	}

	buf, err := driver.NewBufferFrom(xSize, ySize, data)
	if err != nil {
		return nil, utils.WrapError("HDF5 hyperslab shape", err)
	}
	return buf, nil
}

func (ds *dataset) WriteBand(band, xOff, yOff int, data *driver.Buffer) error {
	if err := ds.writable(); err != nil {
		return err
	}
	if err := driver.CheckWrite(ds.md, band, xOff, yOff, data); err != nil {
		return err
	}

	dst := ds.bands[band-1]
	for y := 0; y < data.YSize; y++ {
		start := (yOff+y)*ds.md.Width + xOff
		for x, v := range data.Row(y) {
			dst[start+x] = ds.md.SampleType.Quantize(v)
		}
	}
	ds.dirty = true
	return nil
}

func (ds *dataset) SetProjection(wkt string) error {
	if err := ds.writable(); err != nil {
		return err
	}
	ds.md.Projection = wkt
	ds.dirty = true
	return nil
}

func (ds *dataset) SetGeoTransform(gt driver.GeoTransform) error {
	if err := ds.writable(); err != nil {
		return err
	}
	ds.md.GeoTransform = gt
	ds.dirty = true
	return nil
}

func (ds *dataset) Flush() error {
	if ds.closed {
		return driver.ErrNotOpen
	}
	if !ds.dirty {
		return nil
	}
	if err := ds.rewrite(); err != nil {
		return utils.WrapError("HDF5 rewrite failed", err)
	}
	ds.dirty = false
	return nil
}

// rewrite replaces the file with the in-memory raster.
func (ds *dataset) rewrite() error {
	fw, err := hdf5.CreateForWrite(ds.path, hdf5.CreateTruncate)
	if err != nil {
		return err
	}

	if err := ds.writeRaster(fw); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func (ds *dataset) writeRaster(fw *hdf5.FileWriter) error {
	md := ds.md
	dims := []uint64{uint64(md.Bands), uint64(md.Height), uint64(md.Width)}

	dw, err := fw.CreateDataset(datasetPath, storageType(md.SampleType), dims)
	if err != nil {
		return err
	}

	n := md.Width * md.Height
	switch storageType(md.SampleType) {
	case hdf5.Float32:
		out := make([]float32, 0, n*md.Bands)
		for _, band := range ds.bands {
			for _, v := range band {
				out = append(out, float32(v))
			}
		}
		err = dw.Write(out)
	case hdf5.Int32:
		out := make([]int32, 0, n*md.Bands)
		for _, band := range ds.bands {
			for _, v := range band {
				out = append(out, int32(v))
			}
		}
		err = dw.Write(out)
	default:
		out := make([]float64, 0, n*md.Bands)
		for _, band := range ds.bands {
			out = append(out, band...)
		}
		err = dw.Write(out)
	}
	if err != nil {
		return err
	}

	attrs := []struct {
		name  string
		value interface{}
	}{
		{attrShape, []int64{int64(md.Bands), int64(md.Height), int64(md.Width)}},
		{attrSampleType, md.SampleType.String()},
		{attrGeoTransform, append([]float64(nil), md.GeoTransform[:]...)},
	}
	if md.Projection != "" {
		attrs = append(attrs, struct {
			name  string
			value interface{}
		}{attrProjection, md.Projection})
	}
	for _, a := range attrs {
		if err := dw.WriteAttribute(a.name, a.value); err != nil {
			return fmt.Errorf("attribute %s: %w", a.name, err)
		}
	}
	return dw.Close()
}

func (ds *dataset) Close() error {
	if ds.closed {
		return driver.ErrNotOpen
	}
	flushErr := ds.Flush()
	ds.closed = true
	if ds.file != nil {
		if err := ds.file.Close(); err != nil {
			return err
		}
		ds.file, ds.raster = nil, nil
	}
	ds.bands = nil
	return flushErr
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
