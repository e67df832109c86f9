// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package ers implements the ER Mapper raster format: a text header
// (".ers") describing a headerless band-interleaved-by-line data file
// stored next to it without the extension. The projection, which ERS
// headers can only name, is kept as WKT in a ".prj" sidecar.
package ers

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/rawfile"
	"github.com/scigolib/raster/internal/utils"
)

// Name is the format name of the ERS driver.
const Name = "ERS"

// Extension is the header file extension.
const Extension = ".ers"

const signature = "DatasetHeader"

// Driver is the ERS driver. The zero value is ready to use.
type Driver struct{}

// New returns an ERS driver.
func New() *Driver { return &Driver{} }

// Name implements driver.Driver.
func (*Driver) Name() string { return Name }

// Extensions implements driver.Driver.
func (*Driver) Extensions() []string { return []string{Extension} }

// Identify reports whether path is an ERS header.
func (*Driver) Identify(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), Extension) {
		return false
	}
	//nolint:gosec // G304: user-provided path is intentional for a raster library
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 64)
	n, _ := io.ReadFull(f, head)
	return bytes.HasPrefix(bytes.TrimLeft(head[:n], " \t\r\n"), []byte(signature))
}

// dataFileIn resolves a header DataFile against dir. It must name a file
// inside dir.
func dataFileIn(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" ||
		clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("DataFile %q escapes the header directory", name)
	}
	return filepath.Join(dir, clean), nil
}

func dataPathFor(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func prjPathFor(path string) string {
	return dataPathFor(path) + ".prj"
}

// Open opens an existing ERS dataset.
func (*Driver) Open(path string, access driver.Access) (driver.Dataset, error) {
	//nolint:gosec // G304: user-provided path is intentional for a raster library
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrOpen, path, err)
	}
	hdr, err := parseHeader(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: invalid ERS header: %w", driver.ErrOpen, path, err)
	}

	dataPath := dataPathFor(path)
	if hdr.DataFile != "" {
		if dataPath, err = dataFileIn(filepath.Dir(path), hdr.DataFile); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", driver.ErrOpen, path, err)
		}
	}

	data, err := rawfile.Open(dataPath, access)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrOpen, path, err)
	}

	want, err := utils.DatasetBytes(hdr.Width, hdr.Height, hdr.Bands, hdr.SampleType.Size())
	if err != nil {
		_ = data.Close()
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrOpen, path, err)
	}
	if size, err := data.Size(); err != nil || size < want {
		_ = data.Close()
		return nil, fmt.Errorf("%w: %s: data file holds %d bytes, header needs %d", driver.ErrOpen, path, size, want)
	}

	ds := &dataset{path: path, hdr: hdr, data: data, access: access}

	//nolint:gosec // G304: sidecar of a user-provided path
	if wkt, err := os.ReadFile(prjPathFor(path)); err == nil {
		ds.projection = strings.TrimSpace(string(wkt))
	}

	return ds, nil
}

// Create writes a header and a zero-filled data file.
func (*Driver) Create(path string, opts driver.CreateOptions) (driver.Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}
	if !strings.EqualFold(filepath.Ext(path), Extension) {
		return nil, fmt.Errorf("%w: %s: ERS header must use the %s extension", driver.ErrCreate, path, Extension)
	}

	size, err := utils.DatasetBytes(opts.Width, opts.Height, opts.Bands, opts.SampleType.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}

	hdr := &header{
		Width:      opts.Width,
		Height:     opts.Height,
		Bands:      opts.Bands,
		SampleType: opts.SampleType,
		Order:      binary.LittleEndian,
		Geo:        driver.DefaultGeoTransform,
	}
	if err := writeHeader(path, hdr); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}
	if err := os.Remove(prjPathFor(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}

	data, err := rawfile.Create(dataPathFor(path), size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}

	return &dataset{path: path, hdr: hdr, data: data, access: driver.Update}, nil
}

func writeHeader(path string, hdr *header) error {
	var buf bytes.Buffer
	if err := hdr.write(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o666)
}

// dataset is one handle on an ERS file pair.
type dataset struct {
	path       string
	hdr        *header
	data       *rawfile.File
	access     driver.Access
	projection string
	dirty      bool
}

func (ds *dataset) Metadata() (driver.Metadata, error) {
	if ds.data.Closed() {
		return driver.Metadata{}, driver.ErrNotOpen
	}
	return ds.metadata(), nil
}

func (ds *dataset) metadata() driver.Metadata {
	return driver.Metadata{
		Width:        ds.hdr.Width,
		Height:       ds.hdr.Height,
		Bands:        ds.hdr.Bands,
		SampleType:   ds.hdr.SampleType,
		Projection:   ds.projection,
		GeoTransform: ds.hdr.Geo,
		Driver:       Name,
	}
}

// offset returns the file position of sample (x, y) in band.
// Lines are stored band-interleaved: all of line 0 for band 1, then band 2...
func (ds *dataset) offset(band, x, y int) int64 {
	size := int64(ds.hdr.SampleType.Size())
	line := int64(y)*int64(ds.hdr.Bands) + int64(band-1)
	return (line*int64(ds.hdr.Width) + int64(x)) * size
}

func (ds *dataset) ReadBand(band, xOff, yOff, xSize, ySize int) (*driver.Buffer, error) {
	if ds.data.Closed() {
		return nil, driver.ErrNotOpen
	}
	if err := driver.CheckWindow(ds.metadata(), band, xOff, yOff, xSize, ySize); err != nil {
		return nil, err
	}

	typ := ds.hdr.SampleType
	row := utils.GetBuffer(xSize * typ.Size())
	defer utils.ReleaseBuffer(row)

	out := driver.NewBuffer(xSize, ySize)
	for y := 0; y < ySize; y++ {
		if _, err := ds.data.ReadAt(row, ds.offset(band, xOff, yOff+y)); err != nil {
			return nil, utils.WrapError("ERS line read failed", err)
		}
		if err := utils.DecodeSamples(out.Row(y), row, typ, ds.hdr.Order); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (ds *dataset) WriteBand(band, xOff, yOff int, data *driver.Buffer) error {
	if err := ds.writable(); err != nil {
		return err
	}
	if err := driver.CheckWrite(ds.metadata(), band, xOff, yOff, data); err != nil {
		return err
	}

	typ := ds.hdr.SampleType
	row := utils.GetBuffer(data.XSize * typ.Size())
	defer utils.ReleaseBuffer(row)

	for y := 0; y < data.YSize; y++ {
		if err := utils.EncodeSamples(row, data.Row(y), typ, ds.hdr.Order); err != nil {
			return err
		}
		if _, err := ds.data.WriteAt(row, ds.offset(band, xOff, yOff+y)); err != nil {
			return utils.WrapError("ERS line write failed", err)
		}
	}
	return nil
}

func (ds *dataset) SetProjection(wkt string) error {
	if err := ds.writable(); err != nil {
		return err
	}
	ds.projection = wkt
	ds.dirty = true
	return nil
}

// SetGeoTransform stores a north-up transform. ERS registration has no
// rotation terms, so rotated transforms are rejected.
func (ds *dataset) SetGeoTransform(gt driver.GeoTransform) error {
	if err := ds.writable(); err != nil {
		return err
	}
	if !gt.IsNorthUp() {
		return fmt.Errorf("%w: ERS cannot store a rotated geotransform", driver.ErrOutOfRange)
	}
	ds.hdr.Geo = gt
	ds.dirty = true
	return nil
}

// Flush rewrites the header and sidecar if georeferencing changed, then
// syncs the data file.
func (ds *dataset) Flush() error {
	if ds.data.Closed() {
		return driver.ErrNotOpen
	}
	if ds.access != driver.Update {
		return nil
	}

	if ds.dirty {
		if err := writeHeader(ds.path, ds.hdr); err != nil {
			return utils.WrapError("ERS header write failed", err)
		}
		if err := ds.writeProjection(); err != nil {
			return utils.WrapError("ERS projection write failed", err)
		}
		ds.dirty = false
	}
	return ds.data.Flush()
}

func (ds *dataset) writeProjection() error {
	prj := prjPathFor(ds.path)
	if ds.projection == "" {
		if err := os.Remove(prj); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return os.WriteFile(prj, []byte(ds.projection+"\n"), 0o666)
}

func (ds *dataset) Close() error {
	if ds.data.Closed() {
		return driver.ErrNotOpen
	}
	flushErr := ds.Flush()
	if err := ds.data.Close(); err != nil {
		return err
	}
	return flushErr
}

func (ds *dataset) writable() error {
	if ds.data.Closed() {
		return driver.ErrNotOpen
	}
	if ds.access != driver.Update {
		return driver.ErrReadOnly
	}
	return nil
}
