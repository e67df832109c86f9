// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package gtiff implements a GeoTIFF driver for uncompressed, stripped
// images.
//
// Datasets created here are little-endian, band-sequential (one strip per
// band) and keep their single IFD after the pixel data, so georeferencing
// updates only ever rewrite the file tail. Existing files in either byte
// order and either planar configuration can be read and updated in place.
// Compressed and tiled files are rejected at open.
package gtiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/rawfile"
	"github.com/scigolib/raster/internal/utils"
)

// Name is the format name of the GeoTIFF driver.
const Name = "GTiff"

const (
	planarChunky   = 1
	planarSeparate = 2

	photometricMinIsBlack = 1

	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3

	// maxClassicOffset keeps every offset representable in classic TIFF.
	maxClassicOffset = math.MaxUint32 - 1<<20
)

// Driver is the GeoTIFF driver. The zero value is ready to use.
type Driver struct{}

// New returns a GeoTIFF driver.
func New() *Driver { return &Driver{} }

// Name implements driver.Driver.
func (*Driver) Name() string { return Name }

// Extensions implements driver.Driver.
func (*Driver) Extensions() []string { return []string{".tif", ".tiff"} }

// Identify reports whether path starts with a classic TIFF signature.
func (*Driver) Identify(path string) bool {
	//nolint:gosec // G304: user-provided path is intentional for a raster library
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, 4)
	if _, err := f.ReadAt(magic, 0); err != nil {
		return false
	}
	return bytes.Equal(magic, []byte("II*\x00")) || bytes.Equal(magic, []byte("MM\x00*"))
}

// layout locates every sample of the image in the file.
type layout struct {
	width, height, bands int
	typ                  driver.SampleType
	planar               int
	photometric          uint16
	rowsPerStrip         int
	stripOffsets         []int64
}

func (l *layout) stripsPerBand() int {
	return (l.height + l.rowsPerStrip - 1) / l.rowsPerStrip
}

// stripBytes returns the encoded size of strip i.
func (l *layout) stripBytes(i int) int64 {
	first := (i % l.stripsPerBand()) * l.rowsPerStrip
	rows := min(l.rowsPerStrip, l.height-first)
	n := int64(rows) * int64(l.width) * int64(l.typ.Size())
	if l.planar == planarChunky {
		n *= int64(l.bands)
	}
	return n
}

// offset returns the file position of sample (x, y) of band.
func (l *layout) offset(band, x, y int) int64 {
	size := int64(l.typ.Size())
	row := int64(y % l.rowsPerStrip)
	if l.planar == planarSeparate {
		strip := (band-1)*l.stripsPerBand() + y/l.rowsPerStrip
		return l.stripOffsets[strip] + (row*int64(l.width)+int64(x))*size
	}
	strip := y / l.rowsPerStrip
	return l.stripOffsets[strip] + ((row*int64(l.width)+int64(x))*int64(l.bands)+int64(band-1))*size
}

func (l *layout) dataEnd() int64 {
	var end int64
	for i, off := range l.stripOffsets {
		end = max(end, off+l.stripBytes(i))
	}
	return end
}

func sampleTypeOf(format, bits uint64) (driver.SampleType, error) {
	switch {
	case format == sampleFormatUint && bits == 8:
		return driver.Byte, nil
	case format == sampleFormatInt && bits == 16:
		return driver.Int16, nil
	case format == sampleFormatUint && bits == 16:
		return driver.UInt16, nil
	case format == sampleFormatInt && bits == 32:
		return driver.Int32, nil
	case format == sampleFormatUint && bits == 32:
		return driver.UInt32, nil
	case format == sampleFormatFloat && bits == 32:
		return driver.Float32, nil
	case format == sampleFormatFloat && bits == 64:
		return driver.Float64, nil
	}
	return driver.Unknown, fmt.Errorf("unsupported sample format %d with %d bits", format, bits)
}

func sampleFormatOf(t driver.SampleType) uint16 {
	switch {
	case t.IsFloat():
		return sampleFormatFloat
	case t == driver.Int16 || t == driver.Int32:
		return sampleFormatInt
	default:
		return sampleFormatUint
	}
}

// parseLayout validates the image structure described by d.
func parseLayout(d *ifd, fileSize int64) (*layout, error) {
	if comp, err := d.uint(tagCompression, 1); err != nil || comp != 1 {
		return nil, fmt.Errorf("compression %d is not supported", comp)
	}
	if d.has(tagTileWidth) {
		return nil, fmt.Errorf("tiled TIFF is not supported")
	}

	width, err := d.uint(tagImageWidth, 0)
	if err != nil {
		return nil, err
	}
	height, err := d.uint(tagImageLength, 0)
	if err != nil {
		return nil, err
	}
	bands, err := d.uint(tagSamplesPerPixel, 1)
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 || bands == 0 || width > math.MaxInt32 || height > math.MaxInt32 || bands > math.MaxUint16 {
		return nil, fmt.Errorf("invalid image size %dx%dx%d", width, height, bands)
	}

	bits, err := d.uints(tagBitsPerSample)
	if err != nil {
		return nil, err
	}
	for _, b := range bits {
		if b != bits[0] {
			return nil, fmt.Errorf("mixed BitsPerSample %v", bits)
		}
	}
	format, err := d.uint(tagSampleFormat, sampleFormatUint)
	if err != nil {
		return nil, err
	}
	typ, err := sampleTypeOf(format, bits[0])
	if err != nil {
		return nil, err
	}

	planar, err := d.uint(tagPlanarConfig, planarChunky)
	if err != nil {
		return nil, err
	}
	if planar != planarChunky && planar != planarSeparate {
		return nil, fmt.Errorf("invalid PlanarConfiguration %d", planar)
	}
	photometric, err := d.uint(tagPhotometric, photometricMinIsBlack)
	if err != nil {
		return nil, err
	}

	rps, err := d.uint(tagRowsPerStrip, height)
	if err != nil {
		return nil, err
	}
	if rps == 0 || rps > height {
		rps = height
	}

	l := &layout{
		width:        int(width),
		height:       int(height),
		bands:        int(bands),
		typ:          typ,
		planar:       int(planar),
		photometric:  uint16(photometric),
		rowsPerStrip: int(rps),
	}
	if _, err := utils.DatasetBytes(l.width, l.height, l.bands, typ.Size()); err != nil {
		return nil, err
	}

	offsets, err := d.uints(tagStripOffsets)
	if err != nil {
		return nil, err
	}
	want := l.stripsPerBand()
	if l.planar == planarSeparate {
		want *= l.bands
	}
	if len(offsets) != want {
		return nil, fmt.Errorf("have %d strip offsets, layout needs %d", len(offsets), want)
	}

	l.stripOffsets = make([]int64, len(offsets))
	for i, off := range offsets {
		l.stripOffsets[i] = int64(off)
		if l.stripOffsets[i]+l.stripBytes(i) > fileSize {
			return nil, fmt.Errorf("strip %d at %d runs past end of file", i, off)
		}
	}
	return l, nil
}

// Open opens an existing GeoTIFF.
func (*Driver) Open(path string, access driver.Access) (driver.Dataset, error) {
	f, err := rawfile.Open(path, access)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrOpen, path, err)
	}

	ds, err := load(f, access)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrOpen, path, err)
	}
	return ds, nil
}

func load(f *rawfile.File, access driver.Access) (*dataset, error) {
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	order, ifdOffset, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	dir, err := readIFD(f, order, ifdOffset, size)
	if err != nil {
		return nil, err
	}
	l, err := parseLayout(dir, size)
	if err != nil {
		return nil, err
	}
	gt, wkt, err := readGeo(dir)
	if err != nil {
		return nil, err
	}

	return &dataset{
		file:       f,
		access:     access,
		order:      order,
		ifdOffset:  int64(ifdOffset),
		layout:     l,
		geo:        gt,
		projection: wkt,
	}, nil
}

// Create writes a zero-filled band-sequential GeoTIFF.
func (*Driver) Create(path string, opts driver.CreateOptions) (driver.Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}
	total, err := utils.DatasetBytes(opts.Width, opts.Height, opts.Bands, opts.SampleType.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}
	if headerSize+total > maxClassicOffset {
		return nil, fmt.Errorf("%w: %s: %d bytes of pixels exceed classic TIFF limits", driver.ErrCreate, path, total)
	}

	l := &layout{
		width:        opts.Width,
		height:       opts.Height,
		bands:        opts.Bands,
		typ:          opts.SampleType,
		planar:       planarSeparate,
		photometric:  photometricMinIsBlack,
		rowsPerStrip: opts.Height,
		stripOffsets: make([]int64, opts.Bands),
	}
	bandBytes := total / int64(opts.Bands)
	for b := range l.stripOffsets {
		l.stripOffsets[b] = headerSize + int64(b)*bandBytes
	}

	end := headerSize + total
	f, err := rawfile.Create(path, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}

	ds := &dataset{
		file:      f,
		access:    driver.Update,
		order:     binary.LittleEndian,
		ifdOffset: end + end%2,
		layout:    l,
		geo:       driver.DefaultGeoTransform,
	}

	hdr := make([]byte, headerSize)
	copy(hdr, "II")
	ds.order.PutUint16(hdr[2:], 42)
	ds.order.PutUint32(hdr[4:], uint32(ds.ifdOffset))
	if _, err := f.WriteAt(hdr, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}
	if err := ds.writeIFD(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrCreate, path, err)
	}
	return ds, nil
}

// dataset is one handle on a GeoTIFF file.
type dataset struct {
	file       *rawfile.File
	access     driver.Access
	order      binary.ByteOrder
	ifdOffset  int64
	layout     *layout
	geo        driver.GeoTransform
	projection string
	dirty      bool
}

func (ds *dataset) Metadata() (driver.Metadata, error) {
	if ds.file.Closed() {
		return driver.Metadata{}, driver.ErrNotOpen
	}
	return ds.metadata(), nil
}

func (ds *dataset) metadata() driver.Metadata {
	return driver.Metadata{
		Width:        ds.layout.width,
		Height:       ds.layout.height,
		Bands:        ds.layout.bands,
		SampleType:   ds.layout.typ,
		Projection:   ds.projection,
		GeoTransform: ds.geo,
		Driver:       Name,
	}
}

// span returns how many consecutive samples one window row occupies on disk.
func (ds *dataset) span(xSize int) int {
	if ds.layout.planar == planarChunky {
		return xSize * ds.layout.bands
	}
	return xSize
}

func (ds *dataset) ReadBand(band, xOff, yOff, xSize, ySize int) (*driver.Buffer, error) {
	if ds.file.Closed() {
		return nil, driver.ErrNotOpen
	}
	if err := driver.CheckWindow(ds.metadata(), band, xOff, yOff, xSize, ySize); err != nil {
		return nil, err
	}

	l := ds.layout
	n := ds.span(xSize)
	raw := utils.GetBuffer(n * l.typ.Size())
	defer utils.ReleaseBuffer(raw)
	samples := make([]float64, n)

	out := driver.NewBuffer(xSize, ySize)
	for y := 0; y < ySize; y++ {
		start := l.offset(1, xOff, yOff+y)
		if l.planar == planarSeparate {
			start = l.offset(band, xOff, yOff+y)
		}
		if _, err := ds.file.ReadAt(raw, start); err != nil {
			return nil, utils.WrapError("TIFF row read failed", err)
		}
		if err := utils.DecodeSamples(samples, raw, l.typ, ds.order); err != nil {
			return nil, err
		}
		row := out.Row(y)
		if l.planar == planarSeparate {
			copy(row, samples)
			continue
		}
		for x := range row {
			row[x] = samples[x*l.bands+band-1]
		}
	}
	return out, nil
}

// WriteBand writes rows in place. Pixel-interleaved files need a
// read-modify-write of each row so the other bands survive.
func (ds *dataset) WriteBand(band, xOff, yOff int, data *driver.Buffer) error {
	if err := ds.writable(); err != nil {
		return err
	}
	if err := driver.CheckWrite(ds.metadata(), band, xOff, yOff, data); err != nil {
		return err
	}

	l := ds.layout
	n := ds.span(data.XSize)
	raw := utils.GetBuffer(n * l.typ.Size())
	defer utils.ReleaseBuffer(raw)

	var samples []float64
	if l.planar == planarChunky {
		samples = make([]float64, n)
	}

	for y := 0; y < data.YSize; y++ {
		src := data.Row(y)
		start := l.offset(band, xOff, yOff+y)

		if l.planar == planarChunky {
			start = l.offset(1, xOff, yOff+y)
			if _, err := ds.file.ReadAt(raw, start); err != nil {
				return utils.WrapError("TIFF row read failed", err)
			}
			if err := utils.DecodeSamples(samples, raw, l.typ, ds.order); err != nil {
				return err
			}
			for x, v := range src {
				samples[x*l.bands+band-1] = v
			}
			src = samples
		}

		if err := utils.EncodeSamples(raw, src, l.typ, ds.order); err != nil {
			return err
		}
		if _, err := ds.file.WriteAt(raw, start); err != nil {
			return utils.WrapError("TIFF row write failed", err)
		}
	}
	return nil
}

func (ds *dataset) SetProjection(wkt string) error {
	if err := ds.writable(); err != nil {
		return err
	}
	if len(wkt) >= math.MaxUint16 {
		return fmt.Errorf("%w: projection of %d bytes exceeds GeoTIFF key limits", driver.ErrOutOfRange, len(wkt))
	}
	ds.projection = wkt
	ds.dirty = true
	return nil
}

func (ds *dataset) SetGeoTransform(gt driver.GeoTransform) error {
	if err := ds.writable(); err != nil {
		return err
	}
	ds.geo = gt
	ds.dirty = true
	return nil
}

// writeIFD rewrites the directory. When the current IFD already sits past
// the pixel data it is replaced in place and the file trimmed; otherwise a
// new IFD is appended and the header repointed. Only the tags this driver
// understands are carried over.
func (ds *dataset) writeIFD() error {
	l := ds.layout

	b := &builder{order: ds.order}
	b.longs(tagImageWidth, uint32(l.width))
	b.longs(tagImageLength, uint32(l.height))
	bits := make([]uint16, l.bands)
	formats := make([]uint16, l.bands)
	for i := range bits {
		bits[i] = uint16(8 * l.typ.Size())
		formats[i] = sampleFormatOf(l.typ)
	}
	b.shorts(tagBitsPerSample, bits...)
	b.shorts(tagCompression, 1)
	b.shorts(tagPhotometric, l.photometric)
	offsets := make([]uint32, len(l.stripOffsets))
	counts := make([]uint32, len(l.stripOffsets))
	for i, off := range l.stripOffsets {
		offsets[i] = uint32(off)
		counts[i] = uint32(l.stripBytes(i))
	}
	b.longs(tagStripOffsets, offsets...)
	b.shorts(tagSamplesPerPixel, uint16(l.bands))
	b.longs(tagRowsPerStrip, uint32(l.rowsPerStrip))
	b.longs(tagStripByteCounts, counts...)
	b.shorts(tagPlanarConfig, uint16(l.planar))
	b.shorts(tagSampleFormat, formats...)
	putGeo(b, ds.geo, ds.projection)

	at := ds.ifdOffset
	inPlace := at >= l.dataEnd()
	if !inPlace {
		size, err := ds.file.Size()
		if err != nil {
			return err
		}
		at = size + size%2
	}
	if at > maxClassicOffset {
		return fmt.Errorf("IFD offset %d exceeds classic TIFF limits", at)
	}

	enc := b.encode(uint32(at))
	if _, err := ds.file.WriteAt(enc, at); err != nil {
		return utils.WrapError("IFD write failed", err)
	}
	if inPlace {
		if err := ds.file.Truncate(at + int64(len(enc))); err != nil {
			return utils.WrapError("TIFF truncate failed", err)
		}
		return nil
	}

	ptr := make([]byte, 4)
	ds.order.PutUint32(ptr, uint32(at))
	if _, err := ds.file.WriteAt(ptr, 4); err != nil {
		return utils.WrapError("TIFF header update failed", err)
	}
	ds.ifdOffset = at
	return nil
}

func (ds *dataset) Flush() error {
	if ds.file.Closed() {
		return driver.ErrNotOpen
	}
	if ds.access != driver.Update {
		return nil
	}
	if ds.dirty {
		if err := ds.writeIFD(); err != nil {
			return err
		}
		ds.dirty = false
	}
	return ds.file.Flush()
}

func (ds *dataset) Close() error {
	if ds.file.Closed() {
		return driver.ErrNotOpen
	}
	flushErr := ds.Flush()
	if err := ds.file.Close(); err != nil {
		return err
	}
	return flushErr
}

func (ds *dataset) writable() error {
	if ds.file.Closed() {
		return driver.ErrNotOpen
	}
	if ds.access != driver.Update {
		return driver.ErrReadOnly
	}
	return nil
}
