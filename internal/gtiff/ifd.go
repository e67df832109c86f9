// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package gtiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/scigolib/raster/internal/utils"
)

// TIFF baseline and GeoTIFF tag numbers.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfig        = 284
	tagTileWidth           = 322
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoASCIIParams      = 34737
)

// TIFF field types.
const (
	typeByte   = 1
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

// typeSizes maps field types to element sizes. Types not listed cannot
// be decoded and are skipped.
var typeSizes = map[uint16]int{
	1:  1, // BYTE
	2:  1, // ASCII
	3:  2, // SHORT
	4:  4, // LONG
	5:  8, // RATIONAL
	6:  1, // SBYTE
	7:  1, // UNDEFINED
	8:  2, // SSHORT
	9:  4, // SLONG
	10: 8, // SRATIONAL
	11: 4, // FLOAT
	12: 8, // DOUBLE
}

const (
	headerSize = 8
	entrySize  = 12
	// maxEntries bounds the IFD entry count read from untrusted files.
	maxEntries = 4096
)

var errBigTIFF = errors.New("BigTIFF is not supported")

// entry is one decoded IFD field with its raw value bytes.
type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// ifd is an image file directory keyed by tag.
type ifd struct {
	order   binary.ByteOrder
	entries map[uint16]*entry
}

// readHeader returns the byte order and first IFD offset.
func readHeader(r utils.ReaderAt) (binary.ByteOrder, uint32, error) {
	buf := make([]byte, headerSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, 0, utils.WrapError("TIFF header read failed", err)
	}

	var order binary.ByteOrder
	switch string(buf[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, 0, fmt.Errorf("invalid TIFF byte order mark %q", buf[:2])
	}

	switch order.Uint16(buf[2:4]) {
	case 42:
	case 43:
		return nil, 0, errBigTIFF
	default:
		return nil, 0, fmt.Errorf("invalid TIFF magic %d", order.Uint16(buf[2:4]))
	}

	return order, order.Uint32(buf[4:8]), nil
}

// readIFD decodes the directory at offset. fileSize bounds every value read.
func readIFD(r utils.ReaderAt, order binary.ByteOrder, offset uint32, fileSize int64) (*ifd, error) {
	if int64(offset)+2 > fileSize || offset < headerSize {
		return nil, fmt.Errorf("IFD offset %d outside file of %d bytes", offset, fileSize)
	}

	n, err := utils.ReadUint16(r, int64(offset), order)
	if err != nil {
		return nil, utils.WrapError("IFD entry count read failed", err)
	}
	if n == 0 || n > maxEntries {
		return nil, fmt.Errorf("invalid IFD entry count %d", n)
	}

	raw := make([]byte, int(n)*entrySize)
	if _, err := r.ReadAt(raw, int64(offset)+2); err != nil {
		return nil, utils.WrapError("IFD entries read failed", err)
	}

	dir := &ifd{order: order, entries: make(map[uint16]*entry, n)}
	for i := 0; i < int(n); i++ {
		e := raw[i*entrySize : (i+1)*entrySize]
		tag := order.Uint16(e[0:2])
		typ := order.Uint16(e[2:4])
		count := order.Uint32(e[4:8])

		size, ok := typeSizes[typ]
		if !ok {
			continue
		}
		total, err := utils.SafeMultiply(uint64(count), uint64(size))
		if err != nil || total > uint64(fileSize) {
			return nil, fmt.Errorf("tag %d: value of %d x %d bytes exceeds file", tag, count, size)
		}

		data := make([]byte, total)
		if total <= 4 {
			copy(data, e[8:8+total])
		} else {
			valueOff := int64(order.Uint32(e[8:12]))
			if valueOff+int64(total) > fileSize {
				return nil, fmt.Errorf("tag %d: value at %d runs past end of file", tag, valueOff)
			}
			if _, err := r.ReadAt(data, valueOff); err != nil {
				return nil, utils.WrapError(fmt.Sprintf("tag %d value read failed", tag), err)
			}
		}
		dir.entries[tag] = &entry{tag: tag, typ: typ, count: count, data: data}
	}
	return dir, nil
}

func (d *ifd) has(tag uint16) bool {
	_, ok := d.entries[tag]
	return ok
}

// uints decodes an unsigned integer field of type BYTE, SHORT or LONG.
func (d *ifd) uints(tag uint16) ([]uint64, error) {
	e, ok := d.entries[tag]
	if !ok {
		return nil, fmt.Errorf("missing tag %d", tag)
	}
	out := make([]uint64, e.count)
	for i := range out {
		switch e.typ {
		case typeByte:
			out[i] = uint64(e.data[i])
		case typeShort:
			out[i] = uint64(d.order.Uint16(e.data[2*i:]))
		case typeLong:
			out[i] = uint64(d.order.Uint32(e.data[4*i:]))
		default:
			return nil, fmt.Errorf("tag %d: type %d is not an unsigned integer", tag, e.typ)
		}
	}
	return out, nil
}

// uint returns the first value of an integer field, or def if absent.
func (d *ifd) uint(tag uint16, def uint64) (uint64, error) {
	if !d.has(tag) {
		return def, nil
	}
	v, err := d.uints(tag)
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, fmt.Errorf("tag %d is empty", tag)
	}
	return v[0], nil
}

func (d *ifd) doubles(tag uint16) ([]float64, error) {
	e, ok := d.entries[tag]
	if !ok {
		return nil, fmt.Errorf("missing tag %d", tag)
	}
	if e.typ != typeDouble {
		return nil, fmt.Errorf("tag %d: type %d is not DOUBLE", tag, e.typ)
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(d.order.Uint64(e.data[8*i:]))
	}
	return out, nil
}

func (d *ifd) ascii(tag uint16) (string, bool) {
	e, ok := d.entries[tag]
	if !ok || e.typ != typeASCII {
		return "", false
	}
	return string(e.data), true
}

// builder assembles an IFD for writing.
type builder struct {
	order   binary.ByteOrder
	entries []entry
}

func (b *builder) shorts(tag uint16, vals ...uint16) {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		b.order.PutUint16(data[2*i:], v)
	}
	b.entries = append(b.entries, entry{tag: tag, typ: typeShort, count: uint32(len(vals)), data: data})
}

func (b *builder) longs(tag uint16, vals ...uint32) {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		b.order.PutUint32(data[4*i:], v)
	}
	b.entries = append(b.entries, entry{tag: tag, typ: typeLong, count: uint32(len(vals)), data: data})
}

func (b *builder) doubles(tag uint16, vals ...float64) {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		b.order.PutUint64(data[8*i:], math.Float64bits(v))
	}
	b.entries = append(b.entries, entry{tag: tag, typ: typeDouble, count: uint32(len(vals)), data: data})
}

func (b *builder) ascii(tag uint16, s string) {
	data := append([]byte(s), 0)
	b.entries = append(b.entries, entry{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data})
}

// encode serializes the IFD for placement at offset. Values wider than
// four bytes follow the entry table, word aligned.
func (b *builder) encode(offset uint32) []byte {
	sort.Slice(b.entries, func(i, j int) bool { return b.entries[i].tag < b.entries[j].tag })

	tableSize := 2 + entrySize*len(b.entries) + 4
	table := make([]byte, tableSize)
	b.order.PutUint16(table, uint16(len(b.entries)))

	var extra []byte
	for i, e := range b.entries {
		slot := table[2+i*entrySize : 2+(i+1)*entrySize]
		b.order.PutUint16(slot[0:2], e.tag)
		b.order.PutUint16(slot[2:4], e.typ)
		b.order.PutUint32(slot[4:8], e.count)

		if len(e.data) <= 4 {
			copy(slot[8:12], e.data)
			continue
		}
		if (tableSize+len(extra))%2 == 1 {
			extra = append(extra, 0)
		}
		b.order.PutUint32(slot[8:12], offset+uint32(tableSize+len(extra)))
		extra = append(extra, e.data...)
	}
	// Next-IFD pointer stays zero: only one image is written.
	return append(table, extra...)
}
