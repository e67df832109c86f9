// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package utils

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/scigolib/raster/driver"
)

// EncodeSamples quantizes src to typ and writes it into dst using order.
// len(dst) must be at least len(src)*typ.Size().
func EncodeSamples(dst []byte, src []float64, typ driver.SampleType, order binary.ByteOrder) error {
	size := typ.Size()
	if size == 0 {
		return fmt.Errorf("cannot encode sample type %v", typ)
	}
	if len(dst) < len(src)*size {
		return fmt.Errorf("encode buffer too small: need %d bytes, have %d", len(src)*size, len(dst))
	}

	for i, v := range src {
		off := i * size
		q := typ.Quantize(v)
		switch typ {
		case driver.Byte:
			dst[off] = uint8(q)
		case driver.Int16:
			order.PutUint16(dst[off:], uint16(int16(q)))
		case driver.UInt16:
			order.PutUint16(dst[off:], uint16(q))
		case driver.Int32:
			order.PutUint32(dst[off:], uint32(int32(q)))
		case driver.UInt32:
			order.PutUint32(dst[off:], uint32(q))
		case driver.Float32:
			order.PutUint32(dst[off:], math.Float32bits(float32(q)))
		case driver.Float64:
			order.PutUint64(dst[off:], math.Float64bits(q))
		}
	}
	return nil
}

// DecodeSamples reads len(dst) samples of typ from src using order.
func DecodeSamples(dst []float64, src []byte, typ driver.SampleType, order binary.ByteOrder) error {
	size := typ.Size()
	if size == 0 {
		return fmt.Errorf("cannot decode sample type %v", typ)
	}
	if len(src) < len(dst)*size {
		return fmt.Errorf("decode buffer too small: need %d bytes, have %d", len(dst)*size, len(src))
	}

	for i := range dst {
		off := i * size
		switch typ {
		case driver.Byte:
			dst[i] = float64(src[off])
		case driver.Int16:
			dst[i] = float64(int16(order.Uint16(src[off:])))
		case driver.UInt16:
			dst[i] = float64(order.Uint16(src[off:]))
		case driver.Int32:
			dst[i] = float64(int32(order.Uint32(src[off:])))
		case driver.UInt32:
			dst[i] = float64(order.Uint32(src[off:]))
		case driver.Float32:
			dst[i] = float64(math.Float32frombits(order.Uint32(src[off:])))
		case driver.Float64:
			dst[i] = math.Float64frombits(order.Uint64(src[off:]))
		}
	}
	return nil
}

// ReadUint16 reads a 16-bit value at offset.
func ReadUint16(r ReaderAt, offset int64, order binary.ByteOrder) (uint16, error) {
	buf := GetBuffer(2)
	defer ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0, err
	}
	return order.Uint16(buf), nil
}

// ReadUint32 reads a 32-bit value at offset.
func ReadUint32(r ReaderAt, offset int64, order binary.ByteOrder) (uint32, error) {
	buf := GetBuffer(4)
	defer ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0, err
	}
	return order.Uint32(buf), nil
}

// ReaderAt is a simplified interface for io.ReaderAt.
type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}
