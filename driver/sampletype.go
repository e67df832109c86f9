// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package driver

import (
	"fmt"
	"math"
	"strings"
)

// SampleType is the on-disk numeric type of a band's samples.
type SampleType int

// Supported sample types. Names follow GDAL's GDT_* spelling.
const (
	Unknown SampleType = iota
	Byte
	Int16
	UInt16
	Int32
	UInt32
	Float32
	Float64
)

var sampleTypeNames = map[SampleType]string{
	Unknown: "Unknown",
	Byte:    "Byte",
	Int16:   "Int16",
	UInt16:  "UInt16",
	Int32:   "Int32",
	UInt32:  "UInt32",
	Float32: "Float32",
	Float64: "Float64",
}

// String returns the GDAL-style name of the type.
func (t SampleType) String() string {
	if name, ok := sampleTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SampleType(%d)", int(t))
}

// Size returns the encoded size of one sample in bytes, or 0 for Unknown.
func (t SampleType) Size() int {
	switch t {
	case Byte:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether the type stores IEEE floating point values.
func (t SampleType) IsFloat() bool {
	return t == Float32 || t == Float64
}

// Valid reports whether t is one of the supported types.
func (t SampleType) Valid() bool {
	return t.Size() > 0
}

// Quantize converts v to the nearest value representable by t.
// Integer types round half away from zero and saturate at their bounds,
// which matches how GDAL copies float buffers into integer bands.
func (t SampleType) Quantize(v float64) float64 {
	switch t {
	case Float64:
		return v
	case Float32:
		return float64(float32(v))
	case Byte:
		return clampRound(v, 0, math.MaxUint8)
	case Int16:
		return clampRound(v, math.MinInt16, math.MaxInt16)
	case UInt16:
		return clampRound(v, 0, math.MaxUint16)
	case Int32:
		return clampRound(v, math.MinInt32, math.MaxInt32)
	case UInt32:
		return clampRound(v, 0, math.MaxUint32)
	default:
		return v
	}
}

func clampRound(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseSampleType parses a GDAL-style type name, case-insensitively.
func ParseSampleType(s string) (SampleType, error) {
	for t, name := range sampleTypeNames {
		if t != Unknown && strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return Unknown, fmt.Errorf("unknown sample type %q", s)
}
