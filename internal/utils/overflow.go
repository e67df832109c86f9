// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package utils

import (
	"fmt"
	"math"
)

// MaxDatasetBytes limits the pixel payload of a single dataset to 16GB.
// Headers claiming more are treated as corrupt.
const MaxDatasetBytes = 16 * 1024 * 1024 * 1024

// CheckMultiplyOverflow checks if multiplying two uint64 values would overflow.
func CheckMultiplyOverflow(a, b uint64) error {
	if a == 0 || b == 0 {
		return nil
	}

	if a > math.MaxUint64/b {
		return fmt.Errorf("multiplication overflow: %d * %d exceeds uint64 max", a, b)
	}

	return nil
}

// SafeMultiply multiplies two uint64 values and returns the result if no overflow occurs.
func SafeMultiply(a, b uint64) (uint64, error) {
	if err := CheckMultiplyOverflow(a, b); err != nil {
		return 0, err
	}
	return a * b, nil
}

// DatasetBytes returns width*height*bands*sampleSize with overflow checking.
// All factors must be positive and the product must stay below MaxDatasetBytes.
func DatasetBytes(width, height, bands, sampleSize int) (int64, error) {
	factors := []int{width, height, bands, sampleSize}
	names := []string{"width", "height", "bands", "sample size"}

	total := uint64(1)
	for i, f := range factors {
		if f <= 0 {
			return 0, fmt.Errorf("%s must be positive, got %d", names[i], f)
		}
		var err error
		total, err = SafeMultiply(total, uint64(f))
		if err != nil {
			return 0, fmt.Errorf("dataset size overflow at %s: %w", names[i], err)
		}
	}

	if total > MaxDatasetBytes {
		return 0, fmt.Errorf("dataset size %d exceeds maximum %d", total, uint64(MaxDatasetBytes))
	}

	//nolint:gosec // G115: bounded by MaxDatasetBytes above
	return int64(total), nil
}
