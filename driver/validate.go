// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package driver

import "fmt"

// CheckBand validates a 1-indexed band number against md.
func CheckBand(md Metadata, band int) error {
	if band < 1 || band > md.Bands {
		return fmt.Errorf("%w: band %d not in [1, %d]", ErrOutOfRange, band, md.Bands)
	}
	return nil
}

// CheckWindow validates that band and the window [xOff, xOff+xSize) x
// [yOff, yOff+ySize) lie inside the dataset described by md.
// Windows are never clipped.
func CheckWindow(md Metadata, band, xOff, yOff, xSize, ySize int) error {
	if err := CheckBand(md, band); err != nil {
		return err
	}
	if xSize <= 0 || ySize <= 0 {
		return fmt.Errorf("%w: window size %dx%d must be positive", ErrOutOfRange, xSize, ySize)
	}
	if xOff < 0 || yOff < 0 {
		return fmt.Errorf("%w: negative window offset (%d, %d)", ErrOutOfRange, xOff, yOff)
	}
	if xOff+xSize > md.Width {
		return fmt.Errorf("%w: x window [%d, %d) exceeds width %d", ErrOutOfRange, xOff, xOff+xSize, md.Width)
	}
	if yOff+ySize > md.Height {
		return fmt.Errorf("%w: y window [%d, %d) exceeds height %d", ErrOutOfRange, yOff, yOff+ySize, md.Height)
	}
	return nil
}

// CheckWrite validates data as a write of band at (xOff, yOff).
func CheckWrite(md Metadata, band, xOff, yOff int, data *Buffer) error {
	if err := data.Validate(); err != nil {
		return err
	}
	return CheckWindow(md, band, xOff, yOff, data.XSize, data.YSize)
}
