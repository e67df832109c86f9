// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package utils

import "fmt"

// RasterError represents a structured raster I/O error.
type RasterError struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *RasterError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// WrapError creates a contextual error.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &RasterError{
		Context: context,
		Cause:   cause,
	}
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *RasterError) Unwrap() error {
	return e.Cause
}
