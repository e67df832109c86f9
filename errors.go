// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"errors"
	"fmt"

	"github.com/scigolib/raster/driver"
)

// Errors shared with package driver, re-exported for callers that only
// import raster. Match with errors.Is.
var (
	ErrDriverUnavailable = driver.ErrDriverUnavailable
	ErrOpen              = driver.ErrOpen
	ErrCreate            = driver.ErrCreate
	ErrNotReady          = driver.ErrNotReady
	ErrNotOpen           = driver.ErrNotOpen
	ErrClosed            = driver.ErrClosed
	ErrOutOfRange        = driver.ErrOutOfRange
	ErrShapeMismatch     = driver.ErrShapeMismatch
	ErrReadOnly          = driver.ErrReadOnly
)

// ErrTaskPanic marks a TaskError raised by a panicking task.
var ErrTaskPanic = errors.New("task panicked")

// TaskError records the failure of one block's task in a dispatcher batch.
type TaskError struct {
	Block Block
	Err   error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("block %v: %v", e.Block, e.Err)
}

// Unwrap returns the task's own error.
func (e *TaskError) Unwrap() error {
	return e.Err
}
