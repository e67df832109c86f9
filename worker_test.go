// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_ExitHooks(t *testing.T) {
	w := NewWorker()
	var order []int
	w.OnExit(func() { order = append(order, 1) })
	w.OnExit(func() { order = append(order, 2) })

	w.Exit()
	w.Exit()
	assert.Equal(t, []int{2, 1}, order)

	w.OnExit(func() { order = append(order, 3) })
	assert.Equal(t, []int{2, 1, 3}, order, "hook after exit runs immediately")
}

func TestWorker_UniqueIDs(t *testing.T) {
	a, b := NewWorker(), NewWorker()
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestWorker_Context(t *testing.T) {
	_, ok := WorkerFrom(context.Background())
	assert.False(t, ok)

	w := NewWorker()
	got, ok := WorkerFrom(WithWorker(context.Background(), w))
	require.True(t, ok)
	assert.Same(t, w, got)
}
