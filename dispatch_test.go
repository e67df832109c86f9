// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package raster

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/raster/internal/metrics"
)

func TestProcessBlocks_AllSucceed(t *testing.T) {
	blocks, err := SplitIntoBlocks(100, 100, 10)
	require.NoError(t, err)

	d := NewDispatcher(WithWorkers(4))
	out := ProcessBlocks(context.Background(), d, blocks, func(_ context.Context, b Block) (int, error) {
		return b.Pixels(), nil
	})

	require.Len(t, out, len(blocks))
	seen := make(map[Block]bool)
	for _, o := range out {
		require.NoError(t, o.Err)
		assert.Equal(t, o.Block.Pixels(), o.Value)
		assert.False(t, seen[o.Block], "block %v reported twice", o.Block)
		seen[o.Block] = true
	}
	assert.Len(t, seen, len(blocks))
	assert.Equal(t, DispatcherStats{Submitted: 100, Succeeded: 100}, d.Stats())
}

func TestProcessBlocks_Empty(t *testing.T) {
	d := NewDispatcher()
	out := ProcessBlocks(context.Background(), d, nil, func(context.Context, Block) (int, error) {
		t.Fatal("op called")
		return 0, nil
	})
	assert.Empty(t, out)
}

func TestProcessBlocks_PartialFailure(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	collector := metrics.NewCollector()
	d := NewDispatcher(WithWorkers(3), WithLogger(logrus.NewEntry(logger)), WithMetrics(collector))

	blocks, err := SplitIntoBlocks(40, 40, 10)
	require.NoError(t, err)

	boom := errors.New("boom")
	out := ProcessBlocks(context.Background(), d, blocks, func(_ context.Context, b Block) (string, error) {
		switch {
		case b.XOff == 10 && b.YOff == 0:
			return "", boom
		case b.XOff == 20 && b.YOff == 30:
			panic("kaboom")
		}
		return "ok", nil
	})
	require.Len(t, out, 16)

	var failed []Outcome[string]
	for _, o := range out {
		if o.Err != nil {
			failed = append(failed, o)
			assert.Empty(t, o.Value)
			continue
		}
		assert.Equal(t, "ok", o.Value)
	}
	require.Len(t, failed, 2)

	for _, o := range failed {
		var te *TaskError
		require.ErrorAs(t, o.Err, &te)
		assert.Equal(t, o.Block, te.Block)
		switch o.Block {
		case Block{10, 0, 10, 10}:
			assert.ErrorIs(t, o.Err, boom)
		case Block{20, 30, 10, 10}:
			assert.ErrorIs(t, o.Err, ErrTaskPanic)
			assert.Contains(t, o.Err.Error(), "kaboom")
		default:
			t.Fatalf("unexpected failure for %v", o.Block)
		}
	}

	assert.Equal(t, DispatcherStats{Submitted: 16, Succeeded: 14, Failed: 2}, d.Stats())

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)

	snap := collector.Snapshot()
	assert.Equal(t, int64(1), snap.Panics)
	assert.Equal(t, int64(16), snap.ByOperation[metrics.OpTask].Count)
	assert.Equal(t, int64(2), snap.ByOperation[metrics.OpTask].Errors)
}

func TestProcessBlocks_BoundedWorkers(t *testing.T) {
	blocks, err := SplitIntoBlocks(64, 64, 4)
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		ids     = make(map[uint64]bool)
		running atomic.Int32
		peak    atomic.Int32
		exits   atomic.Int32
	)

	d := NewDispatcher(WithWorkers(3))
	out := ProcessBlocks(context.Background(), d, blocks, func(ctx context.Context, _ Block) (struct{}, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		w, ok := WorkerFrom(ctx)
		if !ok {
			return struct{}{}, errors.New("no worker in context")
		}
		mu.Lock()
		if !ids[w.ID()] {
			ids[w.ID()] = true
			w.OnExit(func() { exits.Add(1) })
		}
		mu.Unlock()
		return struct{}{}, nil
	})

	require.Len(t, out, len(blocks))
	for _, o := range out {
		require.NoError(t, o.Err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.LessOrEqual(t, len(ids), 3)
	assert.Equal(t, int32(len(ids)), exits.Load(), "every worker ran its exit hooks")
}

func TestProcessBlocks_FewerBlocksThanWorkers(t *testing.T) {
	var ids sync.Map
	d := NewDispatcher(WithWorkers(16))
	blocks := []Block{{0, 0, 1, 1}, {1, 0, 1, 1}}
	out := ProcessBlocks(context.Background(), d, blocks, func(ctx context.Context, b Block) (int, error) {
		w, _ := WorkerFrom(ctx)
		ids.Store(w.ID(), true)
		return b.XOff, nil
	})
	require.Len(t, out, 2)

	n := 0
	ids.Range(func(any, any) bool { n++; return true })
	assert.LessOrEqual(t, n, 2)
}

func TestNewDispatcher_WorkerFloor(t *testing.T) {
	assert.Equal(t, 1, NewDispatcher(WithWorkers(0)).Workers())
	assert.Equal(t, 1, NewDispatcher(WithWorkers(-4)).Workers())
	assert.GreaterOrEqual(t, NewDispatcher().Workers(), 1)
}
