// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package raster makes stateful raster dataset handles safe to use from
// many goroutines at once.
//
// Dataset handles (see package driver) are not safe for concurrent use.
// This package layers three disciplines on top of them:
//
//   - Reader gives every worker goroutine its own read-only handle, opened
//     lazily and kept for the worker's lifetime, so reads never contend.
//   - Writer serializes every create, write and flush on one dataset
//     behind a single mutex.
//   - Dispatcher fans a list of blocks out to a bounded pool of workers and
//     returns one Outcome per block, recording failures instead of aborting.
//
// A typical parallel read:
//
//	r := raster.NewReader("dem.tif")
//	defer r.Close()
//	if err := r.Open(); err != nil {
//	    return err
//	}
//	md, _ := r.Metadata()
//	blocks, _ := raster.SplitIntoBlocks(md.Width, md.Height, 256)
//
//	d := raster.NewDispatcher(raster.WithWorkers(8))
//	out := raster.ProcessBlocks(ctx, d, blocks, func(ctx context.Context, b raster.Block) (float64, error) {
//	    buf, err := r.ReadBlock(ctx, 1, b)
//	    if err != nil {
//	        return 0, err
//	    }
//	    return buf.Mean(), nil
//	})
//
// Worker identity travels in the context: ProcessBlocks attaches a *Worker
// to the context of every task, and Reader keys its per-worker handles on
// it. Without a worker, ReadBlock opens and closes a private handle per call.
//
// Formats are provided by drivers registered in a driver.Registry. The
// default registry holds GTiff, ERS, HDF5 and MEM; building with the
// "godal" tag adds GDAL-backed drivers.
package raster
