// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Package harness runs the end-to-end concurrency check behind the
// rasterharness command: write a synthetic grid to one file per format,
// block by block from a worker pool, then read every file back in parallel
// and compare the means.
package harness

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	raster "github.com/scigolib/raster"
	"github.com/scigolib/raster/driver"
	"github.com/scigolib/raster/internal/mlog"
)

// meanTolerance bounds the difference between the mean read back and the
// mean of the grid written.
const meanTolerance = 1e-6

// Result describes one format's round trip.
type Result struct {
	Format    string
	Driver    string
	Path      string
	Mean      float64
	Expected  float64
	Bytes     int64
	WriteTime time.Duration
	ReadTime  time.Duration
	Bench     *raster.BenchmarkStats
}

// OK reports whether the mean read back matches the grid.
func (r Result) OK() bool {
	return math.Abs(r.Mean-r.Expected) <= meanTolerance
}

// Harness owns one configured run.
type Harness struct {
	cfg     Config
	reg     *driver.Registry
	out     io.Writer
	log     *logrus.Entry
	metrics *raster.MetricsCollector

	outMu sync.Mutex
}

// New validates cfg, resolves every format against reg and creates the
// output directory. Progress lines go to out.
func New(cfg Config, reg *driver.Registry, out io.Writer) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if reg == nil {
		reg = raster.DefaultRegistry()
	}
	for _, f := range cfg.Formats {
		if _, err := reg.Lookup(f); err != nil {
			return nil, errors.Wrapf(err, "format %s", f)
		}
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}

	return &Harness{
		cfg:     cfg,
		reg:     reg,
		out:     out,
		log:     mlog.GetPackageLogger("harness"),
		metrics: raster.NewMetricsCollector(),
	}, nil
}

// Metrics returns the collector fed by every reader, writer and dispatcher
// of the run.
func (h *Harness) Metrics() *raster.MetricsCollector {
	return h.metrics
}

// Path returns where format's file is written. MEM datasets live under
// /vsimem/.
func (h *Harness) Path(format string) string {
	name := "synthetic_" + strings.ToLower(format)
	ext, ok := raster.Formats[format]
	if format == raster.FormatMEM || (ok && ext == "") {
		return "/vsimem/" + name
	}
	if !ok {
		d, err := h.reg.Lookup(format)
		if err == nil && len(d.Extensions()) > 0 {
			ext = d.Extensions()[0]
		}
	}
	return filepath.Join(h.cfg.OutputDir, name+ext)
}

func (h *Harness) options() []raster.Option {
	return []raster.Option{
		raster.WithRegistry(h.reg),
		raster.WithWorkers(h.cfg.Threads),
		raster.WithMetrics(h.metrics),
		raster.WithLogger(h.log),
	}
}

func (h *Harness) printf(format string, args ...any) {
	h.outMu.Lock()
	defer h.outMu.Unlock()
	fmt.Fprintf(h.out, format, args...)
}

// Run writes every format concurrently, reads every file back
// concurrently, optionally benchmarks the parallel read and returns one
// Result per format in configuration order.
func (h *Harness) Run(ctx context.Context) ([]Result, error) {
	grid := SyntheticGrid(h.cfg.Size)
	expected := grid.Mean()
	results := make([]Result, len(h.cfg.Formats))

	var g errgroup.Group
	for i, format := range h.cfg.Formats {
		g.Go(func() error {
			res, err := h.write(ctx, format, grid)
			if err != nil {
				return errors.Wrapf(err, "write %s", format)
			}
			res.Expected = expected
			results[i] = res
			h.log.WithField("path", res.Path).WithField("elapsed", res.WriteTime).Info("dataset written")
			h.printf("Wrote %s using %s\n", filepath.Base(res.Path), res.Driver)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rg errgroup.Group
	for i := range results {
		rg.Go(func() error {
			start := time.Now()
			mean, err := h.mean(ctx, results[i].Path)
			if err != nil {
				return errors.Wrapf(err, "read %s", results[i].Format)
			}
			results[i].Mean = mean
			results[i].ReadTime = time.Since(start)
			results[i].Bytes = h.size(results[i].Path)
			h.printf("Read %s: mean=%.6f\n", filepath.Base(results[i].Path), mean)
			return nil
		})
	}
	if err := rg.Wait(); err != nil {
		return nil, err
	}

	if h.cfg.Iterations > 0 {
		for i := range results {
			stats, err := raster.Benchmark(h.cfg.Iterations, func() error {
				_, err := h.mean(ctx, results[i].Path)
				return err
			})
			if err != nil {
				return nil, errors.Wrapf(err, "benchmark %s", results[i].Format)
			}
			results[i].Bench = &stats
		}
	}

	for _, r := range results {
		if !r.OK() {
			return results, errors.Errorf("%s: mean %.9f differs from written mean %.9f", r.Format, r.Mean, r.Expected)
		}
	}
	return results, nil
}

// write creates format's file and fills it block by block from the pool.
func (h *Harness) write(ctx context.Context, format string, grid *driver.Buffer) (Result, error) {
	d, err := h.reg.Lookup(format)
	if err != nil {
		return Result{}, err
	}
	path := h.Path(format)
	gt := driver.DefaultGeoTransform

	w := raster.NewWriter(raster.WriterConfig{
		Path:         path,
		Width:        grid.XSize,
		Height:       grid.YSize,
		Bands:        1,
		SampleType:   driver.Float32,
		Driver:       format,
		Projection:   raster.WGS84,
		GeoTransform: &gt,
	}, h.options()...)

	// A stale file of another shape would make Create fail on the reopen.
	if err := removeDataset(path); err != nil {
		return Result{}, err
	}

	start := time.Now()
	if err := w.Create(); err != nil {
		return Result{}, err
	}

	blocks, err := raster.SplitIntoBlocks(grid.XSize, grid.YSize, h.cfg.BlockSize)
	if err != nil {
		_ = w.Close()
		return Result{}, err
	}
	disp := raster.NewDispatcher(h.options()...)
	out := raster.ProcessBlocks(ctx, disp, blocks, func(_ context.Context, b raster.Block) (int, error) {
		buf := subBuffer(grid, b.XOff, b.YOff, b.XSize, b.YSize)
		return b.Pixels(), w.WriteBlock(1, b.XOff, b.YOff, buf)
	})
	if err := firstFailure(out); err != nil {
		_ = w.Close()
		return Result{}, err
	}
	if err := w.Close(); err != nil {
		return Result{}, err
	}

	return Result{
		Format:    format,
		Driver:    d.Name(),
		Path:      path,
		WriteTime: time.Since(start),
	}, nil
}

// mean reads path block by block on the pool and returns the band-1 mean.
func (h *Harness) mean(ctx context.Context, path string) (float64, error) {
	r := raster.NewReader(path, h.options()...)
	defer r.Close()

	if err := r.Open(); err != nil {
		return 0, err
	}
	md, err := r.Metadata()
	if err != nil {
		return 0, err
	}
	blocks, err := raster.SplitIntoBlocks(md.Width, md.Height, h.cfg.BlockSize)
	if err != nil {
		return 0, err
	}

	disp := raster.NewDispatcher(h.options()...)
	out := raster.ProcessBlocks(ctx, disp, blocks, func(ctx context.Context, b raster.Block) (float64, error) {
		buf, err := r.ReadBlock(ctx, 1, b)
		if err != nil {
			return 0, err
		}
		var sum float64
		for _, v := range buf.Data {
			sum += v
		}
		return sum, nil
	})
	if err := firstFailure(out); err != nil {
		return 0, err
	}

	var total float64
	for _, o := range out {
		total += o.Value
	}
	return total / float64(md.Width*md.Height), nil
}

func firstFailure[T any](out []raster.Outcome[T]) error {
	failed := 0
	var first error
	for _, o := range out {
		if o.Err != nil {
			failed++
			if first == nil {
				first = o.Err
			}
		}
	}
	if first != nil {
		return errors.Wrapf(first, "%d of %d blocks failed", failed, len(out))
	}
	return nil
}

func (h *Harness) size(path string) int64 {
	if fi, err := os.Stat(path); err == nil {
		return fi.Size()
	}
	return int64(h.cfg.Size) * int64(h.cfg.Size) * int64(driver.Float32.Size())
}

// removeDataset deletes path and its known sidecars.
func removeDataset(path string) error {
	if strings.HasPrefix(path, "/vsimem/") {
		return nil
	}
	paths := []string{path}
	if strings.EqualFold(filepath.Ext(path), ".ers") {
		base := strings.TrimSuffix(path, filepath.Ext(path))
		paths = append(paths, base, base+".prj")
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "remove stale dataset")
		}
	}
	return nil
}
