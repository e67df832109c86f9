// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package harness

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	raster "github.com/scigolib/raster"
	"github.com/scigolib/raster/driver"
)

// PrintSummary renders the per-file table of a run.
func PrintSummary(w io.Writer, results []Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Driver", "Mean", "Size", "Write", "Read", "Status"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, r := range results {
		status := "ok"
		if !r.OK() {
			status = "MISMATCH"
		}
		table.Append([]string{
			filepath.Base(r.Path),
			r.Driver,
			strconv.FormatFloat(r.Mean, 'f', 6, 64),
			humanize.Bytes(uint64(r.Bytes)),
			roundDuration(r.WriteTime).String(),
			roundDuration(r.ReadTime).String(),
			status,
		})
	}
	table.Render()
}

// PrintBenchmarks renders the timing table of benchmarked results. Results
// without a benchmark are skipped.
func PrintBenchmarks(w io.Writer, results []Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Iterations", "Mean", "StdDev", "Min", "Max"})

	rows := 0
	for _, r := range results {
		if r.Bench == nil {
			continue
		}
		rows++
		table.Append([]string{
			filepath.Base(r.Path),
			humanize.Comma(int64(r.Bench.Iterations)),
			roundDuration(r.Bench.Mean).String(),
			roundDuration(r.Bench.StdDev).String(),
			roundDuration(r.Bench.Min).String(),
			roundDuration(r.Bench.Max).String(),
		})
	}
	if rows > 0 {
		table.Render()
	}
}

// Info prints the metadata of the dataset at path and the mean of every
// band, reading each band in parallel blocks.
func Info(ctx context.Context, w io.Writer, path string, opts ...raster.Option) error {
	r := raster.NewReader(path, opts...)
	defer r.Close()

	if err := r.Open(); err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	md, err := r.Metadata()
	if err != nil {
		return errors.Wrap(err, "read metadata")
	}

	fmt.Fprintf(w, "Driver: %s\n", md.Driver)
	fmt.Fprintf(w, "Size: %d x %d, %d band(s)\n", md.Width, md.Height, md.Bands)
	fmt.Fprintf(w, "Sample type: %s\n", md.SampleType)
	fmt.Fprintf(w, "Projection: %s\n", orNone(md.Projection))
	fmt.Fprintf(w, "GeoTransform: %v\n", [6]float64(md.GeoTransform))

	blocks, err := raster.SplitIntoBlocks(md.Width, md.Height, 256)
	if err != nil {
		return err
	}
	disp := raster.NewDispatcher(opts...)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Band", "Mean"})
	for band := 1; band <= md.Bands; band++ {
		mean, err := bandMean(ctx, r, disp, band, blocks)
		if err != nil {
			return errors.Wrapf(err, "band %d", band)
		}
		table.Append([]string{strconv.Itoa(band), strconv.FormatFloat(mean, 'f', 6, 64)})
	}
	table.Render()
	return nil
}

func bandMean(ctx context.Context, r *raster.Reader, disp *raster.Dispatcher, band int, blocks []raster.Block) (float64, error) {
	out := raster.ProcessBlocks(ctx, disp, blocks, func(ctx context.Context, b raster.Block) (*driver.Buffer, error) {
		return r.ReadBlock(ctx, band, b)
	})
	if err := firstFailure(out); err != nil {
		return 0, err
	}

	var sum float64
	var n int
	for _, o := range out {
		for _, v := range o.Value.Data {
			sum += v
		}
		n += o.Value.Len()
	}
	return sum / float64(n), nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d > time.Second:
		return d.Round(time.Millisecond)
	case d > time.Millisecond:
		return d.Round(time.Microsecond)
	default:
		return d
	}
}
