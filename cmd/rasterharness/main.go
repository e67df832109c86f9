// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Command rasterharness exercises concurrent raster I/O end to end and
// inspects raster files.
//
// Usage:
//
//	rasterharness run --output-dir artifacts --size 256 --threads 4
//	rasterharness info artifacts/synthetic_gtiff.tif
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
