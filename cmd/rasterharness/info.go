// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package main

import (
	"github.com/spf13/cobra"

	"github.com/scigolib/raster/internal/harness"
)

var infoCmd = &cobra.Command{
	Use:   "info <path>",
	Short: "print raster metadata and per-band means",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return harness.Info(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}
