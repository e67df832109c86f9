// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package main

import (
	"github.com/spf13/cobra"
)

// rootCmd is a root of all commands.
var rootCmd = &cobra.Command{
	Use:           "rasterharness [command] [flags]",
	Short:         "concurrent raster I/O harness",
	Long:          `rasterharness writes and reads raster files from many goroutines and checks the results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(infoCmd)
}
