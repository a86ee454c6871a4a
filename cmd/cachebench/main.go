// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// cachebench exercises the block cache and its key derivation with a
// synthetic sstable workload.
package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cachebench [command] (flags)",
	Short: "block cache benchmarking tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int64Var(
		&runConfig.cacheSize, "cache-size", 64<<20, "cache size in bytes")
	runCmd.Flags().IntVar(
		&runConfig.shards, "shards", 0, "shard count (0 means automatic)")
	runCmd.Flags().IntVarP(
		&runConfig.concurrency, "concurrency", "c", 1, "number of concurrent workers")
	runCmd.Flags().DurationVarP(
		&runConfig.duration, "duration", "d", 10*time.Second, "the duration to run (0, run forever)")
	runCmd.Flags().Uint64VarP(
		&runConfig.numOps, "num-ops", "n", 0, "maximum number of operations (0 means unlimited)")
	runCmd.Flags().IntVar(
		&runConfig.files, "files", 16, "number of simulated sstables")
	runCmd.Flags().Uint64Var(
		&runConfig.fileSize, "file-size", 64<<20, "size of each simulated sstable")
	runCmd.Flags().IntVar(
		&runConfig.blockSize, "block-size", 4096, "block size in bytes")
	runCmd.Flags().StringVar(
		&runConfig.distribution, "distribution", "zipf", "block selection distribution (uniform|zipf)")
	runCmd.Flags().Float64Var(
		&runConfig.maxOpsPerSec, "max-ops-per-sec", 0, "rate limit on operations (0 means unlimited)")
	runCmd.Flags().StringVar(
		&runConfig.secondary, "secondary", "", "compressed secondary tier codec (snappy|minlz|zstd|none); empty disables the tier")
	runCmd.Flags().Int64Var(
		&runConfig.secondarySize, "secondary-size", 64<<20, "secondary tier size in bytes")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
