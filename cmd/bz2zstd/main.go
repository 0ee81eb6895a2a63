// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command bz2zstd decompresses a bzip2 file in parallel, optionally
// transcoding it into a zstd-compressed output instead of raw bytes.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/basinlabs/bz2zstd"
)

var (
	outputPath    string
	zstdLevel     int
	jobs          int
	benchmarkScan bool
	verbose       bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var usageErr cobraUsageError
		if isUsageError(err, &usageErr) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(3)
		}
		fmt.Fprintln(os.Stderr, "bz2zstd:", err)
		os.Exit(bz2zstd.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bz2zstd <input.bz2>",
		Short:         "decompress a bzip2 file in parallel, optionally transcoding to zstd",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVarP(&outputPath, "output", "o", "", "output path (default derived from the input name)")
	root.Flags().IntVarP(&zstdLevel, "zstd-level", "z", 3, "zstd compression level 1-22, used when the output name ends in .zst")
	root.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0)-1, "number of block-decode workers")
	root.Flags().BoolVar(&benchmarkScan, "benchmark-scan", false, "scan for block boundaries only, report counts, and exit")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "log per-block progress to stderr")
	return root
}

// cobraUsageError marks an error that came from cobra's own argument or
// flag validation, as opposed to one returned by RunE.
type cobraUsageError struct{ error }

func isUsageError(err error, out *cobraUsageError) bool {
	// cobra reports its own usage failures (wrong arg count, unknown
	// flag) before RunE ever runs; everything we care to distinguish
	// has already happened by the time RunE returns, so any error that
	// isn't one of our own typed errors is treated as a usage error.
	if _, ok := err.(*bz2zstd.Error); ok {
		return false
	}
	*out = cobraUsageError{err}
	return true
}

func run(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	ctx := context.Background()

	ci, err := bz2zstd.OpenFile(inputPath)
	if err != nil {
		return err
	}
	defer ci.Release()

	result, err := bz2zstd.Scan(ci)
	if err != nil {
		return err
	}

	if benchmarkScan {
		fmt.Printf("%d blocks\n", len(result.Descriptors))
		fmt.Printf("%d bytes\n", len(ci.Bytes()))
		return nil
	}

	out, dst, err := openOutput(inputPath)
	if err != nil {
		return err
	}

	opts := []bz2zstd.PipelineOption{bz2zstd.WithWorkers(jobs), bz2zstd.WithVerbose(verbose)}

	var sink bz2zstd.Sink
	if strings.HasSuffix(dst, ".zst") {
		sink, err = bz2zstd.NewZstdSink(out, zstd.EncoderLevel(zstdLevel), clampZstdThreads(jobs))
		if err != nil {
			out.Close()
			os.Remove(dst)
			return err
		}
	} else {
		sink = bz2zstd.NewRawSink(out)
	}

	if err := bz2zstd.Run(ctx, ci, result.Descriptors, sink, opts...); err != nil {
		out.Close()
		if dst != "" {
			os.Remove(dst)
		}
		return err
	}
	return nil
}

// openOutput opens the destination for writing: stdout if outputPath is
// "-", a derived name from the input path if outputPath is unset,
// otherwise outputPath itself. It returns the empty string for dst when
// writing to stdout, since stdout is never removed on error.
func openOutput(inputPath string) (*os.File, string, error) {
	dst := outputPath
	if dst == "-" {
		return os.Stdout, "", nil
	}
	if dst == "" {
		dst = deriveOutputPath(inputPath)
	}
	f, err := os.Create(dst)
	if err != nil {
		return nil, "", &bz2zstd.Error{Kind: bz2zstd.KindIO, Msg: fmt.Sprintf("create %s", dst), Err: err}
	}
	return f, dst, nil
}

func deriveOutputPath(inputPath string) string {
	if strings.HasSuffix(inputPath, ".bz2") {
		return strings.TrimSuffix(inputPath, ".bz2") + ".zst"
	}
	return inputPath + ".out"
}

func clampZstdThreads(n int) int {
	const max = 4
	if n > max {
		log.Printf("bz2zstd: clamping zstd encoder concurrency from %d to %d", n, max)
		return max
	}
	return n
}
