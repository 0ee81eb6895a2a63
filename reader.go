// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bz2zstd

import (
	"context"
	"io"
)

// pipeSink adapts an io.Writer to Sink with a no-op Close: used
// internally by NewReader, where the io.PipeWriter's lifecycle is
// owned by the goroutine driving Run, not by Run itself.
type pipeSink struct{ w io.Writer }

func (s pipeSink) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s pipeSink) Close() error                { return nil }

// NewReader exposes the ordered parallel pipeline as a pull-based
// io.Reader (spec §4.7), for callers that want decoded bytes rather
// than driving a Sink themselves. Run executes in its own goroutine;
// its error, if any, is delivered through the returned Reader's final
// Read via io.Pipe's own error propagation.
func NewReader(ctx context.Context, ci *CompressedInput, descs []BlockDescriptor, opts ...PipelineOption) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		err := Run(ctx, ci, descs, pipeSink{w: pw}, opts...)
		pw.CloseWithError(err)
	}()
	return pr
}
