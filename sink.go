// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bz2zstd

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// rawSink writes decoded plaintext straight through to an io.Writer,
// closing it on Close if it is also an io.Closer (spec §4.6, "raw"
// mode).
type rawSink struct {
	w io.Writer
	c io.Closer
}

// NewRawSink wraps w as a Sink that passes decoded bytes through
// unmodified.
func NewRawSink(w io.Writer) Sink {
	c, _ := w.(io.Closer)
	return &rawSink{w: w, c: c}
}

func (s *rawSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *rawSink) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// zstdSink re-compresses decoded plaintext into a zstd frame as it
// arrives, matching the streaming encoder pattern in rclone's
// zstd_handler.go (spec §4.6, "transcode" mode).
type zstdSink struct {
	enc *zstd.Encoder
	c   io.Closer
}

// NewZstdSink wraps w as a Sink that transcodes decoded bytes into a
// single zstd frame at the given encoder level, using up to threads
// encoder goroutines (0 lets the library pick its own default).
func NewZstdSink(w io.Writer, level zstd.EncoderLevel, threads int) (Sink, error) {
	opts := []zstd.EOption{zstd.WithEncoderLevel(level)}
	if threads > 0 {
		opts = append(opts, zstd.WithEncoderConcurrency(threads))
	}
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return nil, newErr(KindIO, err, "create zstd encoder")
	}
	c, _ := w.(io.Closer)
	return &zstdSink{enc: enc, c: c}, nil
}

func (s *zstdSink) Write(p []byte) (int, error) { return s.enc.Write(p) }

func (s *zstdSink) Close() error {
	if err := s.enc.Close(); err != nil {
		return newErr(KindIO, err, "finalize zstd frame")
	}
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}
