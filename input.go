// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bz2zstd

import (
	"io"
	"sync/atomic"

	"golang.org/x/exp/mmap"
)

// CompressedInput is an immutable view of an entire compressed input,
// produced once and shared read-only by every scanner and worker that
// touches it (spec §3). It is safe for concurrent use: nothing about a
// CompressedInput ever mutates after construction.
//
// The underlying bytes are read once via a memory-mapped file, matching
// the "typically a memory map" note in spec §3 and §9 — acquisition is
// modeled as an external collaborator, not re-implemented here beyond
// the mmap.Open/ReadAt call.
type CompressedInput struct {
	data   []byte
	closer io.Closer
	refs   int32
}

// OpenFile memory-maps path and reads it into a single contiguous byte
// slice shared by every later caller of Bytes.
func OpenFile(path string) (*CompressedInput, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, newErr(KindIO, err, "open %s", path)
	}
	buf := make([]byte, r.Len())
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		r.Close()
		return nil, newErr(KindIO, err, "read %s", path)
	}
	return &CompressedInput{data: buf, closer: r, refs: 1}, nil
}

// FromBytes wraps an already-loaded buffer as a CompressedInput, for
// tests and for callers (e.g. stdin) that can't be memory-mapped.
func FromBytes(buf []byte) *CompressedInput {
	return &CompressedInput{data: buf, refs: 1}
}

// Bytes returns the full input. Callers must not modify the returned
// slice: it is shared by every worker decoding a block from it.
func (ci *CompressedInput) Bytes() []byte { return ci.data }

// acquire records a new holder of ci, so Release knows when it is safe
// to close the backing mmap handle. Pipeline workers acquire a
// CompressedInput for the duration of a single block decode; this
// mirrors the teacher's explicit ownership discipline around the
// shared compressed buffer even though Go's GC would reclaim the slice
// regardless — it is the mmap handle's Close that needs the count.
func (ci *CompressedInput) acquire() {
	atomic.AddInt32(&ci.refs, 1)
}

// Release drops a reference. Once the last reference is released, the
// backing mmap handle (if any) is closed.
func (ci *CompressedInput) Release() error {
	if atomic.AddInt32(&ci.refs, -1) == 0 && ci.closer != nil {
		return ci.closer.Close()
	}
	return nil
}
