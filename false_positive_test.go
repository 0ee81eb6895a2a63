// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bz2zstd

import (
	"bytes"
	"context"
	"testing"

	"github.com/basinlabs/bz2zstd/internal/testutil"
)

// TestFalsePositiveMergeRecovery simulates a scanner false positive (spec
// §12.1) by splitting one real block's descriptor into two at an
// arbitrary interior bit, without touching the underlying compressed
// bytes at all: this is exactly what the scanner itself produces when a
// block's own payload happens to contain the 48-bit block magic as data.
// decodeBlock must fail on the truncated first half, and the pipeline's
// merge-and-retry path must reunite the two descriptors and recover the
// original plaintext byte for byte.
func TestFalsePositiveMergeRecovery(t *testing.T) {
	data := testutil.GenPredictableRandomData(300 * 1024)
	ci, _ := bzipFixture(t, data, "9")

	baseline, err := Scan(ci)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(baseline.Descriptors) == 0 {
		t.Fatal("expected at least one block")
	}
	d := baseline.Descriptors[0]
	mid := d.StartBit + (d.EndBit-d.StartBit)/2
	if mid <= d.StartBit+48 || mid >= d.EndBit-48 {
		t.Skip("block too small to safely split")
	}

	split := make([]BlockDescriptor, 0, len(baseline.Descriptors)+1)
	split = append(split,
		BlockDescriptor{StreamHeader: d.StreamHeader, StartBit: d.StartBit, EndBit: mid, Index: 0},
		BlockDescriptor{StreamHeader: d.StreamHeader, StartBit: mid, EndBit: d.EndBit, Index: 1, EOS: d.EOS, StreamCRC: d.StreamCRC},
	)
	for _, rest := range baseline.Descriptors[1:] {
		rest.Index++
		split = append(split, rest)
	}

	rd := NewReader(context.Background(), ci, split)
	var got bytes.Buffer
	if _, err := got.ReadFrom(rd); err != nil {
		t.Fatalf("pipeline with split descriptor failed to recover: %v", err)
	}
	if !bytes.Equal(got.Bytes(), data) {
		t.Errorf("recovered data mismatch: got %d bytes, want %d bytes", got.Len(), len(data))
	}
}
