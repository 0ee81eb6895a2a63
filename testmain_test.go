// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bz2zstd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/basinlabs/bz2zstd/internal/testutil"
)

// bzipFixture bzip2-compresses data at the given block size (a single
// digit string, e.g. "1") into a fresh temp file and returns a
// CompressedInput over the result plus the compressed bytes themselves.
func bzipFixture(t *testing.T, data []byte, blockSize string) (*CompressedInput, []byte) {
	t.Helper()
	dir := t.TempDir()
	name := filepath.Join(dir, "fixture")
	if err := testutil.CreateBzipFile(name, blockSize, data); err != nil {
		t.Skipf("system bzip2 not usable in this environment: %v", err)
	}
	compressed, err := os.ReadFile(name + ".bz2")
	if err != nil {
		t.Fatalf("read compressed fixture: %v", err)
	}
	return FromBytes(compressed), compressed
}

// concatBzipFixtures bzip2-compresses each entry of datas independently
// and concatenates the results, simulating the multi-stream
// concatenation described in spec §2.
func concatBzipFixtures(t *testing.T, blockSize string, datas ...[]byte) (*CompressedInput, []byte) {
	t.Helper()
	var all []byte
	for i, d := range datas {
		_, compressed := bzipFixture(t, d, blockSize)
		_ = i
		all = append(all, compressed...)
	}
	return FromBytes(all), all
}
