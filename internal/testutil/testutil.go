// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package testutil provides fixture generation shared by this module's
// tests: predictable random data and real bzip2-encoded files produced
// by shelling out to the system bzip2 binary, which remains the
// simplest available oracle for "is this a well-formed bzip2
// stream".
package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"os/exec"
)

// FixedRandSeed is shared by every test that needs the same
// "predictable random" fixture across runs.
const FixedRandSeed = 0x1234

// GenPredictableRandomData generates size bytes of random data from a
// fixed seed, so fixtures are reproducible across test runs without
// being checked into the repo.
func GenPredictableRandomData(size int) []byte {
	gen := rand.New(rand.NewSource(FixedRandSeed))
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(gen.Intn(256))
	}
	return out
}

// CreateBzipFile writes data to filename and bzip2-compresses it in
// place at the given block size (a single digit, e.g. "1" through
// "9"), using the system bzip2 binary.
func CreateBzipFile(filename, blockSize string, data []byte) error {
	if err := os.WriteFile(filename, data, 0660); err != nil {
		return fmt.Errorf("write file: %v: %v", filename, err)
	}
	cmd := exec.Command("bzip2", "-"+blockSize, filename)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to run bzip2 on %v: %v: %v", filename, err, string(output))
	}
	return nil
}

// FirstN returns at most the first n bytes of b.
func FirstN(n int, b []byte) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
