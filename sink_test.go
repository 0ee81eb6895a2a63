// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bz2zstd

import (
	"bytes"
	gobzip2 "compress/bzip2"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestRawSinkPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	s := NewRawSink(&buf)
	if _, err := s.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got, want := buf.String(), "hello"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestZstdSinkRoundTrips(t *testing.T) {
	ci, _ := bzipFixture(t, []byte("the quick brown fox jumps over the lazy dog\n"), "1")
	result, err := Scan(ci)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var compressed bytes.Buffer
	sink, err := NewZstdSink(&compressed, zstd.SpeedDefault, 1)
	if err != nil {
		t.Fatalf("NewZstdSink: %v", err)
	}

	var plain []byte
	for _, d := range result.Descriptors {
		data, _, err := decodeBlock(ci, d)
		if err != nil {
			t.Fatalf("decodeBlock: %v", err)
		}
		plain = append(plain, data...)
	}
	if _, err := sink.Write(plain); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	zr, err := zstd.NewReader(bytes.NewReader(compressed.Bytes()))
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read back zstd frame: %v", err)
	}
	if !bytes.Equal(out, plain) {
		t.Errorf("zstd round trip mismatch")
	}

	oracle, err := io.ReadAll(gobzip2.NewReader(bytes.NewReader(ci.Bytes())))
	if err != nil {
		t.Fatalf("stdlib oracle: %v", err)
	}
	if !bytes.Equal(out, oracle) {
		t.Errorf("zstd-transcoded output disagrees with compress/bzip2 oracle")
	}
}
