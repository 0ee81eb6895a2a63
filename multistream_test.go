package bz2zstd

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/basinlabs/bz2zstd/internal/testutil"
)

func TestMultiStreamScanAndDecode(t *testing.T) {
	for i, names := range [][][]byte{
		{[]byte("hello"), nil},
		{nil, []byte("hello")},
		{nil, nil, []byte("hello")},
		{[]byte("hello"), nil, nil, []byte("hello")},
		{[]byte("hello"), []byte("hello")},
		{testutil.GenPredictableRandomData(40 * 1024), nil, []byte("tail")},
	} {
		ci, _ := concatBzipFixtures(t, "1", names...)

		result, err := Scan(ci)
		if err != nil {
			t.Fatalf("case %d: Scan: %v", i, err)
		}

		var got []byte
		var streamCRC uint32
		streams := 0
		for _, d := range result.Descriptors {
			data, crc, err := decodeBlock(ci, d)
			if err != nil {
				t.Fatalf("case %d: block %d: %v", i, d.Index, err)
			}
			got = append(got, data...)
			streamCRC = updateStreamCRC(streamCRC, crc)
			if d.EOS {
				if streamCRC != d.StreamCRC {
					t.Errorf("case %d: stream %d CRC mismatch: got 0x%08x want 0x%08x", i, streams, streamCRC, d.StreamCRC)
				}
				streamCRC = 0
				streams++
			}
		}

		var wantPlain []byte
		for _, n := range names {
			wantPlain = append(wantPlain, n...)
		}
		if !bytes.Equal(got, wantPlain) {
			t.Errorf("case %d: got %d bytes, want %d bytes", i, len(got), len(wantPlain))
		}
	}
}

func TestMultiStreamPipeline(t *testing.T) {
	ctx := context.Background()
	ci, _ := concatBzipFixtures(t, "1", []byte("hello"), nil, []byte("world"), nil, []byte("hello"))

	result, err := Scan(ci)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	rd := NewReader(ctx, ci, result.Descriptors)
	got, err := io.ReadAll(rd)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := "helloworldhello"; string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
