// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bz2zstd

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/dsnet/compress/bzip2"

	"github.com/basinlabs/bz2zstd/internal/bitstream"
)

// maxBlockOutput bounds a single block's decompressed size. bzip2 blocks
// are defined by compressed input size (100KB-900KB), not output size,
// but well-formed output rarely exceeds a handful of times the block
// size; this cap exists to turn a malformed or hostile block into a
// clean KindInternal error instead of unbounded memory growth (spec §4.4).
const maxBlockOutput = 32 * 900 * 1000

// decodeBlock decodes one block by assembling it into a synthetic
// single-block bzip2 stream and handing that to the external codec
// (spec §4.4, §6 "External codec contract"). It returns the block's
// decompressed bytes and its own (not the stream's) CRC, read straight
// from the original compressed bits.
func decodeBlock(ci *CompressedInput, d BlockDescriptor) ([]byte, uint32, error) {
	synthetic, err := assembleSingleBlockStream(ci, d)
	if err != nil {
		return nil, 0, err
	}

	zr, err := bzip2.NewReader(bytes.NewReader(synthetic), nil)
	if err != nil {
		return nil, 0, newErr(KindCodec, err, "block %d: open codec", d.Index)
	}
	out, err := io.ReadAll(io.LimitReader(zr, maxBlockOutput+1))
	if err != nil {
		return nil, 0, newErr(KindCodec, err, "block %d: decode", d.Index)
	}
	if len(out) > maxBlockOutput {
		return nil, 0, newErr(KindInternal, nil, "block %d: output exceeds %d byte cap", d.Index, maxBlockOutput)
	}

	crc := extractBlockCRC(ci.Bytes(), d.StartBit)
	return out, crc, nil
}

// assembleSingleBlockStream builds a byte-aligned, well-formed
// single-block bzip2 stream out of one descriptor: the stream header
// the block belongs to, the block's own compressed bits verbatim
// (already beginning with the block magic), and a synthetic
// end-of-stream trailer whose CRC is the block's own CRC (with one
// block, the rolling stream CRC fold is exactly that block's CRC).
func assembleSingleBlockStream(ci *CompressedInput, d BlockDescriptor) ([]byte, error) {
	buf := ci.Bytes()
	sizeBits := d.EndBit - d.StartBit
	if sizeBits < 48+32 {
		return nil, newErr(KindInternal, nil, "block %d: size %d bits too small to hold a block", d.Index, sizeBits)
	}
	startByte := d.StartBit / 8
	bitOffset := d.StartBit % 8
	endByte := (d.EndBit + 7) / 8
	if endByte > len(buf) {
		return nil, newErr(KindInternal, nil, "block %d: end bit past end of input", d.Index)
	}

	bw := &bitstream.BitWriter{}
	bw.Init(d.StreamHeader[:], 32, sizeBits/8+14)
	bw.Append(buf[startByte:endByte], bitOffset, sizeBits)

	blockCRC := extractBlockCRC(buf, d.StartBit)
	bw.Append(eosMagic[:], 0, 48)
	var crcBytes [4]byte
	binary.BigEndian.PutUint32(crcBytes[:], blockCRC)
	bw.Append(crcBytes[:], 0, 32)

	data, _ := bw.Data()
	return data, nil
}

// mergeDescriptors combines two adjacent descriptors into one spanning
// both bit ranges. Because descriptors address a shared, never-mutated
// CompressedInput as [start_bit, end_bit) ranges rather than copied
// fragments, the merge is just extending the end: the bits the scanner
// mistook for a block boundary are still sitting exactly where they
// were, now treated as payload instead of magic (spec §12.1).
func mergeDescriptors(a, b BlockDescriptor) BlockDescriptor {
	return BlockDescriptor{
		StreamHeader: a.StreamHeader,
		StartBit:     a.StartBit,
		EndBit:       b.EndBit,
		Index:        a.Index,
		EOS:          b.EOS,
		StreamCRC:    b.StreamCRC,
	}
}
