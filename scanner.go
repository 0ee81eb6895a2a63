// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bz2zstd

import (
	"github.com/basinlabs/bz2zstd/internal/bitstream"
)

var (
	blockMagic = [6]byte{0x31, 0x41, 0x59, 0x26, 0x53, 0x59}
	eosMagic   = [6]byte{0x17, 0x72, 0x45, 0x38, 0x50, 0x90}

	blockPretest            [256]bool
	blockFirst, blockSecond map[uint32]uint8
	eosPretest              [256]bool
	eosFirst, eosSecond     map[uint32]uint8
)

func init() {
	blockPretest, blockFirst, blockSecond = bitstream.Init(blockMagic)
	eosPretest, eosFirst, eosSecond = bitstream.Init(eosMagic)
}

// defaultMaxBlocks is the scanner's safety cap (spec §9 Open Question:
// bounded, to keep a pathological or hostile input from growing the
// descriptor slice without limit).
const defaultMaxBlocks = 1 << 20

// StreamHeader is the 4-byte `BZh<digit>` prefix of a bzip2 stream.
type StreamHeader [4]byte

// Valid reports whether h looks like a real bzip2 stream header.
func (h StreamHeader) Valid() bool {
	return h[0] == 'B' && h[1] == 'Z' && h[2] == 'h' && h[3] >= '1' && h[3] <= '9'
}

// BlockSize returns the block size in bytes this header declares (spec
// §2: 100KB-900KB in 100KB steps).
func (h StreamHeader) BlockSize() int {
	return 100 * 1000 * int(h[3]-'0')
}

// BlockDescriptor locates one compressed block within a CompressedInput,
// as a bit range rather than a copy (spec §4.2). StartBit points at the
// block's own 48-bit magic; EndBit is exclusive and points at the start
// of whatever follows (the next block's magic, or the stream's EOS
// magic).
type BlockDescriptor struct {
	StreamHeader StreamHeader
	StartBit     int
	EndBit       int
	Index        int

	// EOS is true when this descriptor is the last block of its
	// stream; StreamCRC is then the 32-bit trailer CRC read from that
	// stream's EOS marker, to be compared against the rolling fold of
	// this stream's block CRCs (spec §12.4).
	EOS       bool
	StreamCRC uint32
}

// ScanResult is the ordered list of block descriptors the scanner found,
// plus the total bit length of the input it scanned.
type ScanResult struct {
	Descriptors []BlockDescriptor
	TotalBits   int
}

// Scan locates every block across every concatenated stream in ci,
// returning them as an ordered slice of BlockDescriptor. It is strictly
// sequential and single-threaded (spec §4.3): the pipeline parallelizes
// block decoding, not scanning.
func Scan(ci *CompressedInput) (*ScanResult, error) {
	return ScanMax(ci, defaultMaxBlocks)
}

// ScanMax is Scan with an explicit cap on the number of blocks, mainly
// for tests that want to exercise the TooManyBlocks path cheaply.
func ScanMax(ci *CompressedInput, maxBlocks int) (*ScanResult, error) {
	buf := ci.Bytes()
	totalBits := len(buf) * 8

	if len(buf) < 4 {
		return nil, newErr(KindBadMagic, nil, "input too short for a stream header")
	}
	var header StreamHeader
	copy(header[:], buf[:4])
	if !header.Valid() {
		return nil, newErr(KindBadMagic, nil, "invalid stream header: % x", buf[:4])
	}

	var descs []BlockDescriptor
	cursor := 32
	openIdx := -1
	index := 0

	for cursor < totalBits {
		blkPos := scanFrom(buf, cursor, blockPretest, blockFirst, blockSecond)
		eosPos := scanFrom(buf, cursor, eosPretest, eosFirst, eosSecond)

		switch {
		case blkPos < 0 && eosPos < 0:
			if openIdx >= 0 {
				return nil, newErr(KindTruncated, nil, "truncated: block %d has no closing marker", descs[openIdx].Index)
			}
			return nil, newErr(KindTruncated, nil, "truncated: expected a block or end-of-stream marker")

		case eosPos >= 0 && (blkPos < 0 || eosPos <= blkPos):
			if eosPos+48+32 > totalBits {
				return nil, newErr(KindTruncated, nil, "truncated: end-of-stream marker has no complete stream CRC")
			}
			trailerCRC := uint32(bitstream.NewCursor(buf).Peek(eosPos+48, 32))
			if openIdx >= 0 {
				descs[openIdx].EndBit = eosPos
				descs[openIdx].EOS = true
				descs[openIdx].StreamCRC = trailerCRC
				openIdx = -1
			}
			next := alignToByte(eosPos + 48 + 32)
			if next >= totalBits {
				cursor = next
				continue
			}
			nb := next / 8
			if nb+4 > len(buf) {
				return nil, newErr(KindTruncated, nil, "truncated stream header following end-of-stream marker")
			}
			var nh StreamHeader
			copy(nh[:], buf[nb:nb+4])
			if !nh.Valid() {
				return nil, newErr(KindBadMagic, nil, "invalid stream header following end-of-stream marker: % x", buf[nb:nb+4])
			}
			header = nh
			cursor = next + 32

		default:
			if openIdx >= 0 {
				descs[openIdx].EndBit = blkPos
			}
			if len(descs) >= maxBlocks {
				return nil, newErr(KindTooManyBlocks, nil, "exceeded safety cap of %d blocks", maxBlocks)
			}
			descs = append(descs, BlockDescriptor{StreamHeader: header, StartBit: blkPos, Index: index})
			openIdx = len(descs) - 1
			index++
			cursor = blkPos + 48
		}
	}

	if openIdx >= 0 {
		return nil, newErr(KindTruncated, nil, "truncated: final block %d has no closing marker", descs[openIdx].Index)
	}

	return &ScanResult{Descriptors: descs, TotalBits: totalBits}, nil
}

// scanFrom returns the absolute bit position of the first match at or
// after cursor, or -1. bitstream.Scan only guarantees a match at or
// after byte 0 of the window passed to it, so a match that starts
// before cursor (possible when cursor isn't byte-aligned) is skipped
// and the search resumes one byte further in.
func scanFrom(buf []byte, cursor int, pretest [256]bool, first, second map[uint32]uint8) int {
	startByte := cursor / 8
	for startByte < len(buf) {
		bo, bi := bitstream.Scan(pretest, first, second, buf[startByte:])
		if bo < 0 {
			return -1
		}
		abs := (startByte+bo)*8 + bi
		if abs >= cursor {
			return abs
		}
		startByte += bo + 1
	}
	return -1
}

func alignToByte(bitPos int) int {
	return ((bitPos + 7) / 8) * 8
}

// extractBlockCRC reads the 32-bit block CRC stored immediately after a
// block's own 48-bit magic (spec §4.4's "known offset relative to
// start_bit").
func extractBlockCRC(buf []byte, startBit int) uint32 {
	return uint32(bitstream.NewCursor(buf).Peek(startBit+48, 32))
}

// updateStreamCRC folds a decoded block's CRC into the running stream
// CRC using bzip2's rolling rule (spec §12.4, grounded in the teacher's
// parallel.go and in dsnet's own Reader.Read: `endCRC = (endCRC<<1 |
// endCRC>>31) ^ blockCRC`).
func updateStreamCRC(streamCRC, blockCRC uint32) uint32 {
	return (streamCRC<<1 | streamCRC>>31) ^ blockCRC
}
