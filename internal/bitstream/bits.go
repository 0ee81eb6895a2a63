// Copyright 2026 The bz2zstd Authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package bitstream implements bit-granular pattern matching and editing
// over a big-endian (MSB-first) bit stream backed by a plain byte slice.
// It underlies the bzip2 block scanner: bzip2 packs 8 bits per byte with
// the most significant bit first, and the block/end-of-stream magic
// numbers that mark block boundaries can start at any of the 8 possible
// bit offsets within a byte.
package bitstream

import (
	"bytes"
	"encoding/binary"
)

// ShiftRight shifts the contents of a byte slice, with carry, one position
// to the right. The carry is from the least significant bit to the most
// significant bit of the following byte.
func ShiftRight(input []byte) []byte {
	for pos := len(input) - 1; pos >= 1; pos-- {
		input[pos] >>= 1
		input[pos] = (input[pos] & 0x7f) | (input[pos-1] & 0x1 << 7)
	}
	input[0] >>= 1
	return input
}

// Init creates the three lookup tables used by Scan to find a 6-byte
// (48-bit) magic value at an arbitrary bit alignment: a cheap 256-entry
// pretest table keyed on a single byte, and two uint32 tables that
// together cover every shifted form of the magic number.
func Init(magic [6]byte) (pretest [256]bool, firstWord, secondWord map[uint32]uint8) {
	firstWord, secondWord = AllShiftedValues(magic)
	probe := []byte{magic[0], magic[1], magic[2]}
	for i := 0; i < 8; i++ {
		pretest[probe[1]] = true
		ShiftRight(probe)
	}
	return
}

// AllShiftedValues builds the lookup tables consumed by Scan for the
// given 6-byte magic number. For any n-bit pattern that can occur at any
// bit position in a byte stream, there are 8 distinct byte-level framings
// of it (one per possible starting bit offset); AllShiftedValues
// enumerates all of them split across two uint32 lookup tables (rather
// than one 64-bit table) to keep the generation cost and memory
// footprint down.
func AllShiftedValues(magic [6]byte) (firstWordMap map[uint32]uint8, secondWordMap map[uint32]uint8) {
	m0, m1, m2, m3, m4, m5 := magic[0], magic[1], magic[2], magic[3], magic[4], magic[5]

	// Lookup table for the trailing two bytes of the magic number, shifted
	// right up to 7 times with all possible trailing fill values.
	secondWordMap = make(map[uint32]uint8, 256*256*8)
	first, second := make([]byte, 6), make([]byte, 6)
	for i := 0; i < 256; i++ {
		for j := 0; j < 256; j++ {
			second[0] = 0x0
			second[1] = m3
			second[2] = m4
			second[3] = m5
			second[4] = uint8(i)
			second[5] = uint8(j)
			secondWordMap[binary.LittleEndian.Uint32(second[2:])] = 0
			for s := 1; s < 8; s++ {
				second = ShiftRight(second)
				secondWordMap[binary.LittleEndian.Uint32(second[2:])] = uint8(s)
			}
		}
	}

	// Lookup table for the leading 4 bytes of the magic number, shifted
	// right up to 7 times with all possible leading fill values.
	firstWordMap = make(map[uint32]uint8, (128*2)+1)
	first[0] = m0
	first[1] = m1
	first[2] = m2
	first[3] = m3
	firstWordMap[binary.LittleEndian.Uint32(first[:4])] = 0
	to := 2
	mask := uint8(0xff)
	for shift := uint8(1); shift <= 7; shift++ {
		first = ShiftRight(first)
		mask >>= 1
		for j := 0; j < to; j++ {
			first[0] = (first[0] & mask) | (byte(j) << (8 - shift))
			firstWordMap[binary.LittleEndian.Uint32(first[:4])] = shift
		}
		to <<= 1
	}
	return
}

// Scan returns the first occurrence, at or after byte 0 of input, of the
// 48-bit pattern represented by pretest/first/second (as built by Init).
// It returns the byte offset of the first byte containing the pattern and
// the bit offset within that byte (0 for a byte-aligned match). It
// returns (-1, -1) if the pattern does not occur. The search is
// byte-aligned first (a cheap pretest against every byte, rejecting 31 of
// 32 candidates without a map lookup) and only falls back to the more
// expensive per-shift comparison once the pretest succeeds, which keeps
// the common case of scanning megabytes of payload cheap.
func Scan(pretest [256]bool, first, second map[uint32]uint8, input []byte) (int, int) {
	pos := 1
	il := len(input)
	for {
		if pos+4 > il {
			break
		}
		if !pretest[input[pos]] {
			pos++
			continue
		}
		pos--
		lv := binary.LittleEndian.Uint32(input[pos : pos+4])
		shift, ok := first[lv]
		if !ok {
			pos += 2
			continue
		}
		rpos := pos + 1
		pos += 4
		var nv uint32
		switch il - pos {
		case 0, 1:
		case 2:
			tmp := []byte{input[pos], input[pos+1], 0x0, 0x0}
			nv = binary.LittleEndian.Uint32(tmp)
		case 3:
			tmp := []byte{input[pos], input[pos+1], input[pos+2], 0x0}
			nv = binary.LittleEndian.Uint32(tmp)
		default:
			nv = binary.LittleEndian.Uint32(input[pos : pos+4])
		}
		s, ok := second[nv]
		if !ok || s != shift {
			// s != shift means one or more bits separate the first and
			// second halves of the candidate match; it is a coincidence,
			// not a real match.
			pos = rpos + 1
			continue
		}
		return rpos - 1, int(shift)
	}
	return -1, -1
}

// FindTrailingMagicAndCRC locates a 6-byte trailer magic value anchored at
// the end of buf, allowing for up to 7 bits of trailing zero padding (the
// bzip2 format pads the final block to a byte boundary). It returns the 4
// bytes immediately following the magic (the stream CRC), the total
// length in bytes consumed by the trailer search window, and the bit
// offset of the magic within that window's first byte.
func FindTrailingMagicAndCRC(buf []byte, trailer []byte) (crc []byte, length int, offsetInBits int) {
	l := len(buf)
	if l < 10 {
		return nil, -1, -1
	}
	crc = make([]byte, 4)
	aligned := buf[l-10:]
	if idx := bytes.Index(aligned, trailer); idx == 0 {
		copy(crc, aligned[6:10])
		return crc, 10, 0
	}
	if l < 11 {
		return nil, -1, -1
	}
	unaligned := make([]byte, 11)
	copy(unaligned, buf[l-11:])
	for p := 0; p < 7; p++ {
		unaligned = ShiftRight(unaligned)
		if idx := bytes.Index(unaligned[1:], trailer); idx == 0 {
			copy(crc, unaligned[7:11])
			return crc, 10, (7 - p)
		}
	}
	return nil, -1, -1
}

// OverwriteAtBitOffset overwrites the contents of buf with value starting
// at the specified bit offset, preserving the bits before and after the
// overwritten range.
func OverwriteAtBitOffset(buf []byte, offset int, value []byte) {
	byteOffset := offset / 8
	bitOffset := offset % 8
	if bitOffset == 0 {
		copy(buf[byteOffset:], value)
		return
	}

	shiftedValue := make([]byte, len(value)+1)
	copy(shiftedValue, value)
	for s := 0; s < bitOffset; s++ {
		shiftedValue = ShiftRight(shiftedValue)
	}

	lastByteOffset := byteOffset + len(value)

	firstByteMask := uint8(0xff) << (8 - bitOffset)
	lastByteMask := uint8(0xff) >> bitOffset
	firstByte := buf[byteOffset] & firstByteMask
	firstByte |= shiftedValue[0]
	buf[byteOffset] = firstByte
	copy(buf[byteOffset+1:], shiftedValue[1:len(shiftedValue)-1])
	lastByte := buf[lastByteOffset] & lastByteMask
	lastByte |= shiftedValue[len(shiftedValue)-1]
	buf[lastByteOffset] = lastByte
}

// BitWriter appends variable-length bit ranges from arbitrary bit offsets
// into a growing byte buffer. It is used by the block decoder to
// re-assemble a synthetic single-block stream, including the merged
// descriptors of the pipeline's false-positive recovery.
type BitWriter struct {
	buf       []byte
	lenInBits int
}

// Init stores the initial bitstream, allowing for a size hint to
// appropriately size the underlying buffer and avoid copies.
func (bw *BitWriter) Init(data []byte, lenBits, sizeHint int) {
	if sizeHint == 0 {
		sizeHint = (lenBits / 8) + 1
	}
	bw.buf = make([]byte, 0, sizeHint)
	bw.buf = append(bw.buf, data...)
	bw.lenInBits = lenBits
}

func copyAndShiftRight(n int, data []byte, lenInBits int) []byte {
	padded := make([]byte, len(data)+1)
	copy(padded, data)
	for i := 0; i < n; i++ {
		ShiftRight(padded)
	}
	return padded
}

// Append appends data to the bitstream. The appended range starts at
// offsetBits within data and is lenBits long.
func (bw *BitWriter) Append(data []byte, offsetBits, lenBits int) {
	trailing := bw.lenInBits % 8
	if trailing == 0 {
		if offsetBits > 0 {
			data = copyAndShiftRight(8-offsetBits, data, lenBits)[1:]
		}
		bw.buf = append(bw.buf, data...)
		bw.lenInBits += lenBits
		if need := (bw.lenInBits + 7) / 8; len(bw.buf) > need {
			bw.buf = bw.buf[:need]
		}
		return
	}

	if overlapShift := trailing - offsetBits; overlapShift > 0 {
		data = copyAndShiftRight(overlapShift, data, lenBits)
	} else if overlapShift < 0 {
		data = copyAndShiftRight(8-offsetBits+trailing, data, lenBits)[1:]
	}

	trailingMask := uint8(0xff) << (8 - trailing)
	leadingMask := uint8(0xff) >> trailing

	overlap := bw.buf[len(bw.buf)-1] & trailingMask
	overlap |= data[0] & leadingMask

	bw.buf[len(bw.buf)-1] = overlap
	bw.buf = append(bw.buf, data[1:]...)
	bw.lenInBits += lenBits
	if need := (bw.lenInBits + 7) / 8; len(bw.buf) > need {
		bw.buf = bw.buf[:need]
	}
}

// Data returns the accumulated bitstream and its length in bits.
func (bw *BitWriter) Data() ([]byte, int) {
	return bw.buf, bw.lenInBits
}

// Cursor is a read-only, saturating view over a byte slice addressed in
// bits, MSB-first within each byte. Peeks that would run past the end of
// the slice return the available bits zero-padded on the right rather
// than failing: the scanner treats Cursor as a sliding pattern-matching
// window and must tolerate a short tail at end of input.
type Cursor struct {
	buf []byte
}

// NewCursor returns a Cursor over buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Len returns the total number of bits addressable by the cursor.
func (c *Cursor) Len() int {
	return len(c.buf) * 8
}

// Remaining returns the number of bits at or after pos.
func (c *Cursor) Remaining(pos int) int {
	if r := c.Len() - pos; r > 0 {
		return r
	}
	return 0
}

// Peek returns the n (<= 64) bits starting at bit offset pos, without
// advancing anything (Cursor carries no internal position; callers track
// their own). Bits past the end of buf are returned as zero.
func (c *Cursor) Peek(pos, n int) uint64 {
	if n == 0 {
		return 0
	}
	var v uint64
	for i := 0; i < n; i++ {
		v <<= 1
		bitPos := pos + i
		byteIdx, bitIdx := bitPos/8, bitPos%8
		if byteIdx < len(c.buf) {
			v |= uint64((c.buf[byteIdx] >> (7 - bitIdx)) & 1)
		}
	}
	return v
}

// Bytes returns the underlying byte slice the cursor was created over.
func (c *Cursor) Bytes() []byte {
	return c.buf
}
