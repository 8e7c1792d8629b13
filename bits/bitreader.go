/*
DESCRIPTION
  bitreader.go provides a bit reader implementation that reads, peeks and
  rewinds over an in-memory byte slice, along with Exp-Golomb decoding of
  unsigned and signed values.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package bits provides a bit reader over an in-memory byte slice, with
// peeking, position save/restore and Exp-Golomb decoding, as well as a
// complementary bit writer for composing test vectors.
package bits

import "errors"

// Errors returned by BitReader operations.
var (
	// ErrOutOfBits is returned when an operation requires more bits than
	// remain in the source.
	ErrOutOfBits = errors.New("bits: out of bits")

	// ErrBitCount is returned when the number of bits requested from a read
	// or peek is outside the range a uint32 result can represent.
	ErrBitCount = errors.New("bits: bit count must be between 0 and 32")

	// ErrGolombOverflow is returned when an Exp-Golomb code has more leading
	// zeros than a 32-bit value allows, indicating a corrupt stream.
	ErrGolombOverflow = errors.New("bits: Exp-Golomb code exceeds 32 bits")
)

// BitPosition is a saved location within a BitReader's source. Byte is the
// index of the current byte and Bit the number of bits already consumed from
// that byte, in [0,8).
type BitPosition struct {
	Byte int
	Bit  int
}

// BitReader is a bit reader that provides methods for reading, peeking and
// rewinding over bits from an in-memory byte slice source.
type BitReader struct {
	d   []byte
	i   int // Index of the current byte in d.
	bit int // Bits consumed from the current byte, in [0,8).
}

// NewBitReader returns a new BitReader whose source is d. The reader does not
// copy d; the caller must not mutate it while reading.
func NewBitReader(d []byte) *BitReader {
	return &BitReader{d: d}
}

// ReadBits reads n bits from the source and returns them in the
// least-significant part of a uint32. Bits are consumed most-significant
// first.
// For example, with a source as []byte{0x8f,0xe3} (1000 1111, 1110 0011), we
// would get the following results for consequtive reads with n values:
// n = 4, res = 0x8 (1000)
// n = 2, res = 0x3 (0011)
// n = 4, res = 0xf (1111)
// n = 6, res = 0x23 (0010 0011)
// If fewer than n bits remain, ErrOutOfBits is returned and the reader does
// not advance.
func (br *BitReader) ReadBits(n int) (uint32, error) {
	v, err := br.PeekBits(n)
	if err != nil {
		return 0, err
	}
	br.skip(n)
	return v, nil
}

// PeekBits provides the next n bits in the least-significant part of a
// uint32 without advancing through the source.
func (br *BitReader) PeekBits(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, ErrBitCount
	}
	if n > br.BitsRemaining() {
		return 0, ErrOutOfBits
	}
	var (
		v   uint64
		got int
	)
	i, bit := br.i, br.bit
	for got < n {
		b := br.d[i]
		avail := 8 - bit
		take := n - got
		if take > avail {
			take = avail
		}
		// Shift the wanted bits of b down to the bottom and mask.
		v = v<<uint(take) | uint64(b>>uint(avail-take))&((1<<uint(take))-1)
		got += take
		bit += take
		if bit == 8 {
			bit = 0
			i++
		}
	}
	return uint32(v), nil
}

// ReadBool reads a single bit and returns it as a bool, true for 1.
func (br *BitReader) ReadBool() (bool, error) {
	v, err := br.ReadBits(1)
	return v != 0, err
}

// ReadUnsignedGolomb reads an unsigned Exp-Golomb coded value, ue(v) in
// Rec. ITU-T H.264 9.1: leading zeros are counted up to the first 1 bit, and
// the value is 2^leadingZeros - 1 plus the leadingZeros bits that follow.
func (br *BitReader) ReadUnsignedGolomb() (uint32, error) {
	lz := 0
	for {
		b, err := br.ReadBits(1)
		if err != nil {
			return 0, err
		}
		if b == 1 {
			break
		}
		lz++
		if lz > 31 {
			return 0, ErrGolombOverflow
		}
	}
	if lz == 0 {
		return 0, nil
	}
	suffix, err := br.ReadBits(lz)
	if err != nil {
		return 0, err
	}
	return 1<<uint(lz) - 1 + suffix, nil
}

// ReadSignedGolomb reads a signed Exp-Golomb coded value, se(v) in
// Rec. ITU-T H.264 9.1.1: the unsigned code k maps to (k+1)/2 when k is odd
// and -(k/2) when k is even.
func (br *BitReader) ReadSignedGolomb() (int32, error) {
	k, err := br.ReadUnsignedGolomb()
	if err != nil {
		return 0, err
	}
	if k&1 == 1 {
		return int32(k/2) + 1, nil
	}
	return -int32(k / 2), nil
}

// ByteAlign discards bits up to the next byte boundary. It is a no-op when
// the reader is already aligned.
func (br *BitReader) ByteAlign() {
	if br.bit != 0 {
		br.bit = 0
		br.i++
	}
}

// ByteAligned returns true if the reader position is at the start of a byte,
// and false otherwise.
func (br *BitReader) ByteAligned() bool {
	return br.bit == 0
}

// BitsRemaining returns the number of unread bits left in the source.
func (br *BitReader) BitsRemaining() int {
	return (len(br.d)-br.i)*8 - br.bit
}

// Position returns the current position of the reader so that it may later
// be restored with RewindTo.
func (br *BitReader) Position() BitPosition {
	return BitPosition{Byte: br.i, Bit: br.bit}
}

// RewindTo restores a position previously obtained from Position on the same
// reader. Positions from other readers, or positions never returned by
// Position, give undefined read results.
func (br *BitReader) RewindTo(p BitPosition) {
	br.i, br.bit = p.Byte, p.Bit
}

// skip advances the reader by n bits. The caller must have established that
// n bits remain.
func (br *BitReader) skip(n int) {
	br.bit += n
	br.i += br.bit / 8
	br.bit %= 8
}
