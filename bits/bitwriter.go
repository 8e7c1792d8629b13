/*
DESCRIPTION
  bitwriter.go provides a bit writer implementation complementary to the bit
  reader, including Exp-Golomb encoding of unsigned and signed values.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package bits

// BitWriter accumulates bits most-significant first into an internal buffer.
// The zero value is ready to use.
type BitWriter struct {
	buf []byte
	cur byte
	n   int // Bits pending in cur, in [0,8).
}

// WriteBits writes the n least-significant bits of v, most-significant first.
// n greater than 32 or negative is ignored.
func (bw *BitWriter) WriteBits(v uint32, n int) {
	if n < 0 || n > 32 {
		return
	}
	for i := n - 1; i >= 0; i-- {
		bw.cur = bw.cur<<1 | byte(v>>uint(i))&1
		bw.n++
		if bw.n == 8 {
			bw.buf = append(bw.buf, bw.cur)
			bw.cur, bw.n = 0, 0
		}
	}
}

// WriteBool writes a single bit, 1 for true.
func (bw *BitWriter) WriteBool(b bool) {
	if b {
		bw.WriteBits(1, 1)
		return
	}
	bw.WriteBits(0, 1)
}

// WriteUnsignedGolomb writes v as an unsigned Exp-Golomb code, ue(v) in
// Rec. ITU-T H.264 9.1.
func (bw *BitWriter) WriteUnsignedGolomb(v uint32) {
	x := uint64(v) + 1
	lz := 0
	for 1<<uint(lz+1) <= x {
		lz++
	}
	bw.WriteBits(0, lz)
	for i := lz; i >= 0; i-- {
		bw.WriteBits(uint32(x>>uint(i))&1, 1)
	}
}

// WriteSignedGolomb writes v as a signed Exp-Golomb code, se(v) in
// Rec. ITU-T H.264 9.1.1. The se(v) code space covers (-2^31, 2^31), so the
// minimum int32 cannot be represented.
func (bw *BitWriter) WriteSignedGolomb(v int32) {
	if v > 0 {
		bw.WriteUnsignedGolomb(uint32(v)*2 - 1)
		return
	}
	bw.WriteUnsignedGolomb(uint32(-int64(v)) * 2)
}

// ByteAlign pads with zero bits up to the next byte boundary. It is a no-op
// when the writer is already aligned.
func (bw *BitWriter) ByteAlign() {
	for bw.n != 0 {
		bw.WriteBits(0, 1)
	}
}

// Bytes returns the accumulated bytes. Pending bits short of a full byte are
// not included; call ByteAlign first to flush them.
func (bw *BitWriter) Bytes() []byte {
	return bw.buf
}

// BitsWritten returns the total number of bits written, including any bits
// pending beyond the last full byte.
func (bw *BitWriter) BitsWritten() int {
	return len(bw.buf)*8 + bw.n
}
