/*
NAME
  parse.go

DESCRIPTION
  parse.go provides parsing processes for syntax elements of different
  descriptors specified in section 7.2 of the specifications.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
  mrmod <mcmoranbjr@gmail.com>
*/

package h264dec

import (
	"github.com/pkg/errors"

	"github.com/ausocean/h264dec/bits"
)

// mbPartPredMode represents a macroblock partition prediction mode.
// Modes are defined as consts below. These modes are in section 7.4.5.
type mbPartPredMode int8

const (
	intra4x4 mbPartPredMode = iota
	intra8x8
	intra16x16
	predL0
	predL1
	direct
	biPred
	inter
	naMbPartPredMode
)

// fieldReader provides methods for reading fields of the descriptors from
// section 7.2 out of a bits.BitReader, with a sticky error that may be
// checked once after a series of reads.
type fieldReader struct {
	e  error
	br *bits.BitReader
}

// newFieldReader returns a new fieldReader reading from br.
func newFieldReader(br *bits.BitReader) *fieldReader {
	return &fieldReader{br: br}
}

// readBits returns the result of reading n bits from the underlying reader.
// If we have an error already, we do not continue with the read.
func (r *fieldReader) readBits(n int) uint32 {
	if r.e != nil {
		return 0
	}
	var v uint32
	v, r.e = r.br.ReadBits(n)
	return v
}

// readFlag parses a syntax element of u(1) descriptor and returns it as a
// bool. The read does not happen if the fieldReader has a non-nil error.
func (r *fieldReader) readFlag() bool {
	return r.readBits(1) == 1
}

// readUe parses a syntax element of ue(v) descriptor, i.e. an unsigned
// integer Exp-Golomb-coded element, using the method specified in section
// 9.1. The read does not happen if the fieldReader has a non-nil error.
func (r *fieldReader) readUe() uint32 {
	if r.e != nil {
		return 0
	}
	var v uint32
	v, r.e = r.br.ReadUnsignedGolomb()
	return v
}

// readTe parses a syntax element of te(v) descriptor, i.e. a truncated
// Exp-Golomb-coded element, using the method specified in section 9.1 with
// range x. The read does not happen if the fieldReader has a non-nil error.
func (r *fieldReader) readTe(x uint32) uint32 {
	if r.e != nil {
		return 0
	}
	var v uint32
	v, r.e = readTe(r.br, x)
	return v
}

// readSe parses a syntax element of se(v) descriptor, i.e. a signed integer
// Exp-Golomb-coded element, using the method described in sections 9.1 and
// 9.1.1. The read does not happen if the fieldReader has a non-nil error.
func (r *fieldReader) readSe() int32 {
	if r.e != nil {
		return 0
	}
	var v int32
	v, r.e = r.br.ReadSignedGolomb()
	return v
}

// readMe parses a syntax element of me(v) descriptor, i.e. a mapped
// Exp-Golomb-coded element, using the methods described in sections 9.1 and
// 9.1.2. The read does not happen if the fieldReader has a non-nil error.
func (r *fieldReader) readMe(chromaArrayType uint32, mpm mbPartPredMode) uint32 {
	if r.e != nil {
		return 0
	}
	var v uint32
	v, r.e = readMe(r.br, chromaArrayType, mpm)
	return v
}

// err returns the fieldReader's sticky error e.
func (r *fieldReader) err() error {
	return r.e
}

// readTe parses a syntax element of te(v) descriptor, i.e. a truncated
// Exp-Golomb-coded syntax element with range x, using the method specified
// in section 9.1.
func readTe(r *bits.BitReader, x uint32) (uint32, error) {
	if x > 1 {
		return r.ReadUnsignedGolomb()
	}

	if x == 1 {
		b, err := r.ReadBits(1)
		if err != nil {
			return 0, errors.Wrap(err, "could not read bit")
		}
		return 1 - b, nil
	}

	return 0, errReadTeBadX
}

var errReadTeBadX = errors.New("x must be more than or equal to 1")

// readMe parses a syntax element of me(v) descriptor, i.e. a mapped
// Exp-Golomb-coded element, using the methods described in sections 9.1 and
// 9.1.2.
func readMe(r *bits.BitReader, chromaArrayType uint32, mpm mbPartPredMode) (uint32, error) {
	// Indexes to codedBlockPattern map.
	var i1, i3 int

	// ChromaArrayType selects first index.
	switch chromaArrayType {
	case 1, 2:
		i1 = 0
	case 0, 3:
		i1 = 1
	default:
		return 0, errInvalidCAT
	}

	// CodeNum from the ue(v) parsing process selects second index.
	i2, err := r.ReadUnsignedGolomb()
	if err != nil {
		return 0, errors.Wrap(err, "error reading codeNum")
	}
	if int(i2) >= len(codedBlockPattern[i1]) {
		return 0, errInvalidCodeNum
	}

	// Macroblock prediction mode selects third index.
	switch mpm {
	case intra4x4, intra8x8:
		i3 = 0
	case inter:
		i3 = 1
	default:
		return 0, errInvalidMPM
	}

	return uint32(codedBlockPattern[i1][i2][i3]), nil
}

// Errors used by readMe.
var (
	errInvalidCodeNum = errors.New("invalid codeNum")
	errInvalidMPM     = errors.New("invalid macroblock prediction mode")
	errInvalidCAT     = errors.New("invalid chroma array type")
)

// codedBlockPattern contains data from Table 9-4 of the specifications for
// mapping a chromaArrayType, codeNum and macroblock prediction mode to a
// coded block pattern.
var codedBlockPattern = [][][2]uint8{
	// Table 9-4 (a) for ChromaArrayType = 1 or 2
	{
		{47, 0}, {31, 16}, {15, 1}, {0, 2}, {23, 4}, {27, 8}, {29, 32}, {30, 3},
		{7, 5}, {11, 10}, {13, 12}, {14, 15}, {39, 47}, {43, 7}, {45, 11}, {46, 13},
		{16, 14}, {3, 6}, {5, 9}, {10, 31}, {12, 35}, {19, 37}, {21, 42}, {26, 44},
		{28, 33}, {35, 34}, {37, 36}, {42, 40}, {44, 39}, {1, 43}, {2, 45}, {4, 46},
		{8, 17}, {17, 18}, {18, 20}, {20, 24}, {24, 19}, {6, 21}, {9, 26}, {22, 28},
		{25, 23}, {32, 27}, {33, 29}, {34, 30}, {36, 22}, {40, 25}, {38, 38}, {41, 41},
	},
	// Table 9-4 (b) for ChromaArrayType = 0 or 3
	{
		{15, 0}, {0, 1}, {7, 2}, {11, 4}, {13, 8}, {14, 3}, {3, 5}, {5, 10}, {10, 12},
		{12, 15}, {1, 7}, {2, 11}, {4, 13}, {8, 14}, {6, 6}, {9, 9},
	},
}

// moreRBSPData returns true if, at the reader's current position, there is
// RBSP syntax data remaining before the rbsp_stop_one_bit, implementing the
// more_rbsp_data() check described in section 7.2. The reader's position is
// unchanged on return.
func moreRBSPData(br *bits.BitReader) bool {
	if br.BitsRemaining() == 0 {
		return false
	}
	pos := br.Position()
	defer br.RewindTo(pos)

	// Data remains if any bit beyond the next one, which may itself be the
	// rbsp_stop_one_bit, is set.
	if _, err := br.ReadBits(1); err != nil {
		return false
	}
	for br.BitsRemaining() > 0 {
		n := br.BitsRemaining()
		if n > 32 {
			n = 32
		}
		v, err := br.ReadBits(n)
		if err != nil {
			return false
		}
		if v != 0 {
			return true
		}
	}
	return false
}
