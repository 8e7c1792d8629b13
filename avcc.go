package h264dec

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned when parsing AVCC formatted data.
var (
	errAVCCVersion    = errors.New("unexpected AVC decoder configuration record version")
	errAVCCTruncated  = errors.New("AVC decoder configuration record too short")
	errAVCCLengthSize = errors.New("NALU length size not in [1,4]")
)

// AVCConfig holds the fields of an AVCDecoderConfigurationRecord as defined
// in section 5.3.3.1 of ISO/IEC 14496-15, the form in which parameter sets
// travel in MP4 and FLV containers.
type AVCConfig struct {
	Version       uint8
	Profile       uint8
	ProfileCompat uint8
	Level         uint8

	// NALULengthSize is the byte length of the length prefix preceding each
	// NAL unit in the stream body, lengthSizeMinusOne + 1.
	NALULengthSize int

	// SPS and PPS hold the encapsulated parameter set payloads carried by
	// the record, ready for NewNALUnit.
	SPS [][]byte
	PPS [][]byte
}

// ParseAVCConfig parses an AVCDecoderConfigurationRecord from b and returns
// it as a new AVCConfig.
func ParseAVCConfig(b []byte) (*AVCConfig, error) {
	if len(b) < 6 {
		return nil, errAVCCTruncated
	}
	if b[0] != 1 {
		return nil, errAVCCVersion
	}
	c := &AVCConfig{
		Version:        b[0],
		Profile:        b[1],
		ProfileCompat:  b[2],
		Level:          b[3],
		NALULengthSize: int(b[4]&0x3) + 1,
	}

	nSPS := int(b[5] & 0x1f)
	i := 6
	for j := 0; j < nSPS; j++ {
		ps, n, err := readParamSet(b[i:])
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("could not read SPS %d", j))
		}
		c.SPS = append(c.SPS, ps)
		i += n
	}

	if i >= len(b) {
		return nil, errAVCCTruncated
	}
	nPPS := int(b[i])
	i++
	for j := 0; j < nPPS; j++ {
		ps, n, err := readParamSet(b[i:])
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("could not read PPS %d", j))
		}
		c.PPS = append(c.PPS, ps)
		i += n
	}
	return c, nil
}

// readParamSet reads a 16-bit length prefixed parameter set from b, returning
// the payload and the number of bytes consumed.
func readParamSet(b []byte) ([]byte, int, error) {
	if len(b) < 2 {
		return nil, 0, errAVCCTruncated
	}
	l := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+l {
		return nil, 0, errAVCCTruncated
	}
	return b[2 : 2+l], 2 + l, nil
}

// SplitLengthPrefixed splits the AVCC stream body b, a sequence of NAL units
// each preceded by a big endian length of lengthSize bytes, into the
// individual encapsulated payloads. A length running past the end of b is an
// error; AVCC carries no resynchronisation points so nothing after a bad
// length can be trusted.
func SplitLengthPrefixed(b []byte, lengthSize int) ([][]byte, error) {
	if lengthSize < 1 || lengthSize > 4 {
		return nil, errAVCCLengthSize
	}
	var nalus [][]byte
	for i := 0; i < len(b); {
		if len(b)-i < lengthSize {
			return nil, fmt.Errorf("%d byte length prefix truncated at offset %d", lengthSize, i)
		}
		var l int
		for j := 0; j < lengthSize; j++ {
			l = l<<8 | int(b[i+j])
		}
		i += lengthSize
		if l > len(b)-i {
			return nil, fmt.Errorf("NALU of length %d at offset %d overruns input", l, i)
		}
		if l != 0 {
			nalus = append(nalus, b[i:i+l])
		}
		i += l
	}
	return nalus, nil
}
