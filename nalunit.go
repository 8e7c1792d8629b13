/*
DESCRIPTION
  nalunit.go provides parsing of network abstraction layer units and their
  header extensions, including removal of emulation prevention bytes.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
  Bruce McMoran <mcmoranbjr@gmail.com>
*/

package h264dec

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ausocean/h264dec/bits"
)

// NAL unit types from Table 7-1 of the specifications.
const (
	NALTypeUnspecified         = 0
	NALTypeNonIDR              = 1
	NALTypeDataPartitionA      = 2
	NALTypeDataPartitionB      = 3
	NALTypeDataPartitionC      = 4
	NALTypeIDR                 = 5
	NALTypeSEI                 = 6
	NALTypeSPS                 = 7
	NALTypePPS                 = 8
	NALTypeAccessUnitDelimiter = 9
	NALTypeEndOfSequence       = 10
	NALTypeEndOfStream         = 11
	NALTypeFiller              = 12
	NALTypeSPSExt              = 13
	NALTypePrefixNALU          = 14
	NALTypeSubsetSPS           = 15
	NALTypeSliceLayerExtRBSP   = 20
	NALTypeSliceLayerExtRBSP2  = 21
)

// Errors returned when parsing a NAL unit.
var (
	errEmptyNALU     = errors.New("cannot parse empty NAL unit")
	errForbiddenBit  = errors.New("forbidden zero bit is set")
	errNALUTruncated = errors.New("NAL unit too short for its header")
)

// RemoveEmulationPrevention returns b with every emulation prevention byte
// 0x03 that follows two zero bytes removed, converting an encapsulated byte
// sequence payload to a raw byte sequence payload. The input is not modified.
func RemoveEmulationPrevention(b []byte) []byte {
	out := make([]byte, 0, len(b))
	zeros := 0
	for i := 0; i < len(b); i++ {
		if zeros == 2 && b[i] == 0x03 {
			zeros = 0
			continue
		}
		if b[i] == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b[i])
	}
	return out
}

// MVCExtension describes a NAL unit header multiview video coding extension,
// as defined in section H.7.3.1.1 of the specifications.
// Semantics of fields are specified in section H.7.4.1.1.
type MVCExtension struct {
	// non_idr_flag, if true indicates that access unit is not IDR.
	NonIdrFlag bool

	// priority_id, indicates priority of NAL unit. A lower value => higher priority.
	PriorityID uint8

	// view_id, specifies a view identifier for the unit. Units with identical
	// view_id are in the same view.
	ViewID uint32

	// temporal_id, temporal identifier for the unit.
	TemporalID uint8

	// anchor_pic_flag, if true access unit is an anchor access unit.
	AnchorPicFlag bool

	// inter_view_flag, if false current view component not used for inter-view
	// prediction elsewhere in access unit.
	InterViewFlag bool

	// reserved_one_bit, always 1 (ignored by decoders).
	ReservedOneBit uint8
}

// NewMVCExtension parses a NAL unit header multiview video coding extension
// from br following the syntax structure specified in section H.7.3.1.1, and
// returns as a new MVCExtension.
func NewMVCExtension(br *bits.BitReader) (*MVCExtension, error) {
	e := &MVCExtension{}
	r := newFieldReader(br)

	e.NonIdrFlag = r.readFlag()
	e.PriorityID = uint8(r.readBits(6))
	e.ViewID = r.readBits(10)
	e.TemporalID = uint8(r.readBits(3))
	e.AnchorPicFlag = r.readFlag()
	e.InterViewFlag = r.readFlag()
	e.ReservedOneBit = uint8(r.readBits(1))

	if r.err() != nil {
		return nil, fmt.Errorf("error from fieldReader: %w", r.err())
	}
	return e, nil
}

// ThreeDAVCExtension describes a NAL unit header 3D advanced video coding
// extension, as defined in section J.7.3.1.1 of the specifications.
// For field semantics see section J.7.4.1.1.
type ThreeDAVCExtension struct {
	// view_idx, specifies the order index for the NAL i.e. view_id = view_id[view_idx].
	ViewIdx uint8

	// depth_flag, if true indicates NAL part of a depth view component,
	// otherwise a texture view component.
	DepthFlag bool

	// non_idr_flag, if true indicates that access unit is not IDR.
	NonIdrFlag bool

	// temporal_id, temporal identifier for the unit.
	TemporalID uint8

	// anchor_pic_flag, if true access unit is an anchor access unit.
	AnchorPicFlag bool

	// inter_view_flag, if false current view component not used for inter-view
	// prediction elsewhere in access unit.
	InterViewFlag bool
}

// NewThreeDAVCExtension parses a NAL unit header 3D advanced video coding
// extension from br following the syntax structure specified in section
// J.7.3.1.1, and returns as a new ThreeDAVCExtension.
func NewThreeDAVCExtension(br *bits.BitReader) (*ThreeDAVCExtension, error) {
	e := &ThreeDAVCExtension{}
	r := newFieldReader(br)

	e.ViewIdx = uint8(r.readBits(8))
	e.DepthFlag = r.readFlag()
	e.NonIdrFlag = r.readFlag()
	e.TemporalID = uint8(r.readBits(3))
	e.AnchorPicFlag = r.readFlag()
	e.InterViewFlag = r.readFlag()

	if r.err() != nil {
		return nil, fmt.Errorf("error from fieldReader: %w", r.err())
	}
	return e, nil
}

// SVCExtension describes a NAL unit header scalable video coding extension,
// as defined in section G.7.3.1.1 of the specifications.
// For field semantics see section G.7.4.1.1.
type SVCExtension struct {
	// idr_flag, if true the current coded picture is an IDR picture when
	// dependency_id == max(dependency_id) in the coded picture.
	IdrFlag bool

	// priority_id, specifies priority identifier for unit.
	PriorityID uint8

	// no_inter_layer_pred_flag, if true inter-layer prediction can't be used
	// for decoding slice.
	NoInterLayerPredFlag bool

	// dependency_id, specifies a dependency identifier for the NAL.
	DependencyID uint8

	// quality_id, specifies a quality identifier for the NAL.
	QualityID uint8

	// temporal_id, specifies a temporal identifier for the NAL.
	TemporalID uint8

	// use_ref_base_pic_flag, if true indicates reference base pictures and
	// decoded pictures are used as references for inter prediction.
	UseRefBasePicFlag bool

	// discardable_flag, if true indicates current NAL is not used for decoding
	// dependency representations with a greater dependency_id.
	DiscardableFlag bool

	// output_flag, affects the decoded picture output and removal processes as
	// specified in Annex C.
	OutputFlag bool

	// reserved_three_2bits, equal to 3. Decoders ignore.
	ReservedThree2Bits uint8
}

// NewSVCExtension parses a NAL unit header scalable video coding extension
// from br following the syntax structure specified in section G.7.3.1.1, and
// returns as a new SVCExtension.
func NewSVCExtension(br *bits.BitReader) (*SVCExtension, error) {
	e := &SVCExtension{}
	r := newFieldReader(br)

	e.IdrFlag = r.readFlag()
	e.PriorityID = uint8(r.readBits(6))
	e.NoInterLayerPredFlag = r.readFlag()
	e.DependencyID = uint8(r.readBits(3))
	e.QualityID = uint8(r.readBits(4))
	e.TemporalID = uint8(r.readBits(3))
	e.UseRefBasePicFlag = r.readFlag()
	e.DiscardableFlag = r.readFlag()
	e.OutputFlag = r.readFlag()
	e.ReservedThree2Bits = uint8(r.readBits(2))

	if r.err() != nil {
		return nil, fmt.Errorf("error from fieldReader: %w", r.err())
	}
	return e, nil
}

// NALUnit describes a network abstraction layer unit, as defined in section
// 7.3.1 of the specifications.
// Field semantics are defined in section 7.4.1.
type NALUnit struct {
	// forbidden_zero_bit, always 0.
	ForbiddenZeroBit uint8

	// nal_ref_idc, if not 0 indicates the NAL holds a parameter set or a
	// slice of a reference picture, or a slice data partition thereof.
	RefIdc uint8

	// nal_unit_type, specifies the type of RBSP data contained in the NAL as
	// defined in Table 7-1.
	Type uint8

	// svc_extension_flag, indicates whether a nal_unit_header_svc_extension()
	// (G.7.3.1.1) or nal_unit_header_mvc_extension() (H.7.3.1.1) follows.
	SVCExtensionFlag bool

	// avc_3d_extension_flag, for nal_unit_type = 21, indicates that a
	// nal_unit_header_mvc_extension() (H.7.3.1.1) or
	// nal_unit_header_3davc_extension() (J.7.3.1.1) follows.
	AVC3DExtensionFlag bool

	// nal_unit_header_svc_extension() as defined in section G.7.3.1.1.
	SVCExtension *SVCExtension

	// nal_unit_header_3davc_extension() as defined in section J.7.3.1.1.
	ThreeDAVCExtension *ThreeDAVCExtension

	// nal_unit_header_mvc_extension() as defined in section H.7.3.1.1.
	MVCExtension *MVCExtension

	// rbsp_byte, the raw byte sequence payload data for the NAL, with
	// emulation prevention bytes removed.
	RBSP []byte
}

// NewNALUnit parses a network abstraction layer unit from the encapsulated
// byte sequence payload b, i.e. the bytes between start codes as yielded by
// a NALUScanner, following the syntax structure specified in section 7.3.1,
// and returns as a new NALUnit.
func NewNALUnit(b []byte) (*NALUnit, error) {
	if len(b) == 0 {
		return nil, errEmptyNALU
	}

	// Emulation prevention applies to the whole unit, so strip before any
	// bit level parsing.
	b = RemoveEmulationPrevention(b)

	if b[0]&0x80 != 0 {
		return nil, errForbiddenBit
	}
	n := &NALUnit{
		RefIdc: b[0] >> 5 & 0x3,
		Type:   b[0] & 0x1f,
	}

	payload := b[1:]
	if n.Type == NALTypePrefixNALU || n.Type == NALTypeSliceLayerExtRBSP || n.Type == NALTypeSliceLayerExtRBSP2 {
		br := bits.NewBitReader(payload)
		r := newFieldReader(br)

		var err error
		if n.Type != NALTypeSliceLayerExtRBSP2 {
			n.SVCExtensionFlag = r.readFlag()
		} else {
			n.AVC3DExtensionFlag = r.readFlag()
		}
		if r.err() != nil {
			return nil, errNALUTruncated
		}
		if n.SVCExtensionFlag {
			n.SVCExtension, err = NewSVCExtension(br)
			if err != nil {
				return nil, errors.Wrap(err, "could not parse SVCExtension")
			}
		} else if n.AVC3DExtensionFlag {
			n.ThreeDAVCExtension, err = NewThreeDAVCExtension(br)
			if err != nil {
				return nil, errors.Wrap(err, "could not parse ThreeDAVCExtension")
			}
		} else {
			n.MVCExtension, err = NewMVCExtension(br)
			if err != nil {
				return nil, errors.Wrap(err, "could not parse MVCExtension")
			}
		}

		// The extensions are whole bytes, so the RBSP resumes at the
		// reader's byte position.
		payload = payload[br.Position().Byte:]
	}

	n.RBSP = payload
	return n, nil
}
