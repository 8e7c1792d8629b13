package h264dec

import (
	"github.com/pkg/errors"

	"github.com/ausocean/h264dec/bits"
)

// PPS describes a picture parameter set as defined by section 7.3.2.2 in the
// specifications. Field semantics are defined in section 7.4.2.2.
type PPS struct {
	ID, SPSID                         uint32
	EntropyCodingMode                 int
	BottomFieldPicOrderInFramePresent bool
	NumSliceGroupsMinus1              int
	SliceGroupMapType                 int
	RunLengthMinus1                   []int
	TopLeft                           []int
	BottomRight                       []int
	SliceGroupChangeDirection         bool
	SliceGroupChangeRateMinus1        int
	PicSizeInMapUnitsMinus1           int
	SliceGroupID                      []int
	NumRefIdxL0DefaultActiveMinus1    int
	NumRefIdxL1DefaultActiveMinus1    int
	WeightedPred                      bool
	WeightedBipred                    int
	PicInitQPMinus26                  int
	PicInitQSMinus26                  int
	ChromaQPIndexOffset               int
	DeblockingFilterControlPresent    bool
	ConstrainedIntraPred              bool
	RedundantPicCntPresent            bool
	Transform8x8Mode                  int
	PicScalingMatrixPresent           bool
	PicScalingListPresent             []bool
	PicScalingList4x4                 [][]uint32
	PicScalingList8x8                 [][]uint32
	SecondChromaQPIndexOffset         int
}

// Errors returned when parsing a PPS.
var (
	errPPSIDOutOfRange    = errors.New("pic_parameter_set_id not in [0,255]")
	errPPSSPSIDOutOfRange = errors.New("seq_parameter_set_id not in [0,31]")
	errPicInitQPRange     = errors.New("pic_init_qp_minus26 places QP outside [0,51]")
	errChromaQPRange      = errors.New("chroma_qp_index_offset not in [-12,12]")
)

// NewPPS parses a picture parameter set from the raw byte sequence payload
// rbsp following the syntax structure specified in section 7.3.2.2, and
// returns as a new PPS. The chroma format of the referenced SPS governs how
// many picture scaling lists may be present.
func NewPPS(rbsp []byte, chromaFormat uint32) (*PPS, error) {
	pps := PPS{}
	br := bits.NewBitReader(rbsp)
	r := newFieldReader(br)

	pps.ID = r.readUe()
	pps.SPSID = r.readUe()
	if r.err() == nil {
		if pps.ID > 255 {
			return nil, errPPSIDOutOfRange
		}
		if pps.SPSID > 31 {
			return nil, errPPSSPSIDOutOfRange
		}
	}
	pps.EntropyCodingMode = int(r.readBits(1))
	pps.BottomFieldPicOrderInFramePresent = r.readFlag()
	pps.NumSliceGroupsMinus1 = int(r.readUe())

	if pps.NumSliceGroupsMinus1 > 0 {
		pps.SliceGroupMapType = int(r.readUe())

		switch {
		case pps.SliceGroupMapType == 0:
			for iGroup := 0; iGroup <= pps.NumSliceGroupsMinus1 && r.err() == nil; iGroup++ {
				pps.RunLengthMinus1 = append(pps.RunLengthMinus1, int(r.readUe()))
			}
		case pps.SliceGroupMapType == 2:
			for iGroup := 0; iGroup < pps.NumSliceGroupsMinus1 && r.err() == nil; iGroup++ {
				pps.TopLeft = append(pps.TopLeft, int(r.readUe()))
				pps.BottomRight = append(pps.BottomRight, int(r.readUe()))
			}
		case pps.SliceGroupMapType > 2 && pps.SliceGroupMapType < 6:
			pps.SliceGroupChangeDirection = r.readFlag()
			pps.SliceGroupChangeRateMinus1 = int(r.readUe())
		case pps.SliceGroupMapType == 6:
			pps.PicSizeInMapUnitsMinus1 = int(r.readUe())
			n := ceilLog2(pps.NumSliceGroupsMinus1 + 1)
			for i := 0; i <= pps.PicSizeInMapUnitsMinus1 && r.err() == nil; i++ {
				pps.SliceGroupID = append(pps.SliceGroupID, int(r.readBits(n)))
			}
		}
	}

	pps.NumRefIdxL0DefaultActiveMinus1 = int(r.readUe())
	pps.NumRefIdxL1DefaultActiveMinus1 = int(r.readUe())
	pps.WeightedPred = r.readFlag()
	pps.WeightedBipred = int(r.readBits(2))
	pps.PicInitQPMinus26 = int(r.readSe())
	pps.PicInitQSMinus26 = int(r.readSe())
	pps.ChromaQPIndexOffset = int(r.readSe())
	pps.DeblockingFilterControlPresent = r.readFlag()
	pps.ConstrainedIntraPred = r.readFlag()
	pps.RedundantPicCntPresent = r.readFlag()

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "error reading picture parameter set fields")
	}
	if qp := 26 + pps.PicInitQPMinus26; qp < 0 || qp > 51 {
		return nil, errPicInitQPRange
	}
	if pps.ChromaQPIndexOffset < -12 || pps.ChromaQPIndexOffset > 12 {
		return nil, errChromaQPRange
	}

	if moreRBSPData(br) {
		pps.Transform8x8Mode = int(r.readBits(1))
		pps.PicScalingMatrixPresent = r.readFlag()

		if pps.PicScalingMatrixPresent {
			v := 6
			if chromaFormat != chroma444 {
				v = 2
			}
			for i := 0; i < 6+(v*pps.Transform8x8Mode) && r.err() == nil; i++ {
				present := r.readFlag()
				pps.PicScalingListPresent = append(pps.PicScalingListPresent, present)

				size := 16
				if i >= 6 {
					size = 64
				}
				var list []uint32
				if present {
					list = make([]uint32, size)
					useDefault, err := scalingList(br, list)
					if err != nil {
						return nil, errors.Wrapf(err, "could not parse scaling list %d", i)
					}
					if useDefault {
						list = defaultScalingList(i)
					}
				}
				if i < 6 {
					pps.PicScalingList4x4 = append(pps.PicScalingList4x4, list)
				} else {
					pps.PicScalingList8x8 = append(pps.PicScalingList8x8, list)
				}
			}
		}
		pps.SecondChromaQPIndexOffset = int(r.readSe())
	} else {
		// Inferred when the trailing fields are absent, section 7.4.2.2.
		pps.SecondChromaQPIndexOffset = pps.ChromaQPIndexOffset
	}

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "error reading picture parameter set fields")
	}
	return &pps, nil
}

// QPY returns the luma quantisation parameter a slice starts from before any
// slice_qp_delta is applied, eq 7-30 less the delta term.
func (p *PPS) QPY() int {
	return 26 + p.PicInitQPMinus26
}
