package h264dec

import "fmt"

// mbClass is the decoded class of a macroblock, collapsing the mb_type
// codes of tables 7-11 and 7-13 to the cases this decoder reconstructs.
type mbClass int8

const (
	mbI4x4 mbClass = iota
	mbI16x16
	mbIPCM
	mbP16x16
	mbPSkip
)

func (c mbClass) String() string {
	switch c {
	case mbI4x4:
		return "I_NxN"
	case mbI16x16:
		return "I_16x16"
	case mbIPCM:
		return "I_PCM"
	case mbP16x16:
		return "P_L0_16x16"
	case mbPSkip:
		return "P_Skip"
	}
	return fmt.Sprintf("mbClass(%d)", int8(c))
}

// intra reports whether the class is intra coded.
func (c mbClass) intra() bool {
	return c == mbI4x4 || c == mbI16x16 || c == mbIPCM
}

// Macroblock carries the decoded syntax elements and residual of one
// macroblock between parsing and reconstruction.
type Macroblock struct {
	Addr  int
	Class mbClass

	// Intra_4x4 luma prediction modes per 4x4 block, in block scan order.
	Intra4x4PredMode [16]int8

	// Intra_16x16 luma prediction mode, from the mb_type derivation of
	// Table 7-11.
	Intra16x16PredMode int

	// intra_chroma_pred_mode, section 7.4.5.1.
	ChromaPredMode int

	// Motion vector in quarter luma sample units, and its reference index,
	// for P macroblocks.
	MV     [2]int
	RefIdx int

	// CodedBlockPatternLuma and CodedBlockPatternChroma, section 7.4.5.
	CBPLuma   int
	CBPChroma int

	// QP the macroblock is reconstructed with, after mb_qp_delta.
	QP int

	// Residual coefficient levels, each 4x4 block in raster order after
	// scan placement. AC blocks hold positions 1..15 with position 0 zero.
	LumaDC   [16]int32
	LumaAC   [16][16]int32
	ChromaDC [2][4]int32
	ChromaAC [2][4][16]int32

	// Raw samples of an I_PCM macroblock, Y then Cb then Cr.
	PCM []byte
}

// mbState is the per macroblock context retained for the remainder of the
// picture once a macroblock is decoded. It feeds the prediction of later
// macroblocks: coefficient counts for CAVLC nC derivation, intra modes for
// most probable mode derivation, and motion for motion vector prediction.
// States live in a single arena slice indexed by macroblock address.
type mbState struct {
	class   mbClass
	decoded bool

	// sliceID numbers the slice the macroblock came from. Neighbouring
	// macroblocks from a different slice are treated as unavailable.
	sliceID int

	qp     int8
	refIdx int8
	mv     [2]int16

	// TotalCoeff of each residual block, in block scan order.
	nzY  [16]uint8
	nzCb [4]uint8
	nzCr [4]uint8

	// Intra_4x4 prediction modes, or -1 where not an I_NxN macroblock.
	intra4x4 [16]int8
}

// blockScanPos returns the position of 4x4 luma block idx within its
// macroblock in units of 4 samples, the inverse 4x4 luma block scan of
// section 6.4.3.
func blockScanPos(idx int) (x, y int) {
	q, w := idx/4, idx%4
	return (q%2)*2 + w%2, (q/2)*2 + w/2
}

// blockScanIdx returns the 4x4 luma block scan index of the block at
// (x, y) within its macroblock, in units of 4 samples.
func blockScanIdx(x, y int) int {
	return (y/2)*8 + (x/2)*4 + (y%2)*2 + x%2
}

// parseIMbType interprets an I slice mb_type code per Table 7-11. For
// I_16x16 types it also derives the prediction mode and coded block
// patterns folded into the code.
func parseIMbType(raw uint32) (class mbClass, predMode, cbpLuma, cbpChroma int, err error) {
	switch {
	case raw == 0:
		return mbI4x4, 0, 0, 0, nil
	case raw <= 24:
		m := int(raw) - 1
		return mbI16x16, m % 4, (m / 12) * 15, (m / 4) % 3, nil
	case raw == 25:
		return mbIPCM, 0, 0, 0, nil
	default:
		return 0, 0, 0, 0, fmt.Errorf("mb_type %d invalid in I slice", raw)
	}
}
