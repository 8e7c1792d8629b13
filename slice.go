/*
DESCRIPTION
  slice.go provides parsing of slice headers and the decoding of slice data,
  i.e. the macroblock layer, for I and P slices coded with CAVLC entropy
  coding, as described by sections 7.3.3, 7.3.4 and 7.3.5 of the
  specifications.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  It is free software: you can redistribute it and/or modify them
  under the terms of the GNU General Public License as published by the
  Free Software Foundation, either version 3 of the License, or (at your
  option) any later version.

  It is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
  FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses.
*/

package h264dec

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ausocean/h264dec/bits"
)

// Slice types from Table 7-6. A slice_type of 5 to 9 maps onto these
// modulo 5.
const (
	sliceTypeP = iota
	sliceTypeB
	sliceTypeI
	sliceTypeSP
	sliceTypeSI
)

// SliceHeader holds the fields of the slice_header syntax structure of
// section 7.3.3 needed for frame coded CAVLC slices.
type SliceHeader struct {
	FirstMBInSlice uint32
	Type           uint32
	PPSID          uint32
	FrameNum       uint32
	IDRPicID       uint32

	// Picture order count fields, present according to the
	// pic_order_cnt_type of the referenced SPS.
	PicOrderCntLSB         uint32
	DeltaPicOrderCntBottom int32
	DeltaPicOrderCnt       [2]int32

	RedundantPicCnt uint32

	NumRefIdxActiveOverride bool
	NumRefIdxL0ActiveMinus1 int

	// dec_ref_pic_marking fields for IDR pictures.
	NoOutputOfPriorPics bool
	LongTermReference   bool

	SliceQPDelta int32

	// SliceQPY is the initial luma quantisation parameter of the slice,
	// eq 7-30.
	SliceQPY int

	// Deblocking filter controls. These are parsed for bitstream
	// conformance; the in loop filter itself is not applied.
	DisableDeblockingFilterIDC int
	SliceAlphaC0OffsetDiv2     int
	SliceBetaOffsetDiv2        int
}

// Errors returned while parsing a slice header.
var (
	errSliceTypeRange = errors.New("slice_type not in [0,9]")
	errIDRSliceType   = errors.New("IDR picture with non-I slice")
	errSliceQPRange   = errors.New("slice QP not in [0,51]")
	errDeblockIDC     = errors.New("disable_deblocking_filter_idc not in [0,2]")
	errFirstMBRange   = errors.New("first_mb_in_slice beyond end of picture")
)

// Errors returned while decoding slice data.
var (
	errMBQPDeltaRange = errors.New("mb_qp_delta not in [-26,25]")
	errMBOverrun      = errors.New("macroblock address beyond end of picture")
	errNoReference    = errors.New("no reference frame for inter prediction")
	errChromaPredMode = errors.New("intra_chroma_pred_mode not in [0,3]")
)

// checkDecodable verifies that the parameter sets describe a stream within
// the constrained baseline toolset handled here, returning an
// UnsupportedFeatureError naming the first tool outside it.
func checkDecodable(sps *SPS, pps *PPS) error {
	switch {
	case pps.EntropyCodingMode != 0:
		return UnsupportedFeatureError{Feature: "CABAC entropy coding"}
	case sps.ChromaFormatIDC != chroma420:
		return UnsupportedFeatureError{Feature: fmt.Sprintf("chroma_format_idc %d", sps.ChromaFormatIDC)}
	case sps.BitDepthLumaMinus8 != 0 || sps.BitDepthChromaMinus8 != 0:
		return UnsupportedFeatureError{Feature: "bit depths greater than 8"}
	case !sps.FrameMbsOnlyFlag:
		return UnsupportedFeatureError{Feature: "interlaced coding"}
	case sps.SeqScalingMatrixPresentFlag || pps.PicScalingMatrixPresent:
		return UnsupportedFeatureError{Feature: "scaling matrices"}
	case pps.NumSliceGroupsMinus1 > 0:
		return UnsupportedFeatureError{Feature: "slice groups"}
	case pps.Transform8x8Mode != 0:
		return UnsupportedFeatureError{Feature: "8x8 transform"}
	case sps.QPPrimeYZeroTransformBypassFlag:
		return UnsupportedFeatureError{Feature: "transform bypass"}
	}
	return nil
}

func parseSliceHeader(br *bits.BitReader, nal *NALUnit, store *ParameterSetStore) (*SliceHeader, *SPS, *PPS, error) {
	r := newFieldReader(br)
	h := &SliceHeader{}

	h.FirstMBInSlice = r.readUe()
	t := r.readUe()
	if t > 9 {
		return nil, nil, nil, errSliceTypeRange
	}
	h.Type = t % 5
	switch h.Type {
	case sliceTypeB:
		return nil, nil, nil, UnsupportedFeatureError{Feature: "B slices"}
	case sliceTypeSP:
		return nil, nil, nil, UnsupportedFeatureError{Feature: "SP slices"}
	case sliceTypeSI:
		return nil, nil, nil, UnsupportedFeatureError{Feature: "SI slices"}
	}
	idr := nal.Type == NALTypeIDR
	if idr && h.Type != sliceTypeI {
		return nil, nil, nil, errIDRSliceType
	}

	h.PPSID = r.readUe()
	if err := r.err(); err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not read slice header")
	}

	pps, err := store.PPS(h.PPSID)
	if err != nil {
		return nil, nil, nil, err
	}
	sps, err := store.SPS(pps.SPSID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := checkDecodable(sps, pps); err != nil {
		return nil, nil, nil, err
	}

	h.FrameNum = r.readBits(int(sps.Log2MaxFrameNumMinus4) + 4)

	if idr {
		h.IDRPicID = r.readUe()
	}

	switch sps.PicOrderCntType {
	case 0:
		h.PicOrderCntLSB = r.readBits(int(sps.Log2MaxPicOrderCntLSBMinus4) + 4)
		if pps.BottomFieldPicOrderInFramePresent {
			h.DeltaPicOrderCntBottom = r.readSe()
		}
	case 1:
		if !sps.DeltaPicOrderAlwaysZeroFlag {
			h.DeltaPicOrderCnt[0] = r.readSe()
			if pps.BottomFieldPicOrderInFramePresent {
				h.DeltaPicOrderCnt[1] = r.readSe()
			}
		}
	}

	if pps.RedundantPicCntPresent {
		h.RedundantPicCnt = r.readUe()
	}

	if h.Type == sliceTypeP {
		h.NumRefIdxActiveOverride = r.readFlag()
		n := pps.NumRefIdxL0DefaultActiveMinus1
		if h.NumRefIdxActiveOverride {
			n = int(r.readUe())
		}
		h.NumRefIdxL0ActiveMinus1 = n
		if err := r.err(); err != nil {
			return nil, nil, nil, errors.Wrap(err, "could not read slice header")
		}
		if n > 0 {
			return nil, nil, nil, UnsupportedFeatureError{Feature: "multiple reference pictures"}
		}
		if r.readFlag() { // ref_pic_list_modification_flag_l0
			return nil, nil, nil, UnsupportedFeatureError{Feature: "reference picture list modification"}
		}
		if pps.WeightedPred {
			return nil, nil, nil, UnsupportedFeatureError{Feature: "weighted prediction"}
		}
	}

	if nal.RefIdc != 0 {
		if idr {
			h.NoOutputOfPriorPics = r.readFlag()
			h.LongTermReference = r.readFlag()
			if h.LongTermReference {
				return nil, nil, nil, UnsupportedFeatureError{Feature: "long term reference pictures"}
			}
		} else if r.readFlag() { // adaptive_ref_pic_marking_mode_flag
			return nil, nil, nil, UnsupportedFeatureError{Feature: "adaptive reference picture marking"}
		}
	}

	h.SliceQPDelta = r.readSe()
	if err := r.err(); err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not read slice header")
	}
	h.SliceQPY = 26 + pps.PicInitQPMinus26 + int(h.SliceQPDelta)
	if h.SliceQPY < 0 || h.SliceQPY > 51 {
		return nil, nil, nil, errSliceQPRange
	}

	if pps.DeblockingFilterControlPresent {
		idc := r.readUe()
		if idc > 2 {
			return nil, nil, nil, errDeblockIDC
		}
		h.DisableDeblockingFilterIDC = int(idc)
		if idc != 1 {
			h.SliceAlphaC0OffsetDiv2 = int(r.readSe())
			h.SliceBetaOffsetDiv2 = int(r.readSe())
		}
	}

	if err := r.err(); err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not read slice header")
	}
	return h, sps, pps, nil
}

// State enumerates the stages a SliceDecoder moves through while handling
// one slice.
type State int

const (
	// StateAwaitingParams is the initial state; the slice cannot proceed
	// until the parameter sets its header references have been ingested.
	StateAwaitingParams State = iota

	// StateHeaderParsed indicates the slice header has been parsed and
	// validated against its parameter sets.
	StateHeaderParsed

	// StateDecodingMacroblocks indicates macroblocks of the slice are
	// being reconstructed.
	StateDecodingMacroblocks

	// StateFrameComplete indicates the slice decoded the final macroblock
	// of its frame.
	StateFrameComplete
)

func (s State) String() string {
	switch s {
	case StateAwaitingParams:
		return "AwaitingParams"
	case StateHeaderParsed:
		return "HeaderParsed"
	case StateDecodingMacroblocks:
		return "DecodingMacroblocks"
	case StateFrameComplete:
		return "FrameComplete"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SliceDecoder decodes the macroblocks of a single coded slice into a frame
// under reconstruction.
type SliceDecoder struct {
	nal   *NALUnit
	state State

	hdr *SliceHeader
	sps *SPS
	pps *PPS

	br *bits.BitReader
	r  *fieldReader

	frame   *Frame
	ref     *Frame
	arena   []mbState
	sliceID int

	mbW, mbH int

	// qp is the running luma quantisation parameter, updated by each
	// mb_qp_delta.
	qp int
}

// NewSliceDecoder returns a SliceDecoder for the given coded slice NAL unit,
// in the AwaitingParams state.
func NewSliceDecoder(nal *NALUnit) *SliceDecoder {
	return &SliceDecoder{nal: nal, state: StateAwaitingParams}
}

// ParseHeader parses the slice header, resolving the parameter sets it
// references out of store. On failure the decoder remains in
// AwaitingParams, and may be retried once the missing parameter sets have
// been ingested.
func (sd *SliceDecoder) ParseHeader(store *ParameterSetStore) error {
	br := bits.NewBitReader(sd.nal.RBSP)
	hdr, sps, pps, err := parseSliceHeader(br, sd.nal, store)
	if err != nil {
		return err
	}
	sd.hdr, sd.sps, sd.pps = hdr, sps, pps
	sd.br = br
	sd.r = newFieldReader(br)
	sd.mbW = sps.PicWidthInMbs()
	sd.mbH = sps.PicHeightInMbs()
	sd.state = StateHeaderParsed
	return nil
}

// State returns the stage the decoder has reached.
func (sd *SliceDecoder) State() State {
	return sd.state
}

// Header returns the parsed slice header, or nil before ParseHeader has
// succeeded.
func (sd *SliceDecoder) Header() *SliceHeader {
	return sd.hdr
}

// decode runs the slice data loop of section 7.3.4 over the macroblocks of
// the slice, reconstructing into frame with ref as the inter prediction
// reference. It returns the address one past the last macroblock decoded.
func (sd *SliceDecoder) decode(frame, ref *Frame, arena []mbState, sliceID int) (int, error) {
	sd.frame = frame
	sd.ref = ref
	sd.arena = arena
	sd.sliceID = sliceID
	sd.state = StateDecodingMacroblocks
	sd.qp = sd.hdr.SliceQPY

	total := sd.sps.PicSizeInMbs()
	addr := int(sd.hdr.FirstMBInSlice)
	if addr >= total {
		return addr, errFirstMBRange
	}

	for moreData := true; moreData; {
		if sd.hdr.Type == sliceTypeP {
			run := sd.r.readUe()
			if err := sd.r.err(); err != nil {
				return addr, errors.Wrap(err, "could not read mb_skip_run")
			}
			for i := uint32(0); i < run; i++ {
				if addr >= total {
					return addr, errMBOverrun
				}
				if err := sd.decodeSkip(addr); err != nil {
					return addr, err
				}
				addr++
			}
			if run > 0 {
				moreData = moreRBSPData(sd.br)
				if !moreData {
					break
				}
			}
		}

		if addr >= total {
			return addr, errMBOverrun
		}
		if err := sd.decodeMacroblock(addr); err != nil {
			return addr, err
		}
		addr++
		moreData = moreRBSPData(sd.br)
	}

	if addr == total {
		sd.state = StateFrameComplete
	}
	return addr, nil
}

// decodeMacroblock parses and reconstructs the macroblock_layer of section
// 7.3.5 at the given address.
func (sd *SliceDecoder) decodeMacroblock(addr int) error {
	st := &sd.arena[addr]
	*st = mbState{sliceID: sd.sliceID}
	for i := range st.intra4x4 {
		st.intra4x4[i] = -1
	}

	mb := &Macroblock{Addr: addr}

	raw := sd.r.readUe()
	if err := sd.r.err(); err != nil {
		return errors.Wrap(err, "could not read mb_type")
	}

	intra := true
	if sd.hdr.Type == sliceTypeP {
		// Table 7-13; intra types follow the P types, offset by 5.
		switch {
		case raw == 0:
			intra = false
			mb.Class = mbP16x16
		case raw <= 4:
			return UnsupportedFeatureError{Feature: "P macroblock partitions"}
		default:
			raw -= 5
		}
	}
	if intra {
		class, predMode, cbpLuma, cbpChroma, err := parseIMbType(raw)
		if err != nil {
			return err
		}
		mb.Class = class
		if class == mbI16x16 {
			mb.Intra16x16PredMode = predMode
			mb.CBPLuma = cbpLuma
			mb.CBPChroma = cbpChroma
		}
	}

	if mb.Class == mbIPCM {
		if err := sd.decodePCM(mb, addr); err != nil {
			return err
		}
		st.class = mbIPCM
		st.qp = int8(sd.qp)
		st.decoded = true
		return nil
	}

	// mb_pred, section 7.3.5.1.
	switch mb.Class {
	case mbI4x4:
		if err := sd.parseIntra4x4PredModes(mb, st, addr); err != nil {
			return err
		}
		fallthrough
	case mbI16x16:
		m := sd.r.readUe()
		if err := sd.r.err(); err != nil {
			return errors.Wrap(err, "could not read intra_chroma_pred_mode")
		}
		if m > 3 {
			return errChromaPredMode
		}
		mb.ChromaPredMode = int(m)
	case mbP16x16:
		// A single 16x16 partition with one active reference;
		// ref_idx_l0 is absent and inferred as 0.
		mvd := [2]int{int(sd.r.readSe()), int(sd.r.readSe())}
		if err := sd.r.err(); err != nil {
			return errors.Wrap(err, "could not read mvd_l0")
		}
		p := sd.mvPrediction(addr)
		mb.MV = [2]int{p[0] + mvd[0], p[1] + mvd[1]}
	}

	if mb.Class != mbI16x16 {
		mpm := inter
		if mb.Class == mbI4x4 {
			mpm = intra4x4
		}
		cbp := sd.r.readMe(sd.sps.ChromaFormatIDC, mpm)
		if err := sd.r.err(); err != nil {
			return errors.Wrap(err, "could not read coded_block_pattern")
		}
		mb.CBPLuma = int(cbp & 0xf)
		mb.CBPChroma = int(cbp >> 4)
	}

	if mb.CBPLuma > 0 || mb.CBPChroma > 0 || mb.Class == mbI16x16 {
		d := int(sd.r.readSe())
		if err := sd.r.err(); err != nil {
			return errors.Wrap(err, "could not read mb_qp_delta")
		}
		if d < -26 || d > 25 {
			return errMBQPDeltaRange
		}
		sd.qp = (sd.qp + d + 52) % 52
	}
	mb.QP = sd.qp
	st.qp = int8(sd.qp)

	if err := sd.parseResidual(mb, st, addr); err != nil {
		return err
	}

	var err error
	switch mb.Class {
	case mbI4x4:
		err = sd.reconIntra4x4(mb, addr)
		if err == nil {
			err = sd.reconIntraChroma(mb, addr)
		}
	case mbI16x16:
		err = sd.reconIntra16x16(mb, addr)
		if err == nil {
			err = sd.reconIntraChroma(mb, addr)
		}
	case mbP16x16:
		err = sd.reconInter(mb, addr)
	}
	if err != nil {
		return err
	}

	st.class = mb.Class
	st.refIdx = int8(mb.RefIdx)
	st.mv = [2]int16{int16(mb.MV[0]), int16(mb.MV[1])}
	st.decoded = true
	return nil
}

// decodeSkip reconstructs a P_Skip macroblock, a motion compensated copy
// with the derived skip vector and no residual.
func (sd *SliceDecoder) decodeSkip(addr int) error {
	st := &sd.arena[addr]
	*st = mbState{sliceID: sd.sliceID}
	for i := range st.intra4x4 {
		st.intra4x4[i] = -1
	}

	mb := &Macroblock{Addr: addr, Class: mbPSkip, QP: sd.qp, MV: sd.pSkipMV(addr)}
	if err := sd.reconInter(mb, addr); err != nil {
		return err
	}

	st.class = mbPSkip
	st.qp = int8(sd.qp)
	st.mv = [2]int16{int16(mb.MV[0]), int16(mb.MV[1])}
	st.decoded = true
	return nil
}

// decodePCM reads the raw samples of an I_PCM macroblock straight into the
// frame, section 7.3.5 and 8.3.5.
func (sd *SliceDecoder) decodePCM(mb *Macroblock, addr int) error {
	sd.br.ByteAlign()
	pcm := make([]byte, 256+64+64)
	for i := range pcm {
		v, err := sd.br.ReadBits(8)
		if err != nil {
			return errors.Wrap(err, "could not read pcm samples")
		}
		pcm[i] = byte(v)
	}
	mb.PCM = pcm

	mbX, mbY := sd.mbLoc(addr)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			sd.frame.set(planeY, mbX*16+x, mbY*16+y, pcm[y*16+x])
		}
	}
	cb, cr := pcm[256:320], pcm[320:]
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			sd.frame.set(planeCb, mbX*8+x, mbY*8+y, cb[y*8+x])
			sd.frame.set(planeCr, mbX*8+x, mbY*8+y, cr[y*8+x])
		}
	}
	return nil
}

// parseIntra4x4PredModes reads the prev_intra4x4_pred_mode_flag and
// rem_intra4x4_pred_mode fields for each 4x4 block and resolves them to
// prediction modes per section 8.3.1.1.
func (sd *SliceDecoder) parseIntra4x4PredModes(mb *Macroblock, st *mbState, addr int) error {
	for blk := 0; blk < 16; blk++ {
		mode := sd.predIntra4x4PredMode(addr, st, blk)
		if !sd.r.readFlag() {
			rem := int(sd.r.readBits(3))
			if rem < mode {
				mode = rem
			} else {
				mode = rem + 1
			}
		}
		mb.Intra4x4PredMode[blk] = int8(mode)
		st.intra4x4[blk] = int8(mode)
	}
	return errors.Wrap(sd.r.err(), "could not read intra prediction modes")
}

// predIntra4x4PredMode derives the most probable mode of a 4x4 block, the
// minimum of the modes of its left and above neighbours. A neighbour which
// is unavailable or not Intra_4x4 coded contributes DC.
func (sd *SliceDecoder) predIntra4x4PredMode(addr int, st *mbState, blk int) int {
	bx, by := blockScanPos(blk)

	modeA := intra4x4DC
	if bx > 0 {
		modeA = int(st.intra4x4[blockScanIdx(bx-1, by)])
	} else if la := sd.neighborMB(addr, -1, 0); sd.mbAvailableIntra(la) && sd.arena[la].class == mbI4x4 {
		modeA = int(sd.arena[la].intra4x4[blockScanIdx(3, by)])
	}

	modeB := intra4x4DC
	if by > 0 {
		modeB = int(st.intra4x4[blockScanIdx(bx, by-1)])
	} else if aa := sd.neighborMB(addr, 0, -1); sd.mbAvailableIntra(aa) && sd.arena[aa].class == mbI4x4 {
		modeB = int(sd.arena[aa].intra4x4[blockScanIdx(bx, 3)])
	}

	return mini(modeA, modeB)
}

// parseResidual reads the residual syntax structure of section 7.3.5.3 with
// CAVLC coding, recording the coefficient counts of each block in the
// macroblock state as it goes, since later blocks select their coeff_token
// table using them.
func (sd *SliceDecoder) parseResidual(mb *Macroblock, st *mbState, addr int) error {
	br := sd.br

	if mb.Class == mbI16x16 {
		lv, _, err := readResidualBlock(br, sd.lumaNC(addr, st, 0), 16)
		if err != nil {
			return err
		}
		copy(mb.LumaDC[:], lv)
	}

	for i8 := 0; i8 < 4; i8++ {
		if mb.CBPLuma&(1<<uint(i8)) == 0 {
			continue
		}
		for i4 := 0; i4 < 4; i4++ {
			blk := i8*4 + i4
			max := 16
			if mb.Class == mbI16x16 {
				max = 15
			}
			lv, n, err := readResidualBlock(br, sd.lumaNC(addr, st, blk), max)
			if err != nil {
				return err
			}
			copy(mb.LumaAC[blk][:], lv)
			st.nzY[blk] = uint8(n)
		}
	}

	if mb.CBPChroma != 0 {
		for c := 0; c < 2; c++ {
			lv, _, err := readResidualBlock(br, -1, 4)
			if err != nil {
				return err
			}
			copy(mb.ChromaDC[c][:], lv)
		}
	}
	if mb.CBPChroma == 2 {
		for c := 0; c < 2; c++ {
			for bi := 0; bi < 4; bi++ {
				lv, n, err := readResidualBlock(br, sd.chromaNC(addr, st, c, bi), 15)
				if err != nil {
					return err
				}
				copy(mb.ChromaAC[c][bi][:], lv)
				if c == 0 {
					st.nzCb[bi] = uint8(n)
				} else {
					st.nzCr[bi] = uint8(n)
				}
			}
		}
	}
	return nil
}

// lumaNZof gives the coefficient count contribution of the luma 4x4 block
// (bx, by) of a macroblock, with I_PCM counting as 16 per section 9.2.1.
func lumaNZof(st *mbState, bx, by int) int {
	if st.class == mbIPCM {
		return 16
	}
	return int(st.nzY[blockScanIdx(bx, by)])
}

func chromaNZof(st *mbState, c, bx, by int) int {
	if st.class == mbIPCM {
		return 16
	}
	if c == 0 {
		return int(st.nzCb[by*2+bx])
	}
	return int(st.nzCr[by*2+bx])
}

// lumaNC derives nC for the luma 4x4 block blk of the macroblock at addr
// from the coefficient counts of the left and above neighbouring blocks,
// section 9.2.1. st is the state of the macroblock being decoded, which
// supplies the counts of neighbouring blocks inside it.
func (sd *SliceDecoder) lumaNC(addr int, st *mbState, blk int) int {
	bx, by := blockScanPos(blk)

	var nA, nB int
	var availA, availB bool
	if bx > 0 {
		availA, nA = true, lumaNZof(st, bx-1, by)
	} else if la := sd.neighborMB(addr, -1, 0); sd.mbAvailable(la) {
		availA, nA = true, lumaNZof(&sd.arena[la], 3, by)
	}
	if by > 0 {
		availB, nB = true, lumaNZof(st, bx, by-1)
	} else if aa := sd.neighborMB(addr, 0, -1); sd.mbAvailable(aa) {
		availB, nB = true, lumaNZof(&sd.arena[aa], bx, 3)
	}

	switch {
	case availA && availB:
		return (nA + nB + 1) >> 1
	case availA:
		return nA
	case availB:
		return nB
	}
	return 0
}

// chromaNC is the nC derivation for chroma AC block bi of component c.
func (sd *SliceDecoder) chromaNC(addr int, st *mbState, c, bi int) int {
	bx, by := bi%2, bi/2

	var nA, nB int
	var availA, availB bool
	if bx > 0 {
		availA, nA = true, chromaNZof(st, c, bx-1, by)
	} else if la := sd.neighborMB(addr, -1, 0); sd.mbAvailable(la) {
		availA, nA = true, chromaNZof(&sd.arena[la], c, 1, by)
	}
	if by > 0 {
		availB, nB = true, chromaNZof(st, c, bx, by-1)
	} else if aa := sd.neighborMB(addr, 0, -1); sd.mbAvailable(aa) {
		availB, nB = true, chromaNZof(&sd.arena[aa], c, bx, 1)
	}

	switch {
	case availA && availB:
		return (nA + nB + 1) >> 1
	case availA:
		return nA
	case availB:
		return nB
	}
	return 0
}

// mbLoc gives the raster position of the macroblock at addr.
func (sd *SliceDecoder) mbLoc(addr int) (x, y int) {
	return addr % sd.mbW, addr / sd.mbW
}

// neighborMB returns the address of the macroblock displaced (dx, dy) from
// addr, or -1 where that falls outside the picture.
func (sd *SliceDecoder) neighborMB(addr, dx, dy int) int {
	x, y := sd.mbLoc(addr)
	x += dx
	y += dy
	if x < 0 || x >= sd.mbW || y < 0 || y >= sd.mbH {
		return -1
	}
	return y*sd.mbW + x
}

// mbAvailable reports whether the macroblock at addr can serve as a
// neighbour of the macroblock being decoded: it must exist, be decoded, and
// belong to the current slice.
func (sd *SliceDecoder) mbAvailable(addr int) bool {
	return addr >= 0 && sd.arena[addr].decoded && sd.arena[addr].sliceID == sd.sliceID
}

// mbAvailableIntra is mbAvailable restricted for intra prediction: with
// constrained_intra_pred_flag set, inter coded neighbours cannot supply
// prediction samples.
func (sd *SliceDecoder) mbAvailableIntra(addr int) bool {
	if !sd.mbAvailable(addr) {
		return false
	}
	return !sd.pps.ConstrainedIntraPred || sd.arena[addr].class.intra()
}

// recon4x4 adds a residual block to its prediction and writes the clipped
// result to plane p of the frame at (x, y).
func (sd *SliceDecoder) recon4x4(p plane, x, y int, pred, res *[16]int32) {
	var out [16]int32
	for i := range out {
		out[i] = pred[i] + res[i]
	}
	sd.frame.put4x4(p, x, y, &out)
}

// pick4x4 copies the 4x4 block at block position (bx, by) out of a 16 wide
// prediction buffer.
func pick4x4(pred *[256]int32, bx, by int, dst *[16]int32) {
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			dst[y*4+x] = pred[(by*4+y)*16+bx*4+x]
		}
	}
}

// pick4x4Chroma is pick4x4 for an 8 wide chroma prediction buffer.
func pick4x4Chroma(pred *[64]int32, bx, by int, dst *[16]int32) {
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			dst[y*4+x] = pred[(by*4+y)*8+bx*4+x]
		}
	}
}

// reconIntra4x4 reconstructs the luma samples of an I_NxN macroblock, one
// 4x4 block at a time in block scan order so that each block predicts from
// the reconstructed samples of those before it.
func (sd *SliceDecoder) reconIntra4x4(mb *Macroblock, addr int) error {
	mbX, mbY := sd.mbLoc(addr)
	x0, y0 := mbX*16, mbY*16

	availL := sd.mbAvailableIntra(sd.neighborMB(addr, -1, 0))
	availA := sd.mbAvailableIntra(sd.neighborMB(addr, 0, -1))
	availAL := sd.mbAvailableIntra(sd.neighborMB(addr, -1, -1))
	availAR := sd.mbAvailableIntra(sd.neighborMB(addr, 1, -1))

	for blk := 0; blk < 16; blk++ {
		bx, by := blockScanPos(blk)
		x, y := x0+bx*4, y0+by*4

		aL := bx > 0 || availL
		aA := by > 0 || availA
		var aAL bool
		switch {
		case bx > 0 && by > 0:
			aAL = true
		case by > 0: // Left column.
			aAL = availL
		case bx > 0: // Top row.
			aAL = availA
		default:
			aAL = availAL
		}
		// Above and right samples must come from a region decoded
		// before this block.
		var aAR bool
		switch {
		case by == 0 && bx < 3:
			aAR = availA
		case by == 0:
			aAR = availAR
		case bx < 3:
			aAR = blockScanIdx(bx+1, by-1) < blk
		}

		n := gatherIntra4x4Neighbors(sd.frame, x, y, aL, aA, aAL, aAR)
		var pred [16]int32
		if err := predIntra4x4(&n, int(mb.Intra4x4PredMode[blk]), &pred); err != nil {
			return err
		}

		var res [16]int32
		if mb.CBPLuma&(1<<uint(blk/4)) != 0 {
			res = scanToRaster(mb.LumaAC[blk][:], 0)
			dequant4x4(&res, mb.QP)
			inverseTransform4x4(&res)
		}
		sd.recon4x4(planeY, x, y, &pred, &res)
	}
	return nil
}

// reconIntra16x16 reconstructs the luma samples of an I_16x16 macroblock:
// one whole macroblock prediction, the separately transformed DC plane, and
// the AC residuals.
func (sd *SliceDecoder) reconIntra16x16(mb *Macroblock, addr int) error {
	mbX, mbY := sd.mbLoc(addr)
	x0, y0 := mbX*16, mbY*16

	availL := sd.mbAvailableIntra(sd.neighborMB(addr, -1, 0))
	availA := sd.mbAvailableIntra(sd.neighborMB(addr, 0, -1))
	availAL := sd.mbAvailableIntra(sd.neighborMB(addr, -1, -1))

	n := gatherMBNeighbors(sd.frame, planeY, x0, y0, 16, availL, availA, availAL)
	var pred [256]int32
	if err := predIntra16x16(&n, mb.Intra16x16PredMode, &pred); err != nil {
		return err
	}

	dc := scanToRaster(mb.LumaDC[:], 0)
	transformLumaDC(&dc, mb.QP)

	for blk := 0; blk < 16; blk++ {
		bx, by := blockScanPos(blk)

		var res [16]int32
		if mb.CBPLuma&(1<<uint(blk/4)) != 0 {
			res = scanToRaster(mb.LumaAC[blk][:15], 1)
			dequant4x4(&res, mb.QP)
		}
		res[0] = dc[by*4+bx]
		inverseTransform4x4(&res)

		var pb [16]int32
		pick4x4(&pred, bx, by, &pb)
		sd.recon4x4(planeY, x0+bx*4, y0+by*4, &pb, &res)
	}
	return nil
}

// reconIntraChroma reconstructs both chroma planes of an intra macroblock.
func (sd *SliceDecoder) reconIntraChroma(mb *Macroblock, addr int) error {
	mbX, mbY := sd.mbLoc(addr)
	x0, y0 := mbX*8, mbY*8

	availL := sd.mbAvailableIntra(sd.neighborMB(addr, -1, 0))
	availA := sd.mbAvailableIntra(sd.neighborMB(addr, 0, -1))
	availAL := sd.mbAvailableIntra(sd.neighborMB(addr, -1, -1))

	var predCb, predCr [64]int32
	n := gatherMBNeighbors(sd.frame, planeCb, x0, y0, 8, availL, availA, availAL)
	if err := predIntraChroma(&n, mb.ChromaPredMode, &predCb); err != nil {
		return err
	}
	n = gatherMBNeighbors(sd.frame, planeCr, x0, y0, 8, availL, availA, availAL)
	if err := predIntraChroma(&n, mb.ChromaPredMode, &predCr); err != nil {
		return err
	}
	sd.reconChroma(mb, addr, &predCb, &predCr)
	return nil
}

// reconChroma adds the chroma residuals of a macroblock to the given plane
// predictions and writes out both planes. Cb and Cr carry their own
// quantisation offsets, section 8.5.8.
func (sd *SliceDecoder) reconChroma(mb *Macroblock, addr int, predCb, predCr *[64]int32) {
	mbX, mbY := sd.mbLoc(addr)
	x0, y0 := mbX*8, mbY*8

	for ci, pl := range [2]plane{planeCb, planeCr} {
		pred := predCb
		off := sd.pps.ChromaQPIndexOffset
		if ci == 1 {
			pred = predCr
			off = sd.pps.SecondChromaQPIndexOffset
		}
		qpc := chromaQP(mb.QP, off)

		dc := mb.ChromaDC[ci]
		transformChromaDC(&dc, qpc)

		for bi := 0; bi < 4; bi++ {
			bx, by := bi%2, bi/2

			var res [16]int32
			if mb.CBPChroma == 2 {
				res = scanToRaster(mb.ChromaAC[ci][bi][:15], 1)
				dequant4x4(&res, qpc)
			}
			res[0] = dc[bi]
			inverseTransform4x4(&res)

			var pb [16]int32
			pick4x4Chroma(pred, bx, by, &pb)
			sd.recon4x4(pl, x0+bx*4, y0+by*4, &pb, &res)
		}
	}
}

// reconInter reconstructs a P macroblock by motion compensation from the
// reference frame plus any residual.
func (sd *SliceDecoder) reconInter(mb *Macroblock, addr int) error {
	if sd.ref == nil {
		return errNoReference
	}
	mbX, mbY := sd.mbLoc(addr)
	x0, y0 := mbX*16, mbY*16

	var pred [256]int32
	interPredLuma(sd.ref, x0, y0, mb.MV, &pred)
	for blk := 0; blk < 16; blk++ {
		bx, by := blockScanPos(blk)

		var res [16]int32
		if mb.CBPLuma&(1<<uint(blk/4)) != 0 {
			res = scanToRaster(mb.LumaAC[blk][:], 0)
			dequant4x4(&res, mb.QP)
			inverseTransform4x4(&res)
		}
		var pb [16]int32
		pick4x4(&pred, bx, by, &pb)
		sd.recon4x4(planeY, x0+bx*4, y0+by*4, &pb, &res)
	}

	var predCb, predCr [64]int32
	interPredChroma(sd.ref, planeCb, mbX*8, mbY*8, mb.MV, &predCb)
	interPredChroma(sd.ref, planeCr, mbX*8, mbY*8, mb.MV, &predCr)
	sd.reconChroma(mb, addr, &predCb, &predCr)
	return nil
}

// mvCand is a motion vector prediction candidate per the derivation of
// section 8.4.1.3.2. An intra coded neighbour counts as available with a
// reference index of -1 and a zero vector.
type mvCand struct {
	mv     [2]int
	refIdx int
	avail  bool
}

func (sd *SliceDecoder) mvNeighbor(addr int) mvCand {
	if !sd.mbAvailable(addr) {
		return mvCand{refIdx: -1}
	}
	st := &sd.arena[addr]
	if st.class.intra() {
		return mvCand{refIdx: -1, avail: true}
	}
	return mvCand{
		mv:     [2]int{int(st.mv[0]), int(st.mv[1])},
		refIdx: int(st.refIdx),
		avail:  true,
	}
}

// mvPrediction derives the luma motion vector predictor for a 16x16
// partition from the left, above and above right neighbour candidates,
// section 8.4.1.3. The above left neighbour substitutes for an unavailable
// above right.
func (sd *SliceDecoder) mvPrediction(addr int) [2]int {
	a := sd.mvNeighbor(sd.neighborMB(addr, -1, 0))
	b := sd.mvNeighbor(sd.neighborMB(addr, 0, -1))
	cAddr := sd.neighborMB(addr, 1, -1)
	if !sd.mbAvailable(cAddr) {
		cAddr = sd.neighborMB(addr, -1, -1)
	}
	c := sd.mvNeighbor(cAddr)

	cands := [3]mvCand{a, b, c}
	match, n := 0, 0
	for i, cd := range cands {
		if cd.refIdx == 0 {
			match, n = i, n+1
		}
	}
	if n == 1 {
		return cands[match].mv
	}
	if a.avail && !b.avail && !c.avail {
		return a.mv
	}
	return [2]int{
		medi(a.mv[0], b.mv[0], c.mv[0]),
		medi(a.mv[1], b.mv[1], c.mv[1]),
	}
}

// pSkipMV derives the motion vector of a P_Skip macroblock, section
// 8.4.1.1: zero when either direct neighbour is missing or stationary,
// otherwise the usual prediction.
func (sd *SliceDecoder) pSkipMV(addr int) [2]int {
	a := sd.mvNeighbor(sd.neighborMB(addr, -1, 0))
	b := sd.mvNeighbor(sd.neighborMB(addr, 0, -1))

	zero := [2]int{}
	if !a.avail || !b.avail {
		return zero
	}
	if a.refIdx == 0 && a.mv == zero {
		return zero
	}
	if b.refIdx == 0 && b.mv == zero {
		return zero
	}
	return sd.mvPrediction(addr)
}
