/*
DESCRIPTION
  slice_test.go provides testing for slice header parsing and the slice
  decoder state machine in slice.go.

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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/h264dec/bits"
)

// testStore returns a store holding the canonical test SPS and PPS, plus a
// second PPS with id 1 carrying deblocking filter controls.
func testStore(t *testing.T) *ParameterSetStore {
	t.Helper()
	s := NewParameterSetStore()
	if _, err := s.IngestSPS(testSPSBin(t, "0000 1010")); err != nil {
		t.Fatalf("did not expect error ingesting SPS: %v", err)
	}
	if _, err := s.IngestPPS(testPPSBin(t)); err != nil {
		t.Fatalf("did not expect error ingesting PPS: %v", err)
	}

	deblock, err := binToSlice(
		"010" + // ue(v) pic_parameter_set_id = 1
			"1" + // ue(v) seq_parameter_set_id = 0
			"0" + // u(1) entropy_coding_mode_flag = 0
			"0" + // u(1) bottom_field_pic_order_in_frame_present_flag = false
			"1" + // ue(v) num_slice_groups_minus1 = 0
			"1" + // ue(v) num_ref_idx_l0_default_active_minus1 = 0
			"1" + // ue(v) num_ref_idx_l1_default_active_minus1 = 0
			"0" + // u(1) weighted_pred_flag = false
			"00" + // u(2) weighted_bipred_idc = 0
			"1" + // se(v) pic_init_qp_minus26 = 0
			"1" + // se(v) pic_init_qs_minus26 = 0
			"1" + // se(v) chroma_qp_index_offset = 0
			"1" + // u(1) deblocking_filter_control_present_flag = true
			"0" + // u(1) constrained_intra_pred_flag = false
			"0" + // u(1) redundant_pic_cnt_present_flag = false
			"1000 0000") // rbsp_trailing_bits
	if err != nil {
		t.Fatalf("did not expect error %v from binToSlice", err)
	}
	if _, err := s.IngestPPS(deblock); err != nil {
		t.Fatalf("did not expect error ingesting PPS: %v", err)
	}
	return s
}

func TestParseSliceHeader(t *testing.T) {
	idr := &NALUnit{RefIdc: 3, Type: NALTypeIDR}
	ref := &NALUnit{RefIdc: 2, Type: NALTypeNonIDR}
	nonRef := &NALUnit{Type: NALTypeNonIDR}

	tests := []struct {
		in   string
		nal  *NALUnit
		want SliceHeader
		err  error
	}{
		{
			in: "1" + // ue(v) first_mb_in_slice = 0
				"0001000" + // ue(v) slice_type = 7 (I)
				"1" + // ue(v) pic_parameter_set_id = 0
				"0000" + // u(4) frame_num = 0
				"1" + // ue(v) idr_pic_id = 0
				"0" + // u(1) no_output_of_prior_pics_flag = false
				"0" + // u(1) long_term_reference_flag = false
				"1", // se(v) slice_qp_delta = 0
			nal:  idr,
			want: SliceHeader{Type: sliceTypeI, SliceQPY: 26},
		},
		{
			in: "1" + // ue(v) first_mb_in_slice = 0
				"00110" + // ue(v) slice_type = 5 (P)
				"1" + // ue(v) pic_parameter_set_id = 0
				"0011" + // u(4) frame_num = 3
				"0" + // u(1) num_ref_idx_active_override_flag = false
				"0" + // u(1) ref_pic_list_modification_flag_l0 = false
				"0" + // u(1) adaptive_ref_pic_marking_mode_flag = false
				"00100", // se(v) slice_qp_delta = 2
			nal:  ref,
			want: SliceHeader{Type: sliceTypeP, FrameNum: 3, SliceQPDelta: 2, SliceQPY: 28},
		},
		{
			// A non reference slice carries no dec_ref_pic_marking.
			in: "1" + // ue(v) first_mb_in_slice = 0
				"011" + // ue(v) slice_type = 2 (I)
				"1" + // ue(v) pic_parameter_set_id = 0
				"0111" + // u(4) frame_num = 7
				"1", // se(v) slice_qp_delta = 0
			nal:  nonRef,
			want: SliceHeader{Type: sliceTypeI, FrameNum: 7, SliceQPY: 26},
		},
		{
			// PPS 1 carries deblocking filter controls.
			in: "1" + // ue(v) first_mb_in_slice = 0
				"0001000" + // ue(v) slice_type = 7 (I)
				"010" + // ue(v) pic_parameter_set_id = 1
				"0000" + // u(4) frame_num = 0
				"1" + // ue(v) idr_pic_id = 0
				"0" + // u(1) no_output_of_prior_pics_flag = false
				"0" + // u(1) long_term_reference_flag = false
				"1" + // se(v) slice_qp_delta = 0
				"1" + // ue(v) disable_deblocking_filter_idc = 0
				"00101" + // se(v) slice_alpha_c0_offset_div2 = -2
				"010", // se(v) slice_beta_offset_div2 = 1
			nal: idr,
			want: SliceHeader{
				Type: sliceTypeI, PPSID: 1, SliceQPY: 26,
				SliceAlphaC0OffsetDiv2: -2, SliceBetaOffsetDiv2: 1,
			},
		},
		{
			in:  "1" + "0001011", // slice_type = 10
			nal: nonRef,
			err: errSliceTypeRange,
		},
		{
			in:  "1" + "00110", // P slice in an IDR picture
			nal: idr,
			err: errIDRSliceType,
		},
		{
			in:  "1" + "00111", // slice_type = 6 (B)
			nal: ref,
			err: UnsupportedFeatureError{Feature: "B slices"},
		},
		{
			// slice_qp_delta of 26 puts SliceQPY at 52.
			in: "1" + "0001000" + "1" + "0000" + "1" + "0" + "0" +
				"00000110100", // se(v) slice_qp_delta = 26
			nal: idr,
			err: errSliceQPRange,
		},
		{
			in: "1" + "0001000" + "1" + "0000" + "1" +
				"0" + // u(1) no_output_of_prior_pics_flag = false
				"1", // u(1) long_term_reference_flag = true
			nal: idr,
			err: UnsupportedFeatureError{Feature: "long term reference pictures"},
		},
		{
			in: "1" + "00110" + "1" + "0011" + "0" + "0" +
				"1", // u(1) adaptive_ref_pic_marking_mode_flag = true
			nal: ref,
			err: UnsupportedFeatureError{Feature: "adaptive reference picture marking"},
		},
		{
			in: "1" + "00110" + "1" + "0011" +
				"1" + // u(1) num_ref_idx_active_override_flag = true
				"010", // ue(v) num_ref_idx_l0_active_minus1 = 1
			nal: ref,
			err: UnsupportedFeatureError{Feature: "multiple reference pictures"},
		},
		{
			// The deblocking idc is bounded at 2.
			in: "1" + "0001000" + "010" + "0000" + "1" + "0" + "0" + "1" +
				"00100", // ue(v) disable_deblocking_filter_idc = 3
			nal: idr,
			err: errDeblockIDC,
		},
		{
			in:  "1" + "0001000", // ends before pic_parameter_set_id
			nal: idr,
			err: bits.ErrOutOfBits,
		},
	}

	store := testStore(t)
	for i, test := range tests {
		inBytes, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("converting bin string to slice failed with error: %v for test: %d", err, i)
		}

		got, _, _, err := parseSliceHeader(bits.NewBitReader(inBytes), test.nal, store)
		if test.err != nil {
			if !errors.Is(err, test.err) {
				t.Errorf("did not get expected error for test: %d\nGot: %v\nWant: %v\n", i, err, test.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("did not expect error: %v for test: %d", err, i)
			continue
		}
		if !cmp.Equal(*got, test.want) {
			t.Errorf("did not get expected result for test: %d\n%s", i, cmp.Diff(test.want, *got))
		}
	}
}

func TestCheckDecodable(t *testing.T) {
	base := func() (*SPS, *PPS) {
		return &SPS{ChromaFormatIDC: chroma420, FrameMbsOnlyFlag: true}, &PPS{}
	}

	tests := []struct {
		mod     func(*SPS, *PPS)
		feature string
	}{
		{mod: func(s *SPS, p *PPS) {}},
		{
			mod:     func(s *SPS, p *PPS) { p.EntropyCodingMode = 1 },
			feature: "CABAC entropy coding",
		},
		{
			mod:     func(s *SPS, p *PPS) { s.ChromaFormatIDC = 2 },
			feature: "chroma_format_idc 2",
		},
		{
			mod:     func(s *SPS, p *PPS) { s.BitDepthLumaMinus8 = 2 },
			feature: "bit depths greater than 8",
		},
		{
			mod:     func(s *SPS, p *PPS) { s.FrameMbsOnlyFlag = false },
			feature: "interlaced coding",
		},
		{
			mod:     func(s *SPS, p *PPS) { s.SeqScalingMatrixPresentFlag = true },
			feature: "scaling matrices",
		},
		{
			mod:     func(s *SPS, p *PPS) { p.NumSliceGroupsMinus1 = 1 },
			feature: "slice groups",
		},
		{
			mod:     func(s *SPS, p *PPS) { p.Transform8x8Mode = 1 },
			feature: "8x8 transform",
		},
		{
			mod:     func(s *SPS, p *PPS) { s.QPPrimeYZeroTransformBypassFlag = true },
			feature: "transform bypass",
		},
	}

	for i, test := range tests {
		sps, pps := base()
		test.mod(sps, pps)
		err := checkDecodable(sps, pps)
		if test.feature == "" {
			if err != nil {
				t.Errorf("did not expect error: %v for test: %d", err, i)
			}
			continue
		}
		var uErr UnsupportedFeatureError
		if !errors.As(err, &uErr) {
			t.Errorf("expected an UnsupportedFeatureError for test: %d, got: %v", i, err)
			continue
		}
		if uErr.Feature != test.feature {
			t.Errorf("did not get expected feature for test: %d\nGot: %v\nWant: %v\n", i, uErr.Feature, test.feature)
		}
	}
}

func TestSliceDecoderStates(t *testing.T) {
	rbsp, err := binToSlice(
		"1" + // ue(v) first_mb_in_slice = 0
			"0001000" + // ue(v) slice_type = 7 (I)
			"1" + // ue(v) pic_parameter_set_id = 0
			"0000" + // u(4) frame_num = 0
			"1" + // ue(v) idr_pic_id = 0
			"0" + // u(1) no_output_of_prior_pics_flag = false
			"0" + // u(1) long_term_reference_flag = false
			"1") // se(v) slice_qp_delta = 0
	if err != nil {
		t.Fatalf("did not expect error %v from binToSlice", err)
	}
	nal := &NALUnit{RefIdc: 3, Type: NALTypeIDR, RBSP: rbsp}

	sd := NewSliceDecoder(nal)
	if sd.State() != StateAwaitingParams {
		t.Fatalf("unexpected initial state: %v", sd.State())
	}
	if sd.Header() != nil {
		t.Fatal("header should be nil before parsing")
	}

	// Parsing against an empty store fails and leaves the decoder
	// retriable.
	empty := NewParameterSetStore()
	if err := sd.ParseHeader(empty); !errors.Is(err, ErrParameterSetNotFound) {
		t.Fatalf("expected error chain to contain ErrParameterSetNotFound, got: %v", err)
	}
	if sd.State() != StateAwaitingParams {
		t.Fatalf("unexpected state after failed parse: %v", sd.State())
	}

	if err := sd.ParseHeader(testStore(t)); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if sd.State() != StateHeaderParsed {
		t.Fatalf("unexpected state after parse: %v", sd.State())
	}
	if sd.Header() == nil || sd.Header().Type != sliceTypeI {
		t.Fatal("header not retained after parse")
	}
}

func TestSliceDecodeFirstMBRange(t *testing.T) {
	// A slice whose first_mb_in_slice lies beyond the end of the two by
	// two macroblock picture.
	rbsp, err := binToSlice(
		"00110" + // ue(v) first_mb_in_slice = 5
			"0001000" + // ue(v) slice_type = 7 (I)
			"1" + // ue(v) pic_parameter_set_id = 0
			"0000" + // u(4) frame_num = 0
			"1" + // ue(v) idr_pic_id = 0
			"0" + // u(1) no_output_of_prior_pics_flag = false
			"0" + // u(1) long_term_reference_flag = false
			"1") // se(v) slice_qp_delta = 0
	if err != nil {
		t.Fatalf("did not expect error %v from binToSlice", err)
	}
	nal := &NALUnit{RefIdc: 3, Type: NALTypeIDR, RBSP: rbsp}

	sd := NewSliceDecoder(nal)
	store := testStore(t)
	if err := sd.ParseHeader(store); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	sps, err := store.SPS(0)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	_, err = sd.decode(newFrame(sps), nil, make([]mbState, sps.PicSizeInMbs()), 1)
	if !errors.Is(err, errFirstMBRange) {
		t.Errorf("did not get expected error\nGot: %v\nWant: %v\n", err, errFirstMBRange)
	}
}
