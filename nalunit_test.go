/*
DESCRIPTION
  nalunit_test.go provides testing for functionality in nalunit.go.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264dec

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ausocean/h264dec/bits"
)

func TestRemoveEmulationPrevention(t *testing.T) {
	tests := []struct {
		in   []byte
		want []byte
	}{
		{
			in:   []byte{0x00, 0x00, 0x03, 0x01},
			want: []byte{0x00, 0x00, 0x01},
		},
		{
			in:   []byte{0x00, 0x00, 0x03, 0x00, 0x00, 0x03, 0x01},
			want: []byte{0x00, 0x00, 0x00, 0x00, 0x01},
		},
		{
			// 0x03 not preceded by two zero bytes is data.
			in:   []byte{0x01, 0x03, 0x02},
			want: []byte{0x01, 0x03, 0x02},
		},
		{
			// The byte following a removed emulation prevention byte may
			// itself be 0x03.
			in:   []byte{0x00, 0x00, 0x03, 0x03},
			want: []byte{0x00, 0x00, 0x03},
		},
		{
			in:   []byte{0x42, 0x00, 0x00, 0x03, 0x02, 0x00},
			want: []byte{0x42, 0x00, 0x00, 0x02, 0x00},
		},
		{
			in:   []byte{},
			want: []byte{},
		},
	}

	for i, test := range tests {
		got := RemoveEmulationPrevention(test.in)
		if !bytes.Equal(got, test.want) {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestNewNALUnit(t *testing.T) {
	tests := []struct {
		in   []byte
		want *NALUnit
		err  error
	}{
		{
			// An SPS header byte followed by payload.
			in: []byte{0x67, 0x42, 0x00, 0x0a},
			want: &NALUnit{
				RefIdc: 3,
				Type:   NALTypeSPS,
				RBSP:   []byte{0x42, 0x00, 0x0a},
			},
		},
		{
			// Emulation prevention is removed before the RBSP is taken.
			in: []byte{0x65, 0x00, 0x00, 0x03, 0x01},
			want: &NALUnit{
				RefIdc: 3,
				Type:   NALTypeIDR,
				RBSP:   []byte{0x00, 0x00, 0x01},
			},
		},
		{
			in:  []byte{0x80},
			err: errForbiddenBit,
		},
		{
			in:  []byte{},
			err: errEmptyNALU,
		},
	}

	for i, test := range tests {
		got, err := NewNALUnit(test.in)
		if err != test.err {
			t.Errorf("did not get expected error for test %d\nGot: %v\nWant: %v\n", i, err, test.err)
			continue
		}
		if err != nil {
			continue
		}

		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("did not get expected result for test %d\nGot: %v\nWant: %v\n", i, *got, *test.want)
		}
	}
}

func TestNewNALUnitPrefix(t *testing.T) {
	in := "0" + // f(1) forbidden_zero_bit = 0
		"01" + // u(2) nal_ref_idc = 1
		"0 1110" + // u(5) nal_unit_type = 14
		"1" + // u(1) svc_extension_flag = true

		// svc extension
		"0" + // u(1) idr_flag = false
		"10 0000" + // u(6) priority_id = 32
		"0" + // u(1) no_inter_layer_pred_flag = false
		"001" + // u(3) dependency_id = 1
		"1000" + // u(4) quality_id = 8
		"010" + // u(3) temporal_id = 2
		"1" + // u(1) use_ref_base_pic_flag = true
		"0" + // u(1) discardable_flag = false
		"0" + // u(1) output_flag = false
		"11" + // u(2) reserved_three_2bits = 3

		// rbsp bytes
		"0000 0001" +
		"0000 0010" +
		"1000 0000" // trailing bits

	want := &NALUnit{
		RefIdc:           1,
		Type:             NALTypePrefixNALU,
		SVCExtensionFlag: true,
		SVCExtension: &SVCExtension{
			IdrFlag:              false,
			PriorityID:           32,
			NoInterLayerPredFlag: false,
			DependencyID:         1,
			QualityID:            8,
			TemporalID:           2,
			UseRefBasePicFlag:    true,
			DiscardableFlag:      false,
			OutputFlag:           false,
			ReservedThree2Bits:   3,
		},
		RBSP: []byte{0x01, 0x02, 0x80},
	}

	inBytes, err := binToSlice(in)
	if err != nil {
		t.Fatalf("did not expect error %v from binToSlice", err)
	}

	got, err := NewNALUnit(inBytes)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("did not get expected result\nGot: %v\nWant: %v\n", *got, *want)
	}
}

func TestNewMVCExtension(t *testing.T) {
	tests := []struct {
		in   string
		want *MVCExtension
		err  error
	}{
		{
			in: "0" + // u(1) non_idr_flag = false
				"00 0010" + // u(6) priority_id = 2
				"00 0001 1000" + // u(10) view_id = 24
				"100" + // u(3) temporal_id = 4
				"1" + // u(1) anchor_pic_flag = true
				"0" + // u(1) inter_view_flag = false
				"1" + // u(1) reserved_one_bit = 1
				"0", // Some padding
			want: &MVCExtension{
				NonIdrFlag:     false,
				PriorityID:     2,
				ViewID:         24,
				TemporalID:     4,
				AnchorPicFlag:  true,
				InterViewFlag:  false,
				ReservedOneBit: 1,
			},
		},
	}

	for i, test := range tests {
		inBytes, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("did not expect error %v from binToSlice for test %d", err, i)
		}

		got, err := NewMVCExtension(bits.NewBitReader(inBytes))
		if err != test.err {
			t.Errorf("did not get expected error for test %d\nGot: %v\nWant: %v\n", i, err, test.err)
		}

		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("did not get expected result for test %d\nGot: %v\nWant: %v\n", i, *got, *test.want)
		}
	}
}

func TestNewThreeDAVCExtension(t *testing.T) {
	tests := []struct {
		in   string
		want *ThreeDAVCExtension
		err  error
	}{
		{
			in: "0001 0000" + // u(8) view_idx = 16
				"1" + // u(1) depth_flag = true
				"0" + // u(1) non_idr_flag = false
				"010" + // u(3) temporal_id = 2
				"1" + // u(1) anchor_pic_flag = true
				"1" + // u(1) inter_view_flag = true
				"000", // Some padding
			want: &ThreeDAVCExtension{
				ViewIdx:       16,
				DepthFlag:     true,
				NonIdrFlag:    false,
				TemporalID:    2,
				AnchorPicFlag: true,
				InterViewFlag: true,
			},
		},
	}

	for i, test := range tests {
		inBytes, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("did not expect error %v from binToSlice for test %d", err, i)
		}

		got, err := NewThreeDAVCExtension(bits.NewBitReader(inBytes))
		if err != test.err {
			t.Errorf("did not get expected error for test %d\nGot: %v\nWant: %v\n", i, err, test.err)
		}

		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("did not get expected result for test %d\nGot: %v\nWant: %v\n", i, *got, *test.want)
		}
	}
}

func TestNewSVCExtension(t *testing.T) {
	tests := []struct {
		in   string
		want *SVCExtension
		err  error
	}{
		{
			in: "0" + // u(1) idr_flag = false
				"10 0000" + // u(6) priority_id = 32
				"0" + // u(1) no_inter_layer_pred_flag = false
				"001" + // u(3) dependency_id = 1
				"1000" + // u(4) quality_id = 8
				"010" + // u(3) temporal_id = 2
				"1" + // u(1) use_ref_base_pic_flag = true
				"0" + // u(1) discardable_flag = false
				"0" + // u(1) output_flag = false
				"11" + // u(2) reserved_three_2bits = 3
				"0", // padding
			want: &SVCExtension{
				IdrFlag:              false,
				PriorityID:           32,
				NoInterLayerPredFlag: false,
				DependencyID:         1,
				QualityID:            8,
				TemporalID:           2,
				UseRefBasePicFlag:    true,
				DiscardableFlag:      false,
				OutputFlag:           false,
				ReservedThree2Bits:   3,
			},
		},
	}

	for i, test := range tests {
		inBytes, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("did not expect error %v from binToSlice for test %d", err, i)
		}

		got, err := NewSVCExtension(bits.NewBitReader(inBytes))
		if err != test.err {
			t.Errorf("did not get expected error for test %d\nGot: %v\nWant: %v\n", i, err, test.err)
		}

		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("did not get expected result for test %d\nGot: %v\nWant: %v\n", i, *got, *test.want)
		}
	}
}
