/*
DESCRIPTION
  transform_test.go provides testing for functionality in transform.go.

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

import "testing"

func TestScanToRaster(t *testing.T) {
	tests := []struct {
		scan  []int32
		start int
		want  [16]int32
	}{
		{
			scan:  []int32{1, 2, 3, 4, 5},
			start: 0,
			want:  [16]int32{1, 2, 0, 0, 3, 5, 0, 0, 4, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			// AC only block; the scan starts at zig-zag position one.
			scan:  []int32{7, 0, 9},
			start: 1,
			want:  [16]int32{0, 7, 0, 0, 0, 0, 0, 0, 9, 0, 0, 0, 0, 0, 0, 0},
		},
	}

	for i, test := range tests {
		got := scanToRaster(test.scan, test.start)
		if got != test.want {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestDequant4x4(t *testing.T) {
	tests := []struct {
		in   [16]int32
		qp   int
		want [16]int32
	}{
		{
			// At qp 0 each unit coefficient scales to its normAdjust value.
			in: [16]int32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
			qp: 0,
			want: [16]int32{
				10, 13, 10, 13,
				13, 16, 13, 16,
				10, 13, 10, 13,
				13, 16, 13, 16,
			},
		},
		{
			// Six steps of qp doubles the scale.
			in: [16]int32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
			qp: 12,
			want: [16]int32{
				40, 52, 40, 52,
				52, 64, 52, 64,
				40, 52, 40, 52,
				52, 64, 52, 64,
			},
		},
		{
			in: [16]int32{2, 0, 0, 0, 0, -3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			qp: 7,
			want: [16]int32{
				44, 0, 0, 0,
				0, -108, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0,
			},
		},
	}

	for i, test := range tests {
		c := test.in
		dequant4x4(&c, test.qp)
		if c != test.want {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, c, test.want)
		}
	}
}

func TestInverseTransform4x4(t *testing.T) {
	tests := []struct {
		in   [16]int32
		want [16]int32
	}{
		{
			// A DC of 64 reconstructs to a flat residual of one.
			in:   [16]int32{64, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			want: [16]int32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		},
		{
			in: [16]int32{512, 0, 0, 0, 0, -256, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			want: [16]int32{
				4, 6, 10, 12,
				6, 7, 9, 10,
				10, 9, 7, 6,
				12, 10, 6, 4,
			},
		},
		{
			in:   [16]int32{},
			want: [16]int32{},
		},
	}

	for i, test := range tests {
		d := test.in
		inverseTransform4x4(&d)
		if d != test.want {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, d, test.want)
		}
	}
}

func TestTransformLumaDC(t *testing.T) {
	tests := []struct {
		in   [16]int32
		qp   int
		want [16]int32
	}{
		{
			// Unit levels sum to sixteen at the DC Hadamard output, then
			// scale with rounding at qp 0.
			in: [16]int32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
			qp: 0,
			want: [16]int32{
				40, 0, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0,
			},
		},
		{
			// A single level spreads across all sixteen DC positions; at
			// qp 40 the scale is a pure left shift branch.
			in: [16]int32{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			qp: 40,
			want: [16]int32{
				256, 256, 256, 256,
				256, 256, 256, 256,
				256, 256, 256, 256,
				256, 256, 256, 256,
			},
		},
	}

	for i, test := range tests {
		c := test.in
		transformLumaDC(&c, test.qp)
		if c != test.want {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, c, test.want)
		}
	}
}

func TestTransformChromaDC(t *testing.T) {
	tests := []struct {
		in   [4]int32
		qp   int
		want [4]int32
	}{
		{
			in:   [4]int32{1, 1, 1, 1},
			qp:   0,
			want: [4]int32{20, 0, 0, 0},
		},
		{
			in:   [4]int32{1, 0, 0, 0},
			qp:   30,
			want: [4]int32{160, 160, 160, 160},
		},
	}

	for i, test := range tests {
		c := test.in
		transformChromaDC(&c, test.qp)
		if c != test.want {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, c, test.want)
		}
	}
}

func TestChromaQP(t *testing.T) {
	tests := []struct {
		qpy    int
		offset int
		want   int
	}{
		{qpy: 20, offset: 0, want: 20},
		{qpy: 29, offset: 0, want: 29},
		{qpy: 30, offset: 0, want: 29},
		{qpy: 36, offset: 0, want: 34},
		{qpy: 43, offset: 0, want: 37},
		{qpy: 51, offset: 0, want: 39},
		{qpy: 26, offset: 10, want: 34},
		{qpy: 51, offset: 10, want: 39},
		{qpy: 0, offset: -5, want: 0},
	}

	for i, test := range tests {
		got := chromaQP(test.qpy, test.offset)
		if got != test.want {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}
