/*
DESCRIPTION
  cavlc_test.go provides testing for functionality in cavlc.go.

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
	"errors"
	"reflect"
	"testing"

	"github.com/ausocean/h264dec/bits"
)

func TestReadCoeffToken(t *testing.T) {
	tests := []struct {
		// Input.
		nC        int
		tokenBits string

		// Expected.
		trailingOnes int
		totalCoeff   int
		err          error
	}{
		{nC: 0, tokenBits: "1", trailingOnes: 0, totalCoeff: 0},
		{nC: 0, tokenBits: "0001 01", trailingOnes: 0, totalCoeff: 1},
		{nC: 1, tokenBits: "0001 1", trailingOnes: 3, totalCoeff: 3},
		{nC: 2, tokenBits: "0101", trailingOnes: 3, totalCoeff: 3},
		{nC: 4, tokenBits: "1100", trailingOnes: 3, totalCoeff: 3},
		{nC: 5, tokenBits: "0001 001", trailingOnes: 0, totalCoeff: 6},

		// For nC >= 8 the codewords are six bit FLCs, including the all
		// zero codeword for TotalCoeff 1.
		{nC: 8, tokenBits: "0000 11", trailingOnes: 0, totalCoeff: 0},
		{nC: 8, tokenBits: "0000 00", trailingOnes: 0, totalCoeff: 1},
		{nC: 16, tokenBits: "1111 11", trailingOnes: 3, totalCoeff: 16},

		// Chroma DC, including the all zero codeword for (3,4).
		{nC: -1, tokenBits: "1", trailingOnes: 1, totalCoeff: 1},
		{nC: -1, tokenBits: "0000 000", trailingOnes: 3, totalCoeff: 4},

		// No 16 bit codeword in the 0 <= nC < 2 category is all zeros.
		{nC: 0, tokenBits: "0000 0000 0000 0000", err: errBadToken},
		{nC: -3, tokenBits: "1", err: errInvalidNC},
	}

	for i, test := range tests {
		b, err := binToSlice(test.tokenBits)
		if err != nil {
			t.Errorf("converting bin string to slice failed with error: %v for test %d", err, i)
			continue
		}

		gotTrailingOnes, gotTotalCoeff, _, gotErr := readCoeffToken(bits.NewBitReader(b), test.nC)
		if gotErr != test.err {
			t.Errorf("did not get expected error for test: %d\nGot: %v\nWant: %v\n", i, gotErr, test.err)
			continue
		}

		if gotTrailingOnes != test.trailingOnes {
			t.Errorf("did not get expected TrailingOnes(coeff_token) for test %d\nGot: %v\nWant: %v\n", i, gotTrailingOnes, test.trailingOnes)
		}

		if gotTotalCoeff != test.totalCoeff {
			t.Errorf("did not get expected TotalCoeff(coeff_token) for test %d\nGot: %v\nWant: %v\n", i, gotTotalCoeff, test.totalCoeff)
		}
	}
}

func TestParseLevelPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "00001", want: 4},
		{in: "0000001", want: 6},
		{in: "1", want: 0},
	}

	for i, test := range tests {
		s, _ := binToSlice(test.in)
		l, err := parseLevelPrefix(bits.NewBitReader(s))
		if err != nil {
			t.Errorf("did not expect error: %v, for test %d", err, i)
		}

		if l != test.want {
			t.Errorf("did not get expected result for test %d\nGot: %d\nWant: %d\n", i, l, test.want)
		}
	}
}

func TestParseLevelInformation(t *testing.T) {
	tests := []struct {
		// Input.
		in           string
		totalCoeff   int
		trailingOnes int

		// Expected.
		want []int32
	}{
		// Trailing one sign flags only.
		{in: "0", totalCoeff: 1, trailingOnes: 1, want: []int32{1}},
		{in: "1", totalCoeff: 1, trailingOnes: 1, want: []int32{-1}},

		// The first level after fewer than three trailing ones has its
		// code offset by two, so level_prefix 0 gives magnitude two.
		{in: "01", totalCoeff: 2, trailingOnes: 1, want: []int32{1, 2}},
		{in: "01", totalCoeff: 1, trailingOnes: 0, want: []int32{-2}},

		// suffixLen moves to one after the first level, so the second
		// level carries a one bit suffix.
		{in: "1 0011", totalCoeff: 2, trailingOnes: 0, want: []int32{2, -3}},

		// level_prefix 14 at suffixLen zero escapes to a four bit suffix.
		{in: "000 000000000000001 0000", totalCoeff: 4, trailingOnes: 3, want: []int32{1, 1, 1, 8}},
	}

	for i, test := range tests {
		s, err := binToSlice(test.in)
		if err != nil {
			t.Errorf("converting bin string to slice failed with error: %v for test %d", err, i)
			continue
		}

		got, err := parseLevelInformation(bits.NewBitReader(s), test.totalCoeff, test.trailingOnes)
		if err != nil {
			t.Errorf("did not expect error: %v for test: %d", err, i)
			continue
		}

		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestReadTotalZeros(t *testing.T) {
	tests := []struct {
		// Input.
		in         string
		totalCoeff int
		chromaDC   bool

		// Expected.
		want int
	}{
		{in: "1", totalCoeff: 1, want: 0},
		{in: "011", totalCoeff: 1, want: 1},
		{in: "0000 0000 1", totalCoeff: 1, want: 15},
		{in: "111", totalCoeff: 2, want: 0},
		{in: "0000 00", totalCoeff: 2, want: 14},
		{in: "0000 0", totalCoeff: 10, want: 1},
		{in: "0", totalCoeff: 15, want: 0},
		{in: "1", totalCoeff: 15, want: 1},
		{in: "1", totalCoeff: 1, chromaDC: true, want: 0},
		{in: "000", totalCoeff: 1, chromaDC: true, want: 3},
		{in: "0", totalCoeff: 3, chromaDC: true, want: 1},
	}

	for i, test := range tests {
		s, err := binToSlice(test.in)
		if err != nil {
			t.Errorf("converting bin string to slice failed with error: %v for test %d", err, i)
			continue
		}

		got, err := readTotalZeros(bits.NewBitReader(s), test.totalCoeff, test.chromaDC)
		if err != nil {
			t.Errorf("did not expect error: %v for test: %d", err, i)
			continue
		}

		if got != test.want {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestReadRunBefore(t *testing.T) {
	tests := []struct {
		// Input.
		in        string
		zerosLeft int

		// Expected.
		want int
	}{
		{in: "1", zerosLeft: 1, want: 0},
		{in: "0", zerosLeft: 1, want: 1},
		{in: "00", zerosLeft: 2, want: 2},
		{in: "000", zerosLeft: 6, want: 1},
		{in: "100", zerosLeft: 6, want: 6},
		{in: "111", zerosLeft: 9, want: 0},
		{in: "0000 0000 001", zerosLeft: 9, want: 14},
	}

	for i, test := range tests {
		s, err := binToSlice(test.in)
		if err != nil {
			t.Errorf("converting bin string to slice failed with error: %v for test %d", err, i)
			continue
		}

		got, err := readRunBefore(bits.NewBitReader(s), test.zerosLeft)
		if err != nil {
			t.Errorf("did not expect error: %v for test: %d", err, i)
			continue
		}

		if got != test.want {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestCombineLevelRunInfo(t *testing.T) {
	tests := []struct {
		levelVal    []int32
		runVal      []int
		totalCoeff  int
		maxNumCoeff int
		want        []int32
	}{
		{
			levelVal:    []int32{3, 2, 1},
			runVal:      []int{1, 0, 2},
			totalCoeff:  3,
			maxNumCoeff: 16,
			want:        []int32{0, 0, 1, 2, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			levelVal:    []int32{-1},
			runVal:      []int{1},
			totalCoeff:  1,
			maxNumCoeff: 4,
			want:        []int32{0, -1, 0, 0},
		},
	}

	for i, test := range tests {
		got := combineLevelRunInfo(test.levelVal, test.runVal, test.totalCoeff, test.maxNumCoeff)
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestReadResidualBlock(t *testing.T) {
	tests := []struct {
		// Input.
		in          string
		nC          int
		maxNumCoeff int

		// Expected.
		want      []int32
		wantTotal int
	}{
		// Empty block.
		{
			in:          "1",
			nC:          0,
			maxNumCoeff: 16,
			want:        []int32{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			wantTotal:   0,
		},

		// Two trailing ones, no zeros.
		{
			in:          "001 01 111",
			nC:          0,
			maxNumCoeff: 16,
			want:        []int32{-1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			wantTotal:   2,
		},

		// coeff_token (3,5), signs +1,-1,-1, levels 1 and 3, total_zeros 3,
		// runs 1,0,0,1.
		{
			in:          "0000 100 011 1 0010 111 10 1 1 01",
			nC:          0,
			maxNumCoeff: 16,
			want:        []int32{0, 3, 0, 1, -1, -1, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
			wantTotal:   5,
		},

		// Chroma DC block with a single -1 after one zero.
		{
			in:          "1 1 01",
			nC:          -1,
			maxNumCoeff: 4,
			want:        []int32{0, -1, 0, 0},
			wantTotal:   1,
		},

		// All zero coeff_token codeword in the nC >= 8 category.
		{
			in:          "0000 00 1 1",
			nC:          8,
			maxNumCoeff: 16,
			want:        []int32{2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			wantTotal:   1,
		},
	}

	for i, test := range tests {
		s, err := binToSlice(test.in)
		if err != nil {
			t.Errorf("converting bin string to slice failed with error: %v for test %d", err, i)
			continue
		}

		got, gotTotal, err := readResidualBlock(bits.NewBitReader(s), test.nC, test.maxNumCoeff)
		if err != nil {
			t.Errorf("did not expect error: %v for test: %d", err, i)
			continue
		}

		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("did not get expected result for test: %d\nGot: %v\nWant: %v\n", i, got, test.want)
		}

		if gotTotal != test.wantTotal {
			t.Errorf("did not get expected TotalCoeff for test: %d\nGot: %v\nWant: %v\n", i, gotTotal, test.wantTotal)
		}
	}
}

func TestReadResidualBlockTruncated(t *testing.T) {
	// An empty source fails at coeff_token.
	_, _, err := readResidualBlock(bits.NewBitReader(nil), 0, 16)
	if !errors.Is(err, bits.ErrOutOfBits) {
		t.Errorf("expected error chain to contain ErrOutOfBits, got: %v", err)
	}

	var dErr EntropyDecodeError
	if !errors.As(err, &dErr) {
		t.Fatalf("expected an EntropyDecodeError, got: %v", err)
	}
	if dErr.Element != "coeff_token" {
		t.Errorf("did not get expected element\nGot: %v\nWant: coeff_token\n", dErr.Element)
	}

	// A source exhausted partway through total_zeros. The coeff_token and
	// sign flags consume five bits and the remaining padding is too short
	// for any total_zeros codeword.
	s, _ := binToSlice("001 0")
	_, _, err = readResidualBlock(bits.NewBitReader(s), 0, 16)
	if !errors.Is(err, bits.ErrOutOfBits) {
		t.Errorf("expected error chain to contain ErrOutOfBits, got: %v", err)
	}
	if !errors.As(err, &dErr) {
		t.Fatalf("expected an EntropyDecodeError, got: %v", err)
	}
	if dErr.Element != "total_zeros" {
		t.Errorf("did not get expected element\nGot: %v\nWant: total_zeros\n", dErr.Element)
	}
}
