/*
DESCRIPTION
  helpers.go provides general helper utilities.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264dec

import "errors"

// binToSlice is a helper function to convert a string of binary into a
// corresponding byte slice, e.g. "0100 0001 1000 1100" => {0x41,0x8c}.
// Spaces in the string are ignored.
func binToSlice(s string) ([]byte, error) {
	var (
		a     byte = 0x80
		cur   byte
		bytes []byte
	)

	for i, c := range s {
		switch c {
		case ' ':
			continue
		case '1':
			cur |= a
		case '0':
		default:
			return nil, errors.New("invalid binary string")
		}

		a >>= 1
		if a == 0 || i == (len(s)-1) {
			bytes = append(bytes, cur)
			cur = 0
			a = 0x80
		}
	}
	return bytes, nil
}

// binToInt converts a string of binary, with spaces ignored, into the
// corresponding int, e.g. "0110" => 6.
func binToInt(s string) (int, error) {
	var sum int
	for _, c := range s {
		switch c {
		case ' ':
			continue
		case '0':
			sum <<= 1
		case '1':
			sum = sum<<1 | 1
		default:
			return 0, errors.New("invalid binary string")
		}
	}
	return sum, nil
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func absi(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// clip3 clamps v into [lo,hi] as per equation 5-5.
func clip3(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clip1 clamps a reconstructed sample value into the 8 bit range [0,255] as
// per equation 5-4.
func clip1(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// medi returns the median of a, b and c.
func medi(a, b, c int) int {
	return maxi(mini(a, b), mini(maxi(a, b), c))
}

func isInList(l []int, term int) bool {
	for _, m := range l {
		if m == term {
			return true
		}
	}
	return false
}

// ceilLog2 returns the number of bits needed to distinguish v values, i.e.
// Ceil( Log2( v ) ) for v >= 1.
func ceilLog2(v int) int {
	n := 0
	for 1<<uint(n) < v {
		n++
	}
	return n
}
