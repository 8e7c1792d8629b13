/*
DESCRIPTION
  predict.go provides the intra sample prediction processes of section 8.3
  and the fractional sample interpolation of section 8.4.2.2 of the
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

// Intra_4x4 prediction modes from Table 8-2.
const (
	intra4x4Vertical = iota
	intra4x4Horizontal
	intra4x4DC
	intra4x4DiagonalDownLeft
	intra4x4DiagonalDownRight
	intra4x4VerticalRight
	intra4x4HorizontalDown
	intra4x4VerticalLeft
	intra4x4HorizontalUp
)

// Intra_16x16 prediction modes from Table 7-11.
const (
	intra16x16Vertical = iota
	intra16x16Horizontal
	intra16x16DC
	intra16x16Plane
)

// Intra chroma prediction modes from Table 7-16.
const (
	intraChromaDC = iota
	intraChromaHorizontal
	intraChromaVertical
	intraChromaPlane
)

// intraNeighbors holds the reconstructed neighbouring samples of a 4x4 block
// used for intra prediction, gathered per section 8.3.1.2. aboveRight holds
// p[4..7][-1] after the substitution of p[3][-1] for unavailable samples.
type intraNeighbors struct {
	left       [4]int
	above      [4]int
	aboveRight [4]int
	aboveLeft  int

	availLeft      bool
	availAbove     bool
	availAboveLeft bool
}

// gatherIntra4x4Neighbors reads the neighbouring samples of the 4x4 luma
// block at (x, y) from f. The availability flags describe which neighbouring
// regions are decoded and usable per section 6.4.12.
func gatherIntra4x4Neighbors(f *Frame, x, y int, availLeft, availAbove, availAboveLeft, availAboveRight bool) intraNeighbors {
	n := intraNeighbors{
		availLeft:      availLeft,
		availAbove:     availAbove,
		availAboveLeft: availAboveLeft,
	}
	if availLeft {
		for i := 0; i < 4; i++ {
			n.left[i] = f.at(planeY, x-1, y+i)
		}
	}
	if availAbove {
		for i := 0; i < 4; i++ {
			n.above[i] = f.at(planeY, x+i, y-1)
		}
		for i := 0; i < 4; i++ {
			if availAboveRight {
				n.aboveRight[i] = f.at(planeY, x+4+i, y-1)
			} else {
				n.aboveRight[i] = n.above[3]
			}
		}
	}
	if availAboveLeft {
		n.aboveLeft = f.at(planeY, x-1, y-1)
	}
	return n
}

// top returns p[i][-1] for i in -1..7.
func (n *intraNeighbors) top(i int) int {
	switch {
	case i < 0:
		return n.aboveLeft
	case i < 4:
		return n.above[i]
	default:
		return n.aboveRight[i-4]
	}
}

// side returns p[-1][i] for i in -1..3.
func (n *intraNeighbors) side(i int) int {
	if i < 0 {
		return n.aboveLeft
	}
	return n.left[i]
}

// predIntra4x4 computes the Intra_4x4 prediction of the given mode into
// pred, in raster order, following sections 8.3.1.2.1 to 8.3.1.2.9. A mode
// whose required neighbouring samples are unavailable is an
// InvalidPredictionModeError.
func predIntra4x4(n *intraNeighbors, mode int, pred *[16]int32) error {
	switch mode {
	case intra4x4Vertical:
		if !n.availAbove {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				pred[y*4+x] = int32(n.above[x])
			}
		}

	case intra4x4Horizontal:
		if !n.availLeft {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				pred[y*4+x] = int32(n.left[y])
			}
		}

	case intra4x4DC:
		var dc int
		switch {
		case n.availLeft && n.availAbove:
			for i := 0; i < 4; i++ {
				dc += n.above[i] + n.left[i]
			}
			dc = (dc + 4) >> 3
		case n.availAbove:
			dc = (n.above[0] + n.above[1] + n.above[2] + n.above[3] + 2) >> 2
		case n.availLeft:
			dc = (n.left[0] + n.left[1] + n.left[2] + n.left[3] + 2) >> 2
		default:
			dc = 128
		}
		for i := range pred {
			pred[i] = int32(dc)
		}

	case intra4x4DiagonalDownLeft:
		if !n.availAbove {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				if x == 3 && y == 3 {
					pred[y*4+x] = int32((n.top(6) + 3*n.top(7) + 2) >> 2)
				} else {
					pred[y*4+x] = int32((n.top(x+y) + 2*n.top(x+y+1) + n.top(x+y+2) + 2) >> 2)
				}
			}
		}

	case intra4x4DiagonalDownRight:
		if !n.availLeft || !n.availAbove || !n.availAboveLeft {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				switch {
				case x > y:
					pred[y*4+x] = int32((n.top(x-y-2) + 2*n.top(x-y-1) + n.top(x-y) + 2) >> 2)
				case x < y:
					pred[y*4+x] = int32((n.side(y-x-2) + 2*n.side(y-x-1) + n.side(y-x) + 2) >> 2)
				default:
					pred[y*4+x] = int32((n.top(0) + 2*n.aboveLeft + n.side(0) + 2) >> 2)
				}
			}
		}

	case intra4x4VerticalRight:
		if !n.availLeft || !n.availAbove || !n.availAboveLeft {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				switch zVR := 2*x - y; {
				case zVR >= 0 && zVR%2 == 0:
					pred[y*4+x] = int32((n.top(x-(y>>1)-1) + n.top(x-(y>>1)) + 1) >> 1)
				case zVR >= 0:
					pred[y*4+x] = int32((n.top(x-(y>>1)-2) + 2*n.top(x-(y>>1)-1) + n.top(x-(y>>1)) + 2) >> 2)
				case zVR == -1:
					pred[y*4+x] = int32((n.side(0) + 2*n.aboveLeft + n.top(0) + 2) >> 2)
				default:
					pred[y*4+x] = int32((n.side(y-1) + 2*n.side(y-2) + n.side(y-3) + 2) >> 2)
				}
			}
		}

	case intra4x4HorizontalDown:
		if !n.availLeft || !n.availAbove || !n.availAboveLeft {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				switch zHD := 2*y - x; {
				case zHD >= 0 && zHD%2 == 0:
					pred[y*4+x] = int32((n.side(y-(x>>1)-1) + n.side(y-(x>>1)) + 1) >> 1)
				case zHD >= 0:
					pred[y*4+x] = int32((n.side(y-(x>>1)-2) + 2*n.side(y-(x>>1)-1) + n.side(y-(x>>1)) + 2) >> 2)
				case zHD == -1:
					pred[y*4+x] = int32((n.side(0) + 2*n.aboveLeft + n.top(0) + 2) >> 2)
				default:
					pred[y*4+x] = int32((n.top(x-1) + 2*n.top(x-2) + n.top(x-3) + 2) >> 2)
				}
			}
		}

	case intra4x4VerticalLeft:
		if !n.availAbove {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				if y%2 == 0 {
					pred[y*4+x] = int32((n.top(x+(y>>1)) + n.top(x+(y>>1)+1) + 1) >> 1)
				} else {
					pred[y*4+x] = int32((n.top(x+(y>>1)) + 2*n.top(x+(y>>1)+1) + n.top(x+(y>>1)+2) + 2) >> 2)
				}
			}
		}

	case intra4x4HorizontalUp:
		if !n.availLeft {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				switch zHU := x + 2*y; {
				case zHU < 5 && zHU%2 == 0:
					pred[y*4+x] = int32((n.side(y+(x>>1)) + n.side(y+(x>>1)+1) + 1) >> 1)
				case zHU < 5:
					pred[y*4+x] = int32((n.side(y+(x>>1)) + 2*n.side(y+(x>>1)+1) + n.side(y+(x>>1)+2) + 2) >> 2)
				case zHU == 5:
					pred[y*4+x] = int32((n.side(2) + 3*n.side(3) + 2) >> 2)
				default:
					pred[y*4+x] = int32(n.side(3))
				}
			}
		}

	default:
		return InvalidPredictionModeError{Mode: mode}
	}
	return nil
}

// mbNeighbors holds the reconstructed samples bordering a macroblock sized
// region, for the whole macroblock intra prediction modes.
type mbNeighbors struct {
	left      []int
	above     []int
	aboveLeft int

	availLeft      bool
	availAbove     bool
	availAboveLeft bool
}

// gatherMBNeighbors reads the size neighbouring samples to the left of and
// above the region at (x, y) of plane p of f.
func gatherMBNeighbors(f *Frame, p plane, x, y, size int, availLeft, availAbove, availAboveLeft bool) mbNeighbors {
	n := mbNeighbors{
		availLeft:      availLeft,
		availAbove:     availAbove,
		availAboveLeft: availAboveLeft,
	}
	if availLeft {
		n.left = make([]int, size)
		for i := range n.left {
			n.left[i] = f.at(p, x-1, y+i)
		}
	}
	if availAbove {
		n.above = make([]int, size)
		for i := range n.above {
			n.above[i] = f.at(p, x+i, y-1)
		}
	}
	if availAboveLeft {
		n.aboveLeft = f.at(p, x-1, y-1)
	}
	return n
}

// predIntra16x16 computes the Intra_16x16 luma prediction of the given mode
// into pred, in raster order, following section 8.3.3.
func predIntra16x16(n *mbNeighbors, mode int, pred *[256]int32) error {
	switch mode {
	case intra16x16Vertical:
		if !n.availAbove {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				pred[y*16+x] = int32(n.above[x])
			}
		}

	case intra16x16Horizontal:
		if !n.availLeft {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				pred[y*16+x] = int32(n.left[y])
			}
		}

	case intra16x16DC:
		var dc int
		switch {
		case n.availLeft && n.availAbove:
			for i := 0; i < 16; i++ {
				dc += n.above[i] + n.left[i]
			}
			dc = (dc + 16) >> 5
		case n.availAbove:
			for i := 0; i < 16; i++ {
				dc += n.above[i]
			}
			dc = (dc + 8) >> 4
		case n.availLeft:
			for i := 0; i < 16; i++ {
				dc += n.left[i]
			}
			dc = (dc + 8) >> 4
		default:
			dc = 128
		}
		for i := range pred {
			pred[i] = int32(dc)
		}

	case intra16x16Plane:
		if !n.availLeft || !n.availAbove || !n.availAboveLeft {
			return InvalidPredictionModeError{Mode: mode}
		}
		top := func(i int) int {
			if i < 0 {
				return n.aboveLeft
			}
			return n.above[i]
		}
		side := func(i int) int {
			if i < 0 {
				return n.aboveLeft
			}
			return n.left[i]
		}
		var h, v int
		for i := 0; i < 8; i++ {
			h += (i + 1) * (top(8+i) - top(6-i))
			v += (i + 1) * (side(8+i) - side(6-i))
		}
		a := 16 * (n.left[15] + n.above[15])
		b := (5*h + 32) >> 6
		c := (5*v + 32) >> 6
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				pred[y*16+x] = int32(clip1((a + b*(x-7) + c*(y-7) + 16) >> 5))
			}
		}

	default:
		return InvalidPredictionModeError{Mode: mode}
	}
	return nil
}

// predIntraChroma computes the intra chroma prediction of the given mode for
// one 8x8 chroma plane into pred, in raster order, following section 8.3.4.
func predIntraChroma(n *mbNeighbors, mode int, pred *[64]int32) error {
	switch mode {
	case intraChromaDC:
		// Each 4x4 quadrant takes its DC from the neighbours adjacent to
		// it, per the block ordering rules of section 8.3.4.1.
		for _, q := range [4][2]int{{0, 0}, {4, 0}, {0, 4}, {4, 4}} {
			xO, yO := q[0], q[1]

			sum := func(s []int, o int) int {
				return s[o] + s[o+1] + s[o+2] + s[o+3]
			}
			var dc int
			switch {
			case xO == yO && n.availLeft && n.availAbove:
				dc = (sum(n.above, xO) + sum(n.left, yO) + 4) >> 3
			case xO > yO && n.availAbove: // Top right prefers above.
				dc = (sum(n.above, xO) + 2) >> 2
			case xO < yO && n.availLeft: // Bottom left prefers left.
				dc = (sum(n.left, yO) + 2) >> 2
			case n.availLeft:
				dc = (sum(n.left, yO) + 2) >> 2
			case n.availAbove:
				dc = (sum(n.above, xO) + 2) >> 2
			default:
				dc = 128
			}
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					pred[(yO+y)*8+xO+x] = int32(dc)
				}
			}
		}

	case intraChromaHorizontal:
		if !n.availLeft {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				pred[y*8+x] = int32(n.left[y])
			}
		}

	case intraChromaVertical:
		if !n.availAbove {
			return InvalidPredictionModeError{Mode: mode}
		}
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				pred[y*8+x] = int32(n.above[x])
			}
		}

	case intraChromaPlane:
		if !n.availLeft || !n.availAbove || !n.availAboveLeft {
			return InvalidPredictionModeError{Mode: mode}
		}
		top := func(i int) int {
			if i < 0 {
				return n.aboveLeft
			}
			return n.above[i]
		}
		side := func(i int) int {
			if i < 0 {
				return n.aboveLeft
			}
			return n.left[i]
		}
		var h, v int
		for i := 0; i < 4; i++ {
			h += (i + 1) * (top(4+i) - top(2-i))
			v += (i + 1) * (side(4+i) - side(2-i))
		}
		a := 16 * (n.left[7] + n.above[7])
		b := (34*h + 32) >> 6
		c := (34*v + 32) >> 6
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				pred[y*8+x] = int32(clip1((a + b*(x-3) + c*(y-3) + 16) >> 5))
			}
		}

	default:
		return InvalidPredictionModeError{Mode: mode}
	}
	return nil
}

// sixTap applies the 6 tap filter ( 1, -5, 20, 20, -5, 1 ) of eq 8-84.
func sixTap(a, b, c, d, e, f int) int {
	return a - 5*b + 20*c + 20*d - 5*e + f
}

// tapH returns the unnormalised horizontal half sample value centred between
// (x, y) and (x+1, y) of the reference luma plane.
func tapH(ref *Frame, x, y int) int {
	return sixTap(
		ref.atClamped(planeY, x-2, y),
		ref.atClamped(planeY, x-1, y),
		ref.atClamped(planeY, x, y),
		ref.atClamped(planeY, x+1, y),
		ref.atClamped(planeY, x+2, y),
		ref.atClamped(planeY, x+3, y),
	)
}

// tapV returns the unnormalised vertical half sample value centred between
// (x, y) and (x, y+1) of the reference luma plane.
func tapV(ref *Frame, x, y int) int {
	return sixTap(
		ref.atClamped(planeY, x, y-2),
		ref.atClamped(planeY, x, y-1),
		ref.atClamped(planeY, x, y),
		ref.atClamped(planeY, x, y+1),
		ref.atClamped(planeY, x, y+2),
		ref.atClamped(planeY, x, y+3),
	)
}

// lumaInterp returns the predicted luma sample at integer position
// (xInt, yInt) with fractional offsets (xFrac, yFrac) in quarter sample
// units, following the interpolation process of section 8.4.2.2.1. Samples
// outside the reference frame are edge extended.
func lumaInterp(ref *Frame, xInt, yInt, xFrac, yFrac int) int {
	if xFrac == 0 && yFrac == 0 {
		return ref.atClamped(planeY, xInt, yInt)
	}

	// Normalised half sample values at the positions that surround the
	// fractional grid, computed on demand.
	b := func() int { return clip1half(tapH(ref, xInt, yInt)) }
	s := func() int { return clip1half(tapH(ref, xInt, yInt+1)) }
	h := func() int { return clip1half(tapV(ref, xInt, yInt)) }
	m := func() int { return clip1half(tapV(ref, xInt+1, yInt)) }
	j := func() int {
		raw := sixTap(
			tapV(ref, xInt-2, yInt),
			tapV(ref, xInt-1, yInt),
			tapV(ref, xInt, yInt),
			tapV(ref, xInt+1, yInt),
			tapV(ref, xInt+2, yInt),
			tapV(ref, xInt+3, yInt),
		)
		return int(clip1((raw + 512) >> 10))
	}
	avg := func(a, b int) int { return (a + b + 1) >> 1 }

	switch yFrac*4 + xFrac {
	case 1: // a
		return avg(ref.atClamped(planeY, xInt, yInt), b())
	case 2: // b
		return b()
	case 3: // c
		return avg(ref.atClamped(planeY, xInt+1, yInt), b())
	case 4: // d
		return avg(ref.atClamped(planeY, xInt, yInt), h())
	case 5: // e
		return avg(b(), h())
	case 6: // f
		return avg(b(), j())
	case 7: // g
		return avg(b(), m())
	case 8: // h
		return h()
	case 9: // i
		return avg(h(), j())
	case 10: // j
		return j()
	case 11: // k
		return avg(j(), m())
	case 12: // n
		return avg(ref.atClamped(planeY, xInt, yInt+1), h())
	case 13: // p
		return avg(h(), s())
	case 14: // q
		return avg(j(), s())
	default: // r
		return avg(m(), s())
	}
}

// clip1half normalises and clips an unnormalised half sample value, eq 8-86.
func clip1half(raw int) int {
	return int(clip1((raw + 16) >> 5))
}

// interPredLuma computes the 16x16 luma inter prediction for the macroblock
// at (x0, y0) with motion vector mv in quarter sample units, into pred in
// raster order.
func interPredLuma(ref *Frame, x0, y0 int, mv [2]int, pred *[256]int32) {
	xI := x0 + (mv[0] >> 2)
	yI := y0 + (mv[1] >> 2)
	xF := mv[0] & 3
	yF := mv[1] & 3
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			pred[y*16+x] = int32(lumaInterp(ref, xI+x, yI+y, xF, yF))
		}
	}
}

// interPredChroma computes the 8x8 chroma inter prediction for plane p of
// the macroblock at chroma position (x0, y0) with luma motion vector mv,
// into pred in raster order. At 4:2:0 the luma vector addresses chroma in
// eighth sample units, interpolated bilinearly per eq 8-266.
func interPredChroma(ref *Frame, p plane, x0, y0 int, mv [2]int, pred *[64]int32) {
	xI := x0 + (mv[0] >> 3)
	yI := y0 + (mv[1] >> 3)
	xF := mv[0] & 7
	yF := mv[1] & 7
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			a := ref.atClamped(p, xI+x, yI+y)
			b := ref.atClamped(p, xI+x+1, yI+y)
			c := ref.atClamped(p, xI+x, yI+y+1)
			d := ref.atClamped(p, xI+x+1, yI+y+1)
			pred[y*8+x] = int32(((8-xF)*(8-yF)*a + xF*(8-yF)*b +
				(8-xF)*yF*c + xF*yF*d + 32) >> 6)
		}
	}
}
