/*
DESCRIPTION
  transform.go provides the inverse quantisation and inverse integer
  transform processes of section 8.5 of the specifications, for the flat
  weighting matrices of the baseline profile.

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

// zigzag4x4 maps a zig-zag scan position to its raster position within a 4x4
// block, from the frame coding column of Table 8-13.
var zigzag4x4 = [16]int{0, 1, 4, 8, 5, 2, 3, 6, 9, 12, 13, 10, 7, 11, 14, 15}

// levScale holds the normAdjust4x4 values of eq 8-252, indexed by qP % 6 and
// the frequency position class of the coefficient.
var levScale = [6][3]int32{
	{10, 16, 13},
	{11, 18, 14},
	{13, 20, 16},
	{14, 23, 18},
	{16, 25, 20},
	{18, 29, 23},
}

// normAdjustIdx returns the frequency position class of raster position pos
// within a 4x4 block, selecting a column of levScale per eq 8-252.
func normAdjustIdx(pos int) int {
	x, y := pos%4, pos/4
	switch {
	case x%2 == 0 && y%2 == 0:
		return 0
	case x%2 == 1 && y%2 == 1:
		return 1
	default:
		return 2
	}
}

// scanToRaster places the scan ordered coefficient levels of a residual
// block into raster order within a 4x4 block. start gives the zig-zag
// position of the first level, 1 for AC only blocks whose DC coefficient is
// carried separately.
func scanToRaster(scan []int32, start int) [16]int32 {
	var m [16]int32
	for i, v := range scan {
		m[zigzag4x4[i+start]] = v
	}
	return m
}

// dequant4x4 scales the 4x4 block of coefficient levels c, in raster order,
// by the quantisation parameter qp following section 8.5.12.1. With the flat
// baseline weighting matrix both branches of eq 8-253 and 8-254 reduce to a
// single shift.
func dequant4x4(c *[16]int32, qp int) {
	m, s := qp%6, uint(qp/6)
	for pos := range c {
		c[pos] = (c[pos] * levScale[m][normAdjustIdx(pos)]) << s
	}
}

// inverseTransform4x4 applies the inverse integer transform of section
// 8.5.12.2 to the 4x4 block of scaled coefficients d, in raster order,
// leaving the residual sample values. The final values include the
// (x + 32) >> 6 rounding of eq 8-322.
func inverseTransform4x4(d *[16]int32) {
	// Horizontal row transform, eq 8-312 to 8-319.
	for i := 0; i < 16; i += 4 {
		e0 := d[i] + d[i+2]
		e1 := d[i] - d[i+2]
		e2 := (d[i+1] >> 1) - d[i+3]
		e3 := d[i+1] + (d[i+3] >> 1)

		d[i] = e0 + e3
		d[i+1] = e1 + e2
		d[i+2] = e1 - e2
		d[i+3] = e0 - e3
	}

	// Vertical column transform, eq 8-320 to 8-327.
	for i := 0; i < 4; i++ {
		g0 := d[i] + d[i+8]
		g1 := d[i] - d[i+8]
		g2 := (d[i+4] >> 1) - d[i+12]
		g3 := d[i+4] + (d[i+12] >> 1)

		d[i] = (g0 + g3 + 32) >> 6
		d[i+4] = (g1 + g2 + 32) >> 6
		d[i+8] = (g1 - g2 + 32) >> 6
		d[i+12] = (g0 - g3 + 32) >> 6
	}
}

// transformLumaDC applies the inverse transform and scaling for Intra_16x16
// luma DC coefficients of section 8.5.10 to the 4x4 array c of DC levels, in
// raster order.
func transformLumaDC(c *[16]int32, qp int) {
	// Inverse Hadamard, eq 8-248, rows then columns.
	for i := 0; i < 16; i += 4 {
		s0 := c[i] + c[i+1]
		s1 := c[i] - c[i+1]
		s2 := c[i+2] + c[i+3]
		s3 := c[i+2] - c[i+3]

		c[i] = s0 + s2
		c[i+1] = s0 - s2
		c[i+2] = s1 - s3
		c[i+3] = s1 + s3
	}
	for i := 0; i < 4; i++ {
		s0 := c[i] + c[i+4]
		s1 := c[i] - c[i+4]
		s2 := c[i+8] + c[i+12]
		s3 := c[i+8] - c[i+12]

		c[i] = s0 + s2
		c[i+4] = s0 - s2
		c[i+8] = s1 - s3
		c[i+12] = s1 + s3
	}

	// Scaling, eq 8-249 and 8-250.
	ls := 16 * levScale[qp%6][0]
	if qp >= 36 {
		s := uint(qp/6 - 6)
		for i := range c {
			c[i] = (c[i] * ls) << s
		}
	} else {
		s := uint(6 - qp/6)
		r := int32(1) << uint(5-qp/6)
		for i := range c {
			c[i] = (c[i]*ls + r) >> s
		}
	}
}

// transformChromaDC applies the inverse transform and scaling for chroma DC
// coefficients of section 8.5.11 to the 2x2 array c of DC levels, in raster
// order, for 4:2:0 sampling.
func transformChromaDC(c *[4]int32, qp int) {
	// Inverse transform, eq 8-251.
	f0 := c[0] + c[1] + c[2] + c[3]
	f1 := c[0] - c[1] + c[2] - c[3]
	f2 := c[0] + c[1] - c[2] - c[3]
	f3 := c[0] - c[1] - c[2] + c[3]

	// Scaling, eq 8-255.
	ls := 16 * levScale[qp%6][0]
	s := uint(qp / 6)
	c[0] = ((f0 * ls) << s) >> 5
	c[1] = ((f1 * ls) << s) >> 5
	c[2] = ((f2 * ls) << s) >> 5
	c[3] = ((f3 * ls) << s) >> 5
}

// chromaQPTable holds the QPc mapping of Table 8-15 for qPI from 30 to 51.
// Below 30 the mapping is the identity.
var chromaQPTable = [22]int{
	29, 30, 31, 32, 32, 33, 34, 34, 35, 35, 36,
	36, 37, 37, 37, 38, 38, 38, 39, 39, 39, 39,
}

// chromaQP derives the chroma quantisation parameter from the luma
// quantisation parameter and the picture's chroma_qp_index_offset, per
// section 8.5.8 and Table 8-15.
func chromaQP(qpy, offset int) int {
	qpi := clip3(0, 51, qpy+offset)
	if qpi < 30 {
		return qpi
	}
	return chromaQPTable[qpi-30]
}
