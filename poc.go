package h264dec

// pocCounter carries the decoding order state needed to derive picture
// order counts for successive pictures, section 8.2.1. The zero value is
// ready for the start of a coded video sequence.
type pocCounter struct {
	prevMsb, prevLsb   int32
	prevFrameNumOffset uint32
	prevFrameNum       uint32
}

// picOrderCnt derives the picture order count of a frame coded picture from
// its slice header, updating the counter state for the pictures that
// follow.
func (c *pocCounter) picOrderCnt(sps *SPS, hdr *SliceHeader, nal *NALUnit) int32 {
	idr := nal.Type == NALTypeIDR
	ref := nal.RefIdc != 0

	switch sps.PicOrderCntType {
	case 0:
		// Section 8.2.1.1: extend pic_order_cnt_lsb with a most
		// significant part tracked across reference pictures.
		maxLsb := int32(sps.MaxPicOrderCntLsb())
		lsb := int32(hdr.PicOrderCntLSB)
		prevMsb, prevLsb := c.prevMsb, c.prevLsb
		if idr {
			prevMsb, prevLsb = 0, 0
		}
		msb := prevMsb
		switch {
		case lsb < prevLsb && prevLsb-lsb >= maxLsb/2:
			msb = prevMsb + maxLsb
		case lsb > prevLsb && lsb-prevLsb > maxLsb/2:
			msb = prevMsb - maxLsb
		}
		if ref {
			c.prevMsb, c.prevLsb = msb, lsb
		}
		return msb + lsb

	case 1:
		// Section 8.2.1.2: expected order counts from the reference
		// frame offset cycle.
		offset := c.frameNumOffset(sps, hdr, idr)
		n := int(sps.NumRefFramesInPicOrderCntCycle)
		abs := int(offset + hdr.FrameNum)
		if !ref && abs > 0 {
			abs--
		}

		var expected int32
		if n > 0 && abs > 0 {
			var perCycle int32
			for _, o := range sps.OffsetForRefFrame {
				perCycle += o
			}
			cycles := (abs - 1) / n
			inCycle := (abs - 1) % n
			expected = int32(cycles) * perCycle
			for i := 0; i <= inCycle; i++ {
				expected += sps.OffsetForRefFrame[i]
			}
		}
		if !ref {
			expected += sps.OffsetForNonRefPic
		}

		top := expected + hdr.DeltaPicOrderCnt[0]
		bottom := top + sps.OffsetForTopToBottomField + hdr.DeltaPicOrderCnt[1]
		if bottom < top {
			return bottom
		}
		return top
	}

	// pic_order_cnt_type 2, section 8.2.1.3: output order is decoding
	// order.
	offset := c.frameNumOffset(sps, hdr, idr)
	poc := 2 * int32(offset+hdr.FrameNum)
	if !ref {
		poc--
	}
	return poc
}

// frameNumOffset maintains the FrameNumOffset accumulation shared by order
// count types 1 and 2, eq 8-6 and 8-11.
func (c *pocCounter) frameNumOffset(sps *SPS, hdr *SliceHeader, idr bool) uint32 {
	var offset uint32
	switch {
	case idr:
		offset = 0
	case c.prevFrameNum > hdr.FrameNum:
		offset = c.prevFrameNumOffset + sps.MaxFrameNum()
	default:
		offset = c.prevFrameNumOffset
	}
	c.prevFrameNumOffset = offset
	c.prevFrameNum = hdr.FrameNum
	return offset
}
