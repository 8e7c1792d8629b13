/*
DESCRIPTION
  frame.go provides the decoded frame representation and the frame buffer
  through which reconstruction, reference and output frames circulate.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h264dec

// plane identifies a sample plane of a frame.
type plane int

const (
	planeY plane = iota
	planeCb
	planeCr
)

// Frame holds one decoded picture in planar 4:2:0 form. The planes are
// allocated at the coded, macroblock aligned size; Width and Height give the
// display region after frame cropping.
type Frame struct {
	Width, Height           int
	CodedWidth, CodedHeight int

	// CropX and CropY locate the display region within the coded planes.
	CropX, CropY int

	Y, Cb, Cr []byte

	// FrameNum is the frame_num the picture was coded with, and POC its
	// picture order count, by which output frames are ordered.
	FrameNum uint32
	POC      int32
}

// newFrame returns a Frame dimensioned for the given SPS, with all planes
// zeroed.
func newFrame(sps *SPS) *Frame {
	cw := sps.PicWidthInMbs() * 16
	ch := sps.PicHeightInMbs() * 16
	f := &Frame{
		Width:       sps.Width(),
		Height:      sps.Height(),
		CodedWidth:  cw,
		CodedHeight: ch,
		Y:           make([]byte, cw*ch),
		Cb:          make([]byte, cw*ch/4),
		Cr:          make([]byte, cw*ch/4),
	}
	if sps.FrameCroppingFlag {
		ux, uy := sps.cropUnits()
		f.CropX = ux * int(sps.FrameCropLeftOffset)
		f.CropY = uy * int(sps.FrameCropTopOffset)
	}
	return f
}

// sameDimensions reports whether f could hold a picture for the given SPS
// without reallocation.
func (f *Frame) sameDimensions(sps *SPS) bool {
	return f.CodedWidth == sps.PicWidthInMbs()*16 && f.CodedHeight == sps.PicHeightInMbs()*16
}

// data returns the samples of plane p.
func (f *Frame) data(p plane) []byte {
	switch p {
	case planeY:
		return f.Y
	case planeCb:
		return f.Cb
	default:
		return f.Cr
	}
}

// stride returns the row stride of plane p in samples.
func (f *Frame) stride(p plane) int {
	if p == planeY {
		return f.CodedWidth
	}
	return f.CodedWidth / 2
}

// bounds returns the coded sample dimensions of plane p.
func (f *Frame) bounds(p plane) (w, h int) {
	if p == planeY {
		return f.CodedWidth, f.CodedHeight
	}
	return f.CodedWidth / 2, f.CodedHeight / 2
}

// at returns the sample of plane p at (x, y), which must be in bounds.
func (f *Frame) at(p plane, x, y int) int {
	return int(f.data(p)[y*f.stride(p)+x])
}

// atClamped returns the sample of plane p at (x, y) with the coordinates
// clamped to the plane bounds, the edge extension rule of eq 8-246.
func (f *Frame) atClamped(p plane, x, y int) int {
	w, h := f.bounds(p)
	x = clip3(0, w-1, x)
	y = clip3(0, h-1, y)
	return int(f.data(p)[y*f.stride(p)+x])
}

// set writes a sample to plane p at (x, y), which must be in bounds.
func (f *Frame) set(p plane, x, y int, v byte) {
	f.data(p)[y*f.stride(p)+x] = v
}

// put4x4 writes a 4x4 block of reconstructed values, in raster order, to
// plane p with its top left corner at (x, y), clipping each value to the
// sample range.
func (f *Frame) put4x4(p plane, x, y int, v *[16]int32) {
	d := f.data(p)
	stride := f.stride(p)
	for row := 0; row < 4; row++ {
		o := (y+row)*stride + x
		d[o] = clip1(int(v[row*4]))
		d[o+1] = clip1(int(v[row*4+1]))
		d[o+2] = clip1(int(v[row*4+2]))
		d[o+3] = clip1(int(v[row*4+3]))
	}
}

// I420 returns the display region of the frame as packed planar YUV 4:2:0,
// the luma plane followed by Cb then Cr.
func (f *Frame) I420() []byte {
	w, h := f.Width, f.Height
	cw, ch := w/2, h/2
	out := make([]byte, w*h+2*cw*ch)

	for y := 0; y < h; y++ {
		copy(out[y*w:], f.Y[(f.CropY+y)*f.CodedWidth+f.CropX:][:w])
	}
	co := w * h
	cstride := f.CodedWidth / 2
	for y := 0; y < ch; y++ {
		src := (f.CropY/2+y)*cstride + f.CropX/2
		copy(out[co+y*cw:], f.Cb[src:][:cw])
		copy(out[co+cw*ch+y*cw:], f.Cr[src:][:cw])
	}
	return out
}

// FrameBuffer circulates frames between reconstruction, the single reference
// slot used for inter prediction, and a small free pool. A frame is only
// visible as a reference or output once every macroblock of it has been
// decoded.
type FrameBuffer struct {
	cur  *Frame
	ref  *Frame
	free []*Frame
}

// Begin readies a frame for reconstruction, reusing a pooled frame of the
// right dimensions where possible.
func (b *FrameBuffer) Begin(sps *SPS, frameNum uint32, poc int32) *Frame {
	var f *Frame
	if n := len(b.free); n > 0 && b.free[n-1].sameDimensions(sps) {
		f = b.free[n-1]
		b.free = b.free[:n-1]
	} else {
		b.free = nil
		f = newFrame(sps)
	}
	f.FrameNum = frameNum
	f.POC = poc
	b.cur = f
	return f
}

// Current returns the frame under reconstruction, or nil.
func (b *FrameBuffer) Current() *Frame {
	return b.cur
}

// Reference returns the reference frame for inter prediction, or nil when no
// frame has been committed yet.
func (b *FrameBuffer) Reference() *Frame {
	return b.ref
}

// Finalize takes the completed frame out of reconstruction and returns it.
func (b *FrameBuffer) Finalize() *Frame {
	f := b.cur
	b.cur = nil
	return f
}

// CommitReference installs f as the reference frame. The displaced frame is
// left to the caller, who received it as output when it was finalized.
func (b *FrameBuffer) CommitReference(f *Frame) {
	b.ref = f
}

// ClearReference drops the reference frame. An IDR picture begins a new
// coded video sequence which cannot predict from earlier frames.
func (b *FrameBuffer) ClearReference() {
	b.ref = nil
}

// Discard abandons the frame under reconstruction, returning it to the pool.
// Partially decoded frames are never output.
func (b *FrameBuffer) Discard() {
	if b.cur != nil {
		b.free = append(b.free, b.cur)
		b.cur = nil
	}
}
