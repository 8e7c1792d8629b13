/*
DESCRIPTION
  psnr.go provides luma PSNR scoring of decoded frames against a reference
  I420 sequence.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ausocean/h264dec"
)

// Score given to a frame identical to its reference, where the true ratio
// is unbounded.
const maxPSNR = 100 // dB

// psnrReport scores the luma plane of each decoded frame against the
// corresponding frame of a reference I420 sequence.
type psnrReport struct {
	ref    []byte
	off    int
	scores []float64
}

// newPSNRReport returns a psnrReport scoring against the given reference
// sequence.
func newPSNRReport(ref []byte) *psnrReport {
	return &psnrReport{ref: ref}
}

// add scores one decoded frame, given along with its packed I420 form,
// against the next frame of the reference.
func (r *psnrReport) add(f *h264dec.Frame, buf []byte) error {
	if r.off+len(buf) > len(r.ref) {
		return fmt.Errorf("reference sequence exhausted at frame %d", len(r.scores))
	}
	lumaSize := f.Width * f.Height
	got := buf[:lumaSize]
	want := r.ref[r.off : r.off+lumaSize]
	r.off += len(buf)

	var sum float64
	for i := range got {
		d := float64(got[i]) - float64(want[i])
		sum += d * d
	}
	mse := sum / float64(lumaSize)
	if mse == 0 {
		r.scores = append(r.scores, maxPSNR)
		return nil
	}
	r.scores = append(r.scores, 10*math.Log10(255*255/mse))
	return nil
}

// mean returns the mean score over the frames seen so far.
func (r *psnrReport) mean() float64 {
	if len(r.scores) == 0 {
		return math.NaN()
	}
	return stat.Mean(r.scores, nil)
}
