/*
DESCRIPTION
  decoder.go provides the top level Decoder, which feeds the NAL units of an
  H.264 byte stream through parameter set ingestion and slice decoding to
  produce raster frames.

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
	"fmt"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// Errors returned by the Decoder.
var (
	errNoPicture    = errors.New("slice continuation without a picture in progress")
	errNilLogger    = errors.New("logger is nil")
	errNilFrameFunc = errors.New("frame handler is nil")
)

// Decoder decodes a baseline profile H.264 elementary stream into I420
// frames. Parameter sets, decoded reference state and picture order state
// persist across calls, so one Decoder handles one stream. Methods must not
// be called concurrently.
type Decoder struct {
	log logging.Logger

	store *ParameterSetStore
	fb    FrameBuffer
	poc   pocCounter

	state State

	// Per picture context, valid while a picture is under
	// reconstruction.
	arena  []mbState
	nextMB int
	total  int
	picRef bool

	sliceID int

	onFrame func(*Frame)
}

// NewDecoder returns a Decoder ready for the start of a stream.
func NewDecoder(log logging.Logger, options ...func(*Decoder) error) (*Decoder, error) {
	if log == nil {
		return nil, errNilLogger
	}
	d := &Decoder{
		log:   log,
		store: NewParameterSetStore(),
		state: StateAwaitingParams,
	}
	for _, option := range options {
		err := option(d)
		if err != nil {
			return nil, fmt.Errorf("option failed with error: %w", err)
		}
	}
	return d, nil
}

// FrameHandler returns an option that registers h to be called with each
// frame as it completes, before Decode returns it.
func FrameHandler(h func(*Frame)) func(*Decoder) error {
	return func(d *Decoder) error {
		if h == nil {
			return errNilFrameFunc
		}
		d.onFrame = h
		return nil
	}
}

// State returns the stage reached by the most recent slice given to the
// decoder.
func (d *Decoder) State() State {
	return d.state
}

// ParameterSets returns the decoder's parameter set store.
func (d *Decoder) ParameterSets() *ParameterSetStore {
	return d.store
}

// Decode decodes an annex B byte stream, returning the frames it completed
// in decoding order. Frames completed before an error are returned with it.
func (d *Decoder) Decode(b []byte) ([]*Frame, error) {
	var frames []*Frame
	sc := NewNALUScanner(b)
	for {
		payload, ok := sc.Next()
		if !ok {
			break
		}
		f, err := d.DecodeNALU(payload)
		if err != nil {
			return frames, err
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
	return frames, nil
}

// ConfigureAVCC ingests the parameter sets of an
// AVCDecoderConfigurationRecord, readying the decoder for the length
// prefixed NAL units that accompany it.
func (d *Decoder) ConfigureAVCC(cfg *AVCConfig) error {
	for _, s := range cfg.SPS {
		if _, err := d.DecodeNALU(s); err != nil {
			return err
		}
	}
	for _, p := range cfg.PPS {
		if _, err := d.DecodeNALU(p); err != nil {
			return err
		}
	}
	return nil
}

// DecodeNALU decodes a single NAL unit, given without start code or length
// prefix. A non nil frame is returned when the unit completed one.
func (d *Decoder) DecodeNALU(b []byte) (*Frame, error) {
	nal, err := NewNALUnit(b)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse NAL unit")
	}

	switch nal.Type {
	case NALTypeSPS:
		sps, err := d.store.IngestSPS(nal.RBSP)
		if err != nil {
			return nil, errors.Wrap(err, "could not ingest SPS")
		}
		d.log.Debug("ingested SPS", "id", sps.SPSID, "width", sps.Width(), "height", sps.Height())
		return nil, nil

	case NALTypePPS:
		pps, err := d.store.IngestPPS(nal.RBSP)
		if err != nil {
			return nil, errors.Wrap(err, "could not ingest PPS")
		}
		d.log.Debug("ingested PPS", "id", pps.ID, "sps", pps.SPSID)
		return nil, nil

	case NALTypeIDR, NALTypeNonIDR:
		return d.decodeSlice(nal)

	case NALTypeSEI, NALTypeAccessUnitDelimiter, NALTypeEndOfSequence,
		NALTypeEndOfStream, NALTypeFiller:
		d.log.Debug("skipping NAL unit", "type", nal.Type)
		return nil, nil
	}

	d.log.Debug("skipping unhandled NAL unit", "type", nal.Type)
	return nil, nil
}

// decodeSlice handles a coded slice NAL unit: picture management around the
// slice, then the slice decode itself.
func (d *Decoder) decodeSlice(nal *NALUnit) (*Frame, error) {
	sd := NewSliceDecoder(nal)
	err := sd.ParseHeader(d.store)
	d.state = sd.State()
	if err != nil {
		return nil, err
	}
	hdr := sd.Header()

	if hdr.FirstMBInSlice == 0 {
		if d.fb.Current() != nil {
			d.log.Warning("discarding incomplete picture",
				"frame_num", d.fb.Current().FrameNum, "decoded", d.nextMB, "of", d.total)
			d.fb.Discard()
		}
		if nal.Type == NALTypeIDR {
			d.fb.ClearReference()
		}

		poc := d.poc.picOrderCnt(sd.sps, hdr, nal)
		d.fb.Begin(sd.sps, hdr.FrameNum, poc)
		d.total = sd.sps.PicSizeInMbs()
		if cap(d.arena) >= d.total {
			d.arena = d.arena[:d.total]
			for i := range d.arena {
				d.arena[i] = mbState{}
			}
		} else {
			d.arena = make([]mbState, d.total)
		}
		d.nextMB = 0
		d.picRef = nal.RefIdc != 0
	} else {
		if d.fb.Current() == nil {
			return nil, errNoPicture
		}
		if int(hdr.FirstMBInSlice) != d.nextMB {
			return nil, fmt.Errorf("first_mb_in_slice %d does not continue picture at macroblock %d", hdr.FirstMBInSlice, d.nextMB)
		}
	}

	d.sliceID++
	next, err := sd.decode(d.fb.Current(), d.fb.Reference(), d.arena, d.sliceID)
	d.state = sd.State()
	d.nextMB = next
	if err != nil {
		// The picture is left incomplete; it is discarded when the
		// next one starts.
		return nil, err
	}
	if next < d.total {
		return nil, nil
	}

	frame := d.fb.Finalize()
	if d.picRef {
		d.fb.CommitReference(frame)
	}
	d.log.Debug("frame complete", "frame_num", frame.FrameNum, "poc", frame.POC)
	if d.onFrame != nil {
		d.onFrame(frame)
	}
	return frame, nil
}
