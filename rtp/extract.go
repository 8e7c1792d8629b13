/*
NAME
  extract.go

DESCRIPTION
  extract.go provides an Extractor to get H.264 access units out of an RTP
  stream packetized as described by RFC 6184.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package rtp provides extraction of H.264 access units from RTP streams,
// producing the byte stream format consumed by the h264dec package.
package rtp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pion/rtp"
)

// NAL types (from https://tools.ietf.org/html/rfc6184#page-13)
const (
	// Single nal units bounds.
	typeSingleNALULowBound  = 1
	typeSingleNALUHighBound = 23

	// Single-time aggregation packets.
	typeSTAPA = 24
	typeSTAPB = 25

	// Multi-time aggregation packets.
	typeMTAP16 = 26
	typeMTAP24 = 27

	// Fragmentation packets.
	typeFUA = 28
	typeFUB = 29
)

// Min NAL lengths.
const (
	minSTAPALen = 4
	minFUALen   = 2
)

// Buffer sizes.
const (
	maxAUSize  = 100000 // Max access unit size in bytes.
	maxRTPSize = 1500   // Max ethernet transmission unit in bytes.
)

// Bytes for an access unit delimiter.
var aud = []byte{0x00, 0x00, 0x01, 0x09, 0xf0}

// The start code written ahead of each extracted NAL unit.
var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// Errors returned while extracting.
var (
	errNoPayload     = errors.New("RTP packet has no payload")
	errSTAPATooShort = errors.New("STAP-A payload too short")
	errFUATooShort   = errors.New("FU-A payload too short")
	errBadFragment   = errors.New("FU-A has both start and end bits set")
)

// UnsupportedTypeError indicates an RTP payload carried a packetization
// type outside the single NAL unit, STAP-A and FU-A set handled here.
type UnsupportedTypeError struct {
	Type byte
}

func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported RTP packetization type: %d", e.Type)
}

// Extractor depacketizes an RTP H.264 stream into access units. NAL units
// are buffered behind an access unit delimiter until a packet with the
// marker bit closes the unit, which is then written to the destination in
// byte stream format.
type Extractor struct {
	buf      *bytes.Buffer // Holds the current access unit.
	frag     bool          // Indicates a fragmented NAL unit is in progress.
	fragMark int           // Buffer length at the start of the fragmented unit.
	dst      io.Writer     // The destination extracted access units are written to.
}

// NewExtractor returns a new Extractor writing access units to dst.
func NewExtractor(dst io.Writer) *Extractor {
	e := &Extractor{
		buf: bytes.NewBuffer(make([]byte, 0, maxAUSize)),
		dst: dst,
	}
	e.buf.Write(aud)
	return e
}

// Extract reads RTP packets from src until EOF, writing each completed
// access unit to the destination. This function expects that each read from
// src will provide a single RTP packet.
func (e *Extractor) Extract(src io.Reader) error {
	buf := make([]byte, maxRTPSize)
	for {
		n, err := src.Read(buf)
		switch err {
		case nil: // Do nothing.
		case io.EOF:
			return e.flush()
		default:
			return fmt.Errorf("source read error: %w", err)
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			return fmt.Errorf("could not unmarshal RTP packet: %w", err)
		}
		if err := e.Write(&pkt); err != nil {
			return err
		}
	}
}

// Write depacketizes a single RTP packet. When the packet carries the
// marker bit the access unit it completes is written to the destination.
func (e *Extractor) Write(pkt *rtp.Packet) error {
	d := pkt.Payload
	if len(d) == 0 {
		return errNoPayload
	}
	nalType := d[0] & 0x1f

	// A fragmented unit interrupted by any other payload cannot be
	// completed; drop the partial unit and carry on with the access unit.
	if e.frag && nalType != typeFUA {
		e.buf.Truncate(e.fragMark)
		e.frag = false
	}

	switch {
	case typeSingleNALULowBound <= nalType && nalType <= typeSingleNALUHighBound:
		e.writeUnit(d)
	case nalType == typeSTAPA:
		if err := e.handleSTAPA(d); err != nil {
			return err
		}
	case nalType == typeFUA:
		if err := e.handleFUA(d); err != nil {
			return err
		}
	default:
		return UnsupportedTypeError{Type: nalType}
	}

	if pkt.Marker {
		return e.flush()
	}
	return nil
}

// handleSTAPA appends the NAL units of an aggregation packet to the access
// unit.
func (e *Extractor) handleSTAPA(d []byte) error {
	if len(d) < minSTAPALen {
		return errSTAPATooShort
	}

	for i := 1; i < len(d); {
		if len(d)-i < 2 {
			return errSTAPATooShort
		}
		size := int(binary.BigEndian.Uint16(d[i:]))

		// Skip over NAL unit size.
		const sizeOfFieldLen = 2
		i += sizeOfFieldLen

		if size == 0 || size > len(d)-i {
			return fmt.Errorf("STAP-A unit size %d overruns payload", size)
		}
		e.writeUnit(d[i : i+size])
		i += size
	}
	return nil
}

// handleFUA appends a fragment of a fragmented NAL unit to the access unit,
// reconstructing the unit's header from the FU indicator and FU header of
// the starting fragment.
func (e *Extractor) handleFUA(d []byte) error {
	if len(d) < minFUALen {
		return errFUATooShort
	}
	start := d[1]&0x80 != 0
	end := d[1]&0x40 != 0
	if start && end {
		return errBadFragment
	}

	if start {
		if e.frag {
			e.buf.Truncate(e.fragMark)
		}
		e.fragMark = e.buf.Len()
		e.frag = true
		e.buf.Write(startCode)
		e.buf.WriteByte(d[0]&0xe0 | d[1]&0x1f)
		e.buf.Write(d[2:])
		return nil
	}

	if !e.frag {
		// A continuation whose starting fragment was lost; there is
		// nothing to append it to.
		return nil
	}
	e.buf.Write(d[2:])
	if end {
		e.frag = false
	}
	return nil
}

// writeUnit appends a NAL unit to the access unit in byte stream format.
func (e *Extractor) writeUnit(d []byte) {
	e.buf.Write(startCode)
	e.buf.Write(d)
}

// flush writes the buffered access unit to the destination and begins the
// next one. An access unit holding nothing beyond its delimiter is kept.
func (e *Extractor) flush() error {
	if e.frag {
		e.buf.Truncate(e.fragMark)
		e.frag = false
	}
	if e.buf.Len() <= len(aud) {
		return nil
	}
	if _, err := e.buf.WriteTo(e.dst); err != nil {
		return fmt.Errorf("could not write access unit: %w", err)
	}
	e.buf.Reset()
	e.buf.Write(aud)
	return nil
}
