/*
NAME
  extract_test.go

DESCRIPTION
  extract_test.go provides testing for the RTP H.264 access unit Extractor.

AUTHOR
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package rtp

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/pion/rtp"

	"github.com/ausocean/h264dec"
	"github.com/ausocean/utils/logging"
)

// A 32x32 baseline SPS, its CAVLC PPS, and an IDR picture of four DC
// predicted Intra_16x16 macroblocks that reconstructs to uniform grey.
var (
	testSPS = []byte{0x67, 0x42, 0x80, 0x0a, 0xda, 0x25, 0x90}
	testPPS = []byte{0x68, 0xce, 0x38, 0x80}
	testIDR = []byte{0x65, 0x88, 0x84, 0x93, 0x93, 0x93, 0x93, 0xc0}
)

// pkt returns an RTP packet holding the given payload.
func pkt(seq uint16, marker bool, payload []byte) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      3000,
			SSRC:           0x2c17,
		},
		Payload: payload,
	}
}

// wantStream returns the byte stream an access unit of the given NAL units
// extracts to.
func wantStream(units ...[]byte) []byte {
	var b []byte
	b = append(b, aud...)
	for _, u := range units {
		b = append(b, startCode...)
		b = append(b, u...)
	}
	return b
}

// checkGray decodes an extracted stream and checks it produces the single
// grey frame coded by testIDR.
func checkGray(t *testing.T, stream []byte) {
	t.Helper()
	d, err := h264dec.NewDecoder((*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	frames, err := d.Decode(stream)
	if err != nil {
		t.Fatalf("did not expect error decoding extracted stream: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got: %d", len(frames))
	}
	for i, v := range frames[0].I420() {
		if v != 128 {
			t.Fatalf("unexpected sample %d at index: %d", v, i)
		}
	}
}

func TestExtractSingleUnits(t *testing.T) {
	var out bytes.Buffer
	e := NewExtractor(&out)

	for i, p := range []*rtp.Packet{
		pkt(1, false, testSPS),
		pkt(2, false, testPPS),
		pkt(3, true, testIDR),
	} {
		if err := e.Write(p); err != nil {
			t.Fatalf("did not expect error: %v for packet: %d", err, i)
		}
	}

	want := wantStream(testSPS, testPPS, testIDR)
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("did not get expected result\nGot: %v\nWant: %v\n", out.Bytes(), want)
	}
	checkGray(t, out.Bytes())
}

func TestExtractSTAPA(t *testing.T) {
	// The parameter sets aggregated into one packet, then the IDR slice.
	stap := []byte{0x78}
	for _, u := range [][]byte{testSPS, testPPS} {
		stap = append(stap, byte(len(u)>>8), byte(len(u)))
		stap = append(stap, u...)
	}

	var out bytes.Buffer
	e := NewExtractor(&out)
	if err := e.Write(pkt(1, false, stap)); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if err := e.Write(pkt(2, true, testIDR)); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	want := wantStream(testSPS, testPPS, testIDR)
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("did not get expected result\nGot: %v\nWant: %v\n", out.Bytes(), want)
	}
	checkGray(t, out.Bytes())
}

func TestExtractFUA(t *testing.T) {
	// The IDR unit split over three fragments. The indicator carries the
	// unit's NRI with type 28, and the FU header its type with the start
	// and end bits.
	frags := []*rtp.Packet{
		pkt(3, false, []byte{0x7c, 0x85, 0x88, 0x84, 0x93}),
		pkt(4, false, []byte{0x7c, 0x05, 0x93, 0x93}),
		pkt(5, true, []byte{0x7c, 0x45, 0x93, 0xc0}),
	}

	var out bytes.Buffer
	e := NewExtractor(&out)
	if err := e.Write(pkt(1, false, testSPS)); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if err := e.Write(pkt(2, false, testPPS)); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	for i, p := range frags {
		if err := e.Write(p); err != nil {
			t.Fatalf("did not expect error: %v for fragment: %d", err, i)
		}
	}

	want := wantStream(testSPS, testPPS, testIDR)
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("did not get expected result\nGot: %v\nWant: %v\n", out.Bytes(), want)
	}
	checkGray(t, out.Bytes())
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		payload []byte
		err     error
	}{
		{payload: nil, err: errNoPayload},
		{payload: []byte{0x79, 0x00}, err: UnsupportedTypeError{Type: 25}},
		{payload: []byte{0x7a, 0x00}, err: UnsupportedTypeError{Type: 26}},
		{payload: []byte{0x7b, 0x00}, err: UnsupportedTypeError{Type: 27}},
		{payload: []byte{0x7d, 0x00}, err: UnsupportedTypeError{Type: 29}},
		{payload: []byte{0x7c}, err: errFUATooShort},
		{payload: []byte{0x7c, 0xc5, 0x00}, err: errBadFragment},
		{payload: []byte{0x78, 0x00}, err: errSTAPATooShort},
	}

	for i, test := range tests {
		e := NewExtractor(&bytes.Buffer{})
		err := e.Write(pkt(1, false, test.payload))
		if !errors.Is(err, test.err) {
			t.Errorf("did not get expected error for test: %d\nGot: %v\nWant: %v\n", i, err, test.err)
		}
	}

	// A STAP-A unit size running past the end of the payload.
	e := NewExtractor(&bytes.Buffer{})
	if err := e.Write(pkt(1, false, []byte{0x78, 0x00, 0x09, 0x67})); err == nil {
		t.Error("expected error from an overrunning STAP-A unit size")
	}
}

func TestExtractFragmentLoss(t *testing.T) {
	// A fragmented unit interrupted by a single unit is dropped, keeping
	// the rest of the access unit.
	var out bytes.Buffer
	e := NewExtractor(&out)
	if err := e.Write(pkt(1, false, []byte{0x7c, 0x85, 0x88, 0x84})); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if err := e.Write(pkt(2, true, testSPS)); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if want := wantStream(testSPS); !bytes.Equal(out.Bytes(), want) {
		t.Errorf("did not get expected result\nGot: %v\nWant: %v\n", out.Bytes(), want)
	}

	// A continuation fragment whose start was lost contributes nothing,
	// and an access unit holding nothing is not emitted.
	out.Reset()
	e = NewExtractor(&out)
	if err := e.Write(pkt(3, true, []byte{0x7c, 0x45, 0x93, 0xc0})); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("did not expect output, got: %v", out.Bytes())
	}

	// A fragmented unit missing its end when the marker arrives is
	// dropped.
	out.Reset()
	e = NewExtractor(&out)
	if err := e.Write(pkt(4, false, testSPS)); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if err := e.Write(pkt(5, true, []byte{0x7c, 0x85, 0x88, 0x84})); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if want := wantStream(testSPS); !bytes.Equal(out.Bytes(), want) {
		t.Errorf("did not get expected result\nGot: %v\nWant: %v\n", out.Bytes(), want)
	}
}

// packetSource provides one marshalled RTP packet per read.
type packetSource struct {
	pkts [][]byte
}

func (s *packetSource) Read(p []byte) (int, error) {
	if len(s.pkts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.pkts[0])
	s.pkts = s.pkts[1:]
	return n, nil
}

func TestExtract(t *testing.T) {
	// The marker is left off the final packet; the access unit is flushed
	// at the end of the stream instead.
	var src packetSource
	for i, u := range [][]byte{testSPS, testPPS, testIDR} {
		b, err := pkt(uint16(i+1), false, u).Marshal()
		if err != nil {
			t.Fatalf("did not expect error: %v marshalling packet: %d", err, i)
		}
		src.pkts = append(src.pkts, b)
	}

	var out bytes.Buffer
	e := NewExtractor(&out)
	if err := e.Extract(&src); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	want := wantStream(testSPS, testPPS, testIDR)
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("did not get expected result\nGot: %v\nWant: %v\n", out.Bytes(), want)
	}
	checkGray(t, out.Bytes())
}
