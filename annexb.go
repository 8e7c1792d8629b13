/*
DESCRIPTION
  annexb.go provides a scanner for splitting an Annex B byte stream into its
  constituent NAL units.

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

// NALUScanner splits an Annex B byte stream into NAL unit payloads. Both the
// three and four byte start code forms are recognised. Scanning is lazy; no
// payload is examined before Next reaches it.
type NALUScanner struct {
	buf     []byte
	pos     int
	started bool
}

// NewNALUScanner returns a NALUScanner reading from buf. The scanner retains
// buf and the payloads it yields alias it.
func NewNALUScanner(buf []byte) *NALUScanner {
	return &NALUScanner{buf: buf}
}

// Next returns the payload of the next NAL unit in the stream, i.e. the bytes
// between consecutive start codes, still in encapsulated form. It returns
// ok = false once the stream is exhausted. Bytes before the first start code
// are discarded, as are zero length payloads from adjacent start codes. A
// stream with no start code at all yields nothing.
func (s *NALUScanner) Next() (payload []byte, ok bool) {
	if !s.started {
		j, n := findStartCode(s.buf, 0)
		if j < 0 {
			s.pos = len(s.buf)
			return nil, false
		}
		s.pos = j + n
		s.started = true
	}

	for {
		start := s.pos
		j, n := findStartCode(s.buf, start)
		if j < 0 {
			// Remaining bytes, including any trailing partial start
			// code, form the final payload.
			s.pos = len(s.buf)
			if start == len(s.buf) {
				return nil, false
			}
			return s.buf[start:], true
		}
		s.pos = j + n
		if j != start {
			return s.buf[start:j], true
		}
	}
}

// findStartCode returns the index and length of the first start code at or
// after from, or -1 if there is none. A zero byte immediately preceding a
// three byte code is folded into it as the four byte form.
func findStartCode(buf []byte, from int) (idx, n int) {
	for i := from; i+2 < len(buf); i++ {
		if buf[i] == 0x00 && buf[i+1] == 0x00 && buf[i+2] == 0x01 {
			if i > from && buf[i-1] == 0x00 {
				return i - 1, 4
			}
			return i, 3
		}
	}
	return -1, 0
}
