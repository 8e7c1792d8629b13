/*
DESCRIPTION
  errors.go provides the error types surfaced by the decoder. Each failure of
  a decode call is one of the types here, or wraps one; a failure aborts the
  NAL unit being decoded and never crashes the process.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
*/

package h264dec

import (
	"errors"
	"fmt"

	"github.com/ausocean/h264dec/bits"
)

// ErrOutOfBits indicates the bitstream was exhausted partway through a
// syntax element. It is the bits package sentinel re-exported for callers
// that do not import bits directly.
var ErrOutOfBits = bits.ErrOutOfBits

// ErrParameterSetNotFound is returned by ParameterSetStore lookups for an id
// that has not been ingested.
var ErrParameterSetNotFound = errors.New("parameter set not found")

// MissingParameterSetError indicates a slice referenced an SPS or PPS id that
// the store does not hold. No default is substituted; the slice is aborted.
type MissingParameterSetError struct {
	Kind string // "SPS" or "PPS".
	ID   uint32
}

func (e MissingParameterSetError) Error() string {
	return fmt.Sprintf("no %s with id %d", e.Kind, e.ID)
}

func (e MissingParameterSetError) Unwrap() error { return ErrParameterSetNotFound }

// UnsupportedFeatureError indicates the stream selected a feature outside
// this decoder's profile support, for example CABAC entropy coding, B
// slices, or a chroma format other than 4:2:0. The stream may be valid; this
// decoder will not degrade it silently.
type UnsupportedFeatureError struct {
	Feature string
}

func (e UnsupportedFeatureError) Error() string {
	return "unsupported feature: " + e.Feature
}

// EntropyDecodeError indicates a CAVLC codeword could not be matched against
// its code table, or a decoded syntax element took a value its table does not
// define. The containing slice is aborted.
type EntropyDecodeError struct {
	Element string
	Err     error
}

func (e EntropyDecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("entropy decode of %s failed", e.Element)
	}
	return fmt.Sprintf("entropy decode of %s failed: %v", e.Element, e.Err)
}

func (e EntropyDecodeError) Unwrap() error { return e.Err }

// InvalidPredictionModeError indicates a prediction mode that requires
// neighbouring samples which are unavailable, violating the encoder-side
// guarantee that a usable mode is always selected. Treated as a hard slice
// failure; no concealment is attempted.
type InvalidPredictionModeError struct {
	Mode int
}

func (e InvalidPredictionModeError) Error() string {
	return fmt.Sprintf("prediction mode %d invalid for available neighbours", e.Mode)
}
