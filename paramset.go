package h264dec

import (
	"github.com/pkg/errors"

	"github.com/ausocean/h264dec/bits"
)

// ParameterSetStore holds the sequence and picture parameter sets seen so far
// in a stream, keyed by their ids. A parameter set arriving with an id
// already in the store replaces the stored one, as later slices must decode
// against the most recent activation, section 7.4.1.2.1.
type ParameterSetStore struct {
	sps map[uint32]*SPS
	pps map[uint32]*PPS
}

// NewParameterSetStore returns an empty ParameterSetStore.
func NewParameterSetStore() *ParameterSetStore {
	return &ParameterSetStore{
		sps: make(map[uint32]*SPS),
		pps: make(map[uint32]*PPS),
	}
}

// IngestSPS parses the sequence parameter set RBSP and stores it under its
// seq_parameter_set_id, replacing any previous set with that id.
func (s *ParameterSetStore) IngestSPS(rbsp []byte) (*SPS, error) {
	sps, err := NewSPS(rbsp)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse SPS")
	}
	s.sps[sps.SPSID] = sps
	return sps, nil
}

// IngestPPS parses the picture parameter set RBSP and stores it under its
// pic_parameter_set_id, replacing any previous set with that id. The SPS the
// PPS references must already be in the store, since its chroma format
// shapes the PPS syntax.
func (s *ParameterSetStore) IngestPPS(rbsp []byte) (*PPS, error) {
	r := newFieldReader(bits.NewBitReader(rbsp))
	r.readUe() // pic_parameter_set_id, reparsed below.
	spsID := r.readUe()
	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "could not read referenced SPS id")
	}

	sps, err := s.SPS(spsID)
	if err != nil {
		return nil, err
	}

	pps, err := NewPPS(rbsp, sps.ChromaFormatIDC)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse PPS")
	}
	s.pps[pps.ID] = pps
	return pps, nil
}

// SPS returns the stored sequence parameter set with the given id.
func (s *ParameterSetStore) SPS(id uint32) (*SPS, error) {
	sps, ok := s.sps[id]
	if !ok {
		return nil, MissingParameterSetError{Kind: "SPS", ID: id}
	}
	return sps, nil
}

// PPS returns the stored picture parameter set with the given id.
func (s *ParameterSetStore) PPS(id uint32) (*PPS, error) {
	pps, ok := s.pps[id]
	if !ok {
		return nil, MissingParameterSetError{Kind: "PPS", ID: id}
	}
	return pps, nil
}
