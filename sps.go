package h264dec

import (
	"github.com/pkg/errors"

	"github.com/ausocean/h264dec/bits"
)

// Chroma formats as defined in section 6.2, Table 6-1.
const (
	chromaMonochrome = iota
	chroma420
	chroma422
	chroma444
)

// Default scaling lists from Table 7-3, in zig-zag scan order, used when a
// seq_scaling_list_present_flag is unset or a list opts into the defaults.
var (
	Default4x4IntraList = []uint32{6, 13, 13, 20, 20, 20, 28, 28, 28, 28, 32, 32, 32, 37, 37, 42}
	Default4x4InterList = []uint32{10, 14, 14, 20, 20, 20, 24, 24, 24, 24, 27, 27, 27, 30, 30, 34}
	Default8x8IntraList = []uint32{
		6, 10, 10, 13, 11, 13, 16, 16, 16, 16, 18, 18, 18, 18, 18, 23,
		23, 23, 23, 23, 23, 25, 25, 25, 25, 25, 25, 25, 27, 27, 27, 27,
		27, 27, 27, 27, 29, 29, 29, 29, 29, 29, 29, 31, 31, 31, 31, 31,
		31, 33, 33, 33, 33, 33, 36, 36, 36, 36, 38, 38, 38, 40, 40, 42}
	Default8x8InterList = []uint32{
		9, 13, 13, 15, 13, 15, 17, 17, 17, 17, 19, 19, 19, 19, 19, 21,
		21, 21, 21, 21, 21, 22, 22, 22, 22, 22, 22, 22, 24, 24, 24, 24,
		24, 24, 24, 24, 25, 25, 25, 25, 25, 25, 25, 27, 27, 27, 27, 27,
		27, 28, 28, 28, 28, 28, 30, 30, 30, 30, 32, 32, 32, 33, 33, 35}
)

// SPS describes a sequence parameter set as defined by section 7.3.2.1.1 in
// the specifications.
// For semantics see section 7.4.2.1. Comments for fields are excerpts from
// section 7.4.2.1.
type SPS struct {
	// profile_idc and level_idc indicate the profile and level to which the
	// coded video sequence conforms.
	Profile, LevelIDC uint8

	// The constraint_setx_flag flags specify the constraints defined in A.2 for
	// which this stream conforms.
	Constraint0 bool
	Constraint1 bool
	Constraint2 bool
	Constraint3 bool
	Constraint4 bool
	Constraint5 bool

	// seq_parameter_set_id identifies this sequence parameter set, and can then
	// be referenced by the picture parameter set. The seq_parameter_set_id is
	// in the range of 0 to 31 inclusive.
	SPSID uint32

	// chroma_format_idc specifies the chroma sampling relative to the luma
	// sampling as specified in clause 6.2. Range of chroma_format_idc is
	// from 0 to 3 inclusive.
	ChromaFormatIDC uint32

	// separate_colour_plane_flag if true specifies that the three components of
	// the 4:4:4 chroma format are coded separately.
	SeparateColorPlaneFlag bool

	// bit_depth_luma_minus8 specifies the luma array sample bit depth and the
	// luma quantisation parameter range offset QpBdOffset_y (eq 7-3 and 7-4).
	BitDepthLumaMinus8 uint32

	// bit_depth_chroma_minus8 specifies the chroma array sample bit depth and the
	// chroma quantisation parameter range offset QpBdOffset_c (eq 7-3 and 7-4).
	BitDepthChromaMinus8 uint32

	// qpprime_y_zero_transform_bypass_flag equal to 1 specifies that, when QP'Y
	// is equal to 0, a transform bypass operation shall be applied prior to the
	// deblocking filter process as specified in clause 8.5.
	QPPrimeYZeroTransformBypassFlag bool

	// seq_scaling_matrix_present_flag equal to 1 specifies that
	// seq_scaling_list_present_flag[ i ] are present. When 0 they are not
	// present and the flat sequence-level scaling lists shall be inferred.
	SeqScalingMatrixPresentFlag bool

	// seq_scaling_list_present_flag[i] specifies whether the syntax structure
	// for scaling list i is present. If 1 then present, otherwise not, and the
	// scaling list for i is inferred as per rule set A in Table 7-2.
	SeqScalingListPresentFlag []bool

	// The 4x4 sequence scaling lists for i = 0..5, in zig-zag scan order,
	// after the inference rules of Table 7-2 have been applied. Only populated
	// when seq_scaling_matrix_present_flag is set.
	ScalingList4x4 [][]uint32

	// The 8x8 sequence scaling lists for i = 6.., similarly inferred.
	ScalingList8x8 [][]uint32

	// log2_max_frame_num_minus4 allows for derivation of MaxFrameNum using
	// eq 7-10. Range is 0 to 12 inclusive.
	Log2MaxFrameNumMinus4 uint32

	// pic_order_cnt_type specifies the method to decode picture order count.
	PicOrderCntType uint32

	// log2_max_pic_order_cnt_lsb_minus4 allows for the derivation of
	// MaxPicOrderCntLsb using eq 7-11. Range is 0 to 12 inclusive.
	Log2MaxPicOrderCntLSBMinus4 uint32

	// delta_pic_order_always_zero_flag if true indicates delta_pic_order_cnt[0]
	// and delta_pic_order_cnt[1] are not present in the slice headers.
	DeltaPicOrderAlwaysZeroFlag bool

	// offset_for_non_ref_pic is used to calculate the picture order count of a
	// non-reference picture as specified in clause 8.2.1.
	OffsetForNonRefPic int32

	// offset_for_top_to_bottom_field is used to calculate the picture order
	// count of a bottom field as specified in clause 8.2.1.
	OffsetForTopToBottomField int32

	// num_ref_frames_in_pic_order_cnt_cycle is used in the decoding process
	// for picture order count as specified in clause 8.2.1.
	NumRefFramesInPicOrderCntCycle uint32

	// offset_for_ref_frame[ i ] is an element of a list of
	// num_ref_frames_in_pic_order_cnt_cycle values used in the decoding
	// process for picture order count as specified in clause 8.2.1.
	OffsetForRefFrame []int32

	// max_num_ref_frames specifies the max number of short-term and long-term
	// reference frames, complementary reference field pairs, and non-paired
	// reference fields that may be used by the decoding process for inter
	// prediction.
	MaxNumRefFrames uint32

	// gaps_in_frame_num_value_allowed_flag specifies the allowed values of
	// frame_num as specified in clause 7.4.3 and the decoding process in case
	// of an inferred gap between values of frame_num as specified in clause
	// 8.2.5.2.
	GapsInFrameNumValueAllowed bool

	// pic_width_in_mbs_minus1 plus 1 specifies the width of each decoded
	// picture in units of macroblocks. See eq 7-13.
	PicWidthInMbsMinus1 uint32

	// pic_height_in_map_units_minus1 plus 1 specifies the height in slice
	// group map units of a decoded frame or field. See eq 7-16.
	PicHeightInMapUnitsMinus1 uint32

	// frame_mbs_only_flag if 0 coded pictures of the coded video sequence may
	// be coded fields or coded frames. If 1 every coded picture of the coded
	// video sequence is a coded frame containing only frame macroblocks.
	FrameMbsOnlyFlag bool

	// mb_adaptive_frame_field_flag if 0 specifies no switching between frame
	// and field macroblocks within a picture. If 1 specifies the possible use
	// of switching between frame and field macroblocks within frames.
	MBAdaptiveFrameFieldFlag bool

	// direct_8x8_inference_flag specifies the method used in the derivation
	// process for luma motion vectors for B_Skip, B_Direct_16x16 and
	// B_Direct_8x8 as specified in clause 8.4.1.2.
	Direct8x8InferenceFlag bool

	// frame_cropping_flag if 1 then frame cropping offset parameters are next
	// in the sequence parameter set. If 0 they are not.
	FrameCroppingFlag bool

	// frame_crop_left_offset, frame_crop_right_offset, frame_crop_top_offset,
	// frame_crop_bottom_offset specify the samples of the pictures in the
	// coded video sequence that are output from the decoding process, in terms
	// of a rectangular region specified in frame coordinates for output.
	FrameCropLeftOffset   uint32
	FrameCropRightOffset  uint32
	FrameCropTopOffset    uint32
	FrameCropBottomOffset uint32

	// vui_parameters_present_flag if 1 the vui_parameters() syntax structure
	// is present, otherwise it is not.
	VUIParametersPresentFlag bool

	// The vui_parameters() syntax structure specified in appendix E.
	VUIParameters *VUIParameters
}

// Errors returned when parsing an SPS.
var (
	errSPSIDOutOfRange      = errors.New("seq_parameter_set_id not in [0,31]")
	errFrameNumLogRange     = errors.New("log2_max_frame_num_minus4 not in [0,12]")
	errPicOrderCntLogRange  = errors.New("log2_max_pic_order_cnt_lsb_minus4 not in [0,12]")
	errChromaFormatIDCRange = errors.New("chroma_format_idc not in [0,3]")
)

// Profiles that carry the extended SPS fields from chroma_format_idc through
// the sequence scaling matrix.
var extendedProfiles = []int{100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135}

// NewSPS parses a sequence parameter set from the raw byte sequence payload
// rbsp following the syntax structure specified in section 7.3.2.1.1, and
// returns as a new SPS.
func NewSPS(rbsp []byte) (*SPS, error) {
	sps := SPS{
		// Inferred when the extended profile fields are absent.
		ChromaFormatIDC: chroma420,
	}
	br := bits.NewBitReader(rbsp)
	r := newFieldReader(br)

	sps.Profile = uint8(r.readBits(8))
	sps.Constraint0 = r.readFlag()
	sps.Constraint1 = r.readFlag()
	sps.Constraint2 = r.readFlag()
	sps.Constraint3 = r.readFlag()
	sps.Constraint4 = r.readFlag()
	sps.Constraint5 = r.readFlag()
	r.readBits(2) // 2 reserved bits.
	sps.LevelIDC = uint8(r.readBits(8))
	sps.SPSID = r.readUe()
	if r.err() == nil && sps.SPSID > 31 {
		return nil, errSPSIDOutOfRange
	}

	if isInList(extendedProfiles, int(sps.Profile)) {
		sps.ChromaFormatIDC = r.readUe()
		if r.err() == nil && sps.ChromaFormatIDC > chroma444 {
			return nil, errChromaFormatIDCRange
		}
		if sps.ChromaFormatIDC == chroma444 {
			sps.SeparateColorPlaneFlag = r.readFlag()
		}

		sps.BitDepthLumaMinus8 = r.readUe()
		sps.BitDepthChromaMinus8 = r.readUe()
		sps.QPPrimeYZeroTransformBypassFlag = r.readFlag()
		sps.SeqScalingMatrixPresentFlag = r.readFlag()

		if sps.SeqScalingMatrixPresentFlag {
			n := 12
			if sps.ChromaFormatIDC != chroma444 {
				n = 8
			}
			if err := parseScalingLists(br, r, &sps, n); err != nil {
				return nil, errors.Wrap(err, "could not parse scaling lists")
			}
		}
	}

	sps.Log2MaxFrameNumMinus4 = r.readUe()
	if r.err() == nil && sps.Log2MaxFrameNumMinus4 > 12 {
		return nil, errFrameNumLogRange
	}
	sps.PicOrderCntType = r.readUe()

	if sps.PicOrderCntType == 0 {
		sps.Log2MaxPicOrderCntLSBMinus4 = r.readUe()
		if r.err() == nil && sps.Log2MaxPicOrderCntLSBMinus4 > 12 {
			return nil, errPicOrderCntLogRange
		}
	} else if sps.PicOrderCntType == 1 {
		sps.DeltaPicOrderAlwaysZeroFlag = r.readFlag()
		sps.OffsetForNonRefPic = r.readSe()
		sps.OffsetForTopToBottomField = r.readSe()
		sps.NumRefFramesInPicOrderCntCycle = r.readUe()

		for i := 0; r.err() == nil && i < int(sps.NumRefFramesInPicOrderCntCycle); i++ {
			sps.OffsetForRefFrame = append(sps.OffsetForRefFrame, r.readSe())
		}
	}

	sps.MaxNumRefFrames = r.readUe()
	sps.GapsInFrameNumValueAllowed = r.readFlag()
	sps.PicWidthInMbsMinus1 = r.readUe()
	sps.PicHeightInMapUnitsMinus1 = r.readUe()
	sps.FrameMbsOnlyFlag = r.readFlag()

	if !sps.FrameMbsOnlyFlag {
		sps.MBAdaptiveFrameFieldFlag = r.readFlag()
	}

	sps.Direct8x8InferenceFlag = r.readFlag()
	sps.FrameCroppingFlag = r.readFlag()

	if sps.FrameCroppingFlag {
		sps.FrameCropLeftOffset = r.readUe()
		sps.FrameCropRightOffset = r.readUe()
		sps.FrameCropTopOffset = r.readUe()
		sps.FrameCropBottomOffset = r.readUe()
	}

	sps.VUIParametersPresentFlag = r.readFlag()
	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "error reading sequence parameter set fields")
	}

	if sps.VUIParametersPresentFlag {
		var err error
		sps.VUIParameters, err = NewVUIParameters(br)
		if err != nil {
			return nil, errors.Wrap(err, "could not parse VUIParameters")
		}
	}

	return &sps, nil
}

// parseScalingLists parses n scaling_list() structures from br into sps,
// applying the inference rules from Table 7-2 for lists that are absent or
// that select the defaults.
func parseScalingLists(br *bits.BitReader, r *fieldReader, sps *SPS, n int) error {
	sps.ScalingList4x4 = make([][]uint32, 6)
	sps.ScalingList8x8 = make([][]uint32, n-6)

	for i := 0; i < n; i++ {
		present := r.readFlag()
		if r.err() != nil {
			return r.err()
		}
		sps.SeqScalingListPresentFlag = append(sps.SeqScalingListPresentFlag, present)

		size := 16
		if i >= 6 {
			size = 64
		}

		var list []uint32
		var useDefault bool
		if present {
			list = make([]uint32, size)
			var err error
			useDefault, err = scalingList(br, list)
			if err != nil {
				return errors.Wrapf(err, "could not parse scaling list %d", i)
			}
		}

		// Rule sets A and B from Table 7-2.
		if !present || useDefault {
			switch {
			case i < 6 && present, i == 0, i == 3:
				list = defaultScalingList(i)
			case i < 6:
				list = sps.ScalingList4x4[i-1]
			case present, i == 6, i == 7:
				list = defaultScalingList(i)
			default:
				list = sps.ScalingList8x8[i-8]
			}
		}

		if i < 6 {
			sps.ScalingList4x4[i] = list
		} else {
			sps.ScalingList8x8[i-6] = list
		}
	}
	return nil
}

// defaultScalingList returns the Table 7-3 default for scaling list i, per
// the assignments in Table 7-2.
func defaultScalingList(i int) []uint32 {
	switch {
	case i < 3:
		return Default4x4IntraList
	case i < 6:
		return Default4x4InterList
	case i%2 == 0:
		return Default8x8IntraList
	default:
		return Default8x8InterList
	}
}

// scalingList parses a scaling_list() syntax structure from br into list,
// following section 7.3.2.1.1.1. It reports whether the list asked for the
// default scaling matrix via a zero nextScale on the first element.
func scalingList(br *bits.BitReader, list []uint32) (useDefault bool, err error) {
	lastScale := 8
	nextScale := 8
	for i := range list {
		if nextScale != 0 {
			deltaScale, err := br.ReadSignedGolomb()
			if err != nil {
				return false, errors.Wrap(err, "could not parse deltaScale")
			}
			nextScale = (lastScale + int(deltaScale) + 256) % 256
			if i == 0 && nextScale == 0 {
				useDefault = true
			}
		}
		if nextScale == 0 {
			list[i] = uint32(lastScale)
		} else {
			list[i] = uint32(nextScale)
		}
		lastScale = int(list[i])
	}
	return useDefault, nil
}

// PicWidthInMbs returns the picture width in macroblocks, eq 7-13.
func (s *SPS) PicWidthInMbs() int {
	return int(s.PicWidthInMbsMinus1) + 1
}

// PicHeightInMbs returns the frame height in macroblocks, eq 7-17 and 7-18,
// for the frame coded case.
func (s *SPS) PicHeightInMbs() int {
	h := int(s.PicHeightInMapUnitsMinus1) + 1
	if !s.FrameMbsOnlyFlag {
		h *= 2
	}
	return h
}

// PicSizeInMbs returns the number of macroblocks in a frame, eq 7-29.
func (s *SPS) PicSizeInMbs() int {
	return s.PicWidthInMbs() * s.PicHeightInMbs()
}

// MaxFrameNum returns the exclusive upper bound on frame_num, eq 7-10.
func (s *SPS) MaxFrameNum() uint32 {
	return 1 << (s.Log2MaxFrameNumMinus4 + 4)
}

// MaxPicOrderCntLsb returns the exclusive upper bound on pic_order_cnt_lsb,
// eq 7-11.
func (s *SPS) MaxPicOrderCntLsb() uint32 {
	return 1 << (s.Log2MaxPicOrderCntLSBMinus4 + 4)
}

// cropUnits returns the units of the frame cropping offsets, from the
// CropUnitX and CropUnitY derivations in section 7.4.2.1.1.
func (s *SPS) cropUnits() (x, y int) {
	switch s.ChromaFormatIDC {
	case chroma420:
		x, y = 2, 2
	case chroma422:
		x, y = 2, 1
	default:
		x, y = 1, 1
	}
	if !s.FrameMbsOnlyFlag {
		y *= 2
	}
	return x, y
}

// Width returns the display width of decoded frames in luma samples, i.e.
// the coded width less any frame cropping.
func (s *SPS) Width() int {
	w := s.PicWidthInMbs() * 16
	if s.FrameCroppingFlag {
		ux, _ := s.cropUnits()
		w -= ux * int(s.FrameCropLeftOffset+s.FrameCropRightOffset)
	}
	return w
}

// Height returns the display height of decoded frames in luma samples.
func (s *SPS) Height() int {
	h := s.PicHeightInMbs() * 16
	if s.FrameCroppingFlag {
		_, uy := s.cropUnits()
		h -= uy * int(s.FrameCropTopOffset+s.FrameCropBottomOffset)
	}
	return h
}

// extendedSAR is the aspect_ratio_idc indicating that sar_width and
// sar_height follow, from Table E-1.
const extendedSAR = 255

// VUIParameters describes video usability information as defined by section
// E.1.1 in the specifications.
// Semantics for fields are defined in section E.2.1. Comments on fields are
// excerpts from that section.
type VUIParameters struct {
	// aspect_ratio_info_present_flag if 1 then aspect_ratio_idc is present,
	// otherwise is not.
	AspectRatioInfoPresentFlag bool

	// aspect_ratio_idc specifies the value of sample aspect ratio of the luma
	// samples.
	AspectRatioIDC uint8

	// sar_width indicates the horizontal size of the sample aspect ratio (in
	// arbitrary units).
	SARWidth uint32

	// sar_height indicates the vertical size of the sample aspect ratio (in
	// the same arbitrary units as sar_width).
	SARHeight uint32

	// overscan_info_present_flag if 1 then overscan_appropriate_flag is
	// present, otherwise if 0, then the display method for the video signal is
	// unspecified.
	OverscanInfoPresentFlag bool

	// overscan_appropriate_flag if 1 then the cropped decoded pictures output
	// are suitable for display using overscan, otherwise if 0, then the
	// cropped decoded pictures output should not be displayed using overscan.
	OverscanAppropriateFlag bool

	// video_signal_type_present_flag equal to 1 specifies that video_format,
	// video_full_range_flag and colour_description_present_flag are present,
	// otherwise if 0, then they are not present.
	VideoSignalTypePresentFlag bool

	// video_format indicates the representation of the pictures as specified
	// in Table E-2, before being coded.
	VideoFormat uint8

	// video_full_range_flag indicates the black level and range of the luma
	// and chroma signals.
	VideoFullRangeFlag bool

	// colour_description_present_flag if 1 specifies that colour_primaries,
	// transfer_characteristics and matrix_coefficients are present, otherwise
	// if 0 then they are not present.
	ColorDescriptionPresentFlag bool

	// colour_primaries indicates the chromaticity coordinates of the source
	// primaries as specified in Table E-3 in terms of the CIE 1931 definition
	// of x and y as specified by ISO 11664-1.
	ColorPrimaries uint8

	// transfer_characteristics either indicates the reference opto-electronic
	// transfer characteristic function of the source picture, or indicates the
	// inverse of the reference electro-optical transfer characteristic
	// function.
	TransferCharacteristics uint8

	// matrix_coefficients describes the matrix coefficients used in deriving
	// luma and chroma signals from the green, blue, and red, or Y, Z, and X
	// primaries, as specified in Table E-5.
	MatrixCoefficients uint8

	// chroma_loc_info_present_flag if 1 specifies that
	// chroma_sample_loc_type_top_field and
	// chroma_sample_loc_type_bottom_field are present, otherwise if 0, they
	// are not present.
	ChromaLocInfoPresentFlag bool

	// chroma_sample_loc_type_top_field and chroma_sample_loc_type_bottom_field
	// specify the location of chroma samples.
	ChromaSampleLocTypeTopField, ChromaSampleLocTypeBottomField uint32

	// timing_info_present_flag if 1 specifies that num_units_in_tick,
	// time_scale and fixed_frame_rate_flag are present in the bitstream,
	// otherwise if 0, they are not present.
	TimingInfoPresentFlag bool

	// num_units_in_tick is the number of time units of a clock operating at
	// the frequency time_scale Hz that corresponds to one increment (called a
	// clock tick) of a clock tick counter.
	NumUnitsInTick uint32

	// time_scale is the number of time units that pass in one second.
	TimeScale uint32

	// fixed_frame_rate_flag if 1 indicates that the temporal distance between
	// the HRD output times of any two consecutive pictures in output order is
	// constrained as specified in section E.2.1, otherwise if 0 no such
	// constraint applies.
	FixedFrameRateFlag bool

	// nal_hrd_parameters_present_flag if 1 then NAL HRD parameters (pertaining
	// to Type II bitstream conformance) are present, otherwise if 0, then they
	// are not present.
	NALHRDParametersPresentFlag bool

	// The nal_hrd_parameters() syntax structure as specified in section E.1.2.
	NALHRDParameters *HRDParameters

	// vcl_hrd_parameters_present_flag if 1 specifies that VCL HRD parameters
	// (pertaining to all bitstream conformance) are present, otherwise if 0,
	// then they are not present.
	VCLHRDParametersPresentFlag bool

	// The vcl_hrd_parameters() syntax structure as specified in section E.1.2.
	VCLHRDParameters *HRDParameters

	// low_delay_hrd_flag specifies the HRD operational mode as specified in
	// Annex C.
	LowDelayHRDFlag bool

	// pic_struct_present_flag if 1 then picture timing SEI messages (clause
	// D.2.3) are present that include the pic_struct syntax element, otherwise
	// if 0, then not present.
	PicStructPresentFlag bool

	// bitstream_restriction_flag if 1, then the following coded video sequence
	// bitstream restriction parameters are present, otherwise if 0, then they
	// are not present.
	BitstreamRestrictionFlag bool

	// motion_vectors_over_pic_boundaries_flag if 0 then no sample outside the
	// picture boundaries is used for inter prediction of any sample, otherwise
	// if 1, indicates that one or more samples outside picture boundaries may
	// be used in inter prediction.
	MotionVectorsOverPicBoundariesFlag bool

	// max_bytes_per_pic_denom indicates a number of bytes not exceeded by the
	// sum of the sizes of the VCL NAL units associated with any coded picture
	// in the coded video sequence.
	MaxBytesPerPicDenom uint32

	// max_bits_per_mb_denom indicates an upper bound for the number of coded
	// bits of macroblock_layer() data for any macroblock in any picture of the
	// coded video sequence.
	MaxBitsPerMBDenom uint32

	// log2_max_mv_length_horizontal and log2_max_mv_length_vertical indicate
	// the maximum absolute value of a decoded horizontal and vertical motion
	// vector component, respectively, in quarter luma sample units, for all
	// pictures in the coded video sequence.
	Log2MaxMVLengthHorizontal, Log2MaxMVLengthVertical uint32

	// max_num_reorder_frames indicates an upper bound for the number of frame
	// buffers, in the decoded picture buffer (DPB), that are required for
	// storing frames, complementary field pairs, and non-paired fields before
	// output.
	MaxNumReorderFrames uint32

	// max_dec_frame_buffering specifies the required size of the HRD decoded
	// picture buffer (DPB) in units of frame buffers.
	MaxDecFrameBuffering uint32
}

// NewVUIParameters parses video usability information parameters from br
// following the syntax structure specified in section E.1.1, and returns as a
// new VUIParameters.
func NewVUIParameters(br *bits.BitReader) (*VUIParameters, error) {
	p := &VUIParameters{}
	r := newFieldReader(br)

	p.AspectRatioInfoPresentFlag = r.readFlag()
	if p.AspectRatioInfoPresentFlag {
		p.AspectRatioIDC = uint8(r.readBits(8))
		if p.AspectRatioIDC == extendedSAR {
			p.SARWidth = r.readBits(16)
			p.SARHeight = r.readBits(16)
		}
	}

	p.OverscanInfoPresentFlag = r.readFlag()
	if p.OverscanInfoPresentFlag {
		p.OverscanAppropriateFlag = r.readFlag()
	}

	p.VideoSignalTypePresentFlag = r.readFlag()
	if p.VideoSignalTypePresentFlag {
		p.VideoFormat = uint8(r.readBits(3))
		p.VideoFullRangeFlag = r.readFlag()
		p.ColorDescriptionPresentFlag = r.readFlag()
		if p.ColorDescriptionPresentFlag {
			p.ColorPrimaries = uint8(r.readBits(8))
			p.TransferCharacteristics = uint8(r.readBits(8))
			p.MatrixCoefficients = uint8(r.readBits(8))
		}
	}

	p.ChromaLocInfoPresentFlag = r.readFlag()
	if p.ChromaLocInfoPresentFlag {
		p.ChromaSampleLocTypeTopField = r.readUe()
		p.ChromaSampleLocTypeBottomField = r.readUe()
	}

	p.TimingInfoPresentFlag = r.readFlag()
	if p.TimingInfoPresentFlag {
		p.NumUnitsInTick = r.readBits(32)
		p.TimeScale = r.readBits(32)
		p.FixedFrameRateFlag = r.readFlag()
	}

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "error reading VUI fields")
	}

	var err error
	p.NALHRDParametersPresentFlag = r.readFlag()
	if p.NALHRDParametersPresentFlag {
		p.NALHRDParameters, err = NewHRDParameters(br)
		if err != nil {
			return nil, errors.Wrap(err, "could not get NAL HRD parameters")
		}
	}

	p.VCLHRDParametersPresentFlag = r.readFlag()
	if p.VCLHRDParametersPresentFlag {
		p.VCLHRDParameters, err = NewHRDParameters(br)
		if err != nil {
			return nil, errors.Wrap(err, "could not get VCL HRD parameters")
		}
	}

	if p.NALHRDParametersPresentFlag || p.VCLHRDParametersPresentFlag {
		p.LowDelayHRDFlag = r.readFlag()
	}

	p.PicStructPresentFlag = r.readFlag()
	p.BitstreamRestrictionFlag = r.readFlag()
	if p.BitstreamRestrictionFlag {
		p.MotionVectorsOverPicBoundariesFlag = r.readFlag()
		p.MaxBytesPerPicDenom = r.readUe()
		p.MaxBitsPerMBDenom = r.readUe()
		p.Log2MaxMVLengthHorizontal = r.readUe()
		p.Log2MaxMVLengthVertical = r.readUe()
		p.MaxNumReorderFrames = r.readUe()
		p.MaxDecFrameBuffering = r.readUe()
	}

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "error reading VUI fields")
	}
	return p, nil
}

// HRDParameters describes hypothetical reference decoder parameters as
// defined by section E.1.2 in the specifications.
// Field semantics are defined in section E.2.2. Comments on fields are
// excerpts from section E.2.2.
type HRDParameters struct {
	// cpb_cnt_minus1 plus 1 specifies the number of alternative CPB
	// specifications in the bitstream.
	CPBCntMinus1 uint32

	// bit_rate_scale (together with bit_rate_value_minus1[ SchedSelIdx ])
	// specifies the maximum input bit rate of the SchedSelIdx-th CPB.
	BitRateScale uint8

	// cpb_size_scale (together with cpb_size_value_minus1[ SchedSelIdx ])
	// specifies the CPB size of the SchedSelIdx-th CPB.
	CPBSizeScale uint8

	// bit_rate_value_minus1[ SchedSelIdx ] (together with bit_rate_scale)
	// specifies the maximum input bit rate for the SchedSelIdx-th CPB.
	BitRateValueMinus1 []uint32

	// cpb_size_value_minus1[ SchedSelIdx ] is used together with
	// cpb_size_scale to specify the SchedSelIdx-th CPB size.
	CPBSizeValueMinus1 []uint32

	// cbr_flag[ SchedSelIdx ] equal to 0 specifies that to decode this
	// bitstream by the HRD using the SchedSelIdx-th CPB specification, the
	// hypothetical stream delivery scheduler (HSS) operates in an intermittent
	// bit rate mode, otherwise if 1 specifies that the HSS operates in a
	// constant bit rate mode.
	CBRFlag []bool

	// initial_cpb_removal_delay_length_minus1 specifies the length in bits of
	// the initial_cpb_removal_delay[ SchedSelIdx ] and
	// initial_cpb_removal_delay_offset[ SchedSelIdx ] syntax elements of the
	// buffering period SEI message.
	InitialCPBRemovalDelayLenMinus1 uint8

	// cpb_removal_delay_length_minus1 specifies the length in bits of the
	// cpb_removal_delay syntax element.
	CPBRemovalDelayLenMinus1 uint8

	// dpb_output_delay_length_minus1 specifies the length in bits of the
	// dpb_output_delay syntax element.
	DPBOutputDelayLenMinus1 uint8

	// time_offset_length greater than 0 specifies the length in bits of the
	// time_offset syntax element.
	TimeOffsetLen uint8
}

// NewHRDParameters parses hypothetical reference decoder parameters from br
// following the syntax structure specified in section E.1.2, and returns as a
// new HRDParameters.
func NewHRDParameters(br *bits.BitReader) (*HRDParameters, error) {
	h := &HRDParameters{}
	r := newFieldReader(br)

	h.CPBCntMinus1 = r.readUe()
	h.BitRateScale = uint8(r.readBits(4))
	h.CPBSizeScale = uint8(r.readBits(4))

	// SchedSelIdx E.1.2
	for sseli := 0; r.err() == nil && sseli <= int(h.CPBCntMinus1); sseli++ {
		h.BitRateValueMinus1 = append(h.BitRateValueMinus1, r.readUe())
		h.CPBSizeValueMinus1 = append(h.CPBSizeValueMinus1, r.readUe())
		h.CBRFlag = append(h.CBRFlag, r.readFlag())
	}

	h.InitialCPBRemovalDelayLenMinus1 = uint8(r.readBits(5))
	h.CPBRemovalDelayLenMinus1 = uint8(r.readBits(5))
	h.DPBOutputDelayLenMinus1 = uint8(r.readBits(5))
	h.TimeOffsetLen = uint8(r.readBits(5))

	if r.err() != nil {
		return nil, errors.Wrap(r.err(), "error reading HRD fields")
	}
	return h, nil
}
