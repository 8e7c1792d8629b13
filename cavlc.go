/*
DESCRIPTION
  cavlc.go provides context-adaptive variable-length decoding of transform
  coefficient levels, implementing the parsing processes of section 9.2 of
  the specifications.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264dec

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ausocean/h264dec/bits"
)

// Initialize the CAVLC code tables.
func init() {
	lines, err := csv.NewReader(strings.NewReader(coeffTokenTable)).ReadAll()
	if err != nil {
		panic(fmt.Sprintf("could not read lines from coeffTokenTable string, failed with error: %v", err))
	}

	coeffTokenMaps, err = formCoeffTokenMap(lines)
	if err != nil {
		panic(fmt.Sprintf("could not form coeff_token map, failed with err: %v", err))
	}

	for i, t := range totalZeros4x4Table {
		totalZeros4x4Maps[i] = formCodeMap(t)
	}
	for i, t := range totalZerosChromaDCTable {
		totalZerosChromaDCMaps[i] = formCodeMap(t)
	}
	for i, t := range runBeforeTable {
		runBeforeMaps[i] = formCodeMap(t)
	}
}

// tokenMap maps a coeff_token codeword to its values of
// TrailingOnes(coeff_token) and TotalCoeff(coeff_token), given as
// tokenMap[ codeword length in bits ][ codeword value ][ 0 for trailing ones
// and 1 for totalCoeff ]. Keying on length rather than leading zeros lets the
// all zero codewords of the fixed length and chroma DC categories resolve.
type tokenMap map[int]map[int][2]int

// codeMap maps a variable length codeword to the value of its syntax
// element, given as codeMap[ codeword length in bits ][ codeword value ].
type codeMap map[int]map[int]int

// The number of columns in the coeffTokenTable defined in cavlctab.go. This
// is representative of the number of defined nC ranges in table 9-5 for
// 4:2:0 chroma sampling.
const nColumns = 5

// coeffTokenMaps holds a representation of table 9-5 from the
// specifications, and is indexed as follows, coeffTokenMaps[ nC group ][
// codeword length ][ codeword value ][ 0 for TrailingOnes(coeff_token) and 1
// for TotalCoeff(coeff_token) ].
var coeffTokenMaps [nColumns]tokenMap

// Decoded code tables for total_zeros and run_before.
var (
	totalZeros4x4Maps      [15]codeMap
	totalZerosChromaDCMaps [3]codeMap
	runBeforeMaps          [7]codeMap
)

// formCoeffTokenMap populates a [nColumns]tokenMap representation of table
// 9-5 in the specifications using the parsed records of the coeffTokenTable
// const string defined in cavlctab.go.
func formCoeffTokenMap(lines [][]string) ([nColumns]tokenMap, error) {
	var maps [nColumns]tokenMap

	for i := range maps {
		maps[i] = make(tokenMap)
	}

	for _, line := range lines {
		trailingOnes, err := strconv.Atoi(line[0])
		if err != nil {
			return maps, fmt.Errorf("could not convert trailingOnes string to int, failed with error: %w", err)
		}

		totalCoeff, err := strconv.Atoi(line[1])
		if err != nil {
			return maps, fmt.Errorf("could not convert totalCoeff string to int, failed with error: %w", err)
		}

		// For each column in this row, therefore each nC category, load the
		// codeword length and value into the map.
		for j, v := range line[2:] {
			if v[0] == '-' {
				continue
			}

			val, err := binToInt(v)
			if err != nil {
				return maps, fmt.Errorf("could not get value of codeword, failed with error: %w", err)
			}

			if maps[j][len(v)] == nil {
				maps[j][len(v)] = make(map[int][2]int)
			}
			maps[j][len(v)][val] = [2]int{trailingOnes, totalCoeff}
		}
	}
	return maps, nil
}

// formCodeMap returns a codeMap for the given list of codewords, where the
// value of codeword codes[i] is i.
func formCodeMap(codes []string) codeMap {
	m := make(codeMap)
	for i, c := range codes {
		val, err := binToInt(c)
		if err != nil {
			panic(fmt.Sprintf("bad codeword %q in code table: %v", c, err))
		}
		if m[len(c)] == nil {
			m[len(c)] = make(map[int]int)
		}
		m[len(c)][val] = i
	}
	return m
}

// Errors from CAVLC parsing.
var (
	errInvalidNC        = errors.New("invalid value of nC")
	errBadToken         = errors.New("could not find codeword value in map")
	errLevelPrefixRange = errors.New("level_prefix too long")
	errLevelCombo       = errors.New("invalid TotalCoeff and TrailingOnes combination")
)

// The longest coeff_token codeword is 16 bits; a read beyond this without a
// match means the stream is not decodable.
const maxCoeffTokenBits = 16

// readCoeffToken reads the coeff_token from br and finds a match in the
// coeff_token mapping table (table 9-5 in the specifications) given also nC.
// The resultant TrailingOnes(coeff_token) and TotalCoeff(coeff_token) are
// returned as well as the value of coeff_token.
func readCoeffToken(br *bits.BitReader, nC int) (trailingOnes, totalCoeff, coeffToken int, err error) {
	// Get the column idx for the map.
	var nCIdx int
	switch {
	case 0 <= nC && nC < 2:
		nCIdx = 0
	case 2 <= nC && nC < 4:
		nCIdx = 1
	case 4 <= nC && nC < 8:
		nCIdx = 2
	case 8 <= nC:
		nCIdx = 3
	case nC == -1:
		nCIdx = 4
	default:
		err = errInvalidNC
		return
	}

	// Accumulate the codeword bit by bit until it matches. The codes of
	// each category are prefix free, so the first match is the only one.
	var val, nBits int
	for {
		b, rerr := br.ReadBits(1)
		if rerr != nil {
			err = fmt.Errorf("could not read coeff_token bit, failed with error: %w", rerr)
			return
		}
		nBits++
		val = val<<1 | int(b)

		vars, ok := coeffTokenMaps[nCIdx][nBits][val]
		if ok {
			trailingOnes = vars[0]
			totalCoeff = vars[1]
			coeffToken = val
			return
		}

		if nBits == maxCoeffTokenBits {
			err = errBadToken
			return
		}
	}
}

// readVLC reads bits from br until the accumulated codeword matches one in m,
// returning the value of the matched syntax element.
func readVLC(br *bits.BitReader, m codeMap, maxBits int) (int, error) {
	var val, nBits int
	for {
		b, err := br.ReadBits(1)
		if err != nil {
			return 0, fmt.Errorf("could not read codeword bit, failed with error: %w", err)
		}
		nBits++
		val = val<<1 | int(b)

		if v, ok := m[nBits][val]; ok {
			return v, nil
		}
		if nBits == maxBits {
			return 0, errBadToken
		}
	}
}

// parseLevelPrefix parses the level_prefix variable as specified by the
// process outlined in section 9.2.2.1 in the specifications.
func parseLevelPrefix(br *bits.BitReader) (int, error) {
	zeros := -1
	for b := 0; b != 1; zeros++ {
		_b, err := br.ReadBits(1)
		if err != nil {
			return -1, fmt.Errorf("could not read bit, failed with error: %w", err)
		}
		b = int(_b)

		if zeros > 31 {
			return -1, errLevelPrefixRange
		}
	}
	return zeros, nil
}

// parseLevelInformation parses level information and returns the resultant
// levelVal list using the process defined by section 9.2.2 in the
// specifications. levelVal[0] is the level of the highest frequency
// coefficient.
func parseLevelInformation(br *bits.BitReader, totalCoeff, trailingOnes int) ([]int32, error) {
	var levelVal []int32
	var i int
	for ; i < trailingOnes; i++ {
		b, err := br.ReadBits(1)
		if err != nil {
			return nil, fmt.Errorf("could not read trailing_ones_sign_flag, failed with error: %w", err)
		}
		levelVal = append(levelVal, 1-int32(b)*2)
	}

	var suffixLen int
	switch {
	case totalCoeff > 10 && trailingOnes < 3:
		suffixLen = 1
	case totalCoeff <= 10 || trailingOnes == 3:
		suffixLen = 0
	default:
		return nil, errLevelCombo
	}

	for j := 0; j < totalCoeff-trailingOnes; j++ {
		levelPrefix, err := parseLevelPrefix(br)
		if err != nil {
			return nil, fmt.Errorf("could not parse level prefix, failed with error: %w", err)
		}

		var levelSuffixSize int
		switch {
		case levelPrefix == 14 && suffixLen == 0:
			levelSuffixSize = 4
		case levelPrefix >= 15:
			levelSuffixSize = levelPrefix - 3
		default:
			levelSuffixSize = suffixLen
		}

		var levelSuffix int
		if levelSuffixSize > 0 {
			b, err := br.ReadBits(levelSuffixSize)
			if err != nil {
				return nil, fmt.Errorf("could not parse levelSuffix, failed with error: %w", err)
			}
			levelSuffix = int(b)
		}

		levelCode := (mini(15, levelPrefix) << uint(suffixLen)) + levelSuffix

		if levelPrefix >= 15 && suffixLen == 0 {
			levelCode += 15
		}

		if levelPrefix >= 16 {
			levelCode += (1 << uint(levelPrefix-3)) - 4096
		}

		if i == trailingOnes && trailingOnes < 3 {
			levelCode += 2
		}

		if levelCode%2 == 0 {
			levelVal = append(levelVal, int32((levelCode+2)>>1))
		} else {
			levelVal = append(levelVal, int32((-levelCode-1)>>1))
		}

		if suffixLen == 0 {
			suffixLen = 1
		}

		if absi(int(levelVal[i])) > (3<<uint(suffixLen-1)) && suffixLen < 6 {
			suffixLen++
		}
		i++
	}
	return levelVal, nil
}

// readTotalZeros parses the total_zeros syntax element using the tables
// selected by tables 9-7, 9-8 and 9-9 of the specifications. chromaDC
// selects the 2x2 chroma DC table.
func readTotalZeros(br *bits.BitReader, totalCoeff int, chromaDC bool) (int, error) {
	if chromaDC {
		return readVLC(br, totalZerosChromaDCMaps[totalCoeff-1], 3)
	}
	return readVLC(br, totalZeros4x4Maps[totalCoeff-1], 9)
}

// readRunBefore parses the run_before syntax element using table 9-10 of the
// specifications.
func readRunBefore(br *bits.BitReader, zerosLeft int) (int, error) {
	return readVLC(br, runBeforeMaps[mini(zerosLeft, 7)-1], 11)
}

// combineLevelRunInfo combines the level and run information obtained prior
// using the process defined in section 9.2.4 of the specifications and
// returns the corresponding coeffLevel list in scan order. Levels and runs
// are indexed from the highest frequency coefficient down, so the lists are
// walked backwards.
func combineLevelRunInfo(levelVal []int32, runVal []int, totalCoeff, maxNumCoeff int) []int32 {
	coeffLevel := make([]int32, maxNumCoeff)
	coeffNum := -1
	for i := totalCoeff - 1; i >= 0; i-- {
		coeffNum += runVal[i] + 1
		coeffLevel[coeffNum] = levelVal[i]
	}
	return coeffLevel
}

// readResidualBlock parses a residual_block_cavlc syntax structure from br
// following section 7.3.5.3.3 of the specifications, returning the
// maxNumCoeff transform coefficient levels in scan order along with
// TotalCoeff(coeff_token) for use as a neighbouring context. nC selects the
// coeff_token table column as derived by section 9.2.1.
func readResidualBlock(br *bits.BitReader, nC, maxNumCoeff int) ([]int32, int, error) {
	trailingOnes, totalCoeff, _, err := readCoeffToken(br, nC)
	if err != nil {
		return nil, 0, EntropyDecodeError{Element: "coeff_token", Err: err}
	}

	if totalCoeff == 0 {
		return make([]int32, maxNumCoeff), 0, nil
	}
	if totalCoeff > maxNumCoeff {
		return nil, 0, EntropyDecodeError{Element: "coeff_token", Err: fmt.Errorf("TotalCoeff %d exceeds block size %d", totalCoeff, maxNumCoeff)}
	}

	levelVal, err := parseLevelInformation(br, totalCoeff, trailingOnes)
	if err != nil {
		return nil, 0, EntropyDecodeError{Element: "level information", Err: err}
	}

	zerosLeft := 0
	if totalCoeff < maxNumCoeff {
		zerosLeft, err = readTotalZeros(br, totalCoeff, maxNumCoeff == 4)
		if err != nil {
			return nil, 0, EntropyDecodeError{Element: "total_zeros", Err: err}
		}
		if zerosLeft+totalCoeff > maxNumCoeff {
			return nil, 0, EntropyDecodeError{Element: "total_zeros", Err: fmt.Errorf("total_zeros %d with TotalCoeff %d exceeds block size %d", zerosLeft, totalCoeff, maxNumCoeff)}
		}
	}

	runVal := make([]int, totalCoeff)
	for i := 0; i < totalCoeff-1; i++ {
		if zerosLeft > 0 {
			runVal[i], err = readRunBefore(br, zerosLeft)
			if err != nil {
				return nil, 0, EntropyDecodeError{Element: "run_before", Err: err}
			}
		}
		if runVal[i] > zerosLeft {
			return nil, 0, EntropyDecodeError{Element: "run_before", Err: fmt.Errorf("run %d exceeds remaining zeros %d", runVal[i], zerosLeft)}
		}
		zerosLeft -= runVal[i]
	}
	runVal[totalCoeff-1] = zerosLeft

	return combineLevelRunInfo(levelVal, runVal, totalCoeff, maxNumCoeff), totalCoeff, nil
}
