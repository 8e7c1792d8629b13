package h264dec

import "testing"

func TestBlockScan(t *testing.T) {
	// Block scan index against raster position, section 6.4.3.
	want := [16][2]int{
		{0, 0}, {1, 0}, {0, 1}, {1, 1},
		{2, 0}, {3, 0}, {2, 1}, {3, 1},
		{0, 2}, {1, 2}, {0, 3}, {1, 3},
		{2, 2}, {3, 2}, {2, 3}, {3, 3},
	}

	for idx, pos := range want {
		x, y := blockScanPos(idx)
		if x != pos[0] || y != pos[1] {
			t.Errorf("did not get expected position for index: %d\nGot: (%d,%d)\nWant: (%d,%d)\n", idx, x, y, pos[0], pos[1])
		}
		if got := blockScanIdx(pos[0], pos[1]); got != idx {
			t.Errorf("did not get expected index for position (%d,%d)\nGot: %v\nWant: %v\n", pos[0], pos[1], got, idx)
		}
	}
}

func TestParseIMbType(t *testing.T) {
	tests := []struct {
		raw                          uint32
		class                        mbClass
		predMode, cbpLuma, cbpChroma int
		err                          bool
	}{
		{raw: 0, class: mbI4x4},
		{raw: 1, class: mbI16x16, predMode: 0},
		{raw: 3, class: mbI16x16, predMode: 2},
		{raw: 7, class: mbI16x16, predMode: 2, cbpChroma: 1},
		{raw: 13, class: mbI16x16, predMode: 0, cbpLuma: 15},
		{raw: 24, class: mbI16x16, predMode: 3, cbpLuma: 15, cbpChroma: 2},
		{raw: 25, class: mbIPCM},
		{raw: 26, err: true},
	}

	for i, test := range tests {
		class, predMode, cbpLuma, cbpChroma, err := parseIMbType(test.raw)
		if test.err {
			if err == nil {
				t.Errorf("expected error for test: %d", i)
			}
			continue
		}
		if err != nil {
			t.Errorf("did not expect error: %v for test: %d", err, i)
			continue
		}
		if class != test.class || predMode != test.predMode ||
			cbpLuma != test.cbpLuma || cbpChroma != test.cbpChroma {
			t.Errorf("did not get expected result for test: %d\nGot: %v %d %d %d\nWant: %v %d %d %d\n",
				i, class, predMode, cbpLuma, cbpChroma,
				test.class, test.predMode, test.cbpLuma, test.cbpChroma)
		}
	}
}
