package models

import "testing"

func TestHasBingoLines(t *testing.T) {
	tests := []struct {
		name      string
		positions uint16
		want      bool
	}{
		{"empty", 0, false},
		{"top row", 0b000000111, true},
		{"middle row", 0b000111000, true},
		{"bottom row", 0b111000000, true},
		{"left column", 0b001001001, true},
		{"middle column", 0b010010010, true},
		{"right column", 0b100100100, true},
		{"main diagonal", 0b100010001, true},
		{"anti diagonal", 0b001010100, true},
		{"two of a row", 0b000000011, false},
		{"scattered no line", 0b010000011, false},
		{"full grid", 0b111111111, true},
		{"row plus noise", 0b010000111, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasBingo(tt.positions); got != tt.want {
				t.Errorf("HasBingo(%09b) = %v, want %v", tt.positions, got, tt.want)
			}
		})
	}
}

func TestValidBingoPosition(t *testing.T) {
	for p := 0; p < BingoGridSize*BingoGridSize; p++ {
		if !ValidBingoPosition(p) {
			t.Errorf("position %d should be valid", p)
		}
	}
	for _, p := range []int{-1, 9, 100} {
		if ValidBingoPosition(p) {
			t.Errorf("position %d should be invalid", p)
		}
	}
}

func TestValidCSuiteChoice(t *testing.T) {
	for _, c := range []CSuiteChoice{CSuiteCEO, CSuiteCFO, CSuiteCMO, CSuiteCTO, CSuiteCHRO} {
		if !ValidCSuiteChoice(c) {
			t.Errorf("%s should be valid", c)
		}
	}
	if ValidCSuiteChoice("COO") {
		t.Error("COO should be invalid")
	}
	if ValidCSuiteChoice("") {
		t.Error("empty choice should be invalid")
	}
}
