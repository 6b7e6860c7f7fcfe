package models

// The bingo grid is a fixed 3x3 board of target positions:
//
//	0 1 2
//	3 4 5
//	6 7 8
//
// A participant's correctly-answered positions accumulate in a bitmask;
// completing any row, column or diagonal is a bingo.
const (
	BingoGridSize      = 3
	BingoPositionCount = BingoGridSize * BingoGridSize
)

var bingoLines = [...]uint16{
	0b000000111, // rows
	0b000111000,
	0b111000000,
	0b001001001, // columns
	0b010010010,
	0b100100100,
	0b100010001, // diagonals
	0b001010100,
}

// HasBingo reports whether the position bitmask completes at least one line.
func HasBingo(positions uint16) bool {
	for _, line := range bingoLines {
		if positions&line == line {
			return true
		}
	}
	return false
}

// ValidBingoPosition reports whether p is a position on the grid.
func ValidBingoPosition(p int) bool {
	return p >= 0 && p < BingoPositionCount
}
