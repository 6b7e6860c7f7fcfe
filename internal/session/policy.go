package session

// ScoringPolicy supplies the point values used when a round is scored. The
// engine owns when bonuses apply; the policy owns how much they are worth,
// so game tuning never touches the state machine.
type ScoringPolicy interface {
	// BasePoints is the award for a correct answer in the given round.
	BasePoints(roundNumber int) int

	// StreakBonus is the extra award for a correct answer that extends a
	// streak to the given length. Called with the new streak length, which
	// is always at least 1.
	StreakBonus(streak int) int

	// BingoBonus is the award for completing a bingo line while slots
	// remain.
	BingoBonus() int

	// SynergyBonus is the extra award for a correct answer by a participant
	// with a declared C-Suite role, given how many distinct roles answered
	// correctly this round. Called only when distinctRoles >= 2.
	SynergyBonus(distinctRoles int) int
}

// StandardPolicy is the default point schedule.
type StandardPolicy struct{}

func (StandardPolicy) BasePoints(roundNumber int) int {
	return 100
}

// StreakBonus grows linearly and caps so a long streak stays valuable
// without running away from the rest of the field.
func (StandardPolicy) StreakBonus(streak int) int {
	if streak < 2 {
		return 0
	}
	bonus := (streak - 1) * 25
	if bonus > 150 {
		return 150
	}
	return bonus
}

func (StandardPolicy) BingoBonus() int {
	return 500
}

func (StandardPolicy) SynergyBonus(distinctRoles int) int {
	return (distinctRoles - 1) * 50
}
