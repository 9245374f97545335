package engine

// Balance holds the tunable numbers of a match.
type Balance struct {
	HPMax     int
	MoraleMax int
	HandSize  int // hands are refilled to this size at round start
	RoundCap  int // 0 = unlimited

	BeginThreatOffset int // nat-1 threat difficulty = round + offset
	EndThreatOffset   int // scenario threat difficulty = round + offset + bonus
	MaxBeginThreats   int
	ThreatResponseAP  int

	FleeDC int

	MinAP      int
	DefaultEND int
	DefaultMAG int
}

// DefaultBalance returns the standard balance numbers.
func DefaultBalance() Balance {
	return Balance{
		HPMax:             20,
		MoraleMax:         20,
		HandSize:          5,
		RoundCap:          10,
		BeginThreatOffset: 2,
		EndThreatOffset:   3,
		MaxBeginThreats:   2,
		ThreatResponseAP:  2,
		FleeDC:            12,
		MinAP:             2,
		DefaultEND:        12,
		DefaultMAG:        12,
	}
}

// maxBeginThreats treats 0 as the default cap of 2.
func (b *Balance) maxBeginThreats() int {
	if b.MaxBeginThreats <= 0 {
		return 2
	}
	return b.MaxBeginThreats
}
