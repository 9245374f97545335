package engine

import "math/rand/v2"

// Dice is the randomness source of the engine.
type Dice interface {
	D20() int         // [1, 20]
	Intn(n int) int   // [0, n)
	Float64() float64 // [0, 1)
}

// ---------------------------------------------------------------------------
// Seeded RNG
// ---------------------------------------------------------------------------

// pcgStream is the second PCG word; the seed alone picks the sequence.
const pcgStream = 0x9E3779B97F4A7C15

// Rand is a seeded PCG generator. Not safe for concurrent use.
type Rand struct {
	rng *rand.Rand
}

// NewRand returns a generator for the given seed. Equal seeds give equal
// sequences.
func NewRand(seed uint64) *Rand {
	return &Rand{rng: rand.New(rand.NewPCG(seed, pcgStream))}
}

// Intn returns a number in [0, n). n <= 0 returns 0.
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return r.rng.IntN(n)
}

// D20 rolls a twenty-sided die.
func (r *Rand) D20() int { return r.rng.IntN(20) + 1 }

// Float64 returns a float in [0, 1).
func (r *Rand) Float64() float64 { return r.rng.Float64() }

// ---------------------------------------------------------------------------
// Scripted dice
// ---------------------------------------------------------------------------

// ScriptedDice replays queued results in order. Exhausted queues fall back to
// 10 for D20 and 0 for Intn/Float64.
type ScriptedDice struct {
	Rolls  []int
	Ints   []int
	Floats []float64
}

// NewScriptedDice queues the given d20 results.
func NewScriptedDice(rolls ...int) *ScriptedDice {
	return &ScriptedDice{Rolls: rolls}
}

func (s *ScriptedDice) D20() int {
	if len(s.Rolls) == 0 {
		return 10
	}
	v := s.Rolls[0]
	s.Rolls = s.Rolls[1:]
	return v
}

func (s *ScriptedDice) Intn(n int) int {
	if len(s.Ints) == 0 || n <= 0 {
		return 0
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	return v % n
}

func (s *ScriptedDice) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	return v
}

// coinFlip returns a or b with equal probability.
func coinFlip(d Dice, a, b Side) Side {
	if d.Float64() < 0.5 {
		return a
	}
	return b
}
