// Package blockfall implements the real-time falling-block duel: two boards
// ticking in lockstep, line clears charging a flash attack that freezes the
// opponent, last player alive wins.
package blockfall

import (
	"math/rand"
)

// Board dimensions.
const (
	BoardWidth  = 10
	BoardHeight = 20
)

// Kind identifies a piece shape. KindSpecial is the 2x2 bonus piece that
// rewards extra score and may freeze the opponent when it locks.
type Kind byte

const (
	KindNone    Kind = 0
	KindI       Kind = 'I'
	KindO       Kind = 'O'
	KindT       Kind = 'T'
	KindS       Kind = 'S'
	KindZ       Kind = 'Z'
	KindJ       Kind = 'J'
	KindL       Kind = 'L'
	KindSpecial Kind = 'P'
)

// specialChance is the per-draw probability of upgrading a piece to the
// special kind.
const specialChance = 0.10

// shapes maps each kind to its rotation states, each state a set of
// (row, col) offsets from the piece origin.
var shapes = map[Kind][][][2]int{
	KindI: {
		{{0, 0}, {0, 1}, {0, 2}, {0, 3}},
		{{0, 0}, {1, 0}, {2, 0}, {3, 0}},
	},
	KindO: {
		{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
	},
	KindT: {
		{{0, 0}, {0, 1}, {0, 2}, {1, 1}},
		{{0, 1}, {1, 0}, {1, 1}, {2, 1}},
		{{0, 1}, {1, 0}, {1, 1}, {1, 2}},
		{{0, 0}, {1, 0}, {1, 1}, {2, 0}},
	},
	KindS: {
		{{0, 1}, {0, 2}, {1, 0}, {1, 1}},
		{{0, 0}, {1, 0}, {1, 1}, {2, 1}},
	},
	KindZ: {
		{{0, 0}, {0, 1}, {1, 1}, {1, 2}},
		{{0, 1}, {1, 0}, {1, 1}, {2, 0}},
	},
	KindJ: {
		{{0, 0}, {1, 0}, {1, 1}, {1, 2}},
		{{0, 0}, {0, 1}, {1, 0}, {2, 0}},
		{{0, 0}, {0, 1}, {0, 2}, {1, 2}},
		{{0, 1}, {1, 1}, {2, 0}, {2, 1}},
	},
	KindL: {
		{{0, 2}, {1, 0}, {1, 1}, {1, 2}},
		{{0, 0}, {1, 0}, {2, 0}, {2, 1}},
		{{0, 0}, {0, 1}, {0, 2}, {1, 0}},
		{{0, 0}, {0, 1}, {1, 1}, {2, 1}},
	},
	// The special piece shares the O footprint and never rotates.
	KindSpecial: {
		{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
	},
}

// Cells returns the offsets of the kind at the given rotation state.
func (k Kind) Cells(rotation int) [][2]int {
	states := shapes[k]
	if len(states) == 0 {
		return nil
	}
	return states[rotation%len(states)]
}

// Rotations returns how many rotation states the kind has.
func (k Kind) Rotations() int {
	return len(shapes[k])
}

// Bag deals pieces using the seven-bag shuffle: every run of seven draws
// contains each base kind exactly once, with a per-draw chance of upgrading
// the piece to the special kind. One bag is shared by both players so the
// duel stays fair under the same seed.
type Bag struct {
	rng     *rand.Rand
	pending []Kind
}

var baseKinds = []Kind{KindI, KindO, KindT, KindS, KindZ, KindJ, KindL}

// NewBag seeds a shuffle sequence. The same seed always deals the same run.
func NewBag(seed int64) *Bag {
	return &Bag{rng: rand.New(rand.NewSource(seed))}
}

// Draw deals the next piece.
func (b *Bag) Draw() Kind {
	if len(b.pending) == 0 {
		b.pending = append(b.pending, baseKinds...)
		b.rng.Shuffle(len(b.pending), func(i, j int) {
			b.pending[i], b.pending[j] = b.pending[j], b.pending[i]
		})
	}
	kind := b.pending[0]
	b.pending = b.pending[1:]
	if b.rng.Float64() < specialChance {
		kind = KindSpecial
	}
	return kind
}

// Chance draws a uniform sample for probabilistic effects such as the
// special piece's freeze roll.
func (b *Bag) Chance() float64 {
	return b.rng.Float64()
}
