// Package ringcombat implements the turn-based ring combat match: N seats
// attack in cyclic order, each attack targeting the next living seat, and
// the first fully sunk ship ends the match.
package ringcombat

import (
	"errors"
	"fmt"
	"sync"
)

// Board dimensions and cell markers.
const (
	BoardSize = 10

	CellEmpty = "~"
	CellHit   = "X"
	CellMiss  = "o"
)

// Outcome is the result of one attack.
type Outcome string

const (
	OutcomeHit    Outcome = "HIT"
	OutcomeMiss   Outcome = "MISS"
	OutcomeRepeat Outcome = "REPEAT"
)

var (
	// ErrBoardShape signals a submitted board with the wrong dimensions.
	ErrBoardShape = errors.New("board must be 10x10")
	// ErrNotEnoughSeats signals a match construction below two seats.
	ErrNotEnoughSeats = errors.New("ring combat needs at least two seats")
	// ErrMatchOver signals an attack after the match concluded.
	ErrMatchOver = errors.New("match already concluded")
)

// Board is a square grid of cell markers. Any string other than the empty,
// hit, and miss markers counts as a ship marker; all cells carrying the same
// marker form one ship.
type Board [][]string

// ValidateBoard checks the submitted board dimensions.
func ValidateBoard(b Board) error {
	if len(b) != BoardSize {
		return ErrBoardShape
	}
	for _, row := range b {
		if len(row) != BoardSize {
			return ErrBoardShape
		}
	}
	return nil
}

// Seat is one participant's slot: a name, a board, and a live flag.
type Seat struct {
	Name  string
	Board Board
	Alive bool
}

// AttackResult describes the resolution of one attack for relaying to both
// the attacker and the defender.
type AttackResult struct {
	Attacker int
	Defender int
	Row, Col int
	Outcome  Outcome
	// Sunk is set when the hit removed the last cell of a ship, ending the
	// match immediately in the attacker's favour.
	Sunk bool
}

// Match holds the turn-loop state. The cursor indexes the alive subset, not
// the seat list, and is re-normalised whenever a seat drops so the defender
// is always the next living seat at the moment of the attack.
type Match struct {
	mu     sync.Mutex
	seats  []*Seat
	alive  []int
	cursor int
	winner int
	over   bool
}

// NewMatch seats the named participants in ring order.
func NewMatch(names []string) (*Match, error) {
	if len(names) < 2 {
		return nil, ErrNotEnoughSeats
	}
	m := &Match{winner: -1}
	for i, name := range names {
		m.seats = append(m.seats, &Seat{Name: name, Alive: true})
		m.alive = append(m.alive, i)
	}
	return m, nil
}

// SetBoard installs a seat's board layout before the turn loop starts.
func (m *Match) SetBoard(seat int, board Board) error {
	if err := ValidateBoard(board); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if seat < 0 || seat >= len(m.seats) {
		return fmt.Errorf("seat %d out of range", seat)
	}
	m.seats[seat].Board = cloneBoard(board)
	return nil
}

// Attacker returns the seat index whose turn it is.
func (m *Match) Attacker() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.over || len(m.alive) == 0 {
		return -1
	}
	return m.alive[m.cursor]
}

// Defender returns the next living seat in ring order after the attacker.
// It is recomputed on every call because seats can drop mid-match.
func (m *Match) Defender() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defenderLocked()
}

// Attack resolves the current attacker's shot at (row, col) on the defender.
// Out-of-range coordinates yield a REPEAT outcome without touching the board
// or consuming the turn. HIT and MISS advance the cursor; REPEAT on an
// already-marked cell also advances it, matching a wasted shot.
func (m *Match) Attack(row, col int) (AttackResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.over {
		return AttackResult{}, ErrMatchOver
	}

	attacker := m.alive[m.cursor]
	defender := m.defenderLocked()
	result := AttackResult{Attacker: attacker, Defender: defender, Row: row, Col: col}

	if row < 0 || row >= BoardSize || col < 0 || col >= BoardSize {
		//1.- Malformed coordinates reject without board effect and without
		// handing the turn over, so the attacker can correct the shot.
		result.Outcome = OutcomeRepeat
		return result, nil
	}

	board := m.seats[defender].Board
	switch cell := board[row][col]; cell {
	case CellHit, CellMiss:
		result.Outcome = OutcomeRepeat
	case CellEmpty:
		result.Outcome = OutcomeMiss
		board[row][col] = CellMiss
	default:
		result.Outcome = OutcomeHit
		board[row][col] = CellHit
		if !markerRemains(board, cell) {
			//2.- First fully sunk ship ends the match immediately; sinking the
			// rest of the fleet is not required.
			result.Sunk = true
			m.over = true
			m.winner = attacker
			return result, nil
		}
	}

	//3.- Hitting, missing, and re-shooting a marked cell all consume the turn.
	m.cursor = (m.cursor + 1) % len(m.alive)
	return result, nil
}

// DropSeat marks a seat dead, removes it from the ring, and re-normalises
// the cursor. When only one living seat remains it wins by walkover.
func (m *Match) DropSeat(seat int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.over || seat < 0 || seat >= len(m.seats) || !m.seats[seat].Alive {
		return
	}
	m.seats[seat].Alive = false

	position := -1
	for i, idx := range m.alive {
		if idx == seat {
			position = i
			break
		}
	}
	if position >= 0 {
		m.alive = append(m.alive[:position], m.alive[position+1:]...)
		if position < m.cursor {
			m.cursor--
		}
		if len(m.alive) > 0 {
			m.cursor %= len(m.alive)
		}
	}

	if len(m.alive) == 1 {
		m.over = true
		m.winner = m.alive[0]
	}
}

// Alive returns the living seat indexes in ring order.
func (m *Match) Alive() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.alive...)
}

// Over reports whether the match has concluded and, if so, the winner.
func (m *Match) Over() (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.over, m.winner
}

// SeatName returns the participant name seated at the index.
func (m *Match) SeatName(seat int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seat < 0 || seat >= len(m.seats) {
		return ""
	}
	return m.seats[seat].Name
}

func (m *Match) defenderLocked() int {
	if m.over || len(m.alive) < 2 {
		return -1
	}
	return m.alive[(m.cursor+1)%len(m.alive)]
}

func markerRemains(board Board, marker string) bool {
	for _, row := range board {
		for _, cell := range row {
			if cell == marker {
				return true
			}
		}
	}
	return false
}

func cloneBoard(board Board) Board {
	clone := make(Board, len(board))
	for i, row := range board {
		clone[i] = append([]string(nil), row...)
	}
	return clone
}
