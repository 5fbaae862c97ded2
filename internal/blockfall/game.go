package blockfall

import (
	"sync"
	"time"
)

// Input names accepted from match clients.
type Input string

const (
	InputLeft     Input = "LEFT"
	InputRight    Input = "RIGHT"
	InputRotateCW Input = "ROTATE_CW"
	InputHardDrop Input = "HARD_DROP"
	InputHold     Input = "HOLD"
	InputFlash    Input = "FLASH"
)

// Scoring and attack tuning.
var lineScores = [5]int{0, 100, 300, 500, 800}

const (
	specialLockScore = 50
	freezeDuration   = 2 * time.Second
	freezeChance     = 0.5
	linesPerCharge   = 2
	queueDepth       = 3
)

// activePiece is the falling piece of one player.
type activePiece struct {
	kind     Kind
	rotation int
	row, col int
}

func (p activePiece) cells() [][2]int {
	offsets := p.kind.Cells(p.rotation)
	cells := make([][2]int, len(offsets))
	for i, off := range offsets {
		cells[i] = [2]int{p.row + off[0], p.col + off[1]}
	}
	return cells
}

// player holds one side of the duel. All fields are guarded by the match
// lock.
type player struct {
	name        string
	board       [BoardHeight][BoardWidth]Kind
	active      activePiece
	queue       []Kind
	hold        Kind
	holdUsed    bool
	score       int
	lines       int
	used        int // flash charges spent
	frozenUntil time.Time
	alive       bool
	clearedTick []int // rows cleared during the latest tick
}

func (p *player) charges() int {
	granted := p.lines / linesPerCharge
	if available := granted - p.used; available > 0 {
		return available
	}
	return 0
}

func (p *player) collides(piece activePiece) bool {
	for _, cell := range piece.cells() {
		row, col := cell[0], cell[1]
		if row < 0 || row >= BoardHeight || col < 0 || col >= BoardWidth {
			return true
		}
		if p.board[row][col] != KindNone {
			return true
		}
	}
	return false
}

// Match is one two-player duel plus any spectators. The single lock is the
// only point where the tick loop and the per-connection input readers meet.
type Match struct {
	mu         sync.Mutex
	players    [2]*player
	bag        *Bag
	now        func() time.Time
	over       bool
	winner     int
	spectators []string
}

// MatchOption customises construction, mainly for tests.
type MatchOption func(*Match)

// WithClock overrides the time source used for freeze windows.
func WithClock(now func() time.Time) MatchOption {
	return func(m *Match) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMatch seats both named players with boards dealt from one seeded bag.
func NewMatch(seed int64, names [2]string, opts ...MatchOption) *Match {
	m := &Match{
		bag:    NewBag(seed),
		now:    time.Now,
		winner: -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	for i, name := range names {
		p := &player{name: name, alive: true}
		for len(p.queue) < queueDepth {
			p.queue = append(p.queue, m.bag.Draw())
		}
		m.players[i] = p
		m.spawnLocked(p)
	}
	return m
}

// Apply handles one input from a player. Frozen and dead players are
// silently ignored, as is everything after the match concludes.
func (m *Match) Apply(idx int, input Input) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.over || idx < 0 || idx > 1 {
		return
	}
	p := m.players[idx]
	if !p.alive || m.frozenLocked(p) {
		return
	}

	switch input {
	case InputLeft:
		m.shiftLocked(p, -1)
	case InputRight:
		m.shiftLocked(p, 1)
	case InputRotateCW:
		rotated := p.active
		rotated.rotation = (rotated.rotation + 1) % rotated.kind.Rotations()
		if !p.collides(rotated) {
			p.active = rotated
		}
	case InputHardDrop:
		for {
			dropped := p.active
			dropped.row++
			if p.collides(dropped) {
				break
			}
			p.active = dropped
		}
		m.lockPieceLocked(idx)
	case InputHold:
		m.holdLocked(idx)
	case InputFlash:
		m.flashLocked(idx)
	}
}

// Tick advances both boards by one gravity step. Gravity never pauses: a
// frozen player loses input, not the fall, so the piece drops uncontrolled.
func (m *Match) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.over {
		return
	}
	for idx, p := range m.players {
		if !p.alive {
			continue
		}
		dropped := p.active
		dropped.row++
		if p.collides(dropped) {
			m.lockPieceLocked(idx)
		} else {
			p.active = dropped
		}
	}
}

// Forfeit kills a player, used when their connection drops mid-match.
func (m *Match) Forfeit(idx int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.over || idx < 0 || idx > 1 || !m.players[idx].alive {
		return
	}
	m.players[idx].alive = false
	m.settleDeathLocked()
}

// Over reports whether the duel concluded and the winning player index, or
// -1 when both died on the same tick.
func (m *Match) Over() (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.over, m.winner
}

// PlayerName returns the name seated at the index.
func (m *Match) PlayerName(idx int) string {
	if idx < 0 || idx > 1 {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.players[idx].name
}

// AddSpectator registers a watcher name for inclusion in snapshots.
func (m *Match) AddSpectator(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spectators = append(m.spectators, name)
}

// RemoveSpectator drops a watcher.
func (m *Match) RemoveSpectator(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.spectators {
		if existing == name {
			m.spectators = append(m.spectators[:i], m.spectators[i+1:]...)
			return
		}
	}
}

func (m *Match) frozenLocked(p *player) bool {
	return m.now().Before(p.frozenUntil)
}

func (m *Match) shiftLocked(p *player, delta int) {
	moved := p.active
	moved.col += delta
	if !p.collides(moved) {
		p.active = moved
	}
}

func (m *Match) holdLocked(idx int) {
	p := m.players[idx]
	if p.holdUsed {
		return
	}
	p.holdUsed = true
	banked := p.active.kind
	if p.hold == KindNone {
		//1.- Nothing banked yet: stash the active piece and pull from the queue.
		p.hold = banked
		m.spawnLocked(p)
		m.settleDeathLocked()
		return
	}
	p.hold, p.active = banked, activePiece{kind: p.hold, col: spawnColumn(p.hold)}
	if p.collides(p.active) {
		p.alive = false
		m.settleDeathLocked()
	}
}

func (m *Match) flashLocked(idx int) {
	p := m.players[idx]
	opponent := m.players[1-idx]
	if p.charges() == 0 || !opponent.alive {
		return
	}
	if m.frozenLocked(opponent) {
		//1.- Freezing the already frozen would waste the charge, so keep it.
		return
	}
	p.used++
	opponent.frozenUntil = m.now().Add(freezeDuration)
}

// lockPieceLocked stamps the active piece into the board, applies special
// effects, clears rows, and spawns the next piece.
func (m *Match) lockPieceLocked(idx int) {
	p := m.players[idx]
	special := p.active.kind == KindSpecial
	for _, cell := range p.active.cells() {
		p.board[cell[0]][cell[1]] = p.active.kind
	}
	if special {
		p.score += specialLockScore
		opponent := m.players[1-idx]
		if opponent.alive && !m.frozenLocked(opponent) && m.bag.Chance() < freezeChance {
			opponent.frozenUntil = m.now().Add(freezeDuration)
		}
	}

	cleared := m.clearRowsLocked(p)
	p.clearedTick = append(p.clearedTick, cleared...)
	if n := len(cleared); n > 0 {
		p.score += lineScores[n]
		p.lines += n
	}

	p.holdUsed = false
	m.spawnLocked(p)
	m.settleDeathLocked()
}

// clearRowsLocked removes full rows, compacts the stack down, and returns
// the cleared row indexes.
func (m *Match) clearRowsLocked(p *player) []int {
	var cleared []int
	for row := 0; row < BoardHeight; row++ {
		full := true
		for col := 0; col < BoardWidth; col++ {
			if p.board[row][col] == KindNone {
				full = false
				break
			}
		}
		if !full {
			continue
		}
		cleared = append(cleared, row)
		copy(p.board[1:row+1], p.board[0:row])
		p.board[0] = [BoardWidth]Kind{}
	}
	return cleared
}

// spawnLocked pulls the next piece from the look-ahead queue. A spawn that
// collides with the stack kills the player.
func (m *Match) spawnLocked(p *player) {
	kind := p.queue[0]
	p.queue = append(p.queue[1:], m.bag.Draw())
	p.active = activePiece{kind: kind, col: spawnColumn(kind)}
	if p.collides(p.active) {
		p.alive = false
	}
}

// settleDeathLocked concludes the match once at most one player survives.
func (m *Match) settleDeathLocked() {
	if m.over {
		return
	}
	aliveCount, last := 0, -1
	for i, p := range m.players {
		if p.alive {
			aliveCount++
			last = i
		}
	}
	if aliveCount <= 1 {
		m.over = true
		if aliveCount == 1 {
			m.winner = last
		}
	}
}

func spawnColumn(kind Kind) int {
	width := 0
	for _, off := range kind.Cells(0) {
		if off[1]+1 > width {
			width = off[1] + 1
		}
	}
	return (BoardWidth - width) / 2
}
