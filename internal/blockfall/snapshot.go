package blockfall

import "time"

// PieceView describes a piece for the wire: its kind letter and absolute
// occupied cells.
type PieceView struct {
	Kind  string   `json:"kind"`
	Cells [][2]int `json:"cells"`
}

// PlayerView is one board's worth of per-tick state.
type PlayerView struct {
	Name       string    `json:"name"`
	Board      []string  `json:"board"`
	Active     PieceView `json:"active"`
	Next       []string  `json:"next"`
	Score      int       `json:"score"`
	Lines      int       `json:"lines"`
	Alive      bool      `json:"alive"`
	Cleared    []int     `json:"cleared"`
	FreezeLeft float64   `json:"freeze_left"`
	Hold       string    `json:"hold"`
	HoldUsed   bool      `json:"hold_used"`
	Charges    int       `json:"charges"`
}

// Snapshot is the per-tick state for both seats, built once per tick and
// sliced into viewer-specific messages by the server.
type Snapshot struct {
	Players    [2]PlayerView `json:"players"`
	Spectators []string      `json:"spectators"`
	Over       bool          `json:"over"`
	Winner     int           `json:"winner"`
}

// Snapshot builds the per-tick view of both boards and resets the
// cleared-this-tick markers, so each clear is reported exactly once.
func (m *Match) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var snap Snapshot
	for i, p := range m.players {
		snap.Players[i] = m.viewLocked(p)
		p.clearedTick = nil
	}
	snap.Spectators = append([]string(nil), m.spectators...)
	snap.Over = m.over
	snap.Winner = m.winner
	return snap
}

func (m *Match) viewLocked(p *player) PlayerView {
	rows := make([]string, BoardHeight)
	for r := 0; r < BoardHeight; r++ {
		line := make([]byte, BoardWidth)
		for c := 0; c < BoardWidth; c++ {
			if p.board[r][c] == KindNone {
				line[c] = '.'
			} else {
				line[c] = byte(p.board[r][c])
			}
		}
		rows[r] = string(line)
	}

	next := make([]string, 0, len(p.queue))
	for _, kind := range p.queue {
		next = append(next, string(rune(kind)))
	}

	freezeLeft := 0.0
	if remaining := p.frozenUntil.Sub(m.now()); remaining > 0 {
		freezeLeft = remaining.Seconds()
	}

	hold := ""
	if p.hold != KindNone {
		hold = string(rune(p.hold))
	}

	view := PlayerView{
		Name:       p.name,
		Board:      rows,
		Next:       next,
		Score:      p.score,
		Lines:      p.lines,
		Alive:      p.alive,
		Cleared:    append([]int(nil), p.clearedTick...),
		FreezeLeft: freezeLeft,
		Hold:       hold,
		HoldUsed:   p.holdUsed,
		Charges:    p.charges(),
	}
	if p.alive {
		view.Active = PieceView{Kind: string(rune(p.active.kind)), Cells: p.active.cells()}
	}
	return view
}

// FreezeRemaining reports how long a player stays frozen, mainly for tests.
func (m *Match) FreezeRemaining(idx int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx < 0 || idx > 1 {
		return 0
	}
	if remaining := m.players[idx].frozenUntil.Sub(m.now()); remaining > 0 {
		return remaining
	}
	return 0
}
