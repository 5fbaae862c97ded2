package blockfall

import (
	"testing"
	"time"
)

func newTestMatch(now *time.Time) *Match {
	return NewMatch(42, [2]string{"ada", "bob"}, WithClock(func() time.Time { return *now }))
}

// fillRows packs the given rows of a player's board, leaving one column open.
func fillRows(m *Match, idx, gapCol int, rows ...int) {
	p := m.players[idx]
	for _, row := range rows {
		for col := 0; col < BoardWidth; col++ {
			if col != gapCol {
				p.board[row][col] = KindO
			}
		}
	}
}

// dropVerticalI drops a vertical I piece down the given column.
func dropVerticalI(m *Match, idx, col int) {
	m.players[idx].active = activePiece{kind: KindI, rotation: 1, row: 0, col: col}
	m.Apply(idx, InputHardDrop)
}

func TestFourRowClearOutscoresSmallerClears(t *testing.T) {
	now := time.Unix(1000, 0)

	quad := newTestMatch(&now)
	fillRows(quad, 0, 0, 16, 17, 18, 19)
	dropVerticalI(quad, 0, 0)
	quadScore := quad.players[0].score
	if quad.players[0].lines != 4 {
		t.Fatalf("expected 4 cleared lines, got %d", quad.players[0].lines)
	}

	for clears := 1; clears <= 3; clears++ {
		m := newTestMatch(&now)
		rows := make([]int, 0, clears)
		for i := 0; i < clears; i++ {
			rows = append(rows, BoardHeight-1-i)
		}
		fillRows(m, 0, 0, rows...)
		dropVerticalI(m, 0, 0)
		if m.players[0].lines != clears {
			t.Fatalf("expected %d cleared lines, got %d", clears, m.players[0].lines)
		}
		if m.players[0].score >= quadScore {
			t.Fatalf("%d-row clear scored %d, not below the 4-row %d", clears, m.players[0].score, quadScore)
		}
	}
}

func TestClearCompactsStackDown(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newTestMatch(&now)
	p := m.players[0]
	// A lone block above a full-except-gap bottom row must fall one row.
	p.board[18][5] = KindT
	fillRows(m, 0, 0, 19)
	dropVerticalI(m, 0, 0)

	if p.board[18][5] != KindNone || p.board[19][5] != KindT {
		t.Fatalf("stack did not compact: row18=%v row19=%v", p.board[18][5], p.board[19][5])
	}
}

func TestChargeGrantedAtTwoCumulativeLines(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newTestMatch(&now)

	fillRows(m, 0, 0, 19)
	dropVerticalI(m, 0, 0)
	if got := m.players[0].charges(); got != 0 {
		t.Fatalf("one line must not grant a charge, got %d", got)
	}

	fillRows(m, 0, 0, 19)
	dropVerticalI(m, 0, 0)
	if got := m.players[0].charges(); got != 1 {
		t.Fatalf("two cumulative lines must grant one charge, got %d", got)
	}

	//1.- Spend it, then verify a third line does not re-grant.
	m.Apply(0, InputFlash)
	if got := m.players[0].charges(); got != 0 {
		t.Fatalf("flash must consume the charge, got %d", got)
	}
	fillRows(m, 0, 0, 19)
	dropVerticalI(m, 0, 0)
	if got := m.players[0].charges(); got != 0 {
		t.Fatalf("third line must not re-grant, got %d", got)
	}
	fillRows(m, 0, 0, 19)
	dropVerticalI(m, 0, 0)
	if got := m.players[0].charges(); got != 1 {
		t.Fatalf("fourth line must grant the second charge, got %d", got)
	}
}

func TestFrozenInputHasNoEffect(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newTestMatch(&now)
	p := m.players[1]
	p.frozenUntil = now.Add(freezeDuration)

	before := p.active
	m.Apply(1, InputLeft)
	m.Apply(1, InputRotateCW)
	m.Apply(1, InputHardDrop)
	if p.active != before {
		t.Fatalf("frozen input moved the piece: %+v -> %+v", before, p.active)
	}

	//1.- Freeze gates input only: gravity keeps pulling the piece down, so
	// the victim drops uncontrolled instead of sitting the window out.
	m.Tick()
	if p.active.row != before.row+1 {
		t.Fatalf("gravity paused during freeze: row %d -> %d", before.row, p.active.row)
	}

	//2.- Once the freeze lapses, input applies again.
	now = now.Add(freezeDuration + time.Millisecond)
	m.Apply(1, InputLeft)
	if p.active.col != before.col-1 {
		t.Fatalf("input did not resume after thaw: col=%d", p.active.col)
	}
}

func TestFlashSkipsAlreadyFrozenOpponent(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newTestMatch(&now)
	m.players[0].lines = 2 // one charge available
	m.players[1].frozenUntil = now.Add(time.Second)

	m.Apply(0, InputFlash)
	if m.players[0].used != 0 {
		t.Fatalf("flash against a frozen opponent must not consume the charge")
	}
	if got := m.players[1].frozenUntil; got != now.Add(time.Second) {
		t.Fatalf("freeze window must not be extended, got %v", got)
	}

	now = now.Add(2 * time.Second)
	m.Apply(0, InputFlash)
	if m.players[0].used != 1 {
		t.Fatalf("flash against a thawed opponent must consume the charge")
	}
	if m.FreezeRemaining(1) != freezeDuration {
		t.Fatalf("unexpected freeze window: %v", m.FreezeRemaining(1))
	}
}

func TestHoldOncePerDrop(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newTestMatch(&now)
	p := m.players[0]

	first := p.active.kind
	m.Apply(0, InputHold)
	if p.hold != first {
		t.Fatalf("hold did not bank the active piece")
	}
	banked := p.hold
	m.Apply(0, InputHold)
	if p.hold != banked {
		t.Fatalf("second hold before locking must be ignored")
	}

	//1.- Locking a piece re-arms the hold and swaps the banked piece back in.
	m.Apply(0, InputHardDrop)
	m.Apply(0, InputHold)
	if !p.holdUsed {
		t.Fatalf("hold was not re-armed after the drop")
	}
	if p.active.kind != first {
		t.Fatalf("swap did not return the banked piece: got %c want %c", p.active.kind, first)
	}
}

func TestSpawnCollisionKillsPlayer(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newTestMatch(&now)
	p := m.players[0]
	// Brick up the spawn rows, leaving a gap so no row clears.
	for row := 0; row < 2; row++ {
		for col := 0; col < BoardWidth-1; col++ {
			p.board[row][col] = KindO
		}
	}
	p.active = activePiece{kind: KindI, rotation: 1, row: 4, col: 0}
	m.Apply(0, InputHardDrop)

	if p.alive {
		t.Fatalf("spawn into a full stack must kill the player")
	}
	over, winner := m.Over()
	if !over || winner != 1 {
		t.Fatalf("expected bob to win by survival, over=%v winner=%d", over, winner)
	}
}

func TestBagIsDeterministicPerSeed(t *testing.T) {
	a, b := NewBag(7), NewBag(7)
	for i := 0; i < 50; i++ {
		if got, want := a.Draw(), b.Draw(); got != want {
			t.Fatalf("draw %d diverged: %c vs %c", i, got, want)
		}
	}
	if NewBag(7).Draw() == KindNone {
		t.Fatalf("bag dealt the zero kind")
	}
}

func TestSnapshotReportsClearsOnce(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newTestMatch(&now)
	fillRows(m, 0, 0, 19)
	dropVerticalI(m, 0, 0)

	snap := m.Snapshot()
	if len(snap.Players[0].Cleared) != 1 {
		t.Fatalf("expected one cleared row in snapshot, got %v", snap.Players[0].Cleared)
	}
	snap = m.Snapshot()
	if len(snap.Players[0].Cleared) != 0 {
		t.Fatalf("cleared rows must be reported exactly once, got %v", snap.Players[0].Cleared)
	}
}
