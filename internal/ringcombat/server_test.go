package ringcombat

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"gamehall/lobby/internal/proto"
)

type testClient struct {
	t    *testing.T
	conn *proto.Conn
}

func dialMatch(t *testing.T, addr, user string) *testClient {
	t.Helper()
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn := proto.NewConn(raw)
	if err := conn.WriteJSON(Message{Type: MsgHello, User: user}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	return &testClient{t: t, conn: conn}
}

func (c *testClient) read() Message {
	c.t.Helper()
	var msg Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return msg
}

func (c *testClient) expect(kind string) Message {
	c.t.Helper()
	msg := c.read()
	if msg.Type != kind {
		c.t.Fatalf("expected %s, got %s (%+v)", kind, msg.Type, msg)
	}
	return msg
}

func TestServerRunsTwoSeatMatch(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := NewServer(ServerConfig{
		MinSeats:     2,
		MaxSeats:     2,
		HelloWindow:  time.Second,
		SeatingGrace: 50 * time.Millisecond,
		Logger:       zap.NewNop(),
	})

	type outcome struct {
		summary Summary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		summary, err := server.Run(context.Background(), ln)
		done <- outcome{summary, err}
	}()

	//1.- A bare connect-and-close mimics the launcher's readiness probe and
	// must not take a seat.
	probe, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("probe dial: %v", err)
	}
	_ = probe.Close()

	ada := dialMatch(t, ln.Addr().String(), "ada")
	bob := dialMatch(t, ln.Addr().String(), "bob")

	//2.- Seat order decides who attacks first, so script around the roles.
	assignAda := ada.expect(MsgAssign)
	assignBob := bob.expect(MsgAssign)
	first, second := ada, bob
	if assignAda.Role == "B" {
		first, second = bob, ada
		assignAda, assignBob = assignBob, assignAda
	}
	if assignAda.Role != "A" || assignBob.Role != "B" {
		t.Fatalf("unexpected roles: %q %q", assignAda.Role, assignBob.Role)
	}
	if len(assignAda.Players) != 2 {
		t.Fatalf("assign missing seating order: %+v", assignAda)
	}
	firstName, secondName := assignAda.Players[0], assignAda.Players[1]

	if err := first.conn.WriteJSON(Message{Type: MsgBoard, Board: boardWithShip("S", [2]int{0, 0})}); err != nil {
		t.Fatalf("first board: %v", err)
	}
	if err := second.conn.WriteJSON(Message{Type: MsgBoard, Board: boardWithShip("S", [2]int{9, 9})}); err != nil {
		t.Fatalf("second board: %v", err)
	}

	first.expect(MsgYourTurn)
	row, col := 9, 9
	if err := first.conn.WriteJSON(Message{Type: MsgAttack, Row: &row, Col: &col}); err != nil {
		t.Fatalf("attack: %v", err)
	}
	result := first.expect(MsgResult)
	if result.Result != string(OutcomeHit) {
		t.Fatalf("expected HIT, got %s", result.Result)
	}
	second.expect(MsgIncoming)

	first.expect(MsgWin)
	lose := second.expect(MsgLose)
	if lose.Winner != firstName {
		t.Fatalf("unexpected winner name: %q", lose.Winner)
	}

	out := <-done
	if out.err != nil {
		t.Fatalf("run: %v", out.err)
	}
	if len(out.summary.Winners) != 1 || out.summary.Winners[0] != firstName {
		t.Fatalf("unexpected winners: %v", out.summary.Winners)
	}
	if len(out.summary.Losers) != 1 || out.summary.Losers[0] != secondName {
		t.Fatalf("unexpected losers: %v", out.summary.Losers)
	}
}

func TestServerMatchmakingTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := NewServer(ServerConfig{
		MinSeats:      2,
		MaxSeats:      2,
		HelloWindow:   200 * time.Millisecond,
		SeatingWindow: 150 * time.Millisecond,
		Logger:        zap.NewNop(),
	})
	if _, err := server.Run(context.Background(), ln); err != ErrMatchmaking {
		t.Fatalf("expected ErrMatchmaking, got %v", err)
	}
}
