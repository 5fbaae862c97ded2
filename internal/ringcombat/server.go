package ringcombat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"gamehall/lobby/internal/proto"
)

// Wire message types exchanged with match clients.
const (
	MsgHello    = "HELLO"
	MsgAssign   = "ASSIGN"
	MsgBoard    = "BOARD"
	MsgYourTurn = "YOUR_TURN"
	MsgAttack   = "ATTACK"
	MsgResult   = "RESULT"
	MsgIncoming = "INCOMING"
	MsgWin      = "WIN"
	MsgLose     = "LOSE"
	MsgError    = "ERROR"
)

// ErrMatchmaking signals that seating never gathered enough players.
var ErrMatchmaking = errors.New("matchmaking timed out before enough seats filled")

// Message is the framed JSON envelope used on match sockets.
type Message struct {
	Type   string `json:"type"`
	User   string `json:"user,omitempty"`
	Role   string `json:"role,omitempty"`
	Board  Board  `json:"board,omitempty"`
	Row    *int   `json:"row,omitempty"`
	Col    *int   `json:"col,omitempty"`
	Result string `json:"result,omitempty"`
	Winner string `json:"winner,omitempty"`
	Reason string `json:"reason,omitempty"`

	Players []string `json:"players,omitempty"`
}

// ServerConfig tunes the seating and handshake windows of a match server.
type ServerConfig struct {
	// MinSeats and MaxSeats bound how many players the match admits.
	MinSeats int
	MaxSeats int
	// HelloWindow is how long a fresh connection has to identify itself
	// before it is treated as a liveness probe and discarded.
	HelloWindow time.Duration
	// SeatingWindow caps the whole seating phase. SeatingGrace keeps the
	// door open briefly after MinSeats is reached so more players can join.
	SeatingWindow time.Duration
	SeatingGrace  time.Duration
	// BoardWindow is how long each seat has to submit its layout.
	BoardWindow time.Duration

	Logger *zap.Logger
}

func (c *ServerConfig) normalise() {
	if c.MinSeats < 2 {
		c.MinSeats = 2
	}
	if c.MaxSeats < c.MinSeats {
		c.MaxSeats = c.MinSeats
	}
	if c.HelloWindow <= 0 {
		c.HelloWindow = 3 * time.Second
	}
	if c.SeatingWindow <= 0 {
		c.SeatingWindow = 60 * time.Second
	}
	if c.SeatingGrace <= 0 {
		c.SeatingGrace = 5 * time.Second
	}
	if c.BoardWindow <= 0 {
		c.BoardWindow = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Summary reports the final standings of one match.
type Summary struct {
	Winners []string
	Losers  []string
	Players []string
}

// Server seats clients from a listener, runs the ring combat turn loop, and
// returns the final standings.
type Server struct {
	cfg ServerConfig
	log *zap.Logger
}

// NewServer builds a match server with normalised configuration.
func NewServer(cfg ServerConfig) *Server {
	cfg.normalise()
	return &Server{cfg: cfg, log: cfg.Logger}
}

type seatConn struct {
	name string
	conn *proto.Conn
}

// Run drives one match on the listener from seating through the final
// WIN/LOSE broadcast. The listener is closed once seating ends.
func (s *Server) Run(ctx context.Context, ln net.Listener) (Summary, error) {
	seats, err := s.seat(ctx, ln)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		for _, seat := range seats {
			_ = seat.conn.Close()
		}
	}()

	names := make([]string, len(seats))
	for i, seat := range seats {
		names[i] = seat.name
	}
	match, err := NewMatch(names)
	if err != nil {
		return Summary{}, err
	}

	//1.- Announce the seating so every client knows its role and the ring order.
	for i, seat := range seats {
		assign := Message{Type: MsgAssign, Role: seatRole(i), Players: names}
		if err := seat.conn.WriteJSON(assign); err != nil {
			s.log.Warn("assign failed, dropping seat", zap.String("user", seat.name), zap.Error(err))
			match.DropSeat(i)
		}
	}

	s.collectBoards(match, seats)
	summary := s.turnLoop(match, seats)
	summary.Players = names
	return summary, nil
}

// seat accepts connections until the seat list is settled. Connections that
// never send HELLO inside the hello window are treated as probes and closed.
func (s *Server) seat(ctx context.Context, ln net.Listener) ([]seatConn, error) {
	defer ln.Close()

	type arrival struct {
		name string
		conn *proto.Conn
	}
	arrivals := make(chan arrival)
	go func() {
		for {
			raw, err := ln.Accept()
			if err != nil {
				return
			}
			go func(raw net.Conn) {
				conn := proto.NewConn(raw)
				_ = raw.SetReadDeadline(time.Now().Add(s.cfg.HelloWindow))
				var hello Message
				if err := conn.ReadJSON(&hello); err != nil || hello.Type != MsgHello || hello.User == "" {
					//1.- No HELLO in time: a lobby probe or a broken client, not a player.
					_ = conn.Close()
					return
				}
				_ = raw.SetReadDeadline(time.Time{})
				select {
				case arrivals <- arrival{name: hello.User, conn: conn}:
				case <-ctx.Done():
					_ = conn.Close()
				}
			}(raw)
		}
	}()

	deadline := time.NewTimer(s.cfg.SeatingWindow)
	defer deadline.Stop()
	var grace <-chan time.Time

	var seats []seatConn
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case a := <-arrivals:
			seats = append(seats, seatConn{name: a.name, conn: a.conn})
			s.log.Info("seated player", zap.String("user", a.name), zap.Int("seats", len(seats)))
			if len(seats) == s.cfg.MaxSeats {
				return seats, nil
			}
			if len(seats) == s.cfg.MinSeats {
				//2.- Enough to play: hold the door open briefly for stragglers.
				timer := time.NewTimer(s.cfg.SeatingGrace)
				defer timer.Stop()
				grace = timer.C
			}
		case <-grace:
			return seats, nil
		case <-deadline.C:
			if len(seats) >= s.cfg.MinSeats {
				return seats, nil
			}
			for _, seat := range seats {
				_ = seat.conn.WriteJSON(Message{Type: MsgError, Reason: "not enough players"})
				_ = seat.conn.Close()
			}
			return nil, ErrMatchmaking
		}
	}
}

// collectBoards gathers each seat's layout, dropping seats that fail to
// deliver a valid board inside the window.
func (s *Server) collectBoards(match *Match, seats []seatConn) {
	for i, seat := range seats {
		_ = seat.conn.Raw().SetReadDeadline(time.Now().Add(s.cfg.BoardWindow))
		var msg Message
		err := seat.conn.ReadJSON(&msg)
		if err == nil && msg.Type == MsgBoard {
			err = match.SetBoard(i, msg.Board)
		} else if err == nil {
			err = fmt.Errorf("expected %s, got %s", MsgBoard, msg.Type)
		}
		if err != nil {
			s.log.Warn("board rejected, dropping seat", zap.String("user", seat.name), zap.Error(err))
			_ = seat.conn.WriteJSON(Message{Type: MsgError, Reason: err.Error()})
			match.DropSeat(i)
			continue
		}
		_ = seat.conn.Raw().SetReadDeadline(time.Time{})
	}
}

// turnLoop runs the synchronous attack cycle until the match concludes.
func (s *Server) turnLoop(match *Match, seats []seatConn) Summary {
	for {
		if over, winner := match.Over(); over {
			return s.broadcastOutcome(match, seats, winner)
		}
		attacker := match.Attacker()
		if attacker < 0 {
			return Summary{}
		}
		seat := seats[attacker]

		if err := seat.conn.WriteJSON(Message{Type: MsgYourTurn}); err != nil {
			match.DropSeat(attacker)
			continue
		}
		var msg Message
		if err := seat.conn.ReadJSON(&msg); err != nil {
			//1.- A vanished attacker leaves the ring; the cursor re-normalises
			// and the loop carries on with the surviving seats.
			s.log.Info("seat disconnected", zap.String("user", seat.name))
			match.DropSeat(attacker)
			continue
		}
		if msg.Type != MsgAttack || msg.Row == nil || msg.Col == nil {
			_ = seat.conn.WriteJSON(Message{Type: MsgError, Reason: "expected ATTACK with row and col"})
			continue
		}

		result, err := match.Attack(*msg.Row, *msg.Col)
		if err != nil {
			return s.broadcastOutcome(match, seats, -1)
		}
		_ = seat.conn.WriteJSON(Message{
			Type: MsgResult, Result: string(result.Outcome), Row: msg.Row, Col: msg.Col,
		})
		if result.Defender >= 0 && result.Outcome != OutcomeRepeat {
			_ = seats[result.Defender].conn.WriteJSON(Message{
				Type: MsgIncoming, Result: string(result.Outcome), Row: msg.Row, Col: msg.Col,
			})
		}
	}
}

// broadcastOutcome tells every seat how the match ended and builds the summary.
func (s *Server) broadcastOutcome(match *Match, seats []seatConn, winner int) Summary {
	var summary Summary
	winnerName := match.SeatName(winner)
	for i, seat := range seats {
		if i == winner {
			summary.Winners = append(summary.Winners, seat.name)
			_ = seat.conn.WriteJSON(Message{Type: MsgWin})
			continue
		}
		summary.Losers = append(summary.Losers, seat.name)
		_ = seat.conn.WriteJSON(Message{Type: MsgLose, Winner: winnerName})
	}
	return summary
}

func seatRole(i int) string {
	return string(rune('A' + i))
}
