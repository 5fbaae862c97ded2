package blockfall

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"gamehall/lobby/internal/proto"
	"gamehall/lobby/internal/simulation"
)

// Wire message types exchanged with match clients.
const (
	MsgHello    = "HELLO"
	MsgWelcome  = "WELCOME"
	MsgSnapshot = "SNAPSHOT"
	MsgInput    = "INPUT"
	MsgResult   = "RESULT"
	MsgError    = "ERROR"
)

// Connection modes announced in HELLO.
const (
	ModePlay  = "play"
	ModeWatch = "watch"
)

// seatRole labels the two seats P1 and P2 in the WELCOME handshake.
func seatRole(seat int) string {
	return []string{"P1", "P2"}[seat]
}

// ErrMatchmaking signals that both seats never filled.
var ErrMatchmaking = errors.New("matchmaking timed out before both seats filled")

// Message is the framed JSON envelope used on match sockets. WELCOME goes
// out once both seats fill, so it can carry the seed and both names.
type Message struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Mode string `json:"mode,omitempty"`

	Role    string `json:"role,omitempty"`
	Seed    int64  `json:"seed,omitempty"`
	YouName string `json:"you_name,omitempty"`
	OppName string `json:"opp_name,omitempty"`

	Input string `json:"input,omitempty"`
	Msg   string `json:"msg,omitempty"`

	You        *PlayerView  `json:"you,omitempty"`
	Opp        *PlayerView  `json:"opp,omitempty"`
	Players    []PlayerView `json:"players,omitempty"`
	Spectators []string     `json:"spectators,omitempty"`
	Winners    []string     `json:"winners,omitempty"`
	Losers     []string     `json:"losers,omitempty"`
}

// ServerConfig tunes a blockfall match server.
type ServerConfig struct {
	Seed int64
	// HelloWindow bounds how long a fresh connection has to identify itself.
	HelloWindow time.Duration
	// SeatingWindow bounds how long the server waits for both players.
	SeatingWindow time.Duration
	// TickInterval is the fixed simulation step.
	TickInterval time.Duration

	Logger *zap.Logger
}

func (c *ServerConfig) normalise() {
	if c.HelloWindow <= 0 {
		c.HelloWindow = 3 * time.Second
	}
	if c.SeatingWindow <= 0 {
		c.SeatingWindow = 60 * time.Second
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Summary reports the final standings of one duel.
type Summary struct {
	Winners []string
	Losers  []string
	Players []string
}

// Server seats two players plus any spectators and drives the tick loop.
type Server struct {
	cfg ServerConfig
	log *zap.Logger

	mu         sync.Mutex
	match      *Match
	players    [2]*proto.Conn
	names      [2]string
	watchers   map[*proto.Conn]string
	matchReady chan struct{}
}

// NewServer builds a match server with normalised configuration.
func NewServer(cfg ServerConfig) *Server {
	cfg.normalise()
	return &Server{
		cfg:        cfg,
		log:        cfg.Logger,
		watchers:   make(map[*proto.Conn]string),
		matchReady: make(chan struct{}),
	}
}

// Run accepts connections, waits for both seats, then ticks the duel to its
// conclusion and returns the standings. The listener stays open for the
// whole match so spectators can join late.
func (s *Server) Run(ctx context.Context, ln net.Listener) (Summary, error) {
	acceptCtx, stopAccepting := context.WithCancel(ctx)
	defer stopAccepting()
	go s.acceptLoop(acceptCtx, ln)
	defer ln.Close()

	var names [2]string
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case <-time.After(s.cfg.SeatingWindow):
		s.broadcastError("not enough players")
		return Summary{}, ErrMatchmaking
	case <-s.matchReady:
	}

	s.mu.Lock()
	match := s.match
	s.mu.Unlock()
	for i := range names {
		names[i] = match.PlayerName(i)
	}

	//1.- The tick loop owns all writes; input readers only touch the match lock.
	finished := make(chan struct{})
	loopCtx, stopLoop := context.WithCancel(ctx)
	loop := simulation.NewLoop(s.cfg.TickInterval, func(time.Duration) {
		match.Tick()
		s.broadcastState(match.Snapshot())
		if over, _ := match.Over(); over {
			select {
			case <-finished:
			default:
				close(finished)
			}
		}
	})
	loop.Start(loopCtx)

	select {
	case <-ctx.Done():
		stopLoop()
		loop.Stop()
		return Summary{}, ctx.Err()
	case <-finished:
	}
	stopLoop()
	loop.Stop()

	summary := s.standings(match, names)
	s.broadcastResult(summary)
	s.closeAll()
	return summary, nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		raw, err := ln.Accept()
		if err != nil {
			return
		}
		go s.admit(ctx, raw)
	}
}

// admit reads the HELLO and routes the connection to a seat or the
// spectator gallery. Probes that close without a HELLO are discarded.
func (s *Server) admit(ctx context.Context, raw net.Conn) {
	conn := proto.NewConn(raw)
	_ = raw.SetReadDeadline(time.Now().Add(s.cfg.HelloWindow))
	var hello Message
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != MsgHello || hello.User == "" {
		_ = conn.Close()
		return
	}
	_ = raw.SetReadDeadline(time.Time{})

	if hello.Mode == ModeWatch {
		s.admitWatcher(ctx, conn, hello.User)
		return
	}

	s.mu.Lock()
	seat := -1
	for i, existing := range s.players {
		if existing == nil {
			seat = i
			break
		}
	}
	if seat < 0 || s.match != nil {
		s.mu.Unlock()
		//1.- Both seats are taken: late players are turned away, not queued.
		_ = conn.WriteJSON(Message{Type: MsgError, Msg: "match is full"})
		_ = conn.Close()
		return
	}
	s.players[seat] = conn
	s.names[seat] = hello.User
	bothSeated := s.players[0] != nil && s.players[1] != nil
	var earlyWatchers []*proto.Conn
	if bothSeated {
		s.match = NewMatch(s.cfg.Seed, s.names)
		//2.- Watchers who arrived before the second player are registered now
		// and collected so they receive the same WELCOME as the players.
		for watcher, name := range s.watchers {
			s.match.AddSpectator(name)
			earlyWatchers = append(earlyWatchers, watcher)
		}
	}
	s.mu.Unlock()
	s.log.Info("seated player", zap.String("user", hello.User), zap.Int("seat", seat))

	if bothSeated {
		//3.- WELCOME announces both names and the shared seed, and must land
		// before the first snapshot, so it goes out before matchReady opens.
		for i, player := range s.players {
			if player == nil {
				continue
			}
			_ = player.WriteJSON(Message{
				Type:    MsgWelcome,
				Role:    seatRole(i),
				Seed:    s.cfg.Seed,
				YouName: s.names[i],
				OppName: s.names[1-i],
			})
		}
		for _, watcher := range earlyWatchers {
			_ = watcher.WriteJSON(s.spectatorWelcome())
		}
		close(s.matchReady)
	}
	s.readInputs(ctx, conn, seat)
}

func (s *Server) admitWatcher(ctx context.Context, conn *proto.Conn, name string) {
	s.mu.Lock()
	match := s.match
	if match != nil {
		//1.- The match already started, so this watcher gets its WELCOME now;
		// earlier arrivals are welcomed when the second seat fills. Written
		// before the registration below so no snapshot can overtake it.
		match.AddSpectator(name)
		_ = conn.WriteJSON(s.spectatorWelcome())
	}
	s.watchers[conn] = name
	s.mu.Unlock()
	s.log.Info("spectator joined", zap.String("user", name))

	//2.- Block on reads purely to notice the disconnect.
	var msg Message
	for conn.ReadJSON(&msg) == nil {
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
	s.mu.Lock()
	delete(s.watchers, conn)
	match = s.match
	s.mu.Unlock()
	if match != nil {
		match.RemoveSpectator(name)
	}
	_ = conn.Close()
}

// readInputs pumps one player's inputs into the match until the connection
// drops, which forfeits the seat.
func (s *Server) readInputs(ctx context.Context, conn *proto.Conn, seat int) {
	//1.- Abandon the wait when the run context ends, otherwise a seated
	// player whose opponent never shows would pin this goroutine forever.
	select {
	case <-s.matchReady:
	case <-ctx.Done():
		return
	}
	s.mu.Lock()
	match := s.match
	s.mu.Unlock()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				if over, _ := match.Over(); !over {
					s.log.Info("player disconnected", zap.Int("seat", seat))
					match.Forfeit(seat)
				}
			}
			return
		}
		if msg.Type == MsgInput {
			match.Apply(seat, Input(msg.Input))
		}
	}
}

// broadcastState sends viewer-specific slices of the snapshot. Sends are
// best effort so a slow client never stalls the tick.
func (s *Server) broadcastState(snap Snapshot) {
	s.mu.Lock()
	players := s.players
	watchers := make([]*proto.Conn, 0, len(s.watchers))
	for conn := range s.watchers {
		watchers = append(watchers, conn)
	}
	s.mu.Unlock()

	for i, conn := range players {
		if conn == nil {
			continue
		}
		you, opp := snap.Players[i], snap.Players[1-i]
		_ = conn.WriteJSON(Message{Type: MsgSnapshot, You: &you, Opp: &opp, Spectators: snap.Spectators})
	}
	for _, conn := range watchers {
		_ = conn.WriteJSON(Message{Type: MsgSnapshot, Players: snap.Players[:], Spectators: snap.Spectators})
	}
}

// spectatorWelcome mirrors the players' WELCOME from seat zero's viewpoint.
// Spectators carry no role. Only called once both names are settled.
func (s *Server) spectatorWelcome() Message {
	return Message{
		Type:    MsgWelcome,
		Seed:    s.cfg.Seed,
		YouName: s.names[0],
		OppName: s.names[1],
	}
}

func (s *Server) broadcastResult(summary Summary) {
	msg := Message{Type: MsgResult, Winners: summary.Winners, Losers: summary.Losers}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.players {
		if conn != nil {
			_ = conn.WriteJSON(msg)
		}
	}
	for conn := range s.watchers {
		_ = conn.WriteJSON(msg)
	}
}

func (s *Server) broadcastError(reason string) {
	msg := Message{Type: MsgError, Msg: reason}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.players {
		if conn != nil {
			_ = conn.WriteJSON(msg)
			_ = conn.Close()
		}
	}
	for conn := range s.watchers {
		_ = conn.WriteJSON(msg)
		_ = conn.Close()
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.players {
		if conn != nil {
			_ = conn.Close()
		}
	}
	for conn := range s.watchers {
		_ = conn.Close()
	}
}

func (s *Server) standings(match *Match, names [2]string) Summary {
	summary := Summary{Players: names[:]}
	_, winner := match.Over()
	for i, name := range names {
		if i == winner {
			summary.Winners = append(summary.Winners, name)
		} else {
			summary.Losers = append(summary.Losers, name)
		}
	}
	return summary
}
