// Package server runs the lobby control socket: one goroutine per framed TCP
// connection, dispatching JSON action envelopes against the registry,
// accounts, and launcher collaborators.
package server

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"gamehall/lobby/internal/accounts"
	"gamehall/lobby/internal/catalog"
	"gamehall/lobby/internal/directory"
	"gamehall/lobby/internal/events"
	"gamehall/lobby/internal/notify"
	"gamehall/lobby/internal/proto"
	"gamehall/lobby/internal/results"
	"gamehall/lobby/internal/rooms"
)

// Launcher is the match process surface the lobby depends on.
type Launcher interface {
	Launch(ctx context.Context, room rooms.Snapshot) (int, error)
	Stop(roomID int)
}

// ResultSink receives the final outcome of every finished match.
type ResultSink interface {
	Append(report results.Report) error
}

// Deps bundles the collaborators a lobby server wires together.
type Deps struct {
	Accounts  *accounts.Store
	Registry  *rooms.Registry
	Games     *catalog.Store
	Launcher  Launcher
	Directory *directory.Directory
	Fanout    *notify.Fanout
	Bus       *events.Bus
	Results   ResultSink

	MaxFrameBytes int
	IdleTimeout   time.Duration
	Logger        *zap.Logger
}

// Server accepts lobby connections and serves the action protocol.
type Server struct {
	deps Deps
	log  *zap.Logger
}

// New constructs a lobby server over the given collaborators.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{deps: deps, log: deps.Logger}
}

// session is the per-connection state: the authenticated identity and
// whether this socket is a background notifier rather than a primary.
type session struct {
	conn     *proto.Conn
	user     string
	notifier bool
}

// Serve accepts connections until the listener closes or the context is
// cancelled. Each connection gets its own goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handle(ctx, raw)
	}
}

func (s *Server) handle(ctx context.Context, raw net.Conn) {
	conn := proto.NewConn(raw,
		proto.WithMaxFrame(s.deps.MaxFrameBytes),
		proto.WithIdleTimeout(s.deps.IdleTimeout))
	sess := &session{conn: conn}
	defer s.teardown(sess)

	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			//1.- Framing and decode failures are protocol errors: drop the
			// connection rather than attempt to resynchronise the stream.
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("connection closed", zap.String("user", sess.user), zap.Error(err))
			}
			return
		}
		resp := s.dispatch(ctx, sess, env)
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

// teardown detaches the connection's directory handles and starts the
// offline grace window for primary connections.
func (s *Server) teardown(sess *session) {
	_ = sess.conn.Close()
	if sess.user == "" {
		return
	}
	s.deps.Directory.Detach(sess.user, sess.conn)
	if !sess.notifier {
		s.deps.Accounts.Disconnected(sess.user)
		s.log.Info("session ended", zap.String("user", sess.user))
	}
}
