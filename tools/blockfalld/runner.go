// Package blockfalld hosts one real-time falling-block duel: it binds the
// port the lobby assigned, ticks the match to completion, and reports the
// outcome back to the lobby.
package blockfalld

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"gamehall/lobby/internal/blockfall"
	"gamehall/lobby/internal/proto"
	"gamehall/lobby/internal/results"
)

// Options carries the launch parameters handed over by the lobby.
type Options struct {
	Host      string
	Port      int
	RoomID    int
	GameID    int
	Seed      int64
	LobbyAddr string
	Logger    *zap.Logger
}

// Run hosts the duel and reports the result. A matchmaking timeout is not an
// error worth a non-zero exit: the clients were already told.
func Run(ctx context.Context, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	addr := net.JoinHostPort(opts.Host, fmt.Sprintf("%d", opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	opts.Logger.Info("match listening",
		zap.String("addr", addr),
		zap.Int("room_id", opts.RoomID),
		zap.Int64("seed", opts.Seed))

	server := blockfall.NewServer(blockfall.ServerConfig{
		Seed:   opts.Seed,
		Logger: opts.Logger,
	})
	summary, err := server.Run(ctx, ln)
	if err != nil {
		if errors.Is(err, blockfall.ErrMatchmaking) {
			opts.Logger.Warn("matchmaking timed out", zap.Int("room_id", opts.RoomID))
			return nil
		}
		return err
	}

	report := results.Report{
		RoomID:  opts.RoomID,
		GameID:  opts.GameID,
		Winners: summary.Winners,
		Losers:  summary.Losers,
		Players: summary.Players,
	}
	if err := reportToLobby(opts.LobbyAddr, report); err != nil {
		opts.Logger.Error("result report failed", zap.Error(err))
		return err
	}
	opts.Logger.Info("match concluded",
		zap.Int("room_id", opts.RoomID),
		zap.Strings("winners", summary.Winners))
	return nil
}

// reportToLobby dials the lobby control socket and submits the framed
// report_result action.
func reportToLobby(addr string, report results.Report) error {
	if addr == "" {
		return nil
	}
	raw, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial lobby: %w", err)
	}
	conn := proto.NewConn(raw, proto.WithIdleTimeout(5*time.Second))
	defer conn.Close()

	payload, err := proto.MarshalEnvelope("report_result", report)
	if err != nil {
		return err
	}
	if err := conn.WriteFrame(payload); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	var resp proto.Response
	if err := conn.ReadJSON(&resp); err != nil {
		return fmt.Errorf("read report ack: %w", err)
	}
	if resp.Status != proto.StatusOK {
		return fmt.Errorf("lobby rejected report: %s", resp.Data)
	}
	return nil
}
