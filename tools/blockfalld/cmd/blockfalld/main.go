package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"gamehall/lobby/tools/blockfalld"
)

func main() {
	host := flag.String("host", "127.0.0.1", "Interface to bind the match socket on")
	port := flag.Int("port", 0, "Port assigned by the lobby")
	roomID := flag.Int("room-id", 0, "Lobby room identifier")
	gameID := flag.Int("game-id", 0, "Lobby game identifier")
	seed := flag.Int64("seed", 0, "Seed for the shared piece bag")
	lobbyAddr := flag.String("lobby-addr", "", "Lobby control address for the result report")
	flag.Parse()

	if *port == 0 {
		fmt.Fprintln(os.Stderr, "port flag is required")
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger error:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	err = blockfalld.Run(context.Background(), blockfalld.Options{
		Host:      *host,
		Port:      *port,
		RoomID:    *roomID,
		GameID:    *gameID,
		Seed:      *seed,
		LobbyAddr: *lobbyAddr,
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}
