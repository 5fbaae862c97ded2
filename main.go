// Command lobbyd runs the game hall lobby daemon: the framed TCP control
// socket for clients and match processes, plus the HTTP admin API.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gamehall/lobby/internal/accounts"
	"gamehall/lobby/internal/catalog"
	"gamehall/lobby/internal/config"
	"gamehall/lobby/internal/directory"
	"gamehall/lobby/internal/events"
	"gamehall/lobby/internal/httpapi"
	"gamehall/lobby/internal/launcher"
	"gamehall/lobby/internal/logging"
	"gamehall/lobby/internal/notify"
	"gamehall/lobby/internal/results"
	"gamehall/lobby/internal/rooms"
	"gamehall/lobby/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		os.Stderr.WriteString("logging setup error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	games, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		logger.Fatal("load game catalog", zap.String("path", cfg.CatalogPath), zap.Error(err))
	}

	journal, err := results.Open(cfg.ResultsDir)
	if err != nil {
		logger.Fatal("open results journal", zap.String("dir", cfg.ResultsDir), zap.Error(err))
	}
	defer func() { _ = journal.Close() }()

	host, _, err := net.SplitHostPort(cfg.Address)
	if err != nil || host == "" {
		host = "127.0.0.1"
	}

	dir := directory.New(logger)
	bus := events.NewBus()
	store := accounts.New(cfg.ReconnectGrace)
	registry := rooms.NewRegistry(games, rooms.WithRoomTTL(cfg.RoomTTL))
	srv := server.New(server.Deps{
		Accounts: store,
		Registry: registry,
		Games:    games,
		Launcher: launcher.New(games, host, logger,
			launcher.WithProbeTiming(cfg.ProbeInterval, cfg.ProbeDeadline)),
		Directory:     dir,
		Fanout:        notify.New(dir, logger),
		Bus:           bus,
		Results:       journal,
		MaxFrameBytes: cfg.MaxFrameBytes,
		IdleTimeout:   cfg.IdleTimeout,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		logger.Fatal("bind lobby address", zap.String("addr", cfg.Address), zap.Error(err))
	}

	admin := &http.Server{
		Addr: cfg.AdminAddress,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Registry: registry,
			Games:    games,
			Accounts: store,
			Bus:      bus,
			Results:  journal,
			Logger:   logger,
		}),
	}
	go func() {
		logger.Info("admin api listening", zap.String("addr", cfg.AdminAddress))
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin api stopped", zap.Error(err))
		}
	}()

	logger.Info("lobby listening", zap.String("addr", cfg.Address))
	if err := srv.Serve(ctx, ln); err != nil && ctx.Err() == nil {
		logger.Error("lobby serve failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = admin.Shutdown(shutdownCtx)
	logger.Info("lobby shut down")
}
