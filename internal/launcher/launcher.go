// Package launcher turns a waiting room into a running match process: it
// resolves the game manifest, allocates an ephemeral port, spawns the match
// binary, and polls the port until it accepts a TCP connection.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"gamehall/lobby/internal/catalog"
	"gamehall/lobby/internal/rooms"
)

// ErrFailedToListen signals that the spawned process never accepted a TCP
// connection within the readiness deadline.
var ErrFailedToListen = errors.New("match process failed to listen")

// Record tracks one spawned match process.
type Record struct {
	RoomID int
	Port   int
	Ready  bool
	cmd    *exec.Cmd
}

// Catalog is the manifest lookup surface the launcher depends on.
type Catalog interface {
	Lookup(gameID int) (catalog.Manifest, error)
}

// Launcher spawns and supervises match processes.
type Launcher struct {
	catalog       Catalog
	host          string
	probeInterval time.Duration
	probeDeadline time.Duration
	logger        *zap.Logger
	seed          func() int64
	allocPort     func(host string) (int, error)

	mu      sync.Mutex
	records map[int]*Record
}

// Option configures optional launcher behaviour.
type Option func(*Launcher)

// WithProbeTiming overrides the readiness poll interval and overall deadline.
func WithProbeTiming(interval, deadline time.Duration) Option {
	return func(l *Launcher) {
		if interval > 0 {
			l.probeInterval = interval
		}
		if deadline > 0 {
			l.probeDeadline = deadline
		}
	}
}

// WithSeedSource injects the match seed generator, primarily for tests.
func WithSeedSource(seed func() int64) Option {
	return func(l *Launcher) {
		if seed != nil {
			l.seed = seed
		}
	}
}

// WithPortAllocator overrides ephemeral port allocation, primarily for tests.
func WithPortAllocator(alloc func(host string) (int, error)) Option {
	return func(l *Launcher) {
		if alloc != nil {
			l.allocPort = alloc
		}
	}
}

// New constructs a launcher binding match processes to the given host.
func New(cat Catalog, host string, logger *zap.Logger, opts ...Option) *Launcher {
	if host == "" {
		host = "127.0.0.1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Launcher{
		catalog:       cat,
		host:          host,
		probeInterval: 250 * time.Millisecond,
		probeDeadline: 6 * time.Second,
		logger:        logger,
		seed:          func() int64 { return rand.Int63() },
		allocPort:     allocateFreePort,
		records:       make(map[int]*Record),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Launch resolves, spawns, and readiness-probes a match process for the room.
// It blocks the caller for up to the probe deadline and only reports success
// after the bound port has actually accepted a connection.
func (l *Launcher) Launch(ctx context.Context, room rooms.Snapshot) (int, error) {
	manifest, err := l.catalog.Lookup(room.GameID)
	if err != nil {
		return 0, err
	}

	port, err := l.allocPort(l.host)
	if err != nil {
		return 0, fmt.Errorf("allocate port: %w", err)
	}

	argv, err := catalog.Render(manifest, catalog.Vars{
		Host:   l.host,
		Port:   port,
		RoomID: room.ID,
		Seed:   l.seed(),
	})
	if err != nil {
		return 0, err
	}
	if len(argv) == 0 {
		return 0, fmt.Errorf("game %d has an empty launch command", room.GameID)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	//1.- Run from the package install path so relative paths in the command
	// template resolve against the game's own files.
	cmd.Dir = manifest.InstallPath
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn %q: %w", argv[0], err)
	}

	l.logger.Info("match process spawned",
		zap.Int("room_id", room.ID),
		zap.Int("game_id", room.GameID),
		zap.Int("port", port))

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	if err := l.probe(ctx, port, exited); err != nil {
		//2.- The process never listened: tear it down so no stale match strands
		// participants, then surface the failure to the start caller.
		_ = cmd.Process.Kill()
		l.logger.Warn("match process readiness failed",
			zap.Int("room_id", room.ID),
			zap.Int("port", port),
			zap.Error(err))
		return 0, err
	}

	record := &Record{RoomID: room.ID, Port: port, Ready: true, cmd: cmd}
	l.mu.Lock()
	l.records[room.ID] = record
	l.mu.Unlock()
	return port, nil
}

// Stop forcibly terminates the match process for a room, if one is tracked.
func (l *Launcher) Stop(roomID int) {
	l.mu.Lock()
	record, ok := l.records[roomID]
	delete(l.records, roomID)
	l.mu.Unlock()
	if ok && record.cmd != nil && record.cmd.Process != nil {
		_ = record.cmd.Process.Kill()
	}
}

// Running reports whether a ready match process is tracked for the room.
func (l *Launcher) Running(roomID int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[roomID]
	return ok && record.Ready
}

// probe dials the match port at the configured interval until it accepts a
// connection, the deadline elapses, or the process exits early.
func (l *Launcher) probe(ctx context.Context, port int, exited <-chan error) error {
	addr := net.JoinHostPort(l.host, fmt.Sprintf("%d", port))
	deadline := time.Now().Add(l.probeDeadline)
	ticker := time.NewTicker(l.probeInterval)
	defer ticker.Stop()

	for {
		conn, err := net.DialTimeout("tcp", addr, l.probeInterval)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrFailedToListen, addr, l.probeDeadline)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-exited:
			return fmt.Errorf("%w: process exited before listening: %v", ErrFailedToListen, err)
		case <-ticker.C:
		}
	}
}

// allocateFreePort asks the OS for an unused TCP port on the host.
func allocateFreePort(host string) (int, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address %T", listener.Addr())
	}
	return addr.Port, nil
}
