package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the lobby listens on for framed clients.
	DefaultAddr = ":5555"
	// DefaultAdminAddr is the default address for the HTTP admin API.
	DefaultAdminAddr = ":8070"
	// DefaultMaxFrameBytes limits inbound framed message size.
	DefaultMaxFrameBytes = 1 << 20
	// DefaultIdleTimeout is the dead-peer detection window for framed sockets.
	DefaultIdleTimeout = 5 * time.Minute

	// DefaultProbeInterval controls how frequently the launcher probes a match port.
	DefaultProbeInterval = 250 * time.Millisecond
	// DefaultProbeDeadline bounds the overall readiness wait for a launched match.
	DefaultProbeDeadline = 6 * time.Second

	// DefaultRoomTTL controls how long finished rooms linger before being reaped.
	DefaultRoomTTL = 10 * time.Minute
	// DefaultReconnectGrace keeps an account marked online briefly after a disconnect.
	DefaultReconnectGrace = 15 * time.Second

	// DefaultCatalogPath is where game manifests are read from.
	DefaultCatalogPath = "games.json"
	// DefaultResultsDir is where match result journals are written.
	DefaultResultsDir = "results"

	// DefaultLogLevel controls verbosity for lobby logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "lobby.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the lobby daemon.
type Config struct {
	Address        string
	AdminAddress   string
	MaxFrameBytes  int
	IdleTimeout    time.Duration
	ProbeInterval  time.Duration
	ProbeDeadline  time.Duration
	RoomTTL        time.Duration
	ReconnectGrace time.Duration
	CatalogPath    string
	ResultsDir     string
	Logging        LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the lobby configuration from environment variables, applying sane defaults
// and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:        getString("LOBBY_ADDR", DefaultAddr),
		AdminAddress:   getString("LOBBY_ADMIN_ADDR", DefaultAdminAddr),
		MaxFrameBytes:  DefaultMaxFrameBytes,
		IdleTimeout:    DefaultIdleTimeout,
		ProbeInterval:  DefaultProbeInterval,
		ProbeDeadline:  DefaultProbeDeadline,
		RoomTTL:        DefaultRoomTTL,
		ReconnectGrace: DefaultReconnectGrace,
		CatalogPath:    getString("LOBBY_CATALOG_PATH", DefaultCatalogPath),
		ResultsDir:     getString("LOBBY_RESULTS_DIR", DefaultResultsDir),
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("LOBBY_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("LOBBY_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("LOBBY_MAX_FRAME_BYTES")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("LOBBY_MAX_FRAME_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxFrameBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LOBBY_IDLE_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("LOBBY_IDLE_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.IdleTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LOBBY_PROBE_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("LOBBY_PROBE_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.ProbeInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LOBBY_PROBE_DEADLINE")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("LOBBY_PROBE_DEADLINE must be a positive duration, got %q", raw))
		} else {
			cfg.ProbeDeadline = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LOBBY_ROOM_TTL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("LOBBY_ROOM_TTL must be a positive duration, got %q", raw))
		} else {
			cfg.RoomTTL = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LOBBY_RECONNECT_GRACE")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			problems = append(problems, fmt.Sprintf("LOBBY_RECONNECT_GRACE must be a non-negative duration, got %q", raw))
		} else {
			cfg.ReconnectGrace = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LOBBY_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("LOBBY_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LOBBY_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("LOBBY_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LOBBY_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("LOBBY_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("LOBBY_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("LOBBY_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
