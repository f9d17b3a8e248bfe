package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the simulation service listens on.
	DefaultAddr = ":47311"
	// DefaultScenePath points at the YAML scene description loaded on startup.
	DefaultScenePath = "scene.yaml"
	// DefaultTickHz controls how many simulation frames run per second.
	DefaultTickHz = 60.0
	// DefaultPingInterval controls the keepalive cadence for WebSocket sessions.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 1 << 16
	// DefaultMaxSessions bounds concurrent walker sessions. Zero disables the limit.
	DefaultMaxSessions = 64

	// DefaultInputMaxAge drops client frames whose capture timestamp is too old.
	DefaultInputMaxAge = 500 * time.Millisecond
	// DefaultInputMinInterval throttles how quickly a session may submit frames.
	DefaultInputMinInterval = 2 * time.Millisecond

	// DefaultResyncWindow bounds how frequently a session may request a resync.
	DefaultResyncWindow = 10 * time.Second
	// DefaultResyncBurst sets how many resync requests fit in one window.
	DefaultResyncBurst = 2

	// DefaultLogLevel controls verbosity for service logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "walkd.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 50
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 5
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the simulation service.
type Config struct {
	Address          string
	AllowedOrigins   []string
	ScenePath        string
	ViewerDir        string
	TickHz           float64
	MaxPayloadBytes  int64
	PingInterval     time.Duration
	MaxSessions      int
	TLSCertPath      string
	TLSKeyPath       string
	AuthSecret       string
	InputMaxAge      time.Duration
	InputMinInterval time.Duration
	ResyncWindow     time.Duration
	ResyncBurst      int
	Logging          LoggingConfig
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

// Load reads the service configuration from environment variables, applying sane
// defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:          getString("WALKD_ADDR", DefaultAddr),
		AllowedOrigins:   parseList(os.Getenv("WALKD_ALLOWED_ORIGINS")),
		ScenePath:        getString("WALKD_SCENE_PATH", DefaultScenePath),
		ViewerDir:        strings.TrimSpace(os.Getenv("WALKD_VIEWER_DIR")),
		TickHz:           DefaultTickHz,
		MaxPayloadBytes:  DefaultMaxPayloadBytes,
		PingInterval:     DefaultPingInterval,
		MaxSessions:      DefaultMaxSessions,
		TLSCertPath:      strings.TrimSpace(os.Getenv("WALKD_TLS_CERT")),
		TLSKeyPath:       strings.TrimSpace(os.Getenv("WALKD_TLS_KEY")),
		AuthSecret:       strings.TrimSpace(os.Getenv("WALKD_AUTH_SECRET")),
		InputMaxAge:      DefaultInputMaxAge,
		InputMinInterval: DefaultInputMinInterval,
		ResyncWindow:     DefaultResyncWindow,
		ResyncBurst:      DefaultResyncBurst,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("WALKD_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("WALKD_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("WALKD_TICK_HZ")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 || value > 240 {
			problems = append(problems, fmt.Sprintf("WALKD_TICK_HZ must be a rate in (0, 240], got %q", raw))
		} else {
			cfg.TickHz = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("WALKD_MAX_PAYLOAD_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("WALKD_MAX_PAYLOAD_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPayloadBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("WALKD_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("WALKD_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("WALKD_MAX_SESSIONS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("WALKD_MAX_SESSIONS must be a non-negative integer, got %q", raw))
		} else {
			cfg.MaxSessions = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("WALKD_INPUT_MAX_AGE")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			problems = append(problems, fmt.Sprintf("WALKD_INPUT_MAX_AGE must be a non-negative duration, got %q", raw))
		} else {
			cfg.InputMaxAge = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("WALKD_INPUT_MIN_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			problems = append(problems, fmt.Sprintf("WALKD_INPUT_MIN_INTERVAL must be a non-negative duration, got %q", raw))
		} else {
			cfg.InputMinInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("WALKD_RESYNC_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("WALKD_RESYNC_WINDOW must be a positive duration, got %q", raw))
		} else {
			cfg.ResyncWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("WALKD_RESYNC_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("WALKD_RESYNC_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.ResyncBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("WALKD_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("WALKD_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("WALKD_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("WALKD_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("WALKD_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("WALKD_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("WALKD_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("WALKD_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if (cfg.TLSCertPath == "") != (cfg.TLSKeyPath == "") {
		problems = append(problems, "WALKD_TLS_CERT and WALKD_TLS_KEY must be provided together")
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

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
