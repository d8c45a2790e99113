package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Validate checks that the configuration is usable.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be > 0")
	}
	if cfg.Server.ReadTimeoutS <= 0 || cfg.Server.WriteTimeoutS <= 0 {
		return fmt.Errorf("server timeouts must be > 0")
	}

	if err := validateURL(cfg.Inference.URL); err != nil {
		return fmt.Errorf("inference.url: %w", err)
	}
	if cfg.Inference.TimeoutS <= 0 {
		return fmt.Errorf("inference.timeout_s must be > 0")
	}
	if cfg.Inference.SegmenterSessions <= 0 {
		return fmt.Errorf("inference.segmenter_sessions must be > 0")
	}

	if c := cfg.Analysis.Confidence; c <= 0 || c > 1 {
		return fmt.Errorf("analysis.confidence must be in (0, 1], got %v", c)
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level. Names are case-insensitive;
// "warning" is accepted as an alias of "warn".
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown level %q", name)
}
