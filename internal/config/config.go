// Package config loads the wall-measure service configuration from an
// optional YAML file and environment overrides.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables. The result is validated before use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfigPath    = "WALL_MEASURE_CONFIG"
	EnvPort          = "PORT"
	EnvInferenceURL  = "INFERENCE_URL"
	EnvLogLevel      = "WALL_MEASURE_LOG_LEVEL"
	EnvMaxUploadMB   = "WALL_MEASURE_MAX_UPLOAD_MB"
	EnvConfidence    = "WALL_MEASURE_CONFIDENCE"
	EnvSegmenterPool = "WALL_MEASURE_SEGMENTER_SESSIONS"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Inference InferenceConfig `yaml:"inference"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
	ReadTimeoutS  int    `yaml:"read_timeout_s"`
	WriteTimeoutS int    `yaml:"write_timeout_s"` // analysis of a large photo can take minutes
}

// InferenceConfig points at the model inference service
type InferenceConfig struct {
	URL               string `yaml:"url"`
	TimeoutS          int    `yaml:"timeout_s"`
	SegmenterSessions int    `yaml:"segmenter_sessions"` // concurrent prepared images
}

// AnalysisConfig tunes the pipeline
type AnalysisConfig struct {
	Confidence float64 `yaml:"confidence"` // detector threshold
}

// LogConfig selects the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8000",
			MaxUploadMB:   50,
			ReadTimeoutS:  30,
			WriteTimeoutS: 300,
		},
		Inference: InferenceConfig{
			URL:               "http://localhost:5000",
			TimeoutS:          300,
			SegmenterSessions: 1,
		},
		Analysis: AnalysisConfig{Confidence: 0.3},
		Log:      LogConfig{Level: "info"},
	}
}

// Load builds the configuration. An empty path skips the file. Keys missing
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. lookup is usually
// os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v, ok := lookup(EnvInferenceURL); ok && v != "" {
		cfg.Inference.URL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookup(EnvMaxUploadMB); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxUploadMB, err)
		}
		cfg.Server.MaxUploadMB = n
	}
	if v, ok := lookup(EnvSegmenterPool); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSegmenterPool, err)
		}
		cfg.Inference.SegmenterSessions = n
	}
	if v, ok := lookup(EnvConfidence); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConfidence, err)
		}
		cfg.Analysis.Confidence = f
	}
	return nil
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// ReadTimeout is the HTTP server read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutS) * time.Second
}

// WriteTimeout is the HTTP server write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutS) * time.Second
}

// InferenceTimeout bounds a single call to the model inference service.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.Inference.TimeoutS) * time.Second
}
