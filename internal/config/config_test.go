package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wall-measure.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.MaxUploadBytes() != 50<<20 {
		t.Errorf("MaxUploadBytes: got %d", cfg.MaxUploadBytes())
	}
	if cfg.WriteTimeout() != 300*time.Second || cfg.ReadTimeout() != 30*time.Second {
		t.Errorf("timeouts: %v / %v", cfg.ReadTimeout(), cfg.WriteTimeout())
	}
	if cfg.InferenceTimeout() != 300*time.Second {
		t.Errorf("inference timeout: %v", cfg.InferenceTimeout())
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv(EnvPort, "")
	t.Setenv(EnvInferenceURL, "")
	t.Setenv(EnvLogLevel, "")

	path := writeConfig(t, `
server:
  addr: ":9090"
inference:
  url: "http://models.internal:7000"
  segmenter_sessions: 4
analysis:
  confidence: 0.45
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
	if cfg.Inference.URL != "http://models.internal:7000" || cfg.Inference.SegmenterSessions != 4 {
		t.Errorf("inference: %+v", cfg.Inference)
	}
	if cfg.Analysis.Confidence != 0.45 {
		t.Errorf("confidence: got %v", cfg.Analysis.Confidence)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Server.MaxUploadMB != 50 || cfg.Inference.TimeoutS != 300 || cfg.Log.Level != "info" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\nlog:\n  level: debug\n")
	t.Setenv(EnvPort, "7777")
	t.Setenv(EnvInferenceURL, "https://gpu-box:8443")
	t.Setenv(EnvLogLevel, "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
	if cfg.Inference.URL != "https://gpu-box:8443" {
		t.Errorf("url: got %q", cfg.Inference.URL)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("level: got %q", cfg.Log.Level)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv(EnvPort, "")
	t.Setenv(EnvInferenceURL, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed yaml", "server: [unclosed", "failed to parse config"},
		{"bad confidence", "analysis:\n  confidence: 1.5\n", "analysis.confidence"},
		{"bad url", "inference:\n  url: \"ftp://models\"\n", "inference.url"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"zero sessions", "inference:\n  segmenter_sessions: 0\n", "segmenter_sessions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvPort, "")
			t.Setenv(EnvInferenceURL, "")
			t.Setenv(EnvLogLevel, "")

			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(cfg, envMap(map[string]string{
		EnvMaxUploadMB:   "10",
		EnvSegmenterPool: "3",
		EnvConfidence:    "0.5",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.Server.MaxUploadMB != 10 || cfg.Inference.SegmenterSessions != 3 || cfg.Analysis.Confidence != 0.5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}

	if err := ApplyEnv(Default(), envMap(map[string]string{EnvMaxUploadMB: "lots"})); err == nil {
		t.Error("expected error for non-numeric upload limit")
	}

	cfg = Default()
	if err := ApplyEnv(cfg, noEnv); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("empty env should not change config: %q", cfg.Server.Addr)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
