package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Quiz.DefinitionsDir != "quizzes" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: "9090"
  allowed_origins: ["https://momentum.example"]
quiz:
  submit_timeout: 5s
telegram:
  chat_id: -100123
credit:
  hours_per_credit: 120
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("server section not applied: %+v", cfg.Server)
	}
	if cfg.Server.Language != "en" {
		t.Errorf("expected default language kept, got %q", cfg.Server.Language)
	}
	if Duration(cfg.Quiz.SubmitTimeout, time.Minute) != 5*time.Second {
		t.Errorf("submit timeout: %q", cfg.Quiz.SubmitTimeout)
	}
	if cfg.Telegram.ChatID != -100123 || cfg.Credit.HoursPerCredit != 120 {
		t.Errorf("unexpected values: %+v %+v", cfg.Telegram, cfg.Credit)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		if got := Duration(tt.raw, time.Minute); got != tt.want {
			t.Errorf("Duration(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
