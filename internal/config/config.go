package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		Language       string   `yaml:"language"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Quiz struct {
		DefinitionsDir string `yaml:"definitions_dir"`
		TTL            string `yaml:"ttl"`
		SubmitTimeout  string `yaml:"submit_timeout"`
		NotifyTimeout  string `yaml:"notify_timeout"`
		DefaultQuiz    string `yaml:"default_quiz"`
	} `yaml:"quiz"`
	Mailgun struct {
		Domain  string `yaml:"domain"`
		APIKey  string `yaml:"api_key"`
		From    string `yaml:"from"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"mailgun"`
	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		FromName string `yaml:"from_name"`
	} `yaml:"smtp"`
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Queue struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"queue"`
	Admin struct {
		PasswordHash string `yaml:"password_hash"`
		JWTSecret    string `yaml:"jwt_secret"`
		TokenTTL     string `yaml:"token_ttl"`
	} `yaml:"admin"`
	Credit struct {
		HoursPerCredit float64 `yaml:"hours_per_credit"`
		WeeksPerYear   float64 `yaml:"weeks_per_year"`
		BasePrice      float64 `yaml:"base_price"`
		PerCreditLow   float64 `yaml:"per_credit_low"`
		PerCreditHigh  float64 `yaml:"per_credit_high"`
	} `yaml:"credit"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Language = "en"
	cfg.Redis.TTL = "30m"
	cfg.Quiz.DefinitionsDir = "quizzes"
	cfg.Quiz.TTL = "10m"
	cfg.Quiz.SubmitTimeout = "15s"
	cfg.Quiz.NotifyTimeout = "20s"
	cfg.Quiz.DefaultQuiz = "parent-eligibility"
	cfg.Mailgun.BaseURL = "https://api.mailgun.net"
	cfg.SMTP.Port = 587
	cfg.Admin.TokenTTL = "12h"
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
