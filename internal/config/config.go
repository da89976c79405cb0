package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr     string `env:"API_ADDR" envDefault:"127.0.0.1:8080"` // status API bind address; empty disables it
	LogDir   string `env:"LOG_DIR" envDefault:"logs"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage: DATABASE_URL selects Postgres, otherwise JSON files under DataDir.
	DataDir     string `env:"DATA_DIR" envDefault:".data"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Per-check audit logs; defaults to <LogDir>/checks.
	CheckLogDir        string `env:"CHECK_LOG_DIR"`
	CheckLogMaxSizeMB  int    `env:"CHECK_LOG_MAX_SIZE_MB" envDefault:"10"`
	CheckLogMaxBackups int    `env:"CHECK_LOG_MAX_BACKUPS" envDefault:"30"`
	CheckLogCompress   bool   `env:"CHECK_LOG_COMPRESS" envDefault:"true"`

	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"60s"`
	RotateInterval time.Duration `env:"ROTATE_INTERVAL" envDefault:"24h"`
	NotifyTimeout  time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`

	PublicAPIKeys []string `env:"PUBLIC_API_KEYS" envSeparator:","`
	AdminAPIKeys  []string `env:"ADMIN_API_KEYS" envSeparator:","`
	PublicRPM     int      `env:"PUBLIC_RPM" envDefault:"120"`
	PublicBurst   int      `env:"PUBLIC_BURST" envDefault:"60"`

	// Empty allows any origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	SlackWebhook     string `env:"SLACK_WEBHOOK"`
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromPhone  string `env:"TWILIO_FROM_PHONE"`
	TwilioBaseURL    string `env:"TWILIO_BASE_URL"`
}

func FromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.CheckLogDir == "" {
		cfg.CheckLogDir = filepath.Join(cfg.LogDir, "checks")
	}
	if cfg.SweepInterval < 0 {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL must not be negative, got %s", cfg.SweepInterval)
	}
	if cfg.RotateInterval < 0 {
		return Config{}, fmt.Errorf("ROTATE_INTERVAL must not be negative, got %s", cfg.RotateInterval)
	}
	cfg.PublicAPIKeys = cleanKeys(cfg.PublicAPIKeys)
	cfg.AdminAPIKeys = cleanKeys(cfg.AdminAPIKeys)
	cfg.AllowedOrigins = cleanKeys(cfg.AllowedOrigins)
	return cfg, nil
}

func cleanKeys(in []string) []string {
	out := in[:0]
	for _, k := range in {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
