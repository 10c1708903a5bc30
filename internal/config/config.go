package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultMetricsAddr    = "off"
	defaultBaseURL        = "http://localhost:8080"
	defaultInviteTokenTTL = time.Hour
	defaultInviteWorkers  = 4
	defaultSMTPPort       = 587
)

type Config struct {
	DatabaseURL      string
	HTTPAddr         string
	MetricsAddr      string
	BaseURL          string
	AuthCookieSecure bool

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	InviteTokenTTL    time.Duration
	BulkInviteWorkers int
}

type LoadOptions struct {
	RequireDatabaseURL bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadOptionalDB() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		HTTPAddr:         getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:      getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		BaseURL:          strings.TrimRight(getenvDefault("BASE_URL", defaultBaseURL), "/"),
		AuthCookieSecure: getenvBoolDefault("AUTH_COOKIE_SECURE", false),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getenvIntDefault("SMTP_PORT", defaultSMTPPort),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getenvDefault("SMTP_FROM", "no-reply@localhost"),

		InviteTokenTTL:    defaultInviteTokenTTL,
		BulkInviteWorkers: getenvIntDefault("BULK_INVITE_WORKERS", defaultInviteWorkers),
	}

	if v := os.Getenv("INVITE_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.InviteTokenTTL = d
		}
	}

	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch v {
	case "1":
		return true
	case "0":
		return false
	default:
		return def
	}
}
