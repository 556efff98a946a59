package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env into the process environment if the file exists.
// Variables already set win.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("config: .env not loaded: %v", err)
		}
	}
}

type Config struct {
	DatabaseURL    string
	RedisAddr      string
	RedisPwd       string
	WebOrigin      string
	RPID           string
	RPOrigins      []string
	AdminEmails    []string
	BootstrapEmail string

	// SessionTTL bounds WebAuthn ceremony state; AppSessionTTL bounds the
	// login cookie.
	SessionTTL    time.Duration
	AppSessionTTL time.Duration

	CheckInClearsBiometric bool

	RateLimitRPS   float64
	RateLimitBurst int

	SMTP SMTP

	Port string
}

// SMTP configures invite mail. An empty Host means invite links are only
// logged.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string // falls back to Username
	AppName  string
}

// Enabled reports whether invites can be mailed.
func (s SMTP) Enabled() bool { return s.Host != "" && (s.Username != "" || s.From != "") }

// Sender is the envelope From address.
func (s SMTP) Sender() string {
	if s.From != "" {
		return s.From
	}
	return s.Username
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range c.AdminEmails {
		if a == email {
			return true
		}
	}
	return false
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	get := func(k, def string) string {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		DatabaseURL:    get("DATABASE_URL", ""),
		RedisAddr:      get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:       os.Getenv("REDIS_PASSWORD"),
		WebOrigin:      get("WEB_ORIGIN", "http://localhost:5173"),
		RPID:           get("RP_ID", "localhost"),
		RPOrigins:      splitCSV(get("RP_ORIGINS", "http://localhost:5173"), false),
		AdminEmails:    splitCSV(os.Getenv("ADMIN_EMAILS"), true),
		BootstrapEmail: strings.ToLower(get("BOOTSTRAP_ADMIN_EMAIL", "")),
		Port:           get("PORT", "3001"),
		SMTP: SMTP{
			Host:     get("SMTP_HOST", ""),
			Port:     get("SMTP_PORT", "587"),
			Username: get("SMTP_USERNAME", ""),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     get("SMTP_FROM", ""),
			AppName:  get("APP_NAME", "Laptop Tracker"),
		},
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			get("DB_HOST", "127.0.0.1"),
			get("DB_USER", "postgres"),
			os.Getenv("DB_PASSWORD"),
			get("DB_NAME", "laptops"),
			get("DB_PORT", "5432"),
			get("DB_SSLMODE", "disable"),
		)
	}

	var err error
	if cfg.SessionTTL, err = seconds(get("SESSION_TTL_SECONDS", "600")); err != nil {
		return Config{}, fmt.Errorf("SESSION_TTL_SECONDS: %w", err)
	}
	if cfg.AppSessionTTL, err = seconds(get("APP_SESSION_TTL_SECONDS", "86400")); err != nil {
		return Config{}, fmt.Errorf("APP_SESSION_TTL_SECONDS: %w", err)
	}
	if cfg.CheckInClearsBiometric, err = strconv.ParseBool(get("CHECKIN_CLEARS_BIOMETRIC", "false")); err != nil {
		return Config{}, fmt.Errorf("CHECKIN_CLEARS_BIOMETRIC: %w", err)
	}
	if cfg.RateLimitRPS, err = strconv.ParseFloat(get("RATE_LIMIT_RPS", "10"), 64); err != nil || cfg.RateLimitRPS <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_RPS: must be a positive number")
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(get("RATE_LIMIT_BURST", "20")); err != nil || cfg.RateLimitBurst <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_BURST: must be a positive integer")
	}
	return cfg, nil
}

func seconds(v string) (time.Duration, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return time.Duration(n) * time.Second, nil
}

func splitCSV(s string, lower bool) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			if lower {
				t = strings.ToLower(t)
			}
			out = append(out, t)
		}
	}
	return out
}
