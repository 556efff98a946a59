package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "SESSION_TTL_SECONDS", "ADMIN_EMAILS", "CHECKIN_CLEARS_BIOMETRIC", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "DB_HOST", "PORT"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "3001" || cfg.SessionTTL != 10*time.Minute || cfg.AppSessionTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CheckInClearsBiometric {
		t.Fatal("biometric link should be kept by default")
	}
	if cfg.DatabaseURL == "" {
		t.Fatal("expected a DSN built from DB_* defaults")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ADMIN_EMAILS", " Ops@Example.com , ,boss@example.com")
	t.Setenv("CHECKIN_CLEARS_BIOMETRIC", "true")
	t.Setenv("SESSION_TTL_SECONDS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || !cfg.CheckInClearsBiometric || cfg.SessionTTL != 30*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.AdminEmails) != 2 || !cfg.IsAdminEmail("OPS@example.com") || cfg.IsAdminEmail("other@example.com") {
		t.Fatalf("unexpected admin list: %v", cfg.AdminEmails)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"RATE_LIMIT_RPS":           "fast",
		"SESSION_TTL_SECONDS":      "-5",
		"CHECKIN_CLEARS_BIOMETRIC": "maybe",
		"RATE_LIMIT_BURST":         "0",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s should fail", k, v)
			}
		})
	}
}

func TestSMTP(t *testing.T) {
	t.Setenv("SMTP_HOST", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SMTP.Enabled() {
		t.Fatal("mail should be off without SMTP_HOST")
	}

	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USERNAME", "mailer@example.com")
	t.Setenv("SMTP_FROM", "")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.SMTP.Enabled() || cfg.SMTP.Sender() != "mailer@example.com" || cfg.SMTP.Port != "587" {
		t.Fatalf("unexpected smtp config: %+v", cfg.SMTP)
	}
}
