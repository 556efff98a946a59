package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"laptop_tracker/config"
	"laptop_tracker/models"
)

type InviteIssuer interface {
	CountAdmins(ctx context.Context) (int64, error)
	CreateInvite(ctx context.Context, email, token string, expiresAt time.Time, createdBy string, grantAdmin bool) (*models.Invite, error)
}

// NewInviteToken returns 32 hex characters from crypto/rand.
func NewInviteToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// InviteLink is the dashboard URL that starts passkey registration.
func InviteLink(webOrigin, token string) string {
	return strings.TrimRight(webOrigin, "/") + "/login?inviteToken=" + token
}

// BootstrapFirstAdmin prints a one-time admin invite when no admin account
// exists and BOOTSTRAP_ADMIN_EMAIL is set. It returns the link, or "" when
// nothing was issued.
func BootstrapFirstAdmin(ctx context.Context, cfg config.Config, repo InviteIssuer) (string, error) {
	if cfg.BootstrapEmail == "" {
		return "", nil
	}
	n, err := repo.CountAdmins(ctx)
	if err != nil {
		return "", fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return "", nil
	}

	token, err := NewInviteToken()
	if err != nil {
		return "", err
	}
	if _, err := repo.CreateInvite(ctx, cfg.BootstrapEmail, token, time.Now().Add(24*time.Hour), "bootstrap", true); err != nil {
		return "", fmt.Errorf("bootstrap invite: %w", err)
	}

	link := InviteLink(cfg.WebOrigin, token)
	log.Printf("[BOOTSTRAP] No admin found, created an admin invite for %s", cfg.BootstrapEmail)
	log.Printf("[BOOTSTRAP] Open this URL to register the first admin: %s", link)
	return link, nil
}
