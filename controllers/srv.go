package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"laptop_tracker/app"
	"laptop_tracker/config"
	"laptop_tracker/db"
	"laptop_tracker/models"
	"laptop_tracker/session"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Srv carries the account, session and passkey dependencies shared by the
// auth, invite and account handlers.
type Srv struct {
	WA      *webauthn.WebAuthn
	Repo    *db.Repo
	Sess    *session.Store
	AppSess *session.AppSessionStore
	Cfg     config.Config
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		WA:      a.WA,
		Repo:    a.Repo,
		Sess:    session.NewStore(a.RDB, a.Config.SessionTTL),
		AppSess: a.AppSessions(),
		Cfg:     a.Config,
	}
}

func (s *Srv) secureCookie() bool { return strings.HasPrefix(s.Cfg.WebOrigin, "https://") }

func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secureCookie(),
		MaxAge:   int(maxAge / time.Second),
	})
}

func (s *Srv) clearAppCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secureCookie(),
	})
}

// issueSession creates the app session after a successful login and sets
// the cookie. The login snapshot is best effort.
func (s *Srv) issueSession(ctx context.Context, w http.ResponseWriter, accountID, ip, ua, method string) error {
	_ = s.Repo.TouchAccountLogin(ctx, accountID, ip, ua)
	id := uuid.NewString()
	if err := s.AppSess.Create(ctx, id, accountID, method); err != nil {
		return err
	}
	s.setAppCookie(w, id, s.AppSess.TTL())
	return nil
}

// waAccount adapts an Account to webauthn.User.
type waAccount struct {
	account models.Account
	creds   []webauthn.Credential
}

func (u *waAccount) WebAuthnID() []byte {
	id, _ := uuid.Parse(u.account.ID)
	return id[:]
}
func (u *waAccount) WebAuthnName() string                       { return u.account.Username }
func (u *waAccount) WebAuthnDisplayName() string                { return u.account.DisplayName }
func (u *waAccount) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toWaCred(c models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func fromWaCred(accountID string, cred *webauthn.Credential) *models.Credential {
	return &models.Credential{
		AccountID:       accountID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}
}

func (s *Srv) waAccountFor(ctx context.Context, a *models.Account) (*waAccount, error) {
	cs, err := s.Repo.LoadAccountCredentials(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waAccount{account: *a, creds: ws}, nil
}

func (s *Srv) loadWAAccountByID(ctx context.Context, id string) (*waAccount, error) {
	a, err := s.Repo.FindAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.waAccountFor(ctx, a)
}

func (s *Srv) loadWAAccountByUsername(ctx context.Context, username string) (*waAccount, error) {
	a, err := s.Repo.FindAccountByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.waAccountFor(ctx, a)
}
