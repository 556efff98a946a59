package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"laptop_tracker/config"
	"laptop_tracker/models"
	"laptop_tracker/obs"
	"laptop_tracker/session"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeSessions struct {
	byID    map[string]*session.AppSession
	deleted []string
}

func (f *fakeSessions) Get(_ context.Context, id string) (*session.AppSession, error) {
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, session.ErrNoSession
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.byID, id)
	return nil
}

type fakeAccounts map[string]*models.Account

func (f fakeAccounts) FindAccountByID(_ context.Context, id string) (*models.Account, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return nil, errors.New("record not found")
}

func authRouter(sessions *fakeSessions, accounts fakeAccounts, cfg config.Config) *gin.Engine {
	r := gin.New()
	g := r.Group("", AuthRequired(sessions, accounts, cfg))
	g.GET("/me", func(c *gin.Context) {
		id, name := Actor(c)
		ctxID, _ := obs.ActorFromContext(c.Request.Context())
		c.JSON(http.StatusOK, H{"id": id, "username": name, "ctx": ctxID})
	})
	g.GET("/admin", AdminOnly(), func(c *gin.Context) { c.JSON(http.StatusOK, H{"ok": true}) })
	return r
}

func get(r http.Handler, path, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: AppSessionCookie, Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	sessions := &fakeSessions{byID: map[string]*session.AppSession{
		"s-admin": {AccountID: "a1"},
		"s-user":  {AccountID: "a2"},
		"s-gone":  {AccountID: "a3"},
		"s-env":   {AccountID: "a4"},
	}}
	accounts := fakeAccounts{
		"a1": {ID: "a1", Username: "admin@example.com", IsAdmin: true},
		"a2": {ID: "a2", Username: "clerk@example.com"},
		"a4": {ID: "a4", Username: "ops@example.com"},
	}
	r := authRouter(sessions, accounts, config.Config{AdminEmails: []string{"ops@example.com"}})

	cases := []struct {
		name, path, cookie string
		want               int
	}{
		{"no cookie", "/me", "", http.StatusUnauthorized},
		{"unknown session", "/me", "nope", http.StatusUnauthorized},
		{"deleted account", "/me", "s-gone", http.StatusUnauthorized},
		{"signed in", "/me", "s-user", http.StatusOK},
		{"non-admin on admin route", "/admin", "s-user", http.StatusForbidden},
		{"admin flag", "/admin", "s-admin", http.StatusOK},
		{"admin by email", "/admin", "s-env", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(r, tc.path, tc.cookie)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}

	if len(sessions.deleted) != 1 || sessions.deleted[0] != "s-gone" {
		t.Fatalf("stale session should be deleted, got %v", sessions.deleted)
	}
	w := get(r, "/me", "s-user")
	if !strings.Contains(w.Body.String(), `"ctx":"a2"`) {
		t.Fatalf("actor not on request context: %s", w.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(1, 2)
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("burst should be allowed")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("third request in the same instant should be limited")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatal("buckets are per IP")
	}
	now = now.Add(time.Second)
	if !l.Allow("10.0.0.1") {
		t.Fatal("token should refill after one second")
	}
	now = now.Add(10 * time.Minute)
	l.Allow("10.0.0.3")
	if len(l.buckets) != 1 {
		t.Fatalf("idle buckets should be dropped, have %d", len(l.buckets))
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(0.001, 1).Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := func() int {
		q := httptest.NewRequest(http.MethodGet, "/x", nil)
		q.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, q)
		return w.Code
	}
	if got := req(); got != http.StatusNoContent {
		t.Fatalf("first request: %d", got)
	}
	if got := req(); got != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", got)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	q := httptest.NewRequest(http.MethodGet, "/x", nil)
	q.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, q)
	if got := w.Header().Get(RequestIDHeader); got != "req-123" {
		t.Fatalf("request id not echoed: %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if got := w.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Fatalf("expected generated uuid, got %q", got)
	}
}

type fakeInvites struct {
	admins  int64
	created []models.Invite
}

func (f *fakeInvites) CountAdmins(context.Context) (int64, error) { return f.admins, nil }

func (f *fakeInvites) CreateInvite(_ context.Context, email, token string, expiresAt time.Time, createdBy string, grantAdmin bool) (*models.Invite, error) {
	inv := models.Invite{Email: email, Token: token, ExpiresAt: expiresAt, CreatedBy: createdBy, GrantAdmin: grantAdmin}
	f.created = append(f.created, inv)
	return &inv, nil
}

func TestBootstrapFirstAdmin(t *testing.T) {
	cfg := config.Config{BootstrapEmail: "first@example.com", WebOrigin: "https://laptops.example.com/"}

	repo := &fakeInvites{}
	link, err := BootstrapFirstAdmin(context.Background(), cfg, repo)
	if err != nil {
		t.Fatalf("BootstrapFirstAdmin: %v", err)
	}
	if len(repo.created) != 1 || !repo.created[0].GrantAdmin || repo.created[0].Email != "first@example.com" {
		t.Fatalf("unexpected invites: %+v", repo.created)
	}
	if want := "https://laptops.example.com/login?inviteToken=" + repo.created[0].Token; link != want {
		t.Fatalf("link = %q, want %q", link, want)
	}

	repo = &fakeInvites{admins: 1}
	if link, _ := BootstrapFirstAdmin(context.Background(), cfg, repo); link != "" || len(repo.created) != 0 {
		t.Fatal("no invite when an admin exists")
	}
	if link, _ := BootstrapFirstAdmin(context.Background(), config.Config{}, &fakeInvites{}); link != "" {
		t.Fatal("no invite without BOOTSTRAP_ADMIN_EMAIL")
	}
}
