package controllers

import (
	"errors"
	"net/http"
	"strings"

	"laptop_tracker/app"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

var errPasswordTooShort = errors.New("password must be at least 8 characters")

func hashPassword(pw string) (string, error) {
	if len(pw) < minPasswordLen {
		return "", errPasswordTooShort
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// passwordMatches is false for passkey-only accounts.
func passwordMatches(hash, pw string) bool {
	if hash == "" || pw == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// POST /auth/login
func (s *Srv) PasswordLogin(c *gin.Context) {
	var in struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	acct, err := s.Repo.FindAccountByUsername(ctx, strings.TrimSpace(in.Email))
	if err != nil || !passwordMatches(acct.PasswordHash, in.Password) {
		c.JSON(http.StatusUnauthorized, app.H{"error": "invalid email or password"})
		return
	}
	if err := s.issueSession(ctx, c.Writer, acct.ID, c.ClientIP(), c.Request.UserAgent(), methodPassword); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": "create app session failed"})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "redirect": "/dashboard"})
}

// PUT /auth/password sets or replaces the signed-in account's password.
// Accounts that already have one must send it as currentPassword.
func (s *Srv) SetPassword(c *gin.Context) {
	var in struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	accountID, _ := app.Actor(c)
	ctx := c.Request.Context()
	acct, err := s.Repo.FindAccountByID(ctx, accountID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	if acct.PasswordHash != "" && !passwordMatches(acct.PasswordHash, in.CurrentPassword) {
		c.JSON(http.StatusForbidden, app.H{"error": "current password is wrong"})
		return
	}
	hash, err := hashPassword(in.NewPassword)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if err := s.Repo.SetPasswordHash(ctx, acct.ID, hash); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /auth/whoami
func (s *Srv) WhoAmI(c *gin.Context) {
	accountID, _ := app.Actor(c)
	ctx := c.Request.Context()
	acct, err := s.Repo.FindAccountByID(ctx, accountID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	n, _ := s.Repo.CountCredentials(ctx, acct.ID)
	c.JSON(http.StatusOK, app.H{
		"id":          acct.ID,
		"username":    acct.Username,
		"displayName": acct.DisplayName,
		"isAdmin":     c.GetBool(app.CtxIsAdmin),
		"passkeys":    n,
		"hasPassword": acct.PasswordHash != "",
		"lastLoginAt": acct.LastLoginAt,
	})
}

// POST /auth/logout
func (s *Srv) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		_ = s.AppSess.Delete(c.Request.Context(), ck.Value)
	}
	s.clearAppCookie(c.Writer)
	c.JSON(http.StatusOK, app.H{"ok": true})
}
