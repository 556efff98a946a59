package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"laptop_tracker/app"
	"laptop_tracker/db"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountController struct{ *Srv }

func GetAccountController(s *Srv) *AccountController { return &AccountController{Srv: s} }

// GET /api/accounts?q=alice&page=1&size=20
func (ac *AccountController) ListAccounts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := ac.Repo.ListAccounts(c.Request.Context(), c.Query("q"), page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func accountID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid account id"})
		return "", false
	}
	return id, true
}

// GET /api/accounts/:id
func (ac *AccountController) GetAccount(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	acct, err := ac.Repo.FindAccountByID(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, app.H{"error": "account not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	n, _ := ac.Repo.CountCredentials(c.Request.Context(), id)
	c.JSON(http.StatusOK, app.H{"account": acct, "passkeys": n})
}

// DELETE /api/accounts/:id removes the account, its passkeys and every
// live session.
func (ac *AccountController) DeleteAccount(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	if self, _ := app.Actor(c); self == id {
		c.JSON(http.StatusBadRequest, app.H{"error": "cannot delete yourself"})
		return
	}
	ctx := c.Request.Context()
	target, err := ac.Repo.FindAccountByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusNotFound, app.H{"error": "account not found"})
		return
	}
	if ac.Cfg.IsAdminEmail(target.Username) {
		c.JSON(http.StatusForbidden, app.H{"error": "cannot delete an account listed in ADMIN_EMAILS"})
		return
	}
	if err := ac.Repo.DeleteAccountByID(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	_ = ac.AppSess.RevokeAllForAccount(ctx, id)
	recordAction(c, ac.Repo, "account.delete", id, target.Username)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// PUT /api/accounts/:id/admin
func (ac *AccountController) SetAdmin(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var in struct {
		IsAdmin *bool `json:"isAdmin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if self, _ := app.Actor(c); self == id && !*in.IsAdmin {
		c.JSON(http.StatusBadRequest, app.H{"error": "cannot remove your own admin role"})
		return
	}
	if err := ac.Repo.SetAccountAdmin(c.Request.Context(), id, *in.IsAdmin); err != nil {
		if errors.Is(err, db.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, app.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	recordAction(c, ac.Repo, "account.admin", id, strconv.FormatBool(*in.IsAdmin))
	c.JSON(http.StatusOK, app.H{"ok": true})
}
