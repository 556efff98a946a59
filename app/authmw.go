package app

import (
	"context"
	"net/http"

	"laptop_tracker/config"
	"laptop_tracker/models"
	"laptop_tracker/obs"
	"laptop_tracker/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "app_session"

// Context keys set by AuthRequired.
const (
	CtxAccountID = "accountID"
	CtxUsername  = "username"
	CtxIsAdmin   = "isAdmin"
)

type SessionReader interface {
	Get(ctx context.Context, id string) (*session.AppSession, error)
	Delete(ctx context.Context, id string) error
}

type AccountFinder interface {
	FindAccountByID(ctx context.Context, id string) (*models.Account, error)
}

// AuthRequired resolves the session cookie to an account and puts the
// account id, username and admin flag on the gin context. The request
// context also carries the actor for audit lines.
func AuthRequired(sessions SessionReader, accounts AccountFinder, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		as, err := sessions.Get(c.Request.Context(), ck.Value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		// the account may have been deleted since login
		acct, err := accounts.FindAccountByID(c.Request.Context(), as.AccountID)
		if err != nil {
			_ = sessions.Delete(c.Request.Context(), ck.Value)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		c.Set(CtxAccountID, acct.ID)
		c.Set(CtxUsername, acct.Username)
		c.Set(CtxIsAdmin, acct.IsAdmin || cfg.IsAdminEmail(acct.Username))
		c.Request = c.Request.WithContext(obs.WithActor(c.Request.Context(), acct.ID, acct.Username))

		c.Next()
	}
}

// AdminOnly must run after AuthRequired.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(CtxAccountID); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if !c.GetBool(CtxIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// Actor returns the signed-in account as set by AuthRequired.
func Actor(c *gin.Context) (id, username string) {
	return c.GetString(CtxAccountID), c.GetString(CtxUsername)
}
