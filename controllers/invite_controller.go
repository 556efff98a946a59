package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"laptop_tracker/app"
	"laptop_tracker/config"

	"github.com/gin-gonic/gin"
)

type InviteController struct{ *Srv }

func GetInviteController(s *Srv) *InviteController { return &InviteController{Srv: s} }

// POST /admin/invites
func (ic *InviteController) CreateInvite(c *gin.Context) {
	var in struct {
		Email      string `json:"email" binding:"required,email"`
		Expires    int    `json:"expiresDays"` // default 1
		GrantAdmin *bool  `json:"grantAdmin"`  // default true
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if in.Expires <= 0 {
		in.Expires = 1
	}
	grant := in.GrantAdmin == nil || *in.GrantAdmin

	token, err := app.NewInviteToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	_, actor := app.Actor(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	inv, err := ic.Repo.CreateInvite(ctx, in.Email, token, time.Now().AddDate(0, 0, in.Expires), actor, grant)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}

	link := app.InviteLink(ic.Cfg.WebOrigin, token)
	if err := sendInviteMail(ic.Cfg.SMTP, inv.Email, link, in.Expires); err != nil {
		log.Printf("[invite email] send failed: %v", err)
	}

	c.JSON(http.StatusCreated, app.H{
		"token":  token,
		"link":   link,
		"invite": inv,
	})
}

// GET /admin/invites
func (ic *InviteController) ListInvites(c *gin.Context) {
	invs, err := ic.Repo.ListInvites(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"invites": invs})
}

// -------------------- mail --------------------

func sendInviteMail(conf config.SMTP, toEmail, link string, expiresDays int) error {
	// without SMTP the link only goes to the log
	if !conf.Enabled() {
		log.Printf("[DEV] Invite link for %s: %s (expires in %d day(s))", toEmail, link, expiresDays)
		return nil
	}

	subject := fmt.Sprintf("%s Invitation", conf.AppName)
	msg := buildMIMEWithFromName(conf.AppName, conf.Sender(), toEmail, subject, inviteHTML(conf.AppName, link, expiresDays))

	auth := smtp.PlainAuth("", conf.Username, conf.Password, conf.Host)
	addr := conf.Host + ":" + conf.Port
	return smtp.SendMail(addr, auth, conf.Sender(), []string{toEmail}, []byte(msg))
}

func inviteHTML(appName, link string, expiresDays int) string {
	return fmt.Sprintf(`
<div style="font-family:Arial,sans-serif; font-size:14px; color:#222">
  <p>Hello,</p>
  <p>You have been invited to manage laptops in <b>%s</b>. Click the button below to create your passkey and sign in:</p>
  <p>
    <a href="%s" style="display:inline-block; padding:10px 16px; background:#2563EB; color:#fff; text-decoration:none; border-radius:6px;">
      Accept Invitation
    </a>
  </p>
  <p>Or open this link directly:</p>
  <p><a href="%s">%s</a></p>
  <p>This invitation will expire in %d day(s).</p>
  <hr/>
  <p style="color:#666">If you did not expect this email, you can safely ignore it.</p>
</div>
`, appName, link, link, link, expiresDays)
}

func buildMIMEWithFromName(fromName, fromAddr, to, subject, html string) string {
	headers := []string{
		fmt.Sprintf("From: %s <%s>", fromName, fromAddr),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}
	return strings.Join(headers, "\r\n") + "\r\n\r\n" + html
}
