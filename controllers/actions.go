package controllers

import (
	"context"
	"log"

	"laptop_tracker/app"
	"laptop_tracker/db"
	"laptop_tracker/models"
)

// ActionLogger persists the admin action trail. *db.Repo implements it.
type ActionLogger interface {
	LogAction(ctx context.Context, actorID, actorUsername, action, target string, detail *string) (*models.ActionLog, error)
	ListActions(ctx context.Context, q db.ActionLogQuery) ([]models.ActionLog, error)
}

// recordAction appends to the action trail after a successful change.
// A failed write is logged and never fails the request.
func recordAction(c *app.Ctx, actions ActionLogger, action, target, detail string) {
	if actions == nil {
		return
	}
	id, username := app.Actor(c)
	var d *string
	if detail != "" {
		d = &detail
	}
	if _, err := actions.LogAction(c.Request.Context(), id, username, action, target, d); err != nil {
		log.Printf("[action log] %s %s: %v", action, target, err)
	}
}
