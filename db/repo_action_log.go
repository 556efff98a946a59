package db

import (
	"context"
	"fmt"
	"strings"

	"laptop_tracker/models"

	"github.com/google/uuid"
)

func (r *Repo) LogAction(ctx context.Context, actorID, actorUsername, action, target string, detail *string) (*models.ActionLog, error) {
	entry := &models.ActionLog{
		ID:            uuid.NewString(),
		ActorID:       actorID,
		ActorUsername: actorUsername,
		Action:        action,
		Target:        target,
		Detail:        detail,
	}
	if err := r.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("insert action log: %w", err)
	}
	return entry, nil
}

type ActionLogQuery struct {
	Action string
	Target string
	Limit  int
}

// ListActions returns the newest entries first.
func (r *Repo) ListActions(ctx context.Context, q ActionLogQuery) ([]models.ActionLog, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	tx := r.DB.WithContext(ctx).Model(&models.ActionLog{})
	if a := strings.TrimSpace(q.Action); a != "" {
		tx = tx.Where("action = ?", a)
	}
	if t := strings.TrimSpace(q.Target); t != "" {
		tx = tx.Where("target = ?", t)
	}
	var out []models.ActionLog
	if err := tx.Order("created_at DESC").Limit(q.Limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
