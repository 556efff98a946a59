package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"laptop_tracker/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInviteUsed      = errors.New("invite already used or not found")
)

func (r *Repo) CreateInvite(ctx context.Context, email, token string, expiresAt time.Time, createdBy string, grantAdmin bool) (*models.Invite, error) {
	inv := &models.Invite{
		Email:      strings.ToLower(email),
		Token:      token,
		GrantAdmin: grantAdmin,
		ExpiresAt:  expiresAt,
		CreatedBy:  createdBy,
	}
	return inv, r.DB.WithContext(ctx).Create(inv).Error
}

func (r *Repo) GetInviteByToken(ctx context.Context, token string) (*models.Invite, error) {
	var inv models.Invite
	if err := r.DB.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repo) ListInvites(ctx context.Context) ([]models.Invite, error) {
	var invs []models.Invite
	err := r.DB.WithContext(ctx).Order("created_at DESC").Find(&invs).Error
	return invs, err
}

func (r *Repo) MarkInviteUsed(ctx context.Context, token string) error {
	now := time.Now()
	res := r.DB.WithContext(ctx).Model(&models.Invite{}).
		Where("token = ? AND used_at IS NULL", token).
		Update("used_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInviteUsed
	}
	return nil
}
