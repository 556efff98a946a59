package db

import (
	"context"

	"laptop_tracker/models"
)

func (r *Repo) SetAccountAdmin(ctx context.Context, accountID string, isAdmin bool) error {
	res := r.DB.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("is_admin", isAdmin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *Repo) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.Account{}).
		Where("is_admin = TRUE").
		Count(&n).Error
	return n, err
}
