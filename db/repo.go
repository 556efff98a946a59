package db

import (
	"context"
	"errors"
	"strings"

	"laptop_tracker/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo holds the admin-side tables: accounts, passkeys, invites and the
// action log. Laptop state goes through LedgerStore only.
type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

// Accounts

func (r *Repo) TouchAccountLogin(ctx context.Context, accountID, ip, ua string) error {
	// database clock, and an in-place increment so concurrent logins both count
	return r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"last_login_at": gorm.Expr("NOW()"),
			"last_seen_at":  gorm.Expr("NOW()"),
			"login_count":   gorm.Expr("COALESCE(login_count, 0) + 1"),
			"last_login_ip": ip,
			"last_login_ua": ua,
		}).Error
}

func (r *Repo) TouchAccountSeen(ctx context.Context, accountID string) error {
	return r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("last_seen_at", gorm.Expr("NOW()")).Error
}

func (r *Repo) FindAccountByID(ctx context.Context, id string) (*models.Account, error) {
	var a models.Account
	if err := r.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) FindAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var a models.Account
	if err := r.DB.WithContext(ctx).Where("username = ?", strings.ToLower(username)).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindOrCreateAccount returns the account for username, creating it with
// newID when missing. isAdmin only applies on creation.
func (r *Repo) FindOrCreateAccount(ctx context.Context, username, newID string, isAdmin bool) (*models.Account, error) {
	username = strings.ToLower(username)
	var a models.Account
	err := r.DB.WithContext(ctx).Where("username = ?", username).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		a = models.Account{ID: newID, Username: username, DisplayName: username, IsAdmin: isAdmin}
		if err := r.DB.WithContext(ctx).Create(&a).Error; err != nil {
			return nil, err
		}
		return &a, nil
	}
	return &a, err
}

func (r *Repo) SetPasswordHash(ctx context.Context, accountID, hash string) error {
	return r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("password_hash", hash).Error
}

type ListAccountsResult struct {
	Accounts []models.Account `json:"accounts"`
	Total    int64            `json:"total"`
}

// ListAccounts pages accounts, newest first; q matches username or
// display name.
func (r *Repo) ListAccounts(ctx context.Context, q string, page, size int) (ListAccountsResult, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	tx := r.DB.WithContext(ctx).Model(&models.Account{})
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ListAccountsResult{}, err
	}

	var accounts []models.Account
	if err := tx.
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&accounts).Error; err != nil {
		return ListAccountsResult{}, err
	}
	return ListAccountsResult{Accounts: accounts, Total: total}, nil
}

func (r *Repo) DeleteAccountByID(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&models.Credential{}).Error; err != nil {
			return err
		}
		res := tx.Clauses(clause.Returning{}).Delete(&models.Account{ID: id})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// Credentials

func (r *Repo) LoadAccountCredentials(ctx context.Context, accountID string) ([]models.Credential, error) {
	var cs []models.Credential
	if err := r.DB.WithContext(ctx).Where("account_id = ?", accountID).Find(&cs).Error; err != nil {
		return nil, err
	}
	return cs, nil
}

func (r *Repo) CountCredentials(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("account_id = ?", accountID).
		Count(&n).Error
	return n, err
}

func (r *Repo) AddCredential(ctx context.Context, c *models.Credential) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *Repo) UpdateCredentialCounter(ctx context.Context, credID []byte, newCount uint32, cloneWarn bool) error {
	return r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("credential_id = ?", credID).
		Updates(map[string]any{
			"sign_count":    newCount,
			"clone_warning": cloneWarn,
			"last_used_at":  gorm.Expr("NOW()"),
		}).Error
}

func (r *Repo) FindAccountByCredentialID(ctx context.Context, credID []byte) (*models.Account, *models.Credential, error) {
	var c models.Credential
	if err := r.DB.WithContext(ctx).Where("credential_id = ?", credID).First(&c).Error; err != nil {
		return nil, nil, err
	}
	var a models.Account
	if err := r.DB.WithContext(ctx).Where("id = ?", c.AccountID).First(&a).Error; err != nil {
		return nil, nil, err
	}
	return &a, &c, nil
}
