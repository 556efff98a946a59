package models

import "time"

// Invite lets one email address register a passkey account. GrantAdmin
// marks the resulting account as an admin.
type Invite struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Email      string     `gorm:"index;size:255;not null" json:"email"`
	Token      string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	GrantAdmin bool       `gorm:"not null;default:true" json:"grantAdmin"`
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expiresAt"`
	UsedAt     *time.Time `json:"usedAt,omitempty"`
	CreatedBy  string     `gorm:"size:255" json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Usable reports whether the invite can still be redeemed at now.
func (i Invite) Usable(now time.Time) bool {
	return i.UsedAt == nil && now.Before(i.ExpiresAt)
}
