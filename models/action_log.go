package models

import "time"

// ActionLog is the persisted trail of admin-panel actions (checkout, edits,
// directory changes), one row per successful request.
type ActionLog struct {
	ID            string    `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID       string    `gorm:"type:uuid;index" json:"actorId"`
	ActorUsername string    `gorm:"size:255" json:"actorUsername"`
	Action        string    `gorm:"size:64;index;not null" json:"action"`
	Target        string    `gorm:"size:200;index" json:"target"`
	Detail        *string   `gorm:"size:500" json:"detail,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt"`
}

func (ActionLog) TableName() string { return "action_logs" }
