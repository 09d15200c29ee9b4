package domain

import "time"

// ProcessedUpdate records a Telegram update that has already been accepted
// by the webhook. Telegram redelivers an update until it receives a 2xx, so
// the update_id is used as a natural idempotency key.
type ProcessedUpdate struct {
	UpdateID  int64     `gorm:"type:INTEGER NOT NULL;primaryKey;autoIncrement:false"`
	ChatID    int64     `gorm:"type:INTEGER NOT NULL;index"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
