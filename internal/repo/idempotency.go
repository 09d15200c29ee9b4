// Package repo implements the data persistence layer, backed by GORM. This
// file provides helpers for the ProcessedUpdate table used to drop webhook
// redeliveries of an update that was already accepted.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-order-bot/internal/domain"
)

// MarkUpdate records updateID as processed for ttl. It returns ErrDuplicate
// when a non-expired record already exists; an expired record is renewed.
func MarkUpdate(ctx context.Context, db *gorm.DB, updateID, chatID int64, ttl time.Duration) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec domain.ProcessedUpdate
		err := tx.Where("update_id = ?", updateID).First(&rec).Error
		switch {
		case err == nil:
			if rec.ExpiresAt.After(now) {
				return ErrDuplicate
			}
			return tx.Model(&domain.ProcessedUpdate{}).
				Where("update_id = ?", updateID).
				Updates(map[string]any{"chat_id": chatID, "created_at": now, "expires_at": now.Add(ttl)}).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		rec = domain.ProcessedUpdate{
			UpdateID:  updateID,
			ChatID:    chatID,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

// PurgeUpdates deletes records that expired before now and returns how many
// were removed.
func PurgeUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
