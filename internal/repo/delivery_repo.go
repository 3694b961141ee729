package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
)

// ClaimDelivery records (token, key) as processed until now+ttl. It returns
// ErrDuplicate when an unexpired claim already exists. An expired claim is
// replaced.
func ClaimDelivery(ctx context.Context, db *gorm.DB, token, key, kind string, ttl time.Duration) error {
	now := time.Now().UTC()
	tx := db.WithContext(ctx)

	if err := tx.Where("token = ? AND key = ? AND expires_at <= ?", token, key, now).
		Delete(&domain.Delivery{}).Error; err != nil {
		return err
	}

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}, {Name: "key"}},
		DoNothing: true,
	}).Create(&domain.Delivery{
		Token:     token,
		Key:       key,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// ReleaseDelivery drops a claim, so a retry of a delivery that failed on our
// side is processed again.
func ReleaseDelivery(ctx context.Context, db *gorm.DB, token, key string) error {
	return db.WithContext(ctx).
		Where("token = ? AND key = ?", token, key).
		Delete(&domain.Delivery{}).Error
}

// PurgeDeliveries deletes claims that expired before now.
func PurgeDeliveries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Delivery{})
	return res.RowsAffected, res.Error
}
