// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ChatBinding model (chat ↔ repository subscriptions).
//
// Every function is a single statement, which makes it atomic on its own;
// nothing here spans more than one call. createBinding's "check then insert"
// is expressed as INSERT ... ON CONFLICT DO NOTHING for the same reason.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
)

// CountBindings returns how many repositories chatID is bound to.
func CountBindings(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatBinding{}).
		Where("chat_id = ?", chatID).
		Count(&total).Error
	return total, err
}

// FindBindingsByChat returns all bindings held by chatID, in no particular order.
func FindBindingsByChat(ctx context.Context, db *gorm.DB, chatID int64) ([]domain.ChatBinding, error) {
	var out []domain.ChatBinding
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Find(&out).Error
	return out, err
}

// FindBindingsByToken returns all chats bound to token. Used for fanout.
func FindBindingsByToken(ctx context.Context, db *gorm.DB, token string) ([]domain.ChatBinding, error) {
	var out []domain.ChatBinding
	err := db.WithContext(ctx).
		Where("token = ?", token).
		Find(&out).Error
	return out, err
}

// ListBoundRepositories joins chatID's bindings with repository names.
func ListBoundRepositories(ctx context.Context, db *gorm.DB, chatID int64) ([]domain.BoundRepository, error) {
	var out []domain.BoundRepository
	err := db.WithContext(ctx).
		Table("chats").
		Select("chats.token AS token, repos.name AS name").
		Joins("JOIN repos ON repos.token = chats.token").
		Where("chats.chat_id = ?", chatID).
		Order("repos.name asc").
		Scan(&out).Error
	return out, err
}

// ListBoundChatIDs returns the distinct chat ids holding at least one binding.
func ListBoundChatIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var out []int64
	err := db.WithContext(ctx).
		Model(&domain.ChatBinding{}).
		Distinct("chat_id").
		Pluck("chat_id", &out).Error
	return out, err
}

// BindingExists reports whether (token, chatID) is bound.
func BindingExists(ctx context.Context, db *gorm.DB, token string, chatID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ChatBinding{}).
		Where("token = ? AND chat_id = ?", token, chatID).
		Count(&n).Error
	return n > 0, err
}

// CreateBinding binds chatID to token. When the pair already exists nothing
// is written and ErrDuplicate is returned. An unknown token fails the FK
// constraint and surfaces as a raw DB error.
func CreateBinding(ctx context.Context, db *gorm.DB, token string, chatID int64) error {
	b := &domain.ChatBinding{
		Token:     token,
		ChatID:    chatID,
		CreatedAt: time.Now().UTC(),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(b)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// DeleteBinding removes (token, chatID). It returns ErrNotFound when the pair
// was not bound.
func DeleteBinding(ctx context.Context, db *gorm.DB, token string, chatID int64) error {
	res := db.WithContext(ctx).
		Where("token = ? AND chat_id = ?", token, chatID).
		Delete(&domain.ChatBinding{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllBindings removes every binding held by chatID and returns how many
// rows went away.
func DeleteAllBindings(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	res := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&domain.ChatBinding{})
	return res.RowsAffected, res.Error
}
