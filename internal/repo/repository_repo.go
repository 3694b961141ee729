// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Repository
// model (registered GitLab projects).
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition.
//
// Error semantics:
//   - When a repository is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - Registering a URL that already has a row returns ErrDuplicate together
//     with the existing token; the row is left untouched.
//   - On DB errors (connectivity, missing tables, ...) the raw gorm error is
//     propagated.
//
// Usage:
//
//	token, err := repo.CreateRepository(ctx, db, "demo", "https://gitlab.example.com/team/proj")
//	if errors.Is(err, repo.ErrDuplicate) {
//	    // already registered; token is still valid
//	} else if err != nil {
//	    // handle DB failure
//	}
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that the row being inserted already exists under its
// natural key (repository token, or (token, chat_id) binding pair).
var ErrDuplicate = errors.New("duplicate")

// CreateRepository registers a repository under the token derived from url.
//
// The insert is a single INSERT ... ON CONFLICT DO NOTHING, so concurrent
// registrations of the same URL cannot both succeed. When the token already
// exists the returned error is ErrDuplicate and the token is still returned.
func CreateRepository(ctx context.Context, db *gorm.DB, name, url string) (string, error) {
	r := &domain.Repository{
		Token:     domain.TokenForURL(url),
		Name:      name,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token"}}, DoNothing: true}).
		Create(r)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return r.Token, ErrDuplicate
	}
	return r.Token, nil
}

// GetRepository fetches a repository by token, or ErrNotFound.
func GetRepository(ctx context.Context, db *gorm.DB, token string) (*domain.Repository, error) {
	var r domain.Repository
	err := db.WithContext(ctx).
		Where("token = ?", token).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRepositories returns every registered repository, newest first.
func ListRepositories(ctx context.Context, db *gorm.DB) ([]domain.Repository, error) {
	var out []domain.Repository
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
