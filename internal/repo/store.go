package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
)

// Store adapts the repository free functions to the interfaces the services
// package consumes, keeping services decoupled from this package while
// reusing the functions above. The zero value is ready to use.
type Store struct{}

// CreateRepository proxies CreateRepository.
func (Store) CreateRepository(ctx context.Context, db *gorm.DB, name, url string) (string, error) {
	return CreateRepository(ctx, db, name, url)
}

// GetRepository proxies GetRepository.
func (Store) GetRepository(ctx context.Context, db *gorm.DB, token string) (*domain.Repository, error) {
	return GetRepository(ctx, db, token)
}

// ListRepositories proxies ListRepositories.
func (Store) ListRepositories(ctx context.Context, db *gorm.DB) ([]domain.Repository, error) {
	return ListRepositories(ctx, db)
}

// CountBindings proxies CountBindings.
func (Store) CountBindings(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	return CountBindings(ctx, db, chatID)
}

// FindBindingsByChat proxies FindBindingsByChat.
func (Store) FindBindingsByChat(ctx context.Context, db *gorm.DB, chatID int64) ([]domain.ChatBinding, error) {
	return FindBindingsByChat(ctx, db, chatID)
}

// FindBindingsByToken proxies FindBindingsByToken.
func (Store) FindBindingsByToken(ctx context.Context, db *gorm.DB, token string) ([]domain.ChatBinding, error) {
	return FindBindingsByToken(ctx, db, token)
}

// ListBoundRepositories proxies ListBoundRepositories.
func (Store) ListBoundRepositories(ctx context.Context, db *gorm.DB, chatID int64) ([]domain.BoundRepository, error) {
	return ListBoundRepositories(ctx, db, chatID)
}

// ListBoundChatIDs proxies ListBoundChatIDs.
func (Store) ListBoundChatIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	return ListBoundChatIDs(ctx, db)
}

// BindingExists proxies BindingExists.
func (Store) BindingExists(ctx context.Context, db *gorm.DB, token string, chatID int64) (bool, error) {
	return BindingExists(ctx, db, token, chatID)
}

// CreateBinding proxies CreateBinding.
func (Store) CreateBinding(ctx context.Context, db *gorm.DB, token string, chatID int64) error {
	return CreateBinding(ctx, db, token, chatID)
}

// DeleteBinding proxies DeleteBinding.
func (Store) DeleteBinding(ctx context.Context, db *gorm.DB, token string, chatID int64) error {
	return DeleteBinding(ctx, db, token, chatID)
}

// DeleteAllBindings proxies DeleteAllBindings.
func (Store) DeleteAllBindings(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	return DeleteAllBindings(ctx, db, chatID)
}

// ClaimDelivery proxies ClaimDelivery.
func (Store) ClaimDelivery(ctx context.Context, db *gorm.DB, token, key, kind string, ttl time.Duration) error {
	return ClaimDelivery(ctx, db, token, key, kind, ttl)
}

// ReleaseDelivery proxies ReleaseDelivery.
func (Store) ReleaseDelivery(ctx context.Context, db *gorm.DB, token, key string) error {
	return ReleaseDelivery(ctx, db, token, key)
}
