// Package domain defines the persistence models for registered GitLab
// repositories and the Telegram chats bound to them. These types are mapped
// with GORM and form the core data layer of the relay.
package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Repository is a GitLab project registered through the web UI. Its Token is
// derived deterministically from URL (hex SHA-1), so registering the same URL
// twice always lands on the same row.
//
// Fields:
//   - Token: 40-char hex digest of URL; primary key.
//   - Name: display name chosen at registration time.
//   - URL: canonical project URL (https://host/owner/repo).
//   - CreatedAt: set by GORM on insert.
//   - Bindings: has-many; owns the chats.token foreign key so bindings are
//     cascade-deleted with the repository. Never preloaded.
type Repository struct {
	Token     string    `json:"token"      gorm:"type:char(40);primaryKey"`
	Name      string    `json:"name"       gorm:"type:text;not null"`
	URL       string    `json:"url"        gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`

	Bindings []ChatBinding `json:"-" gorm:"foreignKey:Token;references:Token;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Repository.
func (Repository) TableName() string { return "repos" }

// TokenForURL derives the repository token from its URL. The digest is an
// identifier, not a secret: it only has to be stable and collision-free.
func TokenForURL(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// ChatBinding subscribes a Telegram chat to a repository's notifications.
// The pair (Token, ChatID) is the natural key; there is no surrogate id.
//
// Fields:
//   - Token: foreign key to Repository.Token.
//   - ChatID: Telegram chat id (group/channel) or user id (private chat).
type ChatBinding struct {
	Token     string    `json:"token"   gorm:"type:char(40);primaryKey;index:idx_binding_token"`
	ChatID    int64     `json:"chat_id" gorm:"primaryKey;autoIncrement:false;index:idx_binding_chat"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for ChatBinding.
func (ChatBinding) TableName() string { return "chats" }

// SchemaVersion is the single-row marker recording which schema revision the
// database was created with.
type SchemaVersion struct {
	ID        uint      `gorm:"primaryKey"`
	Version   int       `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for SchemaVersion.
func (SchemaVersion) TableName() string { return "schema_version" }

// BoundRepository pairs a binding with the repository name, used when a chat
// has to pick which of several bindings to drop.
type BoundRepository struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}
