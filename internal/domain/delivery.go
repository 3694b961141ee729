package domain

import "time"

// Delivery records a processed webhook delivery so a GitLab retry carrying
// the same delivery key is not fanned out twice. Rows expire after the
// configured dedupe window.
type Delivery struct {
	Token     string    `gorm:"type:char(40);primaryKey"`
	Key       string    `gorm:"type:varchar(128);primaryKey"`
	Kind      string    `gorm:"type:varchar(64)"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index:idx_delivery_expires"`
}

// TableName implements the GORM tabler interface.
func (Delivery) TableName() string { return "deliveries" }
