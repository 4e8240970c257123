package models

import (
	"time"
)

// Timestamps is embedded into every persisted entity.
type Timestamps struct {
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
