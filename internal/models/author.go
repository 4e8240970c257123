package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Author links a user account to the content it owns. There is exactly one
// Author per User.
type Author struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	FirstName string    `gorm:"size:250" json:"first_name"`
	LastName  string    `gorm:"size:250" json:"last_name"`
	Email     string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Timestamps
}

func (a *Author) FullName() string {
	return a.FirstName + " " + a.LastName
}

func (a *Author) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
