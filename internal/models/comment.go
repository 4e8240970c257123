package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Comment struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PostID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"post_id"`
	Post     *BlogPost  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"post,omitempty"`
	AuthorID *uuid.UUID `gorm:"type:uuid;index" json:"author_id"`
	Author   *Author    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"author,omitempty"`
	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"` // nil for top-level comments
	Parent   *Comment   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"parent,omitempty"`
	Content  string     `gorm:"type:text;not null" json:"content"`
	Timestamps
}

func (c *Comment) AuthorName() string {
	if c.Author == nil {
		return "Anonymous"
	}
	return c.Author.FullName()
}

func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
