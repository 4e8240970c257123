package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Statuses lists the valid values in display order.
var Statuses = []Status{StatusDraft, StatusPublished, StatusArchived}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusPublished:
		return "Published"
	case StatusArchived:
		return "Archived"
	default:
		return "Draft"
	}
}

const (
	excerptLength = 247
	ellipsis      = "..."
)

type BlogPost struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string     `gorm:"size:250;not null;index" json:"title"`
	Slug        string     `gorm:"size:300;uniqueIndex;not null" json:"slug"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	Excerpt     string     `gorm:"size:500" json:"excerpt"`
	Image       string     `gorm:"size:500" json:"image"` // storage reference
	IsPublished bool       `gorm:"default:false;index:idx_post_publish,priority:1" json:"is_published"`
	PublishedAt *time.Time `gorm:"index:idx_post_publish,priority:2" json:"published_at"`
	Status      Status     `gorm:"size:20;default:'draft';not null" json:"status"`
	AuthorID    *uuid.UUID `gorm:"type:uuid;index" json:"author_id"` // cleared when the author is deleted
	Author      *Author    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"author,omitempty"`
	Timestamps

	// Filled by list queries, not persisted.
	CommentCount int `gorm:"-" json:"comment_count"`
}

// Prepare normalises the post before it is written. It stamps PublishedAt on
// first publish and derives the excerpt when none was given. The slug is
// assigned by the store on first insert.
func (p *BlogPost) Prepare(now time.Time) {
	if p.IsPublished && p.PublishedAt == nil {
		p.PublishedAt = &now
	}
	if p.Content != "" && p.Excerpt == "" {
		p.Excerpt = DeriveExcerpt(p.Content)
	}
}

// Validate checks the publish-state invariants. The two checks are
// independent: a draft or archived post may carry a published date.
func (p *BlogPost) Validate() error {
	status := p.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return &ValidationError{Field: "status", Message: "Unknown status " + string(status) + "."}
	}
	if status == StatusPublished {
		if p.PublishedAt == nil {
			return &ValidationError{Message: "Published posts must have a published date."}
		}
		if !p.IsPublished {
			return &ValidationError{Message: "Post marked as published must have is_published=true."}
		}
	}
	return nil
}

// DeriveExcerpt returns the first 247 characters of content cut back to the
// last whitespace, followed by an ellipsis. Content that already fits is
// kept whole but still gets the ellipsis.
func DeriveExcerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLength {
		return strings.TrimRightFunc(content, unicode.IsSpace) + ellipsis
	}

	head := runes[:excerptLength]
	if !unicode.IsSpace(runes[excerptLength]) {
		if i := lastSpace(head); i > 0 {
			head = head[:i]
		}
	}
	return strings.TrimRightFunc(string(head), unicode.IsSpace) + ellipsis
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if unicode.IsSpace(rs[i]) {
			return i
		}
	}
	return -1
}

func (p *BlogPost) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *BlogPost) BeforeSave(tx *gorm.DB) error {
	p.Prepare(time.Now())
	return nil
}
