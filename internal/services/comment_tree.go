package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quill/internal/models"
	"quill/internal/storage"
)

// CommentThread is a top-level comment with its direct replies.
type CommentThread struct {
	Comment models.Comment
	Replies []models.Comment
}

type CommentService struct {
	store storage.Storage
}

func NewCommentService(store storage.Storage) *CommentService {
	return &CommentService{store: store}
}

// Thread returns the post's top-level comments, newest first, each with its
// direct replies. Replies of replies are stored but not expanded.
func (s *CommentService) Thread(ctx context.Context, postID uuid.UUID) ([]CommentThread, error) {
	roots, err := s.store.GetRootComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	if len(roots) == 0 {
		return []CommentThread{}, nil
	}

	ids := make([]uuid.UUID, len(roots))
	for i := range roots {
		ids[i] = roots[i].ID
	}
	replies, err := s.store.GetRepliesByParentIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load replies: %w", err)
	}
	return BuildThreads(roots, replies), nil
}

// BuildThreads pairs each root with its replies, keeping the order of roots.
func BuildThreads(roots []models.Comment, replies map[uuid.UUID][]models.Comment) []CommentThread {
	threads := make([]CommentThread, 0, len(roots))
	for _, root := range roots {
		r := replies[root.ID]
		if r == nil {
			r = []models.Comment{}
		}
		threads = append(threads, CommentThread{Comment: root, Replies: r})
	}
	return threads
}

// AddComment stores a comment on post. A parent, when given, must be a
// comment on the same post.
func (s *CommentService) AddComment(ctx context.Context, post *models.BlogPost, author *models.Author, content string, parentID *uuid.UUID) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, FieldErrors{"content": ErrEmptyComment.Error()}
	}

	if parentID != nil {
		parent, err := s.store.GetComment(ctx, *parentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrParentMismatch
			}
			return nil, fmt.Errorf("load parent comment: %w", err)
		}
		if parent.PostID != post.ID {
			return nil, ErrParentMismatch
		}
	}

	comment := &models.Comment{
		PostID:   post.ID,
		ParentID: parentID,
		Content:  content,
	}
	if author != nil {
		comment.AuthorID = &author.ID
		comment.Author = author
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	log.Debug().Str("post", post.Slug).Bool("reply", comment.IsReply()).Msg("comment added")
	return comment, nil
}

// CanDeleteComment reports whether user may remove comment: superusers always,
// otherwise only the comment's author.
func CanDeleteComment(user *models.User, comment *models.Comment) bool {
	if user == nil || comment == nil {
		return false
	}
	if user.IsSuperuser {
		return true
	}
	return user.Author != nil && comment.AuthorID != nil && *comment.AuthorID == user.Author.ID
}

// DeleteComment removes a comment of post and every reply below it. A comment
// that belongs to another post is reported as not found.
func (s *CommentService) DeleteComment(ctx context.Context, actor *models.User, post *models.BlogPost, id uuid.UUID) (*models.Comment, error) {
	comment, err := s.store.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.PostID != post.ID {
		return nil, storage.ErrNotFound
	}
	if !CanDeleteComment(actor, comment) {
		return nil, ErrForbidden
	}

	if err := s.store.DeleteComment(ctx, id); err != nil {
		return nil, fmt.Errorf("delete comment: %w", err)
	}
	log.Debug().Str("post", post.Slug).Str("comment", id.String()).Msg("comment deleted")
	return comment, nil
}
