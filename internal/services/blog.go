package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quill/internal/models"
	"quill/internal/storage"
)

// PostsPerPage is the page size of the post listing.
const PostsPerPage = 2

// PostInput carries the editable fields of a post form.
type PostInput struct {
	Title       string                `json:"title"`
	Content     string                `json:"content"`
	ImageFile   *multipart.FileHeader `json:"-"` // optional; nil keeps the current image on edit
	IsPublished bool                  `json:"is_published"`
	PublishedAt *time.Time            `json:"published_at"`
	Status      models.Status         `json:"status"`
}

func (in PostInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required.Error("title is required"), validation.RuneLength(1, 250)),
		validation.Field(&in.Content, validation.Required.Error("content is required")),
		validation.Field(&in.Status, validation.In(
			models.StatusDraft, models.StatusPublished, models.StatusArchived,
		).Error("select a valid status")),
	)
}

type ListQuery struct {
	Page   int
	Status models.Status
	Query  string
}

type PostPage struct {
	Posts      []models.BlogPost
	Page       int
	TotalPages int
	Total      int64
}

func (p PostPage) HasPrev() bool { return p.Page > 1 }
func (p PostPage) HasNext() bool { return p.Page < p.TotalPages }

// BlogService implements the post workflows behind the HTTP views.
type BlogService struct {
	store  storage.Storage
	images ImageStore
}

// NewBlogService returns the service. images may be nil, in which case
// uploaded images are ignored.
func NewBlogService(store storage.Storage, images ImageStore) *BlogService {
	return &BlogService{store: store, images: images}
}

func (s *BlogService) saveImage(ctx context.Context, postID uuid.UUID, header *multipart.FileHeader) (string, error) {
	if header == nil || s.images == nil {
		return "", nil
	}
	ref, err := s.images.Save(ctx, postID, header)
	if err != nil {
		if errors.Is(err, ErrNotImage) || errors.Is(err, ErrImageTooLarge) {
			return "", FieldErrors{"image": err.Error()}
		}
		return "", fmt.Errorf("save image: %w", err)
	}
	return ref, nil
}

// ListPosts returns one page of posts. Pages below 1 clamp to the first page
// and pages past the end clamp to the last one.
func (s *BlogService) ListPosts(ctx context.Context, q ListQuery) (*PostPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}

	filter := storage.PostFilter{
		Status: q.Status,
		Query:  strings.TrimSpace(q.Query),
		Limit:  PostsPerPage,
		Offset: (page - 1) * PostsPerPage,
	}
	posts, total, err := s.store.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	totalPages := int((total + PostsPerPage - 1) / PostsPerPage)
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
		filter.Offset = (page - 1) * PostsPerPage
		if posts, total, err = s.store.ListPosts(ctx, filter); err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
	}
	return &PostPage{Posts: posts, Page: page, TotalPages: totalPages, Total: total}, nil
}

// GetPost loads a post by slug with its comment count filled in.
func (s *BlogService) GetPost(ctx context.Context, slug string) (*models.BlogPost, error) {
	post, err := s.store.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountComments(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	post.CommentCount = int(n)
	return post, nil
}

// CanModify reports whether user may edit or delete post: superusers always,
// otherwise only the post's author.
func CanModify(user *models.User, post *models.BlogPost) bool {
	if user == nil || post == nil {
		return false
	}
	if user.IsSuperuser {
		return true
	}
	return user.Author != nil && post.AuthorID != nil && *post.AuthorID == user.Author.ID
}

func (s *BlogService) CreatePost(ctx context.Context, author *models.Author, in PostInput) (*models.BlogPost, error) {
	if err := in.Validate(); err != nil {
		return nil, toFieldErrors(err)
	}

	post := &models.BlogPost{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(in.Title),
		Content:     in.Content,
		IsPublished: in.IsPublished,
		PublishedAt: in.PublishedAt,
		Status:      in.Status,
	}
	if post.Status == "" {
		post.Status = models.StatusDraft
	}
	if author != nil {
		post.AuthorID = &author.ID
		post.Author = author
	}
	if err := post.Validate(); err != nil {
		return nil, toFieldErrors(err)
	}
	ref, err := s.saveImage(ctx, post.ID, in.ImageFile)
	if err != nil {
		return nil, err
	}
	post.Image = ref

	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	log.Info().Str("slug", post.Slug).Msg("post created")
	return post, nil
}

// UpdatePost applies in to the post identified by slug. Authorization is
// checked before anything is changed; the slug itself never changes.
func (s *BlogService) UpdatePost(ctx context.Context, actor *models.User, slug string, in PostInput) (*models.BlogPost, error) {
	post, err := s.store.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !CanModify(actor, post) {
		return nil, ErrForbidden
	}
	if err := in.Validate(); err != nil {
		return nil, toFieldErrors(err)
	}

	updated := *post
	updated.Title = strings.TrimSpace(in.Title)
	updated.Content = in.Content
	updated.IsPublished = in.IsPublished
	if in.PublishedAt != nil {
		updated.PublishedAt = in.PublishedAt
	}
	if in.Status != "" {
		updated.Status = in.Status
	}
	if err := updated.Validate(); err != nil {
		return nil, toFieldErrors(err)
	}
	ref, err := s.saveImage(ctx, updated.ID, in.ImageFile)
	if err != nil {
		return nil, err
	}
	if ref != "" {
		updated.Image = ref
	}

	if err := s.store.UpdatePost(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	log.Info().Str("slug", updated.Slug).Str("actor", actor.Username).Msg("post updated")
	return &updated, nil
}

// DeletePost removes the post and, through the schema, all of its comments.
// The deleted post is returned so callers can still report on it.
func (s *BlogService) DeletePost(ctx context.Context, actor *models.User, slug string) (*models.BlogPost, error) {
	post, err := s.store.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !CanModify(actor, post) {
		return nil, ErrForbidden
	}
	if err := s.store.DeletePost(ctx, post.ID); err != nil {
		return nil, fmt.Errorf("delete post: %w", err)
	}
	log.Info().Str("slug", post.Slug).Str("actor", actor.Username).Msg("post deleted")
	return post, nil
}
