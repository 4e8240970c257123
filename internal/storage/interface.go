package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"quill/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrDuplicateUser  = errors.New("username already exists")
	ErrDuplicateSlug  = errors.New("slug already exists")
)

// PostFilter narrows a post listing. Zero values mean "no filter".
type PostFilter struct {
	Status models.Status
	Query  string // matched against title and content
	Limit  int
	Offset int
}

// Storage is the datastore contract shared by the PostgreSQL and in-memory
// backends. Every mutating call is a single transaction.
type Storage interface {
	// Accounts
	CreateUserWithAuthor(ctx context.Context, user *models.User, author *models.Author) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptUserID uuid.UUID) (bool, error)
	UpdateUserWithAuthor(ctx context.Context, user *models.User, author *models.Author) error
	GetAuthorByUserID(ctx context.Context, userID uuid.UUID) (*models.Author, error)

	// Posts
	CreatePost(ctx context.Context, post *models.BlogPost) error
	UpdatePost(ctx context.Context, post *models.BlogPost) error
	DeletePost(ctx context.Context, id uuid.UUID) error
	GetPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]models.BlogPost, int64, error)

	// Comments
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	DeleteComment(ctx context.Context, id uuid.UUID) error
	GetRootComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
	GetRepliesByParentIDs(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID][]models.Comment, error)
	CountComments(ctx context.Context, postID uuid.UUID) (int64, error)
}
