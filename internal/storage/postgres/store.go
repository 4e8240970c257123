package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quill/internal/models"
	"quill/internal/storage"
)

// maxSlugAttempts bounds the retries when a concurrent insert claims the
// same slug between our existence check and our insert.
const maxSlugAttempts = 3

const uniqueViolation = "23505"

// Store implements storage.Storage on top of GORM and PostgreSQL.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// translate maps driver errors onto the storage sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return fmt.Errorf("%w: %s", storage.ErrDuplicateEmail, pgErr.Detail)
		case strings.Contains(pgErr.ConstraintName, "username"):
			return fmt.Errorf("%w: %s", storage.ErrDuplicateUser, pgErr.Detail)
		case strings.Contains(pgErr.ConstraintName, "slug"):
			return fmt.Errorf("%w: %s", storage.ErrDuplicateSlug, pgErr.Detail)
		}
	}
	return err
}

// === Accounts ===

func (s *Store) CreateUserWithAuthor(ctx context.Context, user *models.User, author *models.Author) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(user).Error; err != nil {
			return err
		}
		author.UserID = user.ID
		return tx.Create(author).Error
	})
	if err != nil {
		return translate(err)
	}
	user.Author = author
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Author").First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Author").Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(username) = LOWER(?)", username).Count(&count).Error
	return count > 0, err
}

func (s *Store) EmailTaken(ctx context.Context, email string, exceptUserID uuid.UUID) (bool, error) {
	query := s.db.WithContext(ctx).Model(&models.Author{}).Where("LOWER(email) = LOWER(?)", email)
	if exceptUserID != uuid.Nil {
		query = query.Where("user_id <> ?", exceptUserID)
	}
	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

func (s *Store) UpdateUserWithAuthor(ctx context.Context, user *models.User, author *models.Author) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations, "CreatedAt").Save(user).Error; err != nil {
			return err
		}
		return tx.Omit("CreatedAt").Save(author).Error
	})
	return translate(err)
}

func (s *Store) GetAuthorByUserID(ctx context.Context, userID uuid.UUID) (*models.Author, error) {
	var author models.Author
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&author).Error; err != nil {
		return nil, translate(err)
	}
	return &author, nil
}

// === Posts ===

// CreatePost assigns a unique slug (when unset) and inserts the post in the
// same transaction.
func (s *Store) CreatePost(ctx context.Context, post *models.BlogPost) error {
	generated := post.Slug == ""
	post.Prepare(time.Now())

	var err error
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if generated {
				slug, err := models.UniqueSlug(models.Slugify(post.Title), func(candidate string) (bool, error) {
					var count int64
					err := tx.Model(&models.BlogPost{}).Where("slug = ?", candidate).Count(&count).Error
					return count > 0, err
				})
				if err != nil {
					return err
				}
				post.Slug = slug
			}
			return tx.Omit(clause.Associations).Create(post).Error
		})
		err = translate(err)
		if !generated || !errors.Is(err, storage.ErrDuplicateSlug) {
			return err
		}
		log.Warn().Str("slug", post.Slug).Int("attempt", attempt).Msg("slug claimed concurrently, retrying")
		post.Slug = ""
	}
	return err
}

// UpdatePost writes every column except the slug, which never changes after
// the first insert. A post removed in the meantime is reported as not found.
func (s *Store) UpdatePost(ctx context.Context, post *models.BlogPost) error {
	post.Prepare(time.Now())
	res := s.db.WithContext(ctx).Model(post).
		Select("*").
		Omit(clause.Associations, "Slug", "CreatedAt").
		Updates(post)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.BlogPost{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	var post models.BlogPost
	if err := s.db.WithContext(ctx).Preload("Author").Where("slug = ?", slug).First(&post).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (s *Store) ListPosts(ctx context.Context, filter storage.PostFilter) ([]models.BlogPost, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.BlogPost{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		query = query.Where("title ILIKE ? OR content ILIKE ?", pattern, pattern)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.BlogPost
	q := query.Preload("Author").Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, 0, err
	}

	if err := s.fillCommentCounts(ctx, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// fillCommentCounts sets CommentCount on every post with one grouped query.
func (s *Store) fillCommentCounts(ctx context.Context, posts []models.BlogPost) error {
	if len(posts) == 0 {
		return nil
	}

	postIDs := make([]uuid.UUID, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	type countResult struct {
		PostID uuid.UUID
		Count  int
	}
	var results []countResult
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&results).Error
	if err != nil {
		return err
	}

	counts := make(map[uuid.UUID]int, len(results))
	for _, r := range results {
		counts[r.PostID] = r.Count
	}
	for i := range posts {
		posts[i].CommentCount = counts[posts[i].ID]
	}
	return nil
}

// === Comments ===

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error)
}

func (s *Store) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Author").First(&comment, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &comment, nil
}

// DeleteComment removes the comment; replies go with it through the
// parent_id foreign key.
func (s *Store) DeleteComment(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) GetRootComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).Preload("Author").
		Where("post_id = ? AND parent_id IS NULL", postID).
		Order("created_at DESC").
		Find(&comments).Error
	return comments, err
}

// GetRepliesByParentIDs loads the direct replies of every given comment in
// one query.
func (s *Store) GetRepliesByParentIDs(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID][]models.Comment, error) {
	result := make(map[uuid.UUID][]models.Comment, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}

	var comments []models.Comment
	err := s.db.WithContext(ctx).Preload("Author").
		Where("parent_id IN ?", parentIDs).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}

	for _, c := range comments {
		result[*c.ParentID] = append(result[*c.ParentID], c)
	}
	return result, nil
}

func (s *Store) CountComments(ctx context.Context, postID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

var _ storage.Storage = (*Store)(nil)
