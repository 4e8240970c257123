package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"quill/internal/models"
	"quill/internal/storage"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	return newStoreWithMatcher(t, sqlmock.QueryMatcherRegexp)
}

func newStoreWithMatcher(t *testing.T, matcher sqlmock.QueryMatcher) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)
	return New(db), mock
}

func uniqueViolationOn(constraint string) *pgconn.PgError {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Detail: "already exists"}
}

func countRows(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

const (
	slugCount  = `SELECT count\(\*\) FROM "blog_posts" WHERE slug = \$1`
	postInsert = `INSERT INTO "blog_posts"`
)

func TestCreatePost_RetriesWhenSlugIsClaimedConcurrently(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(slugCount).WithArgs("hello-world").WillReturnRows(countRows(0))
	mock.ExpectExec(postInsert).WillReturnError(uniqueViolationOn("idx_blog_posts_slug"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(slugCount).WithArgs("hello-world").WillReturnRows(countRows(1))
	mock.ExpectQuery(slugCount).WithArgs("hello-world-1").WillReturnRows(countRows(0))
	mock.ExpectExec(postInsert).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	post := &models.BlogPost{ID: uuid.New(), Title: "Hello World", Content: "body", Status: models.StatusDraft}
	require.NoError(t, store.CreatePost(context.Background(), post))

	assert.Equal(t, "hello-world-1", post.Slug)
	assert.Equal(t, "body...", post.Excerpt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePost_GivesUpAfterRepeatedConflicts(t *testing.T) {
	store, mock := newStoreWithMock(t)

	for i := 0; i < maxSlugAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(slugCount).WithArgs("busy").WillReturnRows(countRows(0))
		mock.ExpectExec(postInsert).WillReturnError(uniqueViolationOn("idx_blog_posts_slug"))
		mock.ExpectRollback()
	}

	err := store.CreatePost(context.Background(), &models.BlogPost{ID: uuid.New(), Title: "Busy", Content: "x"})
	assert.ErrorIs(t, err, storage.ErrDuplicateSlug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePost_ExplicitSlugConflictIsNotRetried(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(postInsert).WillReturnError(uniqueViolationOn("idx_blog_posts_slug"))
	mock.ExpectRollback()

	post := &models.BlogPost{ID: uuid.New(), Title: "Taken", Slug: "taken", Content: "x"}
	err := store.CreatePost(context.Background(), post)

	assert.ErrorIs(t, err, storage.ErrDuplicateSlug)
	assert.Equal(t, "taken", post.Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserWithAuthor_TranslatesConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("username", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "users"`).WillReturnError(uniqueViolationOn("idx_users_username"))
		mock.ExpectRollback()

		err := store.CreateUserWithAuthor(ctx, &models.User{Username: "alice"}, &models.Author{Email: "a@example.com"})
		assert.ErrorIs(t, err, storage.ErrDuplicateUser)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("email", func(t *testing.T) {
		store, mock := newStoreWithMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "users"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "authors"`).WillReturnError(uniqueViolationOn("idx_authors_email"))
		mock.ExpectRollback()

		user := &models.User{Username: "alice"}
		err := store.CreateUserWithAuthor(ctx, user, &models.Author{Email: "a@example.com"})
		assert.ErrorIs(t, err, storage.ErrDuplicateEmail)
		assert.Nil(t, user.Author)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdatePost_WritesEverythingButSlug(t *testing.T) {
	store, mock := newStoreWithMatcher(t, sqlmock.QueryMatcherFunc(func(expected, actual string) error {
		if !strings.HasPrefix(actual, expected) {
			return fmt.Errorf("query %q does not start with %q", actual, expected)
		}
		for _, column := range []string{`"slug"`, `"created_at"`} {
			if strings.Contains(actual, column) {
				return fmt.Errorf("query %q writes %s", actual, column)
			}
		}
		return nil
	}))

	mock.ExpectExec(`UPDATE "blog_posts" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	post := &models.BlogPost{ID: uuid.New(), Title: "Renamed", Slug: "original", Content: "x"}
	require.NoError(t, store.UpdatePost(context.Background(), post))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePost_MissingRowIsNotFound(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(`UPDATE "blog_posts" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdatePost(context.Background(), &models.BlogPost{ID: uuid.New(), Title: "Gone", Content: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"not found", gorm.ErrRecordNotFound, storage.ErrNotFound},
		{"email", uniqueViolationOn("idx_authors_email"), storage.ErrDuplicateEmail},
		{"username", uniqueViolationOn("idx_users_username"), storage.ErrDuplicateUser},
		{"slug", uniqueViolationOn("idx_blog_posts_slug"), storage.ErrDuplicateSlug},
		{"wrapped", fmt.Errorf("insert: %w", uniqueViolationOn("idx_blog_posts_slug")), storage.ErrDuplicateSlug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tt.in), tt.want)
		})
	}

	other := &pgconn.PgError{Code: "23503", ConstraintName: "fk_blog_posts_author"}
	assert.Same(t, other, translate(other))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, translate(plain))
	assert.NoError(t, translate(nil))
}
