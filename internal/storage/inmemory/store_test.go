package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/models"
	"quill/internal/storage"
)

// tickingClock returns a clock that advances one second per call so that
// creation order is observable in newest-first listings.
func tickingClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T) (*Store, *models.Author) {
	t.Helper()
	store := New().WithClock(tickingClock())
	user := &models.User{Username: "alice", Email: "alice@example.com", FirstName: "Alice", LastName: "Liddell"}
	author := &models.Author{FirstName: "Alice", LastName: "Liddell", Email: "alice@example.com"}
	require.NoError(t, store.CreateUserWithAuthor(context.Background(), user, author))
	return store, author
}

func createPost(t *testing.T, s *Store, author *models.Author, title string) *models.BlogPost {
	t.Helper()
	post := &models.BlogPost{Title: title, Content: "body of " + title, AuthorID: &author.ID}
	require.NoError(t, s.CreatePost(context.Background(), post))
	return post
}

func createComment(t *testing.T, s *Store, post *models.BlogPost, parent *models.Comment, content string) *models.Comment {
	t.Helper()
	c := &models.Comment{PostID: post.ID, Content: content}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	require.NoError(t, s.CreateComment(context.Background(), c))
	return c
}

func TestStore_CreateUserWithAuthor(t *testing.T) {
	store, author := newTestStore(t)
	ctx := context.Background()

	user, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, user.Author)
	assert.Equal(t, author.ID, user.Author.ID)

	byUser, err := store.GetAuthorByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, author.ID, byUser.ID)

	err = store.CreateUserWithAuthor(ctx,
		&models.User{Username: "bob"},
		&models.Author{Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicateEmail)

	err = store.CreateUserWithAuthor(ctx,
		&models.User{Username: "Alice"},
		&models.Author{Email: "other@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicateUser)
}

func TestStore_CreatePost_UniqueSlugs(t *testing.T) {
	store, author := newTestStore(t)

	first := createPost(t, store, author, "Hello World")
	second := createPost(t, store, author, "hello,  world!")
	third := createPost(t, store, author, "Hello World")

	assert.Equal(t, "hello-world", first.Slug)
	assert.Equal(t, "hello-world-1", second.Slug)
	assert.Equal(t, "hello-world-2", third.Slug)
}

func TestStore_CreatePost_ExplicitSlugConflict(t *testing.T) {
	store, author := newTestStore(t)
	createPost(t, store, author, "Hello")

	err := store.CreatePost(context.Background(), &models.BlogPost{Title: "Other", Slug: "hello"})
	assert.ErrorIs(t, err, storage.ErrDuplicateSlug)
}

func TestStore_UpdatePost_KeepsSlug(t *testing.T) {
	store, author := newTestStore(t)
	ctx := context.Background()
	post := createPost(t, store, author, "Original Title")

	post.Title = "Completely Different"
	post.Slug = "tampered"
	require.NoError(t, store.UpdatePost(ctx, post))

	got, err := store.GetPostBySlug(ctx, "original-title")
	require.NoError(t, err)
	assert.Equal(t, "Completely Different", got.Title)

	_, err = store.GetPostBySlug(ctx, "tampered")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_DeletePost_CascadesComments(t *testing.T) {
	store, author := newTestStore(t)
	ctx := context.Background()
	post := createPost(t, store, author, "Doomed")
	other := createPost(t, store, author, "Survivor")

	root := createComment(t, store, post, nil, "root")
	reply := createComment(t, store, post, root, "reply")
	createComment(t, store, post, reply, "reply to reply")
	kept := createComment(t, store, other, nil, "elsewhere")

	require.NoError(t, store.DeletePost(ctx, post.ID))

	n, err := store.CountComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.GetComment(ctx, reply.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetComment(ctx, kept.ID)
	assert.NoError(t, err)
}

func TestStore_DeleteComment_CascadesReplies(t *testing.T) {
	store, author := newTestStore(t)
	ctx := context.Background()
	post := createPost(t, store, author, "Thread")

	parent := createComment(t, store, post, nil, "parent")
	sibling := createComment(t, store, post, nil, "sibling")
	reply := createComment(t, store, post, parent, "reply")
	nested := createComment(t, store, post, reply, "nested")

	require.NoError(t, store.DeleteComment(ctx, parent.ID))

	for _, id := range []uuid.UUID{parent.ID, reply.ID, nested.ID} {
		_, err := store.GetComment(ctx, id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
	_, err := store.GetComment(ctx, sibling.ID)
	assert.NoError(t, err)

	roots, err := store.GetRootComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, sibling.ID, roots[0].ID)
}

func TestStore_CreateComment_UnknownParent(t *testing.T) {
	store, author := newTestStore(t)
	post := createPost(t, store, author, "Thread")
	missing := uuid.New()

	err := store.CreateComment(context.Background(), &models.Comment{PostID: post.ID, ParentID: &missing, Content: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ListPosts_PaginationAndFilters(t *testing.T) {
	store, author := newTestStore(t)
	ctx := context.Background()

	a := createPost(t, store, author, "Go generics")
	b := createPost(t, store, author, "Rust traits")
	c := createPost(t, store, author, "Go channels")
	c.Status = models.StatusArchived
	require.NoError(t, store.UpdatePost(ctx, c))
	createComment(t, store, a, nil, "nice")

	page, total, err := store.ListPosts(ctx, storage.PostFilter{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, c.ID, page[0].ID)
	assert.Equal(t, b.ID, page[1].ID)

	page, _, err = store.ListPosts(ctx, storage.PostFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, a.ID, page[0].ID)
	assert.Equal(t, 1, page[0].CommentCount)
	require.NotNil(t, page[0].Author)

	page, total, err = store.ListPosts(ctx, storage.PostFilter{Query: "go"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, page, 2)

	page, total, err = store.ListPosts(ctx, storage.PostFilter{Status: models.StatusArchived})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, c.ID, page[0].ID)
}
