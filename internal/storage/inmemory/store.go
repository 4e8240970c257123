package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quill/internal/models"
	"quill/internal/storage"
)

// Store implements storage.Storage in process memory. It mirrors the
// relational behavior the PostgreSQL schema provides: unique slugs, usernames
// and author emails, ON DELETE CASCADE for comments, ON DELETE SET NULL for
// authors.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*models.User
	authors  map[uuid.UUID]*models.Author // by author ID
	posts    map[uuid.UUID]*models.BlogPost
	comments map[uuid.UUID]*models.Comment

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*models.User),
		authors:  make(map[uuid.UUID]*models.Author),
		posts:    make(map[uuid.UUID]*models.BlogPost),
		comments: make(map[uuid.UUID]*models.Comment),
		now:      time.Now,
	}
}

// WithClock replaces the time source used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) stamp(ts *models.Timestamps, created bool) {
	now := s.now().UTC()
	if created && ts.CreatedAt.IsZero() {
		ts.CreatedAt = now
	}
	ts.UpdatedAt = now
}

// === Accounts ===

func (s *Store) CreateUserWithAuthor(ctx context.Context, user *models.User, author *models.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) {
			return storage.ErrDuplicateUser
		}
	}
	if s.emailTakenLocked(author.Email, uuid.Nil) {
		return storage.ErrDuplicateEmail
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if author.ID == uuid.Nil {
		author.ID = uuid.New()
	}
	author.UserID = user.ID
	s.stamp(&user.Timestamps, true)
	s.stamp(&author.Timestamps, true)

	u := *user
	u.Author = nil
	s.users[u.ID] = &u
	a := *author
	s.authors[a.ID] = &a

	user.Author = author
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.userCopyLocked(u), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return s.userCopyLocked(u), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) userCopyLocked(u *models.User) *models.User {
	out := *u
	out.Author = s.authorByUserLocked(u.ID)
	return &out
}

func (s *Store) authorByUserLocked(userID uuid.UUID) *models.Author {
	for _, a := range s.authors {
		if a.UserID == userID {
			out := *a
			return &out
		}
	}
	return nil
}

func (s *Store) authorLocked(id *uuid.UUID) *models.Author {
	if id == nil {
		return nil
	}
	a, ok := s.authors[*id]
	if !ok {
		return nil
	}
	out := *a
	return &out
}

func (s *Store) UsernameTaken(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) EmailTaken(ctx context.Context, email string, exceptUserID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emailTakenLocked(email, exceptUserID), nil
}

func (s *Store) emailTakenLocked(email string, exceptUserID uuid.UUID) bool {
	for _, a := range s.authors {
		if strings.EqualFold(a.Email, email) && a.UserID != exceptUserID {
			return true
		}
	}
	return false
}

func (s *Store) UpdateUserWithAuthor(ctx context.Context, user *models.User, author *models.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.authors[author.ID]; !ok {
		return storage.ErrNotFound
	}
	if s.emailTakenLocked(author.Email, user.ID) {
		return storage.ErrDuplicateEmail
	}

	s.stamp(&user.Timestamps, false)
	s.stamp(&author.Timestamps, false)
	u := *user
	u.Author = nil
	s.users[u.ID] = &u
	a := *author
	s.authors[a.ID] = &a
	return nil
}

func (s *Store) GetAuthorByUserID(ctx context.Context, userID uuid.UUID) (*models.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a := s.authorByUserLocked(userID); a != nil {
		return a, nil
	}
	return nil, storage.ErrNotFound
}

// === Posts ===

func (s *Store) CreatePost(ctx context.Context, post *models.BlogPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.Slug == "" {
		slug, err := models.UniqueSlug(models.Slugify(post.Title), func(candidate string) (bool, error) {
			return s.slugTakenLocked(candidate), nil
		})
		if err != nil {
			return err
		}
		post.Slug = slug
	} else if s.slugTakenLocked(post.Slug) {
		return storage.ErrDuplicateSlug
	}

	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.Status == "" {
		post.Status = models.StatusDraft
	}
	post.Prepare(s.now())
	s.stamp(&post.Timestamps, true)

	p := *post
	p.Author = nil
	s.posts[p.ID] = &p
	return nil
}

func (s *Store) slugTakenLocked(slug string) bool {
	for _, p := range s.posts {
		if p.Slug == slug {
			return true
		}
	}
	return false
}

func (s *Store) UpdatePost(ctx context.Context, post *models.BlogPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.posts[post.ID]
	if !ok {
		return storage.ErrNotFound
	}
	post.Slug = existing.Slug
	post.CreatedAt = existing.CreatedAt
	post.Prepare(s.now())
	s.stamp(&post.Timestamps, false)

	p := *post
	p.Author = nil
	p.CommentCount = 0
	s.posts[p.ID] = &p
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.posts, id)
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.posts {
		if p.Slug == slug {
			out := *p
			out.Author = s.authorLocked(p.AuthorID)
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListPosts(ctx context.Context, filter storage.PostFilter) ([]models.BlogPost, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(filter.Query)
	matched := make([]models.BlogPost, 0, len(s.posts))
	for _, p := range s.posts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Title), query) &&
			!strings.Contains(strings.ToLower(p.Content), query) {
			continue
		}
		out := *p
		out.Author = s.authorLocked(p.AuthorID)
		out.CommentCount = s.countCommentsLocked(p.ID)
		matched = append(matched, out)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Limit <= 0 {
		return matched, total, nil
	}
	start := filter.Offset
	if start >= len(matched) {
		return []models.BlogPost{}, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// === Comments ===

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return storage.ErrNotFound
	}
	if comment.ParentID != nil {
		if _, ok := s.comments[*comment.ParentID]; !ok {
			return storage.ErrNotFound
		}
	}

	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	s.stamp(&comment.Timestamps, true)

	c := *comment
	c.Author = nil
	c.Post = nil
	c.Parent = nil
	s.comments[c.ID] = &c
	return nil
}

func (s *Store) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *c
	out.Author = s.authorLocked(c.AuthorID)
	return &out, nil
}

// DeleteComment removes the comment and, transitively, every reply below it.
func (s *Store) DeleteComment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return storage.ErrNotFound
	}

	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		delete(s.comments, current)
		for cid, c := range s.comments {
			if c.ParentID != nil && *c.ParentID == current {
				queue = append(queue, cid)
			}
		}
	}
	return nil
}

func (s *Store) GetRootComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roots := make([]models.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID && c.ParentID == nil {
			out := *c
			out.Author = s.authorLocked(c.AuthorID)
			roots = append(roots, out)
		}
	}
	sortNewestFirst(roots)
	return roots, nil
}

func (s *Store) GetRepliesByParentIDs(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID][]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = true
	}

	result := make(map[uuid.UUID][]models.Comment, len(parentIDs))
	for _, c := range s.comments {
		if c.ParentID == nil || !wanted[*c.ParentID] {
			continue
		}
		out := *c
		out.Author = s.authorLocked(c.AuthorID)
		result[*c.ParentID] = append(result[*c.ParentID], out)
	}
	for id := range result {
		sortNewestFirst(result[id])
	}
	return result, nil
}

func (s *Store) CountComments(ctx context.Context, postID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(s.countCommentsLocked(postID)), nil
}

func (s *Store) countCommentsLocked(postID uuid.UUID) int {
	n := 0
	for _, c := range s.comments {
		if c.PostID == postID {
			n++
		}
	}
	return n
}

func sortNewestFirst(comments []models.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
}

var _ storage.Storage = (*Store)(nil)
