package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/services"
)

var publishedAtLayouts = []string{"2006-01-02", "2006-01-02T15:04"}

type BlogHandler struct {
	posts    *services.BlogService
	comments *services.CommentService
	notify   *services.Dispatcher
}

func NewBlogHandler(posts *services.BlogService, comments *services.CommentService, notify *services.Dispatcher) *BlogHandler {
	return &BlogHandler{posts: posts, comments: comments, notify: notify}
}

func (h *BlogHandler) List(c *gin.Context) {
	status := models.Status(c.Query("status"))
	if !status.Valid() {
		status = ""
	}
	query := strings.TrimSpace(c.Query("q"))
	// Unparseable page numbers fall back to the first page.
	number, _ := strconv.Atoi(c.Query("page"))

	page, err := h.posts.ListPosts(c.Request.Context(), services.ListQuery{
		Page:   number,
		Status: status,
		Query:  query,
	})
	if err != nil {
		renderServiceError(c, err)
		return
	}

	Render(c, http.StatusOK, "blog/list.html", gin.H{
		"Title":    "Blog Posts",
		"Page":     page,
		"Posts":    page.Posts,
		"Status":   string(status),
		"Query":    query,
		"Statuses": models.Statuses,
	})
}

func (h *BlogHandler) Detail(c *gin.Context) {
	post, err := h.posts.GetPost(c.Request.Context(), c.Param("slug"))
	if err != nil {
		renderServiceError(c, err)
		return
	}
	h.renderDetail(c, http.StatusOK, post, nil, "")
}

func (h *BlogHandler) renderDetail(c *gin.Context, code int, post *models.BlogPost, errs services.FieldErrors, content string) {
	threads, err := h.comments.Thread(c.Request.Context(), post.ID)
	if err != nil {
		renderServiceError(c, err)
		return
	}
	Render(c, code, "blog/detail.html", gin.H{
		"Title":     post.Title,
		"Post":      post,
		"Threads":   threads,
		"CanModify": services.CanModify(middleware.CurrentUser(c), post),
		"Errors":    errs,
		"Content":   content,
	})
}

// AddComment handles the comment form on the detail page.
func (h *BlogHandler) AddComment(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	post, err := h.posts.GetPost(ctx, c.Param("slug"))
	if err != nil {
		renderServiceError(c, err)
		return
	}

	content := c.PostForm("content")
	var parentID *uuid.UUID
	if raw := strings.TrimSpace(c.PostForm("parent_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.renderDetail(c, http.StatusBadRequest, post, services.FieldErrors{"parent_id": services.ErrParentMismatch.Error()}, content)
			return
		}
		parentID = &id
	}

	_, err = h.comments.AddComment(ctx, post, user.Author, content, parentID)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrParentMismatch):
		h.renderDetail(c, http.StatusBadRequest, post, services.FieldErrors{"parent_id": err.Error()}, content)
		return
	case services.IsValidation(err):
		h.renderDetail(c, http.StatusBadRequest, post, formErrors(err), content)
		return
	default:
		renderServiceError(c, err)
		return
	}

	Flash(c, flashSuccess, "Comment Added Successfully")
	c.Redirect(http.StatusFound, "/posts/"+post.Slug)
}

// DeleteComment removes a comment, with its replies, for its author or a
// superuser.
func (h *BlogHandler) DeleteComment(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := h.posts.GetPost(ctx, c.Param("slug"))
	if err != nil {
		renderServiceError(c, err)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RenderError(c, http.StatusNotFound, "Page not found.")
		return
	}

	if _, err := h.comments.DeleteComment(ctx, middleware.CurrentUser(c), post, id); err != nil {
		renderServiceError(c, err)
		return
	}

	Flash(c, flashSuccess, "Comment deleted successfully!")
	c.Redirect(http.StatusFound, "/posts/"+post.Slug)
}

// bindPostForm reads the post form. A malformed date is reported as a field
// error rather than silently dropped.
func bindPostForm(c *gin.Context) (services.PostInput, gin.H, services.FieldErrors) {
	in := services.PostInput{
		Title:       c.PostForm("title"),
		Content:     c.PostForm("content"),
		IsPublished: c.PostForm("is_published") != "",
		Status:      models.Status(c.PostForm("status")),
	}
	form := gin.H{
		"Title":       in.Title,
		"Content":     in.Content,
		"IsPublished": in.IsPublished,
		"Status":      string(in.Status),
		"PublishedAt": c.PostForm("published_at"),
	}

	if raw := strings.TrimSpace(c.PostForm("published_at")); raw != "" {
		var parsed bool
		for _, layout := range publishedAtLayouts {
			if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
				in.PublishedAt = &t
				parsed = true
				break
			}
		}
		if !parsed {
			return in, form, services.FieldErrors{"published_at": "Enter a valid date."}
		}
	}

	if fh, err := c.FormFile("image"); err == nil {
		in.ImageFile = fh
	}
	return in, form, nil
}

func postForm(post *models.BlogPost) gin.H {
	form := gin.H{
		"Title":       post.Title,
		"Content":     post.Content,
		"IsPublished": post.IsPublished,
		"Status":      string(post.Status),
		"Image":       post.Image,
	}
	if post.PublishedAt != nil {
		form["PublishedAt"] = post.PublishedAt.Format("2006-01-02")
	}
	return form
}

func (h *BlogHandler) renderForm(c *gin.Context, code int, post *models.BlogPost, form gin.H, errs services.FieldErrors) {
	title := "New Post"
	if post != nil {
		title = "Edit Post"
	}
	Render(c, code, "blog/form.html", gin.H{
		"Title":    title,
		"Post":     post,
		"Form":     form,
		"Errors":   errs,
		"Statuses": models.Statuses,
	})
}

func (h *BlogHandler) ShowCreate(c *gin.Context) {
	h.renderForm(c, http.StatusOK, nil, gin.H{"Status": string(models.StatusDraft)}, nil)
}

func (h *BlogHandler) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)
	in, form, errs := bindPostForm(c)
	if errs != nil {
		h.renderForm(c, http.StatusBadRequest, nil, form, errs)
		return
	}

	post, err := h.posts.CreatePost(c.Request.Context(), user.Author, in)
	if err != nil {
		if services.IsValidation(err) {
			h.renderForm(c, http.StatusBadRequest, nil, form, formErrors(err))
			return
		}
		renderServiceError(c, err)
		return
	}

	h.notify.PostChanged(services.PostCreated, post, user)
	Flash(c, flashSuccess, "Blog post created successfully")
	c.Redirect(http.StatusFound, "/posts/"+post.Slug)
}

func (h *BlogHandler) ShowEdit(c *gin.Context) {
	post, err := h.posts.GetPost(c.Request.Context(), c.Param("slug"))
	if err != nil {
		renderServiceError(c, err)
		return
	}
	if !services.CanModify(middleware.CurrentUser(c), post) {
		renderServiceError(c, services.ErrForbidden)
		return
	}
	h.renderForm(c, http.StatusOK, post, postForm(post), nil)
}

func (h *BlogHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	existing, err := h.posts.GetPost(ctx, c.Param("slug"))
	if err != nil {
		renderServiceError(c, err)
		return
	}
	if !services.CanModify(user, existing) {
		renderServiceError(c, services.ErrForbidden)
		return
	}

	in, form, errs := bindPostForm(c)
	if errs != nil {
		h.renderForm(c, http.StatusBadRequest, existing, form, errs)
		return
	}

	post, err := h.posts.UpdatePost(ctx, user, existing.Slug, in)
	if err != nil {
		if services.IsValidation(err) {
			h.renderForm(c, http.StatusBadRequest, existing, form, formErrors(err))
			return
		}
		renderServiceError(c, err)
		return
	}

	h.notify.PostChanged(services.PostUpdated, post, user)
	Flash(c, flashSuccess, "Blog post updated successfully!")
	c.Redirect(http.StatusFound, "/posts/"+post.Slug)
}

func (h *BlogHandler) ShowDelete(c *gin.Context) {
	post, err := h.posts.GetPost(c.Request.Context(), c.Param("slug"))
	if err != nil {
		renderServiceError(c, err)
		return
	}
	if !services.CanModify(middleware.CurrentUser(c), post) {
		renderServiceError(c, services.ErrForbidden)
		return
	}
	Render(c, http.StatusOK, "blog/delete.html", gin.H{"Title": "Delete Post", "Post": post})
}

func (h *BlogHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	post, err := h.posts.DeletePost(c.Request.Context(), user, c.Param("slug"))
	if err != nil {
		renderServiceError(c, err)
		return
	}

	h.notify.PostChanged(services.PostDeleted, post, user)
	Flash(c, flashSuccess, "Blog post deleted successfully!")
	c.Redirect(http.StatusFound, "/")
}
