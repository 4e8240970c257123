package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"quill/internal/middleware"
	"quill/internal/services"
	"quill/internal/storage"
)

const (
	flashSuccess = "success"
	flashError   = "error"
)

// Render helper to inject common variables like the current user and any
// pending flash messages.
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if user := middleware.CurrentUser(c); user != nil {
		obj["CurrentUser"] = user
	}

	session := sessions.Default(c)
	success := session.Flashes(flashSuccess)
	failure := session.Flashes(flashError)
	if len(success) > 0 || len(failure) > 0 {
		if err := session.Save(); err != nil {
			log.Warn().Err(err).Msg("failed to save session")
		}
	}
	obj["FlashSuccess"] = success
	obj["FlashError"] = failure
	obj["CurrentPath"] = c.Request.URL.Path
	if _, ok := obj["Errors"]; !ok {
		obj["Errors"] = services.FieldErrors{}
	}
	if _, ok := obj["Form"]; !ok {
		obj["Form"] = gin.H{}
	}

	c.HTML(code, name, obj)
}

// Flash queues a one-time message shown on the next rendered page.
func Flash(c *gin.Context, kind, message string) {
	session := sessions.Default(c)
	session.AddFlash(message, kind)
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Msg("failed to save flash message")
	}
}

func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message, "Code": code})
}

// renderServiceError maps a service or storage error onto an error page.
// Validation errors are handled by the caller, next to the form.
func renderServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		RenderError(c, http.StatusNotFound, "Page not found.")
	case errors.Is(err, services.ErrForbidden):
		RenderError(c, http.StatusForbidden, "You do not have permission to do that.")
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		RenderError(c, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}

// formErrors extracts field messages for re-rendering a form.
func formErrors(err error) services.FieldErrors {
	var fe services.FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	return services.FieldErrors{"": err.Error()}
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if len(next) > 1 && next[0] == '/' && next[1] != '/' && next[1] != '\\' {
		return next
	}
	return "/"
}
