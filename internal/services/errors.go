package services

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"quill/internal/models"
)

var (
	ErrForbidden          = errors.New("you are not allowed to modify this content")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrParentMismatch     = errors.New("parent comment does not belong to this post")
	ErrEmptyComment       = errors.New("comment content cannot be empty")
)

// FieldErrors maps form field names to user-facing messages. The empty key
// holds errors that are not tied to a single field.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			parts = append(parts, e[k])
			continue
		}
		parts = append(parts, k+": "+e[k])
	}
	return strings.Join(parts, "; ")
}

// NonField returns the message not attached to a field, if any.
func (e FieldErrors) NonField() string {
	return e[""]
}

// toFieldErrors normalises ozzo-validation and model validation errors into
// FieldErrors. Other errors are returned unchanged.
func toFieldErrors(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		out := make(FieldErrors, len(verrs))
		for field, fe := range verrs {
			if fe != nil {
				out[field] = fe.Error()
			}
		}
		return out
	}

	var merr *models.ValidationError
	if errors.As(err, &merr) {
		return FieldErrors{merr.Field: merr.Message}
	}
	return err
}

// IsValidation reports whether err should be shown back to the user next to
// the submitted form.
func IsValidation(err error) bool {
	var fe FieldErrors
	return errors.As(err, &fe)
}
