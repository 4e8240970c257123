package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quill/internal/models"
	"quill/internal/storage"
	"quill/internal/utils"
)

const minPasswordLength = 8

const duplicateEmailMessage = "An author with this email already exists."

// RegisterInput holds the signup form. The json names double as the field
// keys of validation errors.
type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	IsSuperuser     bool   `json:"-"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username,
			validation.Required.Error("username is required"),
			validation.Length(1, 150),
			is.PrintableASCII.Error("username may only contain printable characters"),
		),
		validation.Field(&in.Email,
			validation.Required.Error("email is required"),
			is.EmailFormat.Error("enter a valid email address"),
		),
		validation.Field(&in.FirstName, validation.Required.Error("first name is required"), validation.Length(1, 150)),
		validation.Field(&in.LastName, validation.Required.Error("last name is required"), validation.Length(1, 150)),
		validation.Field(&in.Password,
			validation.Required.Error("password is required"),
			validation.Length(minPasswordLength, 128).Error(fmt.Sprintf("password must be at least %d characters", minPasswordLength)),
		),
		validation.Field(&in.PasswordConfirm,
			validation.Required.Error("confirm your password"),
			validation.In(in.Password).Error("the two password fields didn't match"),
		),
	)
}

type ProfileInput struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 150)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 150)),
	)
}

// AccountService owns the identity workflows. Registering a user creates its
// Author in the same transaction.
type AccountService struct {
	store storage.Storage
}

func NewAccountService(store storage.Storage) *AccountService {
	return &AccountService{store: store}
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return nil, toFieldErrors(err)
	}

	taken, err := s.store.UsernameTaken(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, FieldErrors{"username": "A user with that username already exists."}
	}
	taken, err = s.store.EmailTaken(ctx, in.Email, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, FieldErrors{"email": duplicateEmailMessage}
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:    in.Username,
		Email:       in.Email,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Password:    hash,
		IsSuperuser: in.IsSuperuser,
	}
	author := &models.Author{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
	}
	if err := s.store.CreateUserWithAuthor(ctx, user, author); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateEmail):
			return nil, FieldErrors{"email": duplicateEmailMessage}
		case errors.Is(err, storage.ErrDuplicateUser):
			return nil, FieldErrors{"username": "A user with that username already exists."}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	log.Info().Str("username", user.Username).Str("author_id", author.ID.String()).Msg("user registered")
	return user, nil
}

func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AccountService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// UpdateProfile changes the name and email on both the user account and its
// author record.
func (s *AccountService) UpdateProfile(ctx context.Context, user *models.User, in ProfileInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return toFieldErrors(err)
	}

	taken, err := s.store.EmailTaken(ctx, in.Email, user.ID)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return FieldErrors{"email": duplicateEmailMessage}
	}

	author := user.Author
	if author == nil {
		if author, err = s.store.GetAuthorByUserID(ctx, user.ID); err != nil {
			return fmt.Errorf("load author: %w", err)
		}
	}

	user.Email, user.FirstName, user.LastName = in.Email, in.FirstName, in.LastName
	author.Email, author.FirstName, author.LastName = in.Email, in.FirstName, in.LastName

	if err := s.store.UpdateUserWithAuthor(ctx, user, author); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return FieldErrors{"email": duplicateEmailMessage}
		}
		return fmt.Errorf("update profile: %w", err)
	}
	user.Author = author
	return nil
}

// EnsureSuperuser creates the configured superuser on first start. It is a
// no-op when the username is already registered.
func (s *AccountService) EnsureSuperuser(ctx context.Context, username, email, password string) error {
	if username == "" || password == "" {
		return nil
	}
	taken, err := s.store.UsernameTaken(ctx, username)
	if err != nil || taken {
		return err
	}
	_, err = s.Register(ctx, RegisterInput{
		Username:        username,
		Email:           email,
		FirstName:       username,
		LastName:        "Admin",
		Password:        password,
		PasswordConfirm: password,
		IsSuperuser:     true,
	})
	return err
}
