package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quill/internal/models"
	"quill/internal/storage/inmemory"
)

func tickingClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newStore() *inmemory.Store {
	return inmemory.New().WithClock(tickingClock())
}

func register(t *testing.T, accounts *AccountService, username string, superuser bool) *models.User {
	t.Helper()
	user, err := accounts.Register(context.Background(), RegisterInput{
		Username:        username,
		Email:           username + "@example.com",
		FirstName:       "First" + username,
		LastName:        "Last" + username,
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
		IsSuperuser:     superuser,
	})
	require.NoError(t, err)
	return user
}
