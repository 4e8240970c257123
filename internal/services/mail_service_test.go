package services

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/config"
	"quill/internal/models"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func TestDispatcher_SkipsMissingRecipient(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, false)

	d.PostChanged(PostCreated, &models.BlogPost{Title: "No author"}, &models.User{Username: "alice"})
	d.PostChanged(PostUpdated, &models.BlogPost{Title: "Blank", Author: &models.Author{}}, nil)

	assert.Empty(t, rec.sent)
}

func TestDispatcher_SendsToAuthor(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, false)
	post := &models.BlogPost{Title: "Hello", Author: &models.Author{Email: "alice@example.com"}}

	d.PostChanged(PostUpdated, post, &models.User{Username: "admin"})

	require.Len(t, rec.sent, 1)
	assert.Equal(t, Notification{Event: PostUpdated, PostTitle: "Hello", Actor: "admin", Recipient: "alice@example.com"}, rec.sent[0])
}

func TestDispatcher_SwallowsFailures(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("smtp down")}
	d := NewDispatcher(rec, false)
	post := &models.BlogPost{Title: "Hello", Author: &models.Author{Email: "alice@example.com"}}

	assert.NotPanics(t, func() {
		d.PostChanged(PostCreated, post, nil)
		d.PostChanged(PostDeleted, post, nil)
	})
	assert.Len(t, rec.sent, 2)
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.PostChanged(PostCreated, &models.BlogPost{}, nil)
	})
}

func TestMailService_Notify(t *testing.T) {
	svc := NewMailService(config.SMTPConfig{Host: "smtp.example.com", Port: "587", From: "blog@example.com"})

	var gotAddr string
	var gotTo []string
	var gotMsg string
	svc.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := svc.Notify(context.Background(), Notification{
		Event: PostDeleted, PostTitle: "Gone", Actor: "admin", Recipient: "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Blog Post Deleted\r\n")
	assert.Contains(t, gotMsg, "The blog post titled 'Gone' was deleted by admin.")
	assert.NotContains(t, gotMsg, "\n\n")
}

func TestMailService_Disabled(t *testing.T) {
	svc := NewMailService(config.SMTPConfig{})
	err := svc.Notify(context.Background(), Notification{Event: PostCreated, Recipient: "a@example.com"})
	assert.ErrorIs(t, err, ErrMailDisabled)
}

func TestComposeMail(t *testing.T) {
	subject, body := composeMail(Notification{Event: PostCreated, PostTitle: "Hi", Actor: "alice"})
	assert.Equal(t, "New Blog Post Created", subject)
	assert.True(t, strings.HasPrefix(body, "Hello alice,"))

	subject, body = composeMail(Notification{Event: PostUpdated, PostTitle: "Hi", Actor: "bob"})
	assert.Equal(t, "Blog Post Updated", subject)
	assert.Contains(t, body, "was updated by bob")
}
