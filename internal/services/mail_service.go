package services

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog/log"

	"quill/internal/config"
	"quill/internal/models"
)

type PostEvent string

const (
	PostCreated PostEvent = "created"
	PostUpdated PostEvent = "updated"
	PostDeleted PostEvent = "deleted"
)

// Notification describes a post change to report to the post's author.
type Notification struct {
	Event     PostEvent
	PostTitle string
	Actor     string // username of the user who made the change
	Recipient string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

var ErrMailDisabled = errors.New("mail service is not configured")

// MailService sends notifications as plain-text mail over SMTP.
type MailService struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailService(cfg config.SMTPConfig) *MailService {
	if !cfg.Enabled() {
		log.Warn().Msg("MailService disabled: missing SMTP settings")
	}
	return &MailService{cfg: cfg, send: smtp.SendMail}
}

func (s *MailService) Notify(ctx context.Context, n Notification) error {
	if !s.cfg.Enabled() {
		return ErrMailDisabled
	}
	subject, body := composeMail(n)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-version: 1.0;\r\nContent-Type: text/plain; charset=\"UTF-8\";\r\n\r\n"+
		"%s", n.Recipient, s.cfg.From, subject, strings.ReplaceAll(body, "\n", "\r\n")))

	if err := s.send(addr, auth, s.cfg.From, []string{n.Recipient}, msg); err != nil {
		return fmt.Errorf("send %s mail to %s: %w", n.Event, n.Recipient, err)
	}
	log.Debug().Str("to", n.Recipient).Str("subject", subject).Msg("email sent")
	return nil
}

func composeMail(n Notification) (subject, body string) {
	switch n.Event {
	case PostCreated:
		return "New Blog Post Created", fmt.Sprintf("Hello %s,\n\n"+
			"Your new blog post titled '%s' has been successfully created.\n\n"+
			"View or edit your post anytime on the blog platform.\n\n"+
			"Thank you,\nThe Blog Team", n.Actor, n.PostTitle)
	case PostUpdated:
		return "Blog Post Updated", fmt.Sprintf("Hello,\n\n"+
			"The blog post titled '%s' was updated by %s.\n\n"+
			"Check it out on the platform.\n\n"+
			"Regards,\nYour Blog Platform", n.PostTitle, n.Actor)
	default:
		return "Blog Post Deleted", fmt.Sprintf("Hello,\n\n"+
			"The blog post titled '%s' was deleted by %s.\n\n"+
			"If this was not expected, please contact the admin.\n\n"+
			"Regards,\nYour Blog Platform", n.PostTitle, n.Actor)
	}
}

// Dispatcher delivers post notifications on a best-effort basis. Failures are
// logged and never returned to the caller.
type Dispatcher struct {
	notifier Notifier
	async    bool
}

// NewDispatcher returns a dispatcher that sends in the background. Pass
// async=false to deliver inline, which tests rely on.
func NewDispatcher(notifier Notifier, async bool) *Dispatcher {
	return &Dispatcher{notifier: notifier, async: async}
}

// PostChanged notifies the author of post about event. It does nothing when
// the post has no author email.
func (d *Dispatcher) PostChanged(event PostEvent, post *models.BlogPost, actor *models.User) {
	if d == nil || d.notifier == nil || post == nil {
		return
	}
	n := Notification{Event: event, PostTitle: post.Title}
	if post.Author != nil {
		n.Recipient = post.Author.Email
	}
	if actor != nil {
		n.Actor = actor.Username
	}
	d.Dispatch(n)
}

func (d *Dispatcher) Dispatch(n Notification) {
	if n.Recipient == "" {
		return
	}
	if !d.async {
		d.deliver(n)
		return
	}
	go d.deliver(n)
}

func (d *Dispatcher) deliver(n Notification) {
	// Detached from the request so the send outlives the response.
	err := d.notifier.Notify(context.Background(), n)
	if err == nil {
		return
	}
	if n.Event == PostDeleted {
		log.Error().Err(err).Str("to", n.Recipient).Str("post", n.PostTitle).Msg("deletion notice failed")
		return
	}
	log.Debug().Err(err).Str("event", string(n.Event)).Str("to", n.Recipient).Msg("notification dropped")
}
