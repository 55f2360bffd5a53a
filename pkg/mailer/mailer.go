package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
)

var errLoggerRequired = errors.New("mailer logger is required")

// Sender delivers a single email. Delivery failures never block the caller's
// transaction; callers log and continue.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a plain-text email with an optional HTML body.
type Message struct {
	To       string
	Subject  string
	Body     string
	HTMLBody string
}

// Client sends mail through SendGrid.
type Client struct {
	api      *sendgrid.Client
	from     string
	disabled bool
	logger   *logger.Logger
}

// New builds a SendGrid-backed sender. With no API key configured the client
// degrades to a no-op that only logs, so local environments need no account.
func New(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	key := strings.TrimSpace(cfg.APIKey)
	c := &Client{
		from:     strings.TrimSpace(cfg.DefaultFrom),
		disabled: key == "",
		logger:   logg,
	}
	if !c.disabled {
		c.api = sendgrid.NewSendClient(key)
	}
	return c, nil
}

// Send delivers the message. Returns an error on rejection; callers treat
// delivery as best effort.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail recipient required")
	}
	fields := map[string]any{
		"mail_to":      msg.To,
		"mail_subject": msg.Subject,
	}
	if c.disabled {
		c.logger.Info(c.logger.WithFields(ctx, fields), "mail delivery skipped (no api key)")
		return nil
	}

	from := mail.NewEmail("Mahima Medicare", c.from)
	to := mail.NewEmail("", msg.To)
	html := msg.HTMLBody
	if html == "" {
		html = "<pre>" + msg.Body + "</pre>"
	}
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, html)

	resp, err := c.api.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected message: status %d", resp.StatusCode)
	}
	c.logger.Info(c.logger.WithFields(ctx, fields), "mail delivered")
	return nil
}
