package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"strings"
)

// SMTPNotifier mails each match to the configured recipients.
type SMTPNotifier struct {
	host     string
	port     int
	from     string
	to       []string
	user     string
	password string
}

// NewSMTPNotifier wires the SMTP connection details. The password comes
// from the named environment variable; empty user/password skips auth.
func NewSMTPNotifier(host string, port int, from string, to []string, user, passwordEnv string) *SMTPNotifier {
	password := ""
	if passwordEnv != "" {
		password = os.Getenv(passwordEnv)
	}
	return &SMTPNotifier{
		host:     host,
		port:     port,
		from:     from,
		to:       to,
		user:     user,
		password: password,
	}
}

// IsConfigured reports whether enough SMTP settings are present to
// attempt delivery.
func (n *SMTPNotifier) IsConfigured() bool {
	return n.host != "" && n.from != "" && len(n.to) > 0
}

// Send mails one (listing, query) match.
func (n *SMTPNotifier) Send(ctx context.Context, listingURL, queryText string) error {
	if !n.IsConfigured() {
		return fmt.Errorf("smtp notifier not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Hello,\r\n\r\nWe found a car matching your saved search %q:\r\n\r\n%s\r\n\r\nWith best regards\r\ncarwatch",
		queryText, listingURL,
	)
	msg := strings.Join([]string{
		"From: " + n.from,
		"To: " + strings.Join(n.to, ", "),
		"Subject: Your car search results",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if n.user != "" && n.password != "" {
		auth = smtp.PlainAuth("", n.user, n.password, n.host)
	}

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	if err := smtp.SendMail(addr, auth, n.from, n.to, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail via %s: %w", addr, err)
	}
	return nil
}
