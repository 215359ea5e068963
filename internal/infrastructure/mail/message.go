// Package mail renders and delivers the account notification emails.
package mail

import "context"

// Template names, also used as metric labels.
const (
	TemplateAccountCreated = "account_created"
	TemplatePasswordReset  = "password_reset"
)

// Message is one rendered email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	// Template names the template the body was rendered from.
	Template string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Enqueuer accepts messages for background delivery. Enqueue reports false
// when the message was dropped.
type Enqueuer interface {
	Enqueue(msg Message) bool
}
