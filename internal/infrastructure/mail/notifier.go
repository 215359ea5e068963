package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/rs/zerolog"

	"github.com/structo/structo-api/internal/core/ports"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Notifier renders notification emails and hands them to an Enqueuer.
// It implements ports.Notifier.
type Notifier struct {
	queue Enqueuer
	log   zerolog.Logger
}

func NewNotifier(queue Enqueuer, log zerolog.Logger) *Notifier {
	return &Notifier{queue: queue, log: log}
}

func (n *Notifier) AccountCreated(_ context.Context, notice ports.AccountCreatedNotice) {
	n.submit(notice.Email, "Your Structo account has been created", TemplateAccountCreated, notice)
}

func (n *Notifier) PasswordResetRequested(_ context.Context, notice ports.PasswordResetNotice) {
	n.submit(notice.Email, "Reset your Structo password", TemplatePasswordReset, notice)
}

func (n *Notifier) submit(to, subject, name string, data any) {
	body, err := render(name, data)
	if err != nil {
		n.log.Error().Err(err).Str("template", name).Msg("failed to render email")
		return
	}
	if !n.queue.Enqueue(Message{To: to, Subject: subject, HTMLBody: body, Template: name}) {
		n.log.Warn().Str("template", name).Msg("email dropped, queue unavailable")
	}
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
