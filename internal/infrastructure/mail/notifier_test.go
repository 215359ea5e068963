package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structo/structo-api/internal/core/ports"
)

type captureQueue struct {
	msgs   []Message
	accept bool
}

func (q *captureQueue) Enqueue(msg Message) bool {
	if !q.accept {
		return false
	}
	q.msgs = append(q.msgs, msg)
	return true
}

func TestNotifier_AccountCreated(t *testing.T) {
	q := &captureQueue{accept: true}
	n := NewNotifier(q, zerolog.Nop())

	n.AccountCreated(context.Background(), ports.AccountCreatedNotice{
		Email:             "a@x.com",
		UserID:            "QAUSER1",
		RoleLabel:         "QA Manager",
		TemporaryPassword: "Xy7#pQ2!rT9k",
		LoginURL:          "https://app.example.com/login",
	})

	require.Len(t, q.msgs, 1)
	msg := q.msgs[0]
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, TemplateAccountCreated, msg.Template)
	assert.Contains(t, msg.HTMLBody, "QAUSER1")
	assert.Contains(t, msg.HTMLBody, "QA Manager")
	assert.Contains(t, msg.HTMLBody, "https://app.example.com/login")
	assert.Contains(t, msg.HTMLBody, "Xy7#pQ2!rT9k")
}

func TestNotifier_EscapesInput(t *testing.T) {
	q := &captureQueue{accept: true}
	n := NewNotifier(q, zerolog.Nop())

	n.AccountCreated(context.Background(), ports.AccountCreatedNotice{
		Email:     "a@x.com",
		FirstName: "<script>alert(1)</script>",
		RoleLabel: "User",
	})

	require.Len(t, q.msgs, 1)
	assert.NotContains(t, q.msgs[0].HTMLBody, "<script>")
}

func TestNotifier_PasswordReset(t *testing.T) {
	q := &captureQueue{accept: true}
	n := NewNotifier(q, zerolog.Nop())

	n.PasswordResetRequested(context.Background(), ports.PasswordResetNotice{
		Email:     "a@x.com",
		ResetURL:  "https://app.example.com/reset-password?token=abc",
		ExpiresIn: "1h0m0s",
	})

	require.Len(t, q.msgs, 1)
	assert.Equal(t, TemplatePasswordReset, q.msgs[0].Template)
	assert.True(t, strings.Contains(q.msgs[0].HTMLBody, "reset-password?token=abc"))
}

func TestNotifier_DroppedMessageDoesNotPanic(t *testing.T) {
	q := &captureQueue{accept: false}
	n := NewNotifier(q, zerolog.Nop())

	n.PasswordResetRequested(context.Background(), ports.PasswordResetNotice{Email: "a@x.com"})
	assert.Empty(t, q.msgs)
}
