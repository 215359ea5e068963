package mail

import (
	"bytes"
	"context"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relay is a minimal SMTP server that accepts every command and records
// the envelope and DATA of each session.
type relay struct {
	ln       net.Listener
	mu       sync.Mutex
	commands []string
	data     []string
}

func startRelay(t *testing.T) *relay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := &relay{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go r.serve(conn)
		}
	}()
	return r
}

func (r *relay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *relay) serve(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 relay.test ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		r.mu.Lock()
		r.commands = append(r.commands, line)
		r.mu.Unlock()

		switch verb {
		case "EHLO", "HELO":
			_ = tp.PrintfLine("250 relay.test")
		case "DATA":
			_ = tp.PrintfLine("354 end with <CRLF>.<CRLF>")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.data = append(r.data, string(body))
			r.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("250 OK")
		}
	}
}

func TestSMTPSender_DeliversThroughRelay(t *testing.T) {
	r := startRelay(t)
	s, err := NewSMTPSender(SMTPConfig{
		Host: "127.0.0.1",
		Port: r.port(),
		From: "STRUCTO <no-reply@example.com>",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Send(ctx, Message{To: "Ana <a@x.com>", Subject: "Hello", HTMLBody: "<p>hi</p>"}))

	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.data, 1)
	assert.Contains(t, strings.Join(r.commands, "\n"), "MAIL FROM:<no-reply@example.com>")
	assert.Contains(t, strings.Join(r.commands, "\n"), "RCPT TO:<a@x.com>")
	assert.Contains(t, r.data[0], "Subject: Hello")
	assert.Contains(t, r.data[0], "text/html")
	assert.Contains(t, r.data[0], "<p>hi</p>")
}

func TestSMTPSender_StalledRelayHonorsDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Accept and hold connections without ever sending the greeting.
	var held []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, conn)
			mu.Unlock()
		}
	}()
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range held {
			_ = c.Close()
		}
	}()

	s, err := NewSMTPSender(SMTPConfig{
		Host: "127.0.0.1",
		Port: ln.Addr().(*net.TCPAddr).Port,
		From: "no-reply@example.com",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = s.Send(ctx, Message{To: "a@x.com", Subject: "Hello", HTMLBody: "<p>hi</p>"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSMTPSender_BuildMessage(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "STRUCTO <no-reply@example.com>"})
	require.NoError(t, err)

	m, err := s.buildMessage(Message{To: "a@x.com", Subject: "Réinitialisation", HTMLBody: "<p>hi</p>"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, `From: "STRUCTO" <no-reply@example.com>`)
	assert.Contains(t, out, "To: <a@x.com>")
	assert.Contains(t, out, "Message-ID: <")
	assert.Contains(t, out, "Date: ")
	assert.NotContains(t, out, "Subject: Réinitialisation")
}

func TestSMTPSender_Errors(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Host: "h", Port: 25, From: "not an address"})
	assert.Error(t, err)

	_, err = NewSMTPSender(SMTPConfig{Host: "h", Port: 0, From: "a@b.com"})
	assert.Error(t, err)

	s, err := NewSMTPSender(SMTPConfig{Host: "h", Port: 25, From: "a@b.com"})
	require.NoError(t, err)
	assert.Error(t, s.Send(context.Background(), Message{To: "bogus"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "x@y.com"}), context.Canceled)
}
