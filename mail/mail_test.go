package mail

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSMTPMessageHeaders(t *testing.T) {
	s := NewSMTP(SMTPConfig{Host: "localhost", Port: 2525, From: "no-reply@docgate.test"})
	m := s.message("ada@example.com", "Verify your email address", verificationBody("http://app/verify/abc"))

	assert.Equal(t, []string{"ada@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Verify your email address"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "http://app/verify/abc")
}

func TestBodiesEscapeLinks(t *testing.T) {
	body := resetBody(`http://app/reset/"><script>`)
	assert.NotContains(t, body, "<script>")
}

func TestSMTPHonoursCancelledContext(t *testing.T) {
	s := NewSMTP(SMTPConfig{Host: "localhost", Port: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SendPasswordReset(ctx, "ada@example.com", "http://app/reset/x"), context.Canceled)
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLog(zap.New(core))

	require.NoError(t, m.SendVerification(context.Background(), "ada@example.com", "http://app/verify/abc"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "ada@example.com", entry.ContextMap()["to"])
	assert.NotContains(t, entry.ContextMap(), "link")
}
