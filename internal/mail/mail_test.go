package mail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResetLink(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://yourapp.com/reset-password/abc", ResetLink("https://yourapp.com/reset-password/", "abc"))
	assert.Equal(t, "https://shop.example.com/reset/abc", ResetLink("https://shop.example.com/reset", "abc"))
}

func TestResetBodyMentionsExpiry(t *testing.T) {
	t.Parallel()

	body := resetBody("https://yourapp.com/reset-password/abc", 10*time.Minute)
	assert.Contains(t, body, `href="https://yourapp.com/reset-password/abc"`)
	assert.Contains(t, body, "expire in 10 minutes")
}

func TestLogMailerOmitsToken(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	m := NewLogMailer(zap.New(core))

	require.NoError(t, m.SendPasswordResetEmail(context.Background(), "a@x.com", "raw-secret-token"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "a@x.com", entries[0].ContextMap()["to"])
	assert.NotContains(t, entries[0].Message, "raw-secret-token")
	for _, v := range entries[0].ContextMap() {
		assert.NotEqual(t, "raw-secret-token", v)
	}
}

func TestSMTPMailerDialFailure(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer("127.0.0.1", "1", "", "", "noreply@x.com", "https://yourapp.com/reset-password/", 10*time.Minute)
	err := m.SendPasswordResetEmail(context.Background(), "a@x.com", "abc")
	assert.Error(t, err)
}
