package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetTokenGenerator(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewResetTokenGenerator(DefaultResetTokenTTL)
	g.now = func() time.Time { return now }

	tok, err := g.Generate()
	require.NoError(t, err)

	assert.Len(t, tok.Raw, 64)
	_, err = hex.DecodeString(tok.Raw)
	assert.NoError(t, err)

	sum := sha256.Sum256([]byte(tok.Raw))
	assert.Equal(t, hex.EncodeToString(sum[:]), tok.Hash)
	assert.Equal(t, tok.Hash, HashResetToken(tok.Raw))
	assert.NotEqual(t, tok.Raw, tok.Hash)
	assert.Equal(t, now.Add(10*time.Minute), tok.ExpiresAt)

	other, err := g.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, tok.Raw, other.Raw)
}

func TestResetTokenGeneratorDefaultTTL(t *testing.T) {
	t.Parallel()

	g := NewResetTokenGenerator(0)
	assert.Equal(t, DefaultResetTokenTTL, g.ttl)
}
