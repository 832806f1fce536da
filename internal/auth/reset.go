package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// DefaultResetTokenTTL is how long a reset token stays redeemable.
	DefaultResetTokenTTL = 10 * time.Minute

	resetTokenBytes = 32
)

// ResetToken is a freshly generated password-reset token. Raw goes to the
// account holder; only Hash is stored.
type ResetToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// ResetTokenGenerator creates single-use password-reset tokens.
type ResetTokenGenerator struct {
	ttl time.Duration
	now func() time.Time
}

func NewResetTokenGenerator(ttl time.Duration) *ResetTokenGenerator {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenGenerator{ttl: ttl, now: time.Now}
}

// Generate returns 32 random bytes hex-encoded together with their digest.
func (g *ResetTokenGenerator) Generate() (ResetToken, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return ResetToken{}, fmt.Errorf("generate reset token: %w", err)
	}
	raw := hex.EncodeToString(b)
	return ResetToken{
		Raw:       raw,
		Hash:      HashResetToken(raw),
		ExpiresAt: g.now().Add(g.ttl),
	}, nil
}

// HashResetToken returns the hex sha256 digest stored for raw.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
