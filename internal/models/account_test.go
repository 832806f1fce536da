package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordChangedAfter(t *testing.T) {
	t.Parallel()

	iat := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := iat.Add(d)
		return &v
	}

	tests := []struct {
		name      string
		changedAt *time.Time
		want      bool
	}{
		{"never changed", nil, false},
		{"changed before issue", at(-time.Minute), false},
		{"same second", at(900 * time.Millisecond), false},
		{"next second", at(time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Account{PasswordChangedAt: tt.changedAt}
			assert.Equal(t, tt.want, a.PasswordChangedAfter(iat))
		})
	}
}

func TestAccountJSONHidesSecrets(t *testing.T) {
	t.Parallel()

	expires := time.Now().Add(10 * time.Minute)
	a := Account{
		ID:                     "abc",
		Username:               "alice",
		Email:                  "a@x.com",
		PasswordHash:           "$2a$10$hash",
		Role:                   RoleUser,
		PasswordChangedAt:      &expires,
		ResetPasswordTokenHash: "deadbeef",
		ResetPasswordExpiresAt: &expires,
	}

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))

	assert.Equal(t, "abc", out["_id"])
	for _, key := range []string{"password", "PasswordHash", "ResetPasswordTokenHash", "ResetPasswordExpiresAt", "PasswordChangedAt"} {
		assert.NotContains(t, out, key)
	}
	assert.NotContains(t, string(raw), "deadbeef")
}

func TestRoleValid(t *testing.T) {
	t.Parallel()

	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("root").Valid())
	assert.True(t, (&Account{Role: RoleAdmin}).IsAdmin())
}
