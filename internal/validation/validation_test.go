package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayush/storefront/backend/internal/models"
)

func TestSignupMessages(t *testing.T) {
	t.Parallel()

	v := New()

	tests := []struct {
		name string
		req  models.SignupRequest
		want []string
	}{
		{
			name: "valid",
			req:  models.SignupRequest{Username: "alice_1", Email: "a@x.com", Password: "secret1"},
		},
		{
			name: "all missing",
			req:  models.SignupRequest{},
			want: []string{"Username is required", "Email is required", "Password is required"},
		},
		{
			name: "short username and password",
			req:  models.SignupRequest{Username: "al", Email: "a@x.com", Password: "123"},
			want: []string{"Username must be at least 3 characters", "Password must be at least 6 characters"},
		},
		{
			name: "long username",
			req:  models.SignupRequest{Username: strings.Repeat("a", 31), Email: "a@x.com", Password: "secret1"},
			want: []string{"Username cannot exceed 30 characters"},
		},
		{
			name: "bad characters",
			req:  models.SignupRequest{Username: "al ice!", Email: "a@x.com", Password: "secret1"},
			want: []string{"Username can only contain letters, numbers, and underscores"},
		},
		{
			name: "bad email",
			req:  models.SignupRequest{Username: "alice", Email: "not-an-email", Password: "secret1"},
			want: []string{"Please enter a valid email address"},
		},
		{
			name: "password at byte limit",
			req:  models.SignupRequest{Username: "alice", Email: "a@x.com", Password: strings.Repeat("a", 72)},
		},
		{
			name: "password over byte limit",
			req:  models.SignupRequest{Username: "alice", Email: "a@x.com", Password: strings.Repeat("a", 73)},
			want: []string{"Password cannot exceed 72 bytes"},
		},
		{
			name: "multibyte password over byte limit",
			req:  models.SignupRequest{Username: "alice", Email: "a@x.com", Password: strings.Repeat("é", 37)},
			want: []string{"Password cannot exceed 72 bytes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, v.Struct(tt.req))
		})
	}
}

func TestFieldRules(t *testing.T) {
	t.Parallel()

	v := New()

	assert.Nil(t, v.Field("phone", "0123456789", "phone"))
	assert.Nil(t, v.Field("phone", "", "phone"))
	assert.Equal(t, []string{"12ab is not a valid phone number!"}, v.Field("phone", "12ab", "phone"))
	assert.Equal(t, []string{"Address cannot exceed 200 characters"}, v.Field("address", strings.Repeat("x", 201), "max=200"))
	assert.Equal(t, []string{"Role must be either user or admin"}, v.Field("role", "root", "oneof=user admin"))
	assert.Equal(t, []string{"Username is required"}, v.Field("username", "", "required,min=3,max=30,username"))
}

func TestUpdateEmailMessages(t *testing.T) {
	t.Parallel()

	v := New()

	assert.Equal(t, []string{"New email is required"}, v.Struct(models.UpdateEmailRequest{}))
	assert.Equal(t, []string{"Invalid email format"}, v.Struct(models.UpdateEmailRequest{NewEmail: "nope"}))
	assert.Nil(t, v.Struct(models.UpdateEmailRequest{NewEmail: "new@x.com"}))
}

func TestResetPasswordByteLimit(t *testing.T) {
	t.Parallel()

	v := New()

	assert.Empty(t, v.Struct(models.ResetPasswordRequest{Password: strings.Repeat("é", 36)}))
	assert.Equal(t, []string{"Password cannot exceed 72 bytes"},
		v.Struct(models.ResetPasswordRequest{Password: strings.Repeat("a", 73)}))
}
