package models

import "time"

// Role is the access level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is a registered storefront user. Credential and reset fields are
// never serialized.
type Account struct {
	ID                     string     `json:"_id"`
	Username               string     `json:"username"`
	Email                  string     `json:"email"`
	PasswordHash           string     `json:"-"`
	Role                   Role       `json:"role"`
	ProfileImage           string     `json:"profileImage"`
	Phone                  string     `json:"phone"`
	Address                string     `json:"address"`
	EmailVerified          bool       `json:"emailVerified"`
	PasswordChangedAt      *time.Time `json:"-"`
	ResetPasswordTokenHash string     `json:"-"`
	ResetPasswordExpiresAt *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// PasswordChangedAfter reports whether the password was changed after a
// token issued at iat, compared at second precision.
func (a *Account) PasswordChangedAfter(iat time.Time) bool {
	if a.PasswordChangedAt == nil {
		return false
	}
	return a.PasswordChangedAt.Unix() > iat.Unix()
}

// Profile returns the public identity of the account.
func (a *Account) Profile() Profile {
	return Profile{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Role:     a.Role,
	}
}

// Profile is the identity returned by signup and login.
type Profile struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Username     *string
	Phone        *string
	Address      *string
	ProfileImage *string
	Role         *Role
}

// SignupRequest is the JSON body for POST /api/auth/signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,username"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the body returned by a successful login.
type LoginResponse struct {
	Profile
	Token string `json:"token"`
}

// ForgotPasswordRequest is the JSON body for POST /api/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON body for POST /api/auth/reset-password/{token}.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

// UpdateUserRequest is the JSON body for PUT /api/users/{id}. Email and
// Password are decoded only so that attempts to change them can be refused.
type UpdateUserRequest struct {
	Username     *string `json:"username"`
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
	ProfileImage *string `json:"profileImage"`
	Role         *string `json:"role"`
	Email        *string `json:"email"`
	Password     *string `json:"password"`
}

// UpdateEmailRequest is the JSON body for PUT /api/users/email/update/{id}.
type UpdateEmailRequest struct {
	NewEmail string `json:"newEmail" validate:"required,email"`
}
