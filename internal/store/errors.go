package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayush/storefront/backend/internal/models"
)

// ErrNotFound is returned when no record matches a lookup or update.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is matched by every *DuplicateError.
var ErrDuplicate = errors.New("store: duplicate key")

// DuplicateError reports a unique constraint violation on Field
// ("email" or "username").
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("store: duplicate %s", e.Field)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// DuplicateField returns the conflicting field of err, or "" when err is not
// a uniqueness violation.
func DuplicateField(err error) string {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Field
	}
	return ""
}

// ResetConsumption is the write applied when a reset token is redeemed. The
// token must still be unexpired at ChangedAt.
type ResetConsumption struct {
	AccountID    string
	TokenHash    string
	PasswordHash string
	ChangedAt    time.Time
}

func applyProfileUpdate(a *models.Account, upd models.ProfileUpdate) {
	if upd.Username != nil {
		a.Username = *upd.Username
	}
	if upd.Phone != nil {
		a.Phone = *upd.Phone
	}
	if upd.Address != nil {
		a.Address = *upd.Address
	}
	if upd.ProfileImage != nil {
		a.ProfileImage = *upd.ProfileImage
	}
	if upd.Role != nil {
		a.Role = *upd.Role
	}
}
