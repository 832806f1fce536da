package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/storefront/backend/internal/models"
)

// MemoryStore keeps accounts in process memory. It enforces the same
// uniqueness rules as the database backends and is used for local
// development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*models.Account), now: time.Now}
}

func (s *MemoryStore) Insert(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique("", a.Email, a.Username); err != nil {
		return err
	}

	now := s.now().UTC()
	a.ID = uuid.NewString()
	a.Email = normalizeEmail(a.Email)
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Role == "" {
		a.Role = models.RoleUser
	}
	s.accounts[a.ID] = clone(a)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(a), nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Email == normalizeEmail(email) {
			return clone(a), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByEmailOrUsername(_ context.Context, email, username string) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Account
	for _, a := range s.accounts {
		if a.Email == normalizeEmail(email) || a.Username == username {
			out = append(out, *clone(a))
		}
	}
	return out, nil
}

func (s *MemoryStore) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.ResetPasswordTokenHash = tokenHash
	a.ResetPasswordExpiresAt = &expiresAt
	a.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.ResetPasswordTokenHash == tokenHash && a.ResetPasswordExpiresAt != nil && a.ResetPasswordExpiresAt.After(now) {
			return clone(a), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ConsumeResetToken(_ context.Context, c ResetConsumption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[c.AccountID]
	if !ok || a.ResetPasswordTokenHash == "" || a.ResetPasswordTokenHash != c.TokenHash {
		return ErrNotFound
	}
	if a.ResetPasswordExpiresAt == nil || !a.ResetPasswordExpiresAt.After(c.ChangedAt) {
		return ErrNotFound
	}
	changedAt := c.ChangedAt
	a.PasswordHash = c.PasswordHash
	a.PasswordChangedAt = &changedAt
	a.ResetPasswordTokenHash = ""
	a.ResetPasswordExpiresAt = nil
	a.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Username != nil {
		if err := s.checkUnique(id, "", *upd.Username); err != nil {
			return nil, err
		}
	}
	applyProfileUpdate(a, upd)
	a.UpdatedAt = s.now().UTC()
	return clone(a), nil
}

func (s *MemoryStore) UpdateEmail(_ context.Context, id, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := s.checkUnique(id, email, ""); err != nil {
		return nil, err
	}
	a.Email = normalizeEmail(email)
	a.EmailVerified = false
	a.UpdatedAt = s.now().UTC()
	return clone(a), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *MemoryStore) ListByRole(_ context.Context, role models.Role) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Account{}
	for _, a := range s.accounts {
		if a.Role == role {
			out = append(out, *clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// checkUnique must be called with the write lock held. Empty values are
// skipped; an email clash wins over a username clash.
func (s *MemoryStore) checkUnique(selfID, email, username string) error {
	email = normalizeEmail(email)
	field := ""
	for id, a := range s.accounts {
		if id == selfID {
			continue
		}
		if email != "" && a.Email == email {
			return &DuplicateError{Field: "email"}
		}
		if username != "" && a.Username == username {
			field = "username"
		}
	}
	if field != "" {
		return &DuplicateError{Field: field}
	}
	return nil
}

func clone(a *models.Account) *models.Account {
	c := *a
	if a.PasswordChangedAt != nil {
		t := *a.PasswordChangedAt
		c.PasswordChangedAt = &t
	}
	if a.ResetPasswordExpiresAt != nil {
		t := *a.ResetPasswordExpiresAt
		c.ResetPasswordExpiresAt = &t
	}
	return &c
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
