// Package users implements account management for signed-in users and admins.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ayush/storefront/backend/internal/apperr"
	"github.com/ayush/storefront/backend/internal/logging"
	"github.com/ayush/storefront/backend/internal/models"
	"github.com/ayush/storefront/backend/internal/store"
	"github.com/ayush/storefront/backend/internal/validation"
)

const (
	MsgUserNotFound        = "User not found"
	MsgNotAuthorizedAccess = "Not authorized to access this user"
	MsgNotAuthorizedUpdate = "Not authorized to update this user"
	MsgNotAuthorizedDelete = "Not authorized to delete this user"
	MsgNotAuthorizedEmail  = "Not authorized to update email to this user"
	MsgRoleChangeForbidden = "Only admins can change user roles"
	MsgUseEmailRoute       = "Please use the dedicated email update route"
	MsgUsePasswordRoute    = "Please use the password reset route"
	MsgEmailInUse          = "Email already in use"
	MsgUsernameTaken       = "Username already taken"
	MsgInvalidImage        = "Profile image must be a JPEG, PNG or WebP image"
	MsgImageTooLarge       = "Profile image cannot exceed 2 MB"
	MsgImageNotFound       = "Profile image not found"
	MsgSessionInvalid      = "Not authorized, invalid token"
	MsgImagesUnavailable   = "Profile images are not available"
)

// MaxAvatarBytes bounds uploaded profile images.
const MaxAvatarBytes = 2 << 20

var avatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// AccountStore is the persistence account management needs.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.Account, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.Account, error)
	UpdateEmail(ctx context.Context, id, email string) (*models.Account, error)
	Delete(ctx context.Context, id string) error
}

// FileStore holds profile images.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
}

// Service applies the admin-or-self rules to account operations.
type Service struct {
	accounts  AccountStore
	files     FileStore
	logger    *zap.Logger
	validator *validation.Validator
}

func NewService(accounts AccountStore, files FileStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{accounts: accounts, files: files, logger: logger, validator: validation.New()}
}

// Me returns the requester's own account.
func (s *Service) Me(ctx context.Context, requesterID string) (*models.Account, error) {
	acct, err := s.accounts.FindByID(ctx, requesterID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return acct, nil
}

// List returns all accounts with the user role, newest first.
func (s *Service) List(ctx context.Context) ([]models.Account, error) {
	list, err := s.accounts.ListByRole(ctx, models.RoleUser)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list accounts: %w", err), "")
	}
	return list, nil
}

// Get returns account id to an admin or to its owner.
func (s *Service) Get(ctx context.Context, requesterID, id string) (*models.Account, error) {
	if _, err := s.authorize(ctx, requesterID, id, MsgNotAuthorizedAccess); err != nil {
		return nil, err
	}
	acct, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return acct, nil
}

// Update changes profile fields. Only admins may change roles; email and
// password have their own flows.
func (s *Service) Update(ctx context.Context, requesterID, id string, req models.UpdateUserRequest) (*models.Account, error) {
	requester, err := s.authorize(ctx, requesterID, id, MsgNotAuthorizedUpdate)
	if err != nil {
		return nil, err
	}
	if req.Role != nil && !requester.IsAdmin() {
		return nil, apperr.Forbidden(MsgRoleChangeForbidden)
	}
	if req.Email != nil {
		return nil, apperr.BadRequest(MsgUseEmailRoute)
	}
	if req.Password != nil {
		return nil, apperr.BadRequest(MsgUsePasswordRoute)
	}

	upd, msgs := s.profileUpdate(req)
	if len(msgs) > 0 {
		return nil, apperr.Validation(msgs...)
	}

	acct, err := s.accounts.UpdateProfile(ctx, id, upd)
	if store.DuplicateField(err) == "username" {
		return nil, apperr.Conflict(MsgUsernameTaken)
	}
	if err != nil {
		return nil, s.lookupError(err)
	}
	return acct, nil
}

func (s *Service) profileUpdate(req models.UpdateUserRequest) (models.ProfileUpdate, []string) {
	var (
		upd  models.ProfileUpdate
		msgs []string
	)
	if req.Username != nil {
		v := strings.TrimSpace(*req.Username)
		msgs = append(msgs, s.validator.Field("username", v, "required,min=3,max=30,username")...)
		upd.Username = &v
	}
	if req.Phone != nil {
		v := strings.TrimSpace(*req.Phone)
		msgs = append(msgs, s.validator.Field("phone", v, "phone")...)
		upd.Phone = &v
	}
	if req.Address != nil {
		v := strings.TrimSpace(*req.Address)
		msgs = append(msgs, s.validator.Field("address", v, "max=200")...)
		upd.Address = &v
	}
	if req.ProfileImage != nil {
		v := strings.TrimSpace(*req.ProfileImage)
		upd.ProfileImage = &v
	}
	if req.Role != nil {
		msgs = append(msgs, s.validator.Field("role", *req.Role, "oneof=user admin")...)
		role := models.Role(*req.Role)
		upd.Role = &role
	}
	return upd, msgs
}

// Delete removes account id and its profile image.
func (s *Service) Delete(ctx context.Context, requesterID, id string) error {
	if _, err := s.authorize(ctx, requesterID, id, MsgNotAuthorizedDelete); err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		return s.lookupError(err)
	}
	if s.files != nil {
		if err := s.files.Remove(ctx, store.AvatarKey(id)); err != nil && !errors.Is(err, store.ErrNotFound) {
			logging.Warn(s.logger, "remove profile image failed", err, zap.String("account_id", id))
		}
	}
	s.logger.Info("account deleted", zap.String("account_id", id), zap.String("by", requesterID))
	return nil
}

// UpdateEmail replaces the email of account id and marks it unverified.
func (s *Service) UpdateEmail(ctx context.Context, requesterID, id string, req models.UpdateEmailRequest) (*models.Account, error) {
	if _, err := s.authorize(ctx, requesterID, id, MsgNotAuthorizedEmail); err != nil {
		return nil, err
	}
	req.NewEmail = strings.ToLower(strings.TrimSpace(req.NewEmail))
	if msgs := s.validator.Struct(req); len(msgs) > 0 {
		return nil, apperr.BadRequest(msgs[0])
	}

	acct, err := s.accounts.UpdateEmail(ctx, id, req.NewEmail)
	if store.DuplicateField(err) == "email" {
		return nil, apperr.Conflict(MsgEmailInUse)
	}
	if err != nil {
		return nil, s.lookupError(err)
	}
	return acct, nil
}

// SetAvatar stores a profile image for account id and points profileImage at it.
func (s *Service) SetAvatar(ctx context.Context, requesterID, id string, data []byte, contentType string) (*models.Account, error) {
	if _, err := s.authorize(ctx, requesterID, id, MsgNotAuthorizedUpdate); err != nil {
		return nil, err
	}
	if s.files == nil {
		return nil, apperr.Internal(errors.New("file store not configured"), MsgImagesUnavailable)
	}
	if len(data) > MaxAvatarBytes {
		return nil, apperr.BadRequest(MsgImageTooLarge)
	}
	if len(data) == 0 || !avatarTypes[contentType] || http.DetectContentType(data) != contentType {
		return nil, apperr.BadRequest(MsgInvalidImage)
	}
	if _, err := s.accounts.FindByID(ctx, id); err != nil {
		return nil, s.lookupError(err)
	}

	if err := s.files.Upload(ctx, store.AvatarKey(id), data, contentType); err != nil {
		return nil, apperr.Internal(fmt.Errorf("upload profile image: %w", err), "")
	}
	url := AvatarURL(id)
	acct, err := s.accounts.UpdateProfile(ctx, id, models.ProfileUpdate{ProfileImage: &url})
	if err != nil {
		return nil, s.lookupError(err)
	}
	return acct, nil
}

// Avatar returns the stored profile image of account id.
func (s *Service) Avatar(ctx context.Context, id string) ([]byte, string, error) {
	if s.files == nil {
		return nil, "", apperr.NotFound(MsgImageNotFound)
	}
	data, contentType, err := s.files.Download(ctx, store.AvatarKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", apperr.NotFound(MsgImageNotFound)
	}
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("download profile image: %w", err), "")
	}
	return data, contentType, nil
}

// AvatarURL is the public path serving the profile image of account id.
func AvatarURL(id string) string {
	return "/api/users/" + id + "/avatar"
}

// authorize admits the owner of id or an admin. The requester is reloaded so
// role changes apply at once.
func (s *Service) authorize(ctx context.Context, requesterID, id, deniedMsg string) (*models.Account, error) {
	requester, err := s.accounts.FindByID(ctx, requesterID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Unauthenticated(MsgSessionInvalid)
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load requester: %w", err), "")
	}
	if requester.ID != id && !requester.IsAdmin() {
		return nil, apperr.Forbidden(deniedMsg)
	}
	return requester, nil
}

func (s *Service) lookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(MsgUserNotFound)
	}
	return apperr.Internal(fmt.Errorf("account store: %w", err), "")
}
