package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayush/storefront/backend/internal/apperr"
	"github.com/ayush/storefront/backend/internal/logging"
	"github.com/ayush/storefront/backend/internal/models"
	"github.com/ayush/storefront/backend/internal/observability"
	"github.com/ayush/storefront/backend/internal/store"
	"github.com/ayush/storefront/backend/internal/validation"
)

// Client-facing messages. Authentication failures share one message per flow
// so responses never reveal which check failed.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgInvalidResetToken  = "Invalid or expired token"
	MsgEmailRegistered    = "Email already registered"
	MsgUsernameTaken      = "Username already taken"
	MsgResetEmailSent     = "Password reset email sent if account exists"
	MsgPasswordReset      = "Password reset successful"
)

// Event labels recorded for each flow.
const (
	EventSignup         = "signup"
	EventLogin          = "login"
	EventForgotPassword = "forgot_password"
	EventResetPassword  = "reset_password"
)

// AccountStore is the persistence the auth flows need.
type AccountStore interface {
	Insert(ctx context.Context, a *models.Account) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) ([]models.Account, error)
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error)
	ConsumeResetToken(ctx context.Context, c store.ResetConsumption) error
}

// Mailer delivers the raw reset token to the account holder.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, address, rawToken string) error
}

// EventRecorder counts flow outcomes.
type EventRecorder interface {
	AuthEvent(event, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) AuthEvent(string, string) {}

// Service implements signup, login and the password-reset flows.
type Service struct {
	accounts  AccountStore
	hasher    PasswordHasher
	tokens    *TokenCodec
	resets    *ResetTokenGenerator
	mailer    Mailer
	logger    *zap.Logger
	validator *validation.Validator
	events    EventRecorder
	now       func() time.Time
	dummyHash string
}

// Option customizes a Service.
type Option func(*Service)

// WithEventRecorder sets the recorder for flow outcomes.
func WithEventRecorder(r EventRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.events = r
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the auth flows. It hashes a throwaway password once so
// that logins for unknown emails cost the same as real ones.
func NewService(
	accounts AccountStore,
	hasher PasswordHasher,
	tokens *TokenCodec,
	resets *ResetTokenGenerator,
	mailer Mailer,
	logger *zap.Logger,
	opts ...Option,
) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	if tokens == nil {
		return nil, errors.New("token codec is required")
	}
	if resets == nil {
		return nil, errors.New("reset token generator is required")
	}
	if mailer == nil {
		return nil, errors.New("mailer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dummy, err := hasher.Hash("storefront-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	s := &Service{
		accounts:  accounts,
		hasher:    hasher,
		tokens:    tokens,
		resets:    resets,
		mailer:    mailer,
		logger:    logger,
		validator: validation.New(),
		events:    nopRecorder{},
		now:       time.Now,
		dummyHash: dummy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Signup registers a new account with the user role and returns its public profile.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.Profile, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)
	if msgs := s.validator.Struct(req); len(msgs) > 0 {
		return nil, s.reject(EventSignup, apperr.Validation(msgs...))
	}

	existing, err := s.accounts.FindByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, s.fail(EventSignup, fmt.Errorf("find existing account: %w", err), "Server error during registration")
	}
	for _, a := range existing {
		if a.Email == req.Email {
			return nil, s.reject(EventSignup, apperr.Conflict(MsgEmailRegistered))
		}
	}
	if len(existing) > 0 {
		return nil, s.reject(EventSignup, apperr.Conflict(MsgUsernameTaken))
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, s.fail(EventSignup, err, "Server error during registration")
	}

	acct := &models.Account{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: digest,
		Role:         models.RoleUser,
	}
	if err := s.accounts.Insert(ctx, acct); err != nil {
		switch store.DuplicateField(err) {
		case "email":
			return nil, s.reject(EventSignup, apperr.Conflict(MsgEmailRegistered))
		case "username":
			return nil, s.reject(EventSignup, apperr.Conflict(MsgUsernameTaken))
		}
		return nil, s.fail(EventSignup, fmt.Errorf("insert account: %w", err), "Server error during registration")
	}

	s.events.AuthEvent(EventSignup, observability.OutcomeSuccess)
	s.logger.Info("account created", zap.String("account_id", acct.ID))

	profile := acct.Profile()
	return &profile, nil
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if msgs := s.validator.Struct(req); len(msgs) > 0 {
		return nil, s.reject(EventLogin, apperr.Validation(msgs...))
	}

	acct, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, s.fail(EventLogin, fmt.Errorf("find account by email: %w", err), "Server error during login")
	}
	if acct == nil {
		s.hasher.Verify(req.Password, s.dummyHash)
		return nil, s.reject(EventLogin, apperr.Unauthenticated(MsgInvalidCredentials))
	}
	if !s.hasher.Verify(req.Password, acct.PasswordHash) {
		return nil, s.reject(EventLogin, apperr.Unauthenticated(MsgInvalidCredentials))
	}

	token, err := s.tokens.Issue(acct.ID)
	if err != nil {
		return nil, s.fail(EventLogin, err, "Server error during login")
	}

	s.events.AuthEvent(EventLogin, observability.OutcomeSuccess)
	return &models.LoginResponse{Profile: acct.Profile(), Token: token}, nil
}

// ForgotPassword issues a reset token when the email belongs to an account.
// It succeeds whether or not the account exists, and mail delivery failures
// are logged rather than returned.
func (s *Service) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	req.Email = normalizeEmail(req.Email)
	if msgs := s.validator.Struct(req); len(msgs) > 0 {
		return s.reject(EventForgotPassword, apperr.Validation(msgs...))
	}

	acct, err := s.accounts.FindByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		s.events.AuthEvent(EventForgotPassword, observability.OutcomeSuccess)
		return nil
	}
	if err != nil {
		return s.fail(EventForgotPassword, fmt.Errorf("find account by email: %w", err), "Server error during password reset request")
	}

	tok, err := s.resets.Generate()
	if err != nil {
		return s.fail(EventForgotPassword, err, "Server error during password reset request")
	}
	if err := s.accounts.SetResetToken(ctx, acct.ID, tok.Hash, tok.ExpiresAt); err != nil {
		return s.fail(EventForgotPassword, fmt.Errorf("store reset token: %w", err), "Server error during password reset request")
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, acct.Email, tok.Raw); err != nil {
		logging.Warn(s.logger, "password reset email failed", err, zap.String("account_id", acct.ID))
	}

	s.events.AuthEvent(EventForgotPassword, observability.OutcomeSuccess)
	return nil
}

// ResetPassword redeems rawToken and sets a new password. Tokens are single
// use; every token that is unknown, expired or already used gets the same
// rejection.
func (s *Service) ResetPassword(ctx context.Context, rawToken string, req models.ResetPasswordRequest) error {
	if msgs := s.validator.Struct(req); len(msgs) > 0 {
		return s.reject(EventResetPassword, apperr.Validation(msgs...))
	}
	if rawToken == "" {
		return s.reject(EventResetPassword, apperr.Unauthenticated(MsgInvalidResetToken))
	}

	tokenHash := HashResetToken(rawToken)
	now := s.now()

	acct, err := s.accounts.FindByResetToken(ctx, tokenHash, now)
	if errors.Is(err, store.ErrNotFound) {
		return s.reject(EventResetPassword, apperr.Unauthenticated(MsgInvalidResetToken))
	}
	if err != nil {
		return s.fail(EventResetPassword, fmt.Errorf("find account by reset token: %w", err), "Server error during password reset")
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return s.fail(EventResetPassword, err, "Server error during password reset")
	}

	// re-read the clock so the expiry holds across the hash
	err = s.accounts.ConsumeResetToken(ctx, store.ResetConsumption{
		AccountID:    acct.ID,
		TokenHash:    tokenHash,
		PasswordHash: digest,
		ChangedAt:    s.now(),
	})
	if errors.Is(err, store.ErrNotFound) {
		return s.reject(EventResetPassword, apperr.Unauthenticated(MsgInvalidResetToken))
	}
	if err != nil {
		return s.fail(EventResetPassword, fmt.Errorf("consume reset token: %w", err), "Server error during password reset")
	}

	s.events.AuthEvent(EventResetPassword, observability.OutcomeSuccess)
	s.logger.Info("password reset", zap.String("account_id", acct.ID))
	return nil
}

func (s *Service) reject(event string, err error) error {
	s.events.AuthEvent(event, observability.OutcomeRejected)
	return err
}

func (s *Service) fail(event string, err error, message string) error {
	s.events.AuthEvent(event, observability.OutcomeError)
	return apperr.Internal(err, message)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
