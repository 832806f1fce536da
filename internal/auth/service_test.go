package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/storefront/backend/internal/apperr"
	"github.com/ayush/storefront/backend/internal/models"
	"github.com/ayush/storefront/backend/internal/store"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendPasswordResetEmail(ctx context.Context, address, rawToken string) error {
	args := m.Called(ctx, address, rawToken)
	return args.Error(0)
}

type recordedEvent struct {
	event, outcome string
}

type eventLog struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (l *eventLog) AuthEvent(event, outcome string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, recordedEvent{event, outcome})
}

type serviceFixture struct {
	svc    *Service
	store  *store.MemoryStore
	mailer *mockMailer
	codec  *TokenCodec
	hasher *BcryptHasher
	events *eventLog
	logs   *observer.ObservedLogs
	now    time.Time
}

func newServiceFixture(t *testing.T, opts ...Option) *serviceFixture {
	t.Helper()

	hasher, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	codec, err := NewTokenCodec("test-secret", DefaultTokenTTL)
	require.NoError(t, err)

	f := &serviceFixture{
		store:  store.NewMemoryStore(),
		mailer: &mockMailer{},
		codec:  codec,
		hasher: hasher,
		events: &eventLog{},
		now:    time.Now(),
	}
	core, logs := observer.New(zapcore.DebugLevel)
	f.logs = logs

	opts = append([]Option{WithEventRecorder(f.events), WithClock(func() time.Time { return f.now })}, opts...)
	f.svc, err = NewService(f.store, hasher, codec, NewResetTokenGenerator(DefaultResetTokenTTL), f.mailer, zap.New(core), opts...)
	require.NoError(t, err)
	return f
}

func (f *serviceFixture) signup(t *testing.T, username, email, password string) *models.Profile {
	t.Helper()
	p, err := f.svc.Signup(context.Background(), models.SignupRequest{Username: username, Email: email, Password: password})
	require.NoError(t, err)
	return p
}

func TestSignup(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()

	p := f.signup(t, "alice", "Alice@Example.com", "secret1")

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, models.RoleUser, p.Role)

	stored, err := f.store.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.True(t, f.hasher.Verify("secret1", stored.PasswordHash))
	assert.Contains(t, f.events.events, recordedEvent{EventSignup, "success"})
}

func TestSignupValidation(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	_, err := f.svc.Signup(context.Background(), models.SignupRequest{Username: "al", Email: "bad", Password: "123"})

	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.Code(err))
	assert.Equal(t, []string{
		"Username must be at least 3 characters",
		"Please enter a valid email address",
		"Password must be at least 6 characters",
	}, apperr.Details(err))
}

func TestSignupConflicts(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	f.signup(t, "alice", "alice@x.com", "secret1")

	tests := []struct {
		name     string
		username string
		email    string
		want     string
	}{
		{"email and username", "alice", "alice@x.com", MsgEmailRegistered},
		{"email only", "alice2", "ALICE@x.com", MsgEmailRegistered},
		{"username only", "alice", "other@x.com", MsgUsernameTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Signup(ctx, models.SignupRequest{Username: tt.username, Email: tt.email, Password: "secret1"})
			require.Error(t, err)
			assert.Equal(t, apperr.CodeConflict, apperr.Code(err))
			assert.Equal(t, tt.want, apperr.Message(err))
		})
	}
}

func TestSignupConcurrentSameUsername(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, email := range []string{"one@x.com", "two@x.com"} {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			_, errs[i] = f.svc.Signup(context.Background(), models.SignupRequest{Username: "shared", Email: email, Password: "secret1"})
		}(i, email)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.Is(err, apperr.CodeConflict):
			conflicts++
			assert.Equal(t, MsgUsernameTaken, apperr.Message(err))
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	p := f.signup(t, "alice", "alice@x.com", "secret1")

	resp, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	assert.Equal(t, p.ID, resp.ID)
	assert.Equal(t, "alice", resp.Username)
	vt, err := f.codec.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, vt.AccountID)
	assert.Equal(t, int64(3600), vt.ExpiresAt.Unix()-vt.IssuedAt.Unix())
}

func TestLoginFailuresAreUniform(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.signup(t, "alice", "alice@x.com", "secret1")
	ctx := context.Background()

	_, wrongPassword := f.svc.Login(ctx, models.LoginRequest{Email: "alice@x.com", Password: "wrong-pass"})
	_, unknownEmail := f.svc.Login(ctx, models.LoginRequest{Email: "nobody@x.com", Password: "wrong-pass"})

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, apperr.Code(wrongPassword), apperr.Code(unknownEmail))
	assert.Equal(t, apperr.HTTPStatus(wrongPassword), apperr.HTTPStatus(unknownEmail))
	assert.Equal(t, MsgInvalidCredentials, apperr.Message(wrongPassword))
	assert.Equal(t, apperr.Message(wrongPassword), apperr.Message(unknownEmail))
}

type failingStore struct {
	*store.MemoryStore
	err error
}

func (s failingStore) FindByEmail(context.Context, string) (*models.Account, error) {
	return nil, s.err
}

func TestLoginStoreFailure(t *testing.T) {
	t.Parallel()

	hasher, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	codec, err := NewTokenCodec("test-secret", DefaultTokenTTL)
	require.NoError(t, err)

	cause := errors.New("connection refused")
	svc, err := NewService(failingStore{store.NewMemoryStore(), cause}, hasher, codec,
		NewResetTokenGenerator(0), &mockMailer{}, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "a@x.com", Password: "secret1"})
	assert.Equal(t, apperr.CodeInternal, apperr.Code(err))
	assert.Equal(t, "Server error during login", apperr.Message(err))
	assert.ErrorIs(t, err, cause)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	err := f.svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "nobody@x.com"})

	assert.NoError(t, err)
	f.mailer.AssertNotCalled(t, "SendPasswordResetEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestForgotPasswordStoresDigest(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	p := f.signup(t, "alice", "alice@x.com", "secret1")

	var raw string
	f.mailer.On("SendPasswordResetEmail", mock.Anything, "alice@x.com", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { raw = args.String(2) }).
		Return(nil).Once()

	require.NoError(t, f.svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "alice@x.com"}))
	f.mailer.AssertExpectations(t)

	stored, err := f.store.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, raw, 64)
	assert.Equal(t, HashResetToken(raw), stored.ResetPasswordTokenHash)
	assert.NotEqual(t, raw, stored.ResetPasswordTokenHash)
	require.NotNil(t, stored.ResetPasswordExpiresAt)
}

func TestForgotPasswordMailFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.signup(t, "alice", "alice@x.com", "secret1")
	f.mailer.On("SendPasswordResetEmail", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp unavailable"))

	err := f.svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "alice@x.com"})

	assert.NoError(t, err)
	assert.Equal(t, 1, f.logs.FilterMessage("password reset email failed").Len())
}

func (f *serviceFixture) requestReset(t *testing.T, email string) string {
	t.Helper()
	var raw string
	f.mailer.On("SendPasswordResetEmail", mock.Anything, email, mock.Anything).
		Run(func(args mock.Arguments) { raw = args.String(2) }).
		Return(nil).Once()
	require.NoError(t, f.svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: email}))
	require.NotEmpty(t, raw)
	return raw
}

func TestResetPassword(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	p := f.signup(t, "alice", "alice@x.com", "secret1")
	raw := f.requestReset(t, "alice@x.com")

	require.NoError(t, f.svc.ResetPassword(ctx, raw, models.ResetPasswordRequest{Password: "newsecret"}))

	stored, err := f.store.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ResetPasswordTokenHash)
	assert.Nil(t, stored.ResetPasswordExpiresAt)
	require.NotNil(t, stored.PasswordChangedAt)
	assert.True(t, stored.PasswordChangedAt.Equal(f.now))

	_, err = f.svc.Login(ctx, models.LoginRequest{Email: "alice@x.com", Password: "secret1"})
	assert.Equal(t, MsgInvalidCredentials, apperr.Message(err))
	_, err = f.svc.Login(ctx, models.LoginRequest{Email: "alice@x.com", Password: "newsecret"})
	assert.NoError(t, err)

	err = f.svc.ResetPassword(ctx, raw, models.ResetPasswordRequest{Password: "another1"})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.Code(err))
	assert.Equal(t, MsgInvalidResetToken, apperr.Message(err))
}

func TestResetPasswordExpired(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.signup(t, "alice", "alice@x.com", "secret1")
	raw := f.requestReset(t, "alice@x.com")

	f.now = f.now.Add(11 * time.Minute)
	err := f.svc.ResetPassword(context.Background(), raw, models.ResetPasswordRequest{Password: "newsecret"})

	assert.Equal(t, apperr.CodeUnauthenticated, apperr.Code(err))
	assert.Equal(t, MsgInvalidResetToken, apperr.Message(err))
}

func TestResetPasswordRejectsInput(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()

	err := f.svc.ResetPassword(ctx, "whatever", models.ResetPasswordRequest{Password: "123"})
	assert.Equal(t, []string{"Password must be at least 6 characters"}, apperr.Details(err))

	err = f.svc.ResetPassword(ctx, "unknown-token", models.ResetPasswordRequest{Password: "newsecret"})
	assert.Equal(t, MsgInvalidResetToken, apperr.Message(err))

	err = f.svc.ResetPassword(ctx, "", models.ResetPasswordRequest{Password: "newsecret"})
	assert.Equal(t, MsgInvalidResetToken, apperr.Message(err))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	hasher, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	codec, err := NewTokenCodec("test-secret", DefaultTokenTTL)
	require.NoError(t, err)
	resets := NewResetTokenGenerator(0)
	mailer := &mockMailer{}
	st := store.NewMemoryStore()

	_, err = NewService(nil, hasher, codec, resets, mailer, nil)
	assert.Error(t, err)
	_, err = NewService(st, nil, codec, resets, mailer, nil)
	assert.Error(t, err)
	_, err = NewService(st, hasher, nil, resets, mailer, nil)
	assert.Error(t, err)
	_, err = NewService(st, hasher, codec, nil, mailer, nil)
	assert.Error(t, err)
	_, err = NewService(st, hasher, codec, resets, nil, nil)
	assert.Error(t, err)
	_, err = NewService(st, hasher, codec, resets, mailer, nil)
	assert.NoError(t, err)
}

func TestPasswordOverBcryptLimit(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	long := strings.Repeat("a", 73)

	_, err := f.svc.Signup(ctx, models.SignupRequest{Username: "alice", Email: "alice@x.com", Password: long})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.Code(err))
	assert.Equal(t, []string{"Password cannot exceed 72 bytes"}, apperr.Details(err))

	f.signup(t, "alice", "alice@x.com", strings.Repeat("a", 72))
	raw := f.requestReset(t, "alice@x.com")

	err = f.svc.ResetPassword(ctx, raw, models.ResetPasswordRequest{Password: long})
	assert.Equal(t, apperr.CodeValidation, apperr.Code(err))
	assert.Equal(t, []string{"Password cannot exceed 72 bytes"}, apperr.Details(err))

	require.NoError(t, f.svc.ResetPassword(ctx, raw, models.ResetPasswordRequest{Password: strings.Repeat("b", 72)}))
}

// slowHasher runs tick before every hash.
type slowHasher struct {
	PasswordHasher
	tick func()
}

func (h *slowHasher) Hash(password string) (string, error) {
	if h.tick != nil {
		h.tick()
	}
	return h.PasswordHasher.Hash(password)
}

func TestResetPasswordExpiresWhileHashing(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	p := f.signup(t, "alice", "alice@x.com", "secret1")
	raw := f.requestReset(t, "alice@x.com")

	hasher := &slowHasher{PasswordHasher: f.hasher}
	svc, err := NewService(f.store, hasher, f.codec, NewResetTokenGenerator(DefaultResetTokenTTL), f.mailer, zap.NewNop(),
		WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	hasher.tick = func() { f.now = f.now.Add(11 * time.Minute) }

	err = svc.ResetPassword(ctx, raw, models.ResetPasswordRequest{Password: "newsecret"})
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.Code(err))
	assert.Equal(t, MsgInvalidResetToken, apperr.Message(err))

	stored, err := f.store.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, f.hasher.Verify("secret1", stored.PasswordHash))
	assert.Nil(t, stored.PasswordChangedAt)
}
