package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ayush/storefront/backend/internal/apperr"
	"github.com/ayush/storefront/backend/internal/auth"
	"github.com/ayush/storefront/backend/internal/httpx"
	"github.com/ayush/storefront/backend/internal/models"
	"github.com/ayush/storefront/backend/internal/store"
)

const (
	MsgNoToken         = "Not authorized, no token provided"
	MsgInvalidToken    = "Not authorized, invalid token"
	MsgPasswordChanged = "Password changed, please login again"
	MsgUserNotFound    = "User not found"
	MsgAdminRequired   = "Admin privileges required"
)

// AccountFinder loads accounts by id.
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// TokenVerifier checks bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.VerifiedToken, error)
}

type accountIDKey struct{}

// WithAccountID returns a copy of ctx carrying the authenticated account id.
func WithAccountID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, accountIDKey{}, id)
}

// AccountID returns the authenticated account id stored by Protect.
func AccountID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey{}).(string)
	return id, ok && id != ""
}

// Protect requires a valid bearer token whose account still exists and whose
// password has not changed since the token was issued.
func Protect(tokens TokenVerifier, accounts AccountFinder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(w, r, logger, apperr.Unauthenticated(MsgNoToken))
				return
			}

			vt, err := tokens.Verify(raw)
			if err != nil {
				logger.Debug("bearer token rejected", zap.Error(err))
				httpx.WriteError(w, r, logger, apperr.Unauthenticated(MsgInvalidToken))
				return
			}

			acct, err := accounts.FindByID(r.Context(), vt.AccountID)
			if errors.Is(err, store.ErrNotFound) {
				httpx.WriteError(w, r, logger, apperr.Unauthenticated(MsgInvalidToken))
				return
			}
			if err != nil {
				httpx.WriteError(w, r, logger, apperr.Internal(fmt.Errorf("load token account: %w", err), ""))
				return
			}

			if acct.PasswordChangedAfter(vt.IssuedAt) {
				httpx.WriteError(w, r, logger, apperr.Unauthenticated(MsgPasswordChanged))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), acct.ID)))
		})
	}
}

// RequireAdmin must run after Protect. The role is reloaded from the store on
// every request so demotions take effect immediately.
func RequireAdmin(accounts AccountFinder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := AccountID(r.Context())
			if !ok {
				httpx.WriteError(w, r, logger, apperr.Unauthenticated(MsgNoToken))
				return
			}

			acct, err := accounts.FindByID(r.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				httpx.WriteError(w, r, logger, apperr.NotFound(MsgUserNotFound))
				return
			}
			if err != nil {
				httpx.WriteError(w, r, logger, apperr.Internal(fmt.Errorf("load account role: %w", err), ""))
				return
			}
			if !acct.IsAdmin() {
				httpx.WriteError(w, r, logger, apperr.Forbidden(MsgAdminRequired))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}
