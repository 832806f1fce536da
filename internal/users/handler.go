package users

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ayush/storefront/backend/internal/apperr"
	"github.com/ayush/storefront/backend/internal/httpx"
	"github.com/ayush/storefront/backend/internal/middleware"
	"github.com/ayush/storefront/backend/internal/models"
)

// Handler holds account management HTTP handlers.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type updatedUser struct {
	ID       string      `json:"_id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	Phone    string      `json:"phone"`
}

func (h *Handler) requester(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.AccountID(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, apperr.Unauthenticated(middleware.MsgNoToken))
	}
	return id, ok
}

// Me returns the authenticated account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := h.requester(w, r)
	if !ok {
		return
	}
	acct, err := h.svc.Me(r.Context(), requesterID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": acct})
}

// List returns every customer account. Mounted behind RequireAdmin.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(list),
		"users":   list,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := h.requester(w, r)
	if !ok {
		return
	}
	acct, err := h.svc.Get(r.Context(), requesterID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "user": acct})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := h.requester(w, r)
	if !ok {
		return
	}
	var req models.UpdateUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	acct, err := h.svc.Update(r.Context(), requesterID, chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": updatedUser{
			ID:       acct.ID,
			Username: acct.Username,
			Email:    acct.Email,
			Role:     acct.Role,
			Phone:    acct.Phone,
		},
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := h.requester(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), requesterID, chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User deleted successfully",
	})
}

func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := h.requester(w, r)
	if !ok {
		return
	}
	var req models.UpdateEmailRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	acct, err := h.svc.UpdateEmail(r.Context(), requesterID, chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email updated successfully. Verification required.",
		"email":   acct.Email,
	})
}

// UploadAvatar stores the raw request body as the profile image.
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := h.requester(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxAvatarBytes+1))
	if err != nil {
		httpx.WriteError(w, r, h.logger, apperr.BadRequest("Invalid request body"))
		return
	}

	acct, err := h.svc.SetAvatar(r.Context(), requesterID, chi.URLParam(r, "id"), data, r.Header.Get("Content-Type"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "user": acct})
}

// Avatar streams a stored profile image. It is public.
func (h *Handler) Avatar(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.svc.Avatar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(data)
}
