package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"truckmarket/internal/core"
	"truckmarket/internal/types"
)

// AccountDeleter removes a user and everything they own.
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, userID, email string) error
}

// EmailPrefUpdater changes how a user hears about new messages.
type EmailPrefUpdater interface {
	UpdateEmailPref(ctx context.Context, userID string, pref types.EmailPref) error
}

// SessionRevoker revokes a session token.
type SessionRevoker interface {
	Logout(ctx context.Context, token string) error
}

// EmailPrefRequest is the body of PUT /v1/account/email-pref.
type EmailPrefRequest struct {
	MessageEmailPref types.EmailPref `json:"message_email_pref" validate:"required,oneof=each daily never"`
}

// AccountHandler serves the self-service account routes of regular users.
type AccountHandler struct {
	accounts  AccountDeleter
	prefs     EmailPrefUpdater
	sessions  SessionRevoker
	cookie    CookieConfig
	validator *core.Validator
	logger    *slog.Logger
}

// NewAccountHandler creates an AccountHandler. cookie must match the one
// the AuthHandler sets so deletion can clear it.
func NewAccountHandler(
	accounts AccountDeleter,
	prefs EmailPrefUpdater,
	sessions SessionRevoker,
	cookie CookieConfig,
	v *core.Validator,
	l *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		prefs:     prefs,
		sessions:  sessions,
		cookie:    cookie,
		validator: v,
		logger:    loggerOrDefault(l),
	}
}

// RegisterRoutes mounts /account behind requireAuth.
func (h *AccountHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/account", func(r chi.Router) {
		r.Use(requireAuth)
		r.Delete("/", h.Delete)
		r.Put("/email-pref", h.UpdateEmailPref)
	})
}

// Delete handles DELETE /v1/account. Admin accounts are managed out of
// band and cannot delete themselves here.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := h.userActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.accounts.DeleteAccount(r.Context(), actor.ID, actor.Email); err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "account deleted", "user_id", actor.ID)

	if actor.SessionID != "" {
		if err := h.sessions.Logout(r.Context(), actor.SessionID); err != nil {
			h.logger.WarnContext(r.Context(), "failed to revoke session of deleted account", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		MaxAge:   -1,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	core.NoContent(w)
}

// UpdateEmailPref handles PUT /v1/account/email-pref.
func (h *AccountHandler) UpdateEmailPref(w http.ResponseWriter, r *http.Request) {
	actor, err := h.userActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	var req EmailPrefRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.prefs.UpdateEmailPref(r.Context(), actor.ID, req.MessageEmailPref); err != nil {
		core.Error(w, r, err)
		return
	}
	core.NoContent(w)
}

func (h *AccountHandler) userActor(r *http.Request) (types.Actor, error) {
	actor, err := requireActor(r)
	if err != nil {
		return actor, err
	}
	if actor.IsAdmin() {
		return actor, types.NewAppError(types.ErrCodePermissionRole, "admin accounts cannot use this endpoint", nil)
	}
	return actor, nil
}
