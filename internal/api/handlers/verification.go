package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"truckmarket/internal/core"
	"truckmarket/internal/types"
)

// VerificationIssuer creates and redeems email verification tokens.
// Implemented by auth.Verifier.
type VerificationIssuer interface {
	Issue(ctx context.Context, userID string) (*types.VerificationToken, error)
	Redeem(ctx context.Context, token string) (string, error)
}

// SendVerificationResponse reports whether a link was emailed.
type SendVerificationResponse struct {
	Sent            bool `json:"sent"`
	AlreadyVerified bool `json:"already_verified"`
}

// VerifyEmailResponse is returned once a token has been redeemed.
type VerifyEmailResponse struct {
	Verified bool `json:"verified"`
}

// VerificationHandler serves the email confirmation endpoints. Its routes
// live under /auth and are mounted by AuthHandler.
type VerificationHandler struct {
	issuer   VerificationIssuer
	users    UserLookup
	notifier Notifier
	baseURL  string
	logger   *slog.Logger
}

// NewVerificationHandler creates a VerificationHandler.
func NewVerificationHandler(
	issuer VerificationIssuer,
	users UserLookup,
	notifier Notifier,
	publicBaseURL string,
	l *slog.Logger,
) *VerificationHandler {
	return &VerificationHandler{
		issuer:   issuer,
		users:    users,
		notifier: notifier,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		logger:   loggerOrDefault(l),
	}
}

func (h *VerificationHandler) routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/verify-email", h.Verify)
	r.With(requireAuth).Post("/send-verification", h.Send)
}

// Send handles POST /v1/auth/send-verification. Unlike other emails the
// send error is returned, since the link is the whole point of the call.
func (h *VerificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if actor.Type != types.ActorTypeUser {
		core.Error(w, r, types.NewAppError(types.ErrCodePermissionRole, "Only user accounts verify an email", nil))
		return
	}
	user, err := h.users.GetByID(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if user.IsEmailVerified() {
		core.Data(w, r, http.StatusOK, SendVerificationResponse{AlreadyVerified: true})
		return
	}

	tok, err := h.issuer.Issue(r.Context(), user.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	link := h.baseURL + "/verify-email?token=" + url.QueryEscape(tok.Token)
	err = h.notifier.Notify(r.Context(), types.EmailVerification, user.Email, map[string]any{
		"name":             user.FullName,
		"verification_url": link,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "verification email sent", "user_id", user.ID)
	core.Data(w, r, http.StatusOK, SendVerificationResponse{Sent: true})
}

// Verify handles GET /v1/auth/verify-email?token=.
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"token is required", nil, map[string]any{"field": "token"}))
		return
	}
	if _, err := h.issuer.Redeem(r.Context(), token); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, VerifyEmailResponse{Verified: true})
}

// EmailGate blocks users who have not confirmed their address from
// publishing. Admins always pass. A nil gate or one built with skip set
// lets everyone through.
type EmailGate struct {
	users UserLookup
	skip  bool
}

// NewEmailGate creates an EmailGate.
func NewEmailGate(users UserLookup, skip bool) *EmailGate {
	return &EmailGate{users: users, skip: skip}
}

// Check returns auth_email_not_verified (403) for an unverified user.
// action completes the sentence "Please verify your email before ...".
func (g *EmailGate) Check(ctx context.Context, actor types.Actor, action string) error {
	if g == nil || g.skip || actor.IsAdmin() {
		return nil
	}
	user, err := g.users.GetByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !user.IsEmailVerified() {
		return types.NewAppError(types.ErrCodeAuthEmailNotVerified,
			"Please verify your email before "+action, nil)
	}
	return nil
}
