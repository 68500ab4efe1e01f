package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"truckmarket/internal/core"
	"truckmarket/internal/types"
)

// --- Service Interfaces ---

// MessageStore is the messaging data access: conversations, messages,
// blocks and reports.
type MessageStore interface {
	GetConversation(ctx context.Context, id string) (*types.Conversation, error)
	FindConversation(ctx context.Context, userA, userB, listingID string) (*types.Conversation, error)
	CreateConversation(ctx context.Context, c *types.Conversation) error
	AddMessage(ctx context.Context, m *types.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]types.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
	ListConversations(ctx context.Context, userID string) ([]types.ConversationSummary, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	BlockState(ctx context.Context, userA, userB string) (aBlockedB, bBlockedA bool, err error)
	Block(ctx context.Context, blockerID, blockedID string, now time.Time) error
	Unblock(ctx context.Context, blockerID, blockedID string) error
	ListBlocks(ctx context.Context, blockerID string) ([]types.Block, error)
	CreateReport(ctx context.Context, rep *types.Report) error
}

// UserLookup reads user accounts.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// --- Request/Response Models ---

// StartConversationRequest is the request body for
// POST /v1/messages/conversations.
type StartConversationRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	ListingID   string `json:"listing_id,omitempty"`
	Message     string `json:"message" validate:"required"`
}

// SendMessageRequest is the request body for
// POST /v1/messages/conversations/{id}/messages.
type SendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// BlockRequest is the request body for POST and DELETE /v1/messages/blocks.
type BlockRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// ReportRequest is the request body for POST /v1/messages/reports.
type ReportRequest struct {
	ReportedUserID string             `json:"reported_user_id" validate:"required"`
	ConversationID string             `json:"conversation_id,omitempty"`
	Reason         types.ReportReason `json:"reason" validate:"required,report_reason"`
	Details        string             `json:"details,omitempty" validate:"max=2000"`
}

// SentMessageResponse is returned after a message is stored.
type SentMessageResponse struct {
	ConversationID string        `json:"conversation_id"`
	Message        types.Message `json:"message"`
}

// ConversationDetail is a conversation with its messages and block flags.
type ConversationDetail struct {
	Conversation *types.Conversation `json:"conversation"`
	Messages     []types.Message     `json:"messages"`
	IsBlocked    bool                `json:"is_blocked"`
	BlockedByMe  bool                `json:"blocked_by_me"`
}

// --- Handler ---

// MessageHandler serves buyer/seller messaging.
type MessageHandler struct {
	store     MessageStore
	users     UserLookup
	notifier  Notifier
	validator *core.Validator
	clock     types.Clock
	baseURL   string
	logger    *slog.Logger
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(
	store MessageStore,
	users UserLookup,
	notifier Notifier,
	v *core.Validator,
	clock types.Clock,
	publicBaseURL string,
	l *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		store:     store,
		users:     users,
		notifier:  notifier,
		validator: v,
		clock:     clockOrReal(clock),
		baseURL:   strings.TrimRight(publicBaseURL, "/"),
		logger:    loggerOrDefault(l),
	}
}

// RegisterRoutes mounts the messaging routes behind requireAuth.
func (h *MessageHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/messages", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/conversations", h.ListConversations)
		r.Post("/conversations", h.StartConversation)
		r.Get("/conversations/{id}", h.GetConversation)
		r.Post("/conversations/{id}/messages", h.SendMessage)
		r.Post("/conversations/{id}/read", h.MarkRead)

		r.Get("/blocks", h.ListBlocks)
		r.Post("/blocks", h.Block)
		r.Delete("/blocks", h.Unblock)

		r.Post("/reports", h.Report)
		r.Get("/unread-count", h.UnreadCount)
	})
}

// ListConversations handles GET /v1/messages/conversations. Conversations
// with blocked users are hidden.
func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	convs, err := h.store.ListConversations(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, convs)
}

// StartConversation handles POST /v1/messages/conversations. An existing
// conversation between the pair about the same listing is reused.
func (h *MessageHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req StartConversationRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.RecipientID == actor.ID {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationSelfAction, "You cannot message yourself", nil))
		return
	}
	content, err := normalizeMessage(req.Message)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	ctx := r.Context()
	recipient, err := h.users.GetByID(ctx, req.RecipientID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.ensureNotBlocked(ctx, actor.ID, recipient.ID); err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.clock.Now()
	conv, err := h.store.FindConversation(ctx, actor.ID, recipient.ID, req.ListingID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	created := conv == nil
	if created {
		conv = &types.Conversation{
			ID:            "conv_" + uuid.New().String(),
			Participant1:  actor.ID,
			Participant2:  recipient.ID,
			ListingID:     req.ListingID,
			LastMessageAt: now,
			CreatedAt:     now,
		}
		if err := h.store.CreateConversation(ctx, conv); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	msg, err := h.deliver(ctx, actor, conv, recipient, content, now)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	core.Data(w, r, status, SentMessageResponse{ConversationID: conv.ID, Message: *msg})
}

// GetConversation handles GET /v1/messages/conversations/{id}.
func (h *MessageHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	actor, conv, err := h.participantConversation(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	ctx := r.Context()
	other := conv.OtherParticipant(actor.ID)
	blockedByMe, blockedMe, err := h.store.BlockState(ctx, actor.ID, other)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	msgs, err := h.store.ListMessages(ctx, conv.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, ConversationDetail{
		Conversation: conv,
		Messages:     msgs,
		IsBlocked:    blockedByMe || blockedMe,
		BlockedByMe:  blockedByMe,
	})
}

// SendMessage handles POST /v1/messages/conversations/{id}/messages.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	actor, conv, err := h.participantConversation(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req SendMessageRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	content, err := normalizeMessage(req.Message)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	ctx := r.Context()
	other := conv.OtherParticipant(actor.ID)
	if err := h.ensureNotBlocked(ctx, actor.ID, other); err != nil {
		core.Error(w, r, err)
		return
	}
	recipient, err := h.users.GetByID(ctx, other)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	msg, err := h.deliver(ctx, actor, conv, recipient, content, h.clock.Now())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusCreated, SentMessageResponse{ConversationID: conv.ID, Message: *msg})
}

// MarkRead handles POST /v1/messages/conversations/{id}/read.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, conv, err := h.participantConversation(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	n, err := h.store.MarkRead(r.Context(), conv.ID, actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, map[string]int64{"marked_read": n})
}

// ListBlocks handles GET /v1/messages/blocks.
func (h *MessageHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	blocks, err := h.store.ListBlocks(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, blocks)
}

// Block handles POST /v1/messages/blocks. Blocking twice succeeds.
func (h *MessageHandler) Block(w http.ResponseWriter, r *http.Request) {
	actor, req, err := h.decodeBlock(w, r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.store.Block(r.Context(), actor.ID, req.UserID, h.clock.Now()); err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "user blocked", "blocker_id", actor.ID, "blocked_id", req.UserID)
	core.NoContent(w)
}

// Unblock handles DELETE /v1/messages/blocks.
func (h *MessageHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	actor, req, err := h.decodeBlock(w, r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.store.Unblock(r.Context(), actor.ID, req.UserID); err != nil {
		core.Error(w, r, err)
		return
	}
	core.NoContent(w)
}

// Report handles POST /v1/messages/reports.
func (h *MessageHandler) Report(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req ReportRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.ReportedUserID == actor.ID {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationSelfAction, "You cannot report yourself", nil))
		return
	}

	report := &types.Report{
		ID:             "rpt_" + uuid.New().String(),
		ReporterID:     actor.ID,
		ReportedUserID: req.ReportedUserID,
		ConversationID: req.ConversationID,
		Reason:         req.Reason,
		Details:        strings.TrimSpace(req.Details),
		CreatedAt:      h.clock.Now(),
	}
	if err := h.store.CreateReport(r.Context(), report); err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.WarnContext(r.Context(), "user reported",
		"report_id", report.ID,
		"reported_user_id", report.ReportedUserID,
		"reason", report.Reason,
	)
	core.Data(w, r, http.StatusCreated, CreatedResponse{ID: report.ID})
}

// UnreadCount handles GET /v1/messages/unread-count.
func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	n, err := h.store.UnreadCount(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, map[string]int{"count": n})
}

// deliver stores a message and emails recipients who asked for a
// notification per message.
func (h *MessageHandler) deliver(
	ctx context.Context,
	sender types.Actor,
	conv *types.Conversation,
	recipient *types.User,
	content string,
	now time.Time,
) (*types.Message, error) {
	msg := &types.Message{
		ID:             "msg_" + uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        content,
		CreatedAt:      now,
	}
	if err := h.store.AddMessage(ctx, msg); err != nil {
		return nil, err
	}

	if recipient.MessageEmailPref == types.EmailPrefEach {
		senderName := sender.Email
		if u, err := h.users.GetByID(ctx, sender.ID); err == nil && u.FullName != "" {
			senderName = u.FullName
		}
		notifyQuietly(ctx, h.logger, h.notifier, types.EmailNewMessage, recipient.Email, map[string]any{
			"recipientName":   recipient.FullName,
			"senderName":      senderName,
			"messagePreview":  messagePreview(content),
			"conversationUrl": h.baseURL + "/messages/" + conv.ID,
		})
	}
	return msg, nil
}

func (h *MessageHandler) participantConversation(r *http.Request) (types.Actor, *types.Conversation, error) {
	actor, err := requireActor(r)
	if err != nil {
		return actor, nil, err
	}
	conv, err := h.store.GetConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return actor, nil, err
	}
	if !conv.HasParticipant(actor.ID) {
		return actor, nil, types.NewAppError(types.ErrCodePermissionMember, "You are not part of this conversation", nil)
	}
	return actor, conv, nil
}

func (h *MessageHandler) ensureNotBlocked(ctx context.Context, a, b string) error {
	aBlockedB, bBlockedA, err := h.store.BlockState(ctx, a, b)
	if err != nil {
		return err
	}
	if aBlockedB || bBlockedA {
		return types.NewAppError(types.ErrCodePermissionBlocked, "You cannot message this user", nil)
	}
	return nil
}

func (h *MessageHandler) decodeBlock(w http.ResponseWriter, r *http.Request) (types.Actor, BlockRequest, error) {
	var req BlockRequest
	actor, err := requireActor(r)
	if err != nil {
		return actor, req, err
	}
	if err := core.DecodeJSON(w, r, &req); err != nil {
		return actor, req, err
	}
	if err := h.validator.Struct(req); err != nil {
		return actor, req, err
	}
	if req.UserID == actor.ID {
		return actor, req, types.NewAppError(types.ErrCodeValidationSelfAction, "You cannot block yourself", nil)
	}
	return actor, req, nil
}

// normalizeMessage trims a message body and enforces its length bounds.
func normalizeMessage(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", types.NewAppError(types.ErrCodeValidationMissingField, "message is required", nil)
	}
	if utf8.RuneCountInString(content) > types.MaxMessageLength {
		return "", types.NewAppErrorWithDetails(types.ErrCodeValidationMessageLength,
			"message is too long", nil, map[string]any{"max": types.MaxMessageLength})
	}
	return content, nil
}

// messagePreview shortens content for notification emails.
func messagePreview(content string) string {
	if utf8.RuneCountInString(content) <= types.MessagePreviewLength {
		return content
	}
	return string([]rune(content)[:types.MessagePreviewLength]) + "..."
}
