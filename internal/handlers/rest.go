// Package handlers is the request/response surface around the realtime
// core: conversation and member management plus message history.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/maulanarifai114/research-chat-backend/internal/auth"
	"github.com/maulanarifai114/research-chat-backend/internal/models"
	"github.com/maulanarifai114/research-chat-backend/internal/presence"
)

type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, limit int64) ([]*models.User, error)
}

type ConversationStore interface {
	FindConversationWithMembers(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, limit int64) ([]*models.Conversation, error)
	UpsertConversation(ctx context.Context, c *models.Conversation) (*models.Conversation, error)
	AddMember(ctx context.Context, conversationID, userID string) error
	RemoveMember(ctx context.Context, conversationID, userID string) error
}

type MessageStore interface {
	ListByConversation(ctx context.Context, conversationID string, limit int64) ([]*models.Message, error)
}

type PresenceReader interface {
	Get(ctx context.Context, userID string) (*presence.Status, error)
}

type Handlers struct {
	users         UserStore
	conversations ConversationStore
	messages      MessageStore
	presence      PresenceReader // optional
	validate      *validator.Validate
	log           *zap.SugaredLogger
}

func New(users UserStore, conversations ConversationStore, messages MessageStore, pres PresenceReader, log *zap.SugaredLogger) *Handlers {
	return &Handlers{
		users:         users,
		conversations: conversations,
		messages:      messages,
		presence:      pres,
		validate:      validator.New(),
		log:           log,
	}
}

// respond wraps every REST reply in the {statusCode, message, data}
// envelope clients expect.
func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"statusCode": status,
		"message":    message,
		"data":       data,
	})
}

func claimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals("claims").(*auth.Claims)
	return claims
}

func (h *Handlers) ListUsers(c *fiber.Ctx) error {
	users, err := h.users.ListUsers(c.Context(), 100)
	if err != nil {
		h.log.Errorw("list users", "err", err)
		return respond(c, http.StatusInternalServerError, "Failed to list users", nil)
	}
	return respond(c, http.StatusOK, "Success Get List User", users)
}

func (h *Handlers) ListConversations(c *fiber.Ctx) error {
	convs, err := h.conversations.ListConversations(c.Context(), 100)
	if err != nil {
		h.log.Errorw("list conversations", "err", err)
		return respond(c, http.StatusInternalServerError, "Failed to list conversations", nil)
	}
	return respond(c, http.StatusOK, "Success Get List Conversation", convs)
}

type conversationSaveRequest struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required,oneof=PRIVATE GROUP BROADCAST"`
}

func (h *Handlers) SaveConversation(c *fiber.Ctx) error {
	var req conversationSaveRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, http.StatusBadRequest, "Invalid body", nil)
	}
	if err := h.validate.Struct(&req); err != nil {
		return respond(c, http.StatusBadRequest, err.Error(), nil)
	}
	conv, err := h.conversations.UpsertConversation(c.Context(), &models.Conversation{
		ID:   req.ID,
		Name: req.Name,
		Type: models.ConversationType(req.Type),
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return respond(c, http.StatusNotFound, "Conversation not found", nil)
		}
		h.log.Errorw("save conversation", "err", err)
		return respond(c, http.StatusInternalServerError, "Failed to save conversation", nil)
	}
	verb := "Create"
	if req.ID != "" {
		verb = "Update"
	}
	return respond(c, http.StatusOK, "Success "+verb+" Conversation", fiber.Map{"id": conv.ID})
}

type memberSaveRequest struct {
	IDUser         string `json:"idUser" validate:"required"`
	IDConversation string `json:"idConversation" validate:"required"`
}

func (h *Handlers) AddMember(c *fiber.Ctx) error {
	var req memberSaveRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, http.StatusBadRequest, "Invalid body", nil)
	}
	if err := h.validate.Struct(&req); err != nil {
		return respond(c, http.StatusBadRequest, err.Error(), nil)
	}
	if _, err := h.users.FindUserByID(c.Context(), req.IDUser); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return respond(c, http.StatusBadRequest, "User not found", nil)
		}
		return respond(c, http.StatusInternalServerError, "Failed to add member", nil)
	}
	if err := h.conversations.AddMember(c.Context(), req.IDConversation, req.IDUser); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return respond(c, http.StatusNotFound, "Conversation not found", nil)
		}
		h.log.Errorw("add member", "err", err)
		return respond(c, http.StatusInternalServerError, "Failed to add member", nil)
	}
	return respond(c, http.StatusOK, "Success Add Member", nil)
}

func (h *Handlers) RemoveMember(c *fiber.Ctx) error {
	var req memberSaveRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, http.StatusBadRequest, "Invalid body", nil)
	}
	if err := h.validate.Struct(&req); err != nil {
		return respond(c, http.StatusBadRequest, err.Error(), nil)
	}
	if err := h.conversations.RemoveMember(c.Context(), req.IDConversation, req.IDUser); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return respond(c, http.StatusNotFound, "Conversation not found", nil)
		}
		h.log.Errorw("remove member", "err", err)
		return respond(c, http.StatusInternalServerError, "Failed to remove member", nil)
	}
	return respond(c, http.StatusOK, "Success Remove Member", nil)
}

// ListMessages returns a conversation's history, callers must be members.
func (h *Handlers) ListMessages(c *fiber.Ctx) error {
	conversationID := c.Params("idConversation")
	claims := claimsFrom(c)
	if claims == nil {
		return respond(c, http.StatusUnauthorized, "Unauthorized", nil)
	}
	conv, err := h.conversations.FindConversationWithMembers(c.Context(), conversationID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return respond(c, http.StatusNotFound, "Conversation not found", nil)
		}
		h.log.Errorw("find conversation", "err", err)
		return respond(c, http.StatusInternalServerError, "Failed to get conversation", nil)
	}
	if !conv.HasMember(claims.UserID) {
		return respond(c, http.StatusForbidden, "Access denied: You are not a member of this conversation", nil)
	}
	msgs, err := h.messages.ListByConversation(c.Context(), conversationID, 100)
	if err != nil {
		h.log.Errorw("list messages", "err", err)
		return respond(c, http.StatusInternalServerError, "Failed to get messages", nil)
	}
	return respond(c, http.StatusOK, "Success Get List Message by Id Conversation", fiber.Map{
		"conversation": conv,
		"message":      msgs,
	})
}

func (h *Handlers) GetPresence(c *fiber.Ctx) error {
	if h.presence == nil {
		return respond(c, http.StatusNotFound, "Presence not configured", nil)
	}
	st, err := h.presence.Get(c.Context(), c.Params("id"))
	if err != nil {
		h.log.Errorw("get presence", "err", err)
		return respond(c, http.StatusInternalServerError, "Failed to get presence", nil)
	}
	return respond(c, http.StatusOK, "Success Get Presence", st)
}
