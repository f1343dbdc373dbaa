// Package delivery turns one inbound message event into a durable record
// plus zero or more live pushes.
package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maulanarifai114/research-chat-backend/internal/metrics"
	"github.com/maulanarifai114/research-chat-backend/internal/models"
	"github.com/maulanarifai114/research-chat-backend/internal/registry"
)

// IdentityLookup resolves a user ID to its profile. Returns
// models.ErrNotFound when no such user exists.
type IdentityLookup interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// MembershipResolver loads a conversation with its durable member set,
// fresh on every call. Returns models.ErrNotFound when absent.
type MembershipResolver interface {
	FindConversationWithMembers(ctx context.Context, id string) (*models.Conversation, error)
}

// MessageStore durably appends a message and returns it with a generated
// ID and timestamps. It must fail loudly rather than silently no-op.
type MessageStore interface {
	InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error)
}

// Publisher emits a message-sent event after successful persistence.
// Publish failures are logged and never fail the send.
type Publisher interface {
	PublishMessageSent(ctx context.Context, payload any) error
}

// Inbound is the event shape the transport hands to the engine.
type Inbound struct {
	Sender         string `json:"sender"`
	Message        string `json:"message,omitempty"`
	Attachment     string `json:"attachment,omitempty"`
	ConversationID string `json:"idConversation"`
}

// SenderFragment is the denormalized sender profile attached to every
// outbound envelope at delivery time.
type SenderFragment struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// Envelope is the persisted message plus the sender fragment, pushed to
// every reachable recipient and echoed to the sender.
type Envelope struct {
	ID             string         `json:"id"`
	Message        string         `json:"message,omitempty"`
	Attachment     string         `json:"attachment,omitempty"`
	ConversationID string         `json:"idConversation"`
	DateCreated    time.Time      `json:"dateCreated"`
	DateUpdate     time.Time      `json:"dateUpdate"`
	Member         SenderFragment `json:"member"`
}

// Event is one frame pushed over a live connection.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ErrorPayload is the body of an "error" frame, sent to the originating
// connection only.
type ErrorPayload struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

type Engine struct {
	users         IdentityLookup
	conversations MembershipResolver
	store         MessageStore
	registry      *registry.Registry
	events        Publisher // optional
	log           *zap.SugaredLogger
}

func NewEngine(users IdentityLookup, conversations MembershipResolver, store MessageStore, reg *registry.Registry, events Publisher, log *zap.SugaredLogger) *Engine {
	return &Engine{
		users:         users,
		conversations: conversations,
		store:         store,
		registry:      reg,
		events:        events,
		log:           log,
	}
}

// HandleMessage validates, persists and fans out one inbound event. The
// returned error is a *Error for every rejection the sender caused; the
// transport reports it to the originating connection only. A nil error
// means the message is durably stored, whether or not anyone was
// reachable for the live push.
func (e *Engine) HandleMessage(ctx context.Context, in Inbound) (*Envelope, error) {
	if strings.TrimSpace(in.Message) == "" && in.Attachment == "" {
		return nil, reject(errEmptyContent())
	}

	sender, err := e.users.FindUserByID(ctx, in.Sender)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, reject(errUnknownSender())
		}
		return nil, err
	}

	conv, err := e.conversations.FindConversationWithMembers(ctx, in.ConversationID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, reject(errUnknownConversation())
		}
		return nil, err
	}

	if !conv.HasMember(sender.ID) {
		return nil, reject(errNotAMember())
	}

	stored, err := e.store.InsertMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Text:           in.Message,
		Attachment:     in.Attachment,
	})
	if err != nil {
		// Fail closed: nothing is fanned out for a message that was not stored.
		return nil, reject(errNotPersisted(err))
	}
	metrics.MessagesPersisted.Inc()

	env := &Envelope{
		ID:             stored.ID,
		Message:        stored.Text,
		Attachment:     stored.Attachment,
		ConversationID: stored.ConversationID,
		DateCreated:    stored.CreatedAt,
		DateUpdate:     stored.UpdatedAt,
		Member: SenderFragment{
			ID:    sender.ID,
			Name:  sender.Name,
			Email: sender.Email,
			Role:  sender.Role,
		},
	}

	if e.events != nil {
		if err := e.events.PublishMessageSent(ctx, env); err != nil {
			e.log.Warnw("publish message-sent", "message_id", stored.ID, "err", err)
		}
	}

	e.fanout(conv, sender.ID, env)
	return env, nil
}

// fanout pushes env to every recipient currently reachable, then echoes it
// to the sender's own connection. Offline recipients are skipped silently.
func (e *Engine) fanout(conv *models.Conversation, senderID string, env *Envelope) {
	for _, memberID := range recipients(conv, senderID) {
		if conn, ok := e.registry.Lookup(memberID); ok {
			conn.Send(Event{Event: "message", Data: env})
			metrics.MessagesPushed.Inc()
		}
	}
	// The sender is excluded from the recipient set above and re-included
	// here exactly once, so the echo doubles as the success signal.
	if conn, ok := e.registry.Lookup(senderID); ok {
		conn.Send(Event{Event: "message", Data: env})
		metrics.MessagesPushed.Inc()
	}
}

// recipients is every member of conv except the sender. A PRIVATE
// conversation resolves to the single counterpart; branching on the
// declared type keeps a two-member GROUP routed as a group.
func recipients(conv *models.Conversation, senderID string) []string {
	if conv.Type == models.ConversationPrivate {
		for _, id := range conv.Members {
			if id != senderID {
				return []string{id}
			}
		}
		return nil
	}
	out := make([]string, 0, len(conv.Members))
	for _, id := range conv.Members {
		if id != senderID {
			out = append(out, id)
		}
	}
	return out
}

func reject(err *Error) error {
	metrics.SendRejections.WithLabelValues(string(err.Code)).Inc()
	return err
}
