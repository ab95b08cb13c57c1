// Handler wiring for the public API.
//
// This file defines the service contracts consumed by the HTTP layer and the
// Handlers aggregate that binds them. Handlers are transport-thin: they
// validate input, call application services, and translate results into HTTP
// responses.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/services"
	"github.com/tbourn/go-messaging-backend/internal/ws"
)

//
// Service contracts (context-aware)
//

// AuthService defines account and session operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AuthService interface {
	// Register creates a new account.
	Register(ctx context.Context, name, username, email, password string) (*domain.User, error)
	// Login verifies credentials and returns a bearer token plus the account.
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
	// VerifyToken validates a bearer token and returns its claims.
	VerifyToken(ctx context.Context, token string) (*services.Claims, error)
}

// UserService defines profile lookup and search operations.
type UserService interface {
	// Get returns the public profile for id.
	Get(ctx context.Context, id string) (*domain.UserProfile, error)
	// Search returns profiles matching query, excluding selfID.
	Search(ctx context.Context, selfID, query string) ([]domain.UserProfile, error)
}

// ConversationService defines inbox listing operations.
type ConversationService interface {
	// ListForUser returns up to limit of the caller's conversations, most
	// recent first. limit <= 0 means the configured default.
	ListForUser(ctx context.Context, userID string, limit int) ([]services.ConversationSummary, error)
	// Stats returns the caller's conversation count and most recent activity
	// timestamp, for ETag derivation.
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
}

// MessageService defines messaging operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageService interface {
	// Send stores a message, notifies the recipient best-effort, and returns
	// the stored row plus the notification payload it pushed.
	Send(ctx context.Context, senderID, receiverID, content string) (*domain.Message, ws.Notification, error)
	// History returns up to limit messages exchanged with peerID and marks
	// inbound messages read. limit <= 0 means the configured default.
	History(ctx context.Context, selfID, peerID string, limit int) ([]domain.Message, error)
	// FindIdempotentSend resolves an Idempotency-Key binding to the message it
	// stored; a missing or expired binding returns nil without error.
	FindIdempotentSend(ctx context.Context, senderID, peerID, key string) (*domain.Message, ws.Notification, error)
	// RecordIdempotentSend binds an Idempotency-Key to a stored message so
	// later retries replay it.
	RecordIdempotentSend(ctx context.Context, senderID, peerID, key, messageID string, status int, ttl time.Duration) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for accounts, users, conversations,
// messages, and the live websocket. It depends on abstract service interfaces
// to keep transport concerns separate from business logic.
type Handlers struct {
	authSvc  AuthService
	userSvc  UserService
	convSvc  ConversationService
	msgSvc   MessageService
	registry *ws.Registry

	// Websocket tuning, applied on upgrade.
	WSWriteTimeout    time.Duration
	WSMaxMessageBytes int64

	// IdempotencyTTL bounds how long a stored Idempotency-Key can be replayed.
	// Zero falls back to 24h.
	IdempotencyTTL time.Duration

	// MaxContentRunes caps message bodies at the edge. Zero falls back to a
	// conservative default.
	MaxContentRunes int
}

// New constructs a Handlers instance bound to the given services and live
// connection registry.
func New(authSvc AuthService, userSvc UserService, convSvc ConversationService, msgSvc MessageService, registry *ws.Registry) *Handlers {
	return &Handlers{
		authSvc:  authSvc,
		userSvc:  userSvc,
		convSvc:  convSvc,
		msgSvc:   msgSvc,
		registry: registry,
	}
}

// userID extracts the authenticated user id from the Gin context as set by
// the auth middleware. Empty when the request carries no identity.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
