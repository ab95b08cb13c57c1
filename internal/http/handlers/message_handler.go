// Message HTTP handlers.
//
// This file exposes REST endpoints for direct messages:
//   - POST /messages/{id}   (send a message to user {id})
//   - GET  /messages/{id}   (full history with user {id}; marks inbound read)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - delegate to application services (MessageService)
//   - implement idempotency semantics for sends
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, peer, key), the handler returns that recorded
// message and sets `Idempotency-Replayed: true`.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/services"
	"github.com/tbourn/go-messaging-backend/internal/utils"
	"github.com/tbourn/go-messaging-backend/internal/ws"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for sending a message.
type SendMessageRequest struct {
	// Content is the message body. It must be non-empty.
	Content string `json:"content" binding:"required,min=1"`
}

// SendMessageResponse is the JSON envelope for a newly stored message. It
// carries both the stored row and the notification payload pushed to the
// recipient, so a client without a live channel still sees the event shape.
type SendMessageResponse struct {
	Message      *domain.Message `json:"message"`
	Notification ws.Notification `json:"notification"`
}

// HistoryResponse contains the full exchange with one peer, oldest first.
type HistoryResponse struct {
	Messages []domain.Message `json:"messages"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// fallbackMaxContentRunes bounds message bodies when no limit is configured.
const fallbackMaxContentRunes = 4000

//
// Handlers
//

// PostMessage stores a message addressed to the user in the path and pushes a
// live notification to them when they are connected. Supports idempotent
// retries via the Idempotency-Key header.
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	peerID := c.Param("id")

	if _, err := uuid.Parse(peerID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipient id must be a UUID")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	maxRunes := h.MaxContentRunes
	if maxRunes <= 0 {
		maxRunes = fallbackMaxContentRunes
	}
	if utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	currentUser := userID(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if idemKey != "" {
		if prev, note, err := h.msgSvc.FindIdempotentSend(ctx, currentUser, peerID, idemKey); err == nil && prev != nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, SendMessageResponse{Message: prev, Notification: note})
			return
		}
	}

	// Normal processing (service has a second guard for length).
	m, note, err := h.msgSvc.Send(ctx, currentUser, peerID, content)
	if err != nil {
		switch err {
		case services.ErrUserNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "recipient not found")
		case services.ErrSelfMessage:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot message yourself")
		case services.ErrTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		case services.ErrEmptyContent:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		ttl := h.IdempotencyTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		_ = h.msgSvc.RecordIdempotentSend(ctx, currentUser, peerID, idemKey, m.ID, http.StatusOK, ttl)
	}

	ok(c, http.StatusOK, SendMessageResponse{Message: m, Notification: note})
}

// GetMessages returns the exchange with the user in the path, oldest first.
// An optional ?limit= query caps the row count below the configured ceiling.
// Viewing marks their messages read and clears the unread counter for this
// conversation.
func (h *Handlers) GetMessages(c *gin.Context) {
	peerID := c.Param("id")

	if _, err := uuid.Parse(peerID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a UUID")
		return
	}

	limit := utils.AtoiDefault(c.Query("limit"), 0)
	msgs, err := h.msgSvc.History(c.Request.Context(), userID(c), peerID, limit)
	if err != nil {
		switch err {
		case services.ErrUserNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, HistoryResponse{Messages: msgs})
}
