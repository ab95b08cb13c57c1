// Conversation HTTP handlers.
//
// This file exposes the authenticated inbox endpoint:
//   - GET /conversations   (list with peer profiles, ETag support)
//
// The listing is cheap to poll, so it serves a weak ETag derived from the
// caller's conversation count and most recent activity timestamp; unchanged
// inboxes answer 304 without touching the row data.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messaging-backend/internal/services"
	"github.com/tbourn/go-messaging-backend/internal/utils"
)

// ListConversationsResponse contains the caller's inbox entries.
type ListConversationsResponse struct {
	Conversations []services.ConversationSummary `json:"conversations"`
}

// ListConversations returns the caller's conversations, most recent first.
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	currentUser := userID(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.convSvc.Stats(ctx, currentUser); err == nil {
		var ts int64
		if maxTS != nil {
			// nanoseconds so back-to-back sends in the same second still
			// invalidate the tag
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"conversations:%s:%d:%d"`, currentUser, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	limit := utils.AtoiDefault(c.Query("limit"), 0)
	convs, err := h.convSvc.ListForUser(ctx, currentUser, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{Conversations: convs})
}
