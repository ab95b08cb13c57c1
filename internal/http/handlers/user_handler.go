// User HTTP handlers.
//
// This file exposes the authenticated user-directory endpoints:
//   - GET /users/search/:username   (substring search, caller excluded)
//   - GET /users/:id                (public profile lookup)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/services"
)

// SearchUsersResponse contains the profiles matching a search query.
type SearchUsersResponse struct {
	Users []domain.UserProfile `json:"users"`
}

// SearchUsers finds users whose username contains the given fragment,
// case-insensitively. The caller never appears in their own results.
func (h *Handlers) SearchUsers(c *gin.Context) {
	query := c.Param("username")

	users, err := h.userSvc.Search(c.Request.Context(), userID(c), query)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, SearchUsersResponse{Users: users})
}

// GetUser returns the public profile for a user id.
func (h *Handlers) GetUser(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a UUID")
		return
	}

	p, err := h.userSvc.Get(c.Request.Context(), id)
	if err != nil {
		switch err {
		case services.ErrUserNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, p)
}
