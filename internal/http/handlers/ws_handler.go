// Websocket HTTP handler.
//
// This file exposes the live-notification endpoint:
//   - GET /ws/{id}   (upgrade and hold the connection for user {id})
//
// A connection binds user {id} to a push channel for the lifetime of the
// socket. Reconnecting replaces any existing channel for the same identity.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-messaging-backend/internal/services"
	"github.com/tbourn/go-messaging-backend/internal/ws"
)

// upgrader performs the HTTP -> websocket switch. Origin checking is left to
// the CORS layer; the socket itself carries no state-changing operations.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Connect upgrades the request and registers the connection as the live
// channel for the user named in the path. The call blocks until the peer
// disconnects.
func (h *Handlers) Connect(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a UUID")
		return
	}
	if _, err := h.userSvc.Get(c.Request.Context(), id); err != nil {
		if err == services.ErrUserNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	// Browsers cannot set headers on a websocket handshake, so a token is
	// optional here. When one is supplied it must name the same identity.
	if raw := bearerFromRequest(c); raw != "" {
		claims, err := h.authSvc.VerifyToken(c.Request.Context(), raw)
		if err != nil || claims.Subject != id {
			fail(c, http.StatusForbidden, ErrCodeForbidden, "token does not match connection identity")
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Debug().Err(err).Str("user_id", id).Msg("websocket upgrade failed")
		return
	}

	log.Info().Str("user_id", id).Msg("websocket connected")
	ws.Serve(h.registry, id, conn, h.WSWriteTimeout, h.WSMaxMessageBytes)
	log.Info().Str("user_id", id).Msg("websocket disconnected")
}

// bearerFromRequest pulls a bearer token from the Authorization header or,
// since websocket clients in browsers cannot set headers, a ?token= query
// parameter. Empty when neither is present.
func bearerFromRequest(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
