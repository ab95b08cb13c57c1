// Account HTTP handlers.
//
// This file exposes the unauthenticated endpoints:
//   - POST /register   (create an account)
//   - POST /login      (exchange credentials for a bearer token)
//
// Handlers are transport-thin: they validate input, call the AuthService,
// and translate results into HTTP responses.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/services"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	// Name is the display name shown to other users.
	Name string `json:"name" binding:"required,min=1,max=255"`
	// Username is the unique handle used for login and search.
	Username string `json:"username" binding:"required,min=3,max=64"`
	// Email is the unique contact address.
	Email string `json:"email" binding:"required,email,max=255"`
	// Password is the plaintext credential; stored only as a bcrypt hash.
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// RegisterResponse returns the public profile of the new account.
type RegisterResponse struct {
	User domain.UserProfile `json:"user"`
}

// LoginRequest is the JSON payload for logging in.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the session token and the account it names.
type LoginResponse struct {
	Token string             `json:"token"`
	User  domain.UserProfile `json:"user"`
}

//
// Handlers
//

// Register creates a new account and returns its public profile.
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, username, email and password required")
		return
	}

	u, err := h.authSvc.Register(c.Request.Context(), req.Name, req.Username, req.Email, req.Password)
	if err != nil {
		switch err {
		case services.ErrUsernameTaken:
			fail(c, http.StatusConflict, ErrCodeConflict, "username already taken")
		case services.ErrEmailTaken:
			fail(c, http.StatusConflict, ErrCodeConflict, "email already registered")
		case services.ErrInvalidCredentials:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid registration payload")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeRegisterFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, RegisterResponse{User: u.Profile()})
}

// Login exchanges credentials for a signed bearer token.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password required")
		return
	}

	token, u, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch err {
		case services.ErrInvalidCredentials:
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid username or password")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeLoginFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, LoginResponse{Token: token, User: u.Profile()})
}
