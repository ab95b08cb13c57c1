// Package services – AuthService
//
// This file implements AuthService, the application-level component that owns
// account registration, credential verification, and bearer-token issuance.
// Usernames are case-folded so "Alice" and "alice" name the same account;
// passwords are stored as bcrypt hashes and never returned to callers.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// carry the acting user identifier where applicable.

package services

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Claims is the JWT payload issued on login. Subject carries the user ID;
// Username is included so downstream consumers can label without a lookup.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService manages accounts and session tokens.
type AuthService struct {
	DB        *gorm.DB
	JWTSecret []byte
	TokenTTL  time.Duration

	// Optional guards
	MinPasswordRunes int
}

const defaultTokenTTL = 24 * time.Hour

var usernameFolder = cases.Fold()

// NormalizeUsername lowercases and trims a username so lookups and uniqueness
// are case-insensitive.
func NormalizeUsername(username string) string {
	return usernameFolder.String(strings.TrimSpace(username))
}

// Register creates a new account. Username and email uniqueness are checked
// up front for precise errors; the database unique indexes still backstop the
// race where two registrations interleave.
func (s *AuthService) Register(ctx context.Context, name, username, email, password string) (*domain.User, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	name = strings.TrimSpace(name)
	username = NormalizeUsername(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if min := s.MinPasswordRunes; min > 0 && len([]rune(password)) < min {
		return nil, ErrInvalidCredentials
	}

	usernameTaken, emailTaken, err := repo.UsernameOrEmailExists(ctx, s.DB, username, email)
	if err != nil {
		return nil, err
	}
	if usernameTaken {
		return nil, ErrUsernameTaken
	}
	if emailTaken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u, err := repo.CreateUser(ctx, s.DB, name, username, email, string(hash))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return u, nil
}

// Login verifies the credentials and returns a signed bearer token plus the
// account. Unknown usernames and wrong passwords yield the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Login")
	defer span.End()

	u, err := repo.GetUserByUsername(ctx, s.DB, NormalizeUsername(username))
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return token, u, nil
}

// VerifyToken validates a bearer token and returns its claims.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*Claims, error) {
	tr := otel.Tracer("services/AuthService")
	_, span := tr.Start(ctx, "VerifyToken",
		trace.WithAttributes(attribute.Bool("token.present", tokenString != "")),
	)
	defer span.End()

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.JWTSecret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) issueToken(u *domain.User) (string, error) {
	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := time.Now().UTC()
	claims := Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.JWTSecret)
}
