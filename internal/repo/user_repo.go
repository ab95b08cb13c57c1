// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateUser inserts a new User row. The user ID is a randomly generated
// UUID (string) and CreatedAt is set to UTC. Username and email are expected
// to be normalized (folded/lowercased) by the caller.
func CreateUser(ctx context.Context, db *gorm.DB, name, username, email, passwordHash string) (*domain.User, error) {
	u := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by ID, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername fetches a user by their (normalized) username, or
// ErrNotFound if missing.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UsernameOrEmailExists reports which of the two identifiers is already taken.
// A registration must probe both so the caller can return a precise conflict.
func UsernameOrEmailExists(ctx context.Context, db *gorm.DB, username, email string) (usernameTaken, emailTaken bool, err error) {
	var rows []domain.User
	err = db.WithContext(ctx).
		Select("username", "email").
		Where("username = ? OR email = ?", username, email).
		Find(&rows).Error
	if err != nil {
		return false, false, err
	}
	for _, r := range rows {
		if r.Username == username {
			usernameTaken = true
		}
		if r.Email == email {
			emailTaken = true
		}
	}
	return usernameTaken, emailTaken, nil
}

// SearchUsers returns up to limit users whose username contains the query as
// a case-insensitive substring, excluding the requesting user. Results are
// ordered by username for deterministic output. An empty result is a valid
// outcome, not an error.
func SearchUsers(ctx context.Context, db *gorm.DB, selfID, query string, limit int) ([]domain.User, error) {
	var out []domain.User
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	q := db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '\\'", pattern).
		Where("id <> ?", selfID).
		Order("username ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// escapeLike neutralizes LIKE metacharacters in user-supplied search input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
