package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UserService exposes profile lookup and username search.
type UserService struct {
	DB *gorm.DB

	// SearchLimit caps the number of search results; 0 means the default.
	SearchLimit int
}

const defaultSearchLimit = 10

// Get returns the public profile for id.
func (s *UserService) Get(ctx context.Context, id string) (*domain.UserProfile, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("user.id", id)),
	)
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

// Search returns profiles whose username contains query, case-insensitively,
// excluding the caller. An empty query yields an empty result rather than the
// whole directory.
func (s *UserService) Search(ctx context.Context, selfID, query string) ([]domain.UserProfile, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(attribute.String("user.id", selfID)),
	)
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.UserProfile{}, nil
	}

	limit := s.SearchLimit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	users, err := repo.SearchUsers(ctx, s.DB, selfID, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserProfile, 0, len(users))
	for i := range users {
		out = append(out, users[i].Profile())
	}
	return out, nil
}
