package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ConversationSummary is one row of a user's inbox: the other participant's
// profile joined onto the pair's aggregate record.
type ConversationSummary struct {
	Peer            domain.UserProfile `json:"peer"`
	LastMessage     string             `json:"last_message"`
	LastMessageTime time.Time          `json:"last_message_time"`
	UnreadCount     int                `json:"unread_count"`
}

// ConversationService lists a user's conversations with peer profiles
// resolved.
type ConversationService struct {
	DB *gorm.DB

	// PageLimit caps the number of conversations returned; 0 means the default.
	PageLimit int
}

const defaultConversationLimit = 50

// ListForUser returns the caller's conversations, most recent first. limit
// caps the number of rows; values <= 0 or above the configured ceiling fall
// back to the ceiling. A peer whose account has vanished is skipped rather
// than failing the whole list.
func (s *ConversationService) ListForUser(ctx context.Context, userID string, limit int) ([]ConversationSummary, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListForUser",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	ceiling := s.PageLimit
	if ceiling <= 0 {
		ceiling = defaultConversationLimit
	}
	if limit <= 0 || limit > ceiling {
		limit = ceiling
	}

	convs, err := repo.ListConversationsForUser(ctx, s.DB, userID, limit)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []ConversationSummary{}, nil
	}

	peerIDs := make([]string, 0, len(convs))
	for i := range convs {
		peerIDs = append(peerIDs, otherParticipant(&convs[i], userID))
	}

	var peers []domain.User
	if err := s.DB.WithContext(ctx).Where("id IN ?", peerIDs).Find(&peers).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]domain.UserProfile, len(peers))
	for i := range peers {
		byID[peers[i].ID] = peers[i].Profile()
	}

	out := make([]ConversationSummary, 0, len(convs))
	for i := range convs {
		peer, ok := byID[otherParticipant(&convs[i], userID)]
		if !ok {
			continue
		}
		out = append(out, ConversationSummary{
			Peer:            peer,
			LastMessage:     convs[i].LastMessage,
			LastMessageTime: convs[i].LastMessageAt,
			UnreadCount:     convs[i].UnreadCount,
		})
	}
	return out, nil
}

// Stats returns the caller's conversation count and most recent activity
// timestamp. The HTTP layer derives a freshness token from them so unchanged
// inboxes can answer without touching the row data.
func (s *ConversationService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.ConversationsStats(ctx, s.DB, userID)
}

// otherParticipant picks whichever side of the canonical pair is not userID.
func otherParticipant(c *domain.Conversation, userID string) string {
	if c.ParticipantLo == userID {
		return c.ParticipantHi
	}
	return c.ParticipantLo
}
