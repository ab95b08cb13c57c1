// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the direct-message lifecycle. Sending validates the content, persists
// the message and updates the conversation summary atomically, then pushes a
// live notification to the recipient on a best-effort basis: delivery failure
// never fails the send. Reading history is a mutating operation by design; it
// marks the inbound slice read and clears the conversation's unread counter.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include sender/recipient identifiers.

package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/repo"
	"github.com/tbourn/go-messaging-backend/internal/ws"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Notifier pushes payloads to connected recipients. Implementations must
// swallow delivery failures; *ws.Registry satisfies this.
type Notifier interface {
	SendTo(userID string, payload any)
}

// MessageService coordinates message persistence, conversation upkeep, and
// live notification fan-out.
type MessageService struct {
	DB       *gorm.DB
	Notifier Notifier

	// Optional guards
	MaxContentRunes int
	HistoryLimit    int
}

const defaultHistoryLimit = 100

// Send stores a message from senderID to receiverID and returns it together
// with the notification payload pushed to the recipient, so callers without a
// live channel still see the canonical event shape. The message row and the
// conversation summary update commit in one transaction; the live push happens
// after commit and its outcome is not reported.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, content string) (*domain.Message, ws.Notification, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("sender.id", senderID),
			attribute.String("receiver.id", receiverID),
		),
	)
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ws.Notification{}, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ws.Notification{}, ErrTooLong
	}
	if senderID == receiverID {
		return nil, ws.Notification{}, ErrSelfMessage
	}

	sender, err := repo.GetUser(ctx, s.DB, senderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ws.Notification{}, ErrUserNotFound
		}
		return nil, ws.Notification{}, err
	}
	if _, err := repo.GetUser(ctx, s.DB, receiverID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ws.Notification{}, ErrUserNotFound
		}
		return nil, ws.Notification{}, err
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(tx, senderID, receiverID, content)
		if err != nil {
			return err
		}
		msg = m
		return repo.UpsertConversationOnSend(ctx, tx, senderID, receiverID, m.Content, m.CreatedAt)
	})
	if err != nil {
		return nil, ws.Notification{}, err
	}

	note := ws.NewMessageNotification(msg, sender.Name)
	if s.Notifier != nil {
		s.Notifier.SendTo(receiverID, note)
	}
	return msg, note, nil
}

// FindIdempotentSend resolves a previously recorded Idempotency-Key binding
// for (senderID, peerID) and returns the stored message with its notification
// payload rebuilt. A missing or expired binding returns nil without error.
func (s *MessageService) FindIdempotentSend(ctx context.Context, senderID, peerID, key string) (*domain.Message, ws.Notification, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, senderID, peerID, key, time.Now().UTC())
	if err != nil || rec == nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ws.Notification{}, nil
		}
		return nil, ws.Notification{}, err
	}
	msg, err := repo.GetMessage(s.DB, rec.MessageID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ws.Notification{}, nil
		}
		return nil, ws.Notification{}, err
	}
	senderName := ""
	if sender, err := repo.GetUser(ctx, s.DB, senderID); err == nil {
		senderName = sender.Name
	}
	return msg, ws.NewMessageNotification(msg, senderName), nil
}

// RecordIdempotentSend binds an Idempotency-Key to a stored message so later
// retries replay it. ttl bounds how long the binding can be replayed.
func (s *MessageService) RecordIdempotentSend(ctx context.Context, senderID, peerID, key, messageID string, status int, ttl time.Duration) error {
	_, err := repo.CreateIdempotency(ctx, s.DB, senderID, peerID, key, messageID, status, ttl)
	return err
}

// History returns the exchange between selfID and peerID in chronological
// order. limit caps the number of rows; values <= 0 or above the configured
// ceiling fall back to the ceiling. As a side effect it marks messages from
// peerID as read and clears the pair's unread counter; failures of those side
// effects are logged, not surfaced, so a read model hiccup never hides the
// messages.
func (s *MessageService) History(ctx context.Context, selfID, peerID string, limit int) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("user.id", selfID),
			attribute.String("peer.id", peerID),
		),
	)
	defer span.End()

	if _, err := repo.GetUser(ctx, s.DB, peerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	ceiling := s.HistoryLimit
	if ceiling <= 0 {
		ceiling = defaultHistoryLimit
	}
	if limit <= 0 || limit > ceiling {
		limit = ceiling
	}
	msgs, err := repo.ListMessagesBetween(ctx, s.DB, selfID, peerID, limit)
	if err != nil {
		return nil, err
	}

	if _, err := repo.MarkMessagesRead(ctx, s.DB, peerID, selfID); err != nil {
		log.Warn().Err(err).Str("user_id", selfID).Str("peer_id", peerID).Msg("mark messages read")
	}
	if err := repo.ResetUnread(ctx, s.DB, selfID, peerID); err != nil {
		log.Warn().Err(err).Str("user_id", selfID).Str("peer_id", peerID).Msg("reset unread counter")
	}
	return msgs, nil
}
