// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model, the aggregate ledger that keeps one row per
// unordered pair of participants.
//
// Pair handling: every function normalizes the (a,b) pair to canonical order
// before touching the table, so a row created for (A,B) is always found when
// queried as (B,A). The composite unique index on the canonical pair makes
// the at-most-one-row invariant structural rather than advisory.
//
// Functions:
//
//   - UpsertConversationOnSend(ctx, db, sender, receiver, content, ts) -> error
//     Overwrites the last-message preview and atomically increments the
//     unread counter; creates the row with unread=1 when the pair has no
//     history. Safe against concurrent first sends.
//
//   - ResetUnread(ctx, db, a, b) -> error
//     Blanket-resets the unread counter to zero. A missing row is a no-op;
//     the reset never fabricates a conversation.
//
//   - GetConversationByPair(ctx, db, a, b) -> *domain.Conversation, error
//     Canonical-pair lookup, ErrNotFound when absent.
//
//   - ListConversationsForUser(ctx, db, userID, limit) -> []domain.Conversation, error
//     All rows where userID is either participant, most recent first.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

// UpsertConversationOnSend applies a send to the ledger: the last-message
// fields are overwritten and the unread counter is incremented by one as an
// atomic read-modify-write inside the store (no lost updates under
// concurrent sends). When no row exists for the pair yet, one is created
// with the counter initialized to 1; if two first sends race, the loser of
// the unique-index conflict retries as an update.
func UpsertConversationOnSend(ctx context.Context, db *gorm.DB, senderID, receiverID, content string, ts time.Time) error {
	lo, hi := domain.NormalizePair(senderID, receiverID)

	update := func() (int64, error) {
		res := db.WithContext(ctx).
			Model(&domain.Conversation{}).
			Where("participant_lo = ? AND participant_hi = ?", lo, hi).
			Updates(map[string]any{
				"last_message":    content,
				"last_message_at": ts,
				"unread_count":    gorm.Expr("unread_count + ?", 1),
			})
		return res.RowsAffected, res.Error
	}

	n, err := update()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	c := &domain.Conversation{
		ID:            uuid.NewString(),
		ParticipantLo: lo,
		ParticipantHi: hi,
		LastMessage:   content,
		LastMessageAt: ts,
		UnreadCount:   1,
	}
	err = db.WithContext(ctx).Create(c).Error
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		// Lost the first-send race; the row now exists, apply as update.
		_, err = update()
	}
	return err
}

// ResetUnread sets the unread counter to zero for the pair {a, b}. When the
// pair has never exchanged a message the call is a no-op: it must not
// fabricate a conversation row.
func ResetUnread(ctx context.Context, db *gorm.DB, a, b string) error {
	lo, hi := domain.NormalizePair(a, b)
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("participant_lo = ? AND participant_hi = ?", lo, hi).
		Update("unread_count", 0).Error
}

// GetConversationByPair fetches the single conversation row for the pair
// {a, b}, or ErrNotFound when the pair has no history.
func GetConversationByPair(ctx context.Context, db *gorm.DB, a, b string) (*domain.Conversation, error) {
	lo, hi := domain.NormalizePair(a, b)
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("participant_lo = ? AND participant_hi = ?", lo, hi).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversationsForUser returns every conversation userID participates
// in, ordered by last activity descending and bounded by limit when positive.
func ListConversationsForUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	q := db.WithContext(ctx).
		Where("participant_lo = ? OR participant_hi = ?", userID, userID).
		Order("last_message_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
