// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

// CreateMessage inserts a new immutable message row with a server-assigned
// UTC timestamp and Read=false. The timestamp is never client-supplied, so
// ordering cannot be manipulated by clock-skewed senders.
func CreateMessage(db *gorm.DB, senderID, receiverID, content string) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
		Read:       false,
	}
	return m, db.Create(m).Error
}

// ListMessagesBetween returns the message history between two users in either
// direction, ordered deterministically (CreatedAt ASC, ID ASC) and bounded by
// limit when positive.
func ListMessagesBetween(ctx context.Context, db *gorm.DB, userA, userB string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// MarkMessagesRead flips the read flag on every unread message sent from
// senderID to receiverID. The transition is one-way; already-read rows are
// untouched. It returns the number of rows updated.
func MarkMessagesRead(ctx context.Context, db *gorm.DB, senderID, receiverID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND read = ?", senderID, receiverID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

// CountMessagesBetween uses a raw COUNT so a missing table surfaces as an error.
func CountMessagesBetween(db *gorm.DB, userA, userB string) (int64, error) {
	var total int64
	err := db.Raw(`SELECT COUNT(*) FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)`,
		userA, userB, userB, userA).Scan(&total).Error
	return total, err
}

// GetMessage fetches a message by ID.
func GetMessage(db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
