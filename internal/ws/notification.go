package ws

import (
	"time"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

// EventNewMessage is the type discriminator carried by message notifications.
const EventNewMessage = "new_message"

// Notification is the payload pushed over a recipient's live channel when a
// message arrives for them. Timestamp is RFC 3339 in UTC.
type Notification struct {
	Type       string `json:"type"`
	MessageID  string `json:"message_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp"`
}

// NewMessageNotification builds the push payload for a freshly stored message.
func NewMessageNotification(m *domain.Message, senderName string) Notification {
	return Notification{
		Type:       EventNewMessage,
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		SenderName: senderName,
		Content:    m.Content,
		Timestamp:  m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
