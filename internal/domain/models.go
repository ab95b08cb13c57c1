// Package domain defines the persistence models for users, messages, and
// conversations. These types are mapped with GORM and form the core data
// layer of the messaging application.
package domain

import "time"

// User represents a registered account. Usernames are stored case-folded and
// emails lowercased so the uniqueness constraints are case-insensitive.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: display name shown to other users.
//   - Username: unique handle used for login and search.
//   - Email: unique contact address.
//   - PasswordHash: bcrypt hash of the credential; never serialized.
//   - CreatedAt: registration timestamp (UTC).
type User struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name"       gorm:"type:varchar(255);not null"`
	Username     string    `json:"username"   gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Profile returns the public projection of a user, safe to expose to other
// authenticated users.
func (u User) Profile() UserProfile {
	return UserProfile{ID: u.ID, Name: u.Name, Username: u.Username}
}

// UserProfile is the public view of a user returned by search, lookup, and
// conversation listings.
type UserProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Message represents a single direct message between two users. Rows are
// immutable once created, except for the Read flag which transitions
// false -> true exactly once, when the receiver views the conversation.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SenderID / ReceiverID: the two endpoints; both indexed so pair history
//     queries are cheap in either direction.
//   - Content: full text content of the message.
//   - CreatedAt: server-assigned timestamp (UTC); clients cannot supply it.
//   - Read: whether the receiver has viewed the message.
type Message struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID   string    `json:"sender_id"   gorm:"type:char(36);not null;index:idx_msgs_sender"`
	ReceiverID string    `json:"receiver_id" gorm:"type:char(36);not null;index:idx_msgs_receiver"`
	Content    string    `json:"content"     gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"timestamp"   gorm:"index:idx_msgs_created"`
	Read       bool      `json:"read"        gorm:"not null;default:false"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Conversation is the aggregate record for one unordered pair of users:
// last message preview, its timestamp, and the unread counter. Exactly one
// row exists per pair; the pair is stored in canonical order (lexically
// smaller ID in ParticipantLo) and guarded by a composite unique index, so
// the pair-uniqueness invariant holds structurally even under concurrent
// first sends.
//
// Lifecycle: created on the first message between a pair, updated on every
// subsequent send (preview overwritten, unread counter incremented) and on
// every read (counter reset to zero). Never deleted in normal operation.
type Conversation struct {
	ID            string    `json:"id"                gorm:"type:char(36);primaryKey"`
	ParticipantLo string    `json:"participant1"      gorm:"type:char(36);not null;uniqueIndex:ux_conv_pair,priority:1;index:idx_conv_lo"`
	ParticipantHi string    `json:"participant2"      gorm:"type:char(36);not null;uniqueIndex:ux_conv_pair,priority:2;index:idx_conv_hi"`
	LastMessage   string    `json:"last_message"      gorm:"type:text;not null"`
	LastMessageAt time.Time `json:"last_message_time" gorm:"index:idx_conv_last_at"`
	UnreadCount   int       `json:"unread_count"      gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// NormalizePair returns the canonical ordering of a participant pair. The
// lexically smaller identifier always comes first, so (a,b) and (b,a) map to
// the same conversation row.
func NormalizePair(a, b string) (lo, hi string) {
	if a <= b {
		return a, b
	}
	return b, a
}
