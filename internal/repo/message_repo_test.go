package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

func newMsgDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestCreateMessage_ServerTimestampAndUnread(t *testing.T) {
	db := newMsgDB(t)
	before := time.Now().UTC().Add(-time.Second)

	m, err := CreateMessage(db, "a", "b", "hello")
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("expected generated ID")
	}
	if m.Read {
		t.Fatalf("new message must start unread")
	}
	if m.CreatedAt.Before(before) || m.CreatedAt.After(time.Now().UTC().Add(time.Second)) {
		t.Fatalf("CreatedAt not server-assigned: %v", m.CreatedAt)
	}
}

func TestListMessagesBetween_BothDirections_Ordered_Limited(t *testing.T) {
	db := newMsgDB(t)

	// Interleave directions with controlled timestamps.
	rows := []domain.Message{
		{ID: "m1", SenderID: "a", ReceiverID: "b", Content: "1", CreatedAt: time.Unix(100, 0).UTC()},
		{ID: "m2", SenderID: "b", ReceiverID: "a", Content: "2", CreatedAt: time.Unix(200, 0).UTC()},
		{ID: "m3", SenderID: "a", ReceiverID: "b", Content: "3", CreatedAt: time.Unix(300, 0).UTC()},
		// Unrelated pair must not leak in.
		{ID: "mx", SenderID: "a", ReceiverID: "c", Content: "x", CreatedAt: time.Unix(150, 0).UTC()},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", rows[i].ID, err)
		}
	}

	got, err := ListMessagesBetween(context.Background(), db, "b", "a", 0)
	if err != nil {
		t.Fatalf("ListMessagesBetween: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if got[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}

	limited, err := ListMessagesBetween(context.Background(), db, "a", "b", 2)
	if err != nil {
		t.Fatalf("limited list: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "m1" || limited[1].ID != "m2" {
		t.Fatalf("unexpected limited page: %+v", limited)
	}
}

func TestMarkMessagesRead_OnlyInboundUnread(t *testing.T) {
	db := newMsgDB(t)

	rows := []domain.Message{
		{ID: "in1", SenderID: "b", ReceiverID: "a", Content: "1", CreatedAt: time.Unix(1, 0).UTC(), Read: false},
		{ID: "in2", SenderID: "b", ReceiverID: "a", Content: "2", CreatedAt: time.Unix(2, 0).UTC(), Read: false},
		{ID: "seen", SenderID: "b", ReceiverID: "a", Content: "3", CreatedAt: time.Unix(3, 0).UTC(), Read: true},
		{ID: "out", SenderID: "a", ReceiverID: "b", Content: "4", CreatedAt: time.Unix(4, 0).UTC(), Read: false},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", rows[i].ID, err)
		}
	}

	n, err := MarkMessagesRead(context.Background(), db, "b", "a")
	if err != nil {
		t.Fatalf("MarkMessagesRead: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows updated, got %d", n)
	}

	// Own outbound message stays unread for its receiver.
	var out domain.Message
	if err := db.First(&out, "id = ?", "out").Error; err != nil {
		t.Fatalf("readback out: %v", err)
	}
	if out.Read {
		t.Fatalf("outbound message must not be marked read by the receiver's fetch")
	}

	// Second call is a no-op.
	n2, err := MarkMessagesRead(context.Background(), db, "b", "a")
	if err != nil {
		t.Fatalf("second MarkMessagesRead: %v", err)
	}
	if n2 != 0 {
		t.Fatalf("expected idempotent no-op, got %d rows", n2)
	}
}

func TestCountMessagesBetween_AndGetMessage(t *testing.T) {
	db := newMsgDB(t)

	m, err := CreateMessage(db, "a", "b", "hi")
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if _, err := CreateMessage(db, "b", "a", "yo"); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	total, err := CountMessagesBetween(db, "b", "a")
	if err != nil {
		t.Fatalf("CountMessagesBetween: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2, got %d", total)
	}

	got, err := GetMessage(db, m.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Content != "hi" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestCountMessagesBetween_ErrorWithoutTable(t *testing.T) {
	dsn := fmt.Sprintf("file:%s_raw?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := CountMessagesBetween(db, "a", "b"); err == nil {
		t.Fatalf("expected error when messages table is missing")
	}
}
