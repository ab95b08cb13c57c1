package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/repo"
)

func newConvSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Conversation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestListForUser_JoinsPeersMostRecentFirst(t *testing.T) {
	db := newConvSvcDB(t)
	alice := seedSvcUser(t, db, "Alice", "alice")
	bob := seedSvcUser(t, db, "Bob", "bob")
	carol := seedSvcUser(t, db, "Carol", "carol")
	svc := &ConversationService{DB: db}
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	if err := repo.UpsertConversationOnSend(ctx, db, bob.ID, alice.ID, "from bob", base.Add(-time.Hour)); err != nil {
		t.Fatalf("seed bob conv: %v", err)
	}
	if err := repo.UpsertConversationOnSend(ctx, db, carol.ID, alice.ID, "from carol", base); err != nil {
		t.Fatalf("seed carol conv: %v", err)
	}

	got, err := svc.ListForUser(ctx, alice.ID, 0)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Peer.Username != "carol" || got[1].Peer.Username != "bob" {
		t.Fatalf("order = %q, %q; want carol then bob", got[0].Peer.Username, got[1].Peer.Username)
	}
	if got[0].LastMessage != "from carol" || got[0].UnreadCount != 1 {
		t.Fatalf("summary = %+v", got[0])
	}
}

func TestListForUser_EmptyAndScoped(t *testing.T) {
	db := newConvSvcDB(t)
	alice := seedSvcUser(t, db, "Alice", "alice")
	bob := seedSvcUser(t, db, "Bob", "bob")
	carol := seedSvcUser(t, db, "Carol", "carol")
	svc := &ConversationService{DB: db}
	ctx := context.Background()

	// bob and carol talk; alice is uninvolved
	if err := repo.UpsertConversationOnSend(ctx, db, bob.ID, carol.ID, "hi", time.Now().UTC()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := svc.ListForUser(ctx, alice.ID, 0)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestListForUser_SkipsVanishedPeer(t *testing.T) {
	db := newConvSvcDB(t)
	alice := seedSvcUser(t, db, "Alice", "alice")
	bob := seedSvcUser(t, db, "Bob", "bob")
	svc := &ConversationService{DB: db}
	ctx := context.Background()

	if err := repo.UpsertConversationOnSend(ctx, db, bob.ID, alice.ID, "hi", time.Now().UTC()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.UpsertConversationOnSend(ctx, db, "deleted-user-id", alice.ID, "ghost", time.Now().UTC()); err != nil {
		t.Fatalf("seed ghost: %v", err)
	}

	got, err := svc.ListForUser(ctx, alice.ID, 0)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(got) != 1 || got[0].Peer.Username != "bob" {
		t.Fatalf("results = %+v, want only bob", got)
	}
}
