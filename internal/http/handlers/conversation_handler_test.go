package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func convTestRouter(f *fixture, actingUser string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(asUser(actingUser))
	r.GET("/conversations", f.h.ListConversations)
	r.POST("/messages/:id", f.h.PostMessage)
	r.GET("/messages/:id", f.h.GetMessages)
	return r
}

func TestListConversations_WithPeersAndUnread(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice")
	bob := f.register(t, "Bob", "bob")
	asBobRouter := convTestRouter(f, bob.ID)
	asAliceRouter := convTestRouter(f, alice.ID)

	if w := doJSON(t, asAliceRouter, http.MethodPost, "/messages/"+bob.ID, map[string]string{"content": "hey"}, nil); w.Code != http.StatusOK {
		t.Fatalf("send status = %d", w.Code)
	}

	w := doJSON(t, asBobRouter, http.MethodGet, "/conversations", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeBody[ListConversationsResponse](t, w)
	if len(resp.Conversations) != 1 {
		t.Fatalf("len = %d, want 1", len(resp.Conversations))
	}
	conv := resp.Conversations[0]
	if conv.Peer.Username != "alice" || conv.LastMessage != "hey" || conv.UnreadCount != 1 {
		t.Fatalf("conversation = %+v", conv)
	}

	// reading the history clears the counter
	if w := doJSON(t, asBobRouter, http.MethodGet, "/messages/"+alice.ID, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	w = doJSON(t, asBobRouter, http.MethodGet, "/conversations", nil, nil)
	resp = decodeBody[ListConversationsResponse](t, w)
	if resp.Conversations[0].UnreadCount != 0 {
		t.Fatalf("unread after read = %d, want 0", resp.Conversations[0].UnreadCount)
	}
}

func TestListConversations_ETagNotModified(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice")
	bob := f.register(t, "Bob", "bob")
	asAliceRouter := convTestRouter(f, alice.ID)

	if w := doJSON(t, asAliceRouter, http.MethodPost, "/messages/"+bob.ID, map[string]string{"content": "hey"}, nil); w.Code != http.StatusOK {
		t.Fatalf("send status = %d", w.Code)
	}

	w := doJSON(t, asAliceRouter, http.MethodGet, "/conversations", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag header")
	}

	w = doJSON(t, asAliceRouter, http.MethodGet, "/conversations", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional status = %d, want 304", w.Code)
	}

	// a new message invalidates the tag
	if w := doJSON(t, asAliceRouter, http.MethodPost, "/messages/"+bob.ID, map[string]string{"content": "again"}, nil); w.Code != http.StatusOK {
		t.Fatalf("send status = %d", w.Code)
	}
	w = doJSON(t, asAliceRouter, http.MethodGet, "/conversations", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("stale conditional status = %d, want 200", w.Code)
	}
}

func TestListConversations_Empty(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice")
	r := convTestRouter(f, alice.ID)

	w := doJSON(t, r, http.MethodGet, "/conversations", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody[ListConversationsResponse](t, w)
	if len(resp.Conversations) != 0 {
		t.Fatalf("len = %d, want 0", len(resp.Conversations))
	}
}
