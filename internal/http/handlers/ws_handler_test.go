package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-messaging-backend/internal/ws"
)

func wsTestServer(f *fixture) *httptest.Server {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/:id", f.h.Connect)
	return httptest.NewServer(r)
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnect_RejectsBadIDAndUnknownUser(t *testing.T) {
	f := newFixture(t)
	srv := wsTestServer(f)
	defer srv.Close()

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/not-a-uuid"), nil); err == nil {
		t.Fatal("dial with bad id succeeded")
	} else if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id handshake status = %v", resp)
	}

	ghost := "/ws/123e4567-e89b-12d3-a456-426614174000"
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ghost), nil); err == nil {
		t.Fatal("dial for unknown user succeeded")
	} else if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown user handshake status = %v", resp)
	}
}

func TestConnect_TokenMustMatchPathIdentity(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice")
	bob := f.register(t, "Bob", "bob")
	srv := wsTestServer(f)
	defer srv.Close()

	bobTok, _, err := f.auth.Login(context.Background(), "bob", "s3cret-pass")
	if err != nil {
		t.Fatalf("login bob: %v", err)
	}

	// Bob's token on Alice's connection path is rejected.
	hdr := http.Header{"Authorization": []string{"Bearer " + bobTok}}
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/"+alice.ID), hdr); err == nil {
		t.Fatal("dial with mismatched token succeeded")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("mismatched token handshake status = %v", resp)
	}

	// The same token on Bob's own path connects (via ?token= as a browser would).
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/"+bob.ID+"?token="+bobTok), nil)
	if err != nil {
		t.Fatalf("dial with matching token: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return f.registry.IsConnected(bob.ID) }, "registration")
}

func TestConnect_DeliversNotifications(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice")
	srv := wsTestServer(f)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/"+alice.ID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return f.registry.IsConnected(alice.ID) }, "registration")

	f.registry.SendTo(alice.ID, ws.Notification{Type: ws.EventNewMessage, MessageID: "m1", Content: "hi"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var got ws.Notification
	if err := json.Unmarshal(frame, &got); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if got.Type != ws.EventNewMessage || got.MessageID != "m1" {
		t.Fatalf("notification = %+v", got)
	}

	conn.Close()
	waitFor(t, func() bool { return !f.registry.IsConnected(alice.ID) }, "deregistration")
}

func TestConnect_SendPushesToConnectedRecipient(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", "alice")
	bob := f.register(t, "Bob", "bob")
	srv := wsTestServer(f)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/"+bob.ID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return f.registry.IsConnected(bob.ID) }, "registration")

	api := messageTestRouter(f, alice.ID)
	w := doJSON(t, api, http.MethodPost, "/messages/"+bob.ID, map[string]string{"content": "ping"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("send status = %d", w.Code)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var got ws.Notification
	if err := json.Unmarshal(frame, &got); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if got.Content != "ping" || got.SenderID != alice.ID || got.SenderName != "Alice" {
		t.Fatalf("notification = %+v", got)
	}
}
