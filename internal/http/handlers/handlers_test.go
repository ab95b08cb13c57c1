package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-messaging-backend/internal/domain"
	"github.com/tbourn/go-messaging-backend/internal/services"
	"github.com/tbourn/go-messaging-backend/internal/ws"
)

// ---------- test DB + fixture wiring ----------

func newAPIDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:api_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Message{}, &domain.Conversation{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fixture bundles real services over one in-memory DB plus the live registry.
type fixture struct {
	db       *gorm.DB
	h        *Handlers
	registry *ws.Registry
	auth     *services.AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newAPIDB(t)
	registry := ws.NewRegistry()
	t.Cleanup(registry.CloseAll)

	auth := &services.AuthService{DB: db, JWTSecret: []byte("test-secret"), TokenTTL: time.Hour}
	h := New(
		auth,
		&services.UserService{DB: db},
		&services.ConversationService{DB: db},
		&services.MessageService{DB: db, Notifier: registry, MaxContentRunes: 4000},
		registry,
	)
	h.WSWriteTimeout = time.Second
	return &fixture{db: db, h: h, registry: registry, auth: auth}
}

// register creates an account through the service layer and returns it.
func (f *fixture) register(t *testing.T, name, username string) *domain.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), name, username, username+"@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u
}

// asUser simulates the auth middleware for the given identity.
func asUser(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", id)
		c.Next()
	}
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}
