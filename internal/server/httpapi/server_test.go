package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sealdm/sealdm/internal/common"
	"github.com/sealdm/sealdm/internal/dbx"
	"github.com/sealdm/sealdm/internal/logging"
	"github.com/sealdm/sealdm/internal/server/auth"
	"github.com/sealdm/sealdm/internal/server/cache"
	"github.com/sealdm/sealdm/internal/server/history"
	"github.com/sealdm/sealdm/internal/server/models"
	"github.com/sealdm/sealdm/internal/server/relay"
	"github.com/sealdm/sealdm/internal/server/repositories/messages"
	"github.com/sealdm/sealdm/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type stubMessagesRepo struct{}

func (stubMessagesRepo) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	return msg, nil
}
func (stubMessagesRepo) FindBetween(context.Context, string, string) ([]*models.Message, error) {
	return nil, nil
}
func (stubMessagesRepo) MarkRead(context.Context, string, string) (int64, error) { return 0, nil }
func (stubMessagesRepo) CountUnread(context.Context, string, string) (int64, error) {
	return 0, nil
}
func (stubMessagesRepo) FindLast(context.Context, string, string) (*models.Message, error) {
	return nil, common.ErrorNotFound
}
func (stubMessagesRepo) FindPartnerIDs(context.Context, string) ([]string, error) {
	return nil, nil
}

type stubUsersRepo struct{}

func (stubUsersRepo) GetByIDs(context.Context, []string) ([]*models.User, error) { return nil, nil }

type stubRepoManager struct{}

func (stubRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (stubRepoManager) Users(dbx.DBTX) users.Repository              { return stubUsersRepo{} }
func (stubRepoManager) Messages(dbx.DBTX) messages.Repository        { return stubMessagesRepo{} }

func newTestApp(t *testing.T) (*fiber.App, *cache.MemoryStore) {
	t.Helper()

	store := cache.NewMemoryStore()
	repos := stubRepoManager{}
	registry := relay.NewRegistry()
	hist := history.NewService(nil, repos, store, nopLogger{}, time.Minute, time.Second)
	rl := relay.New(nil, repos, registry, cache.NewSync(store, time.Minute, 100),
		nopLogger{}, testSecret, time.Second)

	srv := New(rl, hist, registry, nopLogger{}, testSecret)
	app := fiber.New()
	srv.Router(app)
	return app, store
}

func sessionToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func TestPing(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestQueryEndpoints_RequireBearerToken(t *testing.T) {
	app, _ := newTestApp(t)

	for _, path := range []string{"/api/chats", "/api/history/u2", "/api/online"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestQueryEndpoints_RejectExpiredToken(t *testing.T) {
	app, _ := newTestApp(t)

	token, err := auth.GenerateToken("u1", []byte(testSecret), -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/chats", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHistory_ReturnsViewerProjection(t *testing.T) {
	app, store := newTestApp(t)

	items := []models.HistoryItem{{
		ID:        "m1",
		SenderID:  "u2",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Content:   models.Envelope{IV: "iv", EncryptedKey: "k", Ciphertext: "ct", Tag: "t"},
	}}
	b, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(),
		cache.HistoryKey("u1", "u2", "u1"), string(b), time.Minute))

	req := httptest.NewRequest("GET", "/api/history/u2", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+sessionToken(t, "u1"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var got []models.HistoryItem
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, items, got)
}

func TestHistory_EmptyConversationGivesEmptyArray(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest("GET", "/api/history/u2", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+sessionToken(t, "u1"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(body))
}

func TestChatList_ServedFromCache(t *testing.T) {
	app, store := newTestApp(t)

	previews := []models.ChatPreview{{
		PartnerID:            "u2",
		Username:             "bob",
		UnreadCount:          2,
		LastMessageTimestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}}
	b, err := json.Marshal(previews)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(),
		cache.ChatListKey("u1"), string(b), time.Minute))

	req := httptest.NewRequest("GET", "/api/chats", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+sessionToken(t, "u1"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var got []models.ChatPreview
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, previews, got)
}

func TestOnline_EmptyWhenNobodyConnected(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest("GET", "/api/online", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+sessionToken(t, "u1"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(body))
}

func TestWS_PlainGetIsRejected(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
