package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/broker"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/handler"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/repository"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamEnv struct {
	server *httptest.Server
	audit  *service.AuditService
	stream *handler.LogStreamHandler
	admin  *models.User
}

// newStreamEnv serves the full router over a real listener with the audit feed
// running through miniredis.
func newStreamEnv(t *testing.T) *streamEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDatabase(t)
	redisMock := testutil.SetupTestRedis(t)
	client, err := broker.NewRedisClient(context.Background(), redisMock.URL)
	require.NoError(t, err)
	logBroker := broker.NewRedisLogBroker(client)
	t.Cleanup(func() { _ = logBroker.Close() })

	userRepo := repository.NewUserRepository(db)
	audit := service.NewAuditService(repository.NewLogRepository(db), nil, logBroker)
	sessions := service.NewSessionService(userRepo, audit, "test-secret", time.Hour)
	stream := handler.NewLogStreamHandler(audit, nil)

	router := handler.NewRouter(handler.RouterConfig{Sessions: sessions}, handler.Handlers{
		Auth:      handler.NewAuthHandler(sessions, nil, false),
		LogStream: stream,
		Health:    handler.NewHealthHandler(db, nil),
	})
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		stream.CloseAll()
		server.Close()
	})

	env := &streamEnv{server: server, audit: audit, stream: stream, admin: testutil.CreateAdmin(t, db)}
	testutil.CreateUser(t, db, "artist", "artist@example.com", models.RoleArtist, models.PermManageUsers)
	return env
}

func (e *streamEnv) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": testutil.DefaultPassword})
	resp, err := http.Post(e.server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, c := range resp.Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func (e *streamEnv) dial(cookie *http.Cookie) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/logs/stream"
	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", cookie.String())
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readEvent(t *testing.T, conn *websocket.Conn) handler.WSEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev handler.WSEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestLogStream_DeliversRecordedEntries(t *testing.T) {
	// Arrange
	env := newStreamEnv(t)
	conn, resp, err := env.dial(env.login(t, "admin@example.com"))
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// Act
	env.audit.Record(context.Background(), "Загрузка модели «Bolt»", &env.admin.ID, nil)

	// Assert
	ev := readEvent(t, conn)
	assert.Equal(t, "log", ev.Type)
	assert.Equal(t, "Загрузка модели «Bolt»", ev.Action)
	assert.Equal(t, env.admin.ID.String(), ev.UserID)
	assert.NotZero(t, ev.ID)
	assert.Empty(t, ev.ModelID)
}

func TestLogStream_AdminOnly(t *testing.T) {
	env := newStreamEnv(t)

	t.Run("anonymous", func(t *testing.T) {
		_, resp, err := env.dial(nil)

		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("non-admin with manage_users", func(t *testing.T) {
		_, resp, err := env.dial(env.login(t, "artist@example.com"))

		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestLogStream_ExpiresAfterLifetime(t *testing.T) {
	env := newStreamEnv(t)
	env.stream.SetLifetime(200 * time.Millisecond)

	conn, _, err := env.dial(env.login(t, "admin@example.com"))
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn)
	assert.Equal(t, "session_expired", ev.Type)
	assert.NotEmpty(t, ev.Error)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
