package api

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fomovoice/voice-club/internal/config"
	"github.com/fomovoice/voice-club/internal/database"
	"github.com/fomovoice/voice-club/internal/handraise"
	"github.com/fomovoice/voice-club/internal/server"
	"github.com/fomovoice/voice-club/internal/stats"
	"github.com/fomovoice/voice-club/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, db database.ClubRepository) *ClubApp {
	secret := base64.StdEncoding.EncodeToString([]byte("test-signing-key"))
	cfg, err := config.NewConfig("localhost:8000", "dsn", secret, []string{"http://localhost:3000"}, 0)
	require.NoError(t, err, "failed to build test config")

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(4)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	rooms := server.NewRoomManager(logger, su)
	queue := handraise.NewService(db, nil, logger, 10)

	return NewClubApp(http.NewServeMux(), logger, rooms, queue, db, cfg)
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("missing cookie", func(t *testing.T) {
		app := newTestApp(t, &database.MockClubRepository{})

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expected handler not to be called without a token")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		app := newTestApp(t, &database.MockClubRepository{})

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expected handler not to be called with a bad token")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "not-a-jwt"})
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token passes user id through context", func(t *testing.T) {
		app := newTestApp(t, &database.MockClubRepository{})

		token, err := app.createJwtForSession("u1", defaultJwtExpiration)
		require.NoError(t, err)

		called := false
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			called = true
			userId, ok := UserId(r.Context())
			assert.True(t, ok, "expected user id in context")
			assert.Equal(t, "u1", userId)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: token})
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.True(t, called, "expected wrapped handler to run")
		assert.Equal(t, "no-store, no-cache, must-revalidate, private", rec.Header().Get("Cache-Control"))
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		app := newTestApp(t, &database.MockClubRepository{})

		token, err := app.createJwtForSession("u1", -time.Minute)
		require.NoError(t, err)

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expected handler not to be called with an expired token")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: token})
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestErrorHandler(t *testing.T) {
	app := newTestApp(t, &database.MockClubRepository{})

	handler := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
}

func TestJwtRoundTrip(t *testing.T) {
	app := newTestApp(t, &database.MockClubRepository{})

	token, err := app.createJwtForSession("u1", defaultJwtExpiration)
	require.NoError(t, err)

	userId, err := app.extractUserIdFromToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "u1", userId)

	// a token signed with another key is rejected
	other := newTestApp(t, &database.MockClubRepository{})
	other.signingKey = []byte("a-different-key")
	badToken, err := other.createJwtForSession("u1", defaultJwtExpiration)
	require.NoError(t, err)

	_, err = app.extractUserIdFromToken(badToken)
	assert.Error(t, err)
}
