package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"learnlink-be/internal/bootstrap"
	"learnlink-be/internal/config"
	"learnlink-be/internal/dto"
	"learnlink-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

const testOrigin = "http://localhost:5173"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	return newTestAppWithOrigins(t, testOrigin)
}

func newTestAppWithOrigins(t *testing.T, origins string) *fiber.App {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/connections":
			_, _ = w.Write([]byte(`{"data":[{"_id":"e1","user":{"_id":"u2","name":"Ana"},"type":"connect"}]}`))
		case "/connections/suggestions":
			_, _ = w.Write([]byte(`[{"_id":"u3","name":"Budi"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	t.Cleanup(upstream.Close)

	dir := t.TempDir()
	cfg := &config.Config{
		App: config.AppConfig{
			Port:               "0",
			Environment:        "test",
			LogFilePath:        filepath.Join(dir, "app.log"),
			LiveLogFilePath:    filepath.Join(dir, "live.log"),
			CorsAllowedOrigins: origins,
		},
		Auth:     config.AuthConfig{JwtSecret: testSecret},
		Upstream: config.UpstreamConfig{BaseURL: upstream.URL, Timeout: 2 * time.Second},
		Cache: config.CacheConfig{
			Backend:         "memory",
			DefaultTTL:      time.Minute,
			ConnectionsTTL:  time.Minute,
			RequestsTTL:     time.Minute,
			SuggestionsTTL:  time.Minute,
			CoursesTTL:      time.Minute,
			AnnouncementTTL: time.Minute,
			LiveSessionsTTL: time.Minute,
			ProgressTTL:     time.Minute,
		},
		Feed:    config.FeedConfig{MaxCourses: 5, AnnouncementLimit: 5, FeedSize: 5, SuggestionLimit: 20},
		Session: config.SessionConfig{IdleTTL: time.Minute},
	}

	container := bootstrap.NewContainer(cfg)
	t.Cleanup(container.Close)

	return New(cfg, container).GetApp()
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestNetworkRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/network/v1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestNetworkRefreshReturnsLoadedSections(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/network/v1/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u1"))
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body serverutils.BaseResponse[dto.NetworkSnapshot]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.False(t, body.Data.InitialLoading)
	require.Len(t, body.Data.Connections.Data, 1)
	assert.Equal(t, "u2", body.Data.Connections.Data[0].Counterpart.ID)
	require.Len(t, body.Data.Suggestions.Data, 1)
	assert.Equal(t, "Budi", body.Data.Suggestions.Data[0].Name)
	assert.Empty(t, body.Data.PendingRequests.Data)
	assert.False(t, body.Data.SentRequests.IsLoading)
}

func TestRefreshRejectsUnknownSection(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/network/v1/refresh", strings.NewReader(`{"sections":["nope"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u1"))
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSendRequestValidatesBody(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/network/v1/requests", strings.NewReader(`{"kind":"friend"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u1"))
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCorsExplicitOriginAllowsCredentials(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", testOrigin)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, testOrigin, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
}

func TestCorsWildcardOriginDropsCredentials(t *testing.T) {
	for _, origins := range []string{"*", " * ", ""} {
		t.Run("origins="+origins, func(t *testing.T) {
			var app *fiber.App
			require.NotPanics(t, func() { app = newTestAppWithOrigins(t, origins) })

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set("Origin", "http://elsewhere.test")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
			assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
		})
	}
}
