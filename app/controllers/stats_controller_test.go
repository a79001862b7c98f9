package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/app/models"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/app/repository"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/middleware"
)

func newStatsApp(repo repository.ProfileRepository, snapshot func() (map[string]int64, error)) *fiber.App {
	sc := &StatsController{
		profiles: func() repository.ProfileRepository { return repo },
		snapshot: snapshot,
	}
	app := fiber.New()
	app.Get("/api/v1/stats", middleware.InternalKeyAuthMiddleware(), sc.HandleGetStats)
	return app
}

func getStats(t *testing.T, app *fiber.App, key string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	if key != "" {
		req.Header.Set("X-Internal-Key", key)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHandleGetStats(t *testing.T) {
	t.Setenv("INTERNAL_API_KEY", "ops-key")

	repo := newFakeProfiles(
		&models.UserProfile{UserID: "a"},
		&models.UserProfile{UserID: "b"},
	)
	app := newStatsApp(repo, func() (map[string]int64, error) {
		return map[string]int64{"succeeded": 12, "timeout": 1}, nil
	})

	resp, body := getStats(t, app, "ops-key")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["profiles"])

	outcomes, ok := body["transcriptions"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(12), outcomes["succeeded"])
	assert.Equal(t, float64(1), outcomes["timeout"])
}

func TestHandleGetStatsToleratesMissingCounters(t *testing.T) {
	t.Setenv("INTERNAL_API_KEY", "ops-key")

	app := newStatsApp(newFakeProfiles(), func() (map[string]int64, error) {
		return nil, assert.AnError
	})

	resp, body := getStats(t, app, "ops-key")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{}, body["transcriptions"])
}

func TestInternalKeyAuthMiddleware(t *testing.T) {
	t.Setenv("INTERNAL_API_KEY", "ops-key")
	app := newStatsApp(newFakeProfiles(), func() (map[string]int64, error) {
		return map[string]int64{}, nil
	})

	resp, body := getStats(t, app, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	resp, body = getStats(t, app, "wrong-key")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestInternalKeyAuthMiddlewareUnconfigured(t *testing.T) {
	t.Setenv("INTERNAL_API_KEY", "")
	app := newStatsApp(newFakeProfiles(), func() (map[string]int64, error) {
		return map[string]int64{}, nil
	})

	resp, body := getStats(t, app, "any")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "CONFIG_ERROR", body["code"])
}
