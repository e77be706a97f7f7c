package unit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/nilai-go-api/internal/config"
	"github.com/noah-isme/nilai-go-api/internal/handler"
)

type response struct {
	Success bool                   `json:"success"`
	Data    handler.HealthResponse `json:"data"`
}

func healthApp(probes map[string]handler.Probe) *fiber.App {
	cfg := config.Config{
		AppName: "NILAI API",
		AppEnv:  "test",
	}
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(cfg, probes))
	return app
}

func TestHealthCheck(t *testing.T) {
	app := healthApp(nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload response
	err = json.NewDecoder(resp.Body).Decode(&payload)
	assert.NoError(t, err)
	assert.True(t, payload.Success)
	assert.Equal(t, "ok", payload.Data.Status)
	assert.Equal(t, "NILAI API", payload.Data.Service)
	assert.Equal(t, "test", payload.Data.Environment)
	assert.Empty(t, payload.Data.Checks)
	assert.WithinDuration(t, time.Now().UTC(), payload.Data.Timestamp, 2*time.Second)
}

func TestHealthCheckProbes(t *testing.T) {
	app := healthApp(map[string]handler.Probe{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}

	// A degraded node still answers 200 so it stays in rotation.
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload response
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "degraded", payload.Data.Status)
	assert.Equal(t, "ok", payload.Data.Checks["database"])
	assert.Equal(t, "connection refused", payload.Data.Checks["redis"])
}
