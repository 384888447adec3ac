package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("Post", 1), http.StatusNotFound},
		{"conflict", NewConflictError("already liked"), http.StatusConflict},
		{"forbidden", NewForbiddenError("not yours"), http.StatusForbidden},
		{"unauthorized", NewUnauthorizedError("nope"), http.StatusUnauthorized},
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"internal", NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{"wrapped app error", fmt.Errorf("like: %w", NewConflictError("dup")), http.StatusConflict},
		{"plain error", errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestIsCode(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("outer: %w", NewForbiddenError("x"))
	assert.True(t, IsCode(err, CodeForbidden))
	assert.False(t, IsCode(err, CodeUnauthorized))
	assert.False(t, IsCode(errors.New("x"), CodeForbidden))
}

func TestRespondWithError_HidesInternalDetails(t *testing.T) {
	t.Parallel()
	app := fiber.New()
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithAppError(c, NewInternalError(errors.New("dial tcp: secret-host")))
	})
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return RespondWithAppError(c, NewConflictError("Post already liked"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/internal", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "secret-host")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/conflict", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var out ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, CodeConflict, out.Code)
	assert.Equal(t, "Post already liked", out.Error)
}
