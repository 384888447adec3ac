package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ripple/internal/config"
	"ripple/internal/models"
	"ripple/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) (*Server, *miniredis.Miniredis) {
	t.Helper()

	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		JWTSecret:            "test-secret",
		JWTTTLHours:          24,
		Port:                 "0",
		Env:                  "test",
		AllowedOrigins:       "*",
		UploadDir:            t.TempDir(),
		ImageMaxUploadSizeMB: 2,
		WSMaxConnections:     100,
		NotifyWorkers:        2,
		NotifyQueueSize:      64,
	}
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	s.userService = s.userService.WithHashCost(bcrypt.MinCost)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, mr
}

type session struct {
	Token string
	ID    uint
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, data
}

func signup(t *testing.T, app *fiber.App, username string) session {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return session{Token: out.Token, ID: out.User.ID}
}

func createPost(t *testing.T, app *fiber.App, owner session, title string) uint {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/api/posts", owner.Token, fiber.Map{
		"title":   title,
		"content": title + " body",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var post struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &post))
	return post.ID
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestHealthChecks(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.App()

	resp, _ := doJSON(t, app, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[map[string]any](t, body)
	assert.Equal(t, "healthy", ready["status"])
	assert.Equal(t, map[string]any{"database": "healthy", "redis": "healthy"}, ready["checks"])
}

func TestReadinessCheck_RedisDown(t *testing.T) {
	s, mr := newTestServer(t)
	mr.Close()

	resp, _ := doJSON(t, s.App(), http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.App()

	alice := signup(t, app, "alice")
	assert.NotEmpty(t, alice.Token)

	t.Run("duplicate username", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/auth/signup", "", fiber.Map{
			"username": "alice", "email": "other@example.com", "password": "password123",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("invalid signup", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/auth/signup", "", fiber.Map{
			"username": "al", "email": "al@example.com", "password": "password123",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("login by username and email", func(t *testing.T) {
		for _, login := range []string{"alice", "ALICE@example.com"} {
			resp, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
				"login": login, "password": "password123",
			})
			assert.Equal(t, http.StatusOK, resp.StatusCode, login)
			assert.Equal(t, "bearer", decode[map[string]any](t, body)["token_type"])
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
			"username": "alice", "password": "nope12345",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me then logout revokes the token", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/auth/me", alice.Token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		me := decode[map[string]any](t, body)
		assert.Equal(t, "alice", me["username"])
		assert.NotContains(t, me, "password")

		resp, _ = doJSON(t, app, http.MethodPost, "/api/auth/logout", alice.Token, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodGet, "/api/auth/me", alice.Token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.App()
	bob := signup(t, app, "bob")

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"missing credential", "/api/notifications", "", http.StatusUnauthorized},
		{"garbage token", "/api/notifications", "not-a-jwt", http.StatusUnauthorized},
		{"bearer header", "/api/notifications", bob.Token, http.StatusOK},
		{"token query", "/api/notifications?token=" + bob.Token, "", http.StatusOK},
		{"unknown ticket", "/api/notifications?ticket=nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, app, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestPostHandlers(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.App()
	alice := signup(t, app, "alice")
	bob := signup(t, app, "bob")

	postID := createPost(t, app, alice, "Hello")
	path := fmt.Sprintf("/api/posts/%d", postID)

	resp, body := doJSON(t, app, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", decode[map[string]any](t, body)["username"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/posts?limit=500", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, body), 1)

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/users/%d/posts", alice.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, body), 1)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/posts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/posts", alice.Token, fiber.Map{"title": "", "content": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	t.Run("only the owner updates", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPut, path, bob.Token, fiber.Map{"title": "Hijacked"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, body := doJSON(t, app, http.MethodPut, path, alice.Token, fiber.Map{"title": "Edited"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		post := decode[map[string]any](t, body)
		assert.Equal(t, "Edited", post["title"])
		assert.Equal(t, "Hello body", post["content"])
	})

	t.Run("only the owner deletes", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodDelete, path, bob.Token, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodDelete, path, alice.Token, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestLikeAndNotificationHandlers(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.App()
	alice := signup(t, app, "alice")
	bob := signup(t, app, "bob")
	postID := createPost(t, app, alice, "Hello")
	likePath := fmt.Sprintf("/api/posts/%d/like", postID)

	resp, _ := doJSON(t, app, http.MethodPost, likePath, bob.Token, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodPost, likePath, bob.Token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodPost, "/api/posts/9999/like", bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	post := decode[map[string]any](t, body)
	assert.Equal(t, float64(1), post["likes_count"])
	assert.Equal(t, true, post["liked"])

	resp, _ = doJSON(t, app, http.MethodDelete, likePath, bob.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodDelete, likePath, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// like, then unlike
	resp, body = doJSON(t, app, http.MethodGet, "/api/notifications", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]map[string]any](t, body)
	require.Len(t, list, 2)
	assert.Equal(t, "unlike", list[0]["action"])
	assert.Equal(t, "like", list[1]["action"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/notifications", bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]map[string]any](t, body))

	resp, body = doJSON(t, app, http.MethodGet, "/api/notifications/unread-count", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), decode[map[string]any](t, body)["count"])

	firstID := uint(list[0]["id"].(float64))
	readPath := fmt.Sprintf("/api/notifications/%d/read", firstID)
	resp, _ = doJSON(t, app, http.MethodPost, readPath, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodPost, readPath, alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/api/notifications?unread=true", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, body), 1)

	resp, body = doJSON(t, app, http.MethodPost, "/api/notifications/read-all", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), decode[map[string]any](t, body)["updated"])
}

func TestCommentHandlers(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.App()
	alice := signup(t, app, "alice")
	bob := signup(t, app, "bob")
	postID := createPost(t, app, alice, "Hello")
	path := fmt.Sprintf("/api/posts/%d/comments", postID)

	resp, body := doJSON(t, app, http.MethodPost, path, bob.Token, fiber.Map{"content": "Nice post"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "bob", decode[map[string]any](t, body)["username"])

	resp, _ = doJSON(t, app, http.MethodPost, path, bob.Token, fiber.Map{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/posts/9999/comments", bob.Token, fiber.Map{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	comments := decode[[]map[string]any](t, body)
	require.Len(t, comments, 1)
	assert.Equal(t, "Nice post", comments[0]["content"])

	resp, body = doJSON(t, app, http.MethodGet, "/api/notifications", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	notes := decode[[]map[string]any](t, body)
	require.Len(t, notes, 1)
	assert.Equal(t, "comment", notes[0]["action"])
	assert.Equal(t, "bob commented on your post: Nice post", notes[0]["message"])
}

func TestUploadImage(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.App()
	alice := signup(t, app, "alice")

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	upload := func(content []byte) (*http.Response, []byte) {
		var form bytes.Buffer
		w := multipart.NewWriter(&form)
		part, err := w.CreateFormFile("image", "dot.png")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/posts/images", &form)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+alice.Token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return resp, body
	}

	resp, body := upload(pngBuf.Bytes())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	url, _ := decode[map[string]any](t, body)["file_url"].(string)
	assert.True(t, strings.HasPrefix(url, "/uploads/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	resp, _ = doJSON(t, app, http.MethodGet, url, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	bob := signup(t, app, "bob")
	resp, body = doJSON(t, app, http.MethodPost, "/api/posts", bob.Token, fiber.Map{
		"title": "borrowed", "content": "not mine", "image_url": url,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodPost, "/api/posts", alice.Token, fiber.Map{
		"title": "mine", "content": "with picture", "image_url": url,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, url, decode[map[string]any](t, body)["image_url"])

	resp, _ = upload([]byte("definitely not an image"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvalidIDParam(t *testing.T) {
	s, _ := newTestServer(t)
	app := s.App()

	for _, path := range []string{"/api/posts/abc", "/api/posts/0", "/api/posts/-3/comments"} {
		resp, body := doJSON(t, app, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Equal(t, "Invalid ID", decode[models.ErrorResponse](t, body).Error, path)
	}
}
