package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ripple/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLocalStore_SaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, 1)
	require.NoError(t, err)

	url, err := store.Save(context.Background(), Upload{Filename: "a.png", Content: pngBytes(t, 8, 8)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, PublicPrefix))
	assert.True(t, strings.HasSuffix(url, ".png"))

	stored := filepath.Join(dir, strings.TrimPrefix(url, PublicPrefix))
	_, err = os.Stat(stored)
	require.NoError(t, err)

	require.NoError(t, store.Remove(context.Background(), url))
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is harmless.
	assert.NoError(t, store.Remove(context.Background(), url))
}

func TestLocalStore_DownsizesLargeImages(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, 10)
	require.NoError(t, err)

	url, err := store.Save(context.Background(), Upload{Content: pngBytes(t, MaxDimension*2, 10)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	f, err := os.Open(filepath.Join(dir, strings.TrimPrefix(url, PublicPrefix)))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, MaxDimension, cfg.Width)
}

func TestLocalStore_RejectsInvalidUploads(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), 1)
	require.NoError(t, err)

	tests := []struct {
		name    string
		content []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an image")},
		{"too large", append(pngBytes(t, 2, 2), make([]byte, 2*1024*1024)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Save(context.Background(), Upload{Content: tt.content})
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
		})
	}
}

func TestLocalStore_RemoveIgnoresForeignPaths(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	store, err := NewLocalStore(dir, 1)
	require.NoError(t, err)

	assert.NoError(t, store.Remove(context.Background(), "https://cdn.example.com/a.png"))
	assert.NoError(t, store.Remove(context.Background(), PublicPrefix+"../../"+filepath.Base(outside)))
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}
