// Package storage keeps uploaded post images on the local filesystem.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ripple/internal/models"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// PublicPrefix is the URL path uploads are served under.
	PublicPrefix = "/uploads/"
	// MaxDimension caps the longest edge of a stored image.
	MaxDimension = 2048
	JPEGQuality  = 82
)

// Upload is an image received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImageStore persists post images and returns their public URL.
type ImageStore interface {
	Save(ctx context.Context, in Upload) (string, error)
	Remove(ctx context.Context, url string) error
}

// LocalStore writes images into a directory served statically at PublicPrefix.
type LocalStore struct {
	dir      string
	maxBytes int64
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(dir string, maxUploadMB int) (*LocalStore, error) {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, maxBytes: int64(maxUploadMB) * 1024 * 1024}, nil
}

// Dir returns the directory files are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save validates the upload, downsizes images over MaxDimension, and stores it under a random name.
// WebP uploads are stored as JPEG since only a WebP decoder is available.
func (s *LocalStore) Save(_ context.Context, in Upload) (string, error) {
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}
	if !isAllowedImageMIME(http.DetectContentType(in.Content)) {
		return "", models.NewValidationError("Invalid image type")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}

	payload := in.Content
	ext := "." + format
	if format == "jpeg" {
		ext = ".jpg"
	}

	if format == "webp" || cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		decoded, _, err := image.Decode(bytes.NewReader(in.Content))
		if err != nil {
			return "", models.NewValidationError("Invalid image file")
		}
		payload, err = encodeJPEG(resizeToFit(decoded, MaxDimension, MaxDimension))
		if err != nil {
			return "", models.NewInternalError(err)
		}
		ext = ".jpg"
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), payload, 0o644); err != nil {
		return "", models.NewInternalError(fmt.Errorf("write image: %w", err))
	}
	return PublicPrefix + name, nil
}

// Remove deletes the file behind a URL returned by Save. Unknown or foreign URLs are ignored.
func (s *LocalStore) Remove(_ context.Context, url string) error {
	name, ok := strings.CutPrefix(url, PublicPrefix)
	if !ok || name == "" {
		return nil
	}
	name = path.Base(path.Clean("/" + name))
	if name == "/" || name == "." {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image %s: %w", name, err)
	}
	return nil
}

func isAllowedImageMIME(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func resizeToFit(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return src
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
