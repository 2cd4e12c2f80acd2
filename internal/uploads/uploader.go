// Package uploads stores profile images submitted as base64 data URLs.
package uploads

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Uploader persists an image and returns a URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, dataURL string) (string, error)
}

var errBadDataURL = errors.New("malformed image data url")

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DecodeDataURL splits a "data:<mime>;base64,<payload>" string.
func DecodeDataURL(dataURL string) (mime string, payload []byte, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, errBadDataURL
	}
	rest := strings.TrimPrefix(dataURL, "data:")
	meta, encoded, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", nil, errBadDataURL
	}
	mime = strings.TrimSuffix(meta, ";base64")
	payload, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errBadDataURL, err)
	}
	return mime, payload, nil
}

// LocalUploader writes images to a directory served as static files.
type LocalUploader struct {
	dir     string
	baseURL string
}

// NewLocalUploader ensures the target directory exists.
func NewLocalUploader(dir, baseURL string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalUploader{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (u *LocalUploader) Upload(_ context.Context, dataURL string) (string, error) {
	mime, payload, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	ext, ok := extensions[mime]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", mime)
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(u.dir, name), payload, 0o644); err != nil {
		return "", err
	}
	return u.baseURL + "/" + name, nil
}
