package imagecodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

// MaxUploadBytes caps a single ingested image (20MB).
const MaxUploadBytes = 20 << 20

var (
	// ErrNotImage indicates ingested content is not a decodable image.
	ErrNotImage = errors.New("not an image")
	// ErrTooLarge indicates ingested content exceeds MaxUploadBytes.
	ErrTooLarge = errors.New("image exceeds upload limit")
)

// FromReader reads an uploaded or dropped file into an inline reference.
// Content that does not sniff as image/* or fails to decode returns ErrNotImage.
func FromReader(r io.Reader) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return "", ErrTooLarge
	}
	return FromBytes(data)
}

// FromBytes validates data as an image and encodes it.
func FromBytes(data []byte) (Image, error) {
	if len(data) == 0 {
		return "", ErrNotImage
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", ErrNotImage
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", ErrNotImage
	}
	return Encode(data, mime), nil
}

// FromFile ingests the image at path.
func FromFile(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return FromReader(f)
}

// WriteFile decodes img and writes its raw bytes to path, creating parent
// directories as needed.
func WriteFile(img Image, path string) error {
	if img.IsZero() {
		return errors.New("no image to write")
	}
	raw, _, err := img.Decode()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, raw, 0o644)
}
