// Package imagecodec converts between raw image bytes and the inline data URI
// form the studio passes around for display and as a wire payload.
package imagecodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultMIME is assumed when a reference carries no usable MIME prefix.
const DefaultMIME = "image/png"

const (
	dataPrefix   = "data:"
	base64Suffix = ";base64"
)

// Image is a self-describing inline image reference of the form
// "data:<mime>;base64,<payload>". The zero value means no image.
type Image string

// MalformedImageError reports a reference that is not a MIME-prefixed inline
// payload. Callers fall back to treating the whole reference as payload.
type MalformedImageError struct {
	Ref string
}

func (e *MalformedImageError) Error() string {
	ref := e.Ref
	if len(ref) > 32 {
		ref = ref[:32] + "..."
	}
	return fmt.Sprintf("malformed image reference: %q", ref)
}

// ErrMalformedImage matches any *MalformedImageError via errors.Is.
var ErrMalformedImage = errors.New("malformed image reference")

func (e *MalformedImageError) Is(target error) bool { return target == ErrMalformedImage }

// Encode wraps raw bytes and their MIME type into an inline reference.
func Encode(raw []byte, mimeType string) Image {
	return Image(dataPrefix + mimeType + base64Suffix + "," + base64.StdEncoding.EncodeToString(raw))
}

// IsZero reports whether no image is present.
func (img Image) IsZero() bool { return img == "" }

func (img Image) String() string { return string(img) }

// split returns the MIME type and payload of a well-formed reference.
func (img Image) split() (mime, payload string, ok bool) {
	s := string(img)
	if !strings.HasPrefix(s, dataPrefix) {
		return "", "", false
	}
	// MIME parameters may quote commas; base64 never contains one.
	i := strings.LastIndexByte(s, ',')
	if i < 0 {
		return "", "", false
	}
	header := s[len(dataPrefix):i]
	if !strings.HasSuffix(header, base64Suffix) {
		return "", "", false
	}
	return strings.TrimSuffix(header, base64Suffix), s[i+1:], true
}

// Payload returns the base64 payload after the MIME prefix. For a malformed
// reference it returns the whole reference together with a
// *MalformedImageError, so permissive callers can ignore the error.
func (img Image) Payload() (string, error) {
	if _, payload, ok := img.split(); ok {
		return payload, nil
	}
	return string(img), &MalformedImageError{Ref: string(img)}
}

// MIMEType returns the declared MIME type, or DefaultMIME when none is declared.
func (img Image) MIMEType() string {
	if mime, _, ok := img.split(); ok && mime != "" {
		return mime
	}
	return DefaultMIME
}

// Decode is the inverse of Encode. Malformed references are decoded as a bare
// base64 payload with DefaultMIME.
func (img Image) Decode() ([]byte, string, error) {
	payload, _ := img.Payload()
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode image payload: %w", err)
	}
	return raw, img.MIMEType(), nil
}

// GuessMIME maps a file extension to an image MIME type, defaulting to PNG.
func GuessMIME(path string) string {
	mime := DefaultMIME
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".webp":
		mime = "image/webp"
	case ".gif":
		mime = "image/gif"
	}
	return mime
}

// OutputPath completes path for saving img. A path without an extension gets
// the one matching img's MIME type. The boolean is false when an explicit
// extension names a different image type than img carries.
func OutputPath(img Image, path string) (string, bool) {
	if filepath.Ext(path) == "" {
		return path + Extension(img.MIMEType()), true
	}
	return path, GuessMIME(path) == baseMIME(img.MIMEType())
}

func baseMIME(mime string) string {
	return strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
}

// Extension returns the file suffix used when downloading an image of mime.
func Extension(mime string) string {
	switch baseMIME(mime) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
