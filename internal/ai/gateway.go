// Package ai is the boundary to the hosted generative service. Each Gateway
// call is a single request/response round trip with no retry; an absent
// result is reported as a zero value, never as an error.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rkirkendall/lumina/internal/config"
	"github.com/rkirkendall/lumina/internal/imagecodec"
)

// Gateway issues generate, edit and chat requests against the generative service.
type Gateway interface {
	// GenerateImage returns the first inline image produced for prompt, or
	// the zero Image when the response carries none.
	GenerateImage(ctx context.Context, prompt string) (imagecodec.Image, error)
	// EditImage applies prompt to source and returns the first inline image
	// produced, or the zero Image.
	EditImage(ctx context.Context, source imagecodec.Image, prompt string) (imagecodec.Image, error)
	// ChatWithAssistant sends a single stateless turn, prefixed by
	// contextImage when present, and returns the reply text or "".
	ChatWithAssistant(ctx context.Context, message string, contextImage imagecodec.Image) (string, error)
}

// Op names the gateway operation that failed.
type Op string

const (
	OpGenerate Op = "generate"
	OpEdit     Op = "edit"
	OpChat     Op = "chat"
)

// ErrGateway matches every *GatewayError via errors.Is.
var ErrGateway = errors.New("gateway error")

// GatewayError wraps a transport, service or decoding failure of one round trip.
type GatewayError struct {
	Op  Op
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

func gatewayErr(op Op, err error) error {
	return &GatewayError{Op: op, Err: err}
}

// aspectRatio is fixed for generation.
const aspectRatio = "1:1"

// New returns the gateway selected by cfg: OpenRouter when enabled,
// otherwise the native Gemini SDK.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.UseOpenRouter {
		return NewOpenRouterGateway(cfg, nil, logger), nil
	}
	return NewGeminiGateway(ctx, cfg, logger)
}

// pngDataURL rebuilds a PNG data URL from the permissively extracted payload
// of img, matching what is sent to the Gemini SDK.
func pngDataURL(img imagecodec.Image) string {
	payload, _ := img.Payload()
	return "data:" + imagecodec.DefaultMIME + ";base64," + payload
}

func trimForError(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
