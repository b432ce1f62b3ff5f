package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/rkirkendall/lumina/internal/assistant"
	"github.com/rkirkendall/lumina/internal/config"
	"github.com/rkirkendall/lumina/internal/imagecodec"
)

// contentGenerator is the slice of *genai.Models the gateway needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGateway talks to Gemini through the native genai SDK.
type GeminiGateway struct {
	models     contentGenerator
	imageModel string
	chatModel  string
	logger     zerolog.Logger
}

var _ Gateway = (*GeminiGateway)(nil)

// NewGeminiGateway creates a genai client authenticated with cfg.GeminiAPIKey.
func NewGeminiGateway(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiGateway(client.Models, cfg.ImageModel, cfg.ChatModel, logger), nil
}

func newGeminiGateway(models contentGenerator, imageModel, chatModel string, logger zerolog.Logger) *GeminiGateway {
	return &GeminiGateway{
		models:     models,
		imageModel: mapModelForGemini(imageModel, config.DefaultImageModel),
		chatModel:  mapModelForGemini(chatModel, config.DefaultChatModel),
		logger:     logger,
	}
}

// mapModelForGemini normalizes model names for the native Gemini SDK.
// Accepts inputs like:
//   - "gemini-2.5-flash-image"
//   - "gemini-2.5-flash-image-preview:free"
//   - "google/gemini-2.5-flash-image"
//   - "models/gemini-2.5-flash-image"
//
// and returns a resource name like "models/gemini-2.5-flash-image".
func mapModelForGemini(model, fallback string) string {
	m := strings.TrimSpace(model)
	if m == "" {
		m = fallback
	}
	if strings.HasPrefix(m, "models/") {
		return m
	}
	m = strings.TrimPrefix(m, "google/")
	if i := strings.IndexByte(m, ':'); i >= 0 {
		m = m[:i]
	}
	return "models/" + m
}

// GenerateImage requests a square image for prompt.
func (g *GeminiGateway) GenerateImage(ctx context.Context, prompt string) (imagecodec.Image, error) {
	start := time.Now()
	contents := genai.Text(prompt)
	cfg := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: aspectRatio},
	}
	res, err := g.models.GenerateContent(ctx, g.imageModel, contents, cfg)
	if err != nil {
		g.logFailure(OpGenerate, g.imageModel, start, err)
		return "", gatewayErr(OpGenerate, err)
	}
	img := firstInlineImage(res)
	g.logRoundTrip(OpGenerate, g.imageModel, start, !img.IsZero())
	return img, nil
}

// EditImage sends source as PNG inline data followed by the instruction.
func (g *GeminiGateway) EditImage(ctx context.Context, source imagecodec.Image, prompt string) (imagecodec.Image, error) {
	start := time.Now()
	raw, err := rawPayload(source)
	if err != nil {
		return "", gatewayErr(OpEdit, err)
	}
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: imagecodec.DefaultMIME, Data: raw}},
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	res, err := g.models.GenerateContent(ctx, g.imageModel, contents, nil)
	if err != nil {
		g.logFailure(OpEdit, g.imageModel, start, err)
		return "", gatewayErr(OpEdit, err)
	}
	img := firstInlineImage(res)
	g.logRoundTrip(OpEdit, g.imageModel, start, !img.IsZero())
	return img, nil
}

// ChatWithAssistant sends [image?, text] under the assistant persona.
func (g *GeminiGateway) ChatWithAssistant(ctx context.Context, message string, contextImage imagecodec.Image) (string, error) {
	start := time.Now()
	parts := make([]*genai.Part, 0, 2)
	if !contextImage.IsZero() {
		raw, err := rawPayload(contextImage)
		if err != nil {
			return "", gatewayErr(OpChat, err)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: imagecodec.DefaultMIME, Data: raw}})
	}
	parts = append(parts, genai.NewPartFromText(message))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: assistant.BuildPersonaInstruction()}}},
	}
	res, err := g.models.GenerateContent(ctx, g.chatModel, contents, cfg)
	if err != nil {
		g.logFailure(OpChat, g.chatModel, start, err)
		return "", gatewayErr(OpChat, err)
	}
	text := responseText(res)
	g.logRoundTrip(OpChat, g.chatModel, start, text != "")
	return text, nil
}

func (g *GeminiGateway) logRoundTrip(op Op, model string, start time.Time, produced bool) {
	g.logger.Debug().
		Str("op", string(op)).
		Str("model", model).
		Dur("duration", time.Since(start)).
		Bool("produced", produced).
		Msg("gemini: round trip completed")
}

func (g *GeminiGateway) logFailure(op Op, model string, start time.Time, err error) {
	g.logger.Debug().
		Err(err).
		Str("op", string(op)).
		Str("model", model).
		Dur("duration", time.Since(start)).
		Msg("gemini: round trip failed")
}

// rawPayload extracts and decodes the payload of img, treating a malformed
// reference as a bare base64 payload.
func rawPayload(img imagecodec.Image) ([]byte, error) {
	payload, _ := img.Payload()
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	return raw, nil
}

// firstInlineImage scans the first candidate's parts in order and returns the
// first one carrying inline image bytes, encoded as PNG. Empty inline data is
// skipped.
func firstInlineImage(res *genai.GenerateContentResponse) imagecodec.Image {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}
	for _, part := range res.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return imagecodec.Encode(part.InlineData.Data, imagecodec.DefaultMIME)
		}
	}
	return ""
}

// responseText joins the non-thought text parts of the first candidate.
// Whitespace-only output counts as no reply.
func responseText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}
	var out strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		out.WriteString(part.Text)
	}
	if strings.TrimSpace(out.String()) == "" {
		return ""
	}
	return out.String()
}
