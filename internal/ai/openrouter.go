package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"github.com/rkirkendall/lumina/internal/assistant"
	"github.com/rkirkendall/lumina/internal/config"
	"github.com/rkirkendall/lumina/internal/imagecodec"
	"github.com/rkirkendall/lumina/internal/version"
)

// OpenRouterGateway routes the same three calls through OpenRouter. Chat uses
// the OpenAI SDK; image calls post raw chat/completions JSON because image
// output is not part of the SDK's typed response.
type OpenRouterGateway struct {
	client     openai.Client
	httpClient *http.Client
	apiKey     string
	baseURL    string
	imageModel string
	chatModel  string
	logger     zerolog.Logger
}

var _ Gateway = (*OpenRouterGateway)(nil)

// NewOpenRouterGateway builds a gateway against cfg.OpenRouterBaseURL. A nil
// httpClient uses http.DefaultClient.
func NewOpenRouterGateway(cfg config.Config, httpClient *http.Client, logger zerolog.Logger) *OpenRouterGateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := strings.TrimRight(cfg.OpenRouterBaseURL, "/")
	if base == "" {
		base = config.DefaultOpenRouterBaseURL
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.OpenRouterAPIKey),
		option.WithBaseURL(base+"/"),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)
	return &OpenRouterGateway{
		client:     client,
		httpClient: httpClient,
		apiKey:     cfg.OpenRouterAPIKey,
		baseURL:    base,
		imageModel: mapModelForOpenRouter(cfg.OpenRouterModel, config.DefaultOpenRouterModel),
		chatModel:  mapModelForOpenRouter(cfg.OpenRouterChatModel, config.DefaultOpenRouterChatModel),
		logger:     logger,
	}
}

func mapModelForOpenRouter(model, fallback string) string {
	m := strings.TrimSpace(model)
	if m == "" {
		return fallback
	}
	if strings.Contains(m, "/") {
		return m
	}
	return "google/" + m
}

// GenerateImage requests a square image for prompt.
func (g *OpenRouterGateway) GenerateImage(ctx context.Context, prompt string) (imagecodec.Image, error) {
	content := []any{map[string]any{"type": "text", "text": prompt}}
	req := g.imageRequest(content)
	req["image_config"] = map[string]any{"aspect_ratio": aspectRatio}
	return g.imageRoundTrip(ctx, OpGenerate, req)
}

// EditImage sends source as a PNG data URL followed by the instruction.
func (g *OpenRouterGateway) EditImage(ctx context.Context, source imagecodec.Image, prompt string) (imagecodec.Image, error) {
	content := []any{
		map[string]any{"type": "image_url", "image_url": map[string]any{"url": pngDataURL(source)}},
		map[string]any{"type": "text", "text": prompt},
	}
	return g.imageRoundTrip(ctx, OpEdit, g.imageRequest(content))
}

// ChatWithAssistant sends [image?, text] under the assistant persona.
func (g *OpenRouterGateway) ChatWithAssistant(ctx context.Context, message string, contextImage imagecodec.Image) (string, error) {
	start := time.Now()
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, 2)
	if !contextImage.IsZero() {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: pngDataURL(contextImage),
		}))
	}
	parts = append(parts, openai.TextContentPart(message))
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(assistant.BuildPersonaInstruction()),
			openai.UserMessage(parts),
		},
	})
	if err != nil {
		g.logFailure(OpChat, g.chatModel, start, err)
		return "", gatewayErr(OpChat, err)
	}
	var text string
	if len(resp.Choices) > 0 && strings.TrimSpace(resp.Choices[0].Message.Content) != "" {
		text = resp.Choices[0].Message.Content
	}
	g.logRoundTrip(OpChat, g.chatModel, start, text != "")
	return text, nil
}

func (g *OpenRouterGateway) imageRequest(content []any) map[string]any {
	return map[string]any{
		"model":      g.imageModel,
		"modalities": []string{"image", "text"},
		"messages":   []any{map[string]any{"role": "user", "content": content}},
	}
}

func (g *OpenRouterGateway) imageRoundTrip(ctx context.Context, op Op, req map[string]any) (imagecodec.Image, error) {
	start := time.Now()
	m, err := g.httpJSON(ctx, "chat/completions", req)
	if err != nil {
		g.logFailure(op, g.imageModel, start, err)
		return "", gatewayErr(op, err)
	}
	if errObj, ok := m["error"].(map[string]any); ok {
		msg, _ := errObj["message"].(string)
		if strings.TrimSpace(msg) == "" {
			msg = "OpenRouter returned an error"
		}
		err := errors.New(trimForError(msg))
		g.logFailure(op, g.imageModel, start, err)
		return "", gatewayErr(op, err)
	}
	payload := parseImageFromChatJSON(m)
	g.logRoundTrip(op, g.imageModel, start, payload != "")
	if payload == "" {
		return "", nil
	}
	return imagecodec.Image("data:" + imagecodec.DefaultMIME + ";base64," + payload), nil
}

func (g *OpenRouterGateway) httpJSON(ctx context.Context, path string, body any) (map[string]any, error) {
	url := g.baseURL + "/" + strings.TrimLeft(path, "/")
	breq, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(breq))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("HTTP-Referer", "http://localhost")
	req.Header.Set("X-Title", "lumina")
	req.Header.Set("User-Agent", "lumina/"+version.Version+" (+github.com/rkirkendall/lumina)")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke openrouter: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openrouter response: %w", err)
	}
	g.logger.Trace().Str("url", url).Int("status", resp.StatusCode).Int("bytes", len(b)).Msg("openrouter: response")

	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("openrouter decode failed: %w; status=%d; body=%s", err, resp.StatusCode, trimForError(string(b)))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if _, ok := out["error"]; !ok {
			return nil, fmt.Errorf("openrouter status %d: %s", resp.StatusCode, trimForError(string(b)))
		}
	}
	return out, nil
}

func (g *OpenRouterGateway) logRoundTrip(op Op, model string, start time.Time, produced bool) {
	g.logger.Debug().
		Str("op", string(op)).
		Str("model", model).
		Dur("duration", time.Since(start)).
		Bool("produced", produced).
		Msg("openrouter: round trip completed")
}

func (g *OpenRouterGateway) logFailure(op Op, model string, start time.Time, err error) {
	g.logger.Debug().
		Err(err).
		Str("op", string(op)).
		Str("model", model).
		Dur("duration", time.Since(start)).
		Msg("openrouter: round trip failed")
}

// parseImageFromChatJSON returns the base64 payload of the first image in a
// chat/completions response, looking at message.images first and then at
// image parts of the message content. It returns "" when there is none.
func parseImageFromChatJSON(m map[string]any) string {
	choices, _ := m["choices"].([]any)
	if len(choices) == 0 {
		return ""
	}
	ch, _ := choices[0].(map[string]any)
	msg, _ := ch["message"].(map[string]any)
	if msg == nil {
		return ""
	}
	// Some providers return images in message.images (not within content parts)
	if imgs, _ := msg["images"].([]any); len(imgs) > 0 {
		for _, im := range imgs {
			if s := imagePartPayload(im); s != "" {
				return s
			}
		}
	}
	if parts, ok := msg["content"].([]any); ok {
		for _, p := range parts {
			if s := imagePartPayload(p); s != "" {
				return s
			}
		}
	}
	if s, ok := msg["content"].(string); ok {
		return dataURLPayload(s)
	}
	return ""
}

// imagePartPayload understands image_url {url}, nested image {b64_json|b64|url}
// and a direct b64_json field.
func imagePartPayload(v any) string {
	obj, _ := v.(map[string]any)
	if obj == nil {
		return ""
	}
	if iu, ok := obj["image_url"].(map[string]any); ok {
		if u, _ := iu["url"].(string); u != "" {
			if s := dataURLPayload(u); s != "" {
				return s
			}
		}
	}
	if img, ok := obj["image"].(map[string]any); ok {
		for _, k := range []string{"b64_json", "b64"} {
			if s, _ := img[k].(string); s != "" {
				return s
			}
		}
		if u, _ := img["url"].(string); u != "" {
			if s := dataURLPayload(u); s != "" {
				return s
			}
		}
	}
	if s, _ := obj["b64_json"].(string); s != "" {
		return s
	}
	return ""
}

func dataURLPayload(u string) string {
	if !strings.HasPrefix(u, "data:") {
		return ""
	}
	if i := strings.LastIndexByte(u, ','); i > 0 {
		return u[i+1:]
	}
	return ""
}
