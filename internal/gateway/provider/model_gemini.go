package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiModelProvider calls the Gemini API through the genai SDK. The SDK
// client is created on first use so construction never touches the network.
type GeminiModelProvider struct {
	id     string
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiModelProvider(id, apiKey, model string) *GeminiModelProvider {
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiModelProvider{id: id, apiKey: apiKey, model: model}
}

func (p *GeminiModelProvider) ID() string    { return p.id }
func (p *GeminiModelProvider) Enabled() bool { return p.apiKey != "" }

func (p *GeminiModelProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	if !p.Enabled() {
		return "", ErrNotConfigured
	}
	p.once.Do(func() {
		p.client, p.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if p.initErr != nil {
		return "", fmt.Errorf("genai client: %w", p.initErr)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(payload.Temperature)),
	}
	if payload.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(payload.System, genai.RoleUser)
	}
	if payload.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(payload.MaxTokens)
	}
	if payload.ExpectJSON {
		cfg.ResponseMIMEType = "application/json"
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(payload.User), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}
