package provider

import (
	"fmt"
	"strings"
	"time"

	"fplpilot/internal/logger"
)

type ModelCfg struct {
	ID, Provider, APIURL, APIKey, Model string
	Headers                             map[string]string
	Timeout                             time.Duration
}

// Build picks an implementation by provider name. A missing key yields a
// Disabled provider so callers see the oracle as unavailable.
func Build(m ModelCfg) ModelProvider {
	kind := strings.ToLower(strings.TrimSpace(m.Provider))
	if kind == "" {
		kind = "openai"
	}
	id := strings.TrimSpace(m.ID)
	if id == "" {
		id = kind
		if model := strings.TrimSpace(m.Model); model != "" {
			id = fmt.Sprintf("%s:%s", kind, model)
		}
	}
	if strings.TrimSpace(m.APIKey) == "" {
		logger.Warnf("[oracle] no api key for %s, decisions disabled", id)
		return Disabled{Name: id}
	}
	switch kind {
	case "gemini", "google":
		return NewGeminiModelProvider(id, m.APIKey, m.Model)
	default:
		return NewOpenAIModelProvider(id, &OpenAIChatClient{
			BaseURL:      m.APIURL,
			APIKey:       m.APIKey,
			Model:        m.Model,
			Timeout:      m.Timeout,
			ExtraHeaders: m.Headers,
		})
	}
}
