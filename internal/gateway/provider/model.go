package provider

import (
	"context"
	"errors"
)

// ChatPayload is one system+user exchange.
type ChatPayload struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	ExpectJSON  bool
}

type ModelProvider interface {
	ID() string
	Enabled() bool
	Call(ctx context.Context, payload ChatPayload) (string, error)
}

// ErrNotConfigured means the provider has no credentials and was never enabled.
var ErrNotConfigured = errors.New("model provider not configured")

// Disabled is the stand-in used when no API key is present.
type Disabled struct{ Name string }

func (d Disabled) ID() string    { return d.Name }
func (d Disabled) Enabled() bool { return false }
func (d Disabled) Call(context.Context, ChatPayload) (string, error) {
	return "", ErrNotConfigured
}
