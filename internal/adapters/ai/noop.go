package ai

import (
	"context"

	"chatpulse/pkg/errors"
)

// Ensure NoopProvider implements ChatProvider
var _ ChatProvider = (*NoopProvider)(nil)

// NoopProvider always fails. Used in skip-LLM mode and in deterministic
// tests: every consumer must degrade gracefully when it is wired in.
type NoopProvider struct{}

// NewNoopProvider creates a provider that never answers
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

// Name returns the provider name
func (p *NoopProvider) Name() string { return "noop" }

// Chat always returns ErrUnavailable
func (p *NoopProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return nil, errors.Wrap(errors.ErrUnavailable, "noop provider")
}
