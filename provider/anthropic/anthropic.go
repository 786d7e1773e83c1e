// Package anthropic backs actor decisions with the Claude Messages API.
package anthropic

import (
	"context"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/djav1985/v-axion-ai/core"
	"github.com/djav1985/v-axion-ai/provider"
)

const defaultMaxTokens = 1024

// Provider sends one prompt per actor cycle and parses the returned
// JSON action batch.
type Provider struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	tools     []core.ToolDescription
}

// Option configures a Provider.
type Option func(*Provider)

// WithMaxTokens overrides the completion budget per decision.
func WithMaxTokens(n int64) Option {
	return func(p *Provider) {
		p.maxTokens = n
	}
}

// WithTools advertises a tool catalog in every prompt.
func WithTools(tools []core.ToolDescription) Option {
	return func(p *Provider) {
		p.tools = tools
	}
}

// WithBaseURL points the client at a non-default API endpoint.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		client := anthropic.NewClient(
			option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
			option.WithBaseURL(url),
		)
		p.client = &client
	}
}

// New creates a provider for the given model. The API key comes from
// ANTHROPIC_API_KEY, matching the SDK default.
func New(model string, opts ...Option) *Provider {
	client := anthropic.NewClient(
		option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	p := &Provider{
		client:    &client,
		model:     model,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "anthropic" }

// Decide asks the model for the actor's next action batch.
func (p *Provider) Decide(ctx context.Context, snap core.ActorSnapshot, recalled []core.MemoryEntrySnapshot) (core.Decision, error) {
	prompt := provider.BuildPrompt(snap, recalled, p.tools)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: provider.ControlSystem},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return core.Decision{}, &core.ProviderError{Provider: p.Name(), Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += b.Text
		}
	}
	return provider.ExtractDecision(text), nil
}
