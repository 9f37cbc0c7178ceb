package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider adapts the Anthropic Messages API to Provider. It is a
// condensed, non-streaming relative of the teacher's AnthropicProvider:
// decide() only ever needs one complete response, not an SSE token stream,
// so there is no processStream/ssestream plumbing here.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropicProvider constructs a provider bound to a single API key.
func NewAnthropicProvider(apiKey, baseURL, defaultModel string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("oracle: anthropic api key is required")
	}
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	if model == "" {
		model = p.defaultModel
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", p.wrapError(err, model)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

func (p *AnthropicProvider) wrapError(err error, model string) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		reason := classifyStatus(apiErr.StatusCode)
		if reason == reasonUnknown {
			reason = classifyError(err)
		}
		return fmt.Errorf("oracle: anthropic model=%s status=%d reason=%s: %w", model, apiErr.StatusCode, reason, err)
	}
	return fmt.Errorf("oracle: anthropic model=%s: %w", model, err)
}
