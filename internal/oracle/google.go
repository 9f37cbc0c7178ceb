package oracle

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GoogleProvider adapts Gemini's GenerateContent API to Provider. Unlike
// the teacher's GoogleProvider, it calls the blocking (non-streaming)
// Models.GenerateContent rather than GenerateContentStream.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
}

// NewGoogleProvider constructs a provider bound to a single API key.
func NewGoogleProvider(apiKey, defaultModel string) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, errors.New("oracle: google api key is required")
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("oracle: google: failed to create client: %w", err)
	}

	return &GoogleProvider{client: client, defaultModel: defaultModel}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	if model == "" {
		model = p.defaultModel
	}

	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	var config *genai.GenerateContentConfig
	if system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("oracle: google model=%s: %w", model, err)
	}

	var out string
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil {
				out += part.Text
			}
		}
	}
	return out, nil
}
