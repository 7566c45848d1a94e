package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicLLM implements LLMClient on the Messages API.
type AnthropicLLM struct {
	client  anthropic.Client
	model   anthropic.Model
	Pricing Pricing
}

func NewAnthropicLLMFromConfig(cfg *LLMSettings) (*AnthropicLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key missing; provide llm.api_key or ANTHROPIC_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicLLM{
		client:  anthropic.NewClient(opts...),
		model:   anthropic.Model(cfg.Model),
		Pricing: cfg.Pricing.orDefault(),
	}, nil
}

func (a *AnthropicLLM) Complete(ctx context.Context, req Request) (Completion, error) {
	maxTokens := int64(req.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return Completion{}, err
	}
	if len(message.Content) == 0 {
		return Completion{}, errors.New("unexpected response format: no content blocks")
	}
	content := message.Content[0]
	if content.Type != "text" {
		return Completion{}, fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
	}
	in, out := message.Usage.InputTokens, message.Usage.OutputTokens
	return Completion{
		Text:         content.Text,
		Model:        string(message.Model),
		InputTokens:  in,
		OutputTokens: out,
		Cost:         a.Pricing.Cost(in, out),
	}, nil
}
