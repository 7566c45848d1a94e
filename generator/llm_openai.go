package generator

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM implements LLMClient using the official openai-go SDK (chat completions).
// DeepSeek and other OpenAI-compatible gateways work through BaseURL.
type OpenAILLM struct {
	Model   string
	Opts    []option.RequestOption
	Pricing Pricing
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAILLM{Model: cfg.Model, Opts: opts, Pricing: cfg.Pricing.orDefault()}, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, req Request) (Completion, error) {
	client := openai.NewClient(o.Opts...)

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: msgs,
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("openai: empty choices")
	}
	in, out := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	return Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  in,
		OutputTokens: out,
		Cost:         o.Pricing.Cost(in, out),
	}, nil
}
