package generator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GenAILLM implements LLMClient on the Gemini API.
type GenAILLM struct {
	client  *genai.Client
	model   string
	Pricing Pricing
}

func NewGenAILLMFromConfig(ctx context.Context, cfg *LLMSettings) (*GenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key missing; provide llm.api_key or GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAILLM{client: client, model: cfg.Model, Pricing: cfg.Pricing.orDefault()}, nil
}

func (g *GenAILLM) Complete(ctx context.Context, req Request) (Completion, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return Completion{}, err
	}
	var in, out int64
	if resp.UsageMetadata != nil {
		in = int64(resp.UsageMetadata.PromptTokenCount)
		out = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return Completion{
		Text:         resp.Text(),
		Model:        g.model,
		InputTokens:  in,
		OutputTokens: out,
		Cost:         g.Pricing.Cost(in, out),
	}, nil
}
