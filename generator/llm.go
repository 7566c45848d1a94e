package generator

import (
	"context"

	"github.com/shopspring/decimal"
)

// LLMClient 抽象大模型客户端，便于替换/Mock。
type LLMClient interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// Request 是一次模型调用的输入。
type Request struct {
	System          string
	Prompt          string
	MaxOutputTokens int
	Temperature     float64
}

// Completion 是模型输出及其用量。
type Completion struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
	Cost         decimal.Decimal
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Pricing  Pricing
}
