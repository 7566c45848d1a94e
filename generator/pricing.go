package generator

import "github.com/shopspring/decimal"

// Pricing converts token usage into money.
type Pricing struct {
	InputPerMTok  decimal.Decimal
	OutputPerMTok decimal.Decimal
}

var million = decimal.NewFromInt(1_000_000)

// DefaultPricing is $3 input / $15 output per million tokens.
func DefaultPricing() Pricing {
	return Pricing{InputPerMTok: decimal.NewFromInt(3), OutputPerMTok: decimal.NewFromInt(15)}
}

// Cost returns the price of a call rounded to 4 decimal places.
func (p Pricing) Cost(inputTokens, outputTokens int64) decimal.Decimal {
	in := decimal.NewFromInt(inputTokens).Mul(p.InputPerMTok).Div(million)
	out := decimal.NewFromInt(outputTokens).Mul(p.OutputPerMTok).Div(million)
	return in.Add(out).Round(4)
}

func (p Pricing) isZero() bool {
	return p.InputPerMTok.IsZero() && p.OutputPerMTok.IsZero()
}

func (p Pricing) orDefault() Pricing {
	if p.isZero() {
		return DefaultPricing()
	}
	return p
}
