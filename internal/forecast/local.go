package forecast

import (
	"context"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
)

// LocalCompleter answers prompts by running the methodology in-process.
// Its output follows the same JSON contract as a chat model's.
type LocalCompleter struct{}

// NewLocalCompleter creates a LocalCompleter
func NewLocalCompleter() *LocalCompleter {
	return &LocalCompleter{}
}

func (LocalCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a, err := Analyze(p.Input)
	if err != nil {
		return "", err
	}

	body, err := encodeResponse(&contracts.ParsedForecast{
		Historical:  a.Historical,
		Predictions: a.Predictions,
		Outlook:     a.Outlook,
		Rationale:   a.Rationale,
		Confidence:  a.Confidence,
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}
