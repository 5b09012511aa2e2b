package forecast

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

// Completer turns a prompt into raw model text
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// ChatClient is a single-turn chat model (system + user in, text out)
type ChatClient interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// ChatCompleter adapts a ChatClient to Completer
type ChatCompleter struct {
	client ChatClient
}

// NewChatCompleter wraps client
func NewChatCompleter(client ChatClient) *ChatCompleter {
	return &ChatCompleter{client: client}
}

func (c *ChatCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	return c.client.Chat(ctx, p.System, p.User)
}

// Generator builds the prompt and invokes the completer
type Generator struct {
	completer Completer
	logger    *logger.Logger
	metrics   Recorder
}

// NewGenerator creates a generator backed by completer
func NewGenerator(completer Completer, log *logger.Logger, metrics Recorder) *Generator {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Generator{
		completer: completer,
		logger:    log.Component("generator"),
		metrics:   metrics,
	}
}

// Generate returns the completer's raw text, unmodified.
// Call failures and blank responses are GenerationFailure errors.
func (g *Generator) Generate(ctx context.Context, sym contracts.Symbol, agg contracts.Aggregate) (string, error) {
	prompt, err := BuildPrompt(sym, agg)
	if err != nil {
		return "", contracts.NewError(contracts.KindGeneration, "build prompt", err)
	}

	start := time.Now()
	text, err := g.completer.Complete(ctx, prompt)
	g.metrics.ObserveStage("generate", time.Since(start))
	if err != nil {
		return "", contracts.NewError(contracts.KindGeneration, "generate "+sym.Ticker, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", contracts.NewError(contracts.KindGeneration, "generate "+sym.Ticker, errors.New("empty response"))
	}

	g.logger.WithFields(map[string]interface{}{
		"symbol": sym.Ticker,
		"bytes":  len(text),
	}).Debug("Generated forecast text")

	return text, nil
}
