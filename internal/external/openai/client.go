package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tylerle0/InvestAnalytics/pkg/config"
	"github.com/tylerle0/InvestAnalytics/pkg/httputil"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

// ErrEmptyResponse is returned when the model produced no content
var ErrEmptyResponse = errors.New("openai: empty response")

// Client calls the chat completions endpoint
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	model      string
}

// NewClient creates a new chat completions client
func NewClient(httpClient *httputil.Client, log *logger.Logger, cfg config.GeneratorConfig) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Component("openai"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends one system + user turn and returns the first choice's text
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	req := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var resp chatResponse
	if err := c.httpClient.PostJSON(ctx, c.baseURL+"/chat/completions", header, req, &resp); err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	c.logger.WithFields(map[string]interface{}{
		"model":             c.model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"finish_reason":     resp.Choices[0].FinishReason,
	}).Debug("Chat completion received")

	return resp.Choices[0].Message.Content, nil
}
