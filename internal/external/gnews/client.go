package gnews

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/config"
	"github.com/tylerle0/InvestAnalytics/pkg/httputil"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

// ErrNoAPIKey is returned when no GNews key is configured
var ErrNoAPIKey = errors.New("gnews: api key not configured")

// Client searches news articles through the GNews API
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
}

// NewClient creates a new GNews client
func NewClient(httpClient *httputil.Client, log *logger.Logger, cfg config.GNewsConfig) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Component("gnews"),
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}
}

type searchResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Search returns up to max English-language US articles matching the
// exact phrase query.
func (c *Client) Search(ctx context.Context, query string, max int) ([]contracts.Snippet, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/search?%s", c.baseURL, url.Values{
		"q":       {`"` + query + `"`},
		"lang":    {"en"},
		"country": {"us"},
		"max":     {fmt.Sprint(max)},
		"apikey":  {c.apiKey},
	}.Encode())

	var resp searchResponse
	if err := c.httpClient.GetJSON(ctx, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("gnews search %q: %w", query, err)
	}

	articles := make([]contracts.Snippet, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		articles = append(articles, contracts.Snippet{
			Title: a.Title,
			Body:  a.Description,
		})
	}
	return articles, nil
}
