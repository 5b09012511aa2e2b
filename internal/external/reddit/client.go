package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
	"github.com/tylerle0/InvestAnalytics/pkg/config"
	"github.com/tylerle0/InvestAnalytics/pkg/httputil"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

const publicBaseURL = "https://www.reddit.com"

// Client searches Reddit posts. With credentials it uses the OAuth API
// (client-credentials grant); without, the public JSON listing.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	limiter    *rate.Limiter

	baseURL      string
	authURL      string
	clientID     string
	clientSecret string
	userAgent    string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewClient creates a new Reddit search client
func NewClient(httpClient *httputil.Client, log *logger.Logger, cfg config.RedditConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ClientID == "" && strings.Contains(base, "oauth.reddit.com") {
		base = publicBaseURL
	}

	return &Client{
		httpClient:   httpClient,
		logger:       log.Component("reddit"),
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		baseURL:      base,
		authURL:      cfg.AuthURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		userAgent:    cfg.UserAgent,
		now:          time.Now,
	}
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title    string `json:"title"`
				Selftext string `json:"selftext"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Search returns up to limit posts matching query from the past month,
// ordered by relevance.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]contracts.Snippet, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	if c.clientID != "" {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+token)
	}

	u := fmt.Sprintf("%s/search.json?%s", c.baseURL, url.Values{
		"q":     {query},
		"sort":  {"relevance"},
		"t":     {"month"},
		"limit": {fmt.Sprint(limit)},
		"type":  {"link"},
	}.Encode())

	var resp listing
	if err := c.httpClient.GetJSON(ctx, u, header, &resp); err != nil {
		return nil, fmt.Errorf("reddit search %q: %w", query, err)
	}

	posts := make([]contracts.Snippet, 0, len(resp.Data.Children))
	for _, child := range resp.Data.Children {
		posts = append(posts, contracts.Snippet{
			Title: child.Data.Title,
			Body:  child.Data.Selftext,
		})
		if len(posts) == limit {
			break
		}
	}
	return posts, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL,
		strings.NewReader(url.Values{"grant_type": {"client_credentials"}}.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	var tok tokenResponse
	if err := c.httpClient.DoJSON(req, &tok); err != nil {
		return "", fmt.Errorf("reddit token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("reddit token: empty access token")
	}

	c.token = tok.AccessToken
	// renew a minute early
	c.tokenExpiry = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	c.logger.Debug("Obtained Reddit access token")

	return c.token, nil
}
