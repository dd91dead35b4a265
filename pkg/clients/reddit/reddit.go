// Package reddit implements the stage FeedReader on Reddit's hot listing
// using application-only OAuth.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/petrijr/auraflow/pkg/api"
	"github.com/petrijr/auraflow/pkg/clients"
)

const (
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	DefaultAPIBase  = "https://oauth.reddit.com"
)

// Config configures a Client.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string

	// TokenURL and APIBase override the Reddit endpoints in tests.
	TokenURL string
	APIBase  string

	Retry  api.RetryPolicy
	Logger zerolog.Logger
}

// Client reads post titles from subreddit listings.
type Client struct {
	http    *http.Client
	apiBase string
	retry   api.RetryPolicy
	logger  zerolog.Logger
}

// userAgentTransport sets the User-Agent Reddit requires on every request,
// including the token exchange.
type userAgentTransport struct {
	ua   string
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", t.ua)
	return t.base.RoundTrip(r)
}

// New creates a Client. Tokens are fetched lazily and refreshed on expiry.
func New(cfg Config) *Client {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}

	base := &http.Client{Transport: &userAgentTransport{ua: cfg.UserAgent, base: http.DefaultTransport}}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// The token source keeps the context for refreshes, so it must not be
	// request scoped.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &Client{
		http:    cc.Client(tokenCtx),
		apiBase: apiBase,
		retry:   cfg.Retry,
		logger:  cfg.Logger.With().Str("client", "reddit").Logger(),
	}
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title string `json:"title"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// FetchTopics returns the titles of the hottest posts in subreddit source.
func (c *Client) FetchTopics(ctx context.Context, source string, limit int) ([]string, error) {
	u := fmt.Sprintf("%s/r/%s/hot?limit=%s&raw_json=1", c.apiBase, url.PathEscape(source), strconv.Itoa(limit))

	var titles []string
	err := api.Retry(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return api.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn().Err(err).Str("subreddit", source).Msg("fetch hot posts")
			// Token exchange failures carry the auth server's status.
			var rerr *oauth2.RetrieveError
			if errors.As(err, &rerr) && rerr.Response != nil {
				return clients.ClassifyStatus(rerr.Response.StatusCode, err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return clients.ClassifyStatus(resp.StatusCode, &clients.StatusError{
				Service:    "reddit",
				StatusCode: resp.StatusCode,
				Body:       string(body),
			})
		}

		var l listing
		if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
			return api.Permanent(fmt.Errorf("decode listing: %w", err))
		}
		titles = titles[:0]
		for _, child := range l.Data.Children {
			if child.Data.Title != "" {
				titles = append(titles, child.Data.Title)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reddit r/%s: %w", source, err)
	}

	c.logger.Info().Str("subreddit", source).Int("posts", len(titles)).Msg("fetched hot posts")
	return titles, nil
}
