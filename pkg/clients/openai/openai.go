// Package openai implements the stage Completer on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/petrijr/auraflow/pkg/api"
	"github.com/petrijr/auraflow/pkg/clients"
)

const DefaultModel = goopenai.GPT4o

// Config configures a Client.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a proxy or tests.
	BaseURL string
	// Model is used when a caller passes an empty model hint.
	Model string

	Retry      api.RetryPolicy
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client is a Completer backed by go-openai.
type Client struct {
	api    *goopenai.Client
	model  string
	retry  api.RetryPolicy
	logger zerolog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	c := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		c.HTTPClient = cfg.HTTPClient
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		api:    goopenai.NewClientWithConfig(c),
		model:  model,
		retry:  cfg.Retry,
		logger: cfg.Logger.With().Str("client", "openai").Logger(),
	}
}

// Complete sends prompt as a single user message and returns the trimmed
// reply.
func (c *Client) Complete(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = c.model
	}

	var out string
	attempt := 0
	err := api.Retry(ctx, c.retry, func(ctx context.Context) error {
		attempt++
		resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model: model,
			Messages: []goopenai.ChatCompletionMessage{
				{Role: goopenai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Str("model", model).Msg("completion failed")
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("completion returned no choices")
		}
		out = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	return out, nil
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return clients.ClassifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return clients.ClassifyStatus(reqErr.HTTPStatusCode, err)
	}
	return err
}
