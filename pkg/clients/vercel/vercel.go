// Package vercel implements the stage SiteDeployer on the Vercel
// deployments API.
package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/petrijr/auraflow/pkg/api"
	"github.com/petrijr/auraflow/pkg/clients"
)

const DefaultAPIBase = "https://api.vercel.com"

// Config configures a Client.
type Config struct {
	Token string
	// TeamID scopes deployments to a team; optional.
	TeamID string
	// APIBase overrides the API endpoint in tests.
	APIBase string

	Retry      api.RetryPolicy
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client deploys static sites with inline files.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		cfg:    cfg,
		http:   hc,
		logger: cfg.Logger.With().Str("client", "vercel").Logger(),
	}
}

type deploymentFile struct {
	File string `json:"file"`
	Data string `json:"data"`
}

type deploymentRequest struct {
	Name            string            `json:"name"`
	Files           []deploymentFile  `json:"files"`
	ProjectSettings map[string]string `json:"projectSettings"`
	Target          string            `json:"target"`
}

type deploymentResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Deploy creates a production deployment of files under project and returns
// its https URL. The project is created on first deploy.
func (c *Client) Deploy(ctx context.Context, project string, files map[string]string) (string, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	req := deploymentRequest{
		Name:            project,
		ProjectSettings: map[string]string{"framework": "other"},
		Target:          "production",
	}
	for _, name := range names {
		req.Files = append(req.Files, deploymentFile{File: name, Data: files[name]})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode deployment: %w", err)
	}

	endpoint := c.cfg.APIBase + "/v13/deployments"
	if c.cfg.TeamID != "" {
		endpoint += "?teamId=" + url.QueryEscape(c.cfg.TeamID)
	}

	var out deploymentResponse
	err = api.Retry(ctx, c.cfg.Retry, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return api.Permanent(err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			c.logger.Warn().Err(err).Str("project", project).Msg("deploy request failed")
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			c.logger.Warn().Int("status", resp.StatusCode).Str("project", project).Msg("deploy rejected")
			return clients.ClassifyStatus(resp.StatusCode, &clients.StatusError{
				Service:    "vercel",
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(msg)),
			})
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return api.Permanent(fmt.Errorf("decode deployment: %w", err))
		}
		if out.URL == "" {
			return api.Permanent(fmt.Errorf("deployment %s has no url", out.ID))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("vercel deploy %s: %w", project, err)
	}

	siteURL := out.URL
	if !strings.HasPrefix(siteURL, "http://") && !strings.HasPrefix(siteURL, "https://") {
		siteURL = "https://" + siteURL
	}
	c.logger.Info().Str("project", project).Str("deployment", out.ID).Str("url", siteURL).Msg("deployed")
	return siteURL, nil
}
