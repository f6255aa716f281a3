// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package kaggle is a client for the Kaggle dataset API: version lookup and
// resumable archive downloads.
package kaggle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/dataset-fetcher/internal/credentials"
	"github.com/pdiddy/dataset-fetcher/internal/handle"
	"github.com/pdiddy/dataset-fetcher/internal/httputil"
	"github.com/pdiddy/dataset-fetcher/pkg/types"
)

// DefaultEndpoint is the public Kaggle API base URL.
const DefaultEndpoint = "https://www.kaggle.com/api/v1"

// EnvEndpoint overrides the API base URL when the config leaves it empty.
const EnvEndpoint = "KAGGLE_API_ENDPOINT"

const defaultUserAgent = "dataset-fetcher/0.1"

// Client talks to the dataset host API.
type Client struct {
	BaseURL     string
	UserAgent   string
	Credentials *credentials.Credentials
	HTTP        *http.Client
	MaxRetries  int
}

// NewClient builds a Client from cfg. creds may be nil for anonymous access.
func NewClient(cfg types.FetchConfig, creds *credentials.Credentials, getenv func(string) string) *Client {
	base := cfg.Endpoint
	if base == "" && getenv != nil {
		base = getenv(EnvEndpoint)
	}
	if base == "" {
		base = DefaultEndpoint
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{
		BaseURL:     strings.TrimRight(base, "/"),
		UserAgent:   ua,
		Credentials: creds,
		HTTP:        &http.Client{Timeout: cfg.Timeout},
		MaxRetries:  cfg.MaxRetries,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	if c.Credentials != nil {
		req.SetBasicAuth(c.Credentials.Username, c.Credentials.Key)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	return resp, nil
}

func datasetPath(op string, h handle.Handle) string {
	return fmt.Sprintf("/datasets/%s/%s/%s", op, url.PathEscape(h.Owner), url.PathEscape(h.Dataset))
}

type datasetView struct {
	Ref                  string `json:"ref"`
	CurrentVersionNumber int    `json:"currentVersionNumber"`
}

// LatestVersion returns the current version number of the dataset.
func (c *Client) LatestVersion(ctx context.Context, h handle.Handle) (int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, datasetPath("view", h), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, newAPIError(resp)
	}

	var view datasetView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return 0, fmt.Errorf("parsing dataset view for %s: %w", h.Base(), err)
	}
	if view.CurrentVersionNumber < 1 {
		return 0, fmt.Errorf("dataset %s has no published version", h.Base())
	}
	return view.CurrentVersionNumber, nil
}

// APIError is a non-2xx response from the host.
type APIError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// newAPIError reads a bounded prefix of the body for the error message.
// The host answers with {"code": N, "message": "..."} on most failures.
func newAPIError(resp *http.Response) *APIError {
	e := &APIError{StatusCode: resp.StatusCode, URL: resp.Request.URL.Redacted()}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var msg struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &msg) == nil && msg.Message != "" {
		e.Message = msg.Message
	} else {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}
