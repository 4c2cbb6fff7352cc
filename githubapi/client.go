// Package githubapi queries the GitHub license detection endpoint for the
// repository a package is hosted in. All request failures are soft: the
// resolver falls through to the next strategy.
package githubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	slogcontext "github.com/veqryn/slog-context"

	"licenses.software/bundle/bundle"
	"licenses.software/bundle/resolver"
)

const (
	// DefaultBaseURL is the GitHub REST API endpoint.
	DefaultBaseURL = "https://api.github.com"
	// DefaultTimeout bounds a single license lookup when no timeout is
	// configured. A timed-out request is "not found", never a stall of the
	// whole run.
	DefaultTimeout = 30 * time.Second

	apiVersion = "2022-11-28"
	cacheSize  = 256
)

// Client resolves licenses through the hosting API. Results are memoized
// per repository since many modules of a monorepo share one repository.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	timeout    time.Duration

	cache *lru.Cache[string, *resolver.Result]
}

var _ resolver.Strategy = &Client{}

type Option func(*Client)

// WithToken authenticates requests, raising the API rate limits.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout bounds each license lookup request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithBaseURL points the client at a different API endpoint, e.g. a test
// server or a GitHub Enterprise instance.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a license detection client.
func NewClient(opts ...Option) (*Client, error) {
	cache, err := lru.New[string, *resolver.Result](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating repository result cache: %w", err)
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		cache:      cache,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string {
	return "github"
}

func (c *Client) Source() bundle.Source {
	return bundle.SourceRemoteRepository
}

// licenseResponse is the subset of the endpoint's response this client
// consumes.
type licenseResponse struct {
	License struct {
		SPDXID string `json:"spdx_id"`
	} `json:"license"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (c *Client) Resolve(ctx context.Context, pkg bundle.Package) (*resolver.Result, error) {
	repo, ok := repoForPackage(pkg)
	if !ok {
		return nil, resolver.ErrNotFound
	}

	key := repo.Owner + "/" + repo.Name
	if cached, ok := c.cache.Get(key); ok {
		if cached == nil {
			return nil, resolver.ErrNotFound
		}
		return cached, nil
	}

	result, err := c.detect(ctx, repo)
	if errors.Is(err, resolver.ErrNotFound) {
		c.cache.Add(key, nil)
		return nil, resolver.ErrNotFound
	}
	if err != nil {
		// transient failures are not cached; a later package sharing the
		// repository may still succeed
		return nil, err
	}
	c.cache.Add(key, result)
	return result, nil
}

func (c *Client) detect(ctx context.Context, repo Repo) (*resolver.Result, error) {
	logger := slogcontext.FromCtx(ctx).With(
		slog.String("realm", resolver.Realm),
		slog.String("repository", repo.Owner+"/"+repo.Name),
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/%s/license", c.baseURL, repo.Owner, repo.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building license request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decoding
	case http.StatusNotFound:
		logger.Log(ctx, slog.LevelDebug, "repository has no detectable license")
		return nil, resolver.ErrNotFound
	case http.StatusForbidden, http.StatusTooManyRequests:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			logger.Log(ctx, slog.LevelWarn, "rate limited by hosting API, configure a token to raise the limit")
		}
		return nil, resolver.ErrNotFound
	default:
		return nil, fmt.Errorf("querying %s: unexpected status %s", url, resp.Status)
	}

	var body licenseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding license response from %s: %w", url, err)
	}
	if body.Encoding != "base64" {
		return nil, fmt.Errorf("license response from %s has unsupported encoding %q", url, body.Encoding)
	}
	text, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("decoding license content from %s: %w", url, err)
	}
	if len(text) == 0 {
		return nil, resolver.ErrNotFound
	}

	result := &resolver.Result{Texts: []string{string(text)}}
	if id := body.License.SPDXID; id != "" && id != "NOASSERTION" {
		result.License = id
	}
	return result, nil
}
