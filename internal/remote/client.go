// ABOUTME: HTTP client for the knowledge-retrieval backend
// ABOUTME: Handles endpoint resolution, bearer auth, and per-endpoint timeouts

package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrBadResponse is returned when the backend answers with a non-2xx status
var ErrBadResponse = errors.New("bad server response")

// ErrDecode is returned when a response body matches neither the
// enveloped nor the bare shape
var ErrDecode = errors.New("undecodable response")

// defaultBaseURL is the built-in endpoint used when neither an explicit
// argument nor a stored override provides one.
const defaultBaseURL = "http://127.0.0.1:11434"

// Per-endpoint timeouts. Knowledge retrieval is the most expensive
// call, pure query less so, metadata cheapest.
const (
	defaultKnowledgeTimeout = 300 * time.Second
	defaultQueryTimeout     = 120 * time.Second
	metadataTimeout         = 30 * time.Second
	probeTimeout            = 10 * time.Second
)

// Overrides supplies locally stored endpoint settings. It sits between
// an explicit UpdateEndpoint argument and the hardcoded default in the
// resolution chain.
type Overrides interface {
	Override() (url, token string)
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	URL              string        // explicit endpoint, highest precedence
	BearerToken      string        // explicit bearer credential
	Overrides        Overrides     // locally stored overrides, may be nil
	KnowledgeTimeout time.Duration // overrides the 300s knowledge timeout
	QueryTimeout     time.Duration // overrides the 120s query timeout
	Logger           *slog.Logger
}

// Client issues HTTP requests against the backend. Calls are stateless;
// the only mutable state is the resolved endpoint and credential, which
// UpdateEndpoint may swap at runtime.
type Client struct {
	mu        sync.RWMutex
	baseURL   string
	token     string
	overrides Overrides

	http             *resty.Client
	knowledgeTimeout time.Duration
	queryTimeout     time.Duration
	logger           *slog.Logger
}

// NewClient creates a client and resolves its endpoint through the
// fallback chain: options → stored overrides → built-in default.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:          defaultBaseURL,
		overrides:        opts.Overrides,
		http:             resty.New(),
		knowledgeTimeout: defaultKnowledgeTimeout,
		queryTimeout:     defaultQueryTimeout,
		logger:           logger.With("component", "remote"),
	}
	if opts.KnowledgeTimeout > 0 {
		c.knowledgeTimeout = opts.KnowledgeTimeout
	}
	if opts.QueryTimeout > 0 {
		c.queryTimeout = opts.QueryTimeout
	}

	c.UpdateEndpoint(opts.URL, opts.BearerToken)
	return c
}

// UpdateEndpoint re-resolves the base URL and bearer token. Precedence
// for each: explicit argument, then the stored override, then the
// hardcoded default (URL) or the current value (token). A URL without
// an http(s) scheme is coerced to http://.
func (c *Client) UpdateEndpoint(rawURL, token string) {
	var storedURL, storedToken string
	if c.overrides != nil {
		storedURL, storedToken = c.overrides.Override()
	}

	candidate := firstNonEmpty(rawURL, storedURL, defaultBaseURL)
	candidate = coerceScheme(candidate)

	c.mu.Lock()
	defer c.mu.Unlock()

	if u, err := url.Parse(candidate); err == nil && u.Host != "" {
		c.baseURL = strings.TrimRight(u.String(), "/")
	} else {
		c.logger.Warn("ignoring unparseable endpoint", "url", candidate)
	}

	if t := firstNonEmpty(token, storedToken); t != "" {
		c.token = t
	}
}

// BaseURL returns the currently resolved endpoint.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// endpoint joins the base URL with a path.
func (c *Client) endpoint(path string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL + path
}

// newRequest prepares a request with auth and model headers applied.
func (c *Client) newRequest(ctx context.Context, model string) *resty.Request {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	if model != "" {
		req.SetHeader("model", model)
	}
	return req
}

// queryRequest is the JSON body shared by the knowledge and query endpoints.
type queryRequest struct {
	Query string `json:"query"`
	Model string `json:"model"`
}

func newQueryRequest(text, model string) queryRequest {
	if model == "" {
		model = "default"
	}
	return queryRequest{Query: text, Model: model}
}

func statusError(resp *resty.Response) error {
	return fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// coerceScheme prefixes http:// when a URL carries no http(s) scheme,
// so bare host:port settings keep working.
func coerceScheme(raw string) string {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "http://" + raw
}
