package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/opiumfinance/lprewards/rewards/pkg/metrics"
	"github.com/opiumfinance/lprewards/utils/pkg/retry"
)

const maxErrorBodyBytes = 4096

type Config struct {
	Logger *slog.Logger

	// PoolURL is the endpoint indexing the liquidity pool and its positions.
	PoolURL string
	// WrapperURL is the endpoint indexing the wrapper token supply and holders.
	WrapperURL string

	HTTPClient *http.Client
	// RequestsPerSecond caps queries across both endpoints. Zero means unlimited.
	RequestsPerSecond float64
	Burst             int
	Retry             retry.Config
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.PoolURL == "" {
		return errors.New("pool subgraph url is required")
	}
	if cfg.WrapperURL == "" {
		return errors.New("wrapper subgraph url is required")
	}
	if cfg.RequestsPerSecond < 0 {
		return errors.New("requests per second must not be negative")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = newHTTPClient()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return nil
}

func newHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   time.Minute,
	}
}

// Client posts GraphQL queries to the indexed source.
type Client struct {
	log     *slog.Logger
	cfg     Config
	limiter *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		log:     cfg.Logger,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}, nil
}

// HTTPError is a non-200 response from the indexed source.
// Implements the StatusCode() interface for retry.IsRetryable() detection.
type HTTPError struct {
	Code int
	Body string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("subgraph error: %s (status %d)", e.Body, e.Code)
}

func (e *HTTPError) StatusCode() int {
	return e.Code
}

// GraphQLError holds the errors array of a GraphQL response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql errors: " + strings.Join(e.Messages, "; ")
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// PostQuery posts query with variables to endpoint and decodes the data member into out.
// Transient failures are retried; GraphQL errors fail the query.
func (c *Client) PostQuery(ctx context.Context, endpoint, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	op := operationName(query)
	retryCfg := c.cfg.Retry
	retryCfg.OnRetry = func(attempt int, err error) {
		c.log.Warn("subgraph: retrying query", "operation", op, "attempt", attempt, "error", err)
	}

	return retry.Do(ctx, retryCfg, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("failed to wait for rate limiter: %w", err)
		}
		start := time.Now()
		err := c.post(ctx, endpoint, body, out)
		metrics.RecordSubgraphRequest(op, time.Since(start), err)
		return err
	})
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &HTTPError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var res response
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(res.Errors) > 0 {
		gqlErr := &GraphQLError{}
		for _, e := range res.Errors {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return gqlErr
	}
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return retry.Permanent(errors.New("response has no data"))
	}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode data: %w", err))
	}
	return nil
}

// operationName extracts the operation name of a named query for metric labels.
func operationName(query string) string {
	q := strings.TrimSpace(query)
	q, ok := strings.CutPrefix(q, "query")
	if !ok {
		return "anonymous"
	}
	q = strings.TrimSpace(q)
	end := strings.IndexAny(q, "({ \t\n")
	if end <= 0 {
		return "anonymous"
	}
	return q[:end]
}
