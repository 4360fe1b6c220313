// Package mixcloud queries the remote's public GraphQL API and assembles
// podcast feeds from the results: cursor pagination, obfuscated stream-URL
// decoding, concurrent HEAD probes for enclosure metadata, and feed-level
// profile lookup.
package mixcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultEndpoint is the remote's public GraphQL endpoint.
const DefaultEndpoint = "https://app.mixcloud.com/graphql"

const (
	queryTimeout = 30 * time.Second // whole-query deadline
	headTimeout  = 10 * time.Second // per-HEAD connect/read timeout
	pageSize     = 20
)

// ClientConfig supplies the client's tunables. Funcs are re-read per call
// so settings changes apply without a restart.
type ClientConfig struct {
	Endpoint     string            // "" = DefaultEndpoint
	UserAgent    func() string     // sent on every remote request
	MaxEpisodes  func() int        // episode_max_count
	IsSubscribed func(string) bool // suppresses the Support line in descriptions
	HTTPClient   *http.Client      // nil = a pooled default
}

// Client talks to the remote. One instance is shared per process so all
// queries reuse its connection pool.
type Client struct {
	endpoint     string
	http         *http.Client
	head         *http.Client
	limiter      *rate.Limiter
	userAgent    func() string
	maxEpisodes  func() int
	isSubscribed func(string) bool
}

// NewClient builds a Client from cfg, filling unset fields with defaults.
func NewClient(cfg ClientConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: queryTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	head := &http.Client{Timeout: headTimeout, Transport: hc.Transport}
	c := &Client{
		endpoint:     endpoint,
		http:         hc,
		head:         head,
		limiter:      rate.NewLimiter(2, 4),
		userAgent:    cfg.UserAgent,
		maxEpisodes:  cfg.MaxEpisodes,
		isSubscribed: cfg.IsSubscribed,
	}
	if c.userAgent == nil {
		c.userAgent = func() string { return "" }
	}
	if c.maxEpisodes == nil {
		c.maxEpisodes = func() int { return 25 }
	}
	if c.isSubscribed == nil {
		c.isSubscribed = func(string) bool { return false }
	}
	return c
}

// graphqlRequest is the POST body for one query.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the generic envelope; Data is decoded per query.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// query runs one GraphQL query and decodes its data payload into out.
// It blocks up to the 30-second query deadline; a GraphQL-level error,
// null data, transport failure, or timeout all come back as *RemoteError.
func (c *Client) query(ctx context.Context, op, query string, variables map[string]any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if ua := c.userAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("query timed out after %v", queryTimeout)
		}
		return &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &RemoteError{Op: op, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	var envelope graphqlResponse
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return &RemoteError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			msgs[i] = e.Message
		}
		return &RemoteError{Op: op, Err: fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))}
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return &RemoteError{Op: op, Err: errors.New("graphql: null data")}
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &RemoteError{Op: op, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}
