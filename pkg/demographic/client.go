// Package demographic provides access to the age/demographic enrichment
// provider: given a name and contact fragment, it returns an estimated age
// or date of birth.
package demographic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api.demodata.io/v1"
	defaultTimeout = 30 * time.Second

	// ProviderKey identifies this provider to the rate limiter.
	ProviderKey = "demographic"
)

// Client performs demographic lookups.
type Client interface {
	Lookup(ctx context.Context, q Query) (*LookupResponse, error)
}

// Query is the request body for POST /person/demographics.
type Query struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// LookupResponse is the response from POST /person/demographics. Age is
// zero and DOB empty when the provider found no match.
type LookupResponse struct {
	Age     int     `json:"age"`
	DOB     string  `json:"dob,omitempty"`
	Matched bool    `json:"matched"`
	Score   float64 `json:"score,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a demographic API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, q Query) (*LookupResponse, error) {
	if q.FirstName == "" && q.LastName == "" && q.Phone == "" {
		return nil, resilience.NewValidationError(eris.New("demographic: need a name or phone"))
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, eris.Wrap(err, "demographic: marshal query")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/person/demographics", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "demographic: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "demographic: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "demographic: read response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resilience.NewRateLimitError(
			eris.Errorf("demographic: quota exceeded: %s", string(respBody)), ProviderKey)
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.NewProviderError(
			eris.Errorf("demographic: unexpected status %d: %s", resp.StatusCode, string(respBody)),
			ProviderKey, resp.StatusCode)
	}

	var result LookupResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, resilience.NewProviderError(
			eris.Wrap(err, "demographic: unmarshal response"), ProviderKey, resp.StatusCode)
	}

	return &result, nil
}
