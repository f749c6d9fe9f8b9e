// Package peoplesearch provides access to the people-search provider:
// given a name and/or an existing contact fragment, it returns candidate
// profiles with optional phone/email/address fields.
package peoplesearch

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
	defaultBaseURL = "https://api.peoplesearch.io/v2"
	defaultTimeout = 30 * time.Second

	// ProviderKey identifies this provider to the rate limiter.
	ProviderKey = "peoplesearch"
)

// Client performs person searches.
type Client interface {
	Search(ctx context.Context, q Query) (*SearchResponse, error)
}

// Query is the request body for POST /person/search.
type Query struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Candidate is a single matched profile. All fields are optional.
type Candidate struct {
	Phones    []string  `json:"phones"`
	Emails    []string  `json:"emails"`
	Addresses []Address `json:"addresses"`
	Score     float64   `json:"score"`
}

// Address is a postal address attached to a candidate.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// SearchResponse is the response from POST /person/search.
type SearchResponse struct {
	Candidates []Candidate `json:"candidates"`
	Count      int         `json:"count"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
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

// NewClient creates a people-search API client.
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

func (c *httpClient) Search(ctx context.Context, q Query) (*SearchResponse, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, eris.Wrap(err, "peoplesearch: marshal query")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/person/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "peoplesearch: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "peoplesearch: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "peoplesearch: read response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resilience.NewRateLimitError(
			eris.Errorf("peoplesearch: quota exceeded: %s", string(respBody)), ProviderKey)
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.NewProviderError(
			eris.Errorf("peoplesearch: unexpected status %d: %s", resp.StatusCode, string(respBody)),
			ProviderKey, resp.StatusCode)
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, resilience.NewProviderError(
			eris.Wrap(err, "peoplesearch: unmarshal response"), ProviderKey, resp.StatusCode)
	}

	return &result, nil
}
