// Package phoneintel provides access to the phone-intelligence provider:
// given a phone number, it returns a line-type classification and the
// carrier of record.
package phoneintel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api.phoneintel.com/v1"
	defaultTimeout = 20 * time.Second

	// ProviderKey identifies this provider to the rate limiter.
	ProviderKey = "phoneintel"
)

// Client performs phone line-type and carrier lookups.
type Client interface {
	Lookup(ctx context.Context, phone string) (*LookupResponse, error)
}

// LookupResponse is the response from GET /lookup.
type LookupResponse struct {
	Phone    string `json:"phone"`
	LineType string `json:"line_type"`
	Carrier  string `json:"carrier"`
	Valid    bool   `json:"valid"`
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

// NewClient creates a phone-intelligence API client.
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

func (c *httpClient) Lookup(ctx context.Context, phone string) (*LookupResponse, error) {
	if phone == "" {
		return nil, resilience.NewValidationError(eris.New("phoneintel: empty phone"))
	}

	q := url.Values{"phone": {phone}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/lookup?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "phoneintel: create request")
	}
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "phoneintel: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "phoneintel: read response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resilience.NewRateLimitError(
			eris.Errorf("phoneintel: quota exceeded: %s", string(respBody)), ProviderKey)
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.NewProviderError(
			eris.Errorf("phoneintel: unexpected status %d: %s", resp.StatusCode, string(respBody)),
			ProviderKey, resp.StatusCode)
	}

	var result LookupResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, resilience.NewProviderError(
			eris.Wrap(err, "phoneintel: unmarshal response"), ProviderKey, resp.StatusCode)
	}

	return &result, nil
}
