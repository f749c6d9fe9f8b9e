// Package dnc provides access to the do-not-call provider. The check
// endpoint requires a bearer token issued by the provider's own token
// endpoint (see TokenClient); an expired token surfaces as an AuthError so
// the caller can refresh and retry.
package dnc

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
	defaultBaseURL = "https://api.dncregistry.net/v1"
	defaultTimeout = 30 * time.Second

	// ProviderKey identifies this provider to the rate limiter.
	ProviderKey = "dnc"
)

// Client performs do-not-call checks.
type Client interface {
	Check(ctx context.Context, token, phone string) (*CheckResponse, error)
}

// CheckResponse is the response from GET /check.
type CheckResponse struct {
	Phone     string `json:"phone"`
	DoNotCall bool   `json:"do_not_call"`
	Reason    string `json:"reason,omitempty"`
	CheckedAt string `json:"checked_at,omitempty"`
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
	baseURL string
	http    *http.Client
}

// NewClient creates a DNC check client. Authentication is per call: the
// bearer token comes from the caller, which holds it in a token cache.
func NewClient(opts ...Option) Client {
	c := &httpClient{
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

func (c *httpClient) Check(ctx context.Context, token, phone string) (*CheckResponse, error) {
	if phone == "" {
		return nil, resilience.NewValidationError(eris.New("dnc: empty phone"))
	}

	q := url.Values{"phone": {phone}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/check?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "dnc: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "dnc: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "dnc: read response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, resilience.NewAuthError(
			eris.Errorf("dnc: auth rejected with status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resilience.NewRateLimitError(
			eris.Errorf("dnc: quota exceeded: %s", string(respBody)), ProviderKey)
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.NewProviderError(
			eris.Errorf("dnc: unexpected status %d: %s", resp.StatusCode, string(respBody)),
			ProviderKey, resp.StatusCode)
	}

	var result CheckResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, resilience.NewProviderError(
			eris.Wrap(err, "dnc: unmarshal response"), ProviderKey, resp.StatusCode)
	}

	return &result, nil
}
