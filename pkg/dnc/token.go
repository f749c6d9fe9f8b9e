package dnc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

// TokenClient exchanges the long-lived refresh credential for a short-lived
// bearer token at the provider's token endpoint. It implements the token
// cache's Issuer interface.
type TokenClient struct {
	baseURL      string
	clientID     string
	refreshToken string
	http         *http.Client
}

// TokenOption configures the token client.
type TokenOption func(*TokenClient)

// WithTokenBaseURL overrides the default token endpoint base URL.
func WithTokenBaseURL(u string) TokenOption {
	return func(c *TokenClient) { c.baseURL = u }
}

// WithTokenHTTPClient overrides the default http.Client.
func WithTokenHTTPClient(hc *http.Client) TokenOption {
	return func(c *TokenClient) { c.http = hc }
}

// NewTokenClient creates a token issuer client for the DNC provider.
func NewTokenClient(clientID, refreshToken string, opts ...TokenOption) *TokenClient {
	c := &TokenClient{
		baseURL:      defaultBaseURL,
		clientID:     clientID,
		refreshToken: refreshToken,
		http: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// tokenResponse is the response from POST /oauth/token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Exchange trades the refresh credential for a fresh bearer token. The
// returned duration is zero when the upstream omits expires_in.
func (c *TokenClient) Exchange(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"refresh_token": {c.refreshToken},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, eris.Wrap(err, "dnc: create token request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", 0, eris.Wrap(err, "dnc: send token request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, eris.Wrap(err, "dnc: read token response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, resilience.NewAuthError(
			eris.Errorf("dnc: token exchange failed with status %d: %s", resp.StatusCode, string(respBody)),
			resp.StatusCode)
	}

	var result tokenResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", 0, resilience.NewAuthError(
			eris.Wrap(err, "dnc: unmarshal token response"), resp.StatusCode)
	}
	if result.AccessToken == "" {
		return "", 0, resilience.NewAuthError(
			eris.New("dnc: token response missing access_token"), resp.StatusCode)
	}

	return result.AccessToken, time.Duration(result.ExpiresIn) * time.Second, nil
}
