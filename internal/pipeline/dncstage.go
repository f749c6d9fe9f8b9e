package pipeline

import (
	"context"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/pkg/dnc"
)

// checkDNC runs the do-not-call check with a cached bearer token. A 401/403
// from the provider invalidates the cache and retries exactly once with a
// freshly acquired token before giving up.
func (p *Pipeline) checkDNC(ctx context.Context, r *model.EnrichmentResult) (string, error) {
	if !r.HasPhone() {
		return "no phone to check", nil
	}

	check := func(forceRefresh bool) (*dnc.CheckResponse, error) {
		token, err := p.tokens.GetToken(ctx, forceRefresh)
		if err != nil {
			return nil, err
		}
		return callProvider(ctx, p, dnc.ProviderKey, model.StageDNC,
			func(ctx context.Context) (*dnc.CheckResponse, error) {
				return p.dnc.Check(ctx, token, r.Phone)
			})
	}

	resp, err := check(false)
	if err != nil && resilience.IsAuth(err) {
		p.tokens.Invalidate()
		resp, err = check(true)
	}
	if err != nil {
		return "", err
	}

	r.SetDoNotCall(resp.DoNotCall, resp.Reason)
	return "", nil
}
