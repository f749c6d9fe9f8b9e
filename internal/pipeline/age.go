package pipeline

import (
	"context"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/pkg/demographic"
)

// lookupAge fills in estimated age or date of birth from the demographic
// provider.
func (p *Pipeline) lookupAge(ctx context.Context, r *model.EnrichmentResult) (string, error) {
	q := demographic.Query{
		FirstName: r.Lead.FirstName,
		LastName:  r.Lead.LastName,
		City:      r.City,
		State:     r.State,
		Phone:     r.Phone,
	}
	if q.FirstName == "" && q.LastName == "" && q.Phone == "" {
		return "no name or phone to look up", nil
	}

	resp, err := callProvider(ctx, p, demographic.ProviderKey, model.StageAge,
		func(ctx context.Context) (*demographic.LookupResponse, error) {
			return p.demographic.Lookup(ctx, q)
		})
	if err != nil {
		return "", err
	}

	if !resp.Matched {
		return "no demographic match", nil
	}
	r.SetAge(resp.Age)
	r.SetDOB(resp.DOB)
	return "", nil
}
