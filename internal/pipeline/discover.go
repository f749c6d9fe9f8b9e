package pipeline

import (
	"context"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/pkg/peoplesearch"
)

// discover queries the people-search provider and merges the best
// candidate into the result, respecting the append-only invariant.
func (p *Pipeline) discover(ctx context.Context, r *model.EnrichmentResult) (string, error) {
	if r.Lead.FullName() == "" && r.Phone == "" && r.Email == "" {
		return "no name or contact fragment to search on", nil
	}

	q := peoplesearch.Query{
		FirstName: r.Lead.FirstName,
		LastName:  r.Lead.LastName,
		City:      r.City,
		State:     r.State,
		Phone:     r.Phone,
		Email:     r.Email,
	}

	resp, err := callProvider(ctx, p, peoplesearch.ProviderKey, model.StageDiscover,
		func(ctx context.Context) (*peoplesearch.SearchResponse, error) {
			return p.people.Search(ctx, q)
		})
	if err != nil {
		return "", err
	}

	best := bestCandidate(resp.Candidates)
	if best == nil {
		return "no candidates matched", nil
	}

	profile := model.Profile{}
	if len(best.Phones) > 0 {
		profile.Phone = cleanPhone(best.Phones[0])
	}
	if len(best.Emails) > 0 {
		profile.Email = best.Emails[0]
	}
	if len(best.Addresses) > 0 {
		addr := best.Addresses[0]
		profile.StreetAddress = addr.Street
		profile.City = addr.City
		profile.State = addr.State
		profile.PostalCode = addr.PostalCode
	}
	r.MergeProfile(profile)

	return "", nil
}

// bestCandidate picks the highest-scoring candidate that contributes at
// least one contact field.
func bestCandidate(candidates []peoplesearch.Candidate) *peoplesearch.Candidate {
	var best *peoplesearch.Candidate
	for i := range candidates {
		c := &candidates[i]
		if len(c.Phones) == 0 && len(c.Emails) == 0 && len(c.Addresses) == 0 {
			continue
		}
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	return best
}
