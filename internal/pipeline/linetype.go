package pipeline

import (
	"context"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/pkg/phoneintel"
)

// validateLine resolves line type and carrier for the discovered phone.
// Skipped entirely when discovery produced no phone.
func (p *Pipeline) validateLine(ctx context.Context, r *model.EnrichmentResult) (string, error) {
	if !r.HasPhone() {
		return "no phone discovered", nil
	}

	resp, err := callProvider(ctx, p, phoneintel.ProviderKey, model.StageLineType,
		func(ctx context.Context) (*phoneintel.LookupResponse, error) {
			return p.phone.Lookup(ctx, r.Phone)
		})
	if err != nil {
		return "", err
	}

	r.SetLineType(model.ParseLineType(resp.LineType))
	r.SetCarrier(resp.Carrier)
	return "", nil
}
