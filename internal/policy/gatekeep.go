// Package policy decides whether a partially enriched record is worth the
// paid downstream stages. The do-not-call check and the demographic lookup
// are billed per call; filtering out numbers that are structurally unlikely
// to be real, reachable mobile lines is the main cost control of the whole
// pipeline.
package policy

import (
	"strings"

	"github.com/sells-group/enrich-cli/internal/model"
)

// DisposableCarriers is the default denylist of virtual and disposable
// carrier names. Matching is case-insensitive substring.
var DisposableCarriers = []string{
	"google voice",
	"textnow",
	"text now",
	"pinger",
	"twilio",
	"bandwidth.com",
	"bandwidth,",
	"onvoy",
	"talkatone",
	"textfree",
	"ultra mobile",
	"telnyx",
	"enflick",
	"ipkall",
	"level 3",
}

// Decision is the gatekeep verdict with its observable reason.
type Decision struct {
	Proceed bool   `json:"proceed"`
	Reason  string `json:"reason"`
}

// Gatekeep holds the carrier denylist. The zero value is unusable; use New.
type Gatekeep struct {
	denylist []string
}

// New creates a gatekeep policy. Extra entries extend the built-in
// disposable-carrier denylist.
func New(extraCarriers ...string) *Gatekeep {
	denylist := make([]string, 0, len(DisposableCarriers)+len(extraCarriers))
	for _, c := range DisposableCarriers {
		denylist = append(denylist, strings.ToLower(c))
	}
	for _, c := range extraCarriers {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			denylist = append(denylist, c)
		}
	}
	return &Gatekeep{denylist: denylist}
}

// Decide inspects the accumulated result and returns whether the costlier
// downstream stages should run. Pure function: no I/O, no side effects.
// Rules apply in order, first match wins.
func (g *Gatekeep) Decide(r *model.EnrichmentResult) Decision {
	if !r.HasPhone() {
		return Decision{Proceed: false, Reason: "no phone"}
	}
	if r.LineType == model.LineTypeVoIP {
		return Decision{Proceed: false, Reason: "voip line"}
	}
	if carrier := strings.ToLower(r.Carrier); carrier != "" {
		for _, deny := range g.denylist {
			if strings.Contains(carrier, deny) {
				return Decision{Proceed: false, Reason: "disposable carrier: " + deny}
			}
		}
	}
	return Decision{Proceed: true, Reason: "ok"}
}
