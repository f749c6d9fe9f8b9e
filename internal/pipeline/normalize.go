package pipeline

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/enrich-cli/internal/geo"
	"github.com/sells-group/enrich-cli/internal/model"
)

var titleCaser = cases.Title(language.AmericanEnglish)

// normalize derives clean first/last name and city/state from the raw
// record. Local transformation only.
func (p *Pipeline) normalize(r *model.EnrichmentResult) {
	first := strings.TrimSpace(r.Lead.FirstName)
	last := strings.TrimSpace(r.Lead.LastName)

	if first == "" && last == "" {
		first, last = splitName(r.Lead.RawName)
	}

	r.Lead.FirstName = titleCaser.String(strings.ToLower(first))
	r.Lead.LastName = titleCaser.String(strings.ToLower(last))
	r.City = titleCaser.String(strings.ToLower(strings.TrimSpace(r.City)))
	r.State = strings.ToUpper(strings.TrimSpace(r.State))
	r.Phone = cleanPhone(r.Phone)
}

// splitName handles "First Last", "First Middle Last", and "Last, First".
func splitName(raw string) (first, last string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	if comma := strings.Index(raw, ","); comma >= 0 {
		last = strings.TrimSpace(raw[:comma])
		rest := strings.Fields(raw[comma+1:])
		if len(rest) > 0 {
			first = rest[0]
		}
		return first, last
	}

	fields := strings.Fields(raw)
	switch len(fields) {
	case 1:
		return fields[0], ""
	default:
		return fields[0], fields[len(fields)-1]
	}
}

// cleanPhone strips formatting and a leading US country code, keeping the
// ten-digit national number. Anything that does not reduce to ten digits
// passes through untouched for the phone-intelligence stage to judge.
func cleanPhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) == 10 {
		return d
	}
	return phone
}

// resolvePostal fills the postal code from the local city/state table.
func (p *Pipeline) resolvePostal(r *model.EnrichmentResult) (skipReason string) {
	if r.PostalCode != "" {
		return "postal code already present"
	}
	if r.City == "" || r.State == "" {
		return "no city/state"
	}
	zip, ok := geo.Lookup(r.City, r.State)
	if !ok {
		return "city/state not in local table"
	}
	r.PostalCode = zip
	return ""
}
