package model

import "strings"

// LineType classifies a phone number by the kind of line it terminates on.
type LineType string

const (
	LineTypeMobile   LineType = "mobile"
	LineTypeLandline LineType = "landline"
	LineTypeVoIP     LineType = "voip"
	LineTypeTollFree LineType = "toll_free"
	LineTypeUnknown  LineType = "unknown"
)

// ParseLineType normalizes a provider-reported line type string. Providers
// disagree on spelling ("Voip", "VOIP", "NonFixedVoIP"), so matching is
// case-insensitive and substring-based for the VoIP family.
func ParseLineType(s string) LineType {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch {
	case lower == "":
		return LineTypeUnknown
	case strings.Contains(lower, "voip"):
		return LineTypeVoIP
	case strings.Contains(lower, "mobile"), strings.Contains(lower, "wireless"), lower == "cell":
		return LineTypeMobile
	case strings.Contains(lower, "landline"), strings.Contains(lower, "fixed"):
		return LineTypeLandline
	case strings.Contains(lower, "toll"):
		return LineTypeTollFree
	default:
		return LineTypeUnknown
	}
}

// LeadRecord is a raw contact record as supplied by the caller. It is the
// immutable input to the pipeline; enrichment produces a derived
// EnrichmentResult and never mutates the lead in place.
type LeadRecord struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	RawName   string `json:"raw_name,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// FullName returns the best available display name for the lead.
func (l LeadRecord) FullName() string {
	if l.FirstName != "" || l.LastName != "" {
		return strings.TrimSpace(l.FirstName + " " + l.LastName)
	}
	return strings.TrimSpace(l.RawName)
}
