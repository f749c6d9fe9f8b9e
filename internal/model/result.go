package model

import "time"

// StageError records a non-fatal failure from one pipeline stage. Stage
// errors accumulate on the result instead of failing the record, so a
// briefly unavailable provider degrades one field rather than the lead.
type StageError struct {
	Stage     string    `json:"stage"`
	Provider  string    `json:"provider,omitempty"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	At        time.Time `json:"at"`
}

// EnrichmentResult accumulates enrichment output for one lead across the
// pipeline stages. All enrichment fields are optional-until-populated and
// append-only: once a stage sets a field, a later stage must never clear it
// or overwrite it with an empty value. Mutation goes through the Set*/Merge
// helpers, which enforce that invariant.
type EnrichmentResult struct {
	Lead LeadRecord `json:"lead"`

	Phone         string   `json:"phone,omitempty"`
	Email         string   `json:"email,omitempty"`
	StreetAddress string   `json:"street_address,omitempty"`
	City          string   `json:"city,omitempty"`
	State         string   `json:"state,omitempty"`
	PostalCode    string   `json:"postal_code,omitempty"`
	LineType      LineType `json:"line_type,omitempty"`
	Carrier       string   `json:"carrier,omitempty"`
	Age           int      `json:"age,omitempty"`
	DOB           string   `json:"dob,omitempty"`
	DoNotCall     *bool    `json:"do_not_call,omitempty"`
	DNCReason     string   `json:"dnc_reason,omitempty"`

	Stages      []StageOutcome `json:"stages,omitempty"`
	StageErrors []StageError   `json:"stage_errors,omitempty"`
	EnrichedAt  time.Time      `json:"enriched_at,omitempty"`
}

// NewEnrichmentResult seeds a result with whatever contact fields the lead
// already carries.
func NewEnrichmentResult(lead LeadRecord) *EnrichmentResult {
	return &EnrichmentResult{
		Lead:  lead,
		Phone: lead.Phone,
		Email: lead.Email,
		City:  lead.City,
		State: lead.State,
	}
}

// setIfEmpty assigns v to dst only when dst is empty and v is not.
func setIfEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

// SetPhone populates the phone if not already set.
func (r *EnrichmentResult) SetPhone(phone string) { setIfEmpty(&r.Phone, phone) }

// SetEmail populates the email if not already set.
func (r *EnrichmentResult) SetEmail(email string) { setIfEmpty(&r.Email, email) }

// SetLineType populates the line type if not already set.
func (r *EnrichmentResult) SetLineType(lt LineType) {
	if r.LineType == "" && lt != "" {
		r.LineType = lt
	}
}

// SetCarrier populates the carrier name if not already set.
func (r *EnrichmentResult) SetCarrier(carrier string) { setIfEmpty(&r.Carrier, carrier) }

// SetAge populates the estimated age if not already set.
func (r *EnrichmentResult) SetAge(age int) {
	if r.Age == 0 && age > 0 {
		r.Age = age
	}
}

// SetDOB populates the date of birth if not already set.
func (r *EnrichmentResult) SetDOB(dob string) { setIfEmpty(&r.DOB, dob) }

// SetDoNotCall records the DNC verdict. The first verdict wins; a later
// stage cannot flip a record back to contactable.
func (r *EnrichmentResult) SetDoNotCall(dnc bool, reason string) {
	if r.DoNotCall == nil {
		r.DoNotCall = &dnc
		r.DNCReason = reason
	}
}

// Profile is the subset of contact fields a people-search candidate can
// contribute to a result.
type Profile struct {
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	StreetAddress string `json:"street_address,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
}

// MergeProfile folds a discovered profile into the result, filling only
// fields that are still empty.
func (r *EnrichmentResult) MergeProfile(p Profile) {
	setIfEmpty(&r.Phone, p.Phone)
	setIfEmpty(&r.Email, p.Email)
	setIfEmpty(&r.StreetAddress, p.StreetAddress)
	setIfEmpty(&r.City, p.City)
	setIfEmpty(&r.State, p.State)
	setIfEmpty(&r.PostalCode, p.PostalCode)
}

// AddStageError appends a non-fatal stage failure.
func (r *EnrichmentResult) AddStageError(stage, provider, msg string, retryable bool) {
	r.StageErrors = append(r.StageErrors, StageError{
		Stage:     stage,
		Provider:  provider,
		Message:   msg,
		Retryable: retryable,
		At:        time.Now().UTC(),
	})
}

// HasPhone reports whether a usable phone has been discovered.
func (r *EnrichmentResult) HasPhone() bool { return r.Phone != "" }

// Complete reports whether the record carries the full required field set:
// phone, age, state, and postal code.
func (r *EnrichmentResult) Complete() bool {
	return r.Phone != "" && r.Age > 0 && r.State != "" && r.PostalCode != ""
}
