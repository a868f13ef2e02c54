// Package entity defines the submission record the onboarding workflow owns:
// the legal-entity profile, the people holding control and ownership roles,
// and the identity-verification metadata attached at review time.
package entity

import (
	"time"

	"github.com/lemma-health/go-onboarding/pkg/fields"
)

// NPIType distinguishes the National Provider Identifier sub-types.
type NPIType string

const (
	// NPITypeOrganization is a Type 2 (group practice) NPI.
	NPITypeOrganization NPIType = "type2"
	// NPITypeIndividual is a Type 1 (personal) NPI.
	NPITypeIndividual NPIType = "type1"
)

// Prong is a compliance role tag attached to a verified individual.
type Prong string

const (
	ProngControl   Prong = "control"
	ProngOwnership Prong = "ownership"
)

// BusinessProfile carries the entity-level attributes collected across the
// organization steps. EIN and SS4FileKey are mutually substitutable: at least
// one must be present before the details step can be left.
type BusinessProfile struct {
	LegalBusinessName  string         `json:"legalBusinessName"`
	EIN                string         `json:"ein"`
	Website            string         `json:"website"`
	NaicsCode          string         `json:"naicsCode"`
	IncorporationState string         `json:"incorporationState"`
	OrganizationType   string         `json:"organizationType"`
	SS4FileKey         string         `json:"ss4FileKey,omitempty"`
	PracticeNPI        string         `json:"practiceNpi"`
	IndividualNPI      string         `json:"individualNpi"`
	NPIType            NPIType        `json:"npiType"`
	BusinessEmail      string         `json:"businessEmail"`
	BusinessPhone      string         `json:"businessPhone"`
	Address            fields.Address `json:"address"`
}

// NPI returns the identifier matching the selected sub-type.
func (p BusinessProfile) NPI() string {
	if p.NPIType == NPITypeIndividual {
		return p.IndividualNPI
	}
	return p.PracticeNPI
}

// PersonRecord is one verified individual. SSN is stored as entered; digit
// normalization happens at validation and serialization time.
type PersonRecord struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	DateOfBirth time.Time      `json:"dateOfBirth"`
	SSN         string         `json:"ssn"`
	Address     fields.Address `json:"address"`
}

// IdentityVerification is the terms-acceptance metadata recorded at review.
type IdentityVerification struct {
	TermsAccepted   bool      `json:"termsAccepted"`
	TermsAcceptedAt time.Time `json:"termsAcceptedAt,omitempty"`
	TermsIPAddress  string    `json:"termsIpAddress,omitempty"`
}

// Record aggregates everything a submission needs. The workflow machine owns
// the live Record; it becomes immutable once Complete is set.
type Record struct {
	BusinessProfile           BusinessProfile      `json:"businessProfile"`
	ControlPerson             PersonRecord         `json:"controlPerson"`
	ControlPersonOwnsBusiness bool                 `json:"controlPersonOwnsBusiness"`
	BeneficialOwners          []PersonRecord       `json:"beneficialOwners"`
	IdentityVerification      IdentityVerification `json:"identityVerification"`
	Complete                  bool                 `json:"complete"`
}

// OwnerCount is the number of role-holders counted against the ownership
// cap: each listed beneficial owner plus the control person when they also
// own a qualifying share.
func (r Record) OwnerCount() int {
	n := len(r.BeneficialOwners)
	if r.ControlPersonOwnsBusiness {
		n++
	}
	return n
}

// FindOwner returns the beneficial owner with the given ID.
func (r Record) FindOwner(id string) (PersonRecord, bool) {
	for _, owner := range r.BeneficialOwners {
		if owner.ID == id {
			return owner, true
		}
	}
	return PersonRecord{}, false
}
