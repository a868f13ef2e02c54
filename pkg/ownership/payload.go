package ownership

import (
	"time"

	"github.com/lemma-health/go-onboarding/pkg/catalog"
	"github.com/lemma-health/go-onboarding/pkg/entity"
	"github.com/lemma-health/go-onboarding/pkg/fields"
)

// TermsURL is the agreement document referenced in every submission.
const TermsURL = "https://lemma.health/terms"

// identificationMethodSSN is the only identification method the partner
// accepts for US individuals.
const identificationMethodSSN = "social_security_number"

// Payload is the legal-entity submission body in the partner's wire shape.
type Payload struct {
	Structure       string           `json:"structure"`
	Corporation     Corporation      `json:"corporation"`
	TermsAgreements []TermsAgreement `json:"terms_agreements,omitempty"`
}

// Corporation is the entity-level section of the payload.
type Corporation struct {
	Name             string           `json:"name"`
	TaxIdentifier    string           `json:"tax_identifier"`
	Website          string           `json:"website,omitempty"`
	IndustryCode     string           `json:"industry_code,omitempty"`
	Address          Address          `json:"address"`
	BeneficialOwners []OwnerDisclosure `json:"beneficial_owners"`
}

// Address is a postal address in the partner's wire shape. The partner only
// expects a country on individual addresses; corporation addresses omit it.
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country,omitempty"`
}

// OwnerDisclosure is one verified individual with their compliance prongs.
type OwnerDisclosure struct {
	CompanyTitle string     `json:"company_title,omitempty"`
	Individual   Individual `json:"individual"`
	Prongs       []string   `json:"prongs"`
}

// Individual carries the personal details the partner verifies.
type Individual struct {
	Name           string         `json:"name"`
	DateOfBirth    string         `json:"date_of_birth"`
	Address        Address        `json:"address"`
	Identification Identification `json:"identification"`
}

// Identification is the taxpayer identity block for an individual.
type Identification struct {
	Method string `json:"method"`
	Number string `json:"number"`
}

// TermsAgreement records acceptance of the terms document.
type TermsAgreement struct {
	AgreedAt  string `json:"agreed_at"`
	IPAddress string `json:"ip_address"`
	TermsURL  string `json:"terms_url"`
}

// BuildPayload assembles the submission body from a completed record. The
// tax identifier prefers the EIN and falls back to empty when an SS-4 letter
// substituted for it; industry codes resolve through the NAICS catalog so
// catalog keys and raw codes both serialize as codes.
func BuildPayload(rec entity.Record) Payload {
	corp := Corporation{
		Name:          rec.BusinessProfile.LegalBusinessName,
		TaxIdentifier: fields.StripNonDigits(rec.BusinessProfile.EIN),
		Website:       rec.BusinessProfile.Website,
		IndustryCode:  catalog.ResolveNaicsCode(rec.BusinessProfile.NaicsCode),
		Address:       wireAddress(rec.BusinessProfile.Address),
	}

	for _, holder := range Aggregate(rec) {
		disclosure := OwnerDisclosure{
			Individual: Individual{
				Name:        holder.Person.Name,
				DateOfBirth: holder.Person.DateOfBirth.Format("2006-01-02"),
				Address:     individualAddress(holder.Person.Address),
				Identification: Identification{
					Method: identificationMethodSSN,
					Number: fields.StripNonDigits(holder.Person.SSN),
				},
			},
		}
		if holder.HasProng(entity.ProngControl) {
			disclosure.CompanyTitle = holder.Person.Title
		}
		for _, p := range holder.Prongs {
			disclosure.Prongs = append(disclosure.Prongs, string(p))
		}
		corp.BeneficialOwners = append(corp.BeneficialOwners, disclosure)
	}

	payload := Payload{
		Structure:   "corporation",
		Corporation: corp,
	}

	iv := rec.IdentityVerification
	if iv.TermsAccepted {
		agreedAt := iv.TermsAcceptedAt
		if agreedAt.IsZero() {
			agreedAt = time.Now().UTC()
		}
		payload.TermsAgreements = append(payload.TermsAgreements, TermsAgreement{
			AgreedAt:  agreedAt.UTC().Format(time.RFC3339),
			IPAddress: iv.TermsIPAddress,
			TermsURL:  TermsURL,
		})
	}

	return payload
}

func wireAddress(a fields.Address) Address {
	return Address{
		Line1: a.Line1,
		Line2: a.Line2,
		City:  a.City,
		State: a.State,
		Zip:   a.Zip,
	}
}

func individualAddress(a fields.Address) Address {
	addr := wireAddress(a)
	addr.Country = "US"
	return addr
}
