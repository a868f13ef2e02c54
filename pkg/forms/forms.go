// Package forms declares the field rows for each onboarding step. Every
// function returns fresh rows so callers can decorate options (for example,
// disabling restricted organization types) without mutating shared state.
package forms

import (
	"github.com/lemma-health/go-onboarding/pkg/catalog"
	"github.com/lemma-health/go-onboarding/pkg/fields"
)

// Well-known field keys shared between steps, schemas, and payload assembly.
const (
	KeyLegalBusinessName  = "legalBusinessName"
	KeyWebsite            = "url"
	KeyNaicsCode          = "naicsCode"
	KeyOrganizationType   = "organizationType"
	KeyIncorporationState = "incorporationState"
	KeyEIN                = "ein"
	KeyPracticeNPI        = "practiceNpi"
	KeyIndividualNPI      = "individualNpi"
	KeyBusinessAddress    = "address"
	KeyBusinessEmail      = "businessEmail"
	KeyBusinessPhone      = "businessPhone"
	KeyPersonName         = "name"
	KeyPersonTitle        = "title"
	KeyDateOfBirth        = "dateOfBirth"
	KeySSN                = "ssn"
	KeyPersonAddress      = "address"
)

// ProfileRows describes the organization-profile step. The organization-type
// options reflect incorporationState: structures restricted there render
// disabled.
func ProfileRows(incorporationState string) []fields.Row {
	return []fields.Row{
		{{
			Kind:        fields.KindText,
			Key:         KeyLegalBusinessName,
			Label:       "Organization Name",
			Placeholder: "Acme Healthcare Inc.",
			Required:    true,
		}},
		{{
			Kind:        fields.KindURL,
			Key:         KeyWebsite,
			Label:       "Website",
			Placeholder: "https://example.com",
		}},
		{{
			Kind:        fields.KindDropdown,
			Key:         KeyNaicsCode,
			Label:       "Type",
			Options:     catalog.NaicsOptions(),
			Required:    true,
			Placeholder: "Search for your type...",
		}},
		{{
			Kind:        fields.KindDropdown,
			Key:         KeyOrganizationType,
			Label:       "Organization Structure",
			Options:     catalog.OrganizationTypeOptions(incorporationState),
			Required:    true,
			Placeholder: "Select your organization structure...",
		}},
	}
}

// DetailsBaseRows describes the state and tax-ID portion of the
// organization-details step. EIN requiredness is relaxed by the workflow when
// an SS-4 confirmation letter has been uploaded instead.
func DetailsBaseRows() []fields.Row {
	return []fields.Row{
		{{
			Kind:        fields.KindDropdown,
			Key:         KeyIncorporationState,
			Label:       "State of Incorporation",
			Options:     catalog.StateOptions(),
			Required:    true,
			Placeholder: "Select a state",
		}},
		{{
			Kind:        fields.KindText,
			Key:         KeyEIN,
			Label:       "Tax ID (EIN)",
			Placeholder: "12-3456789",
			Format:      fields.FormatEIN,
			Required:    true,
			Description: "This must match the IRS SS-4 letter for your practice.",
		}},
	}
}

// OrgNPIRows is the organizational (Type 2) NPI field.
func OrgNPIRows() []fields.Row {
	return []fields.Row{
		{{
			Kind:        fields.KindText,
			Key:         KeyPracticeNPI,
			Label:       "Organizational NPI (Type 2)",
			Placeholder: "1234567890",
			Format:      fields.FormatNPI,
			Required:    true,
			Description: "This is the 10-digit National Provider Identifier assigned to your group practice or organization. Do not use your personal (Type 1) NPI.",
		}},
	}
}

// IndividualNPIRows is the individual (Type 1) NPI field, selectable by sole
// proprietors without an organizational NPI.
func IndividualNPIRows() []fields.Row {
	return []fields.Row{
		{{
			Kind:        fields.KindText,
			Key:         KeyIndividualNPI,
			Label:       "Individual NPI (Type 1)",
			Placeholder: "1234567890",
			Format:      fields.FormatNPI,
			Required:    true,
			Description: "Your personal 10-digit Individual NPI.",
		}},
	}
}

// ContactRows describes the organization-contact step.
func ContactRows() []fields.Row {
	return []fields.Row{
		{{
			Kind:        fields.KindAddress,
			Key:         KeyBusinessAddress,
			Label:       "Address",
			Required:    true,
			Description: "Physical street addresses only. P.O. Boxes are not permitted by our banking partner.",
		}},
		{{
			Kind:        fields.KindEmail,
			Key:         KeyBusinessEmail,
			Label:       "Business email",
			Placeholder: "contact@yourpractice.com",
			Required:    true,
		}},
		{{
			Kind:        fields.KindText,
			Key:         KeyBusinessPhone,
			Label:       "Business phone number",
			Format:      fields.FormatPhone,
			Placeholder: "(555) 123-4567",
			Required:    true,
		}},
	}
}

// LeadershipRows describes the control-person step. Date of birth carries the
// minimum-age constraint; title is optional.
func LeadershipRows() []fields.Row {
	return []fields.Row{
		{{
			Kind:        fields.KindText,
			Key:         KeyPersonName,
			Label:       "Legal name",
			Placeholder: "Full legal name",
			Required:    true,
		}},
		{{
			Kind:        fields.KindText,
			Key:         KeyPersonTitle,
			Label:       "Title",
			Placeholder: "e.g. CEO, President, Managing Director",
		}},
		{
			{
				Kind:     fields.KindDate,
				Key:      KeyDateOfBirth,
				Label:    "Date of birth",
				Required: true,
				MinAge:   18,
			},
			{
				Kind:        fields.KindText,
				Key:         KeySSN,
				Label:       "Tax ID (SSN or ITIN)",
				Format:      fields.FormatSSN,
				Placeholder: "123-45-6789",
				Required:    true,
			},
		},
		{{
			Kind: fields.KindBanner,
			Key:  "ssn-notice",
			Text: "Your SSN is encrypted and used only for identity verification. It will not affect your credit score.",
		}},
		{{
			Kind:     fields.KindAddress,
			Key:      KeyPersonAddress,
			Label:    "Home address",
			Required: true,
		}},
	}
}

// OwnershipEditRows describes the add/edit form for one beneficial owner.
func OwnershipEditRows() []fields.Row {
	return []fields.Row{
		{{
			Kind:        fields.KindText,
			Key:         KeyPersonName,
			Label:       "Legal name",
			Placeholder: "Full legal name",
			Required:    true,
		}},
		{
			{
				Kind:     fields.KindDate,
				Key:      KeyDateOfBirth,
				Label:    "Date of birth",
				Required: true,
			},
			{
				Kind:        fields.KindText,
				Key:         KeySSN,
				Label:       "Tax ID (SSN or ITIN)",
				Format:      fields.FormatSSN,
				Placeholder: "123-45-6789",
				Required:    true,
			},
		},
		{{
			Kind: fields.KindBanner,
			Key:  "ssn-notice",
			Text: "Your SSN is encrypted and used only for identity verification. It will not affect your credit score.",
		}},
		{{
			Kind:     fields.KindAddress,
			Key:      KeyPersonAddress,
			Label:    "Home address",
			Required: true,
		}},
	}
}
