package render

import (
	"github.com/lemma-health/go-onboarding/pkg/catalog"
	"github.com/lemma-health/go-onboarding/pkg/entity"
	"github.com/lemma-health/go-onboarding/pkg/fields"
	"github.com/lemma-health/go-onboarding/pkg/forms"
	"github.com/lemma-health/go-onboarding/pkg/workflow"
)

// stepHeading is the static copy for one step screen.
type stepHeading struct {
	title       string
	description string
}

var stepHeadings = map[workflow.Step]stepHeading{
	workflow.StepOrganizationProfile: {
		title:       "Organization Profile",
		description: "Tell us about your organization.",
	},
	workflow.StepOrganizationDetails: {
		title:       "Organization Details",
		description: "Registration and identifier details.",
	},
	workflow.StepOrganizationContact: {
		title:       "Contact Information",
		description: "Where can we reach your organization?",
	},
	workflow.StepControlPerson: {
		title:       "Leadership",
		description: "The person with significant responsibility for managing the organization.",
	},
	workflow.StepBeneficialOwners: {
		title:       "Ownership",
		description: "Individuals owning 25% or more of the organization.",
	},
	workflow.StepReview: {
		title:       "Review & Submit",
		description: "Confirm everything looks right before submitting.",
	},
	workflow.StepComplete: {
		title:       "All Done",
		description: "Your application has been submitted.",
	},
}

// BuildStepView projects the machine's current step into a StepView. The
// errs argument carries the field messages from a just-failed advance, nil
// otherwise.
func BuildStepView(m *workflow.Machine, errs map[string]string) StepView {
	step := m.Current()
	rec := m.Record()
	profile := rec.BusinessProfile

	heading := stepHeadings[step]
	if step == workflow.StepControlPerson && m.Branch() == catalog.BranchAuthorizedSigner {
		heading.title = "Authorized Signer"
		heading.description = "The person authorized to act on behalf of the entity."
	}

	view := StepView{
		Step:        string(step),
		Title:       heading.title,
		Description: heading.description,
		Errors:      errs,
	}

	steps := m.Steps()
	view.Total = len(steps)
	for i, s := range steps {
		if s == step {
			view.Index = i + 1
			break
		}
	}

	switch step {
	case workflow.StepOrganizationProfile:
		view.Rows = forms.ProfileRows(profile.IncorporationState)
		view.Values = map[string]any{
			forms.KeyLegalBusinessName: profile.LegalBusinessName,
			forms.KeyWebsite:           profile.Website,
			forms.KeyNaicsCode:         profile.NaicsCode,
			forms.KeyOrganizationType:  profile.OrganizationType,
		}
	case workflow.StepOrganizationDetails:
		rows := forms.DetailsBaseRows()
		rows = append(rows, npiRows(m.Branch(), profile.NPIType)...)
		view.Rows = rows
		view.Values = map[string]any{
			forms.KeyIncorporationState: profile.IncorporationState,
			forms.KeyEIN:                profile.EIN,
			forms.KeyPracticeNPI:        profile.PracticeNPI,
			forms.KeyIndividualNPI:      profile.IndividualNPI,
		}
	case workflow.StepOrganizationContact:
		view.Rows = forms.ContactRows()
		view.Values = map[string]any{
			forms.KeyBusinessAddress: profile.Address,
			forms.KeyBusinessEmail:   profile.BusinessEmail,
			forms.KeyBusinessPhone:   profile.BusinessPhone,
		}
	case workflow.StepControlPerson:
		person := rec.ControlPerson
		view.Rows = forms.LeadershipRows()
		view.Values = map[string]any{
			forms.KeyPersonName:    person.Name,
			forms.KeyPersonTitle:   person.Title,
			forms.KeyDateOfBirth:   person.DateOfBirth,
			forms.KeySSN:           person.SSN,
			forms.KeyPersonAddress: person.Address,
		}
	}

	return view
}

// npiRows mirrors the machine's details-step field selection so the rendered
// requiredness matches what validation will enforce. Under the
// skip_beneficial_owners branch the organizational NPI is optional unless
// the applicant switched to an individual NPI.
func npiRows(branch catalog.LogicBranch, npiType entity.NPIType) []fields.Row {
	if branch != catalog.BranchSkipBeneficialOwners {
		return forms.OrgNPIRows()
	}
	if npiType == entity.NPITypeIndividual {
		return forms.IndividualNPIRows()
	}
	rows := forms.OrgNPIRows()
	for i := range rows {
		for j := range rows[i] {
			rows[i][j].Required = false
		}
	}
	return rows
}
