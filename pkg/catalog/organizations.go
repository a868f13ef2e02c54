// Package catalog holds the reference data the onboarding flow selects from:
// healthcare organization structures with their compliance logic branches,
// US jurisdictions, and the healthcare NAICS code set.
package catalog

import "github.com/lemma-health/go-onboarding/pkg/fields"

// LogicBranch selects the organization-type-dependent rule set: which NPI
// sub-field is required and whether the beneficial-owners step applies.
type LogicBranch string

const (
	// BranchStandardKYB runs the full know-your-business flow.
	BranchStandardKYB LogicBranch = "standard_kyb"
	// BranchControlPerson verifies a control person but collects no owners.
	BranchControlPerson LogicBranch = "control_person"
	// BranchSkipBeneficialOwners bypasses the beneficial-owners step and
	// relaxes the organizational NPI requirement (sole proprietors may use
	// their individual NPI).
	BranchSkipBeneficialOwners LogicBranch = "skip_beneficial_owners"
	// BranchAuthorizedSigner verifies an authorized signer for government
	// and quasi-government entities.
	BranchAuthorizedSigner LogicBranch = "authorized_signer"
)

// Structure is the legal-structure taxonomy reported to the banking partner.
type Structure string

const (
	StructureProfessionalCorporation Structure = "professional_corporation"
	StructureProfessionalLLC         Structure = "professional_llc"
	StructureLLC                     Structure = "llc"
	StructureMSO                     Structure = "mso"
	StructureNonProfit               Structure = "non_profit"
	StructureNaturalPerson           Structure = "natural_person"
	StructureGovernmentAuthority     Structure = "government_authority"
	StructureJoint                   Structure = "joint"
)

// OrganizationType describes one selectable organization structure.
type OrganizationType struct {
	Value     string
	Label     string
	Structure Structure
	Branch    LogicBranch
	// RestrictedStates lists jurisdictions where this structure is
	// disallowed. Selecting such a state clears an already chosen type and
	// renders the option inert.
	RestrictedStates []string
}

// RestrictedIn reports whether the type cannot be used in the given state.
func (o OrganizationType) RestrictedIn(state string) bool {
	for _, restricted := range o.RestrictedStates {
		if restricted == state {
			return true
		}
	}
	return false
}

var organizationTypes = []OrganizationType{
	{
		Value:     "professional_corporation",
		Label:     "Professional Corporation (PC)",
		Structure: StructureProfessionalCorporation,
		Branch:    BranchStandardKYB,
	},
	{
		Value:            "professional_llc",
		Label:            "Professional LLC (PLLC)",
		Structure:        StructureProfessionalLLC,
		Branch:           BranchStandardKYB,
		RestrictedStates: []string{"CA", "NY"},
	},
	{
		Value:            "llc",
		Label:            "Limited Liability Company (LLC)",
		Structure:        StructureLLC,
		Branch:           BranchStandardKYB,
		RestrictedStates: []string{"CA", "NY"},
	},
	{
		Value:     "nonprofit",
		Label:     "Non-Profit Organization (501c3)",
		Structure: StructureNonProfit,
		Branch:    BranchControlPerson,
	},
	{
		Value:     "mso",
		Label:     "Management Services Org (MSO)",
		Structure: StructureMSO,
		Branch:    BranchStandardKYB,
	},
	{
		Value:     "sole_prop",
		Label:     "Sole Proprietorship",
		Structure: StructureNaturalPerson,
		Branch:    BranchSkipBeneficialOwners,
	},
	{
		Value:     "fqhc",
		Label:     "Federally Qualified Health Center (FQHC)",
		Structure: StructureGovernmentAuthority,
		Branch:    BranchAuthorizedSigner,
	},
	{
		Value:     "govt",
		Label:     "Public / Government Health Entity",
		Structure: StructureGovernmentAuthority,
		Branch:    BranchAuthorizedSigner,
	},
	{
		Value:     "partnership",
		Label:     "Medical Partnership",
		Structure: StructureJoint,
		Branch:    BranchStandardKYB,
	},
}

// OrganizationTypes returns a fresh copy of the full catalog.
func OrganizationTypes() []OrganizationType {
	out := make([]OrganizationType, len(organizationTypes))
	copy(out, organizationTypes)
	return out
}

// OrganizationTypeByValue looks up an organization type.
func OrganizationTypeByValue(value string) (OrganizationType, bool) {
	for _, ot := range organizationTypes {
		if ot.Value == value {
			return ot, true
		}
	}
	return OrganizationType{}, false
}

// OrganizationTypeOptions adapts the catalog into dropdown options. Types
// restricted in incorporationState are marked disabled so they render but
// cannot be selected.
func OrganizationTypeOptions(incorporationState string) []fields.Option {
	opts := make([]fields.Option, 0, len(organizationTypes))
	for _, ot := range organizationTypes {
		opts = append(opts, fields.Option{
			Value:    ot.Value,
			Label:    ot.Label,
			Disabled: incorporationState != "" && ot.RestrictedIn(incorporationState),
		})
	}
	return opts
}
