// Package workflow drives the multi-step onboarding state machine. A Machine
// owns a submission record, validates each step's fields before letting the
// user advance, applies the organization-type logic branch, and hands the
// finished record to a submitter. All mutations go through named operations;
// free-form writes to the record are not part of the API.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lemma-health/go-onboarding/pkg/catalog"
	"github.com/lemma-health/go-onboarding/pkg/entity"
	"github.com/lemma-health/go-onboarding/pkg/fields"
	"github.com/lemma-health/go-onboarding/pkg/forms"
	"github.com/lemma-health/go-onboarding/pkg/ownership"
	"github.com/lemma-health/go-onboarding/pkg/validation"
)

// Step identifies one screen of the onboarding flow.
type Step string

const (
	StepOrganizationProfile Step = "organization_profile"
	StepOrganizationDetails Step = "organization_details"
	StepOrganizationContact Step = "organization_contact"
	StepControlPerson       Step = "control_person"
	StepBeneficialOwners    Step = "beneficial_owners"
	StepReview              Step = "review"
	StepComplete            Step = "complete"
)

// MaxOwners caps the role-holders on a record: listed beneficial owners plus
// the control person when they also own a qualifying share.
const MaxOwners = 4

// FallbackIP is recorded when the place-of-record IP cannot be resolved.
const FallbackIP = "0.0.0.0"

// MsgEINOrSS4 is the details-step message shown when neither a tax ID nor an
// SS-4 confirmation letter is on file.
const MsgEINOrSS4 = "Either a Tax ID (EIN) or SS-4 confirmation letter is required"

// Submitter delivers a finished legal-entity payload to the banking partner.
type Submitter interface {
	SubmitLegalEntity(ctx context.Context, payload ownership.Payload) error
}

// IPResolver reports the caller's public IP address.
type IPResolver interface {
	ResolveIP(ctx context.Context) (string, error)
}

// Machine is the onboarding state machine. Safe for concurrent use; in
// practice a single user drives it, with asynchronous boundary work (IP
// resolution, document uploads) landing results through version-guarded
// operations.
type Machine struct {
	mu        sync.Mutex
	record    entity.Record
	step      Step
	version   uint64
	now       func() time.Time
	newID     func() string
	resolver  IPResolver
	submitter Submitter
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the time source used for age checks and terms
// acceptance timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides the beneficial-owner ID source.
func WithIDGenerator(newID func() string) Option {
	return func(m *Machine) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// WithIPResolver installs the public-IP lookup used when the flow reaches
// review. Without one, submissions record FallbackIP.
func WithIPResolver(resolver IPResolver) Option {
	return func(m *Machine) {
		m.resolver = resolver
	}
}

// WithSubmitter installs the partner delivery port.
func WithSubmitter(submitter Submitter) Option {
	return func(m *Machine) {
		m.submitter = submitter
	}
}

// WithRecord seeds the machine with an existing record, for resuming a flow.
func WithRecord(rec entity.Record) Option {
	return func(m *Machine) {
		m.record = cloneRecord(rec)
	}
}

// New builds a machine positioned at the first step.
func New(opts ...Option) *Machine {
	m := &Machine{
		step:  StepOrganizationProfile,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.record.Complete {
		m.step = StepComplete
	}
	return m
}

// Current returns the step the machine is on.
func (m *Machine) Current() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Record returns a copy of the submission record.
func (m *Machine) Record() entity.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRecord(m.record)
}

// Version returns the record version. Asynchronous work started against a
// version is discarded if the record has moved on when the result lands.
func (m *Machine) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Branch returns the logic branch implied by the selected organization type,
// defaulting to the standard know-your-business flow.
func (m *Machine) Branch() catalog.LogicBranch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.branchLocked()
}

func (m *Machine) branchLocked() catalog.LogicBranch {
	if org, ok := catalog.OrganizationTypeByValue(m.record.BusinessProfile.OrganizationType); ok {
		return org.Branch
	}
	return catalog.BranchStandardKYB
}

// Steps returns the visible step sequence for the current logic branch. The
// skip_beneficial_owners branch bypasses the beneficial-owners step.
func (m *Machine) Steps() []Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stepsLocked()
}

func (m *Machine) stepsLocked() []Step {
	steps := []Step{
		StepOrganizationProfile,
		StepOrganizationDetails,
		StepOrganizationContact,
		StepControlPerson,
	}
	if m.branchLocked() != catalog.BranchSkipBeneficialOwners {
		steps = append(steps, StepBeneficialOwners)
	}
	return append(steps, StepReview)
}

// Advance validates the current step and moves to the next one. Field
// failures come back as a *ValidationError and leave the machine in place.
// Reaching review starts a best-effort public-IP lookup in the background.
func (m *Machine) Advance(ctx context.Context) (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record.Complete {
		return m.step, ErrComplete
	}
	if m.step == StepReview {
		return m.step, ErrNotAtReview
	}

	if errs := m.validateStepLocked(m.step); len(errs) > 0 {
		return m.step, &ValidationError{Fields: errs}
	}

	steps := m.stepsLocked()
	for i, step := range steps {
		if step == m.step && i+1 < len(steps) {
			m.step = steps[i+1]
			break
		}
	}
	m.version++

	if m.step == StepReview {
		m.beginIPResolutionLocked(ctx)
	}
	return m.step, nil
}

// Retreat moves back one step, clamped at the first. Values entered on later
// steps stay on the record.
func (m *Machine) Retreat() Step {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record.Complete {
		return m.step
	}
	steps := m.stepsLocked()
	for i, step := range steps {
		if step == m.step && i > 0 {
			m.step = steps[i-1]
			m.version++
			break
		}
	}
	return m.step
}

// BusinessProfilePatch updates a subset of the business profile. Nil fields
// are left untouched.
type BusinessProfilePatch struct {
	LegalBusinessName  *string
	EIN                *string
	Website            *string
	NaicsCode          *string
	IncorporationState *string
	OrganizationType   *string
	PracticeNPI        *string
	IndividualNPI      *string
	NPIType            *entity.NPIType
	BusinessEmail      *string
	BusinessPhone      *string
	Address            *fields.Address
}

// UpdateBusinessProfile applies a patch. Selecting an organization type that
// is restricted in the current incorporation state fails with
// ErrRestrictedType; changing the state to one where the chosen type is
// restricted clears the type instead.
func (m *Machine) UpdateBusinessProfile(patch BusinessProfilePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record.Complete {
		return ErrComplete
	}
	profile := &m.record.BusinessProfile

	if patch.IncorporationState != nil {
		profile.IncorporationState = *patch.IncorporationState
		if org, ok := catalog.OrganizationTypeByValue(profile.OrganizationType); ok {
			if org.RestrictedIn(profile.IncorporationState) {
				profile.OrganizationType = ""
			}
		}
	}
	if patch.OrganizationType != nil {
		value := *patch.OrganizationType
		if value != "" {
			org, ok := catalog.OrganizationTypeByValue(value)
			if !ok {
				return ErrUnknownType
			}
			if org.RestrictedIn(profile.IncorporationState) {
				return ErrRestrictedType
			}
		}
		profile.OrganizationType = value
	}

	setString(&profile.LegalBusinessName, patch.LegalBusinessName)
	setString(&profile.EIN, patch.EIN)
	setString(&profile.Website, patch.Website)
	setString(&profile.NaicsCode, patch.NaicsCode)
	setString(&profile.PracticeNPI, patch.PracticeNPI)
	setString(&profile.IndividualNPI, patch.IndividualNPI)
	setString(&profile.BusinessEmail, patch.BusinessEmail)
	setString(&profile.BusinessPhone, patch.BusinessPhone)
	if patch.NPIType != nil {
		profile.NPIType = *patch.NPIType
	}
	if patch.Address != nil {
		profile.Address = *patch.Address
	}

	m.version++
	return nil
}

// AttachSS4Document records the storage key of an uploaded SS-4 confirmation
// letter. The version must match the record version captured when the upload
// started; otherwise the result is stale and discarded.
func (m *Machine) AttachSS4Document(version uint64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record.Complete {
		return ErrComplete
	}
	if version != m.version {
		return ErrStaleResult
	}
	m.record.BusinessProfile.SS4FileKey = key
	m.version++
	return nil
}

// UpdateControlPerson replaces the control person's details.
func (m *Machine) UpdateControlPerson(person entity.PersonRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record.Complete {
		return ErrComplete
	}
	person.ID = ""
	m.record.ControlPerson = person
	m.version++
	return nil
}

// SetControlPersonOwnsBusiness toggles whether the control person also holds
// a qualifying ownership share, counting them against the owner cap.
func (m *Machine) SetControlPersonOwnsBusiness(owns bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record.Complete {
		return ErrComplete
	}
	if owns && !m.record.ControlPersonOwnsBusiness && len(m.record.BeneficialOwners) >= MaxOwners {
		return ErrOwnerLimit
	}
	m.record.ControlPersonOwnsBusiness = owns
	m.version++
	return nil
}

// AddBeneficialOwner validates and appends an owner, assigning it an ID.
func (m *Machine) AddBeneficialOwner(owner entity.PersonRecord) (entity.PersonRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record.Complete {
		return entity.PersonRecord{}, ErrComplete
	}
	if m.record.OwnerCount() >= MaxOwners {
		return entity.PersonRecord{}, ErrOwnerLimit
	}
	if errs := m.validateOwnerLocked(owner); len(errs) > 0 {
		return entity.PersonRecord{}, &ValidationError{Fields: errs}
	}

	owner.ID = m.newID()
	owner.Title = ""
	m.record.BeneficialOwners = append(m.record.BeneficialOwners, owner)
	m.version++
	return owner, nil
}

// UpdateBeneficialOwner validates and replaces the owner with the given ID.
func (m *Machine) UpdateBeneficialOwner(id string, owner entity.PersonRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record.Complete {
		return ErrComplete
	}
	if errs := m.validateOwnerLocked(owner); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	for i := range m.record.BeneficialOwners {
		if m.record.BeneficialOwners[i].ID == id {
			owner.ID = id
			owner.Title = ""
			m.record.BeneficialOwners[i] = owner
			m.version++
			return nil
		}
	}
	return ErrUnknownOwner
}

// RemoveBeneficialOwner deletes the owner with the given ID.
func (m *Machine) RemoveBeneficialOwner(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record.Complete {
		return ErrComplete
	}
	for i := range m.record.BeneficialOwners {
		if m.record.BeneficialOwners[i].ID == id {
			m.record.BeneficialOwners = append(m.record.BeneficialOwners[:i], m.record.BeneficialOwners[i+1:]...)
			m.version++
			return nil
		}
	}
	return ErrUnknownOwner
}

// AcceptTerms records or withdraws terms acceptance. Accepting stamps the
// current time; withdrawing clears it.
func (m *Machine) AcceptTerms(accepted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record.Complete {
		return ErrComplete
	}
	m.record.IdentityVerification.TermsAccepted = accepted
	if accepted {
		m.record.IdentityVerification.TermsAcceptedAt = m.now().UTC()
	} else {
		m.record.IdentityVerification.TermsAcceptedAt = time.Time{}
	}
	m.version++
	return nil
}

// Submit delivers the record to the banking partner. On success the record
// becomes immutable and the machine moves to StepComplete. On failure the
// record and step are preserved so the user can retry.
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()

	if m.record.Complete {
		m.mu.Unlock()
		return ErrComplete
	}
	if m.step != StepReview {
		m.mu.Unlock()
		return ErrNotAtReview
	}
	if !m.record.IdentityVerification.TermsAccepted {
		m.mu.Unlock()
		return ErrTermsNotAccepted
	}
	if m.submitter == nil {
		m.mu.Unlock()
		return ErrNoSubmitter
	}

	if m.record.IdentityVerification.TermsIPAddress == "" {
		m.record.IdentityVerification.TermsIPAddress = m.resolveIPLocked(ctx)
	}

	payload := ownership.BuildPayload(cloneRecord(m.record))
	submitter := m.submitter
	m.mu.Unlock()

	if err := submitter.SubmitLegalEntity(ctx, payload); err != nil {
		return fmt.Errorf("workflow: submit legal entity: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.record.Complete = true
	m.step = StepComplete
	m.version++
	return nil
}

// beginIPResolutionLocked resolves the place-of-record IP in the background.
// The lookup outlives the request that triggered it, and the result only
// lands if the record has not moved on in the meantime. A failed lookup
// leaves the address unset so Submit re-resolves synchronously; the fallback
// address is only recorded when that last attempt fails too.
func (m *Machine) beginIPResolutionLocked(ctx context.Context) {
	if m.resolver == nil || m.record.IdentityVerification.TermsIPAddress != "" {
		return
	}
	version := m.version
	resolver := m.resolver
	lookupCtx := context.WithoutCancel(ctx)
	go func() {
		ip, err := resolver.ResolveIP(lookupCtx)
		ip = strings.TrimSpace(ip)
		if err != nil || ip == "" {
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.version != version || m.record.Complete {
			return
		}
		if m.record.IdentityVerification.TermsIPAddress == "" {
			m.record.IdentityVerification.TermsIPAddress = ip
		}
	}()
}

func (m *Machine) resolveIPLocked(ctx context.Context) string {
	if m.resolver == nil {
		return FallbackIP
	}
	ip, err := m.resolver.ResolveIP(ctx)
	if err != nil || strings.TrimSpace(ip) == "" {
		return FallbackIP
	}
	return strings.TrimSpace(ip)
}

func (m *Machine) validateStepLocked(step Step) map[string]string {
	rows := m.stepRowsLocked(step)
	if len(rows) == 0 {
		return nil
	}
	errs := validation.Validate(rows, m.stepValuesLocked(step), validation.WithClock(m.now))

	if step == StepOrganizationDetails {
		m.applyEINSubstitutionLocked(errs)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// applyEINSubstitutionLocked implements the tax-ID rule: a blank EIN is
// acceptable when an SS-4 confirmation letter is on file, and otherwise
// reports the combined requirement rather than a plain required-field error.
func (m *Machine) applyEINSubstitutionLocked(errs map[string]string) {
	if strings.TrimSpace(m.record.BusinessProfile.EIN) != "" {
		return
	}
	if m.record.BusinessProfile.SS4FileKey != "" {
		delete(errs, forms.KeyEIN)
		return
	}
	errs[forms.KeyEIN] = MsgEINOrSS4
}

func (m *Machine) stepRowsLocked(step Step) []fields.Row {
	switch step {
	case StepOrganizationProfile:
		return forms.ProfileRows(m.record.BusinessProfile.IncorporationState)
	case StepOrganizationDetails:
		rows := forms.DetailsBaseRows()
		return append(rows, m.npiRowsLocked()...)
	case StepOrganizationContact:
		return forms.ContactRows()
	case StepControlPerson:
		return forms.LeadershipRows()
	default:
		return nil
	}
}

// npiRowsLocked picks the NPI fields for the details step. Under the
// skip_beneficial_owners branch sole proprietors may enroll with an
// individual NPI, and the organizational NPI stops being required.
func (m *Machine) npiRowsLocked() []fields.Row {
	if m.branchLocked() != catalog.BranchSkipBeneficialOwners {
		return forms.OrgNPIRows()
	}
	if m.record.BusinessProfile.NPIType == entity.NPITypeIndividual {
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

func (m *Machine) stepValuesLocked(step Step) validation.Values {
	profile := m.record.BusinessProfile
	switch step {
	case StepOrganizationProfile:
		return validation.Values{
			forms.KeyLegalBusinessName: profile.LegalBusinessName,
			forms.KeyWebsite:           profile.Website,
			forms.KeyNaicsCode:         profile.NaicsCode,
			forms.KeyOrganizationType:  profile.OrganizationType,
		}
	case StepOrganizationDetails:
		return validation.Values{
			forms.KeyIncorporationState: profile.IncorporationState,
			forms.KeyEIN:                profile.EIN,
			forms.KeyPracticeNPI:        profile.PracticeNPI,
			forms.KeyIndividualNPI:      profile.IndividualNPI,
		}
	case StepOrganizationContact:
		return validation.Values{
			forms.KeyBusinessAddress: profile.Address,
			forms.KeyBusinessEmail:   profile.BusinessEmail,
			forms.KeyBusinessPhone:   profile.BusinessPhone,
		}
	case StepControlPerson:
		return personValues(m.record.ControlPerson, true)
	default:
		return nil
	}
}

func (m *Machine) validateOwnerLocked(owner entity.PersonRecord) map[string]string {
	return validation.Validate(forms.OwnershipEditRows(), personValues(owner, false), validation.WithClock(m.now))
}

func personValues(person entity.PersonRecord, withTitle bool) validation.Values {
	values := validation.Values{
		forms.KeyPersonName:    person.Name,
		forms.KeyDateOfBirth:   person.DateOfBirth,
		forms.KeySSN:           person.SSN,
		forms.KeyPersonAddress: person.Address,
	}
	if withTitle {
		values[forms.KeyPersonTitle] = person.Title
	}
	return values
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func cloneRecord(rec entity.Record) entity.Record {
	if len(rec.BeneficialOwners) > 0 {
		owners := make([]entity.PersonRecord, len(rec.BeneficialOwners))
		copy(owners, rec.BeneficialOwners)
		rec.BeneficialOwners = owners
	}
	return rec
}
