package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemma-health/go-onboarding/pkg/entity"
	"github.com/lemma-health/go-onboarding/pkg/fields"
	"github.com/lemma-health/go-onboarding/pkg/forms"
	"github.com/lemma-health/go-onboarding/pkg/ownership"
)

var testClock = func() time.Time {
	return time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)
}

type stubSubmitter struct {
	mu       sync.Mutex
	payloads []ownership.Payload
	err      error
}

func (s *stubSubmitter) SubmitLegalEntity(_ context.Context, payload ownership.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

type stubResolver struct {
	ip  string
	err error
}

func (s *stubResolver) ResolveIP(context.Context) (string, error) {
	return s.ip, s.err
}

// flakyResolver starts out failing and can be switched to a working address
// mid-test. Every call signals done.
type flakyResolver struct {
	mu   sync.Mutex
	ip   string
	err  error
	done chan struct{}
}

func (r *flakyResolver) set(ip string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ip, r.err = ip, err
}

func (r *flakyResolver) ResolveIP(context.Context) (string, error) {
	r.mu.Lock()
	ip, err := r.ip, r.err
	r.mu.Unlock()
	select {
	case r.done <- struct{}{}:
	default:
	}
	return ip, err
}

// blockingResolver holds every lookup until release is closed.
type blockingResolver struct {
	ip      string
	release chan struct{}
}

func (r *blockingResolver) ResolveIP(context.Context) (string, error) {
	<-r.release
	return r.ip, nil
}

// cancelAwareResolver fails once its context is cancelled, the way a real
// HTTP lookup would.
type cancelAwareResolver struct {
	ip string
}

func (r cancelAwareResolver) ResolveIP(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.ip, nil
}

func testAddress() fields.Address {
	return fields.Address{Line1: "100 Main St", City: "Austin", State: "TX", Zip: "78701"}
}

func testPerson(name, ssn string) entity.PersonRecord {
	return entity.PersonRecord{
		Name:        name,
		DateOfBirth: time.Date(1980, time.March, 14, 0, 0, 0, 0, time.UTC),
		SSN:         ssn,
		Address:     testAddress(),
	}
}

func strptr(s string) *string { return &s }

func fillProfile(t *testing.T, m *Machine, orgType string) {
	t.Helper()
	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{
		LegalBusinessName: strptr("Sunrise Medical Group"),
		NaicsCode:         strptr("621111"),
		OrganizationType:  strptr(orgType),
	}))
}

func fillDetails(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{
		IncorporationState: strptr("TX"),
		EIN:                strptr("12-3456789"),
		PracticeNPI:        strptr("1234567890"),
	}))
}

func fillContact(t *testing.T, m *Machine) {
	t.Helper()
	addr := testAddress()
	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{
		Address:       &addr,
		BusinessEmail: strptr("office@sunrise.example.com"),
		BusinessPhone: strptr("512-555-0100"),
	}))
}

func fillControlPerson(t *testing.T, m *Machine) {
	t.Helper()
	person := testPerson("Dana Smith", "111-22-3333")
	person.Title = "CEO"
	require.NoError(t, m.UpdateControlPerson(person))
}

// advanceTo drives a fully filled machine from the profile step to the
// given step.
func advanceTo(t *testing.T, m *Machine, target Step) {
	t.Helper()
	for m.Current() != target {
		step, err := m.Advance(context.Background())
		require.NoError(t, err, "advancing past %s", m.Current())
		if step == target {
			return
		}
	}
}

func newFilledMachine(t *testing.T, opts ...Option) *Machine {
	t.Helper()
	opts = append([]Option{WithClock(testClock)}, opts...)
	m := New(opts...)
	fillProfile(t, m, "professional_corporation")
	fillDetails(t, m)
	fillContact(t, m)
	fillControlPerson(t, m)
	return m
}

func TestAdvanceBlocksOnMissingFields(t *testing.T) {
	m := New(WithClock(testClock))

	_, err := m.Advance(context.Background())
	verr, ok := AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, "Organization Name is required", verr.Fields[forms.KeyLegalBusinessName])
	assert.Equal(t, StepOrganizationProfile, m.Current())
}

func TestAdvanceWalksAllSteps(t *testing.T) {
	m := newFilledMachine(t)

	want := []Step{
		StepOrganizationDetails,
		StepOrganizationContact,
		StepControlPerson,
		StepBeneficialOwners,
		StepReview,
	}
	for _, wantStep := range want {
		step, err := m.Advance(context.Background())
		require.NoError(t, err)
		assert.Equal(t, wantStep, step)
	}

	_, err := m.Advance(context.Background())
	assert.ErrorIs(t, err, ErrNotAtReview)
}

func TestRetreatClampsAtFirstStep(t *testing.T) {
	m := newFilledMachine(t)
	advanceTo(t, m, StepOrganizationContact)

	assert.Equal(t, StepOrganizationDetails, m.Retreat())
	assert.Equal(t, StepOrganizationProfile, m.Retreat())
	assert.Equal(t, StepOrganizationProfile, m.Retreat())

	// Values entered earlier survive the round trip.
	assert.Equal(t, "Sunrise Medical Group", m.Record().BusinessProfile.LegalBusinessName)
}

func TestEINSubstitutionRule(t *testing.T) {
	m := newFilledMachine(t)
	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{EIN: strptr("")}))
	advanceTo(t, m, StepOrganizationDetails)

	_, err := m.Advance(context.Background())
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, MsgEINOrSS4, verr.Fields[forms.KeyEIN])

	// An uploaded SS-4 confirmation letter substitutes for the EIN.
	require.NoError(t, m.AttachSS4Document(m.Version(), "uploads/ss4.pdf"))
	_, err = m.Advance(context.Background())
	assert.NoError(t, err)
}

func TestAttachSS4DocumentRejectsStaleVersion(t *testing.T) {
	m := newFilledMachine(t)
	version := m.Version()
	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{Website: strptr("https://sunrise.example.com")}))

	err := m.AttachSS4Document(version, "uploads/ss4.pdf")
	assert.ErrorIs(t, err, ErrStaleResult)
	assert.Empty(t, m.Record().BusinessProfile.SS4FileKey)
}

func TestRestrictedOrganizationTypeRejected(t *testing.T) {
	m := New(WithClock(testClock))
	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{IncorporationState: strptr("CA")}))

	err := m.UpdateBusinessProfile(BusinessProfilePatch{OrganizationType: strptr("professional_llc")})
	assert.ErrorIs(t, err, ErrRestrictedType)
	assert.Empty(t, m.Record().BusinessProfile.OrganizationType)
}

func TestIncorporationStateChangeClearsRestrictedType(t *testing.T) {
	m := New(WithClock(testClock))
	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{OrganizationType: strptr("llc")}))

	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{IncorporationState: strptr("NY")}))
	assert.Empty(t, m.Record().BusinessProfile.OrganizationType)
}

func TestUnknownOrganizationTypeRejected(t *testing.T) {
	m := New(WithClock(testClock))
	err := m.UpdateBusinessProfile(BusinessProfilePatch{OrganizationType: strptr("cooperative")})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestSkipBranchHidesBeneficialOwnersStep(t *testing.T) {
	m := New(WithClock(testClock))
	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{OrganizationType: strptr("sole_prop")}))

	steps := m.Steps()
	for _, step := range steps {
		assert.NotEqual(t, StepBeneficialOwners, step)
	}
	assert.Equal(t, StepReview, steps[len(steps)-1])
}

func TestSkipBranchRelaxesOrganizationalNPI(t *testing.T) {
	m := New(WithClock(testClock))
	fillProfile(t, m, "sole_prop")
	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{
		IncorporationState: strptr("TX"),
		EIN:                strptr("12-3456789"),
	}))
	advanceTo(t, m, StepOrganizationDetails)

	// No NPI entered at all: the organizational NPI is not required on this
	// branch.
	_, err := m.Advance(context.Background())
	assert.NoError(t, err)
}

func TestSkipBranchRequiresIndividualNPIWhenSelected(t *testing.T) {
	m := New(WithClock(testClock))
	fillProfile(t, m, "sole_prop")
	npiType := entity.NPITypeIndividual
	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{
		IncorporationState: strptr("TX"),
		EIN:                strptr("12-3456789"),
		NPIType:            &npiType,
	}))
	advanceTo(t, m, StepOrganizationDetails)

	_, err := m.Advance(context.Background())
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, forms.KeyIndividualNPI)
}

func TestAddBeneficialOwnerValidates(t *testing.T) {
	m := New(WithClock(testClock))

	owner := testPerson("Alex Jones", "123-45")
	_, err := m.AddBeneficialOwner(owner)
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "SSN must be exactly 9 digits", verr.Fields[forms.KeySSN])
	assert.Empty(t, m.Record().BeneficialOwners)
}

func TestAddBeneficialOwnerAssignsID(t *testing.T) {
	m := New(WithClock(testClock), WithIDGenerator(func() string { return "owner-1" }))

	stored, err := m.AddBeneficialOwner(testPerson("Alex Jones", "444-55-6666"))
	require.NoError(t, err)
	assert.Equal(t, "owner-1", stored.ID)

	got, ok := m.Record().FindOwner("owner-1")
	require.True(t, ok)
	assert.Equal(t, "Alex Jones", got.Name)
}

func TestOwnerCapCountsControlPerson(t *testing.T) {
	seq := 0
	m := New(WithClock(testClock), WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("owner-%d", seq)
	}))
	require.NoError(t, m.SetControlPersonOwnsBusiness(true))

	for i := 0; i < MaxOwners-1; i++ {
		ssn := fmt.Sprintf("444-55-%04d", i)
		_, err := m.AddBeneficialOwner(testPerson("Owner", ssn))
		require.NoError(t, err)
	}

	_, err := m.AddBeneficialOwner(testPerson("One Too Many", "999-99-9999"))
	assert.ErrorIs(t, err, ErrOwnerLimit)
}

func TestSetControlPersonOwnsBusinessRespectsCap(t *testing.T) {
	m := New(WithClock(testClock))
	for i := 0; i < MaxOwners; i++ {
		ssn := fmt.Sprintf("444-55-%04d", i)
		_, err := m.AddBeneficialOwner(testPerson("Owner", ssn))
		require.NoError(t, err)
	}

	err := m.SetControlPersonOwnsBusiness(true)
	assert.ErrorIs(t, err, ErrOwnerLimit)
}

func TestUpdateAndRemoveBeneficialOwner(t *testing.T) {
	m := New(WithClock(testClock), WithIDGenerator(func() string { return "owner-1" }))
	_, err := m.AddBeneficialOwner(testPerson("Alex Jones", "444-55-6666"))
	require.NoError(t, err)

	updated := testPerson("Alexandra Jones", "444-55-6666")
	require.NoError(t, m.UpdateBeneficialOwner("owner-1", updated))
	got, _ := m.Record().FindOwner("owner-1")
	assert.Equal(t, "Alexandra Jones", got.Name)

	assert.ErrorIs(t, m.UpdateBeneficialOwner("owner-9", updated), ErrUnknownOwner)
	require.NoError(t, m.RemoveBeneficialOwner("owner-1"))
	assert.Empty(t, m.Record().BeneficialOwners)
	assert.ErrorIs(t, m.RemoveBeneficialOwner("owner-1"), ErrUnknownOwner)
}

func TestUnderageOwnerRejectedOnControlPersonStep(t *testing.T) {
	m := newFilledMachine(t)
	minor := testPerson("Kid Smith", "111-22-3333")
	minor.DateOfBirth = time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.UpdateControlPerson(minor))
	advanceTo(t, m, StepControlPerson)

	_, err := m.Advance(context.Background())
	verr, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "Must be at least 18 years old", verr.Fields[forms.KeyDateOfBirth])
}

func TestSubmitRequiresTermsAcceptance(t *testing.T) {
	submitter := &stubSubmitter{}
	m := newFilledMachine(t, WithSubmitter(submitter))
	advanceTo(t, m, StepReview)

	err := m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrTermsNotAccepted)
	assert.Empty(t, submitter.payloads)
}

func TestSubmitRecordsFallbackIPWithoutResolver(t *testing.T) {
	submitter := &stubSubmitter{}
	m := newFilledMachine(t, WithSubmitter(submitter))
	advanceTo(t, m, StepReview)
	require.NoError(t, m.AcceptTerms(true))

	require.NoError(t, m.Submit(context.Background()))

	require.Len(t, submitter.payloads, 1)
	agreements := submitter.payloads[0].TermsAgreements
	require.Len(t, agreements, 1)
	assert.Equal(t, FallbackIP, agreements[0].IPAddress)
	assert.Equal(t, ownership.TermsURL, agreements[0].TermsURL)
}

func TestSubmitUsesResolvedIP(t *testing.T) {
	submitter := &stubSubmitter{}
	m := newFilledMachine(t,
		WithSubmitter(submitter),
		WithIPResolver(&stubResolver{ip: "203.0.113.9"}),
	)
	advanceTo(t, m, StepReview)
	require.NoError(t, m.AcceptTerms(true))

	require.NoError(t, m.Submit(context.Background()))

	require.Len(t, submitter.payloads, 1)
	assert.Equal(t, "203.0.113.9", submitter.payloads[0].TermsAgreements[0].IPAddress)
}

func TestFailedBackgroundLookupDoesNotPinFallback(t *testing.T) {
	resolver := &flakyResolver{err: errors.New("lookup service down"), done: make(chan struct{}, 2)}
	submitter := &stubSubmitter{}
	m := newFilledMachine(t, WithSubmitter(submitter), WithIPResolver(resolver))
	advanceTo(t, m, StepReview)

	// The background lookup fails; the address must stay unset so Submit
	// gets a fresh attempt instead of the fallback.
	<-resolver.done
	assert.Empty(t, m.Record().IdentityVerification.TermsIPAddress)

	resolver.set("203.0.113.9", nil)
	require.NoError(t, m.AcceptTerms(true))
	require.NoError(t, m.Submit(context.Background()))

	require.Len(t, submitter.payloads, 1)
	assert.Equal(t, "203.0.113.9", submitter.payloads[0].TermsAgreements[0].IPAddress)
}

func TestIPResolutionOutlivesRequestContext(t *testing.T) {
	submitter := &stubSubmitter{}
	m := newFilledMachine(t, WithSubmitter(submitter), WithIPResolver(cancelAwareResolver{ip: "203.0.113.9"}))

	// The HTTP handler's context is gone by the time the lookup runs.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for m.Current() != StepReview {
		_, err := m.Advance(ctx)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return m.Record().IdentityVerification.TermsIPAddress == "203.0.113.9"
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, m.AcceptTerms(true))
	require.NoError(t, m.Submit(context.Background()))
	require.Len(t, submitter.payloads, 1)
	assert.Equal(t, "203.0.113.9", submitter.payloads[0].TermsAgreements[0].IPAddress)
}

func TestStaleIPResolutionDiscarded(t *testing.T) {
	resolver := &blockingResolver{ip: "203.0.113.9", release: make(chan struct{})}
	m := newFilledMachine(t, WithSubmitter(&stubSubmitter{}), WithIPResolver(resolver))
	advanceTo(t, m, StepReview)

	// The record moves on while the lookup is still in flight, so the
	// result that eventually arrives is stale.
	require.NoError(t, m.UpdateBusinessProfile(BusinessProfilePatch{Website: strptr("https://sunrise.example.com")}))
	close(resolver.release)

	assert.Never(t, func() bool {
		return m.Record().IdentityVerification.TermsIPAddress != ""
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestSubmitFailurePreservesRecord(t *testing.T) {
	submitter := &stubSubmitter{err: errors.New("partner unavailable")}
	m := newFilledMachine(t, WithSubmitter(submitter))
	advanceTo(t, m, StepReview)
	require.NoError(t, m.AcceptTerms(true))

	err := m.Submit(context.Background())
	require.Error(t, err)
	assert.False(t, m.Record().Complete)
	assert.Equal(t, StepReview, m.Current())

	// Retry succeeds once the partner recovers.
	submitter.err = nil
	require.NoError(t, m.Submit(context.Background()))
	assert.True(t, m.Record().Complete)
	assert.Equal(t, StepComplete, m.Current())
}

func TestMutationsRejectedAfterCompletion(t *testing.T) {
	submitter := &stubSubmitter{}
	m := newFilledMachine(t, WithSubmitter(submitter))
	advanceTo(t, m, StepReview)
	require.NoError(t, m.AcceptTerms(true))
	require.NoError(t, m.Submit(context.Background()))

	assert.ErrorIs(t, m.UpdateBusinessProfile(BusinessProfilePatch{Website: strptr("https://x.example.com")}), ErrComplete)
	assert.ErrorIs(t, m.UpdateControlPerson(testPerson("Other", "111-22-3333")), ErrComplete)
	_, err := m.AddBeneficialOwner(testPerson("Late Owner", "444-55-6666"))
	assert.ErrorIs(t, err, ErrComplete)
	assert.ErrorIs(t, m.AcceptTerms(false), ErrComplete)
	assert.ErrorIs(t, m.Submit(context.Background()), ErrComplete)
	_, err = m.Advance(context.Background())
	assert.ErrorIs(t, err, ErrComplete)
	assert.Equal(t, StepComplete, m.Retreat())
}

func TestWithRecordResumesCompletedFlow(t *testing.T) {
	m := New(WithRecord(entity.Record{Complete: true}))
	assert.Equal(t, StepComplete, m.Current())
}

func TestAcceptTermsStampsClock(t *testing.T) {
	m := New(WithClock(testClock))
	require.NoError(t, m.AcceptTerms(true))
	assert.Equal(t, testClock().UTC(), m.Record().IdentityVerification.TermsAcceptedAt)

	require.NoError(t, m.AcceptTerms(false))
	assert.True(t, m.Record().IdentityVerification.TermsAcceptedAt.IsZero())
}
