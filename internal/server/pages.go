package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/lemma-health/go-onboarding/pkg/catalog"
	"github.com/lemma-health/go-onboarding/pkg/entity"
	"github.com/lemma-health/go-onboarding/pkg/fields"
	"github.com/lemma-health/go-onboarding/pkg/forms"
	"github.com/lemma-health/go-onboarding/pkg/ownership"
	"github.com/lemma-health/go-onboarding/pkg/render"
	"github.com/lemma-health/go-onboarding/pkg/renderers/html"
	"github.com/lemma-health/go-onboarding/pkg/workflow"
)

func (s *Server) renderOptions() render.RenderOptions {
	return render.RenderOptions{BasePath: s.basePath}
}

func (s *Server) stepPage(w http.ResponseWriter, r *http.Request) {
	machine := s.sessions.machineFor(w, r)
	requested := workflow.Step(mux.Vars(r)["step"])
	current := machine.Current()

	// The flow is linear; deep links land on whatever step the session is
	// actually at.
	if requested != current {
		s.redirectToStep(w, r, current)
		return
	}

	s.renderCurrent(w, r, machine, nil, "")
}

// renderCurrent writes the page for the machine's current step. errs carries
// field messages from a failed advance, pageErr a step-level message.
func (s *Server) renderCurrent(w http.ResponseWriter, r *http.Request, machine *workflow.Machine, errs map[string]string, pageErr string) {
	switch machine.Current() {
	case workflow.StepBeneficialOwners:
		s.renderOwners(w, r, machine, nil, errs, pageErr)
	case workflow.StepReview:
		s.renderReview(w, r, machine, pageErr)
	case workflow.StepComplete:
		s.redirectToStep(w, r, workflow.StepComplete)
	default:
		view := render.BuildStepView(machine, errs)
		body, err := s.renderer.Render(r.Context(), view, s.renderOptions())
		if err != nil {
			s.renderError(w, err)
			return
		}
		s.writePage(w, body)
	}
}

func (s *Server) writePage(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", s.renderer.ContentType())
	w.Write(body)
}

func (s *Server) completePage(w http.ResponseWriter, r *http.Request) {
	machine := s.sessions.machineFor(w, r)
	if machine.Current() != workflow.StepComplete {
		s.redirectToStep(w, r, machine.Current())
		return
	}
	body, err := s.renderer.RenderComplete(r.Context(), s.renderOptions())
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.writePage(w, body)
}

func (s *Server) stepSubmit(w http.ResponseWriter, r *http.Request) {
	machine := s.sessions.machineFor(w, r)
	requested := workflow.Step(mux.Vars(r)["step"])
	current := machine.Current()

	if requested != current || current == workflow.StepComplete {
		s.redirectToStep(w, r, current)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form data", http.StatusBadRequest)
		return
	}

	action := r.PostFormValue("action")
	if action == "back" {
		s.redirectToStep(w, r, machine.Retreat())
		return
	}

	switch current {
	case workflow.StepBeneficialOwners:
		s.handleOwnersAction(w, r, machine, action)
	case workflow.StepReview:
		s.handleReviewSubmit(w, r, machine)
	default:
		s.handleFieldStep(w, r, machine, current)
	}
}

// handleFieldStep stores the posted values and advances. Validation failures
// re-render the same step with the messages inline.
func (s *Server) handleFieldStep(w http.ResponseWriter, r *http.Request, machine *workflow.Machine, step workflow.Step) {
	if err := s.applyStepForm(r, machine, step); err != nil {
		msg := "Something went wrong saving your answers."
		switch err {
		case workflow.ErrRestrictedType:
			s.renderCurrent(w, r, machine, map[string]string{
				forms.KeyOrganizationType: "This organization type is not available in your state",
			}, "")
			return
		case workflow.ErrUnknownType:
			s.renderCurrent(w, r, machine, map[string]string{
				forms.KeyOrganizationType: "Select an organization type",
			}, "")
			return
		}
		s.log.WithError(err).Warn("step update rejected")
		s.renderCurrent(w, r, machine, nil, msg)
		return
	}

	next, err := machine.Advance(r.Context())
	if err != nil {
		if verr, ok := workflow.AsValidationError(err); ok {
			s.renderCurrent(w, r, machine, verr.Fields, "")
			return
		}
		s.renderError(w, err)
		return
	}
	s.redirectToStep(w, r, next)
}

func (s *Server) applyStepForm(r *http.Request, machine *workflow.Machine, step workflow.Step) error {
	switch step {
	case workflow.StepOrganizationProfile:
		return machine.UpdateBusinessProfile(workflow.BusinessProfilePatch{
			LegalBusinessName: formPtr(r, forms.KeyLegalBusinessName),
			Website:           formPtr(r, forms.KeyWebsite),
			NaicsCode:         formPtr(r, forms.KeyNaicsCode),
			OrganizationType:  formPtr(r, forms.KeyOrganizationType),
		})
	case workflow.StepOrganizationDetails:
		patch := workflow.BusinessProfilePatch{
			IncorporationState: formPtr(r, forms.KeyIncorporationState),
			EIN:                formPtr(r, forms.KeyEIN),
			PracticeNPI:        formPtr(r, forms.KeyPracticeNPI),
			IndividualNPI:      formPtr(r, forms.KeyIndividualNPI),
		}
		if raw := r.PostFormValue("npiType"); raw != "" {
			npiType := entity.NPIType(raw)
			patch.NPIType = &npiType
		}
		return machine.UpdateBusinessProfile(patch)
	case workflow.StepOrganizationContact:
		address := addressFromForm(r, forms.KeyBusinessAddress)
		return machine.UpdateBusinessProfile(workflow.BusinessProfilePatch{
			Address:       &address,
			BusinessEmail: formPtr(r, forms.KeyBusinessEmail),
			BusinessPhone: formPtr(r, forms.KeyBusinessPhone),
		})
	case workflow.StepControlPerson:
		return machine.UpdateControlPerson(personFromForm(r, "", true))
	}
	return nil
}

// handleOwnersAction routes the ownership page's form buttons: toggling the
// control-person disclosure, adding or removing owners, and moving on.
func (s *Server) handleOwnersAction(w http.ResponseWriter, r *http.Request, machine *workflow.Machine, action string) {
	owns := r.PostFormValue("controlPersonOwnsBusiness") == "true"
	if err := machine.SetControlPersonOwnsBusiness(owns); err != nil {
		if err == workflow.ErrOwnerLimit {
			s.renderOwners(w, r, machine, nil, nil, ownerLimitMessage())
			return
		}
		s.renderError(w, err)
		return
	}

	switch {
	case action == "add":
		draft := personFromForm(r, "owner.", false)
		if _, err := machine.AddBeneficialOwner(draft); err != nil {
			if verr, ok := workflow.AsValidationError(err); ok {
				s.renderOwners(w, r, machine, &draft, verr.Fields, "")
				return
			}
			if err == workflow.ErrOwnerLimit {
				s.renderOwners(w, r, machine, &draft, nil, ownerLimitMessage())
				return
			}
			s.renderError(w, err)
			return
		}
		s.redirectToStep(w, r, workflow.StepBeneficialOwners)

	case strings.HasPrefix(action, "remove:"):
		id := strings.TrimPrefix(action, "remove:")
		if err := machine.RemoveBeneficialOwner(id); err != nil && err != workflow.ErrUnknownOwner {
			s.renderError(w, err)
			return
		}
		s.redirectToStep(w, r, workflow.StepBeneficialOwners)

	default:
		next, err := machine.Advance(r.Context())
		if err != nil {
			if verr, ok := workflow.AsValidationError(err); ok {
				s.renderOwners(w, r, machine, nil, verr.Fields, "")
				return
			}
			s.renderError(w, err)
			return
		}
		s.redirectToStep(w, r, next)
	}
}

func ownerLimitMessage() string {
	return fmt.Sprintf("A maximum of %d owners can be listed, including the primary contact", workflow.MaxOwners)
}

func (s *Server) handleReviewSubmit(w http.ResponseWriter, r *http.Request, machine *workflow.Machine) {
	accepted := r.PostFormValue("termsAccepted") == "true"
	if err := machine.AcceptTerms(accepted); err != nil {
		s.renderError(w, err)
		return
	}

	if err := machine.Submit(r.Context()); err != nil {
		switch err {
		case workflow.ErrTermsNotAccepted:
			s.renderReview(w, r, machine, "Please accept the terms of service to continue")
		default:
			s.log.WithError(err).Error("submission failed")
			s.renderReview(w, r, machine, "Submission failed. Your answers are saved; please try again.")
		}
		return
	}
	s.redirectToStep(w, r, workflow.StepComplete)
}

func (s *Server) renderOwners(w http.ResponseWriter, r *http.Request, machine *workflow.Machine, draft *entity.PersonRecord, errs map[string]string, pageErr string) {
	rec := machine.Record()
	steps := machine.Steps()

	view := html.OwnersView{
		Total:             len(steps),
		ControlPersonName: rec.ControlPerson.Name,
		ControlPersonOwns: rec.ControlPersonOwnsBusiness,
		CanAddOwner:       rec.OwnerCount() < workflow.MaxOwners,
		Rows:              forms.OwnershipEditRows(),
		Errors:            errs,
		Error:             pageErr,
	}
	for i, step := range steps {
		if step == workflow.StepBeneficialOwners {
			view.Index = i + 1
		}
	}
	for _, owner := range rec.BeneficialOwners {
		view.Owners = append(view.Owners, html.OwnerItem{ID: owner.ID, Name: owner.Name})
	}
	view.Values = map[string]any{}
	if draft != nil {
		view.Values = map[string]any{
			forms.KeyPersonName:    draft.Name,
			forms.KeyDateOfBirth:   draft.DateOfBirth,
			forms.KeySSN:           draft.SSN,
			forms.KeyPersonAddress: draft.Address,
		}
	}

	body, err := s.renderer.RenderOwners(r.Context(), view, s.renderOptions())
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.writePage(w, body)
}

func (s *Server) renderReview(w http.ResponseWriter, r *http.Request, machine *workflow.Machine, pageErr string) {
	rec := machine.Record()
	steps := machine.Steps()

	view := html.ReviewView{
		Total:         len(steps),
		Summary:       reviewSummary(rec),
		TermsAccepted: rec.IdentityVerification.TermsAccepted,
		TermsURL:      ownership.TermsURL,
		Error:         pageErr,
	}
	for i, step := range steps {
		if step == workflow.StepReview {
			view.Index = i + 1
		}
	}

	body, err := s.renderer.RenderReview(r.Context(), view, s.renderOptions())
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.writePage(w, body)
}

func reviewSummary(rec entity.Record) []html.SummaryItem {
	profile := rec.BusinessProfile

	orgType := profile.OrganizationType
	if org, ok := catalog.OrganizationTypeByValue(orgType); ok {
		orgType = org.Label
	}

	taxID := profile.EIN
	if taxID == "" && profile.SS4FileKey != "" {
		taxID = "SS-4 confirmation letter on file"
	}

	items := []html.SummaryItem{
		{Label: "Legal business name", Value: profile.LegalBusinessName},
		{Label: "Organization type", Value: orgType},
		{Label: "State of incorporation", Value: profile.IncorporationState},
		{Label: "Tax ID", Value: taxID},
		{Label: "NPI", Value: profile.NPI()},
		{Label: "Business email", Value: profile.BusinessEmail},
		{Label: "Business phone", Value: profile.BusinessPhone},
		{Label: "Business address", Value: formatAddress(profile.Address)},
		{Label: "Primary contact", Value: rec.ControlPerson.Name},
	}
	if len(rec.BeneficialOwners) > 0 {
		names := make([]string, 0, len(rec.BeneficialOwners))
		for _, owner := range rec.BeneficialOwners {
			names = append(names, owner.Name)
		}
		items = append(items, html.SummaryItem{
			Label: "Beneficial owners",
			Value: strings.Join(names, ", "),
		})
	}
	return items
}

func formatAddress(addr fields.Address) string {
	parts := []string{addr.Line1}
	if addr.Line2 != "" {
		parts = append(parts, addr.Line2)
	}
	parts = append(parts, fmt.Sprintf("%s, %s %s", addr.City, addr.State, addr.Zip))
	return strings.Join(parts, ", ")
}

func formPtr(r *http.Request, key string) *string {
	value := strings.TrimSpace(r.PostFormValue(key))
	return &value
}

func addressFromForm(r *http.Request, key string) fields.Address {
	return fields.Address{
		Line1: strings.TrimSpace(r.PostFormValue(key + ".line1")),
		Line2: strings.TrimSpace(r.PostFormValue(key + ".line2")),
		City:  strings.TrimSpace(r.PostFormValue(key + ".city")),
		State: r.PostFormValue(key + ".state"),
		Zip:   strings.TrimSpace(r.PostFormValue(key + ".zip")),
	}
}

// personFromForm reads the person fields, optionally namespaced with a
// prefix like "owner.". Unparseable dates are left zero and caught by
// validation on advance.
func personFromForm(r *http.Request, prefix string, withTitle bool) entity.PersonRecord {
	person := entity.PersonRecord{
		Name:    strings.TrimSpace(r.PostFormValue(prefix + forms.KeyPersonName)),
		SSN:     strings.TrimSpace(r.PostFormValue(prefix + forms.KeySSN)),
		Address: addressFromForm(r, prefix+forms.KeyPersonAddress),
	}
	if withTitle {
		person.Title = strings.TrimSpace(r.PostFormValue(prefix + forms.KeyPersonTitle))
	}
	if raw := r.PostFormValue(prefix + forms.KeyDateOfBirth); raw != "" {
		if dob, err := time.Parse("2006-01-02", raw); err == nil {
			person.DateOfBirth = dob
		}
	}
	return person
}
