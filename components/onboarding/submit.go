package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lemma-health/go-onboarding/pkg/entity"
	"github.com/lemma-health/go-onboarding/pkg/fields"
	"github.com/lemma-health/go-onboarding/pkg/partner"
	"github.com/lemma-health/go-onboarding/pkg/workflow"
)

// personPayload is the wire shape for one individual.
type personPayload struct {
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	DateOfBirth string         `json:"dateOfBirth"`
	SSN         string         `json:"ssn"`
	Address     fields.Address `json:"address"`
}

func (p personPayload) record() entity.PersonRecord {
	rec := entity.PersonRecord{
		Name:    p.Name,
		Title:   p.Title,
		SSN:     p.SSN,
		Address: p.Address,
	}
	if when, err := time.Parse("2006-01-02", strings.TrimSpace(p.DateOfBirth)); err == nil {
		rec.DateOfBirth = when
	}
	return rec
}

// submissionRequest is the full application document a client posts after
// collecting every step itself.
type submissionRequest struct {
	BusinessProfile           entity.BusinessProfile `json:"businessProfile"`
	ControlPerson             personPayload          `json:"controlPerson"`
	ControlPersonOwnsBusiness bool                   `json:"controlPersonOwnsBusiness"`
	BeneficialOwners          []personPayload        `json:"beneficialOwners"`
	TermsAccepted             bool                   `json:"termsAccepted"`
}

type submissionResponse struct {
	Status string `json:"status"`
}

// submitHandler validates and submits a complete application. The document
// replays through the workflow machine so the API enforces exactly the rules
// the interactive flow does: per-step field checks, the EIN/SS-4
// substitution, state restrictions, the owner cap, and branch logic.
func (c *Component) submitHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !methodGuard(w, r, http.MethodPost) {
			return
		}
		if !c.guard(w, r) {
			return
		}

		var req submissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			c.writeError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}

		machine := workflow.New(
			workflow.WithClock(c.opts.Clock),
			workflow.WithSubmitter(c.opts.Submitter),
			workflow.WithIPResolver(requestIPResolver{r: r}),
		)

		if fieldErrs, err := c.replay(machine, req); fieldErrs != nil {
			c.writeFieldErrors(w, fieldErrs)
			return
		} else if err != nil {
			c.writeError(w, http.StatusUnprocessableEntity, err.Error(), err)
			return
		}

		if err := machine.Submit(r.Context()); err != nil {
			switch {
			case errors.Is(err, workflow.ErrTermsNotAccepted):
				c.writeError(w, http.StatusUnprocessableEntity, "terms of service must be accepted", err)
			case errors.Is(err, workflow.ErrNoSubmitter):
				c.writeError(w, http.StatusInternalServerError, "submission backend not configured", err)
			default:
				var terr *partner.TransportError
				if errors.As(err, &terr) && !terr.Retryable {
					c.writeError(w, http.StatusBadGateway, "partner rejected the submission", err)
					return
				}
				c.writeError(w, http.StatusBadGateway, "partner temporarily unavailable", err)
			}
			return
		}

		writeJSON(w, http.StatusCreated, submissionResponse{Status: "submitted"})
	})
}

// replay feeds the posted document through the machine's named operations
// and walks every step. It returns field messages for validation failures
// and a bare error for structural rejections.
func (c *Component) replay(machine *workflow.Machine, req submissionRequest) (map[string]string, error) {
	profile := req.BusinessProfile
	npiType := profile.NPIType

	patch := workflow.BusinessProfilePatch{
		LegalBusinessName:  &profile.LegalBusinessName,
		EIN:                &profile.EIN,
		Website:            &profile.Website,
		NaicsCode:          &profile.NaicsCode,
		IncorporationState: &profile.IncorporationState,
		OrganizationType:   &profile.OrganizationType,
		PracticeNPI:        &profile.PracticeNPI,
		IndividualNPI:      &profile.IndividualNPI,
		NPIType:            &npiType,
		BusinessEmail:      &profile.BusinessEmail,
		BusinessPhone:      &profile.BusinessPhone,
		Address:            &profile.Address,
	}
	if err := machine.UpdateBusinessProfile(patch); err != nil {
		return nil, err
	}
	if profile.SS4FileKey != "" {
		if err := machine.AttachSS4Document(machine.Version(), profile.SS4FileKey); err != nil {
			return nil, err
		}
	}
	if err := machine.UpdateControlPerson(req.ControlPerson.record()); err != nil {
		return nil, err
	}
	if err := machine.SetControlPersonOwnsBusiness(req.ControlPersonOwnsBusiness); err != nil {
		return nil, err
	}
	for _, owner := range req.BeneficialOwners {
		if _, err := machine.AddBeneficialOwner(owner.record()); err != nil {
			if verr, ok := workflow.AsValidationError(err); ok {
				return verr.Fields, nil
			}
			return nil, err
		}
	}

	for machine.Current() != workflow.StepReview {
		if _, err := machine.Advance(context.Background()); err != nil {
			if verr, ok := workflow.AsValidationError(err); ok {
				return verr.Fields, nil
			}
			return nil, err
		}
	}

	return nil, machine.AcceptTerms(req.TermsAccepted)
}

// requestIPResolver records the requester's address as the place-of-record
// IP, preferring the forwarded-for chain set by the load balancer.
type requestIPResolver struct {
	r *http.Request
}

func (rr requestIPResolver) ResolveIP(context.Context) (string, error) {
	if fwd := rr.r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first, nil
		}
	}
	host, _, err := net.SplitHostPort(rr.r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(rr.r.RemoteAddr), nil
	}
	return host, nil
}
