// Package tui runs the onboarding flow in a terminal. A Runner walks the
// workflow machine step by step, prompting for each field through a
// PromptDriver so the interaction logic stays testable without a terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lemma-health/go-onboarding/pkg/catalog"
	"github.com/lemma-health/go-onboarding/pkg/entity"
	"github.com/lemma-health/go-onboarding/pkg/fields"
	"github.com/lemma-health/go-onboarding/pkg/render"
	"github.com/lemma-health/go-onboarding/pkg/upload"
	"github.com/lemma-health/go-onboarding/pkg/workflow"
)

// DocumentUploader pushes a local file to document storage and returns its
// object key. *upload.Client satisfies this.
type DocumentUploader interface {
	Upload(ctx context.Context, file upload.File) (string, error)
}

// Runner drives the onboarding machine through terminal prompts.
type Runner struct {
	driver   PromptDriver
	machine  *workflow.Machine
	uploader DocumentUploader
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithUploader enables SS-4 letter uploads from a local path.
func WithUploader(uploader DocumentUploader) RunnerOption {
	return func(r *Runner) {
		r.uploader = uploader
	}
}

// NewRunner builds a runner over the given machine and driver.
func NewRunner(machine *workflow.Machine, driver PromptDriver, opts ...RunnerOption) *Runner {
	r := &Runner{driver: driver, machine: machine}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run walks the flow to completion or until the user aborts.
func (r *Runner) Run(ctx context.Context) error {
	for {
		step := r.machine.Current()
		if step == workflow.StepComplete {
			return r.driver.Info(ctx, "Application submitted. You're all set.")
		}

		view := render.BuildStepView(r.machine, nil)
		if err := r.driver.Info(ctx, fmt.Sprintf("\n%s (step %d of %d)", view.Title, view.Index, view.Total)); err != nil {
			return err
		}

		var err error
		switch step {
		case workflow.StepOrganizationProfile:
			err = r.promptProfile(ctx)
		case workflow.StepOrganizationDetails:
			err = r.promptDetails(ctx)
		case workflow.StepOrganizationContact:
			err = r.promptContact(ctx)
		case workflow.StepControlPerson:
			err = r.promptControlPerson(ctx)
		case workflow.StepBeneficialOwners:
			err = r.promptOwners(ctx)
		case workflow.StepReview:
			return r.review(ctx)
		}
		if err != nil {
			return err
		}

		if _, err := r.machine.Advance(ctx); err != nil {
			verr, ok := workflow.AsValidationError(err)
			if !ok {
				return err
			}
			for key, msg := range verr.Fields {
				if infoErr := r.driver.Info(ctx, fmt.Sprintf("  %s: %s", key, msg)); infoErr != nil {
					return infoErr
				}
			}
		}
	}
}

func (r *Runner) promptProfile(ctx context.Context) error {
	rec := r.machine.Record()
	profile := rec.BusinessProfile

	name, err := r.driver.Input(ctx, InputConfig{Message: "Organization name", Default: profile.LegalBusinessName})
	if err != nil {
		return err
	}
	website, err := r.driver.Input(ctx, InputConfig{Message: "Website (optional)", Default: profile.Website})
	if err != nil {
		return err
	}
	naics, err := r.selectOption(ctx, "Primary line of business", catalog.NaicsOptions(), profile.NaicsCode)
	if err != nil {
		return err
	}
	orgType, err := r.selectOption(ctx, "Organization structure",
		catalog.OrganizationTypeOptions(profile.IncorporationState), profile.OrganizationType)
	if err != nil {
		return err
	}

	return r.machine.UpdateBusinessProfile(workflow.BusinessProfilePatch{
		LegalBusinessName: &name,
		Website:           &website,
		NaicsCode:         &naics,
		OrganizationType:  &orgType,
	})
}

func (r *Runner) promptDetails(ctx context.Context) error {
	rec := r.machine.Record()
	profile := rec.BusinessProfile

	state, err := r.selectOption(ctx, "State of incorporation", catalog.StateOptions(), profile.IncorporationState)
	if err != nil {
		return err
	}
	ein, err := r.driver.Input(ctx, InputConfig{
		Message: "Tax ID (EIN)",
		Default: profile.EIN,
		Help:    "Leave blank to upload an SS-4 confirmation letter instead.",
	})
	if err != nil {
		return err
	}

	patch := workflow.BusinessProfilePatch{IncorporationState: &state, EIN: &ein}

	if r.machine.Branch() == catalog.BranchSkipBeneficialOwners {
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      "Which NPI will you enroll with?",
			Options:      []string{"Organizational NPI (Type 2)", "Individual NPI (Type 1)"},
			DefaultIndex: npiTypeIndex(profile.NPIType),
		})
		if err != nil {
			return err
		}
		npiType := entity.NPITypeOrganization
		if idx == 1 {
			npiType = entity.NPITypeIndividual
		}
		patch.NPIType = &npiType

		if npiType == entity.NPITypeIndividual {
			npi, err := r.driver.Input(ctx, InputConfig{Message: "Individual NPI", Default: profile.IndividualNPI})
			if err != nil {
				return err
			}
			patch.IndividualNPI = &npi
		} else {
			npi, err := r.driver.Input(ctx, InputConfig{Message: "Organizational NPI (optional)", Default: profile.PracticeNPI})
			if err != nil {
				return err
			}
			patch.PracticeNPI = &npi
		}
	} else {
		npi, err := r.driver.Input(ctx, InputConfig{Message: "Organizational NPI", Default: profile.PracticeNPI})
		if err != nil {
			return err
		}
		patch.PracticeNPI = &npi
	}

	if err := r.machine.UpdateBusinessProfile(patch); err != nil {
		return err
	}

	if strings.TrimSpace(ein) == "" && r.uploader != nil && r.machine.Record().BusinessProfile.SS4FileKey == "" {
		return r.promptSS4Upload(ctx)
	}
	return nil
}

func (r *Runner) promptSS4Upload(ctx context.Context) error {
	wants, err := r.driver.Confirm(ctx, ConfirmConfig{
		Message: "No EIN entered. Upload an SS-4 confirmation letter instead?",
		Default: true,
	})
	if err != nil || !wants {
		return err
	}

	path, err := r.driver.Input(ctx, InputConfig{Message: "Path to SS-4 letter (PDF or image)"})
	if err != nil {
		return err
	}

	version := r.machine.Version()
	key, err := r.uploader.Upload(ctx, &upload.OSFile{Path: strings.TrimSpace(path)})
	if err != nil {
		return r.driver.Info(ctx, "Upload failed: "+err.Error())
	}
	if err := r.machine.AttachSS4Document(version, key); err != nil {
		return r.driver.Info(ctx, "Upload discarded: "+err.Error())
	}
	return r.driver.Info(ctx, "SS-4 letter attached.")
}

func (r *Runner) promptContact(ctx context.Context) error {
	rec := r.machine.Record()
	profile := rec.BusinessProfile

	addr, err := r.promptAddress(ctx, "Business address", profile.Address)
	if err != nil {
		return err
	}
	email, err := r.driver.Input(ctx, InputConfig{Message: "Business email", Default: profile.BusinessEmail})
	if err != nil {
		return err
	}
	phone, err := r.driver.Input(ctx, InputConfig{Message: "Business phone", Default: profile.BusinessPhone})
	if err != nil {
		return err
	}

	return r.machine.UpdateBusinessProfile(workflow.BusinessProfilePatch{
		Address:       &addr,
		BusinessEmail: &email,
		BusinessPhone: &phone,
	})
}

func (r *Runner) promptControlPerson(ctx context.Context) error {
	person, err := r.promptPerson(ctx, r.machine.Record().ControlPerson, true)
	if err != nil {
		return err
	}
	return r.machine.UpdateControlPerson(person)
}

func (r *Runner) promptOwners(ctx context.Context) error {
	for {
		rec := r.machine.Record()

		owns := rec.ControlPersonOwnsBusiness
		lines := []string{fmt.Sprintf("Control person counted as owner: %v", owns)}
		for i, owner := range rec.BeneficialOwners {
			lines = append(lines, fmt.Sprintf("  %d. %s", i+1, owner.Name))
		}
		if err := r.driver.Info(ctx, strings.Join(lines, "\n")); err != nil {
			return err
		}

		options := []string{"Toggle control person ownership", "Add owner", "Continue"}
		if len(rec.BeneficialOwners) > 0 {
			options = []string{"Toggle control person ownership", "Add owner", "Remove owner", "Continue"}
		}
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      "Does anyone own 25% or more of the organization?",
			Options:      options,
			DefaultIndex: len(options) - 1,
		})
		if err != nil {
			return err
		}

		switch options[idx] {
		case "Toggle control person ownership":
			if err := r.machine.SetControlPersonOwnsBusiness(!owns); err != nil {
				if infoErr := r.driver.Info(ctx, err.Error()); infoErr != nil {
					return infoErr
				}
			}
		case "Add owner":
			person, err := r.promptPerson(ctx, entity.PersonRecord{}, false)
			if err != nil {
				return err
			}
			if _, err := r.machine.AddBeneficialOwner(person); err != nil {
				if verr, ok := workflow.AsValidationError(err); ok {
					for key, msg := range verr.Fields {
						if infoErr := r.driver.Info(ctx, fmt.Sprintf("  %s: %s", key, msg)); infoErr != nil {
							return infoErr
						}
					}
				} else if infoErr := r.driver.Info(ctx, err.Error()); infoErr != nil {
					return infoErr
				}
			}
		case "Remove owner":
			names := make([]string, len(rec.BeneficialOwners))
			for i, owner := range rec.BeneficialOwners {
				names[i] = owner.Name
			}
			pick, err := r.driver.Select(ctx, SelectConfig{Message: "Remove which owner?", Options: names})
			if err != nil {
				return err
			}
			if pick >= 0 && pick < len(rec.BeneficialOwners) {
				if err := r.machine.RemoveBeneficialOwner(rec.BeneficialOwners[pick].ID); err != nil {
					return err
				}
			}
		case "Continue":
			return nil
		}
	}
}

func (r *Runner) review(ctx context.Context) error {
	rec := r.machine.Record()
	summary := []string{
		"Review your application:",
		"  Organization: " + rec.BusinessProfile.LegalBusinessName,
		"  Structure:    " + rec.BusinessProfile.OrganizationType,
		"  Control person: " + rec.ControlPerson.Name,
		fmt.Sprintf("  Beneficial owners: %d", rec.OwnerCount()),
	}
	if err := r.driver.Info(ctx, strings.Join(summary, "\n")); err != nil {
		return err
	}

	accepted, err := r.driver.Confirm(ctx, ConfirmConfig{
		Message: "Do you agree to the terms of service?",
		Help:    "https://lemma.health/terms",
	})
	if err != nil {
		return err
	}
	if err := r.machine.AcceptTerms(accepted); err != nil {
		return err
	}
	if !accepted {
		return r.driver.Info(ctx, "Submission requires accepting the terms of service.")
	}

	if err := r.machine.Submit(ctx); err != nil {
		return r.driver.Info(ctx, "Submission failed: "+err.Error())
	}
	return r.driver.Info(ctx, "Application submitted. You're all set.")
}

// promptPerson collects one individual's details. Title is only asked for
// the control person.
func (r *Runner) promptPerson(ctx context.Context, current entity.PersonRecord, withTitle bool) (entity.PersonRecord, error) {
	person := current

	name, err := r.driver.Input(ctx, InputConfig{Message: "Full legal name", Default: current.Name})
	if err != nil {
		return person, err
	}
	person.Name = name

	if withTitle {
		title, err := r.driver.Input(ctx, InputConfig{Message: "Title (optional)", Default: current.Title})
		if err != nil {
			return person, err
		}
		person.Title = title
	}

	dobDefault := ""
	if !current.DateOfBirth.IsZero() {
		dobDefault = current.DateOfBirth.Format("2006-01-02")
	}
	dob, err := r.driver.Input(ctx, InputConfig{
		Message: "Date of birth (YYYY-MM-DD)",
		Default: dobDefault,
		Validator: func(raw string) error {
			if strings.TrimSpace(raw) == "" {
				return nil
			}
			if _, err := time.Parse("2006-01-02", raw); err != nil {
				return fmt.Errorf("use YYYY-MM-DD")
			}
			return nil
		},
	})
	if err != nil {
		return person, err
	}
	if when, parseErr := time.Parse("2006-01-02", strings.TrimSpace(dob)); parseErr == nil {
		person.DateOfBirth = when
	} else {
		person.DateOfBirth = time.Time{}
	}

	ssn, err := r.driver.Input(ctx, InputConfig{Message: "Social Security Number", Default: current.SSN})
	if err != nil {
		return person, err
	}
	person.SSN = ssn

	addr, err := r.promptAddress(ctx, "Home address", current.Address)
	if err != nil {
		return person, err
	}
	person.Address = addr
	return person, nil
}

func (r *Runner) promptAddress(ctx context.Context, label string, current fields.Address) (fields.Address, error) {
	addr := current

	line1, err := r.driver.Input(ctx, InputConfig{Message: label + ": street", Default: current.Line1})
	if err != nil {
		return addr, err
	}
	addr.Line1 = line1

	line2, err := r.driver.Input(ctx, InputConfig{Message: label + ": apt/suite (optional)", Default: current.Line2})
	if err != nil {
		return addr, err
	}
	addr.Line2 = line2

	city, err := r.driver.Input(ctx, InputConfig{Message: label + ": city", Default: current.City})
	if err != nil {
		return addr, err
	}
	addr.City = city

	state, err := r.selectOption(ctx, label+": state", catalog.StateOptions(), current.State)
	if err != nil {
		return addr, err
	}
	addr.State = state

	zip, err := r.driver.Input(ctx, InputConfig{Message: label + ": ZIP", Default: current.Zip})
	if err != nil {
		return addr, err
	}
	addr.Zip = zip
	return addr, nil
}

// selectOption presents labeled options and returns the chosen value.
// Disabled options re-prompt with an explanation.
func (r *Runner) selectOption(ctx context.Context, message string, options []fields.Option, currentValue string) (string, error) {
	labels := make([]string, len(options))
	defaultIndex := 0
	for i, opt := range options {
		labels[i] = opt.Label
		if opt.Disabled {
			labels[i] += " (unavailable in your state)"
		}
		if opt.Value == currentValue {
			defaultIndex = i
		}
	}

	for {
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      labels,
			DefaultIndex: defaultIndex,
			PageSize:     12,
		})
		if err != nil {
			return "", err
		}
		if idx < 0 || idx >= len(options) {
			return "", nil
		}
		if options[idx].Disabled {
			if err := r.driver.Info(ctx, "That structure is not available in your state of incorporation."); err != nil {
				return "", err
			}
			continue
		}
		return options[idx].Value, nil
	}
}

func npiTypeIndex(t entity.NPIType) int {
	if t == entity.NPITypeIndividual {
		return 1
	}
	return 0
}
