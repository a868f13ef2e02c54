package onboarding

import (
	"net/http"

	"github.com/lemma-health/go-onboarding/pkg/catalog"
	"github.com/lemma-health/go-onboarding/pkg/fields"
)

type optionPayload struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled,omitempty"`
}

type referenceResponse struct {
	OrganizationTypes []optionPayload `json:"organizationTypes"`
	States            []optionPayload `json:"states"`
	NaicsCodes        []optionPayload `json:"naicsCodes"`
}

// referenceHandler serves the selectable catalogs. The state query parameter
// marks organization structures restricted in that jurisdiction as disabled.
func (c *Component) referenceHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !methodGuard(w, r, http.MethodGet) {
			return
		}
		if !c.guard(w, r) {
			return
		}

		state := r.URL.Query().Get("state")
		writeJSON(w, http.StatusOK, referenceResponse{
			OrganizationTypes: toPayload(catalog.OrganizationTypeOptions(state)),
			States:            toPayload(catalog.StateOptions()),
			NaicsCodes:        toPayload(catalog.NaicsOptions()),
		})
	})
}

func toPayload(options []fields.Option) []optionPayload {
	out := make([]optionPayload, 0, len(options))
	for _, opt := range options {
		out = append(out, optionPayload{
			Value:    opt.Value,
			Label:    opt.Label,
			Disabled: opt.Disabled,
		})
	}
	return out
}
