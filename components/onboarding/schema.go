package onboarding

import (
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/lemma-health/go-onboarding/pkg/fields"
	"github.com/lemma-health/go-onboarding/pkg/fieldschema"
	"github.com/lemma-health/go-onboarding/pkg/forms"
)

var (
	schemaOnce sync.Once
	stepSchema map[string]*openapi3.Schema
)

// stepSchemas compiles the per-step field rows into OpenAPI document
// fragments. The export is documentation for API clients; enforcement stays
// with the validation engine.
func stepSchemas() map[string]*openapi3.Schema {
	schemaOnce.Do(func() {
		compile := func(rows []fields.Row) *openapi3.Schema {
			return fieldschema.MustCompile(rows).OpenAPI()
		}
		detailsRows := append(forms.DetailsBaseRows(), forms.OrgNPIRows()...)

		stepSchema = map[string]*openapi3.Schema{
			"organizationProfile": compile(forms.ProfileRows("")),
			"organizationDetails": compile(detailsRows),
			"organizationContact": compile(forms.ContactRows()),
			"controlPerson":       compile(forms.LeadershipRows()),
			"beneficialOwner":     compile(forms.OwnershipEditRows()),
		}
	})
	return stepSchema
}

// schemaHandler publishes the step schemas for clients that render their own
// forms.
func (c *Component) schemaHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !methodGuard(w, r, http.MethodGet) {
			return
		}
		if !c.guard(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"steps": stepSchemas()})
	})
}
