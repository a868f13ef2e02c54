package fieldschema

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/lemma-health/go-onboarding/pkg/fields"
)

// OpenAPI exports the compiled schema as an OpenAPI object schema so API
// surfaces can publish the same contract the engine enforces. Values are
// described in their normalized form: digit formats document the exact digit
// count that remains after stripping separators.
//
// The export is documentation; enforcement stays with Validate so the engine
// and the boundary can never disagree (dropdown option membership, for
// example, is published as an enum but checked nowhere the engine does not
// check it).
func (s *Schema) OpenAPI() *openapi3.Schema {
	out := &openapi3.Schema{
		Type:       &openapi3.Types{openapi3.TypeObject},
		Properties: make(openapi3.Schemas, len(s.rules)),
	}
	for _, r := range s.rules {
		prop := propertySchema(r.def)
		if prop == nil {
			continue
		}
		out.Properties[r.wireKey] = openapi3.NewSchemaRef("", prop)
		if r.def.Required && r.def.Kind != fields.KindURL {
			out.Required = append(out.Required, r.wireKey)
		}
	}
	return out
}

func propertySchema(def fields.Definition) *openapi3.Schema {
	switch def.Kind {
	case fields.KindText:
		prop := &openapi3.Schema{
			Type:        &openapi3.Types{openapi3.TypeString},
			Description: def.Description,
		}
		if def.Format != "" {
			count, err := def.Format.DigitCount()
			if err == nil {
				prop.Pattern = fmt.Sprintf(`^\d{%d}$`, count)
				prop.Format = string(def.Format)
			}
		}
		return prop

	case fields.KindDropdown:
		prop := &openapi3.Schema{
			Type:        &openapi3.Types{openapi3.TypeString},
			Description: def.Description,
		}
		for _, opt := range def.Options {
			prop.Enum = append(prop.Enum, opt.Value)
		}
		return prop

	case fields.KindEmail:
		return &openapi3.Schema{
			Type:        &openapi3.Types{openapi3.TypeString},
			Format:      "email",
			Description: def.Description,
		}

	case fields.KindURL:
		return &openapi3.Schema{
			Type:        &openapi3.Types{openapi3.TypeString},
			Description: def.Description,
		}

	case fields.KindDate:
		return &openapi3.Schema{
			Type:        &openapi3.Types{openapi3.TypeString},
			Format:      "date",
			Description: def.Description,
		}

	case fields.KindAddress:
		zip := &openapi3.Schema{
			Type:    &openapi3.Types{openapi3.TypeString},
			Pattern: `^\d{5}$`,
		}
		props := openapi3.Schemas{
			"line1": openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeString}}),
			"line2": openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeString}}),
			"city":  openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeString}}),
			"state": openapi3.NewSchemaRef("", &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeString}}),
			"zip":   openapi3.NewSchemaRef("", zip),
		}
		return &openapi3.Schema{
			Type:        &openapi3.Types{openapi3.TypeObject},
			Properties:  props,
			Required:    []string{"line1", "city", "state", "zip"},
			Description: def.Description,
		}

	case fields.KindBanner:
		return nil
	}
	return nil
}
