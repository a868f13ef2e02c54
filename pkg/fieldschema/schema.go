// Package fieldschema compiles field definitions into a structural validator
// for trust boundaries. A compiled Schema re-checks the same rules the
// validation engine applies client-side; the two never diverge because both
// run the same per-field rule implementation.
package fieldschema

import (
	"fmt"
	"time"

	"github.com/lemma-health/go-onboarding/pkg/fields"
	"github.com/lemma-health/go-onboarding/pkg/validation"
)

// Issue is one structural validation failure, keyed by the wire-format field
// name.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Schema validates wire-format payloads against compiled field rules.
type Schema struct {
	rules []rule
	now   func() time.Time
}

type rule struct {
	def fields.Definition
	// wireKey is the external payload key; it equals the definition key
	// unless a key map remapped it.
	wireKey string
}

// Option configures compilation.
type Option func(*compileConfig)

type compileConfig struct {
	keyMap map[string]string
	now    func() time.Time
}

// WithKeyMap remaps internal definition keys to external wire keys. Entries
// are wireKey -> definitionKey, matching how API payload names differ from
// form state names without duplicating definitions.
func WithKeyMap(keyMap map[string]string) Option {
	return func(c *compileConfig) {
		if len(keyMap) == 0 {
			return
		}
		if c.keyMap == nil {
			c.keyMap = make(map[string]string, len(keyMap))
		}
		for wire, def := range keyMap {
			c.keyMap[wire] = def
		}
	}
}

// WithClock overrides the clock used by minimum-age rules.
func WithClock(now func() time.Time) Option {
	return func(c *compileConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// Compile builds a Schema from the given rows. Banner fields compile to
// nothing. Compilation fails when the definitions themselves are malformed.
func Compile(rows []fields.Row, opts ...Option) (*Schema, error) {
	if err := fields.ValidateRows(rows); err != nil {
		return nil, fmt.Errorf("fieldschema: %w", err)
	}

	cfg := compileConfig{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	reverse := make(map[string]string, len(cfg.keyMap))
	for wire, defKey := range cfg.keyMap {
		reverse[defKey] = wire
	}

	schema := &Schema{now: cfg.now}
	for _, def := range fields.Flatten(rows) {
		if def.Kind == fields.KindBanner {
			continue
		}
		wireKey := def.Key
		if mapped, ok := reverse[def.Key]; ok {
			wireKey = mapped
		}
		schema.rules = append(schema.rules, rule{def: def, wireKey: wireKey})
	}
	return schema, nil
}

// MustCompile panics on compilation failure. Useful for package-level schemas
// built from static definitions.
func MustCompile(rows []fields.Row, opts ...Option) *Schema {
	schema, err := Compile(rows, opts...)
	if err != nil {
		panic(err)
	}
	return schema
}

// Validate checks a decoded payload against every compiled rule and returns
// the issues in declaration order. An empty slice means the payload is
// structurally acceptable.
func (s *Schema) Validate(payload map[string]any) []Issue {
	if s == nil {
		return nil
	}
	var issues []Issue
	for _, r := range s.rules {
		probe := validation.Values{r.def.Key: payload[r.wireKey]}
		msg := validation.ValidateField(r.def, probe, validation.WithClock(s.now))
		if msg != "" {
			issues = append(issues, Issue{Field: r.wireKey, Message: msg})
		}
	}
	return issues
}

// Keys returns the wire-format keys the schema knows about, in declaration
// order.
func (s *Schema) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		keys = append(keys, r.wireKey)
	}
	return keys
}
