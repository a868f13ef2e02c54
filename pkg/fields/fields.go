// Package fields defines the declarative vocabulary describing onboarding
// form inputs. A single Definition drives rendering, per-field validation,
// trust-boundary schema compilation, and payload serialization, so the
// constraints live here as data rather than as literals scattered through
// consumers.
package fields

import (
	"fmt"
	"strings"
)

// Kind enumerates the closed set of field variants. Consumers are expected to
// switch exhaustively on Kind; adding a variant is a breaking change by
// design.
type Kind string

const (
	KindText     Kind = "text"
	KindDropdown Kind = "dropdown"
	KindAddress  Kind = "address"
	KindDate     Kind = "date"
	KindEmail    Kind = "email"
	KindURL      Kind = "url"
	// KindBanner is display-only: it carries copy, never a value, and is
	// skipped by validation and schema compilation.
	KindBanner Kind = "banner"
)

// Kinds returns every known kind, useful for exhaustiveness checks in tests.
func Kinds() []Kind {
	return []Kind{KindText, KindDropdown, KindAddress, KindDate, KindEmail, KindURL, KindBanner}
}

// Option is a single dropdown choice. Disabled options render but cannot be
// selected; the restricted-state rule uses this to keep an organization type
// visible while making it inert.
type Option struct {
	Value    string `json:"value" yaml:"value"`
	Label    string `json:"label" yaml:"label"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Definition describes one input. Which members are meaningful depends on
// Kind; Validate enforces the variant-specific constraints at construction
// time.
type Definition struct {
	Kind        Kind     `json:"kind"`
	Key         string   `json:"key"`
	Label       string   `json:"label,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Description string   `json:"description,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	// Format applies digit-exact input rules to text fields.
	Format Format `json:"format,omitempty"`
	// Options is the finite choice set for dropdown fields.
	Options []Option `json:"options,omitempty"`
	// MinAge is the minimum whole-year age a date field must satisfy; zero
	// means no constraint.
	MinAge int `json:"minAge,omitempty"`
	// Text is the display copy for banner fields.
	Text string `json:"text,omitempty"`
}

// Row groups 1-4 definitions that render side by side. Grouping is layout
// only; it has no effect on validation or serialization.
type Row []Definition

// MaxRowWidth caps how many fields share a row.
const MaxRowWidth = 4

// Validate reports whether the definition is internally consistent.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Key) == "" {
		return fmt.Errorf("fields: definition is missing a key")
	}
	switch d.Kind {
	case KindText:
		if d.Format != "" {
			if _, err := d.Format.DigitCount(); err != nil {
				return fmt.Errorf("fields: %s: %w", d.Key, err)
			}
		}
	case KindDropdown:
		if len(d.Options) == 0 {
			return fmt.Errorf("fields: dropdown %s has no options", d.Key)
		}
	case KindAddress, KindEmail, KindURL:
		if d.Format != "" {
			return fmt.Errorf("fields: %s: format is only valid on text fields", d.Key)
		}
	case KindDate:
		if d.MinAge < 0 {
			return fmt.Errorf("fields: date %s has negative minAge", d.Key)
		}
	case KindBanner:
		if d.Required {
			return fmt.Errorf("fields: banner %s cannot be required", d.Key)
		}
	default:
		return fmt.Errorf("fields: %s has unknown kind %q", d.Key, d.Kind)
	}
	if d.Kind != KindText && d.Kind != KindDate && d.Format != "" {
		return fmt.Errorf("fields: %s: format is only valid on text fields", d.Key)
	}
	return nil
}

// ValidateRows validates every definition and rejects duplicate keys and
// overfull rows across the whole field set.
func ValidateRows(rows []Row) error {
	seen := make(map[string]struct{})
	for _, row := range rows {
		if len(row) > MaxRowWidth {
			return fmt.Errorf("fields: row has %d definitions, max is %d", len(row), MaxRowWidth)
		}
		for _, def := range row {
			if err := def.Validate(); err != nil {
				return err
			}
			if _, dup := seen[def.Key]; dup {
				return fmt.Errorf("fields: duplicate key %q", def.Key)
			}
			seen[def.Key] = struct{}{}
		}
	}
	return nil
}

// Flatten returns the definitions of all rows in declaration order.
func Flatten(rows []Row) []Definition {
	var out []Definition
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

// Lookup finds a definition by key.
func Lookup(rows []Row, key string) (Definition, bool) {
	for _, row := range rows {
		for _, def := range row {
			if def.Key == key {
				return def, true
			}
		}
	}
	return Definition{}, false
}

// OptionValues returns the values of a dropdown's options, skipping disabled
// entries when selectableOnly is set.
func (d Definition) OptionValues(selectableOnly bool) []string {
	values := make([]string, 0, len(d.Options))
	for _, opt := range d.Options {
		if selectableOnly && opt.Disabled {
			continue
		}
		values = append(values, opt.Value)
	}
	return values
}
