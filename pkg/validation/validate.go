// Package validation implements the field-level validation engine. It is a
// pure function over field definitions and in-memory values: no I/O, no
// retained state, deterministic for a fixed clock. Callers may run it on
// every keystroke, on blur, or only on submit.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lemma-health/go-onboarding/pkg/fields"
)

// Values maps field keys to their current raw values. Text-like fields carry
// strings, dates carry time.Time (or ISO strings), addresses carry an
// fields.Address or an equivalent string map.
type Values map[string]any

// Option adjusts engine behaviour for a single call.
type Option func(*config)

type config struct {
	now func() time.Time
}

// WithClock overrides the clock used for minimum-age checks. Tests pin it so
// boundary cases are reproducible.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate checks every definition in rows against values and returns an
// error message per failing key. A field never produces more than one
// message, and fields outside rows are never reported.
func Validate(rows []fields.Row, values Values, opts ...Option) map[string]string {
	cfg := config{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	errs := make(map[string]string)
	for _, row := range rows {
		for _, def := range row {
			if msg := validateDefinition(def, values, cfg); msg != "" {
				errs[def.Key] = msg
			}
		}
	}
	return errs
}

// ValidateField checks a single definition, for blur-level feedback. The
// empty string means the value is acceptable.
func ValidateField(def fields.Definition, values Values, opts ...Option) string {
	cfg := config{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return validateDefinition(def, values, cfg)
}

func validateDefinition(def fields.Definition, values Values, cfg config) string {
	value := values[def.Key]

	switch def.Kind {
	case fields.KindBanner:
		return ""

	case fields.KindAddress:
		if !def.Required {
			return ""
		}
		return validateAddress(value)

	case fields.KindDate:
		when, ok := dateValue(value)
		if !ok {
			if def.Required {
				return def.Label + " is required"
			}
			return ""
		}
		if def.MinAge > 0 {
			if AgeOn(when, cfg.now()) < def.MinAge {
				return fmt.Sprintf("Must be at least %d years old", def.MinAge)
			}
		}
		return ""

	case fields.KindEmail:
		str := stringValue(value)
		if strings.TrimSpace(str) == "" {
			if def.Required {
				return def.Label + " is required"
			}
			return ""
		}
		if !emailPattern.MatchString(str) {
			return "Please enter a valid email address"
		}
		return ""

	case fields.KindURL:
		// URLs are never required, and the check is intentionally weak: a
		// bare "contains a dot" probe. Full URL parsing is a non-goal.
		str := stringValue(value)
		if str != "" && !strings.Contains(str, ".") {
			return "Please enter a valid URL"
		}
		return ""

	case fields.KindDropdown:
		if def.Required && stringValue(value) == "" {
			return def.Label + " is required"
		}
		return ""

	case fields.KindText:
		str := stringValue(value)
		if strings.TrimSpace(str) == "" {
			if def.Required {
				return def.Label + " is required"
			}
			return ""
		}
		if def.Format == "" {
			return ""
		}
		return validateFormat(def.Format, str)
	}

	return ""
}

func validateFormat(format fields.Format, raw string) string {
	want, err := format.DigitCount()
	if err != nil {
		// Unknown formats are rejected at construction time; treat a stray
		// one as unformatted text.
		return ""
	}
	digits := fields.StripNonDigits(raw)
	if len(digits) != want {
		return formatLengthMessage(format, want)
	}
	if format == fields.FormatPhone && fields.IsPremiumRate(digits) {
		return "Premium-rate numbers are not allowed"
	}
	return ""
}

func formatLengthMessage(format fields.Format, want int) string {
	switch format {
	case fields.FormatSSN:
		return fmt.Sprintf("SSN must be exactly %d digits", want)
	case fields.FormatEIN:
		return fmt.Sprintf("EIN must be exactly %d digits", want)
	case fields.FormatNPI:
		return fmt.Sprintf("NPI must be exactly %d digits", want)
	case fields.FormatPhone:
		return fmt.Sprintf("Phone number must be exactly %d digits", want)
	case fields.FormatZip:
		return fmt.Sprintf("ZIP code must be exactly %d digits", want)
	}
	return fmt.Sprintf("Must be exactly %d digits", want)
}

// validateAddress reports a single composite error on the address key;
// sub-field problems are not surfaced individually.
func validateAddress(value any) string {
	addr, ok := addressValue(value)
	if !ok {
		return "Complete address is required"
	}
	if strings.TrimSpace(addr.Line1) == "" ||
		strings.TrimSpace(addr.City) == "" ||
		strings.TrimSpace(addr.State) == "" ||
		strings.TrimSpace(addr.Zip) == "" {
		return "Complete address is required"
	}
	if len(fields.StripNonDigits(addr.Zip)) != 5 {
		return "ZIP code must be exactly 5 digits"
	}
	return ""
}

// AgeOn computes age in whole years at now: the calendar-year difference,
// minus one when now's month/day precedes the birth month/day. Turning the
// threshold age on the evaluation date itself is not a violation.
func AgeOn(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() ||
		(now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

func stringValue(value any) string {
	s, _ := value.(string)
	return s
}

func dateValue(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case string:
		if strings.TrimSpace(v) == "" {
			return time.Time{}, false
		}
		when, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, false
		}
		return when, true
	}
	return time.Time{}, false
}

func addressValue(value any) (fields.Address, bool) {
	switch v := value.(type) {
	case fields.Address:
		return v, true
	case *fields.Address:
		if v == nil {
			return fields.Address{}, false
		}
		return *v, true
	case map[string]any:
		return fields.Address{
			Line1: stringValue(v["line1"]),
			Line2: stringValue(v["line2"]),
			City:  stringValue(v["city"]),
			State: stringValue(v["state"]),
			Zip:   stringValue(v["zip"]),
		}, true
	case map[string]string:
		return fields.Address{
			Line1: v["line1"],
			Line2: v["line2"],
			City:  v["city"],
			State: v["state"],
			Zip:   v["zip"],
		}, true
	}
	return fields.Address{}, false
}
