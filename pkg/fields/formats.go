package fields

import "fmt"

// Format tags a text field with a digit-exact input rule. Every format strips
// non-digit characters before checking length, so "123-45-6789" and
// "123456789" are the same SSN.
type Format string

const (
	FormatSSN   Format = "ssn"
	FormatEIN   Format = "ein"
	FormatNPI   Format = "npi"
	FormatPhone Format = "phone"
	FormatZip   Format = "zip"
)

// digitCounts is the single source of truth for exact digit lengths.
var digitCounts = map[Format]int{
	FormatSSN:   9,
	FormatEIN:   9,
	FormatNPI:   10,
	FormatPhone: 10,
	FormatZip:   5,
}

// PremiumRatePrefixes are reserved phone prefixes rejected even when the
// digit count is valid.
var PremiumRatePrefixes = []string{"900", "976"}

// DigitCount returns the exact digit length the format requires.
func (f Format) DigitCount() (int, error) {
	n, ok := digitCounts[f]
	if !ok {
		return 0, fmt.Errorf("fields: unknown format %q", f)
	}
	return n, nil
}

// StripNonDigits removes every non-digit rune, mirroring how formatted input
// ("123-45-6789", "(212) 555-1234") is normalized before validation and
// serialization.
func StripNonDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// IsPremiumRate reports whether a 10-digit phone number starts with a
// reserved premium-rate prefix.
func IsPremiumRate(digits string) bool {
	if len(digits) < 3 {
		return false
	}
	prefix := digits[:3]
	for _, reserved := range PremiumRatePrefixes {
		if prefix == reserved {
			return true
		}
	}
	return false
}
