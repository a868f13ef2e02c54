package fields

import "strings"

// Address is the structured sub-record collected by address fields. Line2 is
// always optional.
type Address struct {
	Line1 string `json:"line1" yaml:"line1"`
	Line2 string `json:"line2,omitempty" yaml:"line2,omitempty"`
	City  string `json:"city" yaml:"city"`
	State string `json:"state" yaml:"state"`
	Zip   string `json:"zip" yaml:"zip"`
}

// IsZero reports whether no component has been filled in.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Line1) == "" &&
		strings.TrimSpace(a.Line2) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.State) == "" &&
		strings.TrimSpace(a.Zip) == ""
}
