package fieldschema

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lemma-health/go-onboarding/pkg/fields"
)

var fixedNow = func() time.Time {
	return time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)
}

func sampleRows() []fields.Row {
	return []fields.Row{
		{
			{Kind: fields.KindText, Key: "name", Label: "Organization Name", Required: true},
			{Kind: fields.KindText, Key: "ein", Label: "Tax ID (EIN)", Required: true, Format: fields.FormatEIN},
		},
		{
			{Kind: fields.KindDropdown, Key: "organizationType", Label: "Organization Type", Required: true,
				Options: []fields.Option{{Value: "llc"}, {Value: "corporation"}}},
			{Kind: fields.KindURL, Key: "url", Label: "Website", Required: true},
		},
		{
			{Kind: fields.KindDate, Key: "dateOfBirth", Label: "Date of Birth", Required: true, MinAge: 18},
			{Kind: fields.KindBanner, Key: "notice", Text: "For verification only."},
		},
	}
}

func TestCompileRejectsMalformedRows(t *testing.T) {
	rows := []fields.Row{{{Kind: fields.KindDropdown, Key: "empty"}}}
	if _, err := Compile(rows); err == nil {
		t.Fatal("Compile() should reject a dropdown without options")
	}
}

func TestSchemaValidateMatchesEngine(t *testing.T) {
	schema := MustCompile(sampleRows(), WithClock(fixedNow))

	issues := schema.Validate(map[string]any{
		"name":             "Sunrise Medical Group",
		"ein":              "12-3456789",
		"organizationType": "llc",
		"dateOfBirth":      "1980-03-14",
	})
	if len(issues) != 0 {
		t.Fatalf("valid payload produced issues: %v", issues)
	}

	issues = schema.Validate(map[string]any{
		"ein":         "1234",
		"dateOfBirth": "2010-01-01",
	})
	want := []Issue{
		{Field: "name", Message: "Organization Name is required"},
		{Field: "ein", Message: "EIN must be exactly 9 digits"},
		{Field: "organizationType", Message: "Organization Type is required"},
		{Field: "dateOfBirth", Message: "Must be at least 18 years old"},
	}
	if diff := cmp.Diff(want, issues); diff != "" {
		t.Errorf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaKeyMap(t *testing.T) {
	rows := []fields.Row{{{Kind: fields.KindText, Key: "ein", Label: "Tax ID (EIN)", Required: true, Format: fields.FormatEIN}}}
	schema := MustCompile(rows, WithKeyMap(map[string]string{"taxIdentifier": "ein"}))

	if diff := cmp.Diff([]string{"taxIdentifier"}, schema.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}

	issues := schema.Validate(map[string]any{"taxIdentifier": "123456789"})
	if len(issues) != 0 {
		t.Errorf("remapped key not honored: %v", issues)
	}
	issues = schema.Validate(map[string]any{"ein": "123456789"})
	if len(issues) != 1 || issues[0].Field != "taxIdentifier" {
		t.Errorf("issues under the wire key expected, got %v", issues)
	}
}

func TestSchemaSkipsBanners(t *testing.T) {
	schema := MustCompile(sampleRows())
	for _, key := range schema.Keys() {
		if key == "notice" {
			t.Fatal("banner field compiled into schema")
		}
	}
}

func TestOpenAPIExport(t *testing.T) {
	schema := MustCompile(sampleRows())
	doc := schema.OpenAPI()

	// URL fields stay optional in the published contract even when the
	// definition says required; everything else carries through.
	wantRequired := []string{"name", "ein", "organizationType", "dateOfBirth"}
	if diff := cmp.Diff(wantRequired, doc.Required); diff != "" {
		t.Errorf("required mismatch (-want +got):\n%s", diff)
	}

	ein := doc.Properties["ein"].Value
	if ein.Pattern != `^\d{9}$` {
		t.Errorf("ein pattern = %q", ein.Pattern)
	}
	if ein.Format != "ein" {
		t.Errorf("ein format = %q", ein.Format)
	}

	orgType := doc.Properties["organizationType"].Value
	enum := make([]string, 0, len(orgType.Enum))
	for _, v := range orgType.Enum {
		enum = append(enum, v.(string))
	}
	if diff := cmp.Diff([]string{"llc", "corporation"}, enum); diff != "" {
		t.Errorf("enum mismatch (-want +got):\n%s", diff)
	}

	dob := doc.Properties["dateOfBirth"].Value
	if dob.Format != "date" {
		t.Errorf("date format = %q", dob.Format)
	}

	if _, ok := doc.Properties["notice"]; ok {
		t.Error("banner exported as a property")
	}
}

func TestOpenAPIEnumContract(t *testing.T) {
	// Enum membership is published but enforcement stays with Validate; the
	// engine accepts any non-empty dropdown value and deeper checks (state
	// restrictions) live with the workflow.
	rows := []fields.Row{{{
		Kind: fields.KindDropdown, Key: "state", Label: "State", Required: true,
		Options: []fields.Option{{Value: "TX"}, {Value: "CA", Disabled: true}},
	}}}
	schema := MustCompile(rows)

	doc := schema.OpenAPI()
	if got := len(doc.Properties["state"].Value.Enum); got != 2 {
		t.Errorf("enum length = %d, want disabled options included", got)
	}
	if issues := schema.Validate(map[string]any{"state": "CA"}); len(issues) != 0 {
		t.Errorf("disabled option rejected structurally: %v", issues)
	}
	if issues := schema.Validate(map[string]any{}); len(issues) != 1 {
		t.Errorf("missing selection should fail: %v", issues)
	}
}

func TestOpenAPIAddressShape(t *testing.T) {
	rows := []fields.Row{{{Kind: fields.KindAddress, Key: "address", Label: "Address", Required: true}}}
	doc := MustCompile(rows).OpenAPI()

	addr := doc.Properties["address"].Value
	if diff := cmp.Diff([]string{"line1", "city", "state", "zip"}, addr.Required); diff != "" {
		t.Errorf("address required mismatch (-want +got):\n%s", diff)
	}
	if zip := addr.Properties["zip"].Value; zip.Pattern != `^\d{5}$` {
		t.Errorf("zip pattern = %q", zip.Pattern)
	}
	if !strings.Contains(addr.Type.Slice()[0], "object") {
		t.Errorf("address type = %v", addr.Type)
	}
}
