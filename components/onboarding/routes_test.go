package onboarding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	c := New(WithSubmitter(&fakeSubmitter{}), WithUploads(&fakeUploader{}))

	patterns, err := c.RegisterRoutes(mux, "/onboarding")
	if err != nil {
		t.Fatalf("RegisterRoutes returned error: %v", err)
	}

	want := []string{
		"/onboarding/api/legal-entities",
		"/onboarding/api/uploads",
		"/onboarding/api/reference",
		"/onboarding/api/schema",
	}
	if len(patterns) != len(want) {
		t.Fatalf("patterns = %v", patterns)
	}
	for i, pattern := range want {
		if patterns[i] != pattern {
			t.Errorf("patterns[%d] = %q, want %q", i, patterns[i], pattern)
		}
	}
}

func TestRegisterRoutesRequiresMux(t *testing.T) {
	c := New()
	if _, err := c.RegisterRoutes(nil, ""); err == nil {
		t.Fatal("expected error for nil mux")
	}
}

func TestMountPath(t *testing.T) {
	tests := []struct {
		base, route, want string
	}{
		{"", "/api/uploads", "/api/uploads"},
		{"/", "/api/uploads", "/api/uploads"},
		{"/onboarding", "/api/uploads", "/onboarding/api/uploads"},
		{"onboarding/", "api/uploads", "/onboarding/api/uploads"},
	}
	for _, tc := range tests {
		if got := mountPath(tc.base, tc.route); got != tc.want {
			t.Errorf("mountPath(%q, %q) = %q, want %q", tc.base, tc.route, got, tc.want)
		}
	}
}

func TestReferenceMarksRestrictedStructures(t *testing.T) {
	c := New()
	req := httptest.NewRequest(http.MethodGet, "/api/reference?state=CA", nil)
	rec := httptest.NewRecorder()
	c.referenceHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res referenceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	found := false
	for _, opt := range res.OrganizationTypes {
		if opt.Value == "professional_llc" {
			found = true
			if !opt.Disabled {
				t.Error("professional_llc should be disabled in CA")
			}
		}
	}
	if !found {
		t.Error("professional_llc missing from reference data")
	}
	if len(res.States) == 0 || len(res.NaicsCodes) == 0 {
		t.Error("states or NAICS catalogs empty")
	}
}

func TestSchemaEndpoint(t *testing.T) {
	c := New()
	req := httptest.NewRequest(http.MethodGet, "/api/schema", nil)
	rec := httptest.NewRecorder()
	c.schemaHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var doc struct {
		Steps map[string]json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, step := range []string{"organizationProfile", "organizationDetails", "organizationContact", "controlPerson", "beneficialOwner"} {
		if _, ok := doc.Steps[step]; !ok {
			t.Errorf("step schema %q missing", step)
		}
	}
}
