// Package onboarding exposes the onboarding engine over HTTP as a small,
// extraction-friendly component: a legal-entity submission endpoint, a
// document upload endpoint, and read-only reference/schema endpoints for
// clients that render their own forms.
//
// The component registers against any mux that satisfies the minimal Mux
// interface, including *http.ServeMux and gorilla's router via an adapter.
package onboarding
