// Package render defines the presentation seam: a step of the onboarding
// flow is projected into a StepView, and pluggable renderers turn the view
// into bytes for their medium (HTML for the hosted flow, text for the
// terminal client).
package render

import (
	"context"

	"github.com/lemma-health/go-onboarding/pkg/fields"
)

// StepView is the renderer-facing projection of one onboarding step.
type StepView struct {
	// Step is the machine step identifier.
	Step string
	// Title and Description head the rendered screen.
	Title       string
	Description string
	// Index and Total position the step in the visible sequence, 1-based.
	Index int
	Total int
	// Rows are the field rows to draw, in order.
	Rows []fields.Row
	// Values holds the current record values keyed by field key.
	Values map[string]any
	// Errors holds the messages from the last failed advance, keyed by
	// field key.
	Errors map[string]string
}

// RenderOptions carries per-render presentation knobs.
type RenderOptions struct {
	// Theme and Variant select the visual theme for renderers that
	// support theming.
	Theme   string
	Variant string
	// BasePath prefixes form actions and asset URLs.
	BasePath string
}

// Renderer converts a StepView into a byte representation.
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, view StepView, options RenderOptions) ([]byte, error)
}
