package html

import (
	"context"
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/lemma-health/go-onboarding/pkg/fields"
	"github.com/lemma-health/go-onboarding/pkg/render"
)

func trimBase(basePath string) string {
	return strings.TrimRight(basePath, "/")
}

// SummaryItem is one label/value line on the review page.
type SummaryItem struct {
	Label string
	Value string
}

// ReviewView carries everything the review page shows.
type ReviewView struct {
	Index         int
	Total         int
	Summary       []SummaryItem
	TermsAccepted bool
	TermsURL      string
	Error         string
}

// OwnerItem is one listed beneficial owner.
type OwnerItem struct {
	ID   string
	Name string
}

// OwnersView carries the ownership page state: the toggle for the control
// person, the listed owners, and the add-owner editor rows.
type OwnersView struct {
	Index             int
	Total             int
	ControlPersonName string
	ControlPersonOwns bool
	Owners            []OwnerItem
	CanAddOwner       bool
	Rows              []fields.Row
	Values            map[string]any
	Errors            map[string]string
	Error             string
}

// RenderReview draws the review page.
func (r *Renderer) RenderReview(_ context.Context, view ReviewView, options render.RenderOptions) ([]byte, error) {
	tmpl, err := r.template("templates/review.html")
	if err != nil {
		return nil, err
	}

	var summary []any
	for _, item := range view.Summary {
		summary = append(summary, map[string]any{"label": item.Label, "value": item.Value})
	}

	out, err := tmpl.ExecuteBytes(pongo2.Context{
		"index":         view.Index,
		"total":         view.Total,
		"summary":       summary,
		"termsAccepted": view.TermsAccepted,
		"termsURL":      view.TermsURL,
		"error":         view.Error,
		"basePath":      trimBase(options.BasePath),
		"theme":         themeContext(r.theme),
	})
	if err != nil {
		return nil, fmt.Errorf("html renderer: execute review template: %w", err)
	}
	return out, nil
}

// RenderOwners draws the ownership page.
func (r *Renderer) RenderOwners(_ context.Context, view OwnersView, options render.RenderOptions) ([]byte, error) {
	tmpl, err := r.template("templates/owners.html")
	if err != nil {
		return nil, err
	}

	var owners []any
	for _, owner := range view.Owners {
		owners = append(owners, map[string]any{"id": owner.ID, "name": owner.Name})
	}

	fieldView := render.StepView{Rows: view.Rows, Values: view.Values, Errors: view.Errors}
	out, err := tmpl.ExecuteBytes(pongo2.Context{
		"index":             view.Index,
		"total":             view.Total,
		"controlPersonName": view.ControlPersonName,
		"controlPersonOwns": view.ControlPersonOwns,
		"owners":            owners,
		"canAddOwner":       view.CanAddOwner,
		"rows":              projectRows(fieldView),
		"error":             view.Error,
		"basePath":          trimBase(options.BasePath),
		"theme":             themeContext(r.theme),
	})
	if err != nil {
		return nil, fmt.Errorf("html renderer: execute owners template: %w", err)
	}
	return out, nil
}

// RenderComplete draws the terminal confirmation page.
func (r *Renderer) RenderComplete(_ context.Context, options render.RenderOptions) ([]byte, error) {
	tmpl, err := r.template("templates/complete.html")
	if err != nil {
		return nil, err
	}
	out, err := tmpl.ExecuteBytes(pongo2.Context{
		"basePath": trimBase(options.BasePath),
		"theme":    themeContext(r.theme),
	})
	if err != nil {
		return nil, fmt.Errorf("html renderer: execute complete template: %w", err)
	}
	return out, nil
}
