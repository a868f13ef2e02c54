// Package html renders onboarding step views as themed HTML documents using
// a pongo2 template set.
package html

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"
	theme "github.com/goliatone/go-theme"
	"github.com/microcosm-cc/bluemonday"

	"github.com/lemma-health/go-onboarding/pkg/catalog"
	"github.com/lemma-health/go-onboarding/pkg/fields"
	"github.com/lemma-health/go-onboarding/pkg/render"
)

const stepTemplate = "templates/step.html"

// Option configures the renderer.
type Option func(*config)

type config struct {
	templateFS fs.FS
	theme      *theme.RendererConfig
}

// WithTemplatesFS supplies an alternate template bundle.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		if files != nil {
			cfg.templateFS = files
		}
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path != "" {
			cfg.templateFS = os.DirFS(path)
		}
	}
}

// WithTheme attaches resolved theme configuration: tokens, CSS variables,
// and an asset URL resolver.
func WithTheme(cfg *theme.RendererConfig) Option {
	return func(c *config) {
		c.theme = cfg
	}
}

// Renderer draws step views as full HTML pages.
type Renderer struct {
	set   *pongo2.TemplateSet
	theme *theme.RendererConfig

	mu        sync.Mutex
	templates map[string]*pongo2.Template
}

// New constructs the HTML renderer.
func New(options ...Option) (*Renderer, error) {
	cfg := config{templateFS: TemplatesFS()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	set := pongo2.NewSet("onboarding", pongo2.NewFSLoader(cfg.templateFS))
	return &Renderer{
		set:       set,
		theme:     cfg.theme,
		templates: make(map[string]*pongo2.Template),
	}, nil
}

func (r *Renderer) Name() string {
	return "html"
}

func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// Render draws the step view. User-supplied copy in banner fields passes
// through a strict sanitizer before reaching the template.
func (r *Renderer) Render(_ context.Context, view render.StepView, options render.RenderOptions) ([]byte, error) {
	tmpl, err := r.template(stepTemplate)
	if err != nil {
		return nil, err
	}

	ctx := pongo2.Context{
		"step":        view.Step,
		"title":       view.Title,
		"description": view.Description,
		"index":       view.Index,
		"total":       view.Total,
		"rows":        projectRows(view),
		"errors":      view.Errors,
		"basePath":    strings.TrimRight(options.BasePath, "/"),
		"theme":       themeContext(r.theme),
	}

	out, err := tmpl.ExecuteBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("html renderer: execute template: %w", err)
	}
	return out, nil
}

func (r *Renderer) template(name string) (*pongo2.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.templates[name]; ok {
		return tmpl, nil
	}
	tmpl, err := r.set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("html renderer: load template %q: %w", name, err)
	}
	r.templates[name] = tmpl
	return tmpl, nil
}

// projectRows flattens the field rows into plain maps so templates stay free
// of reflection-sensitive type handling.
func projectRows(view render.StepView) []any {
	var rows []any
	for _, row := range view.Rows {
		var cells []any
		for _, def := range row {
			cells = append(cells, projectField(def, view))
		}
		rows = append(rows, cells)
	}
	return rows
}

func projectField(def fields.Definition, view render.StepView) map[string]any {
	cell := map[string]any{
		"kind":        string(def.Kind),
		"key":         def.Key,
		"label":       def.Label,
		"required":    def.Required,
		"description": def.Description,
		"placeholder": def.Placeholder,
		"error":       view.Errors[def.Key],
	}

	switch def.Kind {
	case fields.KindBanner:
		cell["text"] = sanitizeCopy(def.Text)
	case fields.KindDropdown:
		var options []map[string]any
		for _, opt := range def.Options {
			options = append(options, map[string]any{
				"value":    opt.Value,
				"label":    opt.Label,
				"disabled": opt.Disabled,
				"selected": view.Values[def.Key] == opt.Value,
			})
		}
		cell["options"] = options
	case fields.KindAddress:
		addr, _ := view.Values[def.Key].(fields.Address)
		cell["address"] = map[string]any{
			"line1": addr.Line1,
			"line2": addr.Line2,
			"city":  addr.City,
			"state": addr.State,
			"zip":   addr.Zip,
		}
		cell["states"] = stateOptions(addr.State)
	default:
		cell["value"] = stringValue(view.Values[def.Key])
	}
	return cell
}

func stateOptions(selected string) []map[string]any {
	var out []map[string]any
	for _, opt := range catalog.StateOptions() {
		out = append(out, map[string]any{
			"value":    opt.Value,
			"label":    opt.Label,
			"selected": opt.Value == selected,
		})
	}
	return out
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		// Date inputs only accept the ISO form; a zero time renders empty.
		if v.IsZero() {
			return ""
		}
		return v.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", v)
	}
}

var (
	copyPolicyOnce sync.Once
	copyPolicy     *bluemonday.Policy
)

func sanitizeCopy(raw string) string {
	copyPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements("b", "strong", "em", "br")
		copyPolicy = policy
	})
	return strings.TrimSpace(copyPolicy.Sanitize(raw))
}

type themeView struct {
	Name         string
	Variant      string
	CSSVarsStyle string
	Stylesheet   string
}

// themeContext resolves the theme config into the small surface the page
// template consumes: a name, an inline CSS-variable block, and an optional
// stylesheet URL.
func themeContext(cfg *theme.RendererConfig) themeView {
	if cfg == nil {
		return themeView{}
	}
	view := themeView{
		Name:         cfg.Theme,
		Variant:      cfg.Variant,
		CSSVarsStyle: cssVarsStyle(cfg.CSSVars),
	}
	if cfg.AssetURL != nil {
		view.Stylesheet = strings.TrimSpace(cfg.AssetURL("onboarding.stylesheet"))
	}
	return view
}

func cssVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString(";\n")
	}
	b.WriteString("}")
	return b.String()
}
