package onboarding

import (
	"fmt"
	"net/http"
	"strings"
)

// Mux is the minimal interface required to register a net/http handler.
// It is satisfied by *http.ServeMux.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// Component bundles the onboarding handlers and their configuration.
type Component struct {
	opts Options
}

// New constructs a component with default options plus any overrides.
func New(fns ...OptionFn) *Component {
	return &Component{opts: NewOptions(fns...)}
}

// Options returns a copy of the component configuration.
func (c *Component) Options() Options {
	if c == nil {
		return DefaultOptions()
	}
	return c.opts
}

// RegisterRoutes mounts every endpoint under basePath on mux and returns the
// mounted patterns.
func (c *Component) RegisterRoutes(mux Mux, basePath string) ([]string, error) {
	if mux == nil {
		return nil, fmt.Errorf("onboarding: missing mux")
	}

	routes := []struct {
		path    string
		handler http.Handler
	}{
		{c.opts.SubmitPath, c.submitHandler()},
		{c.opts.UploadsPath, c.uploadsHandler()},
		{c.opts.ReferencePath, c.referenceHandler()},
		{c.opts.SchemaPath, c.schemaHandler()},
	}

	patterns := make([]string, 0, len(routes))
	for _, route := range routes {
		pattern := mountPath(basePath, route.path)
		mux.Handle(pattern, route.handler)
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

func mountPath(basePath, routePath string) string {
	basePath = strings.TrimSpace(basePath)
	routePath = strings.TrimSpace(routePath)

	if routePath == "" {
		routePath = "/"
	}
	if !strings.HasPrefix(routePath, "/") {
		routePath = "/" + routePath
	}

	if basePath == "" || basePath == "/" {
		return routePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimRight(basePath, "/") + routePath
}
