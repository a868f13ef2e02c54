package render

import (
	"context"
	"strings"
	"testing"
)

type stubRenderer struct {
	name string
}

func (s stubRenderer) Name() string        { return s.name }
func (s stubRenderer) ContentType() string { return "text/plain" }

func (s stubRenderer) Render(_ context.Context, view StepView, _ RenderOptions) ([]byte, error) {
	return []byte(s.name + ":" + view.Step), nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(stubRenderer{name: "html"}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	renderer, err := reg.Get("html")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	out, err := renderer.Render(context.Background(), StepView{Step: "review"}, RenderOptions{})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if got := string(out); got != "html:review" {
		t.Errorf("Render() = %q", got)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(stubRenderer{name: "html"}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	err := reg.Register(stubRenderer{name: "html"})
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("duplicate Register() error = %v", err)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Get("missing"); err == nil {
		t.Fatal("expected error for unknown renderer")
	}
	if reg.Has("missing") {
		t.Error("Has() reported unknown renderer")
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(stubRenderer{name: "tui"})
	reg.MustRegister(stubRenderer{name: "html"})

	names := reg.List()
	if len(names) != 2 || names[0] != "html" || names[1] != "tui" {
		t.Errorf("List() = %v, want sorted [html tui]", names)
	}
}
