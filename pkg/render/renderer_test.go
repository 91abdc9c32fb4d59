package render_test

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-renderbridge/pkg/render"
	"github.com/goliatone/go-renderbridge/pkg/render/template"
	"github.com/goliatone/go-renderbridge/pkg/render/template/loader"
	"github.com/goliatone/go-renderbridge/pkg/render/template/pongo"
	"github.com/goliatone/go-renderbridge/pkg/testsupport"
)

func TestRenderer_NormalizeTemplate(t *testing.T) {
	for _, tc := range []struct {
		name     string
		suffix   string
		input    string
		expected string
	}{
		{name: "namespaced", input: "blog::post", expected: "@blog/post.html"},
		{name: "namespaced with extension", input: "blog::post.twig", expected: "@blog/post.twig"},
		{name: "nested namespaced", input: "blog::partials/nav", expected: "@blog/partials/nav.html"},
		{name: "plain", input: "plain", expected: "plain.html"},
		{name: "plain with extension", input: "plain.html", expected: "plain.html"},
		{name: "uppercase extension", input: "README.MD", expected: "README.MD"},
		{name: "already normalized", input: "@blog/post", expected: "@blog/post.html"},
		{name: "custom suffix", suffix: "tpl", input: "blog::post", expected: "@blog/post.tpl"},
		{name: "compound suffix", suffix: "html.twig", input: "page", expected: "page.html.twig"},
		{name: "suffix used as given", suffix: ".twig", input: "page", expected: "page..twig"},
		{name: "blank suffix", suffix: "  ", input: "page", expected: "page.html"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, err := render.New(render.WithSuffix(tc.suffix))
			if err != nil {
				t.Fatalf("new renderer: %v", err)
			}
			if got := r.NormalizeTemplate(tc.input); got != tc.expected {
				t.Fatalf("want %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestRenderer_Paths(t *testing.T) {
	r, err := render.New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if got := r.Paths(); len(got) != 0 {
		t.Fatalf("expected no paths, got %v", got)
	}

	first := t.TempDir()
	second := t.TempDir()
	third := t.TempDir()

	for _, p := range []template.TemplatePath{
		{Path: first, Namespace: "ns1"},
		{Path: second},
		{Path: third, Namespace: "ns1"},
	} {
		if err := r.AddPath(p.Path, p.Namespace); err != nil {
			t.Fatalf("add path %v: %v", p, err)
		}
	}

	want := []template.TemplatePath{
		{Path: first, Namespace: "ns1"},
		{Path: third, Namespace: "ns1"},
		{Path: second, Namespace: ""},
	}
	if diff := cmp.Diff(want, r.Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{second}, r.Loader().Paths(loader.MainNamespace)); diff != "" {
		t.Fatalf("empty namespace must register on main (-want +got):\n%s", diff)
	}
}

func TestRenderer_AddPathReturnsLoaderErrors(t *testing.T) {
	r, err := render.New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	missing := filepath.Join(t.TempDir(), "missing")
	if err := r.AddPath(missing, "blog"); !errors.Is(err, loader.ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
	if len(r.Paths()) != 0 {
		t.Fatalf("failed registration must not be listed")
	}
}

func TestRenderer_RenderMergesDefaults(t *testing.T) {
	main := testsupport.WriteTemplates(t, map[string]string{
		"page.html": "{{ site }}|{{ title }}|{{ meta.lang }}",
	})
	blog := testsupport.WriteTemplates(t, map[string]string{
		"post.html": "{{ site }}|{{ layout }}|{{ title }}|{{ author }}",
	})

	r, err := render.New(render.WithDefaultParams(map[string]map[string]any{
		template.TemplateAll: {"site": "Docs", "meta": map[string]any{"lang": "en"}},
		"blog::post":         {"layout": "raw", "author": "raw-author"},
		"@blog/post.html":    {"layout": "normalized"},
	}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if err := r.AddPath(main, ""); err != nil {
		t.Fatalf("add main path: %v", err)
	}
	if err := r.AddPath(blog, "blog"); err != nil {
		t.Fatalf("add blog path: %v", err)
	}

	got, err := r.Render("page", map[string]any{"title": "Home"})
	if err != nil {
		t.Fatalf("render page: %v", err)
	}
	if got != "Docs|Home|en" {
		t.Fatalf("unexpected page output %q", got)
	}

	got, err = r.Render("blog::post", map[string]any{"title": "Hello", "author": "Ada"})
	if err != nil {
		t.Fatalf("render post: %v", err)
	}
	if got != "Docs|raw|Hello|Ada" {
		t.Fatalf("unexpected post output %q", got)
	}

	got, err = r.Render("@blog/post", struct {
		Title string `json:"title"`
	}{Title: "Struct"})
	if err != nil {
		t.Fatalf("render post with struct: %v", err)
	}
	if got != "Docs|normalized|Struct|" {
		t.Fatalf("unexpected post output %q", got)
	}

	got, err = r.Render("blog::post", nil)
	if err != nil {
		t.Fatalf("render post without params: %v", err)
	}
	if got != "Docs|raw||raw-author" {
		t.Fatalf("unexpected post output %q", got)
	}
}

func TestRenderer_RawNameDefaultsWinOverNormalized(t *testing.T) {
	blog := testsupport.WriteTemplates(t, map[string]string{
		"post.html": "{{ layout }}",
	})

	r, err := render.New(render.WithDefaultParams(map[string]map[string]any{
		"blog::post":      {"layout": "raw"},
		"@blog/post.html": {"layout": "normalized"},
	}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if err := r.AddPath(blog, "blog"); err != nil {
		t.Fatalf("add blog path: %v", err)
	}

	for name, want := range map[string]string{
		"blog::post":      "raw",
		"@blog/post":      "normalized",
		"@blog/post.html": "normalized",
	} {
		got, err := r.Render(name, nil)
		if err != nil {
			t.Fatalf("render %s: %v", name, err)
		}
		if got != want {
			t.Fatalf("%s: want %q, got %q", name, want, got)
		}
	}

	got, err := r.Render("blog::post", map[string]any{"layout": "caller"})
	if err != nil {
		t.Fatalf("render with caller layout: %v", err)
	}
	if got != "caller" {
		t.Fatalf("caller params must win, got %q", got)
	}
}

func TestRenderer_RenderRejectsInvalidParams(t *testing.T) {
	r, err := render.New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if _, err := r.Render("page", 42); !errors.Is(err, template.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestRenderer_AttachesLoaderToEnvironment(t *testing.T) {
	engine, err := pongo.New()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if engine.HasLoader() {
		t.Fatalf("expected engine without loader")
	}

	r, err := render.New(render.WithEnvironment(engine))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if !engine.HasLoader() {
		t.Fatalf("expected renderer to attach a loader")
	}
	if r.Loader() != engine.Loader() {
		t.Fatalf("renderer must operate on the environment loader")
	}

	dir := testsupport.WriteTemplates(t, map[string]string{"hello.html": "Hello {{ name }}"})
	if err := r.AddPath(dir, ""); err != nil {
		t.Fatalf("add path: %v", err)
	}
	got, err := r.Render("hello", map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Hello Ada" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRenderer_KeepsExistingLoader(t *testing.T) {
	fsLoader, err := loader.NewFilesystem()
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	env := &stubEnvironment{loader: fsLoader}

	r, err := render.New(render.WithEnvironment(env))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if env.setLoaderCalls != 0 {
		t.Fatalf("existing loader must not be replaced")
	}
	if r.Loader() != template.Loader(fsLoader) {
		t.Fatalf("renderer must use the environment loader")
	}
}

func TestRenderer_RenderReturnsEnvironmentErrors(t *testing.T) {
	boom := errors.New("syntax error")
	env := &stubEnvironment{err: boom}

	r, err := render.New(render.WithEnvironment(env))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if env.setLoaderCalls != 1 {
		t.Fatalf("expected a loader to be attached, got %d calls", env.setLoaderCalls)
	}

	if _, err := r.Render("blog::post", nil); err != boom {
		t.Fatalf("expected environment error unchanged, got %v", err)
	}
	if env.rendered != "@blog/post.html" {
		t.Fatalf("unexpected template name %q", env.rendered)
	}
	if diff := cmp.Diff(map[string]any{}, env.params); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderer_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r, err := render.New(render.WithLogger(logger))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	dir := testsupport.WriteTemplates(t, map[string]string{"page.html": "ok"})
	if err := r.AddPath(dir, "docs"); err != nil {
		t.Fatalf("add path: %v", err)
	}
	if _, err := r.Render("docs::page", nil); err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"template path added", "namespace=docs", "render template", "normalized=@docs/page.html"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected log output to contain %q, got:\n%s", want, out)
		}
	}
}

type stubEnvironment struct {
	loader         template.Loader
	err            error
	rendered       string
	params         map[string]any
	setLoaderCalls int
}

func (s *stubEnvironment) Render(name string, params map[string]any) (string, error) {
	s.rendered = name
	s.params = params
	return "", s.err
}

func (s *stubEnvironment) HasLoader() bool { return s.loader != nil }

func (s *stubEnvironment) Loader() template.Loader { return s.loader }

func (s *stubEnvironment) SetLoader(l template.Loader) error {
	s.setLoaderCalls++
	s.loader = l
	return nil
}

func (s *stubEnvironment) AddExtension(template.Extension) error { return nil }
