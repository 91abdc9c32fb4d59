package renderbridge_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	renderbridge "github.com/goliatone/go-renderbridge"
	"github.com/goliatone/go-renderbridge/pkg/render/template"
)

func TestParseConfig(t *testing.T) {
	cfg, err := renderbridge.ParseConfig([]byte(`
suffix: twig
debug: true
paths:
  - path: templates
  - path: /srv/blog
    namespace: blog
defaults:
  "*":
    site: Docs
  blog::post:
    layout: wide
globals:
  settings:
    env: staging
assets:
  url: https://cdn.example.com/
  version: 0
server_url: https://example.com
routes:
  blog.post: /blog/{slug}
theme:
  name: acme
  variant: dark
  asset_prefix: /static/acme
  assets:
    stylesheet: css/theme.css
  tokens:
    primary: "#123456"
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	want := renderbridge.Config{
		Suffix: "twig",
		Debug:  true,
		Paths: []template.TemplatePath{
			{Path: "templates"},
			{Path: "/srv/blog", Namespace: "blog"},
		},
		Defaults: map[string]map[string]any{
			"*":          {"site": "Docs"},
			"blog::post": {"layout": "wide"},
		},
		Globals:   map[string]any{"settings": map[string]any{"env": "staging"}},
		Assets:    renderbridge.AssetsConfig{URL: "https://cdn.example.com/", Version: "0"},
		ServerURL: "https://example.com",
		Routes:    map[string]string{"blog.post": "/blog/{slug}"},
		Theme: &renderbridge.ThemeConfig{
			Name:        "acme",
			Variant:     "dark",
			AssetPrefix: "/static/acme",
			Assets:      map[string]string{"stylesheet": "css/theme.css"},
			Tokens:      map[string]string{"primary": "#123456"},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfig_AssetVersion(t *testing.T) {
	for input, expected := range map[string]renderbridge.Version{
		"version: 0":      "0",
		"version: 1.50":   "1.50",
		"version: abc":    "abc",
		`version: ""`:     "",
		"version: null":   "",
		"version: ~":      "",
		"url: /static/":   "",
		"version: '0042'": "0042",
	} {
		cfg, err := renderbridge.ParseConfig([]byte("assets:\n  " + input + "\n"))
		if err != nil {
			t.Fatalf("%q: parse config: %v", input, err)
		}
		if cfg.Assets.Version != expected {
			t.Fatalf("%q: want %q, got %q", input, expected, cfg.Assets.Version)
		}
	}

	if _, err := renderbridge.ParseConfig([]byte("assets:\n  version: [1, 2]\n")); err == nil {
		t.Fatalf("expected a non scalar version to fail")
	}
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := renderbridge.ParseConfig([]byte("  \n"))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if diff := cmp.Diff(renderbridge.Config{}, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "renderbridge.yaml")
	data := []byte(`
paths:
  - path: templates
  - path: /srv/blog
    namespace: blog
openapi: api/openapi.yaml
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := renderbridge.LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	want := []template.TemplatePath{
		{Path: filepath.Join(dir, "templates")},
		{Path: "/srv/blog", Namespace: "blog"},
	}
	if diff := cmp.Diff(want, cfg.Paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	if cfg.OpenAPI != filepath.Join(dir, "api", "openapi.yaml") {
		t.Fatalf("unexpected openapi path %q", cfg.OpenAPI)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := renderbridge.LoadConfig(" "); err == nil {
		t.Fatalf("expected an error for an empty path")
	}
	if _, err := renderbridge.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
