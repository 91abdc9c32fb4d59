// Package renderbridge wires a template renderer backed by pongo2 with a
// namespaced filesystem loader and the path/url/absolute_url/asset template
// functions, from a single Config.
//
// Typical use:
//
//	cfg, err := renderbridge.LoadConfig("renderbridge.yaml")
//	bridge, err := renderbridge.New(ctx, cfg)
//	html, err := bridge.Renderer.Render("blog::post", map[string]any{"title": "Hi"})
package renderbridge

import (
	"context"
	"fmt"
	"os"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-renderbridge/pkg/helpers"
	"github.com/goliatone/go-renderbridge/pkg/render"
	"github.com/goliatone/go-renderbridge/pkg/render/extension"
	"github.com/goliatone/go-renderbridge/pkg/render/template"
	"github.com/goliatone/go-renderbridge/pkg/render/template/loader"
	"github.com/goliatone/go-renderbridge/pkg/render/template/pongo"
)

// Bridge groups the components built from a Config.
type Bridge struct {
	Renderer  *render.Renderer
	Engine    *pongo.Engine
	Loader    *loader.Filesystem
	URLs      *helpers.URLHelper
	ServerURL *helpers.ServerURLHelper
	Extension *extension.URLExtension
}

// New builds a Bridge from cfg. Extra render options are applied after the
// ones derived from cfg.
func New(ctx context.Context, cfg Config, opts ...render.Option) (*Bridge, error) {
	fsLoader, err := loader.NewFilesystem()
	if err != nil {
		return nil, err
	}

	engine, err := pongo.New(
		pongo.WithLoader(fsLoader),
		pongo.WithDebug(cfg.Debug),
		pongo.WithGlobalData(cfg.Globals),
	)
	if err != nil {
		return nil, err
	}

	urls, err := helpers.NewURLHelper(cfg.Routes)
	if err != nil {
		return nil, err
	}
	if cfg.OpenAPI != "" {
		data, err := os.ReadFile(cfg.OpenAPI)
		if err != nil {
			return nil, fmt.Errorf("renderbridge: read openapi document: %w", err)
		}
		if err := urls.AddOpenAPIRoutes(ctx, data); err != nil {
			return nil, err
		}
	}

	serverURL, err := helpers.NewServerURLHelper(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	extOpts := []extension.Option{
		extension.WithAssetsURL(cfg.Assets.URL),
		extension.WithAssetsVersion(string(cfg.Assets.Version)),
	}
	if themeCfg := rendererTheme(cfg.Theme); themeCfg != nil {
		extOpts = append(extOpts, extension.WithTheme(themeCfg))
	}
	ext := extension.New(serverURL, urls, extOpts...)
	if err := engine.AddExtension(ext); err != nil {
		return nil, err
	}

	renderOpts := []render.Option{
		render.WithEnvironment(engine),
		render.WithSuffix(cfg.Suffix),
		render.WithDefaultParams(cfg.Defaults),
	}
	renderer, err := render.New(append(renderOpts, opts...)...)
	if err != nil {
		return nil, err
	}

	for _, p := range cfg.Paths {
		if err := renderer.AddPath(p.Path, p.Namespace); err != nil {
			return nil, err
		}
	}
	if cfg.Theme != nil {
		if err := renderer.AddDefaultParam(template.TemplateAll, "theme", themeParams(cfg.Theme)); err != nil {
			return nil, err
		}
	}

	return &Bridge{
		Renderer:  renderer,
		Engine:    engine,
		Loader:    fsLoader,
		URLs:      urls,
		ServerURL: serverURL,
		Extension: ext,
	}, nil
}

func rendererTheme(cfg *ThemeConfig) *theme.RendererConfig {
	if cfg == nil {
		return nil
	}
	prefix := strings.TrimRight(cfg.AssetPrefix, "/")
	files := copyStringMap(cfg.Assets)

	return &theme.RendererConfig{
		Theme:   cfg.Name,
		Variant: cfg.Variant,
		Tokens:  copyStringMap(cfg.Tokens),
		CSSVars: cssVars(cfg.Tokens),
		AssetURL: func(key string) string {
			file, ok := files[key]
			if !ok || file == "" {
				return ""
			}
			if prefix == "" {
				return file
			}
			return prefix + "/" + strings.TrimLeft(file, "/")
		},
	}
}

func themeParams(cfg *ThemeConfig) map[string]any {
	tokens := make(map[string]any, len(cfg.Tokens))
	for key, value := range cfg.Tokens {
		tokens[key] = value
	}
	return map[string]any{
		"name":    cfg.Name,
		"variant": cfg.Variant,
		"tokens":  tokens,
	}
}

func cssVars(tokens map[string]string) map[string]string {
	if len(tokens) == 0 {
		return nil
	}
	out := make(map[string]string, len(tokens))
	for key, value := range tokens {
		out["--"+key] = value
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
