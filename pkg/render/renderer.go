// Package render adapts a template.Environment to the template.TemplateRenderer
// contract. It normalizes "namespace::template" names into the
// "@namespace/template" form understood by the loader, appends the default
// suffix when a name has no extension, and merges default parameters before
// delegating to the environment.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-renderbridge/pkg/render/template"
	"github.com/goliatone/go-renderbridge/pkg/render/template/loader"
	"github.com/goliatone/go-renderbridge/pkg/render/template/pongo"
)

const tracerName = "github.com/goliatone/go-renderbridge/pkg/render"

var (
	namespacedName = regexp.MustCompile(`^([^:]+)::(.*)$`)
	hasExtension   = regexp.MustCompile(`(?i)\.[a-z]+$`)
)

// Renderer implements template.TemplateRenderer on top of an Environment.
type Renderer struct {
	env      template.Environment
	loader   template.Loader
	suffix   string
	defaults template.DefaultParams
	logger   *slog.Logger
	tracer   trace.Tracer
}

var _ template.TemplateRenderer = (*Renderer)(nil)

// New constructs a Renderer. Without WithEnvironment a pongo environment is
// built over a new filesystem loader.
func New(options ...Option) (*Renderer, error) {
	cfg := &config{
		suffix: DefaultSuffix,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	env := cfg.environment
	if env == nil {
		fsLoader, err := loader.NewFilesystem()
		if err != nil {
			return nil, err
		}
		env, err = pongo.New(pongo.WithLoader(fsLoader))
		if err != nil {
			return nil, fmt.Errorf("render: create environment: %w", err)
		}
	}

	if !env.HasLoader() {
		fsLoader, err := loader.NewFilesystem()
		if err != nil {
			return nil, err
		}
		if err := env.SetLoader(fsLoader); err != nil {
			return nil, fmt.Errorf("render: attach default loader: %w", err)
		}
	}

	r := &Renderer{
		env:    env,
		loader: env.Loader(),
		suffix: cfg.suffix,
		logger: cfg.logger,
		tracer: cfg.tracer,
	}
	if r.loader == nil {
		return nil, errors.New("render: environment reported no loader after attaching one")
	}
	if r.logger == nil {
		r.logger = discardLogger()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}

	for name, params := range cfg.defaults {
		for param, value := range params {
			if err := r.AddDefaultParam(name, param, value); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

// Environment returns the environment renders are delegated to.
func (r *Renderer) Environment() template.Environment {
	return r.env
}

// Loader returns the loader AddPath and Paths operate on.
func (r *Renderer) Loader() template.Loader {
	return r.loader
}

// Suffix returns the suffix appended by NormalizeTemplate.
func (r *Renderer) Suffix() string {
	return r.suffix
}

// Render is RenderContext with a background context.
func (r *Renderer) Render(name string, params any) (string, error) {
	return r.RenderContext(context.Background(), name, params)
}

// RenderContext renders name with params merged over the defaults registered
// for the raw name, then merges the result over the defaults registered for
// the normalized name. Values already merged win at each step, so raw name
// defaults take precedence over normalized name defaults. Engine errors are
// returned unchanged.
func (r *Renderer) RenderContext(ctx context.Context, name string, params any) (string, error) {
	normalized := r.NormalizeTemplate(name)

	_, span := r.tracer.Start(ctx, "render", trace.WithAttributes(
		attribute.String("template.name", name),
		attribute.String("template.normalized", normalized),
	))
	defer span.End()

	merged, err := template.NormalizeParams(params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	merged = r.defaults.Merge(merged, name)
	merged = r.defaults.Merge(merged, normalized)

	r.logger.Debug("render template",
		slog.String("name", name),
		slog.String("normalized", normalized),
		slog.Int("params", len(merged)),
	)

	out, err := r.env.Render(normalized, merged)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return out, nil
}

// AddPath registers path as a template root under namespace. An empty
// namespace targets the main namespace.
func (r *Renderer) AddPath(path, namespace string) error {
	if namespace == "" {
		namespace = loader.MainNamespace
	}
	if err := r.loader.AddPath(path, namespace); err != nil {
		return err
	}
	r.logger.Debug("template path added", slog.String("path", path), slog.String("namespace", namespace))
	return nil
}

// Paths lists every registered root in namespace order, then registration
// order. Roots of the main namespace carry an empty Namespace.
func (r *Renderer) Paths() []template.TemplatePath {
	var paths []template.TemplatePath
	for _, namespace := range r.loader.Namespaces() {
		name := namespace
		if namespace == loader.MainNamespace {
			name = ""
		}
		for _, path := range r.loader.Paths(namespace) {
			paths = append(paths, template.TemplatePath{Path: path, Namespace: name})
		}
	}
	return paths
}

// AddDefaultParam registers a parameter injected when rendering
// templateName, or every template for template.TemplateAll.
func (r *Renderer) AddDefaultParam(templateName, param string, value any) error {
	return r.defaults.Add(templateName, param, value)
}

// NormalizeTemplate rewrites "namespace::template" as "@namespace/template"
// and appends the suffix when the name has no extension.
func (r *Renderer) NormalizeTemplate(name string) string {
	name = namespacedName.ReplaceAllString(name, "@${1}/${2}")
	if !hasExtension.MatchString(name) {
		return name + "." + r.suffix
	}
	return name
}
