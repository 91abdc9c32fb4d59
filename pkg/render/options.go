package render

import (
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-renderbridge/pkg/render/template"
)

// DefaultSuffix is appended to template names that carry no extension.
const DefaultSuffix = "html"

// Option configures the Renderer before construction.
type Option func(*config)

// config holds every construction setting. All fields are optional:
//
//   - environment: nil builds a pongo environment over a new filesystem loader
//   - suffix: empty uses DefaultSuffix
//   - defaults: no default parameters
//   - logger: nil discards records
//   - tracer: nil uses the global otel tracer provider
type config struct {
	environment template.Environment
	suffix      string
	defaults    map[string]map[string]any
	logger      *slog.Logger
	tracer      trace.Tracer
}

// WithEnvironment renders through env instead of a new pongo environment.
// When env has no loader attached, a filesystem loader is attached to it.
func WithEnvironment(env template.Environment) Option {
	return func(cfg *config) {
		cfg.environment = env
	}
}

// WithSuffix overrides the suffix appended to names without an extension.
// Blank values keep DefaultSuffix.
func WithSuffix(suffix string) Option {
	return func(cfg *config) {
		if strings.TrimSpace(suffix) == "" {
			return
		}
		cfg.suffix = suffix
	}
}

// WithDefaultParams registers default parameters keyed by template name, then
// by parameter name. Use template.TemplateAll for parameters shared by every
// template.
func WithDefaultParams(defaults map[string]map[string]any) Option {
	return func(cfg *config) {
		if len(defaults) == 0 {
			return
		}
		if cfg.defaults == nil {
			cfg.defaults = make(map[string]map[string]any, len(defaults))
		}
		for name, params := range defaults {
			if cfg.defaults[name] == nil {
				cfg.defaults[name] = make(map[string]any, len(params))
			}
			for key, value := range params {
				cfg.defaults[name][key] = value
			}
		}
	}
}

// WithLogger routes debug records about path registration and renders to
// logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithTracer records a span per render on tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(cfg *config) {
		cfg.tracer = tracer
	}
}
