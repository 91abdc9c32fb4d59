// Package pongo implements template.Environment on top of a pongo2 template
// set. The set resolves templates through a swappable template.Loader, so the
// renderer can attach a loader after the environment has been built.
package pongo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-renderbridge/pkg/render/template"
)

var (
	// ErrNoLoader is returned when rendering through an Engine that has no
	// loader attached.
	ErrNoLoader = errors.New("pongo: no loader attached")
	// ErrUnsupportedLoader is returned by SetLoader for loaders that do not
	// implement pongo2.TemplateLoader.
	ErrUnsupportedLoader = errors.New("pongo: loader does not implement pongo2.TemplateLoader")
)

// Option configures the Engine before construction.
type Option func(*config)

type config struct {
	loader     template.Loader
	fallback   fs.FS
	debug      bool
	globalData map[string]any
}

const setName = "renderbridge"

// WithLoader attaches the loader used to resolve template names.
func WithLoader(loader template.Loader) Option {
	return func(cfg *config) {
		cfg.loader = loader
	}
}

// WithFS registers a read-only fs.FS consulted after the attached loader,
// typically embedded templates.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.fallback = files
	}
}

// WithDebug disables the compiled template cache.
func WithDebug(debug bool) Option {
	return func(cfg *config) {
		cfg.debug = debug
	}
}

// WithGlobalData seeds global context values available to every template.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// Engine satisfies template.Environment using a pongo2 template set.
type Engine struct {
	mu sync.RWMutex

	templateSet *pongo2.TemplateSet
	templates   map[string]*pongo2.Template
	loader      template.Loader
	fallback    fs.FS
	debug       bool

	// sourceMu guards source on its own: the template set reads it while
	// compiling under mu and while executing dynamic includes without mu.
	sourceMu sync.RWMutex
	source   pongo2.TemplateLoader
}

var _ template.Environment = (*Engine)(nil)

// New constructs an Engine using the provided configuration options.
func New(options ...Option) (*Engine, error) {
	cfg := &config{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	engine := &Engine{
		templates: make(map[string]*pongo2.Template),
		fallback:  cfg.fallback,
		debug:     cfg.debug,
	}

	loaders := []pongo2.TemplateLoader{loaderProxy{engine: engine}}
	if cfg.fallback != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.fallback))
	}
	engine.templateSet = pongo2.NewSet(setName, loaders...)
	engine.templateSet.Debug = cfg.debug
	registerDefaultFilters()

	if cfg.loader != nil {
		if err := engine.SetLoader(cfg.loader); err != nil {
			return nil, err
		}
	}
	if err := engine.GlobalContext(cfg.globalData); err != nil {
		return nil, fmt.Errorf("pongo: apply global data: %w", err)
	}

	return engine, nil
}

// HasLoader reports whether a loader is attached.
func (e *Engine) HasLoader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loader != nil
}

// Loader returns the attached loader, or nil.
func (e *Engine) Loader() template.Loader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loader
}

// SetLoader attaches loader and drops every compiled template.
func (e *Engine) SetLoader(loader template.Loader) error {
	if loader == nil {
		return errors.New("pongo: loader is nil")
	}
	source, ok := loader.(pongo2.TemplateLoader)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedLoader, loader)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sourceMu.Lock()
	e.source = source
	e.sourceMu.Unlock()

	e.loader = loader
	e.templates = make(map[string]*pongo2.Template)
	return nil
}

// Render executes the template registered under name.
func (e *Engine) Render(name string, params map[string]any) (string, error) {
	if e == nil || e.templateSet == nil {
		return "", errors.New("pongo: engine is nil")
	}
	if !e.HasLoader() && e.fallback == nil {
		return "", ErrNoLoader
	}

	tmpl, err := e.getTemplate(name)
	if err != nil {
		return "", err
	}

	if params == nil {
		params = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(pongo2.Context(params), &buf); err != nil {
		return "", fmt.Errorf("pongo: execute template %q: %w", name, err)
	}
	return buf.String(), nil
}

// RenderString parses and executes templateContent.
func (e *Engine) RenderString(templateContent string, params map[string]any) (string, error) {
	if e == nil || e.templateSet == nil {
		return "", errors.New("pongo: engine is nil")
	}

	tmpl, err := e.templateSet.FromString(templateContent)
	if err != nil {
		return "", fmt.Errorf("pongo: parse template string: %w", err)
	}
	if params == nil {
		params = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(pongo2.Context(params), &buf); err != nil {
		return "", fmt.Errorf("pongo: execute template string: %w", err)
	}
	return buf.String(), nil
}

// AddExtension exposes every function of ext as a template global.
func (e *Engine) AddExtension(ext template.Extension) error {
	if ext == nil {
		return errors.New("pongo: extension is nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.templateSet.Globals == nil {
		e.templateSet.Globals = make(pongo2.Context)
	}
	for name, fn := range ext.Functions() {
		name = strings.TrimSpace(name)
		if name == "" || fn == nil {
			continue
		}
		e.templateSet.Globals[name] = wrapFunction(fn)
	}
	return nil
}

// RegisterFilter registers template filters on the wrapped engine.
func (e *Engine) RegisterFilter(name string, fn func(input any, param any) (any, error)) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return errors.New("pongo: filter name and function required")
	}

	filter := func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramVal any
		if param != nil {
			paramVal = param.Interface()
		}
		result, err := fn(in.Interface(), paramVal)
		if err != nil {
			return nil, &pongo2.Error{Sender: "custom_filter", OrigError: err}
		}
		return pongo2.AsValue(result), nil
	}

	if pongo2.FilterExists(name) {
		return fmt.Errorf("pongo: filter %q already exists", name)
	}
	return pongo2.RegisterFilter(name, filter)
}

// GlobalContext seeds global data on the wrapped engine.
func (e *Engine) GlobalContext(data any) error {
	if e == nil || e.templateSet == nil {
		return errors.New("pongo: engine is nil")
	}
	if data == nil {
		return nil
	}

	globals, err := template.NormalizeParams(data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.templateSet.Globals == nil {
		e.templateSet.Globals = make(pongo2.Context)
	}
	e.templateSet.Globals.Update(pongo2.Context(globals))
	return nil
}

func (e *Engine) getTemplate(name string) (*pongo2.Template, error) {
	if !e.debug {
		e.mu.RLock()
		if tmpl, ok := e.templates[name]; ok {
			e.mu.RUnlock()
			return tmpl, nil
		}
		e.mu.RUnlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.templates[name]; ok && !e.debug {
		return tmpl, nil
	}

	tmpl, err := e.templateSet.FromFile(name)
	if err != nil {
		if cause := e.resolveError(name); cause != nil {
			return nil, fmt.Errorf("pongo: load template %q: %w", name, cause)
		}
		return nil, fmt.Errorf("pongo: load template %q: %w", name, err)
	}

	if !e.debug {
		e.templates[name] = tmpl
	}
	return tmpl, nil
}

// resolveError recovers the loader's own error for name, which pongo2
// replaces with a generic message.
func (e *Engine) resolveError(name string) error {
	source := e.currentSource()
	if source == nil || e.fallback != nil {
		return nil
	}
	_, err := source.Get(name)
	return err
}

func (e *Engine) currentSource() pongo2.TemplateLoader {
	e.sourceMu.RLock()
	defer e.sourceMu.RUnlock()
	return e.source
}

// loaderProxy lets the template set follow SetLoader.
type loaderProxy struct {
	engine *Engine
}

func (p loaderProxy) Abs(base, name string) string {
	source := p.engine.currentSource()
	if source == nil {
		return name
	}
	return source.Abs(base, name)
}

func (p loaderProxy) Get(path string) (io.Reader, error) {
	source := p.engine.currentSource()
	if source == nil {
		return nil, ErrNoLoader
	}
	return source.Get(path)
}

func wrapFunction(fn template.Function) func(args ...*pongo2.Value) (*pongo2.Value, error) {
	return func(args ...*pongo2.Value) (*pongo2.Value, error) {
		in := make([]any, len(args))
		for i, arg := range args {
			if arg != nil {
				in[i] = arg.Interface()
			}
		}
		out, err := fn(in...)
		if err != nil {
			return nil, err
		}
		return pongo2.AsValue(out), nil
	}
}
