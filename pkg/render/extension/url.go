// Package extension exposes URL helpers to templates: path, url,
// absolute_url, asset and theme_asset. Each function delegates to a route to
// path generator, a path to absolute URL generator, or both.
package extension

import (
	"errors"
	"fmt"
	"strconv"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-renderbridge/pkg/render/template"
)

// ErrInvalidArgument is returned when a template passes an argument of the
// wrong type to one of the URL functions.
var ErrInvalidArgument = errors.New("extension: invalid argument")

// URLGenerator turns a named route into a relative path, including query
// string and fragment.
type URLGenerator interface {
	Generate(route string, routeParams, queryParams map[string]any, fragment string, options map[string]any) (string, error)
}

// ServerURLGenerator turns a path into an absolute URL.
type ServerURLGenerator interface {
	Generate(path string) string
}

// Function identifies one of the template functions registered by the
// extension.
type Function uint8

const (
	FuncPath Function = iota
	FuncURL
	FuncAbsoluteURL
	FuncAsset
	FuncThemeAsset
)

var functionNames = [...]string{
	FuncPath:        "path",
	FuncURL:         "url",
	FuncAbsoluteURL: "absolute_url",
	FuncAsset:       "asset",
	FuncThemeAsset:  "theme_asset",
}

// String returns the name templates use to call f.
func (f Function) String() string {
	if int(f) < len(functionNames) {
		return functionNames[f]
	}
	return "function(" + strconv.Itoa(int(f)) + ")"
}

// Functions lists every function in registration order.
func Functions() []Function {
	return []Function{FuncPath, FuncURL, FuncAbsoluteURL, FuncAsset, FuncThemeAsset}
}

// Option configures the Extension.
type Option func(*URLExtension)

// WithAssetsURL prefixes every asset path with base.
func WithAssetsURL(base string) Option {
	return func(e *URLExtension) {
		e.assetsURL = base
	}
}

// WithAssetsVersion sets the version appended to asset URLs when the call
// site does not supply one. "0" is a valid version.
func WithAssetsVersion(version string) Option {
	return func(e *URLExtension) {
		e.assetsVersion = version
	}
}

// WithTheme resolves theme_asset keys through cfg.AssetURL.
func WithTheme(cfg *theme.RendererConfig) Option {
	return func(e *URLExtension) {
		e.theme = cfg
	}
}

// URLExtension implements template.Extension.
type URLExtension struct {
	serverURL     ServerURLGenerator
	urls          URLGenerator
	assetsURL     string
	assetsVersion string
	theme         *theme.RendererConfig
}

var _ template.Extension = (*URLExtension)(nil)

// New builds the extension around the two URL collaborators.
func New(serverURL ServerURLGenerator, urls URLGenerator, opts ...Option) *URLExtension {
	e := &URLExtension{
		serverURL: serverURL,
		urls:      urls,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Functions returns the template callables keyed by their template name.
func (e *URLExtension) Functions() map[string]template.Function {
	table := map[Function]template.Function{
		FuncPath:        e.pathFunc,
		FuncURL:         e.urlFunc,
		FuncAbsoluteURL: e.absoluteURLFunc,
		FuncAsset:       e.assetFunc,
		FuncThemeAsset:  e.themeAssetFunc,
	}

	out := make(map[string]template.Function, len(table))
	for fn, call := range table {
		out[fn.String()] = call
	}
	return out
}

// RenderURI generates the relative path for route.
func (e *URLExtension) RenderURI(route string, routeParams, queryParams map[string]any, fragment string, options map[string]any) (string, error) {
	if e.urls == nil {
		return "", errors.New("extension: url generator is not configured")
	}
	return e.urls.Generate(route, routeParams, queryParams, fragment, options)
}

// RenderURL generates the absolute URL for route.
func (e *URLExtension) RenderURL(route string, routeParams, queryParams map[string]any, fragment string, options map[string]any) (string, error) {
	path, err := e.RenderURI(route, routeParams, queryParams, fragment, options)
	if err != nil {
		return "", err
	}
	return e.RenderURLFromPath(path), nil
}

// RenderURLFromPath turns an already known path into an absolute URL.
func (e *URLExtension) RenderURLFromPath(path string) string {
	if e.serverURL == nil {
		return path
	}
	return e.serverURL.Generate(path)
}

// RenderAssetURL prefixes path with the configured assets URL and appends
// the version query string. An empty version falls back to the configured
// default; values are concatenated without encoding.
func (e *URLExtension) RenderAssetURL(path, version string) string {
	return e.withVersion(e.assetsURL+path, version)
}

// RenderThemeAsset resolves key through the theme asset resolver, falling
// back to key itself, and appends the version like RenderAssetURL.
func (e *URLExtension) RenderThemeAsset(key, version string) string {
	resolved := key
	if e.theme != nil {
		if resolve := e.theme.AssetURL; resolve != nil {
			if url := resolve(key); url != "" {
				resolved = url
			}
		}
	}
	return e.withVersion(resolved, version)
}

func (e *URLExtension) withVersion(url, version string) string {
	switch {
	case version != "":
		return url + "?v=" + version
	case e.assetsVersion != "":
		return url + "?v=" + e.assetsVersion
	default:
		return url
	}
}

func (e *URLExtension) pathFunc(args ...any) (any, error) {
	call, err := routeCall(FuncPath, args)
	if err != nil {
		return nil, err
	}
	return e.RenderURI(call.route, call.routeParams, call.queryParams, call.fragment, call.options)
}

func (e *URLExtension) urlFunc(args ...any) (any, error) {
	call, err := routeCall(FuncURL, args)
	if err != nil {
		return nil, err
	}
	return e.RenderURL(call.route, call.routeParams, call.queryParams, call.fragment, call.options)
}

func (e *URLExtension) absoluteURLFunc(args ...any) (any, error) {
	path, err := stringArg(FuncAbsoluteURL, args, 0)
	if err != nil {
		return nil, err
	}
	return e.RenderURLFromPath(path), nil
}

func (e *URLExtension) assetFunc(args ...any) (any, error) {
	path, err := stringArg(FuncAsset, args, 0)
	if err != nil {
		return nil, err
	}
	version, err := scalarArg(FuncAsset, args, 1)
	if err != nil {
		return nil, err
	}
	return e.RenderAssetURL(path, version), nil
}

func (e *URLExtension) themeAssetFunc(args ...any) (any, error) {
	key, err := stringArg(FuncThemeAsset, args, 0)
	if err != nil {
		return nil, err
	}
	version, err := scalarArg(FuncThemeAsset, args, 1)
	if err != nil {
		return nil, err
	}
	return e.RenderThemeAsset(key, version), nil
}

type routeArgs struct {
	route       string
	routeParams map[string]any
	queryParams map[string]any
	fragment    string
	options     map[string]any
}

// routeCall maps (route, routeParams, queryParams, fragment, options) call
// arguments, every one but the route being optional.
func routeCall(fn Function, args []any) (routeArgs, error) {
	var call routeArgs
	var err error

	if len(args) > 5 {
		return call, fmt.Errorf("%w: %s accepts at most 5 arguments, got %d", ErrInvalidArgument, fn, len(args))
	}
	if call.route, err = stringArg(fn, args, 0); err != nil {
		return call, err
	}
	if call.routeParams, err = mapArg(fn, args, 1); err != nil {
		return call, err
	}
	if call.queryParams, err = mapArg(fn, args, 2); err != nil {
		return call, err
	}
	if call.fragment, err = scalarArg(fn, args, 3); err != nil {
		return call, err
	}
	if call.options, err = mapArg(fn, args, 4); err != nil {
		return call, err
	}
	return call, nil
}

func stringArg(fn Function, args []any, idx int) (string, error) {
	if idx >= len(args) || args[idx] == nil {
		return "", nil
	}
	value, ok := args[idx].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s argument %d must be a string, got %T", ErrInvalidArgument, fn, idx+1, args[idx])
	}
	return value, nil
}

// scalarArg accepts strings and numbers, so asset('x.png', 0) yields "0".
func scalarArg(fn Function, args []any, idx int) (string, error) {
	if idx >= len(args) || args[idx] == nil {
		return "", nil
	}
	switch v := args[idx].(type) {
	case string:
		return v, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %s argument %d must be a string or number, got %T", ErrInvalidArgument, fn, idx+1, args[idx])
	}
}

func mapArg(fn Function, args []any, idx int) (map[string]any, error) {
	if idx >= len(args) || args[idx] == nil {
		return map[string]any{}, nil
	}
	params, err := template.NormalizeParams(args[idx])
	if err != nil {
		return nil, fmt.Errorf("%w: %s argument %d: %v", ErrInvalidArgument, fn, idx+1, err)
	}
	return params, nil
}
