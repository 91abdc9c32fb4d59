// Package helpers provides the URL collaborators used by the template
// extension: URLHelper generates paths for named routes and ServerURLHelper
// turns paths into absolute URLs.
package helpers

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// OptionReuseResultParams controls whether parameters of the matched route
// are reused when generating a URL for the same route. Defaults to true.
const OptionReuseResultParams = "reuse_result_params"

var (
	// ErrRouteNotFound is returned when generating a URL for an unknown
	// route, or for the current route when none was matched.
	ErrRouteNotFound = errors.New("helpers: route not found")
	// ErrMissingRouteParam is returned when a route placeholder has no
	// value.
	ErrMissingRouteParam = errors.New("helpers: missing route parameter")
	// ErrInvalidRoute is returned when registering a route without a name
	// or pattern.
	ErrInvalidRoute = errors.New("helpers: route name and pattern required")
)

var placeholderPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

// RouteResult is the route matched for the current request.
type RouteResult struct {
	Name   string
	Params map[string]any
}

// URLHelper generates paths from named route patterns such as
// "/blog/{slug}". It is safe for concurrent use.
type URLHelper struct {
	mu     sync.RWMutex
	routes map[string]string
	result *RouteResult
}

// NewURLHelper registers routes keyed by name.
func NewURLHelper(routes map[string]string) (*URLHelper, error) {
	h := &URLHelper{routes: make(map[string]string, len(routes))}
	for name, pattern := range routes {
		if err := h.AddRoute(name, pattern); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// AddRoute registers or replaces the pattern for name.
func (h *URLHelper) AddRoute(name, pattern string) error {
	name = strings.TrimSpace(name)
	pattern = strings.TrimSpace(pattern)
	if name == "" || pattern == "" {
		return ErrInvalidRoute
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.routes == nil {
		h.routes = make(map[string]string)
	}
	h.routes[name] = pattern
	return nil
}

// Routes returns a copy of the registered routes.
func (h *URLHelper) Routes() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.routes))
	for name, pattern := range h.routes {
		out[name] = pattern
	}
	return out
}

// SetRouteResult records the route matched for the current request.
func (h *URLHelper) SetRouteResult(name string, params map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result = &RouteResult{Name: name, Params: params}
}

// Generate builds the path for route. An empty route name targets the
// matched route. Placeholder values are path escaped, query parameters are
// encoded in key order, and a non-empty fragment is appended.
func (h *URLHelper) Generate(route string, routeParams, queryParams map[string]any, fragment string, options map[string]any) (string, error) {
	h.mu.RLock()
	result := h.result
	h.mu.RUnlock()

	if route == "" {
		if result == nil {
			return "", fmt.Errorf("%w: no route given and no route matched", ErrRouteNotFound)
		}
		route = result.Name
	}

	h.mu.RLock()
	pattern, ok := h.routes[route]
	h.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrRouteNotFound, route)
	}

	params := routeParams
	if result != nil && result.Name == route && reuseResultParams(options) {
		params = mergeRouteParams(result.Params, routeParams)
	}

	path, err := expand(route, pattern, params)
	if err != nil {
		return "", err
	}
	if query := encodeQuery(queryParams); query != "" {
		path += "?" + query
	}
	if fragment != "" {
		path += "#" + url.PathEscape(fragment)
	}
	return path, nil
}

func expand(route, pattern string, params map[string]any) (string, error) {
	var missing []string
	path := placeholderPattern.ReplaceAllStringFunc(pattern, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := params[name]
		if !ok || value == nil {
			missing = append(missing, name)
			return match
		}
		return url.PathEscape(fmt.Sprint(value))
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: route %q needs %s", ErrMissingRouteParam, route, strings.Join(missing, ", "))
	}
	return path, nil
}

func encodeQuery(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, key := range keys {
		switch v := params[key].(type) {
		case nil:
			continue
		case []any:
			for _, item := range v {
				values.Add(key, fmt.Sprint(item))
			}
		case []string:
			for _, item := range v {
				values.Add(key, item)
			}
		default:
			values.Add(key, fmt.Sprint(v))
		}
	}
	return values.Encode()
}

func reuseResultParams(options map[string]any) bool {
	value, ok := options[OptionReuseResultParams]
	if !ok {
		return true
	}
	reuse, ok := value.(bool)
	return !ok || reuse
}

func mergeRouteParams(matched, explicit map[string]any) map[string]any {
	out := make(map[string]any, len(matched)+len(explicit))
	for key, value := range matched {
		out[key] = value
	}
	for key, value := range explicit {
		out[key] = value
	}
	return out
}
