package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var (
	// ErrInvalidParams is returned when render parameters are not a map or
	// a struct.
	ErrInvalidParams = errors.New("template: params must be a map or struct")
	// ErrInvalidDefaultParam is returned when a default parameter is
	// registered without a template name or parameter name.
	ErrInvalidDefaultParam = errors.New("template: default param requires template and param names")
)

// NormalizeParams converts caller supplied parameters into a fresh map.
// Maps keyed by strings are copied, structs (and pointers to structs) are
// converted through encoding/json so field tags apply, nil yields an empty
// map.
func NormalizeParams(params any) (map[string]any, error) {
	switch v := params.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return copyMap(v), nil
	case map[string]string:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = value
		}
		return out, nil
	}

	value := reflect.ValueOf(params)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return map[string]any{}, nil
		}
		value = value.Elem()
	}

	switch value.Kind() {
	case reflect.Map:
		if value.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map keys must be strings, got %s", ErrInvalidParams, value.Type())
		}
		out := make(map[string]any, value.Len())
		iter := value.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	case reflect.Struct:
		raw, err := json.Marshal(value.Interface())
		if err != nil {
			return nil, fmt.Errorf("template: encode params: %w", err)
		}
		out := map[string]any{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("template: decode params: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidParams, params)
	}
}

// DefaultParams stores parameters injected into renders, either for every
// template (TemplateAll) or for a single template name. The zero value is
// ready to use.
type DefaultParams struct {
	mu     sync.RWMutex
	params map[string]map[string]any
}

// Add registers value under param for templateName.
func (d *DefaultParams) Add(templateName, param string, value any) error {
	templateName = strings.TrimSpace(templateName)
	param = strings.TrimSpace(param)
	if templateName == "" || param == "" {
		return ErrInvalidDefaultParam
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.params == nil {
		d.params = make(map[string]map[string]any)
	}
	if d.params[templateName] == nil {
		d.params[templateName] = make(map[string]any)
	}
	d.params[templateName][param] = value
	return nil
}

// Merge layers the defaults for TemplateAll and then for each of
// templateNames, in order, underneath params. Later names override earlier
// ones and values already present in params always win; nested maps are
// merged key by key.
func (d *DefaultParams) Merge(params map[string]any, templateNames ...string) map[string]any {
	if params == nil {
		params = map[string]any{}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	defaults := d.params[TemplateAll]
	for _, name := range templateNames {
		if layer := d.params[name]; len(layer) > 0 {
			defaults = MergeParams(defaults, layer)
		}
	}
	if len(defaults) == 0 {
		return params
	}
	return MergeParams(defaults, params)
}

// MergeParams returns a new map holding defaults overridden by overrides.
// When both sides hold a map under the same key the two maps are merged
// recursively.
func MergeParams(defaults, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(overrides))
	for key, value := range defaults {
		out[key] = value
	}
	for key, value := range overrides {
		base, baseIsMap := out[key].(map[string]any)
		next, nextIsMap := value.(map[string]any)
		if baseIsMap && nextIsMap {
			out[key] = MergeParams(base, next)
			continue
		}
		out[key] = value
	}
	return out
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
