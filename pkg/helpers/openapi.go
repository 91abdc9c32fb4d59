package helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// RoutesFromOpenAPI reads an OpenAPI document (JSON or YAML) and returns one
// route per operation, keyed by operationId, using the path template as the
// pattern. Operations without an operationId are keyed "method:path".
func RoutesFromOpenAPI(ctx context.Context, data []byte) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("helpers: openapi document is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("helpers: load openapi document: %w", err)
	}

	routes := make(map[string]string)
	if doc.Paths == nil {
		return routes, nil
	}

	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		collectRoute(routes, "GET", path, item.Get)
		collectRoute(routes, "PUT", path, item.Put)
		collectRoute(routes, "POST", path, item.Post)
		collectRoute(routes, "DELETE", path, item.Delete)
		collectRoute(routes, "PATCH", path, item.Patch)
		collectRoute(routes, "HEAD", path, item.Head)
		collectRoute(routes, "OPTIONS", path, item.Options)
		collectRoute(routes, "TRACE", path, item.Trace)
	}
	return routes, nil
}

// AddOpenAPIRoutes registers the routes of an OpenAPI document on h.
func (h *URLHelper) AddOpenAPIRoutes(ctx context.Context, data []byte) error {
	routes, err := RoutesFromOpenAPI(ctx, data)
	if err != nil {
		return err
	}
	for name, pattern := range routes {
		if err := h.AddRoute(name, pattern); err != nil {
			return err
		}
	}
	return nil
}

func collectRoute(target map[string]string, method, path string, operation *openapi3.Operation) {
	if operation == nil {
		return
	}
	name := strings.TrimSpace(operation.OperationID)
	if name == "" {
		name = strings.ToLower(method) + ":" + path
	}
	target[name] = path
}
