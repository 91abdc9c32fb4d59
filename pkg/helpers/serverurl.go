package helpers

import (
	"fmt"
	"net/url"
	"strings"
)

// ServerURLHelper prefixes paths with the scheme, host and base path of the
// server.
type ServerURLHelper struct {
	base *url.URL
}

// NewServerURLHelper parses base, e.g. "https://example.com/app". An empty
// base yields a helper that returns paths unchanged.
func NewServerURLHelper(base string) (*ServerURLHelper, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return &ServerURLHelper{}, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("helpers: parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("helpers: server url %q needs a scheme and host", base)
	}
	return &ServerURLHelper{base: u}, nil
}

// Generate returns the absolute URL for path. Absolute URLs pass through,
// paths starting with "/" replace the base path and other paths are appended
// to it. Query and fragment of path are kept.
func (h *ServerURLHelper) Generate(path string) string {
	if h == nil || h.base == nil {
		return path
	}

	ref, err := url.Parse(path)
	if err != nil {
		return h.origin() + "/" + strings.TrimLeft(path, "/")
	}
	if ref.IsAbs() {
		return path
	}

	target := *h.base
	target.RawQuery = ref.RawQuery
	target.Fragment = ref.Fragment
	target.RawFragment = ref.RawFragment

	switch {
	case ref.Path == "":
		// keep the base path
	case strings.HasPrefix(ref.Path, "/"):
		target.Path = ref.Path
		target.RawPath = ref.RawPath
	default:
		target.Path = strings.TrimRight(h.base.Path, "/") + "/" + ref.Path
		target.RawPath = ""
	}
	return target.String()
}

func (h *ServerURLHelper) origin() string {
	return h.base.Scheme + "://" + h.base.Host
}
