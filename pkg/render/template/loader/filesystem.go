// Package loader provides a namespaced filesystem template loader. Template
// roots are grouped under namespaces and templates are addressed either by a
// plain relative name (main namespace) or as "@namespace/relative/name".
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-renderbridge/pkg/render/template"
)

// MainNamespace identifies the namespace used when none is given.
const MainNamespace = "__main__"

var (
	// ErrDirectoryNotFound is returned when a registered path is not an
	// existing directory.
	ErrDirectoryNotFound = errors.New("loader: directory does not exist")
	// ErrInvalidNamespace is returned for namespaces that cannot be
	// addressed from a template name.
	ErrInvalidNamespace = errors.New("loader: invalid namespace")
	// ErrInvalidName is returned for malformed template names or names
	// that resolve outside their template root.
	ErrInvalidName = errors.New("loader: invalid template name")
	// ErrTemplateNotFound is returned when no registered root holds the
	// requested template.
	ErrTemplateNotFound = errors.New("loader: template not found")
)

// Filesystem resolves templates from directories registered per namespace.
// It satisfies template.Loader and pongo2.TemplateLoader.
type Filesystem struct {
	mu         sync.RWMutex
	namespaces []string
	paths      map[string][]string
}

var (
	_ template.Loader       = (*Filesystem)(nil)
	_ pongo2.TemplateLoader = (*Filesystem)(nil)
)

// NewFilesystem constructs a loader, registering paths under the main
// namespace.
func NewFilesystem(paths ...string) (*Filesystem, error) {
	l := &Filesystem{paths: make(map[string][]string)}
	for _, p := range paths {
		if err := l.AddPath(p, MainNamespace); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// AddPath appends dir to the lookup roots of namespace. An empty namespace
// means MainNamespace.
func (l *Filesystem) AddPath(dir, namespace string) error {
	return l.register(dir, namespace, false)
}

// PrependPath registers dir ahead of the existing roots of namespace.
func (l *Filesystem) PrependPath(dir, namespace string) error {
	return l.register(dir, namespace, true)
}

func (l *Filesystem) register(dir, namespace string, prepend bool) error {
	if namespace == "" {
		namespace = MainNamespace
	}
	if strings.ContainsAny(namespace, "/@") {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}

	cleaned := trimSeparators(dir)
	info, err := os.Stat(cleaned)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %q", ErrDirectoryNotFound, dir)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paths == nil {
		l.paths = make(map[string][]string)
	}
	if _, ok := l.paths[namespace]; !ok {
		l.namespaces = append(l.namespaces, namespace)
	}
	if prepend {
		l.paths[namespace] = append([]string{cleaned}, l.paths[namespace]...)
	} else {
		l.paths[namespace] = append(l.paths[namespace], cleaned)
	}
	return nil
}

// Namespaces lists namespaces in the order they were first registered.
func (l *Filesystem) Namespaces() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.namespaces...)
}

// Paths lists the roots registered for namespace in lookup order.
func (l *Filesystem) Paths(namespace string) []string {
	if namespace == "" {
		namespace = MainNamespace
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.paths[namespace]...)
}

// Exists reports whether name resolves to a template file.
func (l *Filesystem) Exists(name string) bool {
	_, err := l.find(name)
	return err == nil
}

// Templates lists every template reachable through the registered roots
// using logical names. Shadowed files (same name in a later root) are
// reported once.
func (l *Filesystem) Templates() ([]string, error) {
	seen := make(map[string]struct{})
	var names []string

	for _, namespace := range l.Namespaces() {
		for _, root := range l.Paths(namespace) {
			err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					return nil
				}
				rel, err := filepath.Rel(root, p)
				if err != nil {
					return err
				}
				name := filepath.ToSlash(rel)
				if namespace != MainNamespace {
					name = "@" + namespace + "/" + name
				}
				if _, ok := seen[name]; ok {
					return nil
				}
				seen[name] = struct{}{}
				names = append(names, name)
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("loader: walk %q: %w", root, err)
			}
		}
	}

	sort.Strings(names)
	return names, nil
}

// Abs returns name unchanged: names are resolved against namespaces rather
// than relative to the including template.
func (l *Filesystem) Abs(_, name string) string {
	return name
}

// Get opens the template registered under name.
func (l *Filesystem) Get(name string) (io.Reader, error) {
	file, err := l.find(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loader: read %q: %w", name, err)
	}
	return bytes.NewReader(data), nil
}

func (l *Filesystem) find(name string) (string, error) {
	namespace, rel, err := parseName(name)
	if err != nil {
		return "", err
	}

	roots := l.Paths(namespace)
	for _, root := range roots {
		candidate := filepath.Join(root, filepath.FromSlash(rel))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	if namespace == MainNamespace {
		return "", fmt.Errorf("%w: %q (looked into: %s)", ErrTemplateNotFound, name, strings.Join(roots, ", "))
	}
	return "", fmt.Errorf("%w: %q in namespace %q (looked into: %s)", ErrTemplateNotFound, name, namespace, strings.Join(roots, ", "))
}

func parseName(name string) (string, string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	namespace := MainNamespace

	if strings.HasPrefix(name, "@") {
		idx := strings.Index(name, "/")
		if idx < 0 {
			return "", "", fmt.Errorf("%w: malformed namespaced name %q", ErrInvalidName, name)
		}
		namespace = name[1:idx]
		if namespace == "" {
			return "", "", fmt.Errorf("%w: empty namespace in %q", ErrInvalidName, name)
		}
		name = name[idx+1:]
	}

	name = strings.TrimLeft(name, "/")
	if name == "" {
		return "", "", fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	cleaned := path.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", "", fmt.Errorf("%w: %q resolves outside its root", ErrInvalidName, name)
	}
	return namespace, cleaned, nil
}

func trimSeparators(dir string) string {
	trimmed := strings.TrimRight(dir, `/\`)
	if trimmed == "" {
		return dir
	}
	return trimmed
}
