package template

// TemplateAll is the template name used to register default parameters that
// apply to every template.
const TemplateAll = "*"

// TemplateRenderer is the contract exposed to application code. Names may use
// the "namespace::template" form and may omit the file suffix.
type TemplateRenderer interface {
	Render(name string, params any) (string, error)
	AddPath(path, namespace string) error
	Paths() []TemplatePath
	AddDefaultParam(templateName, param string, value any) error
}

// TemplatePath is a template lookup root. An empty Namespace denotes the main
// namespace.
type TemplatePath struct {
	Path      string `json:"path" yaml:"path"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// Loader registers and reports template lookup roots grouped by namespace.
type Loader interface {
	AddPath(path, namespace string) error
	Namespaces() []string
	Paths(namespace string) []string
}

// Environment is the engine the renderer delegates to. Implementations may be
// constructed without a loader; HasLoader reports whether one is attached.
type Environment interface {
	Render(name string, params map[string]any) (string, error)
	HasLoader() bool
	Loader() Loader
	SetLoader(loader Loader) error
	AddExtension(ext Extension) error
}

// Function is a template callable. Arguments arrive positionally, in the
// order they were written in the template, with nil for missing values.
type Function func(args ...any) (any, error)

// Extension contributes a set of named functions to an Environment.
type Extension interface {
	Functions() map[string]Function
}
