package renderbridge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-renderbridge/pkg/render/template"
)

// Config describes a renderer, its template roots and its URL helpers. It is
// usually decoded from YAML with LoadConfig.
type Config struct {
	// Suffix is appended to template names without an extension
	// (default "html").
	Suffix string `yaml:"suffix"`
	// Debug disables the compiled template cache.
	Debug bool `yaml:"debug"`
	// Paths lists template roots; an empty namespace is the main namespace.
	Paths []template.TemplatePath `yaml:"paths"`
	// Defaults holds default parameters keyed by template name ("*" for
	// every template), then parameter name.
	Defaults map[string]map[string]any `yaml:"defaults"`
	// Globals is shared by every template through the engine context. Render
	// params and defaults with the same key take precedence.
	Globals map[string]any `yaml:"globals"`
	Assets  AssetsConfig   `yaml:"assets"`
	// ServerURL is the scheme, host and optional base path used by url()
	// and absolute_url().
	ServerURL string `yaml:"server_url"`
	// Routes maps route names to patterns such as "/blog/{slug}".
	Routes map[string]string `yaml:"routes"`
	// OpenAPI points to an OpenAPI document whose operations are added as
	// routes.
	OpenAPI string       `yaml:"openapi"`
	Theme   *ThemeConfig `yaml:"theme"`
}

// AssetsConfig configures asset().
type AssetsConfig struct {
	URL     string  `yaml:"url"`
	Version Version `yaml:"version"`
}

// Version keeps the literal text of a YAML scalar so numeric versions such
// as 0 survive decoding.
type Version string

// UnmarshalYAML decodes any scalar into its literal text.
func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("renderbridge: asset version must be a scalar (line %d)", node.Line)
	}
	if node.Tag == "!!null" {
		*v = ""
		return nil
	}
	*v = Version(node.Value)
	return nil
}

// ThemeConfig configures theme_asset() and the "theme" default parameter.
type ThemeConfig struct {
	Name        string            `yaml:"name"`
	Variant     string            `yaml:"variant"`
	AssetPrefix string            `yaml:"asset_prefix"`
	Assets      map[string]string `yaml:"assets"`
	Tokens      map[string]string `yaml:"tokens"`
}

// LoadConfig reads a YAML config file. Relative template paths and the
// OpenAPI document path are resolved against the directory of path.
func LoadConfig(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, errors.New("renderbridge: config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("renderbridge: read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("renderbridge: %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// ParseConfig decodes YAML config data without resolving paths.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) resolvePaths(base string) {
	for i, p := range c.Paths {
		c.Paths[i].Path = resolvePath(base, p.Path)
	}
	if c.OpenAPI != "" {
		c.OpenAPI = resolvePath(base, c.OpenAPI)
	}
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
