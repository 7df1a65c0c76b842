// Package config loads hardcopy.yaml: the sources/views/hooks/services
// configuration file, plus the HARDCOPY_ME/GITHUB_USER environment
// variables the core reads directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hardcopy-dev/hardcopy/internal/view"
)

// DefaultOperationTimeout is the Provider-call timeout used when
// hardcopy.yaml sets none.
const DefaultOperationTimeout = 30 * time.Second

// Source is one entry in hardcopy.yaml's `sources` list: a named remote
// bound to a Provider, plus whatever provider-specific fields that Provider
// needs (base URL, project key, auth env var name, ...).
type Source struct {
	Name     string         `yaml:"name"`
	Provider string         `yaml:"provider"`
	Extra    map[string]any `yaml:",inline"`
}

// Config is hardcopy.yaml, decoded. Views reuses internal/view.Definition
// directly (rather than a parallel config-local struct) since the
// materializer consumes it as-is — no name/shape drift to reconcile between
// config loading and view rendering.
type Config struct {
	Sources  []Source          `yaml:"sources"`
	Views    []view.Definition `yaml:"views"`
	Hooks    map[string]any    `yaml:"hooks,omitempty"`
	Services map[string]any    `yaml:"services,omitempty"`

	// OperationTimeout is a scalar setting, not part of the structured
	// sources/views shape, so it's loaded through viper rather than the
	// yaml.v3 decode below.
	OperationTimeout time.Duration `yaml:"-"`
}

// Path returns the conventional hardcopy.yaml location under root.
func Path(root string) string {
	return filepath.Join(root, "hardcopy.yaml")
}

// Load reads and validates the hardcopy.yaml file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.OperationTimeout, err = loadOperationTimeout(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadOperationTimeout reads the `operation-timeout` scalar via viper so
// that a HARDCOPY_OPERATION_TIMEOUT environment variable overrides it,
// same precedence order as any other viper-bound setting.
func loadOperationTimeout(path string) (time.Duration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("HARDCOPY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("operation-timeout", DefaultOperationTimeout)

	if err := v.ReadInConfig(); err != nil {
		return 0, fmt.Errorf("config: viper read %s: %w", path, err)
	}
	return v.GetDuration("operation-timeout"), nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("config: sources[%d]: missing name", i)
		}
		if src.Provider == "" {
			return fmt.Errorf("config: source %q: missing provider", src.Name)
		}
		if seen[src.Name] {
			return fmt.Errorf("config: duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
	}

	for i, v := range c.Views {
		if v.Path == "" {
			return fmt.Errorf("config: views[%d]: missing path", i)
		}
		if v.Query == "" {
			return fmt.Errorf("config: view %q: missing query", v.Path)
		}
		if len(v.Render) == 0 {
			return fmt.Errorf("config: view %q: no render entries", v.Path)
		}
		for j, r := range v.Render {
			if r.PathTemplate == "" {
				return fmt.Errorf("config: view %q render[%d]: missing path_template", v.Path, j)
			}
		}
	}

	return nil
}

// Me resolves the $me view-query parameter from the environment variables
// the core reads directly: HARDCOPY_ME, falling back to GITHUB_USER.
func Me() string {
	if me := os.Getenv("HARDCOPY_ME"); me != "" {
		return me
	}
	return os.Getenv("GITHUB_USER")
}
