// Package config loads stubtree.toml, the per-project settings file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"stubtree/internal/index"
	"stubtree/internal/project"
	"stubtree/internal/trace"
)

// Config is the effective configuration of one project.
type Config struct {
	// Path is the manifest file, empty when running on defaults.
	Path string `toml:"-"`
	// Root anchors relative paths and include/exclude patterns.
	Root string `toml:"-"`

	Index IndexConfig `toml:"index"`
	Cache CacheConfig `toml:"cache"`
	Store StoreConfig `toml:"store"`
	Trace TraceConfig `toml:"trace"`

	matcher *Matcher
}

type IndexConfig struct {
	Include         []string `toml:"include"`
	Exclude         []string `toml:"exclude"`
	Jobs            int      `toml:"jobs"`
	Packages        bool     `toml:"packages"`
	TopLevelFqNames bool     `toml:"toplevel_fqnames"`
}

type CacheConfig struct {
	Dir      string `toml:"dir"` // empty: $XDG_CACHE_HOME/stubtree
	Disabled bool   `toml:"disabled"`
	Memory   int    `toml:"memory"` // decoded trees kept in memory
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

var (
	DefaultInclude = []string{"**/*.kt", "**/*.kts"}
	DefaultExclude = []string{"**/build/**", "**/.gradle/**", "**/.stubtree/**"}
)

const (
	DefaultStorePath = ".stubtree/stubs.db"
	DefaultMemory    = 1024
)

// Default returns the configuration used when no manifest exists.
func Default(root string) *Config {
	cfg := &Config{
		Root: root,
		Index: IndexConfig{
			Include:         DefaultInclude,
			Exclude:         DefaultExclude,
			Packages:        true,
			TopLevelFqNames: true,
		},
		Cache: CacheConfig{Memory: DefaultMemory},
		Store: StoreConfig{Path: DefaultStorePath},
		Trace: TraceConfig{Level: "off"},
	}
	m, err := NewMatcher(cfg.Index.Include, cfg.Index.Exclude)
	if err != nil {
		panic(fmt.Errorf("default patterns: %w", err))
	}
	cfg.matcher = m
	return cfg
}

// Load finds stubtree.toml upward from startDir. Without one it returns the
// defaults rooted at startDir.
func Load(startDir string) (*Config, error) {
	path, ok, err := project.FindManifest(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		root, err := filepath.Abs(startDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve start directory: %w", err)
		}
		return Default(root), nil
	}
	return LoadFile(path)
}

// LoadFile reads one manifest. Keys left out keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))
	cfg.Path = path
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Index.Jobs < 0 {
		errs = append(errs, fmt.Errorf("[index].jobs must not be negative, got %d", c.Index.Jobs))
	}
	if len(c.Index.Include) == 0 {
		errs = append(errs, errors.New("[index].include must name at least one pattern"))
	}
	if c.Cache.Memory < 0 {
		errs = append(errs, fmt.Errorf("[cache].memory must not be negative, got %d", c.Cache.Memory))
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("[store].path must not be empty"))
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		errs = append(errs, fmt.Errorf("[trace].level: %w", err))
	}
	m, err := NewMatcher(c.Index.Include, c.Index.Exclude)
	if err != nil {
		errs = append(errs, err)
	} else {
		c.matcher = m
	}
	return errors.Join(errs...)
}

// Matcher returns the compiled include/exclude patterns.
func (c *Config) Matcher() *Matcher { return c.matcher }

// Policy maps the index switches onto an index policy.
func (c *Config) Policy() index.Policy {
	return index.Policy{
		Packages:        c.Index.Packages,
		TopLevelFqNames: c.Index.TopLevelFqNames,
	}
}

// Jobs is the worker count, GOMAXPROCS when unset.
func (c *Config) Jobs() int {
	if c.Index.Jobs > 0 {
		return c.Index.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

// StorePath resolves the snapshot database against Root.
func (c *Config) StorePath() string {
	return c.resolve(c.Store.Path)
}

// CacheDir resolves the disk cache directory; empty means the user cache.
func (c *Config) CacheDir() string {
	if c.Cache.Dir == "" {
		return ""
	}
	return c.resolve(c.Cache.Dir)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}
