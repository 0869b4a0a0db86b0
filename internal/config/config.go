// Package config handles enginebridge.toml configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/roach88/enginebridge/internal/bridge"
	"github.com/roach88/enginebridge/internal/catalog"
	"github.com/roach88/enginebridge/internal/engine"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "enginebridge.toml"

// Config represents an enginebridge.toml file.
type Config struct {
	Bridge    Bridge    `toml:"bridge"`
	Engine    Engine    `toml:"engine"`
	Workspace Workspace `toml:"workspace"`
	Log       Log       `toml:"log"`

	// Dir is the directory containing the file (set at load time). Relative
	// paths in the file resolve against it.
	Dir string `toml:"-"`
}

// Bridge holds the engine conventions the marshaler relies on.
type Bridge struct {
	ThinWrapperClass string `toml:"thin_wrapper_class"`
	SentinelPrefix   string `toml:"sentinel_prefix"`
	SentinelLength   int    `toml:"sentinel_length"`
	SmallArrayLimit  int    `toml:"small_array_limit"`
	AdapterName      string `toml:"adapter_name"`
}

// Engine configures the reference engine.
type Engine struct {
	// CatalogDir holds .cue declarations; empty uses the built-in catalog.
	CatalogDir       string `toml:"catalog_dir"`
	MaxCallbackDepth int    `toml:"max_callback_depth"`
}

// Workspace configures persistence.
type Workspace struct {
	DB   string `toml:"db"`
	Name string `toml:"name"`
}

// Log configures the logger built by Logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	opts := bridge.DefaultOptions()
	return &Config{
		Bridge: Bridge{
			ThinWrapperClass: opts.ThinWrapperClass,
			SentinelPrefix:   opts.SentinelPrefix,
			SentinelLength:   opts.SentinelLength,
			SmallArrayLimit:  opts.SmallArrayLimit,
			AdapterName:      opts.AdapterName,
		},
		Engine: Engine{
			MaxCallbackDepth: engine.DefaultMaxCallbackDepth,
		},
		Workspace: Workspace{
			DB:   ".enginebridge/workspace.db",
			Name: "default",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load parses the file at path over the defaults. A missing file yields
// the defaults with Dir set to the file's directory. Unknown keys are an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	cfg.Dir = dir

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FindAndLoad walks up from startDir to find an enginebridge.toml file and
// loads it. When none is found it returns the defaults rooted at startDir.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			cfg := Default()
			cfg.Dir, _ = filepath.Abs(startDir)
			return cfg, nil
		}
		dir = parent
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Bridge.SentinelLength <= len(c.Bridge.SentinelPrefix):
		return fmt.Errorf("bridge.sentinel_length %d must exceed the prefix length", c.Bridge.SentinelLength)
	case c.Bridge.SmallArrayLimit < 0:
		return fmt.Errorf("bridge.small_array_limit must not be negative")
	case c.Bridge.AdapterName == "":
		return fmt.Errorf("bridge.adapter_name must not be empty")
	case c.Engine.MaxCallbackDepth < 0:
		return fmt.Errorf("engine.max_callback_depth must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

// BridgeOptions converts the [bridge] section.
func (c *Config) BridgeOptions() bridge.Options {
	return bridge.Options{
		ThinWrapperClass: c.Bridge.ThinWrapperClass,
		SentinelPrefix:   c.Bridge.SentinelPrefix,
		SentinelLength:   c.Bridge.SentinelLength,
		SmallArrayLimit:  c.Bridge.SmallArrayLimit,
		AdapterName:      c.Bridge.AdapterName,
	}
}

// Catalog loads the declarations named by [engine].catalog_dir, or the
// built-in catalog when it is empty.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	if c.Engine.CatalogDir == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadDir(c.resolve(c.Engine.CatalogDir))
}

// EngineOptions converts the [engine] section. The logger is passed in
// because it is usually built from the same Config.
func (c *Config) EngineOptions(logger *slog.Logger) ([]engine.Option, error) {
	cat, err := c.Catalog()
	if err != nil {
		return nil, err
	}
	return []engine.Option{
		engine.WithCatalog(cat),
		engine.WithMaxCallbackDepth(c.Engine.MaxCallbackDepth),
		engine.WithLogger(logger),
	}, nil
}

// DBPath returns the workspace database path resolved against Dir.
func (c *Config) DBPath() string {
	return c.resolve(c.Workspace.DB)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Logger builds a logger writing to w according to the [log] section.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch c.Log.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}
