// Package config handles assetgraph configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Config represents the assetgraph configuration file.
// Command-line flags override every field.
type Config struct {
	Analyze  AnalyzeConfig  `toml:"analyze"`
	FindRefs FindRefsConfig `toml:"find_refs"`
	Log      LogConfig      `toml:"log"`
	Watch    WatchConfig    `toml:"watch"`
}

// AnalyzeConfig holds defaults for the analyze and watch commands.
type AnalyzeConfig struct {
	// Pattern is a glob matched against file base names.
	Pattern       string `toml:"pattern"`
	Output        string `toml:"output"`
	Workers       int    `toml:"workers"` // 0 means one per CPU
	BatchSize     int    `toml:"batch_size"`
	SkipIntegrity bool   `toml:"skip_integrity"`
}

// FindRefsConfig holds defaults for find-refs.
type FindRefsConfig struct {
	Output string `toml:"output"`
	Format string `toml:"format"` // text, json or yaml
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn or error
	Format string `toml:"format"` // text (console) or json
}

// WatchConfig holds defaults for watch.
type WatchConfig struct {
	DebounceMS int `toml:"debounce_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Analyze: AnalyzeConfig{
			Pattern:   "*",
			Output:    "database.db",
			BatchSize: 10000,
		},
		FindRefs: FindRefsConfig{
			Output: "references.txt",
			Format: "text",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
	}
}

// Load loads the configuration from the default location.
// Returns the default config if the file doesn't exist.
func Load() (*Config, error) {
	configPath := DefaultPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Default(), nil
	}

	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from a specific path. Fields absent
// from the file keep their defaults.
func LoadFrom(path string) (*Config, error) {
	config := Default()
	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// DefaultPath returns the default config file path.
// Checks ~/.config/assetgraph/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "assetgraph", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "assetgraph", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

// Validate checks enumerated and numeric fields.
func (c *Config) Validate() error {
	if c.Analyze.Workers < 0 {
		return fmt.Errorf("analyze.workers must not be negative")
	}
	if c.Analyze.BatchSize < 0 {
		return fmt.Errorf("analyze.batch_size must not be negative")
	}
	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative")
	}
	switch strings.ToLower(c.FindRefs.Format) {
	case "", "text", "json", "yaml":
	default:
		return fmt.Errorf("find_refs.format %q is not text, json or yaml", c.FindRefs.Format)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := c.Log.encoder(); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a zap level. Empty means warn.
func ParseLevel(s string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return zapcore.WarnLevel, nil
	case "warning":
		name = "warn"
	}
	var lvl zapcore.Level
	if err := lvl.Set(name); err != nil || lvl > zapcore.ErrorLevel {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

func (l LogConfig) encoder() (zapcore.Encoder, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.MessageKey = "msg"
	encoderCfg.TimeKey = "time"
	encoderCfg.LevelKey = "level"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "", "text", "console":
		return zapcore.NewConsoleEncoder(encoderCfg), nil
	case "json":
		return zapcore.NewJSONEncoder(encoderCfg), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", l.Format)
	}
}

// NewLogger builds a zap core writing to w and exposes it as a slog logger,
// so zap does the encoding and level filtering.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	enc, err := l.encoder()
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return slog.New(zapslog.NewHandler(core)), nil
}
