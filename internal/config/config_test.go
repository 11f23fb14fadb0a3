package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFrom(t *testing.T) {
	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := writeConfig(t, `
[analyze]
pattern = "*.bundle"
workers = 4

[find_refs]
format = "yaml"
`)
		cfg, err := LoadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, "*.bundle", cfg.Analyze.Pattern)
		assert.Equal(t, 4, cfg.Analyze.Workers)
		assert.Equal(t, "database.db", cfg.Analyze.Output)
		assert.Equal(t, 10000, cfg.Analyze.BatchSize)
		assert.Equal(t, "yaml", cfg.FindRefs.Format)
		assert.Equal(t, "references.txt", cfg.FindRefs.Output)
		assert.Equal(t, 500, cfg.Watch.DebounceMS)
	})

	t.Run("full file", func(t *testing.T) {
		path := writeConfig(t, `
[analyze]
output = "graph.db"
batch_size = 500
skip_integrity = true

[log]
level = "debug"
format = "json"

[watch]
debounce_ms = 250
`)
		cfg, err := LoadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, "graph.db", cfg.Analyze.Output)
		assert.Equal(t, 500, cfg.Analyze.BatchSize)
		assert.True(t, cfg.Analyze.SkipIntegrity)
		assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
		assert.Equal(t, 250, cfg.Watch.DebounceMS)
	})

	tests := []struct {
		name    string
		content string
	}{
		{"syntax error", `[analyze`},
		{"unknown key", "[analyze]\nthreads = 3\n"},
		{"bad format", "[find_refs]\nformat = \"xml\"\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
		{"negative workers", "[analyze]\nworkers = -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestLoadDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(home, ".config", "assetgraph", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("[find_refs]\noutput = \"chains.txt\"\n"), 0644))
	assert.Equal(t, path, DefaultPath())

	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "chains.txt", cfg.FindRefs.Output)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := LogConfig{Level: "info", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("shown", slog.String("path", "a.bundle"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "a.bundle", rec["path"])
	assert.Contains(t, rec, "time")

	_, err = LogConfig{Format: "xml"}.NewLogger(&buf)
	assert.Error(t, err)
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	log, err := LogConfig{Format: "text"}.NewLogger(&buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("skipping file", slog.String("path", "b.bundle"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "warn")
	assert.Contains(t, out, "skipping file")
	assert.Contains(t, out, `"path": "b.bundle"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "", want: zapcore.WarnLevel},
		{in: "debug", want: zapcore.DebugLevel},
		{in: " INFO ", want: zapcore.InfoLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "fatal", wantErr: true},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
