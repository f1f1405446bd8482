// Package config loads critq.ini.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/spf13/afero"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/inifile"
	"github.com/shipq/critq/logging"
)

// ConfigFilename is the name of the config file.
const ConfigFilename = "critq.ini"

// ValidDialects is the list of supported database dialects.
var ValidDialects = []string{"postgres", "mysql", "sqlite"}

// knownKeys lists the accepted keys per section.
var knownKeys = map[string][]string{
	"render": {"dialect", "version", "targets"},
	"log":    {"level", "format"},
	"db":     {"url"},
}

// Config holds the complete configuration from critq.ini.
type Config struct {
	// ConfigDir is the directory critq.ini was looked up in.
	ConfigDir string
	// Found reports whether critq.ini existed.
	Found bool

	Render RenderConfig
	Log    LogConfig
	DB     DBConfig
}

// RenderConfig holds the [render] section.
type RenderConfig struct {
	Dialect string
	Version string
	// Targets is the list rendered by "critq render --all"; empty means
	// every dialect at its default version.
	Targets []Target
}

// Target is one dialect and optional server version.
type Target struct {
	Dialect string
	Version string
}

func (t Target) String() string {
	if t.Version == "" {
		return t.Dialect
	}
	return t.Dialect + "@" + t.Version
}

// LogConfig holds the [log] section.
type LogConfig struct {
	Level  string
	Format string
}

// DBConfig holds the [db] section.
type DBConfig struct {
	URL string
}

// Default returns the configuration used when critq.ini is absent.
func Default() *Config {
	return &Config{
		Render: RenderConfig{Dialect: "postgres", Version: DefaultVersion("postgres")},
		Log:    LogConfig{Level: "info", Format: logging.FormatPretty},
	}
}

// DefaultVersion returns the version rendered for dialect when none is
// configured.
func DefaultVersion(dialect string) string {
	d, err := compile.DialectByName(dialect)
	if err != nil {
		return ""
	}
	return d.DefaultVersion().Original()
}

// Load reads critq.ini from the given directory (or CWD if empty).
func Load(dir string) (*Config, error) {
	return LoadFS(afero.NewOsFs(), dir)
}

// LoadFS reads critq.ini from dir on fs. A missing file yields the
// defaults.
func LoadFS(fs afero.Fs, dir string) (*Config, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	cfg := Default()
	cfg.ConfigDir = dir

	iniPath := filepath.Join(dir, ConfigFilename)
	data, err := afero.ReadFile(fs, iniPath)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFilename, err)
	}
	cfg.Found = true

	f, err := inifile.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFilename, err)
	}
	if err := checkKeys(f); err != nil {
		return nil, err
	}
	if err := parseRenderSection(f, &cfg.Render); err != nil {
		return nil, err
	}
	if err := parseLogSection(f, &cfg.Log); err != nil {
		return nil, err
	}
	cfg.DB.URL = f.Get("db", "url")
	return cfg, nil
}

func checkKeys(f *inifile.File) error {
	for _, s := range f.Sections {
		keys, ok := knownKeys[s.Name]
		if !ok {
			return fmt.Errorf("%s: unknown section [%s]", ConfigFilename, s.Name)
		}
		for _, kv := range s.Values {
			if !slices.Contains(keys, kv.Key) {
				return fmt.Errorf("%s line %d: unknown key %s.%s", ConfigFilename, kv.Line, s.Name, kv.Key)
			}
		}
	}
	return nil
}

// parseRenderSection parses the [render] section. Changing the dialect
// without a version selects that dialect's default version.
func parseRenderSection(f *inifile.File, cfg *RenderConfig) error {
	if v := f.Get("render", "dialect"); v != "" {
		dialect, err := ValidateDialect(v)
		if err != nil {
			return fmt.Errorf("%s: render.dialect: %w", ConfigFilename, err)
		}
		cfg.Dialect = dialect
		cfg.Version = DefaultVersion(dialect)
	}
	if v := f.Get("render", "version"); v != "" {
		if err := ValidateVersion(v); err != nil {
			return fmt.Errorf("%s: render.version: %w", ConfigFilename, err)
		}
		cfg.Version = v
	}
	if v := f.Get("render", "targets"); v != "" {
		targets, err := ParseTargets(v)
		if err != nil {
			return fmt.Errorf("%s: render.targets: %w", ConfigFilename, err)
		}
		cfg.Targets = targets
	}
	return nil
}

func parseLogSection(f *inifile.File, cfg *LogConfig) error {
	if v := f.Get("log", "level"); v != "" {
		if _, err := logging.ParseLevel(v); err != nil {
			return fmt.Errorf("%s: log.level: %w", ConfigFilename, err)
		}
		cfg.Level = strings.ToLower(v)
	}
	if v := f.Get("log", "format"); v != "" {
		v = strings.ToLower(v)
		switch v {
		case logging.FormatPretty, logging.FormatJSON, logging.FormatText:
			cfg.Format = v
		default:
			return fmt.Errorf("%s: log.format: unknown format %q (want pretty, json or text)", ConfigFilename, v)
		}
	}
	return nil
}

// ValidateDialect normalizes a dialect name and rejects unknown ones.
func ValidateDialect(s string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(s))
	if !slices.Contains(ValidDialects, d) {
		return "", fmt.Errorf("invalid dialect %q (valid: %s)", s, strings.Join(ValidDialects, ", "))
	}
	return d, nil
}

// ValidateVersion checks that s is a dotted version number.
func ValidateVersion(s string) error {
	if _, err := version.NewVersion(s); err != nil {
		return fmt.Errorf("invalid version %q: %w", s, err)
	}
	return nil
}

// ParseTargets parses a comma-separated list of dialect[@version].
func ParseTargets(s string) ([]Target, error) {
	var targets []Target
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, ver, _ := strings.Cut(part, "@")
		dialect, err := ValidateDialect(name)
		if err != nil {
			return nil, err
		}
		if ver != "" {
			if err := ValidateVersion(ver); err != nil {
				return nil, err
			}
		}
		targets = append(targets, Target{Dialect: dialect, Version: ver})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets in %q", s)
	}
	return targets, nil
}

// File renders cfg as an INI file.
func (c *Config) File() *inifile.File {
	f := &inifile.File{}
	f.Set("render", "dialect", c.Render.Dialect)
	f.Set("render", "version", c.Render.Version)
	if len(c.Render.Targets) > 0 {
		parts := make([]string, len(c.Render.Targets))
		for i, t := range c.Render.Targets {
			parts[i] = t.String()
		}
		f.Set("render", "targets", strings.Join(parts, ", "))
	}
	f.Set("log", "level", c.Log.Level)
	f.Set("log", "format", c.Log.Format)
	if c.DB.URL != "" {
		f.Set("db", "url", c.DB.URL)
	}
	return f
}

// WriteFS writes cfg to dir/critq.ini on fs. An existing file is an error.
func (c *Config) WriteFS(fs afero.Fs, dir string) (string, error) {
	path := filepath.Join(dir, ConfigFilename)
	if ok, _ := afero.Exists(fs, path); ok {
		return "", fmt.Errorf("%s already exists in %s", ConfigFilename, dir)
	}
	var buf bytes.Buffer
	if err := c.File().Write(&buf); err != nil {
		return "", err
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", ConfigFilename, err)
	}
	return path, nil
}
