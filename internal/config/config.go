// Package config handles pubsync configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/juyoungml/pubsync/internal/backup"
	"github.com/juyoungml/pubsync/internal/merge"
	"github.com/juyoungml/pubsync/internal/publication"
	"github.com/juyoungml/pubsync/internal/scholar"
)

// Config is the effective configuration of a run.
type Config struct {
	ProfileID       string        `yaml:"profile_id"`
	BaseURL         string        `yaml:"base_url"`
	Language        string        `yaml:"language"`
	UserAgent       string        `yaml:"user_agent"`
	MaxPublications int           `yaml:"max_publications"`
	RequestDelay    time.Duration `yaml:"request_delay"`
	Timeout         time.Duration `yaml:"timeout"`

	DataDir        string `yaml:"data_dir"`        // Backup directory
	SnapshotPrefix string `yaml:"snapshot_prefix"` // {prefix}.json and {prefix}_backup_*.json
	TargetFile     string `yaml:"target_file"`     // Generated website data file
	Section        string `yaml:"section"`         // Field whose array is rewritten
	IndexPath      string `yaml:"index_path"`      // Query index, defaults under DataDir

	CV CVConfig `yaml:"cv"`

	// Path is the file the config was loaded from, empty for defaults.
	Path string `yaml:"-"`
}

// CVConfig configures `pubsync cv`.
type CVConfig struct {
	Source     string `yaml:"source"`      // Typst source
	PDFPath    string `yaml:"pdf_path"`    // Compiled CV, used when Source is absent
	Output     string `yaml:"output"`      // cv-sync.json destination
	PublicPath string `yaml:"public_path"` // Path of the CV on the website
}

const (
	// ConfigFile is the project config file name.
	ConfigFile = "pubsync.yml"

	// IndexFile is the default query index name inside DataDir.
	IndexFile = ".pubsync.db"

	EnvProfileID = "PUBSYNC_PROFILE_ID"
	EnvDataDir   = "PUBSYNC_DATA_DIR"
	EnvTarget    = "PUBSYNC_TARGET"
)

var (
	// ErrNotFound indicates no config file was found.
	ErrNotFound = errors.New("no pubsync.yml found")

	// ErrInvalid indicates a config value is out of range.
	ErrInvalid = errors.New("invalid config")
)

// Default returns the built-in configuration, with paths relative to the
// working directory.
func Default() *Config {
	return &Config{
		BaseURL:         scholar.BaseURL,
		Language:        scholar.DefaultLanguage,
		UserAgent:       scholar.DefaultUserAgent,
		MaxPublications: publication.DefaultMaxRecords,
		RequestDelay:    scholar.DefaultDelay,
		Timeout:         scholar.DefaultTimeout,
		DataDir:         "data",
		SnapshotPrefix:  backup.DefaultPrefix,
		TargetFile:      filepath.Join("src", "data", "portfolio.ts"),
		Section:         merge.DefaultField,
		CV: CVConfig{
			Source:     filepath.Join("cv", "cv.typ"),
			Output:     filepath.Join("data", "cv-sync.json"),
			PublicPath: "/cv.pdf",
		},
	}
}

// Load reads a YAML config file over the defaults. Unknown keys are errors.
// Relative paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg.Path = abs
	cfg.ResolvePaths(filepath.Dir(abs))
	return cfg, nil
}

// ResolvePaths expands ~ and makes relative paths absolute against base.
func (c *Config) ResolvePaths(base string) {
	for _, p := range []*string{&c.DataDir, &c.TargetFile, &c.IndexPath, &c.CV.Source, &c.CV.PDFPath, &c.CV.Output} {
		*p = resolvePath(base, *p)
	}
}

func resolvePath(base, p string) string {
	if p == "" {
		return ""
	}
	p = ExpandPath(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// ApplyEnv overrides fields from environment variables. lookup is
// os.LookupEnv outside tests. Values are resolved against base.
func (c *Config) ApplyEnv(base string, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvProfileID); ok && v != "" {
		c.ProfileID = v
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.DataDir = resolvePath(base, v)
	}
	if v, ok := lookup(EnvTarget); ok && v != "" {
		c.TargetFile = resolvePath(base, v)
	}
}

// Validate checks the values a fetch depends on.
func (c *Config) Validate() error {
	switch {
	case c.ProfileID == "":
		return fmt.Errorf("%w: profile_id is required (set it in %s or %s)", ErrInvalid, ConfigFile, EnvProfileID)
	case c.MaxPublications <= 0:
		return fmt.Errorf("%w: max_publications must be positive, got %d", ErrInvalid, c.MaxPublications)
	case c.RequestDelay < 0:
		return fmt.Errorf("%w: request_delay must not be negative, got %s", ErrInvalid, c.RequestDelay)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalid, c.Timeout)
	case c.DataDir == "":
		return fmt.Errorf("%w: data_dir is required", ErrInvalid)
	case c.TargetFile == "":
		return fmt.Errorf("%w: target_file is required", ErrInvalid)
	}
	return nil
}

// Index returns the query index path.
func (c *Config) Index() string {
	if c.IndexPath != "" {
		return c.IndexPath
	}
	return filepath.Join(c.DataDir, IndexFile)
}

// Find walks up from start looking for pubsync.yml and returns its path.
func Find(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		candidate := filepath.Join(abs, ConfigFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNotFound
		}
		abs = parent
	}
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
