// Package config holds the resolution run configuration: credentials for
// the remote repository API, per-package overrides, and output settings.
// The configuration is read once at orchestration start and immutable
// thereafter.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"sigs.k8s.io/yaml"

	"licenses.software/bundle/bundle"
)

const (
	// TypeKind is the schema kind of the configuration file.
	TypeKind = "config.licenses.software"
	// Version is the configuration schema version understood by this
	// implementation.
	Version = "v1"
	// Type tags a configuration file of this version.
	Type = TypeKind + "/" + Version

	// DefaultFileName is looked up in the working directory when no config
	// path is given.
	DefaultFileName = ".licensebundle.yaml"

	// TokenEnv is the environment variable consulted for the GitHub token
	// when the config file does not set one. A .env file in the working
	// directory is honored.
	TokenEnv = "GITHUB_TOKEN"
)

// Override adjusts resolution for a single package, keyed by package name.
type Override struct {
	// Texts forces the license texts directly, skipping all strategies.
	Texts []string `json:"texts,omitempty"`
	// Strategy forces a single strategy by name instead of the full chain.
	Strategy string `json:"strategy,omitempty"`
	// License declares the SPDX license expression of the package, feeding
	// the static table strategy. Go modules carry no license metadata, so
	// this is the only way to declare one.
	License string `json:"license,omitempty"`
	// Repository declares the source repository URL for packages whose
	// module path does not reveal it (vanity import paths).
	Repository string `json:"repository,omitempty"`
}

// Config is the full, schema-tagged run configuration.
type Config struct {
	Type string `json:"type"`

	// GitHubToken authenticates remote repository API calls, raising rate
	// limits. Falls back to the GITHUB_TOKEN environment variable.
	GitHubToken string `json:"githubToken,omitempty"`
	// RequestTimeout bounds a single remote license lookup. Default 30s.
	RequestTimeout *Timeout `json:"requestTimeout,omitempty"`
	// Concurrency limits parallel package resolution. Default NumCPU.
	Concurrency int `json:"concurrency,omitempty"`
	// Output is the artifact destination path. Default LICENSE-3RD-PARTY.
	Output string `json:"output,omitempty"`
	// FailOnUnresolved turns unresolved, non-ignored packages into a fatal
	// resolution error instead of a warning.
	FailOnUnresolved bool `json:"failOnUnresolved,omitempty"`
	// Ignore lists package names excluded from the unresolved report.
	Ignore []string `json:"ignore,omitempty"`
	// CopyLicense maps a package name to the package name whose resolved
	// texts it takes over.
	CopyLicense map[string]string `json:"copyLicense,omitempty"`
	// Overrides adjusts resolution per package name.
	Overrides map[string]Override `json:"overrides,omitempty"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Type:           Type,
		RequestTimeout: &DefaultRequestTimeout,
		Output:         bundle.DefaultFileName,
	}
}

// Load reads the configuration from path, or from DefaultFileName in the
// working directory when path is empty. A missing default file yields the
// default configuration; a missing explicit path is an error. The GitHub
// token is completed from the environment (including a .env file) when the
// file does not set it.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		cfg := Default()
		cfg.completeToken()
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	cfg.completeToken()
	return cfg, nil
}

// Validate checks the schema tag and value ranges. Overrides forcing an
// unknown strategy are checked later, against the actual strategy chain.
func (c *Config) Validate() error {
	kind, version, ok := strings.Cut(c.Type, "/")
	if !ok || kind != TypeKind {
		return fmt.Errorf("config type %q, expected kind %q", c.Type, TypeKind)
	}
	major, _, _ := strings.Cut(strings.TrimPrefix(version, "v"), ".")
	if n, err := strconv.Atoi(major); err != nil || n != 1 {
		return fmt.Errorf("config schema version %q, this implementation supports %s", version, Version)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	if c.RequestTimeout.Value() < 0 {
		return fmt.Errorf("requestTimeout must not be negative, got %s", c.RequestTimeout)
	}
	for name, override := range c.Overrides {
		if name == "" {
			return errors.New("override with empty package name")
		}
		if len(override.Texts) > 0 && override.Strategy != "" {
			return fmt.Errorf("override for %q forces both texts and a strategy", name)
		}
	}
	for copier, copied := range c.CopyLicense {
		if copier == "" || copied == "" {
			return errors.New("copyLicense entries need a package name on both sides")
		}
	}
	return nil
}

func (c *Config) completeToken() {
	if c.GitHubToken != "" {
		return
	}
	_ = godotenv.Load()
	c.GitHubToken = os.Getenv(TokenEnv)
}
