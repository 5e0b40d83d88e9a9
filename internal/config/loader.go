package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file name searched for in the working
// and home directories.
const DefaultConfigFile = ".linkvalidator"

// Environment variables read for HTTP Basic credentials so they can stay
// off the command line and out of shell history.
const (
	EnvUsername = "LINKVALIDATOR_USERNAME"
	EnvPassword = "LINKVALIDATOR_PASSWORD"
)

// ErrConfigNotFound is returned when an explicitly given config file does
// not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file. Every field supplies a default for
// the matching flag; explicit flags win.
type File struct {
	// AcceptedHosts extends the crawl-and-follow host set.
	AcceptedHosts []string `yaml:"acceptedHosts,omitempty"`

	// IgnoredPrefixes is the host/path prefix skip list.
	IgnoredPrefixes []string `yaml:"ignoredPrefixes,omitempty"`

	// Types are the extracted HTML tags.
	Types []string `yaml:"types,omitempty"`

	// TimeoutSeconds is the per-request timeout.
	TimeoutSeconds int `yaml:"timeoutSeconds,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the default User-Agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// CrawlDelayMillis paces requests globally.
	CrawlDelayMillis int `yaml:"crawlDelayMillis,omitempty"`
}

// LoadConfigFile reads and parses a YAML config file.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &f, nil
}

// FindConfigFile locates the config file: the explicit path when given,
// otherwise .linkvalidator in the current then the home directory. Returns
// empty when none exists.
func FindConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Apply merges file values into the config for every option the user did
// not set explicitly on the command line.
func (f *File) Apply(c *Config) {
	if len(c.AcceptedHosts) == 0 {
		c.AcceptedHosts = f.AcceptedHosts
	}
	if len(c.IgnoredPrefixes) == 0 {
		c.IgnoredPrefixes = f.IgnoredPrefixes
	}
	if len(f.Types) > 0 && sameAsDefault(c) {
		c.Types = f.Types
	}
	if f.TimeoutSeconds > 0 && c.Timeout == DefaultTimeout {
		c.Timeout = time.Duration(f.TimeoutSeconds) * time.Second
	}
	if f.UserAgent != "" && c.UserAgent == DefaultUserAgent {
		c.UserAgent = f.UserAgent
	}
	if f.CrawlDelayMillis > 0 && c.CrawlDelay == 0 {
		c.CrawlDelay = time.Duration(f.CrawlDelayMillis) * time.Millisecond
	}
	for k, v := range f.Headers {
		if _, ok := c.Headers[k]; !ok {
			c.Headers[k] = v
		}
	}
}

// LoadEnvCredentials fills missing credentials from the environment,
// loading a .env file first when present.
func LoadEnvCredentials(c *Config) {
	_ = godotenv.Load() //nolint:errcheck // A missing .env file is fine

	if c.Username == "" {
		c.Username = os.Getenv(EnvUsername)
	}
	if c.Password == "" {
		c.Password = os.Getenv(EnvPassword)
	}
}

// ReadStartURLFile reads whitespace-separated start URLs from a file.
func ReadStartURLFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	return strings.Fields(string(data)), nil
}

// sameAsDefault reports whether the configured types are still the default
// full set.
func sameAsDefault(c *Config) bool {
	if len(c.Types) != 4 {
		return false
	}
	seen := map[string]bool{}
	for _, t := range c.Types {
		seen[t] = true
	}
	return seen["a"] && seen["img"] && seen["link"] && seen["script"]
}
