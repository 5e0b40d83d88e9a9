package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := New()
	cfg.StartURLs = []string{"http://example.com/"}
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults with start url", func(*Config) {}, nil},
		{"no start url", func(c *Config) { c.StartURLs = nil }, ErrNoStartURL},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, ErrInvalidTimeout},
		{"unknown mode", func(c *Config) { c.Mode = "fibers" }, ErrUnknownMode},
		{"explicit zero workers", func(c *Config) { c.SetWorkers(0) }, ErrInvalidWorkers},
		{"explicit zero workers process mode", func(c *Config) { c.Mode = ModeProcess; c.SetWorkers(0) }, ErrInvalidWorkers},
		{"negative workers", func(c *Config) { c.Workers = -1 }, ErrInvalidWorkers},
		{"unknown parser", func(c *Config) { c.Parser = "regex" }, ErrUnknownParser},
		{"unknown type", func(c *Config) { c.Types = []string{"a", "iframe"} }, ErrUnknownType},
		{"unknown format", func(c *Config) { c.Format = "xml" }, ErrUnknownFormat},
		{"negative crawl delay", func(c *Config) { c.CrawlDelay = -time.Second }, ErrInvalidCrawlDelay},
		{"email without smtp", func(c *Config) { c.Email.Addresses = []string{"a@b.c"} }, ErrEmailWithoutSMTP},
		{"url file instead of args", func(c *Config) { c.StartURLs = nil; c.URLFilePath = "urls.txt" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEffectiveWorkers(t *testing.T) {
	t.Parallel()

	cfg := New()
	if got := cfg.EffectiveWorkers(); got != 1 {
		t.Errorf("thread default = %d, want 1", got)
	}

	cfg.Mode = ModeGreen
	if got := cfg.EffectiveWorkers(); got != 1000 {
		t.Errorf("green default = %d, want 1000", got)
	}

	cfg.SetWorkers(8)
	if got := cfg.EffectiveWorkers(); got != 8 {
		t.Errorf("explicit workers = %d, want 8", got)
	}
}

func TestMaxDepth(t *testing.T) {
	t.Parallel()

	cfg := New()
	if got := cfg.MaxDepth(); got != -1 {
		t.Errorf("default depth = %d, want -1", got)
	}

	cfg.Depth = 3
	if got := cfg.MaxDepth(); got != 3 {
		t.Errorf("depth = %d, want 3", got)
	}

	cfg.RunOnce = true
	if got := cfg.MaxDepth(); got != 0 {
		t.Errorf("run-once depth = %d, want 0", got)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	content := `
acceptedHosts:
  - static.example.com
ignoredPrefixes:
  - example.com/archive/
types: [a, img]
timeoutSeconds: 30
headers:
  X-Validator: "1"
crawlDelayMillis: 250
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	f, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile returned error: %v", err)
	}

	cfg := validConfig()
	f.Apply(cfg)

	if len(cfg.AcceptedHosts) != 1 || cfg.AcceptedHosts[0] != "static.example.com" {
		t.Errorf("accepted hosts = %v", cfg.AcceptedHosts)
	}
	if len(cfg.IgnoredPrefixes) != 1 {
		t.Errorf("ignored prefixes = %v", cfg.IgnoredPrefixes)
	}
	if len(cfg.Types) != 2 {
		t.Errorf("types = %v", cfg.Types)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout)
	}
	if cfg.Headers["X-Validator"] != "1" {
		t.Errorf("headers = %v", cfg.Headers)
	}
	if cfg.CrawlDelay != 250*time.Millisecond {
		t.Errorf("crawl delay = %v", cfg.CrawlDelay)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("error = %v, want ErrConfigNotFound", err)
	}
}

func TestApplyDoesNotOverrideExplicit(t *testing.T) {
	t.Parallel()

	f := &File{
		AcceptedHosts:  []string{"file.example"},
		TimeoutSeconds: 99,
	}

	cfg := validConfig()
	cfg.AcceptedHosts = []string{"flag.example"}
	cfg.Timeout = 5 * time.Second

	f.Apply(cfg)

	if cfg.AcceptedHosts[0] != "flag.example" {
		t.Error("file must not override explicit accepted hosts")
	}
	if cfg.Timeout != 5*time.Second {
		t.Error("file must not override explicit timeout")
	}
}

func TestReadStartURLFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(path, []byte("http://a.example/\nhttp://b.example/  http://c.example/\n"), 0600); err != nil {
		t.Fatalf("write url file: %v", err)
	}

	urls, err := ReadStartURLFile(path)
	if err != nil {
		t.Fatalf("ReadStartURLFile returned error: %v", err)
	}
	if len(urls) != 3 {
		t.Errorf("urls = %v, want 3 entries", urls)
	}
}
