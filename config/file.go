package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// AppName names the per-user configuration directory.
	AppName = "deepcrawl"

	// DefaultConfigFile is looked up in the working directory.
	DefaultConfigFile = ".deepcrawl.yaml"
)

// ErrConfigNotFound is returned when an explicit configuration file is missing.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file. Unset fields keep their defaults.
type File struct {
	Crawl struct {
		MaxDepth        *int     `yaml:"max_depth,omitempty"`
		IncludeExternal *bool    `yaml:"include_external,omitempty"`
		Concurrency     *int     `yaml:"concurrency,omitempty"`
		MaxPages        *int     `yaml:"max_pages,omitempty"`
		Exclude         []string `yaml:"exclude,omitempty"`
	} `yaml:"crawl"`

	Fetch struct {
		Timeout        string            `yaml:"timeout,omitempty"`
		UserAgent      string            `yaml:"user_agent,omitempty"`
		Proxy          string            `yaml:"proxy,omitempty"`
		TLSFingerprint *bool             `yaml:"tls_fingerprint,omitempty"`
		RateLimit      *float64          `yaml:"rate_limit,omitempty"`
		Burst          *int              `yaml:"burst,omitempty"`
		Headers        map[string]string `yaml:"headers,omitempty"`
	} `yaml:"fetch"`

	Extract struct {
		Mode             string   `yaml:"mode,omitempty"`
		Content          string   `yaml:"content,omitempty"`
		Selector         string   `yaml:"selector,omitempty"`
		ExcludeSelectors []string `yaml:"exclude_selectors,omitempty"`
	} `yaml:"extract"`

	Log struct {
		Level  string `yaml:"level,omitempty"`
		Format string `yaml:"format,omitempty"`
	} `yaml:"log"`
}

// XDGConfigDir returns the per-user configuration directory.
// On Linux: ~/.config/deepcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// FindConfigFile returns the configuration file to use, or "" when none exists.
// An explicit path wins; otherwise ./.deepcrawl.yaml and then
// <XDGConfigDir>/config.yaml are tried.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	candidates := []string{DefaultConfigFile, filepath.Join(XDGConfigDir(), "config.yaml")}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// LoadConfigFile parses the YAML file at path.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config: %s: %w", path, ErrConfigNotFound)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// LoadWithFile builds the configuration from defaults, then the configuration
// file, then environment variables. configPath may be empty to search the
// default locations.
func LoadWithFile(configPath string) (*Config, error) {
	cfg := Defaults()
	if path := FindConfigFile(configPath); path != "" {
		f, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := f.apply(cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (f *File) apply(cfg *Config) error {
	if f.Crawl.MaxDepth != nil {
		cfg.Crawl.MaxDepth = *f.Crawl.MaxDepth
	}
	if f.Crawl.IncludeExternal != nil {
		cfg.Crawl.IncludeExternal = *f.Crawl.IncludeExternal
	}
	if f.Crawl.Concurrency != nil {
		cfg.Crawl.Concurrency = *f.Crawl.Concurrency
	}
	if f.Crawl.MaxPages != nil {
		cfg.Crawl.MaxPages = *f.Crawl.MaxPages
	}
	if len(f.Crawl.Exclude) > 0 {
		cfg.Crawl.ExcludePatterns = f.Crawl.Exclude
	}

	if f.Fetch.Timeout != "" {
		d, err := time.ParseDuration(f.Fetch.Timeout)
		if err != nil {
			return fmt.Errorf("fetch.timeout: %w", err)
		}
		cfg.Fetch.Timeout = d
	}
	if f.Fetch.UserAgent != "" {
		cfg.Fetch.UserAgent = f.Fetch.UserAgent
	}
	if f.Fetch.Proxy != "" {
		cfg.Fetch.Proxy = f.Fetch.Proxy
	}
	if f.Fetch.TLSFingerprint != nil {
		cfg.Fetch.TLSFingerprint = *f.Fetch.TLSFingerprint
	}
	if f.Fetch.RateLimit != nil {
		cfg.Fetch.HostRPS = *f.Fetch.RateLimit
	}
	if f.Fetch.Burst != nil {
		cfg.Fetch.HostBurst = *f.Fetch.Burst
	}
	if len(f.Fetch.Headers) > 0 {
		cfg.Fetch.Headers = f.Fetch.Headers
	}

	if f.Extract.Mode != "" {
		cfg.Extract.Mode = f.Extract.Mode
	}
	if f.Extract.Content != "" {
		cfg.Extract.ContentFormat = f.Extract.Content
	}
	if f.Extract.Selector != "" {
		cfg.Extract.Selector = f.Extract.Selector
	}
	if len(f.Extract.ExcludeSelectors) > 0 {
		cfg.Extract.ExcludeSelectors = f.Extract.ExcludeSelectors
	}

	if f.Log.Level != "" {
		cfg.Log.Level = f.Log.Level
	}
	if f.Log.Format != "" {
		cfg.Log.Format = f.Log.Format
	}
	return nil
}
