package loadconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/idxdeploy/lifecycle"
	"gopkg.in/yaml.v3"
)

// DefaultSidecarFiles are the generation-level files copied next to a deployed
// version when present in the raw partition.
var DefaultSidecarFiles = []string{"index_format_version", "index_partition_meta", "schema.json"}

// Config is the deployment configuration of one target version.
type Config struct {
	// NeedIndexDeploy is false when the partition is served entirely from the
	// remote tier. Defaults to true.
	NeedIndexDeploy *bool `yaml:"need_deploy_index,omitempty"`

	// LoadConfig lists the ordered classification rules. An empty list deploys
	// every file locally.
	LoadConfig []Rule `yaml:"load_config,omitempty"`

	// Lifecycle configures segment tagging.
	Lifecycle lifecycle.Config `yaml:"lifecycle,omitempty"`

	// CacheTierPrefixes lists remote path prefixes served by the caching tier;
	// remote files under such a root are warmed up after planning.
	CacheTierPrefixes []string `yaml:"cache_tier_prefixes,omitempty"`

	// SidecarFiles overrides DefaultSidecarFiles.
	SidecarFiles []string `yaml:"sidecar_files,omitempty"`
}

// Default returns a configuration deploying every file locally.
func Default() *Config {
	return &Config{}
}

// Load reads a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read load config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate compiles rules and lifecycle patterns without keeping the result.
func (c *Config) Validate() error {
	if _, err := c.Rules(); err != nil {
		return err
	}
	if _, err := lifecycle.NewClassifier(c.Lifecycle); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DeployIndex reports whether local deployment is needed.
func (c *Config) DeployIndex() bool {
	return c == nil || c.NeedIndexDeploy == nil || *c.NeedIndexDeploy
}

// Rules compiles the load config, falling back to a catch-all deploy rule
// when none is configured.
func (c *Config) Rules() (*RuleSet, error) {
	if c == nil || len(c.LoadConfig) == 0 {
		return Compile([]Rule{{Name: "default", FilePatterns: []string{".*"}, Deploy: true}})
	}
	return Compile(c.LoadConfig)
}

// Sidecars returns the sidecar file list.
func (c *Config) Sidecars() []string {
	if c == nil || c.SidecarFiles == nil {
		return DefaultSidecarFiles
	}
	return c.SidecarFiles
}

// IsCacheTier reports whether remotePath is served by the caching tier.
func (c *Config) IsCacheTier(remotePath string) bool {
	if c == nil || remotePath == "" {
		return false
	}
	for _, p := range c.CacheTierPrefixes {
		if p != "" && strings.HasPrefix(remotePath, p) {
			return true
		}
	}
	return false
}
