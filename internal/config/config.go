// Package config provides configuration loading and validation for srvdisc.
// It handles reading configuration from files, providing defaults, and ensuring
// all required settings are properly set.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lc/srvdisc/internal/filesys"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoConfig is returned when the configuration file is not found.
	ErrNoConfig = errors.New("configuration file not found")
	// ErrConfigExists is returned by WriteDefault when a configuration
	// file is already present at the target path.
	ErrConfigExists = errors.New("configuration file already exists")
)

const (
	// DefaultConfigPath is the default path for the configuration file.
	DefaultConfigPath = ".srvdisc/config.yaml"
	// DefaultProtocol is the default DNS transport. TCP reliably returns
	// large record sets that UDP would truncate above 512 bytes.
	DefaultProtocol = "tcp"
	// DefaultDNSTimeout is the default timeout for a single DNS exchange.
	DefaultDNSTimeout = 5 * time.Second
)

// Config holds the application configuration.
type Config struct {
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// DiscoveryConfig holds peer-discovery configuration.
type DiscoveryConfig struct {
	SRV SRVConfig `yaml:"srv"`
}

// SRVConfig holds the SRV resolution settings. Query names the service to
// look up; Servers lists explicit DNS servers as host[:port], empty meaning
// the system default resolver.
type SRVConfig struct {
	Query    string        `yaml:"query"`
	Servers  []string      `yaml:"servers"`
	Protocol string        `yaml:"protocol"`
	Timeout  time.Duration `yaml:"timeout"`
}

// FS is the filesystem surface the provider needs: the read side for Load,
// the atomic write side for WriteDefault.
type FS interface {
	filesys.ReadWriteFS
	filesys.FileOps
}

// Provider defines the interface for loading configuration.
type Provider interface {
	Load() (*Config, error)
}

// FSProvider implements Provider using the local filesystem.
type FSProvider struct {
	fs   FS
	path string
}

// Verify FSProvider implements Provider interface.
var _ Provider = (*FSProvider)(nil)

// New creates a new configuration provider using the default configuration path.
// It uses the OS filesystem and the user's home directory to locate the configuration file.
// If the home directory cannot be determined, it falls back to the current directory.
func New() *FSProvider {
	home, err := os.UserHomeDir()
	if err != nil {
		// Log the error but continue with empty path, which will resolve to current directory
		fmt.Fprintf(os.Stderr, "Warning: could not determine home directory: %v\n", err)
		home = ""
	}
	return NewWithPath(filesys.OS(), filepath.Join(home, DefaultConfigPath))
}

// NewWithPath creates a new provider with a specific config path.
// It allows specifying both the filesystem implementation and the path to use.
func NewWithPath(fs FS, path string) *FSProvider {
	return &FSProvider{
		fs:   fs,
		path: path,
	}
}

// Default returns a default configuration with preset values.
// This is used when no configuration file exists. The query is left empty:
// resolution without a query is a no-op, reported at runtime.
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			SRV: SRVConfig{
				Protocol: DefaultProtocol,
				Timeout:  DefaultDNSTimeout,
			},
		},
	}
}

// Load loads the configuration from the specified path.
func (p *FSProvider) Load() (*Config, error) {
	_ = p.ensureConfigDir()

	cfg, err := p.loadAndParse()
	if err != nil {
		if errors.Is(err, ErrNoConfig) {
			return Default(), nil
		}
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// WriteDefault persists the default configuration to the provider's path.
// It refuses to overwrite an existing file.
func (p *FSProvider) WriteDefault() error {
	_ = p.ensureConfigDir()

	if _, err := p.fs.Stat(p.path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, p.path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if err := filesys.AtomicWrite(p.fs, p.path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// applyDefaults fills per-key defaults for fields the file omitted.
// An absent protocol or timeout means "use the recommended value", not an
// invalid file.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Discovery.SRV.Protocol) == "" {
		c.Discovery.SRV.Protocol = DefaultProtocol
	}
	if c.Discovery.SRV.Timeout == 0 {
		c.Discovery.SRV.Timeout = DefaultDNSTimeout
	}
}

// Validate checks the configuration to ensure all required fields are set.
// The query may be empty: a missing query disables resolution at runtime
// rather than failing the load.
func (c *Config) Validate() error {
	srv := c.Discovery.SRV
	if srv.Protocol != "tcp" && srv.Protocol != "udp" {
		return fmt.Errorf("protocol must be tcp or udp, got %q", srv.Protocol)
	}
	if srv.Timeout < time.Second {
		return errors.New("DNS timeout must be at least 1 second")
	}
	for _, s := range srv.Servers {
		if strings.TrimSpace(s) == "" {
			return errors.New("DNS server address cannot be blank")
		}
	}
	return nil
}

func (p *FSProvider) ensureConfigDir() error {
	dir := filepath.Dir(p.path)
	if _, err := p.fs.Stat(dir); os.IsNotExist(err) {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	return nil
}

func (p *FSProvider) loadAndParse() (*Config, error) {
	f, err := p.fs.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	return &cfg, nil
}
