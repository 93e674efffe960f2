package carbon

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"watttime-api/pkg/confkit"
)

// Config describes the set of data sources available to the application.
type Config struct {
	Default string                   `yaml:"default"`
	Sources map[string]*SourceConfig `yaml:"sources"`
}

// SourceConfig represents configuration for a single data source. String
// fields support ${ENV} expansion, so tokens can stay out of the file.
type SourceConfig struct {
	Type string `yaml:"type"`

	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`

	HTTPTimeoutRaw string        `yaml:"http_timeout"`
	HTTPTimeout    time.Duration `yaml:"-"`
	PageLimit      int           `yaml:"page_limit"`
}

// SourceBuilder constructs a Fetcher from configuration.
type SourceBuilder func(name string, cfg *SourceConfig) (Fetcher, error)

var (
	sourceRegistry   = make(map[string]SourceBuilder)
	sourceRegistryMu sync.RWMutex
)

// RegisterSource registers a data source constructor for a config type name.
func RegisterSource(typeName string, builder SourceBuilder) {
	sourceRegistryMu.Lock()
	defer sourceRegistryMu.Unlock()
	sourceRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupSourceBuilder(typeName string) (SourceBuilder, bool) {
	sourceRegistryMu.RLock()
	defer sourceRegistryMu.RUnlock()
	builder, ok := sourceRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads source configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open carbon config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads source configuration from the default project location and
// panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/carbon.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read carbon config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal carbon config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Sources == nil {
		c.Sources = make(map[string]*SourceConfig)
	}
	for name, source := range c.Sources {
		if source == nil {
			source = &SourceConfig{}
			c.Sources[name] = source
		}
		source.expandEnv()
		if err := source.parseDurations(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SourceConfig) expandEnv() {
	s.Type = strings.TrimSpace(os.ExpandEnv(s.Type))
	s.Token = strings.TrimSpace(os.ExpandEnv(s.Token))
	s.BaseURL = strings.TrimSpace(os.ExpandEnv(s.BaseURL))
	s.HTTPTimeoutRaw = strings.TrimSpace(os.ExpandEnv(s.HTTPTimeoutRaw))
}

func (s *SourceConfig) parseDurations(name string) error {
	if s.HTTPTimeoutRaw != "" {
		d, err := time.ParseDuration(s.HTTPTimeoutRaw)
		if err != nil {
			return fmt.Errorf("carbon source %s: invalid http_timeout %q: %w", name, s.HTTPTimeoutRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("carbon source %s: http_timeout must be positive, got %s", name, d)
		}
		s.HTTPTimeout = d
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("carbon config: sources cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Sources[c.Default]; !ok {
			return fmt.Errorf("carbon config: default source %q not defined", c.Default)
		}
	}
	for name, source := range c.Sources {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("carbon config: source name cannot be empty")
		}
		if err := source.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SourceConfig) validate(name string) error {
	if s == nil {
		return fmt.Errorf("carbon config: source %s is nil", name)
	}
	if strings.TrimSpace(s.Type) == "" {
		return fmt.Errorf("carbon config: source %s must specify type", name)
	}
	if _, ok := lookupSourceBuilder(s.Type); !ok {
		return fmt.Errorf("carbon config: source %s has unsupported type %q", name, s.Type)
	}
	return nil
}

// DefaultName resolves the source a caller should use when none is named
// explicitly: the configured default, or the sole configured source.
func (c *Config) DefaultName() string {
	if c.Default != "" {
		return c.Default
	}
	if len(c.Sources) == 1 {
		for name := range c.Sources {
			return name
		}
	}
	return ""
}

// BuildSources instantiates fetchers according to configuration.
func (c *Config) BuildSources() (map[string]Fetcher, error) {
	result := make(map[string]Fetcher, len(c.Sources))
	for name, sourceCfg := range c.Sources {
		builder, ok := lookupSourceBuilder(sourceCfg.Type)
		if !ok {
			return nil, fmt.Errorf("carbon source %s: unsupported type %q", name, sourceCfg.Type)
		}
		fetcher, err := builder(name, sourceCfg)
		if err != nil {
			return nil, fmt.Errorf("carbon source %s: %w", name, err)
		}
		result[name] = fetcher
	}
	return result, nil
}
