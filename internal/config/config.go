package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/domain/filter"
	"github.com/kailas-cloud/stacfed/internal/version"
)

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds the stacfed API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Search   SearchConfig   `yaml:"search"`
	APIs     []APIConfig    `yaml:"apis"`
	Cache    CacheConfig    `yaml:"cache"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"` // empty disables CORS headers
}

// UpstreamConfig controls outbound requests to upstream catalogs.
type UpstreamConfig struct {
	TimeoutSec     int     `yaml:"timeout_sec"`
	MaxConcurrency int     `yaml:"max_concurrency"`
	UserAgent      string  `yaml:"user_agent"`
	RateLimit      float64 `yaml:"rate_limit"` // requests per second per upstream, 0 = unlimited
	Burst          int     `yaml:"burst"`
}

// SearchConfig holds paging limits for federated search.
type SearchConfig struct {
	DefaultLimit  int `yaml:"default_limit"`
	MaxLimit      int `yaml:"max_limit"`
	MaxLocalPages int `yaml:"max_local_pages"`
}

// APIConfig is one upstream catalog as written in the YAML file.
type APIConfig struct {
	URL               string       `yaml:"url"`
	Kind              string       `yaml:"kind"` // stac (default) or cmr
	Filter            *filter.Rule `yaml:"filter"`
	FilterDescription string       `yaml:"filter_description"`
}

// CacheConfig holds the upstream document cache settings.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // none, memory, redis (default: memory)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	// ClientCacheTTLSec keeps Redis replies in process memory (redis driver only, 0 = off).
	ClientCacheTTLSec int `yaml:"client_cache_ttl_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Upstream.TimeoutSec <= 0 {
		c.Upstream.TimeoutSec = 20
	}
	if c.Upstream.MaxConcurrency <= 0 {
		c.Upstream.MaxConcurrency = 8
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = version.UserAgent("stacfed")
	}
	if c.Upstream.Burst <= 0 {
		c.Upstream.Burst = 1
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Search.MaxLocalPages <= 0 {
		c.Search.MaxLocalPages = 20
	}
	for i := range c.APIs {
		if c.APIs[i].Kind == "" {
			c.APIs[i].Kind = string(domain.KindSTAC)
		}
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheMemory
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 300
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "stacfed:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Upstream.RateLimit < 0 {
		return fmt.Errorf("upstream.rate_limit must not be negative, got %v", c.Upstream.RateLimit)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit (%d) exceeds search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if err := c.validateAPIs(); err != nil {
		return err
	}
	switch c.Cache.Driver {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for the redis driver")
		}
		if c.Cache.ClientCacheTTLSec < 0 || c.Cache.ClientCacheTTLSec > c.Cache.TTLSec {
			return fmt.Errorf("cache.client_cache_ttl_sec must be between 0 and cache.ttl_sec (%d), got %d",
				c.Cache.TTLSec, c.Cache.ClientCacheTTLSec)
		}
	default:
		return fmt.Errorf("cache.driver must be %q, %q or %q, got %q",
			CacheNone, CacheMemory, CacheRedis, c.Cache.Driver)
	}
	return nil
}

func (c *Config) validateAPIs() error {
	if len(c.APIs) == 0 {
		return fmt.Errorf("apis: at least one upstream catalog is required")
	}
	seen := make(map[string]struct{}, len(c.APIs))
	for i, a := range c.APIs {
		u, err := url.Parse(a.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("apis[%d].url must be an absolute http(s) URL, got %q", i, a.URL)
		}
		if _, dup := seen[a.URL]; dup {
			return fmt.Errorf("apis[%d].url %q is configured twice", i, a.URL)
		}
		seen[a.URL] = struct{}{}

		switch domain.CatalogKind(a.Kind) {
		case domain.KindSTAC, domain.KindCMR:
		default:
			return fmt.Errorf("apis[%d].kind must be \"stac\" or \"cmr\", got %q", i, a.Kind)
		}
		if a.Filter != nil {
			if err := a.Filter.Validate(); err != nil {
				return fmt.Errorf("apis[%d].filter: %w", i, err)
			}
		}
	}
	return nil
}

// Catalogs converts the apis section into domain configurations, keeping order.
func (c *Config) Catalogs() domain.APIConfigs {
	out := make(domain.APIConfigs, len(c.APIs))
	for i, a := range c.APIs {
		out[i] = domain.APIConfig{
			URL:               a.URL,
			Kind:              domain.CatalogKind(a.Kind),
			Filter:            a.Filter,
			FilterDescription: a.FilterDescription,
		}
	}
	return out
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
